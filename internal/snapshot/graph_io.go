package snapshot

import (
	"encoding/binary"
	"io"

	"github.com/edgevec/edgevec/internal/hnsw"
	"github.com/edgevec/edgevec/internal/storage"
)

// writeGraph serializes the HNSW adjacency: entry point, highest occupied
// layer, node count, then per node its id, level, and per-layer neighbor
// lists.
func writeGraph(w io.Writer, g *hnsw.Graph) error {
	le := binary.LittleEndian
	entry, maxLevel := g.Entry()
	if err := binary.Write(w, le, uint64(entry)); err != nil {
		return err
	}
	if err := binary.Write(w, le, uint32(maxLevel)); err != nil {
		return err
	}
	if err := binary.Write(w, le, uint32(g.Len())); err != nil {
		return err
	}

	var writeErr error
	g.Each(func(id storage.VectorId, level int, friends [][]storage.VectorId) bool {
		if err := binary.Write(w, le, uint64(id)); err != nil {
			writeErr = err
			return false
		}
		if err := binary.Write(w, le, uint32(level)); err != nil {
			writeErr = err
			return false
		}
		if err := binary.Write(w, le, uint32(len(friends))); err != nil {
			writeErr = err
			return false
		}
		for _, layer := range friends {
			if err := binary.Write(w, le, uint32(len(layer))); err != nil {
				writeErr = err
				return false
			}
			for _, n := range layer {
				if err := binary.Write(w, le, uint64(n)); err != nil {
					writeErr = err
					return false
				}
			}
		}
		return true
	})
	return writeErr
}

// readGraph reads the adjacency written by writeGraph into an already
// constructed, empty graph (hnsw.New with the persisted Config).
func readGraph(r io.Reader, g *hnsw.Graph) error {
	le := binary.LittleEndian
	var entry uint64
	if err := binary.Read(r, le, &entry); err != nil {
		return err
	}
	var maxLevel uint32
	if err := binary.Read(r, le, &maxLevel); err != nil {
		return err
	}
	var nodeCount uint32
	if err := binary.Read(r, le, &nodeCount); err != nil {
		return err
	}

	for i := uint32(0); i < nodeCount; i++ {
		var id uint64
		if err := binary.Read(r, le, &id); err != nil {
			return err
		}
		var level uint32
		if err := binary.Read(r, le, &level); err != nil {
			return err
		}
		var nLayers uint32
		if err := binary.Read(r, le, &nLayers); err != nil {
			return err
		}
		friends := make([][]storage.VectorId, nLayers)
		for l := range friends {
			var n uint32
			if err := binary.Read(r, le, &n); err != nil {
				return err
			}
			layer := make([]storage.VectorId, n)
			for j := range layer {
				var nid uint64
				if err := binary.Read(r, le, &nid); err != nil {
					return err
				}
				layer[j] = storage.VectorId(nid)
			}
			friends[l] = layer
		}
		g.AddNode(storage.VectorId(id), int(level), friends)
	}

	if nodeCount > 0 {
		g.SetEntry(storage.VectorId(entry), int(maxLevel))
	}
	return nil
}
