// Package snapshot implements EdgeVec's versioned, checksummed binary
// persistence format (spec §4.8): a single "EDGE"-tagged blob holding the
// dense buffer, deletion bitmap, metadata records, HNSW graph adjacency,
// the level-assignment PRNG's seed and draw count, and an optional sparse
// segment, trailed by a CRC32C checksum over the whole body. It mirrors
// internal/sparse's own "ESPV" standalone format (magic, version, body,
// checksum) one level up, embedding that package's WriteBody/ReadBody
// directly for the sparse segment instead of reinventing vector framing.
//
// Binary-quantized sketches are never persisted: spec §4.8 treats them as
// derived data, regenerated from the F32 buffer on load rather than
// carried in the snapshot. Only a flag bit records whether BQ was enabled,
// so the façade knows to rebuild the sketch store after Load.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/edgevec/edgevec/internal/errs"
	"github.com/edgevec/edgevec/internal/hnsw"
	"github.com/edgevec/edgevec/internal/metadata"
	"github.com/edgevec/edgevec/internal/sparse"
	"github.com/edgevec/edgevec/internal/storage"
)

// Magic tags a full-index snapshot, distinct from internal/sparse's
// standalone "ESPV" format.
var Magic = [4]byte{'E', 'D', 'G', 'E'}

const formatVersion uint32 = 1

const (
	flagSparsePresent = 1 << 0
	flagBQEnabled     = 1 << 1
)

// Snapshot bundles everything a façade needs to persist and reconstruct
// its state. Sparse is nil when the index carries no sparse vectors.
type Snapshot struct {
	Dense     *storage.Store
	Metadata  *metadata.Memory
	Graph     *hnsw.Graph
	Sparse    *sparse.Store
	BQEnabled bool
}

// Save writes snap as a complete "EDGE" snapshot: magic, version,
// parameter block (which carries the PRNG seed and draw count), dense
// buffer + deletion bitmap, metadata records, graph adjacency, optional
// sparse segment, then CRC32C(everything after the version field).
func Save(w io.Writer, snap Snapshot) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(Magic[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, formatVersion); err != nil {
		return err
	}

	crc := crc32.New(crc32.MakeTable(crc32.Castagnoli))
	body := io.MultiWriter(bw, crc)

	if err := writeParams(body, snap); err != nil {
		return fmt.Errorf("snapshot: write parameter block: %w", err)
	}
	if err := snap.Dense.WriteBody(body); err != nil {
		return fmt.Errorf("snapshot: write dense buffer: %w", err)
	}
	if err := writeMetadata(body, snap.Metadata); err != nil {
		return fmt.Errorf("snapshot: write metadata: %w", err)
	}
	if err := writeGraph(body, snap.Graph); err != nil {
		return fmt.Errorf("snapshot: write graph: %w", err)
	}
	if snap.Sparse != nil {
		if err := snap.Sparse.WriteBody(body); err != nil {
			return fmt.Errorf("snapshot: write sparse segment: %w", err)
		}
	}

	if err := binary.Write(bw, binary.LittleEndian, crc.Sum32()); err != nil {
		return err
	}
	return bw.Flush()
}

// Load reads a snapshot produced by Save. pairDist supplies the dense
// pair-distance function the reconstructed graph needs for any future
// Insert calls; it plays no part in reconstruction itself, since nodes are
// installed directly via Graph.AddNode/SetEntry from the persisted
// adjacency, bypassing the insert algorithm entirely.
func Load(r io.Reader, pairDist hnsw.PairDistanceFunc) (Snapshot, error) {
	br := bufio.NewReader(r)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return Snapshot{}, fmt.Errorf("%w: read magic: %v", errs.ErrCorrupt, err)
	}
	if magic != Magic {
		return Snapshot{}, fmt.Errorf("%w: bad magic %q", errs.ErrCorrupt, magic[:])
	}
	var version uint32
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return Snapshot{}, fmt.Errorf("%w: read version: %v", errs.ErrCorrupt, err)
	}
	if version != formatVersion {
		return Snapshot{}, fmt.Errorf("%w: got %d, want %d", errs.ErrVersionMismatch, version, formatVersion)
	}

	crc := crc32.New(crc32.MakeTable(crc32.Castagnoli))
	body := io.TeeReader(br, crc)

	params, err := readParams(body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: read parameter block: %w", err)
	}

	dense, err := storage.ReadBody(body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: read dense buffer: %w", err)
	}

	meta, err := readMetadata(body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: read metadata: %w", err)
	}

	cfg := hnsw.Config{
		M:              params.m,
		MMax0:          params.mMax0,
		EfConstruction: params.efConstruction,
		EfSearch:       params.efSearch,
		Seed:           params.seed,
	}
	graph := hnsw.New(cfg, pairDist)
	if err := readGraph(body, graph); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: read graph: %w", err)
	}
	graph.Advance(int(params.draws))

	var sparseStore *sparse.Store
	if params.flags&flagSparsePresent != 0 {
		sparseStore, err = sparse.ReadBody(body)
		if err != nil {
			return Snapshot{}, fmt.Errorf("snapshot: read sparse segment: %w", err)
		}
	}

	var wantCRC uint32
	if err := binary.Read(br, binary.LittleEndian, &wantCRC); err != nil {
		return Snapshot{}, fmt.Errorf("%w: read checksum: %v", errs.ErrCorrupt, err)
	}
	if crc.Sum32() != wantCRC {
		return Snapshot{}, errs.ErrChecksumFailed
	}

	return Snapshot{
		Dense:     dense,
		Metadata:  meta,
		Graph:     graph,
		Sparse:    sparseStore,
		BQEnabled: params.flags&flagBQEnabled != 0,
	}, nil
}
