package edgevec

import (
	"github.com/edgevec/edgevec/internal/bq"
	"github.com/edgevec/edgevec/internal/config"
	"github.com/edgevec/edgevec/internal/hnsw"
	"github.com/edgevec/edgevec/internal/sparse"
	"github.com/edgevec/edgevec/internal/storage"
)

// Compact rewrites the dense buffer (and the sparse/BQ stores, if
// present) dropping tombstoned vectors, rebuilds the HNSW graph and
// metadata around the resulting id space, and returns the old-id ->
// new-id remapping. Per spec §4.3, Compact is the only operation that
// actually removes tombstoned nodes from the graph; Delete alone leaves
// their edges in place until a rebuild.
func (idx *Index) Compact() storage.IdMap {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	oldSparse := idx.sparse
	remap := idx.dense.Compact()

	idx.compactMetadata(remap)

	if oldSparse != nil {
		idx.sparse = sparse.New(oldSparse.Dim())
		for old := storage.VectorId(1); old <= storage.VectorId(len(remap)); old++ {
			if remap[old] == 0 {
				continue
			}
			v, ok := oldSparse.Get(old)
			if !ok {
				v = sparse.Vector{}
			}
			_, _ = idx.sparse.Insert(v) // v was already valid when first inserted
		}
	}

	if idx.bqStore != nil {
		newBQ := bq.New(idx.dense.Dim())
		for id := storage.VectorId(1); id <= idx.dense.NextID(); id++ {
			_, _ = newBQ.Insert(idx.dense.GetRaw(id)) // dim already validated at first insert
		}
		idx.bqStore = newBQ
	}

	idx.graph = rebuildGraph(idx.cfg, idx.dense, idx.pairDist)

	return remap
}

// compactMetadata renumbers every live record from its old id to its new
// id in place. Because compaction only ever shrinks ids (new <= old) and
// this walks old ids ascending, by the time a record is written to slot
// new that slot's previous occupant (if any) has already been read and
// relocated — so this is safe to do in place against any metadata.Store
// implementation, not just internal/metadata.Memory, without needing an
// Each method.
func (idx *Index) compactMetadata(remap storage.IdMap) {
	for old := storage.VectorId(1); old <= storage.VectorId(len(remap)); old++ {
		newID := remap[old]
		rec, ok := idx.meta.Get(old)
		if newID == 0 {
			if ok {
				idx.meta.Delete(old)
				if idx.metaIdx != nil {
					_ = idx.metaIdx.Delete(old)
				}
			}
			continue
		}
		if !ok {
			continue
		}
		if newID != old {
			idx.meta.Delete(old)
			_ = idx.meta.Put(newID, rec)
			if idx.metaIdx != nil {
				_ = idx.metaIdx.Delete(old)
				_ = idx.metaIdx.Put(newID, rec)
			}
		}
	}
}

// rebuildGraph replays every live vector's Insert into a fresh graph,
// since compaction changes the id space the persisted adjacency was built
// over (spec §4.3: "a deleted node is fully removed only when the index
// is rebuilt from the surviving vectors on compaction").
func rebuildGraph(cfg *config.Config, dense *storage.Store, pairDist hnsw.PairDistanceFunc) *hnsw.Graph {
	g := hnsw.New(cfg.HNSWConfig(), pairDist)
	for id := storage.VectorId(1); id <= dense.NextID(); id++ {
		g.Insert(id)
	}
	return g
}
