package edgevec

import (
	"fmt"

	"github.com/edgevec/edgevec/internal/metadata"
	"github.com/edgevec/edgevec/internal/sparse"
	"github.com/edgevec/edgevec/internal/storage"
)

// Insert adds a dense vector (and, optionally, a sparse companion and
// metadata record) to the index, returning its assigned id. When the
// index was built with sparse support but sparseVec is nil, an empty
// sparse.Vector is inserted in its place so the dense, sparse, and BQ
// stores stay in 1:1 id lockstep (the same discipline internal/bq.Store's
// own doc comment requires of callers: "called in lockstep with the dense
// store's Insert so ids line up").
func (idx *Index) Insert(v []float32, sparseVec *sparse.Vector, meta metadata.Record) (storage.VectorId, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.insertLocked(v, sparseVec, meta)
}

func (idx *Index) insertLocked(v []float32, sparseVec *sparse.Vector, meta metadata.Record) (storage.VectorId, error) {
	id, err := idx.dense.Insert(v)
	if err != nil {
		return 0, err
	}

	if idx.bqStore != nil {
		if _, err := idx.bqStore.Insert(v); err != nil {
			return 0, fmt.Errorf("edgevec: bq insert: %w", err)
		}
	}

	if idx.sparse != nil {
		sv := sparse.Vector{}
		if sparseVec != nil {
			sv = *sparseVec
		}
		if _, err := idx.sparse.Insert(sv); err != nil {
			return 0, fmt.Errorf("edgevec: sparse insert: %w", err)
		}
	}

	if meta != nil {
		if err := idx.meta.Put(id, meta); err != nil {
			return 0, fmt.Errorf("edgevec: metadata put: %w", err)
		}
		if idx.metaIdx != nil {
			if err := idx.metaIdx.Put(id, meta); err != nil {
				return 0, fmt.Errorf("edgevec: metadata index put: %w", err)
			}
		}
	}

	idx.graph.Insert(id)
	return id, nil
}

// InsertItem is one element of an InsertBatch call.
type InsertItem struct {
	Vector []float32
	Sparse *sparse.Vector
	Meta   metadata.Record
}

// InsertBatch inserts items one at a time under a single lock acquisition,
// mirroring the teacher's own batch-insert loop
// (internal/vectordb/hnsw.go's InsertBatch). A per-item failure (dimension
// mismatch, non-finite value) does not abort the batch: the failing item
// gets id 0 in the returned slice, progress (if non-nil) is told about the
// error, and the remaining items are still attempted. InsertBatch never
// returns a top-level error; check the per-item ids and use progress to
// learn what failed.
func (idx *Index) InsertBatch(items []InsertItem, progress func(i int, id storage.VectorId, err error)) []storage.VectorId {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	ids := make([]storage.VectorId, len(items))
	for i, it := range items {
		id, err := idx.insertLocked(it.Vector, it.Sparse, it.Meta)
		ids[i] = id
		if progress != nil {
			progress(i, id, err)
		}
	}
	return ids
}

// Delete soft-deletes id from every store it lives in (dense, sparse,
// metadata, the optional metadata index). BQ carries no deletion bitmap
// of its own — it mirrors the dense store's indexing exactly and relies
// on the dense tombstone, consistent with spec §4.3's policy of leaving
// graph edges to tombstones alone until Compact. Returns false if id was
// never assigned or already deleted.
func (idx *Index) Delete(id storage.VectorId) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.dense.Delete(id) {
		return false
	}
	idx.meta.Delete(id)
	if idx.metaIdx != nil {
		_ = idx.metaIdx.Delete(id)
	}
	if idx.sparse != nil {
		idx.sparse.Delete(id)
	}
	return true
}
