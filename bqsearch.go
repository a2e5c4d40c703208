package edgevec

import (
	"fmt"

	"github.com/edgevec/edgevec/internal/bq"
	"github.com/edgevec/edgevec/internal/errs"
	"github.com/edgevec/edgevec/internal/storage"
)

// EnableBQ turns on binary quantization, building a sketch from the dense
// buffer for every assigned id, tombstoned rows included, so sketch ids
// line up with dense ids. Safe to call on a
// non-empty index; subsequent Insert calls keep the BQ store in lockstep
// automatically.
func (idx *Index) EnableBQ() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.bqStore != nil {
		return nil
	}
	store := bq.New(idx.dense.Dim())
	for id := storage.VectorId(1); id <= idx.dense.NextID(); id++ {
		v := idx.dense.GetRaw(id)
		if _, err := store.Insert(v); err != nil {
			return fmt.Errorf("edgevec: enable bq: %w", err)
		}
	}
	idx.bqStore = store
	return nil
}

// DisableBQ drops the BQ sketch store. A later EnableBQ rebuilds it from
// scratch.
func (idx *Index) DisableBQ() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.bqStore = nil
}

// SearchBQ runs the oversampled binary-quantized search described in spec
// §4.4: Hamming-distance HNSW traversal over the BQ sketches, rescored
// against exact F32 vectors. An oversample <= 0 uses the configured
// BQOversample. Returns ErrBQNotEnabled if EnableBQ has not been called.
func (idx *Index) SearchBQ(q []float32, k, oversample int) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.bqStore == nil {
		return nil, errs.ErrBQNotEnabled
	}
	if idx.dense.Len() == 0 {
		return nil, errs.ErrIndexNotReady
	}
	if oversample <= 0 {
		oversample = idx.cfg.BQOversample
	}
	ef := idx.cfg.EfSearch
	cands, err := bq.Search(idx.graph, idx.bqStore, idx.dense, q, k, oversample, ef, idx.dense.Live)
	if err != nil {
		return nil, err
	}
	return idx.decorate(cands), nil
}
