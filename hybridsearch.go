package edgevec

import (
	"fmt"

	"github.com/edgevec/edgevec/internal/errs"
	"github.com/edgevec/edgevec/internal/hybrid"
	"github.com/edgevec/edgevec/internal/simil"
	"github.com/edgevec/edgevec/internal/sparse"
	"github.com/edgevec/edgevec/internal/sparsesearch"
	"github.com/edgevec/edgevec/internal/storage"
)

// FusionKind selects how HybridSearch combines its dense and sparse legs.
type FusionKind int

const (
	// FusionRRF fuses by Reciprocal Rank Fusion (rank-based, alpha unused).
	FusionRRF FusionKind = iota
	// FusionLinear fuses by min-max-normalized weighted score sum.
	FusionLinear
)

// HybridSearch runs both a dense HNSW search and a brute-force sparse
// search, each requesting hybrid.LegK(k) candidates, and fuses the two
// ranked lists per spec §4.7. alpha is only consulted for FusionLinear
// (dense weight, [0,1]).
func (idx *Index) HybridSearch(qDense []float32, qSparse sparse.Vector, k int, fusion FusionKind, alpha float64) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.dense.Len() == 0 {
		return nil, errs.ErrIndexNotReady
	}
	if idx.sparse == nil {
		return nil, fmt.Errorf("edgevec: hybrid search: index has no sparse store")
	}
	if len(qDense) != idx.dense.Dim() {
		return nil, fmt.Errorf("%w: got %d, want %d", errs.ErrDimensionMismatch, len(qDense), idx.dense.Dim())
	}

	legK := hybrid.LegK(k)
	ef := idx.cfg.EfSearch
	if ef < legK {
		ef = legK
	}

	dist := func(cand storage.VectorId) float32 {
		return simil.CosineDistance(qDense, idx.dense.GetRaw(cand))
	}
	denseCands := idx.graph.Search(dist, legK, ef, idx.dense.Live)
	denseRanked := make([]hybrid.Ranked, len(denseCands))
	for i, c := range denseCands {
		// Distance is ascending-closer; convert to an ascending-better
		// similarity score for Linear fusion's min-max normalization.
		denseRanked[i] = hybrid.Ranked{ID: c.ID, Score: float64(-c.Distance)}
	}

	sparseHits := sparsesearch.Search(idx.sparse, qSparse, legK, idx.dense.Live)
	sparseRanked := make([]hybrid.Ranked, len(sparseHits))
	for i, h := range sparseHits {
		sparseRanked[i] = hybrid.Ranked{ID: h.ID, Score: float64(h.Score)}
	}

	var fused []hybrid.Fused
	switch fusion {
	case FusionLinear:
		fused = hybrid.Linear(denseRanked, sparseRanked, alpha)
	default:
		fused = hybrid.RRF(denseRanked, sparseRanked, idx.cfg.HybridKRRF)
	}
	if len(fused) > k {
		fused = fused[:k]
	}

	out := make([]Result, len(fused))
	for i, f := range fused {
		rec, _ := idx.meta.Get(f.ID)
		out[i] = Result{ID: f.ID, Distance: float32(-f.Score), Metadata: rec}
	}
	return out, nil
}
