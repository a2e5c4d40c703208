package edgevec

import (
	"errors"
	"fmt"
	"math"

	"github.com/edgevec/edgevec/internal/errs"
	"github.com/edgevec/edgevec/internal/filter"
	"github.com/edgevec/edgevec/internal/hnsw"
	"github.com/edgevec/edgevec/internal/metadata"
	"github.com/edgevec/edgevec/internal/metaindex"
	"github.com/edgevec/edgevec/internal/simil"
	"github.com/edgevec/edgevec/internal/storage"
	"github.com/edgevec/edgevec/internal/strategy"
)

// Search returns up to k vectors nearest q by cosine distance. ef is the
// beam width; 0 uses the index's configured EfSearch.
func (idx *Index) Search(q []float32, k, ef int) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.dense.Len() == 0 {
		return nil, errs.ErrIndexNotReady
	}
	if len(q) != idx.dense.Dim() {
		return nil, fmt.Errorf("%w: got %d, want %d", errs.ErrDimensionMismatch, len(q), idx.dense.Dim())
	}
	if ef <= 0 {
		ef = idx.cfg.EfSearch
	}

	dist := func(cand storage.VectorId) float32 {
		return simil.CosineDistance(q, idx.dense.GetRaw(cand))
	}
	cands := idx.graph.Search(dist, k, ef, idx.dense.Live)
	return idx.decorate(cands), nil
}

// SearchWithFilter runs q through the index restricted to vectors whose
// metadata record satisfies filterExpr, dispatching to pre-filter,
// post-filter, or hybrid execution per spec §4.6's selectivity thresholds.
func (idx *Index) SearchWithFilter(q []float32, k int, filterExpr string) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.dense.Len() == 0 {
		return nil, errs.ErrIndexNotReady
	}
	if len(q) != idx.dense.Dim() {
		return nil, fmt.Errorf("%w: got %d, want %d", errs.ErrDimensionMismatch, len(q), idx.dense.Dim())
	}

	var p filter.Parser
	p.MaxLength = idx.cfg.FilterMaxLength
	p.MaxDepth = idx.cfg.FilterMaxDepth
	expr, err := p.Parse(filterExpr)
	if err != nil {
		return nil, err
	}

	var hist strategy.Histogram
	if idx.metaIdx != nil {
		hist = idx.metaIdx
	}
	decision := strategy.SelectForFilter(expr, hist, k, idx.cfg.HybridCandidateBudget)

	dist := func(cand storage.VectorId) float32 {
		return simil.CosineDistance(q, idx.dense.GetRaw(cand))
	}

	switch decision.Mode {
	case strategy.ModePreFilter:
		admit, err := idx.buildFilterAdmit(expr, 0)
		if err != nil {
			return nil, err
		}
		ef := idx.cfg.EfSearch
		if ef < k {
			ef = k
		}
		return idx.decorate(idx.graph.Search(dist, k, ef, admit)), nil

	case strategy.ModePostFilter:
		admit, err := idx.buildFilterAdmit(expr, 0)
		if err != nil {
			return nil, err
		}
		ef := decision.Ef
		if ef > strategy.EfCap {
			ef = strategy.EfCap
		}
		searchK := k * decision.Oversample
		cands := idx.graph.Search(dist, searchK, ef, idx.dense.Live)
		return idx.decorate(filterCandidates(cands, admit, k)), nil

	default: // ModeHybrid: pre-filter bounded by CandidateBudget, else fall back to post-filter.
		admit, err := idx.buildFilterAdmit(expr, decision.CandidateBudget)
		if errors.Is(err, errBudgetExceeded) {
			oversample := hybridFallbackOversample(decision.Selectivity)
			ef := k * oversample
			if ef > strategy.EfCap {
				ef = strategy.EfCap
			}
			fallbackAdmit, ferr := idx.buildFilterAdmit(expr, 0)
			if ferr != nil {
				return nil, ferr
			}
			cands := idx.graph.Search(dist, k*oversample, ef, idx.dense.Live)
			return idx.decorate(filterCandidates(cands, fallbackAdmit, k)), nil
		}
		if err != nil {
			return nil, err
		}
		ef := idx.cfg.EfSearch
		if ef < k {
			ef = k
		}
		return idx.decorate(idx.graph.Search(dist, k, ef, admit)), nil
	}
}

// errBudgetExceeded signals that a bounded pre-filter scan found more
// matching ids than its budget allowed, per spec §4.6's hybrid-mode
// fallback rule.
var errBudgetExceeded = errors.New("edgevec: filter candidate budget exceeded")

// buildFilterAdmit materializes the set of live ids matching expr, as an
// admit predicate (spec §4.6's pre-filter materialization). When the
// façade has a metaindex attached and expr is a single equality or IN
// membership atom over one of its indexed fields, the set comes from a
// constant-ish MatchingIDs term lookup instead of a full scan — the actual
// payoff of ModePreFilter's low-selectivity dispatch (see
// indexedMatchIDs). Every other shape falls back to the linear scan: every
// live id's metadata record is fetched and expr evaluated against it via
// filter.EvalWithOptions. A filter.Eval type error on any scanned record
// aborts the scan and is returned as-is, matching the external-interface
// contract's FilterError outcome for search_with_filter. budget, if
// positive, aborts early with errBudgetExceeded once more than budget ids
// have matched — the hybrid mode's bounded pre-filter pass.
func (idx *Index) buildFilterAdmit(expr filter.Expr, budget int) (func(storage.VectorId) bool, error) {
	if idx.metaIdx != nil {
		if ids, ok, err := idx.indexedMatchIDs(expr); ok {
			if err != nil {
				return nil, err
			}
			matched := make(map[storage.VectorId]bool, len(ids))
			for _, id := range ids {
				if idx.dense.Live(id) {
					matched[id] = true
				}
			}
			if budget > 0 && len(matched) > budget {
				return nil, errBudgetExceeded
			}
			return func(id storage.VectorId) bool { return matched[id] }, nil
		}
	}

	matched := make(map[storage.VectorId]bool)
	for id := storage.VectorId(1); id <= idx.dense.NextID(); id++ {
		if !idx.dense.Live(id) {
			continue
		}
		rec, ok := idx.meta.Get(id)
		if !ok {
			rec = metadata.Record{}
		}
		matches, err := filter.EvalWithOptions(expr, rec, idx.filterOpts)
		if err != nil {
			return nil, err
		}
		if matches {
			matched[id] = true
			if budget > 0 && len(matched) > budget {
				return nil, errBudgetExceeded
			}
		}
	}
	return func(id storage.VectorId) bool { return matched[id] }, nil
}

// indexedMatchIDs attempts to serve expr directly from idx.metaIdx's term
// index, returning ok=false (no error) for any shape the index can't
// answer — compound boolean expressions, comparisons other than equality,
// NOT IN / ANY membership, NULL tests, or equality/membership on a field
// metaIdx wasn't built with — so the caller falls back to the linear scan.
// This is what makes ModePreFilter's selectivity-driven dispatch actually
// pay off: an equality or IN predicate on an indexed field resolves via a
// bleve term query instead of evaluating every live record.
func (idx *Index) indexedMatchIDs(expr filter.Expr) (ids []storage.VectorId, ok bool, err error) {
	switch e := expr.(type) {
	case *filter.Comparison:
		if e.Op != filter.OpEq || !idx.metaIdx.HasField(e.Field) {
			return nil, false, nil
		}
		term, termOK := metaindex.TermFor(e.Value)
		if !termOK {
			return nil, false, nil
		}
		hits, err := idx.metaIdx.MatchingIDs(e.Field, term)
		if err != nil {
			return nil, true, err
		}
		return hits, true, nil

	case *filter.Membership:
		if e.Op != filter.OpIn || !idx.metaIdx.HasField(e.Field) {
			return nil, false, nil
		}
		seen := make(map[storage.VectorId]bool)
		for _, v := range e.Values {
			term, termOK := metaindex.TermFor(v)
			if !termOK {
				// One non-scalar element makes the whole IN list
				// unservable by a term index; fall back rather than
				// silently drop candidates it could have matched.
				return nil, false, nil
			}
			hits, err := idx.metaIdx.MatchingIDs(e.Field, term)
			if err != nil {
				return nil, true, err
			}
			for _, id := range hits {
				seen[id] = true
			}
		}
		out := make([]storage.VectorId, 0, len(seen))
		for id := range seen {
			out = append(out, id)
		}
		return out, true, nil

	default:
		return nil, false, nil
	}
}

// filterCandidates keeps only the admit-passing candidates, in their
// existing distance order, truncated to k — the post-filter path's second
// pass over an oversampled result set.
func filterCandidates(cands []hnsw.Candidate, admit func(storage.VectorId) bool, k int) []hnsw.Candidate {
	out := make([]hnsw.Candidate, 0, k)
	for _, c := range cands {
		if admit(c.ID) {
			out = append(out, c)
			if len(out) == k {
				break
			}
		}
	}
	return out
}

// hybridFallbackOversample mirrors internal/strategy's own post-filter
// oversample formula (1/s, clamped to [1, MaxOversample]) for the case
// where hybrid mode's pre-filter pass overflowed its budget and must fall
// back to a post-filter-shaped search instead.
func hybridFallbackOversample(s float64) int {
	if s <= 0 {
		return strategy.MaxOversample
	}
	raw := math.Ceil(1 / s)
	if raw < 1 {
		raw = 1
	}
	if raw > strategy.MaxOversample {
		raw = strategy.MaxOversample
	}
	return int(raw)
}

// decorate attaches each candidate's metadata record, in distance order.
func (idx *Index) decorate(cands []hnsw.Candidate) []Result {
	out := make([]Result, len(cands))
	for i, c := range cands {
		rec, _ := idx.meta.Get(c.ID)
		out[i] = Result{ID: c.ID, Distance: c.Distance, Metadata: rec}
	}
	return out
}
