// Package strategy implements the filter strategy selector (spec §4.6):
// given a parsed filter predicate and an index size, it estimates the
// predicate's selectivity and chooses between pre-filter, post-filter, and
// hybrid execution.
package strategy

import (
	"math"

	"github.com/edgevec/edgevec/internal/filter"
	"github.com/edgevec/edgevec/internal/metadata"
)

// Selectivity heuristics for leaf predicates lacking a Histogram override
// (spec §4.6: "range predicates default to 0.3, equality 0.05, etc.").
const (
	DefaultEqualitySelectivity = 0.05
	DefaultRangeSelectivity    = 0.3
)

// Dispatch thresholds and bounds (spec §4.6). Boundary equality goes to the
// less-work side: s == PreFilterThreshold still pre-filters, s ==
// PostFilterThreshold still post-filters.
const (
	PreFilterThreshold  = 0.05
	PostFilterThreshold = 0.80
	MaxOversample       = 10
	EfCap               = 1000
)

// DefaultHybridCandidateBudget bounds how many ids a hybrid-mode pre-filter
// pass may materialize before the façade falls back to post-filter instead
// (spec §4.6: "fall back to post-filter if the pre-filter set exceeds the
// budget"). The spec does not fix this number; it is sized to stay well
// under the cost of a full post-filter ef=1000 scan on a 100k-vector index,
// and callers can override it through Select's hybridBudget argument.
const DefaultHybridCandidateBudget = 20000

// Histogram supplies real per-predicate selectivity estimates, overriding
// the fixed heuristics above. This is the pluggable realization of spec §9's
// open "exact histogram interface ... not fixed by the source" — a caller
// (internal/metaindex, or a test double) implements it and passes it to
// Estimate/SelectForFilter. A nil Histogram (or one that returns ok=false for a given
// leaf) falls back to the fixed heuristics for that leaf.
type Histogram interface {
	// EqualitySelectivity estimates the fraction of records matching
	// field == value, or ok=false if this histogram has no data for field
	// or value.
	EqualitySelectivity(field string, value metadata.Value) (s float64, ok bool)
	// RangeSelectivity estimates the fraction of records matching a range
	// or BETWEEN predicate (field op value, or field BETWEEN value AND
	// high), or ok=false if unknown. high is the zero Value outside
	// BETWEEN.
	RangeSelectivity(field string, op filter.CompareOp, value, high metadata.Value) (s float64, ok bool)
}

// Mode is the chosen execution strategy for a filtered search.
type Mode int

const (
	// ModePreFilter materializes the full matching id-set first, then
	// searches HNSW restricted to it via the visitation mask.
	ModePreFilter Mode = iota
	// ModePostFilter searches HNSW unrestricted for an oversampled k, then
	// filters the results.
	ModePostFilter
	// ModeHybrid pre-filters with a bounded candidate budget, falling back
	// to post-filter if that set exceeds the budget.
	ModeHybrid
)

func (m Mode) String() string {
	switch m {
	case ModePreFilter:
		return "pre-filter"
	case ModePostFilter:
		return "post-filter"
	case ModeHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// Decision is the selector's output: which mode to run, and the parameters
// that mode needs.
type Decision struct {
	Mode Mode
	// Selectivity is the estimated s that produced this decision.
	Selectivity float64
	// Oversample is the post-filter candidate multiplier k*Oversample,
	// clamped to [1, MaxOversample] and rounded up to an integer (only
	// meaningful when Mode == ModePostFilter).
	Oversample int
	// Ef is the HNSW ef to search with (only meaningful when Mode ==
	// ModePostFilter).
	Ef int
	// CandidateBudget is the pre-filter materialization cap before falling
	// back to post-filter (only meaningful when Mode == ModeHybrid).
	CandidateBudget int
}

// Estimate computes a deterministic selectivity estimate for e, using hist
// for leaf predicates it has data for and the fixed heuristics otherwise.
// hist may be nil. Conjunctions multiply; disjunctions use an
// inclusion-exclusion ceiling (min(1, sum)); NOT inverts (1-s).
func Estimate(e filter.Expr, hist Histogram) float64 {
	switch v := e.(type) {
	case *filter.AndExpr:
		return Estimate(v.Left, hist) * Estimate(v.Right, hist)
	case *filter.OrExpr:
		s := Estimate(v.Left, hist) + Estimate(v.Right, hist)
		if s > 1 {
			s = 1
		}
		return s
	case *filter.NotExpr:
		return 1 - Estimate(v.Operand, hist)
	case *filter.Comparison:
		return estimateComparison(v, hist)
	case *filter.Membership:
		return estimateMembership(v, hist)
	case *filter.NullTest:
		// Neither a range nor an equality predicate; spec is silent here.
		// Treated as maximally uninformative (matches half the index) since
		// a null-ness split has no a-priori skew to assume.
		return 0.5
	default:
		return 1
	}
}

func estimateComparison(c *filter.Comparison, hist Histogram) float64 {
	if c.Op == filter.OpEq {
		if hist != nil {
			if s, ok := hist.EqualitySelectivity(c.Field, c.Value); ok {
				return s
			}
		}
		return DefaultEqualitySelectivity
	}
	if c.Op == filter.OpNe {
		return 1 - estimateComparison(&filter.Comparison{Field: c.Field, Op: filter.OpEq, Value: c.Value}, hist)
	}
	// <, <=, >, >=, BETWEEN are all range predicates.
	if hist != nil {
		if s, ok := hist.RangeSelectivity(c.Field, c.Op, c.Value, c.High); ok {
			return s
		}
	}
	return DefaultRangeSelectivity
}

func estimateMembership(m *filter.Membership, hist Histogram) float64 {
	switch m.Op {
	case filter.OpIn, filter.OpAny:
		// A multi-valued equality: each value contributes its own equality
		// selectivity, unioned via inclusion-exclusion.
		s := 0.0
		for _, v := range m.Values {
			base := DefaultEqualitySelectivity
			if hist != nil {
				if hs, ok := hist.EqualitySelectivity(m.Field, v); ok {
					base = hs
				}
			}
			s += base
		}
		if s > 1 {
			s = 1
		}
		return s
	case filter.OpNotIn:
		return 1 - estimateMembership(&filter.Membership{Field: m.Field, Op: filter.OpIn, Values: m.Values}, hist)
	default:
		return DefaultRangeSelectivity
	}
}

// Select chooses an execution mode given an already-estimated selectivity s,
// the requested result count k, and the hybrid candidate budget to apply
// (pass DefaultHybridCandidateBudget absent a caller override).
func Select(s float64, k int, hybridBudget int) Decision {
	switch {
	case s <= PreFilterThreshold:
		return Decision{Mode: ModePreFilter, Selectivity: s}
	case s >= PostFilterThreshold:
		oversample := clampOversample(s)
		ef := k * oversample
		if ef > EfCap {
			ef = EfCap
		}
		return Decision{Mode: ModePostFilter, Selectivity: s, Oversample: oversample, Ef: ef}
	default:
		if hybridBudget <= 0 {
			hybridBudget = DefaultHybridCandidateBudget
		}
		return Decision{Mode: ModeHybrid, Selectivity: s, CandidateBudget: hybridBudget}
	}
}

// SelectForFilter is the convenience entry point: estimate e's selectivity
// and dispatch in one call.
func SelectForFilter(e filter.Expr, hist Histogram, k int, hybridBudget int) Decision {
	return Select(Estimate(e, hist), k, hybridBudget)
}

func clampOversample(s float64) int {
	raw := 1 / s
	if raw < 1 {
		raw = 1
	}
	if raw > MaxOversample {
		raw = MaxOversample
	}
	return int(math.Ceil(raw))
}
