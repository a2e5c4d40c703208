package strategy

import (
	"math"
	"testing"

	"github.com/edgevec/edgevec/internal/filter"
	"github.com/edgevec/edgevec/internal/metadata"
)

func mustParse(t *testing.T, s string) filter.Expr {
	t.Helper()
	e, err := filter.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return e
}

func TestEstimateEqualityDefault(t *testing.T) {
	e := mustParse(t, `category = "a"`)
	s := Estimate(e, nil)
	if s != DefaultEqualitySelectivity {
		t.Fatalf("Estimate = %v, want %v", s, DefaultEqualitySelectivity)
	}
}

func TestEstimateRangeDefault(t *testing.T) {
	e := mustParse(t, `price > 10`)
	s := Estimate(e, nil)
	if s != DefaultRangeSelectivity {
		t.Fatalf("Estimate = %v, want %v", s, DefaultRangeSelectivity)
	}
}

func TestEstimateConjunctionMultiplies(t *testing.T) {
	e := mustParse(t, `category = "a" AND color = "b"`)
	s := Estimate(e, nil)
	want := DefaultEqualitySelectivity * DefaultEqualitySelectivity
	if math.Abs(s-want) > 1e-9 {
		t.Fatalf("Estimate = %v, want %v", s, want)
	}
}

func TestEstimateDisjunctionInclusionExclusionCeiling(t *testing.T) {
	e := mustParse(t, `price > 10 OR price < 5`)
	s := Estimate(e, nil)
	want := DefaultRangeSelectivity + DefaultRangeSelectivity
	if math.Abs(s-want) > 1e-9 {
		t.Fatalf("Estimate = %v, want %v", s, want)
	}

	// Enough disjuncts to exceed 1 get ceilinged.
	e2 := mustParse(t, `a = 1 OR b = 1 OR c = 1 OR d = 1 OR e = 1 OR f = 1 OR g = 1 OR h = 1 OR i = 1 OR j = 1 OR k = 1 OR l = 1 OR m = 1 OR n = 1 OR o = 1 OR p = 1 OR q = 1 OR r = 1 OR s = 1 OR u = 1 OR v = 1`)
	if Estimate(e2, nil) != 1 {
		t.Fatalf("Estimate of many disjuncts should ceiling at 1, got %v", Estimate(e2, nil))
	}
}

type fakeHistogram struct {
	eq  map[string]float64
	rng map[string]float64
}

func (h fakeHistogram) EqualitySelectivity(field string, value metadata.Value) (float64, bool) {
	s, ok := h.eq[field]
	return s, ok
}

func (h fakeHistogram) RangeSelectivity(field string, op filter.CompareOp, value, high metadata.Value) (float64, bool) {
	s, ok := h.rng[field]
	return s, ok
}

func TestHistogramOverridesDefault(t *testing.T) {
	e := mustParse(t, `category = "a"`)
	hist := fakeHistogram{eq: map[string]float64{"category": 0.9}}
	s := Estimate(e, hist)
	if s != 0.9 {
		t.Fatalf("Estimate with histogram = %v, want 0.9", s)
	}
}

func TestHistogramMissingFieldFallsBackToDefault(t *testing.T) {
	e := mustParse(t, `other = "a"`)
	hist := fakeHistogram{eq: map[string]float64{"category": 0.9}}
	s := Estimate(e, hist)
	if s != DefaultEqualitySelectivity {
		t.Fatalf("Estimate = %v, want default %v", s, DefaultEqualitySelectivity)
	}
}

func TestSelectPreFilterBelowThreshold(t *testing.T) {
	d := Select(0.02, 10, 0)
	if d.Mode != ModePreFilter {
		t.Fatalf("Mode = %v, want ModePreFilter", d.Mode)
	}
}

func TestSelectPreFilterAtBoundaryGoesToLessWork(t *testing.T) {
	d := Select(PreFilterThreshold, 10, 0)
	if d.Mode != ModePreFilter {
		t.Fatalf("Mode at boundary 0.05 = %v, want ModePreFilter (ties go to less work)", d.Mode)
	}
}

func TestSelectPostFilterAtBoundaryGoesToLessWork(t *testing.T) {
	d := Select(PostFilterThreshold, 10, 0)
	if d.Mode != ModePostFilter {
		t.Fatalf("Mode at boundary 0.80 = %v, want ModePostFilter (ties go to less work)", d.Mode)
	}
}

func TestSelectHybridBetweenThresholds(t *testing.T) {
	d := Select(0.5, 10, 0)
	if d.Mode != ModeHybrid {
		t.Fatalf("Mode = %v, want ModeHybrid", d.Mode)
	}
	if d.CandidateBudget != DefaultHybridCandidateBudget {
		t.Fatalf("CandidateBudget = %d, want default %d", d.CandidateBudget, DefaultHybridCandidateBudget)
	}
}

func TestSelectHybridCustomBudget(t *testing.T) {
	d := Select(0.5, 10, 123)
	if d.CandidateBudget != 123 {
		t.Fatalf("CandidateBudget = %d, want 123", d.CandidateBudget)
	}
}

// TestSelectivity90PercentMatchesSpecS6 is spec §8's scenario S6: for
// selectivity 0.9, post-filter is chosen with ef = min(k*ceil(1/0.9), 1000).
func TestSelectivity90PercentMatchesSpecS6(t *testing.T) {
	d := Select(0.9, 10, 0)
	if d.Mode != ModePostFilter {
		t.Fatalf("Mode = %v, want ModePostFilter", d.Mode)
	}
	if d.Oversample != 2 {
		t.Fatalf("Oversample = %d, want 2 (ceil(1/0.9))", d.Oversample)
	}
	if d.Ef != 20 {
		t.Fatalf("Ef = %d, want 20", d.Ef)
	}
}

func TestSelectivity02PercentMatchesSpecS6(t *testing.T) {
	d := Select(0.02, 10, 0)
	if d.Mode != ModePreFilter {
		t.Fatalf("Mode = %v, want ModePreFilter", d.Mode)
	}
}

func TestOversampleClampedToMax(t *testing.T) {
	d := Select(0.81, 10, 0)
	if d.Oversample > MaxOversample {
		t.Fatalf("Oversample = %d, exceeds MaxOversample %d", d.Oversample, MaxOversample)
	}
}

func TestEfCappedAtEfCap(t *testing.T) {
	d := Select(0.81, 10000, 0)
	if d.Ef > EfCap {
		t.Fatalf("Ef = %d, exceeds EfCap %d", d.Ef, EfCap)
	}
}

func TestSelectForFilterEndToEnd(t *testing.T) {
	e := mustParse(t, `category = "a"`)
	d := SelectForFilter(e, nil, 10, 0)
	if d.Mode != ModePreFilter {
		t.Fatalf("single equality predicate should pre-filter, got %v (s=%v)", d.Mode, d.Selectivity)
	}
}
