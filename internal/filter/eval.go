package filter

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/edgevec/edgevec/internal/errs"
	"github.com/edgevec/edgevec/internal/metadata"
)

// Options configures optional, opt-in evaluator behavior. The zero value
// (nil *Options, or an empty Options) reproduces plain byte-wise string
// comparison and does not change spec semantics.
type Options struct {
	// CaseInsensitive folds case before string equality/membership checks
	// (via golang.org/x/text/cases.Fold).
	CaseInsensitive bool
	// Collator, if set, orders string <, <=, >, >=, BETWEEN comparisons by
	// locale collation (golang.org/x/text/collate) instead of raw byte
	// comparison.
	Collator *collate.Collator
}

// NewCollator builds an Options.Collator for the given locale tag.
func NewCollator(tag language.Tag) *collate.Collator {
	return collate.New(tag)
}

// Eval evaluates e against rec using default (byte-wise, case-sensitive)
// string semantics.
func Eval(e Expr, rec metadata.Record) (bool, error) {
	return EvalWithOptions(e, rec, nil)
}

// EvalWithOptions evaluates e against rec under opts. Boolean operators
// short-circuit: AND/OR skip evaluating their right operand once the left
// operand already fixes the result (spec §4.6).
func EvalWithOptions(e Expr, rec metadata.Record, opts *Options) (bool, error) {
	switch v := e.(type) {
	case *OrExpr:
		l, err := EvalWithOptions(v.Left, rec, opts)
		if err != nil {
			return false, err
		}
		if l {
			return true, nil
		}
		return EvalWithOptions(v.Right, rec, opts)

	case *AndExpr:
		l, err := EvalWithOptions(v.Left, rec, opts)
		if err != nil {
			return false, err
		}
		if !l {
			return false, nil
		}
		return EvalWithOptions(v.Right, rec, opts)

	case *NotExpr:
		r, err := EvalWithOptions(v.Operand, rec, opts)
		if err != nil {
			return false, err
		}
		return !r, nil

	case *Comparison:
		return evalComparison(v, rec, opts)

	case *Membership:
		return evalMembership(v, rec, opts)

	case *NullTest:
		isNull := rec.Get(v.Field).Kind == metadata.KindNull
		if v.Negate {
			return !isNull, nil
		}
		return isNull, nil

	default:
		return false, fmt.Errorf("edgevec: filter: unhandled expr type %T", e)
	}
}

// evalComparison implements spec §4.6's rule: "comparisons against a
// missing field yield false (not null-propagation)".
func evalComparison(c *Comparison, rec metadata.Record, opts *Options) (bool, error) {
	val := rec.Get(c.Field)
	if val.Kind == metadata.KindNull {
		return false, nil
	}

	if c.Op == OpBetween {
		cmpLo, err := compareValues(val, c.Value, opts)
		if err != nil {
			return false, err
		}
		cmpHi, err := compareValues(val, c.High, opts)
		if err != nil {
			return false, err
		}
		return cmpLo >= 0 && cmpHi <= 0, nil
	}

	cmp, err := compareValues(val, c.Value, opts)
	if err != nil {
		return false, err
	}
	switch c.Op {
	case OpEq:
		return cmp == 0, nil
	case OpNe:
		return cmp != 0, nil
	case OpLt:
		return cmp < 0, nil
	case OpLe:
		return cmp <= 0, nil
	case OpGt:
		return cmp > 0, nil
	case OpGe:
		return cmp >= 0, nil
	default:
		return false, nil
	}
}

func evalMembership(m *Membership, rec metadata.Record, opts *Options) (bool, error) {
	val := rec.Get(m.Field)

	if m.Op == OpAny {
		if val.Kind != metadata.KindStringArray {
			return false, nil
		}
		for _, lit := range m.Values {
			if lit.Kind != metadata.KindString {
				continue
			}
			for _, item := range val.Strs {
				if stringEqual(item, lit.Str, opts) {
					return true, nil
				}
			}
		}
		return false, nil
	}

	// IN / NOT IN: a missing field never matches, so IN is false and
	// NOT IN is also false — consistent with comparisons' "missing field
	// yields false, never propagates" rule rather than negating to true.
	if val.Kind == metadata.KindNull {
		return false, nil
	}
	matched := false
	for _, lit := range m.Values {
		cmp, err := compareValues(val, lit, opts)
		if err != nil {
			continue // incompatible-kind element: simply not a match
		}
		if cmp == 0 {
			matched = true
			break
		}
	}
	if m.Op == OpNotIn {
		return !matched, nil
	}
	return matched, nil
}

// compareValues orders two metadata values under spec §4.6's coercion
// rules: integer<->float is implicit, string<->number is never implicit,
// boolean is distinct. Incompatible kinds return ErrFilterTypeError.
func compareValues(a, b metadata.Value, opts *Options) (int, error) {
	if af, aok := a.AsFloat(); aok {
		if bf, bok := b.AsFloat(); bok {
			switch {
			case af < bf:
				return -1, nil
			case af > bf:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}
	if a.Kind == metadata.KindString && b.Kind == metadata.KindString {
		as, bs := a.Str, b.Str
		if opts != nil && opts.CaseInsensitive {
			as, bs = cases.Fold().String(as), cases.Fold().String(bs)
		}
		if opts != nil && opts.Collator != nil {
			return opts.Collator.CompareString(as, bs), nil
		}
		return strings.Compare(as, bs), nil
	}
	if a.Kind == metadata.KindBool && b.Kind == metadata.KindBool {
		switch {
		case a.Bool == b.Bool:
			return 0, nil
		case !a.Bool:
			return -1, nil
		default:
			return 1, nil
		}
	}
	return 0, fmt.Errorf("%w: cannot compare %v and %v", errs.ErrFilterTypeError, a.Kind, b.Kind)
}

func stringEqual(a, b string, opts *Options) bool {
	if opts != nil && opts.CaseInsensitive {
		a, b = cases.Fold().String(a), cases.Fold().String(b)
	}
	return a == b
}
