// Package filter implements the SQL-like metadata predicate language from
// spec §4.6: a recursive-descent parser producing an immutable AST, an
// evaluator with short-circuiting boolean operators, and structural
// tautology/contradiction analysis. The AST node shape (a marker interface
// plus tagged concrete struct types) follows the same pattern used by the
// pack's other hand-rolled recursive-descent parser,
// straga-Mimir_lite/nornicdb's Cypher `Expression` interface.
package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/edgevec/edgevec/internal/metadata"
)

// Expr is any node in a parsed filter AST. Concrete types: *OrExpr,
// *AndExpr, *NotExpr, *Comparison, *Membership, *NullTest.
type Expr interface {
	exprMarker()
}

// OrExpr is a short-circuiting logical OR.
type OrExpr struct{ Left, Right Expr }

// AndExpr is a short-circuiting logical AND.
type AndExpr struct{ Left, Right Expr }

// NotExpr negates its operand.
type NotExpr struct{ Operand Expr }

// CompareOp is a scalar comparison operator.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpBetween
)

func (op CompareOp) String() string {
	switch op {
	case OpEq:
		return "="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpBetween:
		return "BETWEEN"
	default:
		return "?"
	}
}

// Comparison is `field op literal` or, for OpBetween, `field BETWEEN lo AND hi`
// (Value holds lo, High holds hi).
type Comparison struct {
	Field string
	Op    CompareOp
	Value metadata.Value
	High  metadata.Value // only meaningful when Op == OpBetween
}

// MembershipOp distinguishes the three membership forms in the grammar.
type MembershipOp int

const (
	OpIn MembershipOp = iota
	OpNotIn
	OpAny // "array contains any of"
)

// Membership is `field IN [...]`, `field NOT IN [...]`, or `field ANY [...]`.
type Membership struct {
	Field  string
	Op     MembershipOp
	Values []metadata.Value
}

// NullTest is `field IS NULL` or `field IS NOT NULL`.
type NullTest struct {
	Field  string
	Negate bool
}

func (*OrExpr) exprMarker()     {}
func (*AndExpr) exprMarker()    {}
func (*NotExpr) exprMarker()    {}
func (*Comparison) exprMarker() {}
func (*Membership) exprMarker() {}
func (*NullTest) exprMarker()   {}

// Depth returns the maximum nesting depth of boolean operators (OR/AND/NOT)
// in e; leaf predicates contribute 0. Used by Parse to enforce the
// configured maximum nesting depth after a full parse (spec §4.6, §9).
func Depth(e Expr) int {
	switch v := e.(type) {
	case *OrExpr:
		return 1 + max(Depth(v.Left), Depth(v.Right))
	case *AndExpr:
		return 1 + max(Depth(v.Left), Depth(v.Right))
	case *NotExpr:
		return 1 + Depth(v.Operand)
	default:
		return 0
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Equal reports whether a and b are structurally identical ASTs. Used by
// IsTautology/IsContradiction to recognize `a OR NOT a` / `a AND NOT a`
// shapes, and by round-trip tests to check Parse(Print(e)) == e.
func Equal(a, b Expr) bool {
	switch av := a.(type) {
	case *OrExpr:
		bv, ok := b.(*OrExpr)
		return ok && Equal(av.Left, bv.Left) && Equal(av.Right, bv.Right)
	case *AndExpr:
		bv, ok := b.(*AndExpr)
		return ok && Equal(av.Left, bv.Left) && Equal(av.Right, bv.Right)
	case *NotExpr:
		bv, ok := b.(*NotExpr)
		return ok && Equal(av.Operand, bv.Operand)
	case *Comparison:
		bv, ok := b.(*Comparison)
		return ok && av.Field == bv.Field && av.Op == bv.Op &&
			valueEqual(av.Value, bv.Value) && valueEqual(av.High, bv.High)
	case *Membership:
		bv, ok := b.(*Membership)
		if !ok || av.Field != bv.Field || av.Op != bv.Op || len(av.Values) != len(bv.Values) {
			return false
		}
		for i := range av.Values {
			if !valueEqual(av.Values[i], bv.Values[i]) {
				return false
			}
		}
		return true
	case *NullTest:
		bv, ok := b.(*NullTest)
		return ok && av.Field == bv.Field && av.Negate == bv.Negate
	default:
		return false
	}
}

func valueEqual(a, b metadata.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case metadata.KindString:
		return a.Str == b.Str
	case metadata.KindInt:
		return a.Int == b.Int
	case metadata.KindFloat:
		return a.Float == b.Float
	case metadata.KindBool:
		return a.Bool == b.Bool
	case metadata.KindStringArray:
		if len(a.Strs) != len(b.Strs) {
			return false
		}
		for i := range a.Strs {
			if a.Strs[i] != b.Strs[i] {
				return false
			}
		}
		return true
	default:
		return true // both Null
	}
}

// isNegationOf reports whether a is structurally `NOT b`.
func isNegationOf(a, b Expr) bool {
	n, ok := a.(*NotExpr)
	return ok && Equal(n.Operand, b)
}

// IsTautology reports whether e is structurally guaranteed to evaluate
// true regardless of the record — recognizing `a OR NOT a` shapes (and
// ORs/ANDs/NOTs built from them), per spec §8 invariant 7.
func IsTautology(e Expr) bool {
	switch v := e.(type) {
	case *OrExpr:
		if isNegationOf(v.Left, v.Right) || isNegationOf(v.Right, v.Left) {
			return true
		}
		return IsTautology(v.Left) || IsTautology(v.Right)
	case *AndExpr:
		return IsTautology(v.Left) && IsTautology(v.Right)
	case *NotExpr:
		return IsContradiction(v.Operand)
	default:
		return false
	}
}

// IsContradiction reports whether e is structurally guaranteed to
// evaluate false regardless of the record — recognizing `a AND NOT a`
// shapes, per spec §8 invariant 7.
func IsContradiction(e Expr) bool {
	switch v := e.(type) {
	case *AndExpr:
		if isNegationOf(v.Left, v.Right) || isNegationOf(v.Right, v.Left) {
			return true
		}
		return IsContradiction(v.Left) || IsContradiction(v.Right)
	case *OrExpr:
		return IsContradiction(v.Left) && IsContradiction(v.Right)
	case *NotExpr:
		return IsTautology(v.Operand)
	default:
		return false
	}
}

// Print renders e back to filter syntax. Boolean operators are always
// fully parenthesized so Print's output reparses to a structurally equal
// AST regardless of the original source's parenthesization (spec §8's
// "parse -> print -> parse is the identity on the AST" refers to AST
// equality, not textual equality).
func Print(e Expr) string {
	switch v := e.(type) {
	case *OrExpr:
		return "(" + Print(v.Left) + " OR " + Print(v.Right) + ")"
	case *AndExpr:
		return "(" + Print(v.Left) + " AND " + Print(v.Right) + ")"
	case *NotExpr:
		return "NOT " + Print(v.Operand)
	case *Comparison:
		if v.Op == OpBetween {
			return fmt.Sprintf("%s BETWEEN %s AND %s", v.Field, printLiteral(v.Value), printLiteral(v.High))
		}
		return fmt.Sprintf("%s %s %s", v.Field, v.Op, printLiteral(v.Value))
	case *Membership:
		op := "IN"
		switch v.Op {
		case OpNotIn:
			op = "NOT IN"
		case OpAny:
			op = "ANY"
		}
		parts := make([]string, len(v.Values))
		for i, val := range v.Values {
			parts[i] = printLiteral(val)
		}
		return fmt.Sprintf("%s %s [%s]", v.Field, op, strings.Join(parts, ", "))
	case *NullTest:
		if v.Negate {
			return v.Field + " IS NOT NULL"
		}
		return v.Field + " IS NULL"
	default:
		return ""
	}
}

func printLiteral(v metadata.Value) string {
	switch v.Kind {
	case metadata.KindString:
		return strconv.Quote(v.Str)
	case metadata.KindInt:
		return strconv.FormatInt(v.Int, 10)
	case metadata.KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case metadata.KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	default:
		return "NULL"
	}
}
