package filter

import (
	"errors"
	"testing"

	"github.com/edgevec/edgevec/internal/errs"
	"github.com/edgevec/edgevec/internal/metadata"
)

func rec(kv ...interface{}) metadata.Record {
	r := metadata.Record{}
	for i := 0; i < len(kv); i += 2 {
		r[kv[i].(string)] = kv[i+1].(metadata.Value)
	}
	return r
}

func mustParse(t *testing.T, s string) Expr {
	t.Helper()
	e, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return e
}

func TestParseEqualityAndEval(t *testing.T) {
	e := mustParse(t, `category = "a"`)
	r := rec("category", metadata.StringValue("a"))
	ok, err := Eval(e, r)
	if err != nil || !ok {
		t.Fatalf("Eval = %v, %v, want true, nil", ok, err)
	}
	r2 := rec("category", metadata.StringValue("b"))
	ok, err = Eval(e, r2)
	if err != nil || ok {
		t.Fatalf("Eval = %v, %v, want false, nil", ok, err)
	}
}

func TestComparisonMissingFieldIsFalse(t *testing.T) {
	e := mustParse(t, `price > 10`)
	ok, err := Eval(e, rec())
	if err != nil || ok {
		t.Fatalf("missing-field comparison = %v, %v, want false, nil", ok, err)
	}
}

func TestIsNullOnMissingFieldIsTrue(t *testing.T) {
	e := mustParse(t, `price IS NULL`)
	ok, err := Eval(e, rec())
	if err != nil || !ok {
		t.Fatalf("IS NULL on missing field = %v, %v, want true, nil", ok, err)
	}

	e2 := mustParse(t, `price IS NOT NULL`)
	ok, err = Eval(e2, rec("price", metadata.FloatValue(1)))
	if err != nil || !ok {
		t.Fatalf("IS NOT NULL on present field = %v, %v, want true, nil", ok, err)
	}
}

func TestIntFloatCoercion(t *testing.T) {
	e := mustParse(t, `count >= 3`)
	ok, err := Eval(e, rec("count", metadata.FloatValue(3.5)))
	if err != nil || !ok {
		t.Fatalf("int literal vs float field = %v, %v", ok, err)
	}
}

func TestStringNumberNeverCoerce(t *testing.T) {
	e := mustParse(t, `count = 3`)
	_, err := Eval(e, rec("count", metadata.StringValue("3")))
	if !errors.Is(err, errs.ErrFilterTypeError) {
		t.Fatalf("err = %v, want ErrFilterTypeError", err)
	}
}

func TestBetween(t *testing.T) {
	e := mustParse(t, `price BETWEEN 10 AND 20`)
	for val, want := range map[float64]bool{9: false, 10: true, 15: true, 20: true, 21: false} {
		ok, err := Eval(e, rec("price", metadata.FloatValue(val)))
		if err != nil || ok != want {
			t.Fatalf("BETWEEN price=%v => %v, %v, want %v", val, ok, err, want)
		}
	}
}

func TestInAndNotIn(t *testing.T) {
	e := mustParse(t, `category IN ["a", "b"]`)
	ok, _ := Eval(e, rec("category", metadata.StringValue("b")))
	if !ok {
		t.Fatal("expected category IN [a,b] to match b")
	}
	ok, _ = Eval(e, rec("category", metadata.StringValue("c")))
	if ok {
		t.Fatal("expected category IN [a,b] not to match c")
	}

	e2 := mustParse(t, `category NOT IN ["a", "b"]`)
	ok, _ = Eval(e2, rec("category", metadata.StringValue("c")))
	if !ok {
		t.Fatal("expected NOT IN to match c")
	}
}

func TestAnyArrayContains(t *testing.T) {
	e := mustParse(t, `tags ANY ["red", "blue"]`)
	ok, _ := Eval(e, rec("tags", metadata.StringArrayValue([]string{"green", "blue"})))
	if !ok {
		t.Fatal("expected ANY to match overlapping array")
	}
	ok, _ = Eval(e, rec("tags", metadata.StringArrayValue([]string{"green"})))
	if ok {
		t.Fatal("expected ANY not to match disjoint array")
	}
}

func TestAndOrNotPrecedenceAndShortCircuit(t *testing.T) {
	e := mustParse(t, `a = 1 AND b = 2 OR c = 3`)
	// AND binds tighter than OR: (a=1 AND b=2) OR c=3
	r := rec("a", metadata.IntValue(1), "b", metadata.IntValue(2), "c", metadata.IntValue(99))
	ok, err := Eval(e, r)
	if err != nil || !ok {
		t.Fatalf("Eval = %v, %v, want true", ok, err)
	}

	r2 := rec("a", metadata.IntValue(0), "c", metadata.IntValue(3))
	ok, err = Eval(e, r2)
	if err != nil || !ok {
		t.Fatalf("Eval = %v, %v, want true via OR branch", ok, err)
	}
}

func TestNotBindsToAtom(t *testing.T) {
	e := mustParse(t, `NOT category = "a"`)
	ok, _ := Eval(e, rec("category", metadata.StringValue("b")))
	if !ok {
		t.Fatal("expected NOT to negate the comparison")
	}
}

func TestParenthesesOverridePrecedence(t *testing.T) {
	e := mustParse(t, `a = 1 AND (b = 2 OR c = 3)`)
	r := rec("a", metadata.IntValue(1), "b", metadata.IntValue(0), "c", metadata.IntValue(3))
	ok, err := Eval(e, r)
	if err != nil || !ok {
		t.Fatalf("Eval = %v, %v, want true", ok, err)
	}
}

func TestParseErrorCarriesOffset(t *testing.T) {
	_, err := Parse(`a = `)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
	if pe.Offset != 4 {
		t.Fatalf("Offset = %d, want 4", pe.Offset)
	}
}

func TestParseDepthExceeded(t *testing.T) {
	p := Parser{MaxDepth: 2}
	_, err := p.Parse(`a = 1 AND b = 2 AND c = 3 AND d = 4`)
	if !errors.Is(err, errs.ErrFilterDepthExceeded) {
		t.Fatalf("err = %v, want ErrFilterDepthExceeded", err)
	}
}

func TestParseMaxLength(t *testing.T) {
	p := Parser{MaxLength: 5}
	_, err := p.Parse(`a = "this is way too long"`)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ParseError for exceeding max length", err)
	}
}

func TestTautologyAOrNotA(t *testing.T) {
	e := mustParse(t, `category = "a" OR NOT category = "a"`)
	if !IsTautology(e) {
		t.Fatal("expected `a OR NOT a` to be a tautology")
	}
	if IsContradiction(e) {
		t.Fatal("tautology should not also be a contradiction")
	}
}

func TestContradictionAAndNotA(t *testing.T) {
	e := mustParse(t, `category = "a" AND NOT category = "a"`)
	if !IsContradiction(e) {
		t.Fatal("expected `a AND NOT a` to be a contradiction")
	}
	if IsTautology(e) {
		t.Fatal("contradiction should not also be a tautology")
	}
}

func TestOrdinaryExprIsNeitherTautologyNorContradiction(t *testing.T) {
	e := mustParse(t, `category = "a"`)
	if IsTautology(e) || IsContradiction(e) {
		t.Fatal("plain comparison should be neither")
	}
}

func TestPrintParseRoundTrip(t *testing.T) {
	exprs := []string{
		`category = "a"`,
		`price BETWEEN 10 AND 20`,
		`category IN ["a", "b"]`,
		`category NOT IN ["a", "b"]`,
		`tags ANY ["x"]`,
		`price IS NULL`,
		`price IS NOT NULL`,
		`a = 1 AND b = 2 OR NOT c = 3`,
		`NOT NOT a = 1`,
	}
	for _, s := range exprs {
		orig := mustParse(t, s)
		printed := Print(orig)
		reparsed, err := Parse(printed)
		if err != nil {
			t.Fatalf("Parse(Print(%q)) = %q: %v", s, printed, err)
		}
		if !Equal(orig, reparsed) {
			t.Fatalf("round trip not structurally equal for %q: printed %q", s, printed)
		}
	}
}

func TestCaseInsensitiveOption(t *testing.T) {
	e := mustParse(t, `category = "Widgets"`)
	opts := &Options{CaseInsensitive: true}
	ok, err := EvalWithOptions(e, rec("category", metadata.StringValue("widgets")), opts)
	if err != nil || !ok {
		t.Fatalf("case-insensitive Eval = %v, %v, want true", ok, err)
	}
	ok, err = Eval(e, rec("category", metadata.StringValue("widgets")))
	if err != nil || ok {
		t.Fatalf("default Eval should be case-sensitive, got %v, %v", ok, err)
	}
}
