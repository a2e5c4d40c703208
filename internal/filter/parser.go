package filter

import (
	"fmt"

	"github.com/edgevec/edgevec/internal/errs"
	"github.com/edgevec/edgevec/internal/metadata"
)

// ParseError carries the byte offset and message of a filter syntax error,
// per spec §4.6 ("errors carry an offset and a message").
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("edgevec: filter parse error at offset %d: %s", e.Offset, e.Msg)
}

// DefaultMaxLength and DefaultMaxDepth are the parser's default policy
// limits, applied when a Parser's fields are left zero.
const (
	DefaultMaxLength = 4096
	DefaultMaxDepth  = 32
)

// Parser parses filter expressions. The zero value is ready to use with
// default limits; set MaxLength/MaxDepth to override.
type Parser struct {
	MaxLength int
	MaxDepth  int
}

func (p *Parser) maxLength() int {
	if p.MaxLength > 0 {
		return p.MaxLength
	}
	return DefaultMaxLength
}

func (p *Parser) maxDepth() int {
	if p.MaxDepth > 0 {
		return p.MaxDepth
	}
	return DefaultMaxDepth
}

// Parse parses input into an immutable Expr AST. The recursive-descent
// grammar is exactly spec §4.6's; nesting depth is checked after the full
// parse succeeds (spec §9 documents this as a deliberate, resource-before-
// rejection trade-off).
func (p *Parser) Parse(input string) (Expr, error) {
	if len(input) > p.maxLength() {
		return nil, &ParseError{Offset: p.maxLength(), Msg: "input exceeds maximum length"}
	}
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	ps := &parseState{toks: toks}
	expr, err := ps.parseOr()
	if err != nil {
		return nil, err
	}
	if ps.peek().kind != tkEOF {
		return nil, &ParseError{Offset: ps.peek().offset, Msg: "unexpected trailing input"}
	}
	if Depth(expr) > p.maxDepth() {
		return nil, fmt.Errorf("%w: depth %d exceeds limit %d", errs.ErrFilterDepthExceeded, Depth(expr), p.maxDepth())
	}
	return expr, nil
}

// Parse is a convenience wrapper using default limits.
func Parse(input string) (Expr, error) {
	var p Parser
	return p.Parse(input)
}

type parseState struct {
	toks []token
	pos  int
}

func (ps *parseState) peek() token { return ps.toks[ps.pos] }

func (ps *parseState) next() token {
	t := ps.toks[ps.pos]
	if ps.pos < len(ps.toks)-1 {
		ps.pos++
	}
	return t
}

func (ps *parseState) expect(k tokenKind, what string) (token, error) {
	t := ps.peek()
	if t.kind != k {
		return token{}, &ParseError{Offset: t.offset, Msg: "expected " + what}
	}
	return ps.next(), nil
}

// or := and ( "OR" and )*
func (ps *parseState) parseOr() (Expr, error) {
	left, err := ps.parseAnd()
	if err != nil {
		return nil, err
	}
	for ps.peek().kind == tkOr {
		ps.next()
		right, err := ps.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &OrExpr{Left: left, Right: right}
	}
	return left, nil
}

// and := not ( "AND" not )*
func (ps *parseState) parseAnd() (Expr, error) {
	left, err := ps.parseNot()
	if err != nil {
		return nil, err
	}
	for ps.peek().kind == tkAnd {
		ps.next()
		right, err := ps.parseNot()
		if err != nil {
			return nil, err
		}
		left = &AndExpr{Left: left, Right: right}
	}
	return left, nil
}

// not := "NOT" not | atom
func (ps *parseState) parseNot() (Expr, error) {
	if ps.peek().kind == tkNot {
		ps.next()
		operand, err := ps.parseNot()
		if err != nil {
			return nil, err
		}
		return &NotExpr{Operand: operand}, nil
	}
	return ps.parseAtom()
}

// atom := "(" expr ")" | comparison | membership | nulltest
func (ps *parseState) parseAtom() (Expr, error) {
	if ps.peek().kind == tkLParen {
		ps.next()
		expr, err := ps.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := ps.expect(tkRParen, "')'"); err != nil {
			return nil, err
		}
		return expr, nil
	}

	fieldTok, err := ps.expect(tkIdent, "field identifier")
	if err != nil {
		return nil, err
	}
	field := fieldTok.text

	switch ps.peek().kind {
	case tkEq, tkNe, tkLt, tkLe, tkGt, tkGe:
		op := compareOpFor(ps.next().kind)
		lit, err := ps.parseLiteral()
		if err != nil {
			return nil, err
		}
		return &Comparison{Field: field, Op: op, Value: lit}, nil

	case tkBetween:
		ps.next()
		lo, err := ps.parseLiteral()
		if err != nil {
			return nil, err
		}
		if _, err := ps.expect(tkAnd, "'AND'"); err != nil {
			return nil, err
		}
		hi, err := ps.parseLiteral()
		if err != nil {
			return nil, err
		}
		return &Comparison{Field: field, Op: OpBetween, Value: lo, High: hi}, nil

	case tkIn:
		ps.next()
		vals, err := ps.parseLiteralList()
		if err != nil {
			return nil, err
		}
		return &Membership{Field: field, Op: OpIn, Values: vals}, nil

	case tkNot:
		ps.next()
		if _, err := ps.expect(tkIn, "'IN' after 'NOT'"); err != nil {
			return nil, err
		}
		vals, err := ps.parseLiteralList()
		if err != nil {
			return nil, err
		}
		return &Membership{Field: field, Op: OpNotIn, Values: vals}, nil

	case tkAny:
		ps.next()
		vals, err := ps.parseLiteralList()
		if err != nil {
			return nil, err
		}
		return &Membership{Field: field, Op: OpAny, Values: vals}, nil

	case tkIs:
		ps.next()
		negate := false
		if ps.peek().kind == tkNot {
			ps.next()
			negate = true
		}
		if _, err := ps.expect(tkNull, "'NULL'"); err != nil {
			return nil, err
		}
		return &NullTest{Field: field, Negate: negate}, nil

	default:
		return nil, &ParseError{Offset: ps.peek().offset, Msg: "expected comparison, membership, or IS NULL test"}
	}
}

func compareOpFor(k tokenKind) CompareOp {
	switch k {
	case tkEq:
		return OpEq
	case tkNe:
		return OpNe
	case tkLt:
		return OpLt
	case tkLe:
		return OpLe
	case tkGt:
		return OpGt
	case tkGe:
		return OpGe
	default:
		return OpEq
	}
}

func (ps *parseState) parseLiteralList() ([]metadata.Value, error) {
	if _, err := ps.expect(tkLBracket, "'['"); err != nil {
		return nil, err
	}
	var vals []metadata.Value
	if ps.peek().kind != tkRBracket {
		for {
			lit, err := ps.parseLiteral()
			if err != nil {
				return nil, err
			}
			vals = append(vals, lit)
			if ps.peek().kind != tkComma {
				break
			}
			ps.next()
		}
	}
	if _, err := ps.expect(tkRBracket, "']'"); err != nil {
		return nil, err
	}
	return vals, nil
}

func (ps *parseState) parseLiteral() (metadata.Value, error) {
	t := ps.peek()
	switch t.kind {
	case tkString:
		ps.next()
		return metadata.StringValue(t.text), nil
	case tkNumber:
		ps.next()
		if t.isInt {
			return metadata.IntValue(t.intVal), nil
		}
		return metadata.FloatValue(t.floatVal), nil
	case tkBool:
		ps.next()
		return metadata.BoolValue(t.boolVal), nil
	case tkNull:
		ps.next()
		return metadata.Null, nil
	default:
		return metadata.Value{}, &ParseError{Offset: t.offset, Msg: "expected a literal"}
	}
}
