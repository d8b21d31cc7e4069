package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse lexes and parses src into an Expr tree. Operator precedence,
// lowest to highest, is: or, and, unary not, comparison, primary —
// matching spec §4.7's stated precedence (unary-not binds tighter than
// comparisons, which bind tighter than and, which binds tighter than or).
func Parse(src string) (Expr, error) {
	toks, err := newLexer(src).lex()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, fmt.Errorf("query: unexpected trailing token %q", p.cur().text)
	}
	return expr, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokenKind, what string) (token, error) {
	if p.cur().kind != k {
		return token{}, fmt.Errorf("query: expected %s, got %q", what, p.cur().text)
	}
	return p.advance(), nil
}

func (p *parser) parseOr() (Expr, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokOr {
		p.advance()
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lhs = LogicalExpr{Op: OpOr, LHS: lhs, RHS: rhs}
	}
	return lhs, nil
}

func (p *parser) parseAnd() (Expr, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokAnd {
		p.advance()
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lhs = LogicalExpr{Op: OpAnd, LHS: lhs, RHS: rhs}
	}
	return lhs, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.cur().kind == tokNot {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return UnaryExpr{Op: UnaryNot, Operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	lhs, err := p.parseConditionalOrPrimary()
	if err != nil {
		return nil, err
	}
	op, ok := comparisonFor(p.cur().kind)
	if !ok {
		return lhs, nil
	}
	p.advance()
	rhs, err := p.parseConditionalOrPrimary()
	if err != nil {
		return nil, err
	}
	return ComparisonExpr{Op: op, LHS: lhs, RHS: rhs}, nil
}

func comparisonFor(k tokenKind) (ComparisonOp, bool) {
	switch k {
	case tokEq:
		return OpEqual, true
	case tokNeq:
		return OpNotEqual, true
	case tokLt:
		return OpLessThan, true
	case tokGt:
		return OpGreaterThan, true
	case tokLe:
		return OpLessThanOrEqual, true
	case tokGe:
		return OpGreaterThanOrEqual, true
	}
	return 0, false
}

// parseConditionalOrPrimary handles if/unless/ternary forms, which wrap
// a primary condition and two branches, falling through to a plain
// primary otherwise.
func (p *parser) parseConditionalOrPrimary() (Expr, error) {
	switch p.cur().kind {
	case tokIf, tokUnless:
		kind := CondIf
		if p.cur().kind == tokUnless {
			kind = CondUnless
		}
		p.advance()
		cond, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokThen, "'then'"); err != nil {
			return nil, err
		}
		ifTrue, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		var ifFalse Expr = EmptyExpr{}
		if p.cur().kind == tokElse {
			p.advance()
			ifFalse, err = p.parseOr()
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(tokEnd, "'end'"); err != nil {
			return nil, err
		}
		return ConditionalExpr{Kind: kind, Cond: cond, IfT: ifTrue, IfF: ifFalse}, nil
	}

	primary, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.cur().kind == tokQuestion {
		p.advance()
		ifTrue, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokColon, "':'"); err != nil {
			return nil, err
		}
		ifFalse, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		return ConditionalExpr{Kind: CondTernary, Cond: primary, IfT: ifTrue, IfF: ifFalse}, nil
	}
	return primary, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.cur()
	switch t.kind {
	case tokLParen:
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return ParenExpr{Inner: inner}, nil

	case tokPattern:
		p.advance()
		return PatternExpr{Search: Search{
			Pattern: t.text,
			Kind:    t.patternKind,
			Flags:   parseSearchFlags(t.patternFlags),
		}}, nil

	case tokString:
		p.advance()
		return LiteralExpr{Lit: Literal{Kind: LitString, Str: t.text}}, nil

	case tokInt:
		p.advance()
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("query: invalid integer %q: %w", t.text, err)
		}
		return LiteralExpr{Lit: Literal{Kind: LitInt, Int: n}}, nil

	case tokFloat:
		p.advance()
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("query: invalid float %q: %w", t.text, err)
		}
		return LiteralExpr{Lit: Literal{Kind: LitFloat, Flt: f}}, nil

	case tokIdent:
		return p.parseIdentExpr()
	}
	return nil, fmt.Errorf("query: unexpected token %q", t.text)
}

func (p *parser) parseIdentExpr() (Expr, error) {
	t := p.advance()
	name := t.text

	switch {
	case strings.HasPrefix(name, "@F"):
		return p.parseTagIndex()
	case strings.HasPrefix(name, "$F"):
		return p.parseTagIndex()
	}

	if fn, ok := functionNames[strings.ToLower(name)]; ok {
		if p.cur().kind != tokLParen {
			if fn == FnDir {
				return FunctionCallExpr{Fn: FnDir, Term: EmptyExpr{}}, nil
			}
			return nil, fmt.Errorf("query: function %q requires arguments", name)
		}
		p.advance()
		if p.cur().kind == tokRParen {
			p.advance()
			return FunctionCallExpr{Fn: fn, Term: EmptyExpr{}}, nil
		}
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return FunctionCallExpr{Fn: fn, Term: arg}, nil
	}

	switch strings.ToLower(name) {
	case "true":
		return LiteralExpr{Lit: Literal{Kind: LitBool, Bool: true}}, nil
	case "false":
		return LiteralExpr{Lit: Literal{Kind: LitBool, Bool: false}}, nil
	case "null":
		return LiteralExpr{Lit: Literal{Kind: LitNull}}, nil
	}

	return ValueExpr{Text: name}, nil
}

// parseTagIndex parses the `@F[...]` / `$F[...]` tag-array selector. An
// absent bracket expression means "the whole tag array" (spec's
// Idx::Index with no elements).
func (p *parser) parseTagIndex() (Expr, error) {
	if p.cur().kind != tokLBracket {
		return TagIndexExpr{Index: Idx{}}, nil
	}
	p.advance()

	var first *int64
	if p.cur().kind == tokInt {
		n, _ := strconv.ParseInt(p.advance().text, 10, 64)
		first = &n
	}

	if p.cur().kind == tokDotDot || p.cur().kind == tokDotDotEq {
		inclusive := p.cur().kind == tokDotDotEq
		p.advance()
		var last *int64
		if p.cur().kind == tokInt {
			n, _ := strconv.ParseInt(p.advance().text, 10, 64)
			last = &n
		}
		if _, err := p.expect(tokRBracket, "']'"); err != nil {
			return nil, err
		}
		return TagIndexExpr{Index: Idx{RangeLo: first, RangeHi: last, Inclusive: inclusive}}, nil
	}

	indices := []int64{}
	if first != nil {
		indices = append(indices, *first)
	}
	for p.cur().kind == tokComma {
		p.advance()
		n, err := p.expect(tokInt, "integer index")
		if err != nil {
			return nil, err
		}
		v, _ := strconv.ParseInt(n.text, 10, 64)
		indices = append(indices, v)
	}
	if _, err := p.expect(tokRBracket, "']'"); err != nil {
		return nil, err
	}
	return TagIndexExpr{Index: Idx{Indices: indices}}, nil
}
