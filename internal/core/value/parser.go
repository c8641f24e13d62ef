package value

import (
	"fmt"

	cerrors "github.com/archetype-run/archetype/internal/core/errors"
)

// Expression is a parsed, immutable expression. It is the public surface
// of this file: Parse builds one, Eval/Reduce/Sub/String operate on it.
type Expression struct {
	root Expr
	src  string
}

// Parse parses source into an Expression, or returns a *FormatError-
// compatible *cerrors.ParseError describing the first syntactic problem.
func Parse(source string) (*Expression, error) {
	toks, err := lex(source)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, src: source}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tEOF {
		return nil, p.errf("unexpected trailing input")
	}
	return &Expression{root: e, src: source}, nil
}

// MustParse parses source and panics on error; used for constant test
// expressions and the synthetic literal parser in reduce.go.
func MustParse(source string) *Expression {
	e, err := Parse(source)
	if err != nil {
		panic(err)
	}
	return e
}

// Eval evaluates the expression. The zero Lookup (nil) behaves like
// NoLookup: every variable is unresolved.
func (e *Expression) Eval(lookup Lookup) (Value, error) {
	if lookup == nil {
		lookup = NoLookup
	}
	return e.root.eval(lookup)
}

// String renders the canonical printed form of the expression as parsed
// (not reduced); see Reduce for the minimized canonical form.
func (e *Expression) String() string { return printExpr(e.root, 0) }

// Equal reports whether two expressions have identical canonical printed
// forms (spec §4.1: "two reduced expressions are value-equal iff their
// canonical printed forms are identical" — applied here to any pair of
// parsed expressions, reduced or not).
func (e *Expression) Equal(o *Expression) bool {
	if e == nil || o == nil {
		return e == o
	}
	return e.String() == o.String()
}

type parser struct {
	toks []token
	pos  int
	src  string
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) errf(format string, args ...interface{}) error {
	t := p.cur()
	frag := t.text
	if frag == "" {
		end := t.pos + 16
		if end > len(p.src) {
			end = len(p.src)
		}
		if t.pos < len(p.src) {
			frag = p.src[t.pos:end]
		}
	}
	return &cerrors.ParseError{Offset: t.pos, Text: frag, Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(k tokenKind, what string) (token, error) {
	if p.cur().kind != k {
		return token{}, p.errf("expected %s", what)
	}
	return p.advance(), nil
}

// parseOr: parseAnd (|| parseAnd)*
func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: OpOr, L: left, R: right}
	}
	return left, nil
}

// parseAnd: parseRel (&& parseRel)*
func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseRel()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tAnd {
		p.advance()
		right, err := p.parseRel()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: OpAnd, L: left, R: right}
	}
	return left, nil
}

var relOps = map[tokenKind]BinOp{
	tEq: OpEq, tNe: OpNe, tLt: OpLt, tLe: OpLe, tGt: OpGt, tGe: OpGe, tContains: OpContains,
}

// parseRel: parseUnary ( relop parseUnary )*
func (p *parser) parseRel() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := relOps[p.cur().kind]
		if !ok {
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, L: left, R: right}
	}
}

// parseUnary: ('!' | '(list)' | '(string)' | '(int)' | 'sizeof') parseUnary | parsePrimary
func (p *parser) parseUnary() (Expr, error) {
	switch p.cur().kind {
	case tNot:
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: OpNot, X: x}, nil
	case tSizeof:
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: OpSizeof, X: x}, nil
	case tLParen:
		if cast, ok := p.tryCast(); ok {
			x, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return &Unary{Op: cast, X: x}, nil
		}
	}
	return p.parsePrimary()
}

// tryCast consumes "(list)"/"(string)"/"(int)" if that is exactly what
// follows, without disturbing the parser position otherwise.
func (p *parser) tryCast() (UnOp, bool) {
	if p.cur().kind != tLParen {
		return 0, false
	}
	if p.toks[p.pos+1].kind != tIdent {
		return 0, false
	}
	name := p.toks[p.pos+1].text
	var op UnOp
	switch name {
	case "list":
		op = OpCastList
	case "string":
		op = OpCastString
	case "int":
		op = OpCastInt
	default:
		return 0, false
	}
	if p.toks[p.pos+2].kind != tRParen {
		return 0, false
	}
	p.pos += 3
	return op, true
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.cur()
	switch t.kind {
	case tString:
		p.advance()
		return &Lit{V: NewString(t.text)}, nil
	case tVarRef:
		p.advance()
		if !isValidVarName(t.text) {
			return nil, p.errf("invalid variable name %q", t.text)
		}
		return &VarRef{Name: t.text}, nil
	case tIdent:
		switch t.text {
		case "true":
			p.advance()
			return &Lit{V: NewBool(true)}, nil
		case "false":
			p.advance()
			return &Lit{V: NewBool(false)}, nil
		}
		if isAllDigits(t.text) {
			p.advance()
			return &Lit{V: mustInt(t.text)}, nil
		}
		return nil, p.errf("unexpected identifier %q", t.text)
	case tLBracket:
		return p.parseListLit()
	case tLParen:
		p.advance()
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tRParen, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, p.errf("expected operand, found end of expression")
	}
}

func (p *parser) parseListLit() (Expr, error) {
	p.advance() // '['
	var elems []string
	if p.cur().kind != tRBracket {
		for {
			s, err := p.expect(tString, "string literal")
			if err != nil {
				return nil, err
			}
			elems = append(elems, s.text)
			if p.cur().kind == tComma {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(tRBracket, "']'"); err != nil {
		return nil, err
	}
	return &ListLit{Elems: elems}, nil
}

func isValidVarName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if i == 0 && !isIdentStart(r) {
			return false
		}
		if i > 0 && !isIdentPart(r) && r != '.' {
			return false
		}
	}
	return true
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func mustInt(s string) Value {
	v := NewInt(0)
	d, err := NewString(s).AsInt()
	if err == nil {
		v = NewDecimal(d)
	}
	return v
}
