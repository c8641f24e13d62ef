package value

import (
	"fmt"
	"strings"

	cerrors "github.com/archetype-run/archetype/internal/core/errors"
)

// Lookup resolves a variable reference to a Value during Eval. The
// default lookup used by Expression.Eval returns (Empty, false) for
// every name, which Eval then reports as UnresolvedVariableError per
// spec §4.1.
type Lookup func(name string) (Value, bool)

// NoLookup never resolves any variable.
func NoLookup(string) (Value, bool) { return Value{}, false }

// Expr is one node of a parsed expression tree.
type Expr interface {
	// eval evaluates the node against lookup.
	eval(lookup Lookup) (Value, error)
	// prec is the node's own precedence, used for minimal-parenthesis
	// printing; higher binds tighter.
	prec() int
	// text renders the node, recursively parenthesizing children whose
	// precedence is lower than required.
	text() string
}

func printExpr(e Expr, minPrec int) string {
	if e.prec() < minPrec {
		return "(" + e.text() + ")"
	}
	return e.text()
}

// Lit is a literal Value terminal.
type Lit struct{ V Value }

func (l *Lit) eval(Lookup) (Value, error) { return l.V, nil }
func (l *Lit) prec() int                  { return 5 }
func (l *Lit) text() string               { return l.V.Literal() }

// VarRef is a ${name} reference.
type VarRef struct{ Name string }

func (v *VarRef) eval(lookup Lookup) (Value, error) {
	val, ok := lookup(v.Name)
	if !ok {
		return Value{}, &cerrors.UnresolvedVariableError{Name: v.Name}
	}
	return val, nil
}
func (v *VarRef) prec() int    { return 5 }
func (v *VarRef) text() string { return "${" + v.Name + "}" }

// ListLit is a ['a','b'] literal.
type ListLit struct{ Elems []string }

func (l *ListLit) eval(Lookup) (Value, error) { return NewList(l.Elems), nil }
func (l *ListLit) prec() int                  { return 5 }
func (l *ListLit) text() string {
	xs := make([]string, len(l.Elems))
	for i, x := range l.Elems {
		xs[i] = "'" + x + "'"
	}
	return "[" + strings.Join(xs, ",") + "]"
}

type UnOp int

const (
	OpNot UnOp = iota
	OpSizeof
	OpCastList
	OpCastString
	OpCastInt
)

type Unary struct {
	Op UnOp
	X  Expr
}

func (u *Unary) prec() int { return 4 }

func (u *Unary) text() string {
	operand := printExpr(u.X, 4)
	switch u.Op {
	case OpNot:
		return "!" + operand
	case OpSizeof:
		return "sizeof " + operand
	case OpCastList:
		return "(list)" + operand
	case OpCastString:
		return "(string)" + operand
	case OpCastInt:
		return "(int)" + operand
	}
	return operand
}

func (u *Unary) eval(lookup Lookup) (Value, error) {
	v, err := u.X.eval(lookup)
	if err != nil {
		return Value{}, err
	}
	switch u.Op {
	case OpNot:
		b, err := v.AsBool()
		if err != nil {
			return Value{}, err
		}
		return NewBool(!b), nil
	case OpSizeof:
		n, err := Sizeof(v)
		if err != nil {
			return Value{}, err
		}
		return NewInt(int64(n)), nil
	case OpCastList:
		xs, err := v.AsList()
		if err != nil {
			return Value{}, err
		}
		return NewList(xs), nil
	case OpCastString:
		s, err := v.AsString()
		if err != nil {
			return Value{}, err
		}
		return NewString(s), nil
	case OpCastInt:
		d, err := v.AsInt()
		if err != nil {
			return Value{}, err
		}
		return NewDecimal(d), nil
	}
	return Value{}, fmt.Errorf("unknown unary operator %d", u.Op)
}

type BinOp int

const (
	OpOr BinOp = iota
	OpAnd
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpContains
)

func (op BinOp) symbol() string {
	switch op {
	case OpOr:
		return "||"
	case OpAnd:
		return "&&"
	case OpEq:
		return "=="
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
	case OpContains:
		return "contains"
	}
	return "?"
}

func (op BinOp) prec() int {
	switch op {
	case OpOr:
		return 1
	case OpAnd:
		return 2
	default:
		return 3
	}
}

type Binary struct {
	Op   BinOp
	L, R Expr
}

func (b *Binary) prec() int { return b.Op.prec() }

func (b *Binary) text() string {
	p := b.prec()
	left := printExpr(b.L, p)
	right := printExpr(b.R, p+1)
	return left + " " + b.Op.symbol() + " " + right
}

func (b *Binary) eval(lookup Lookup) (Value, error) {
	switch b.Op {
	case OpOr:
		lv, err := b.L.eval(lookup)
		if err != nil {
			return Value{}, err
		}
		lb, err := lv.AsBool()
		if err != nil {
			return Value{}, err
		}
		if lb {
			return NewBool(true), nil
		}
		rv, err := b.R.eval(lookup)
		if err != nil {
			return Value{}, err
		}
		rb, err := rv.AsBool()
		if err != nil {
			return Value{}, err
		}
		return NewBool(rb), nil
	case OpAnd:
		lv, err := b.L.eval(lookup)
		if err != nil {
			return Value{}, err
		}
		lb, err := lv.AsBool()
		if err != nil {
			return Value{}, err
		}
		if !lb {
			return NewBool(false), nil
		}
		rv, err := b.R.eval(lookup)
		if err != nil {
			return Value{}, err
		}
		rb, err := rv.AsBool()
		if err != nil {
			return Value{}, err
		}
		return NewBool(rb), nil
	}

	lv, err := b.L.eval(lookup)
	if err != nil {
		return Value{}, err
	}
	rv, err := b.R.eval(lookup)
	if err != nil {
		return Value{}, err
	}

	switch b.Op {
	case OpEq:
		return NewBool(Equal(lv, rv)), nil
	case OpNe:
		return NewBool(!Equal(lv, rv)), nil
	case OpContains:
		ok, err := Contains(lv, rv)
		if err != nil {
			return Value{}, err
		}
		return NewBool(ok), nil
	case OpLt, OpLe, OpGt, OpGe:
		return compareRelational(b.Op, lv, rv)
	}
	return Value{}, fmt.Errorf("unknown binary operator %d", b.Op)
}

func compareRelational(op BinOp, lv, rv Value) (Value, error) {
	cmp, err := compareValues(lv, rv)
	if err != nil {
		return Value{}, err
	}
	switch op {
	case OpLt:
		return NewBool(cmp < 0), nil
	case OpLe:
		return NewBool(cmp <= 0), nil
	case OpGt:
		return NewBool(cmp > 0), nil
	case OpGe:
		return NewBool(cmp >= 0), nil
	}
	return Value{}, fmt.Errorf("not a relational operator: %d", op)
}

func compareValues(lv, rv Value) (int, error) {
	if ld, lerr := lv.AsInt(); lerr == nil {
		if rd, rerr := rv.AsInt(); rerr == nil {
			return ld.Cmp(rd), nil
		}
	}
	ls, err := lv.AsString()
	if err != nil {
		return 0, err
	}
	rs, err := rv.AsString()
	if err != nil {
		return 0, err
	}
	return strings.Compare(ls, rs), nil
}

// isConnective reports whether e is a structural boolean connective
// (||, &&, !) as opposed to an atomic term, which is how reduce()
// partitions an expression into propositional atoms (spec §4.1).
func isConnective(e Expr) bool {
	switch x := e.(type) {
	case *Binary:
		return x.Op == OpOr || x.Op == OpAnd
	case *Unary:
		return x.Op == OpNot
	}
	return false
}
