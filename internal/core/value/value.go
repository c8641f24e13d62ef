// Package value implements the archetype interpreter's tagged value
// domain and its boolean/relational expression language (spec §3, §4.1).
package value

import (
	"sort"
	"strings"

	"github.com/cockroachdb/apd/v2"

	cerrors "github.com/archetype-run/archetype/internal/core/errors"
)

// Kind discriminates the tag of a Value.
type Kind int

const (
	Empty Kind = iota
	BoolKind
	IntKind
	StringKind
	ListKind
)

func (k Kind) String() string {
	switch k {
	case BoolKind:
		return "bool"
	case IntKind:
		return "int"
	case StringKind:
		return "string"
	case ListKind:
		return "list"
	default:
		return "empty"
	}
}

// intCtx is a fixed apd context with a generous precision. No Int
// operation in this package uses it; comparisons go through
// apd.Decimal.Cmp, which needs no context.
var intCtx = apd.BaseContext.WithPrecision(40)

// Value is the tagged union described in spec §3: Empty, Bool, Int,
// String, or List<String>. The zero Value is Empty.
type Value struct {
	kind Kind
	b    bool
	i    *apd.Decimal
	s    string
	xs   []string
}

func NewEmpty() Value { return Value{kind: Empty} }

func NewBool(b bool) Value { return Value{kind: BoolKind, b: b} }

func NewString(s string) Value { return Value{kind: StringKind, s: s} }

// NewInt wraps an int64 as an arbitrary-precision decimal Value.
func NewInt(i int64) Value {
	d := new(apd.Decimal).SetInt64(i)
	return Value{kind: IntKind, i: d}
}

func NewDecimal(d *apd.Decimal) Value {
	return Value{kind: IntKind, i: d}
}

// NewList normalizes a list value: a list whose only element is the
// literal "none" is canonically empty (spec §3).
func NewList(xs []string) Value {
	if len(xs) == 1 && xs[0] == "none" {
		return Value{kind: ListKind, xs: []string{}}
	}
	cp := make([]string, len(xs))
	copy(cp, xs)
	return Value{kind: ListKind, xs: cp}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsEmpty() bool { return v.kind == Empty }

// AsBool projects v as a bool, failing with ValueError if the tag differs.
func (v Value) AsBool() (bool, error) {
	if v.kind != BoolKind {
		return false, &cerrors.ValueError{Want: "bool", Have: v.kind.String()}
	}
	return v.b, nil
}

// AsString projects v to its string form. Every kind has a canonical
// string rendering, so this projection never fails.
func (v Value) AsString() (string, error) {
	switch v.kind {
	case StringKind:
		return v.s, nil
	case BoolKind:
		if v.b {
			return "true", nil
		}
		return "false", nil
	case IntKind:
		return v.i.Text('f'), nil
	case ListKind:
		return strings.Join(v.xs, ","), nil
	default:
		return "", nil
	}
}

// MustString is AsString without an error return, for call sites that
// already know v renders to a string (e.g. template context lookups).
func (v Value) MustString() string {
	s, _ := v.AsString()
	return s
}

// AsInt projects v as an Int. Strings parse as decimal; other kinds fail.
func (v Value) AsInt() (*apd.Decimal, error) {
	switch v.kind {
	case IntKind:
		return v.i, nil
	case StringKind:
		d, _, err := apd.NewFromString(strings.TrimSpace(v.s))
		if err != nil {
			return nil, &cerrors.ValueError{Want: "int", Have: "string " + v.s}
		}
		return d, nil
	default:
		return nil, &cerrors.ValueError{Want: "int", Have: v.kind.String()}
	}
}

// AsList projects v as a List<String>. A string casts by splitting on ','
// with the canonical-empty "none" rule; other kinds fail.
func (v Value) AsList() ([]string, error) {
	switch v.kind {
	case ListKind:
		return v.xs, nil
	case StringKind:
		if v.s == "" {
			return []string{}, nil
		}
		parts := strings.Split(v.s, ",")
		if len(parts) == 1 && parts[0] == "none" {
			return []string{}, nil
		}
		return parts, nil
	default:
		return nil, &cerrors.ValueError{Want: "list", Have: v.kind.String()}
	}
}

// Equal implements the non-coercing equality rule used by ==/!=: values of
// different kinds are unequal except that numeric-looking strings are
// never implicitly compared as ints (contains/casts are the only
// coercion points in the language).
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Empty:
		return true
	case BoolKind:
		return a.b == b.b
	case IntKind:
		return a.i.Cmp(b.i) == 0
	case StringKind:
		return a.s == b.s
	case ListKind:
		if len(a.xs) != len(b.xs) {
			return false
		}
		for i := range a.xs {
			if a.xs[i] != b.xs[i] {
				return false
			}
		}
		return true
	}
	return false
}

// Contains implements the polymorphic `contains` operator.
func Contains(a, b Value) (bool, error) {
	switch a.kind {
	case StringKind:
		s, err := b.AsString()
		if err != nil {
			return false, err
		}
		return strings.Contains(a.s, s), nil
	case ListKind:
		switch b.kind {
		case StringKind:
			for _, x := range a.xs {
				if x == b.s {
					return true, nil
				}
			}
			return false, nil
		case ListKind:
			set := make(map[string]bool, len(a.xs))
			for _, x := range a.xs {
				set[x] = true
			}
			for _, x := range b.xs {
				if !set[x] {
					return false, nil
				}
			}
			return true, nil
		default:
			return false, &cerrors.ValueError{Want: "string or list", Have: b.kind.String()}
		}
	default:
		return false, &cerrors.ValueError{Want: "string or list", Have: a.kind.String()}
	}
}

// Sizeof returns the char length of a string or the element count of a
// list (spec §4.1).
func Sizeof(a Value) (int, error) {
	switch a.kind {
	case StringKind:
		return len([]rune(a.s)), nil
	case ListKind:
		return len(a.xs), nil
	default:
		return 0, &cerrors.ValueError{Want: "string or list", Have: a.kind.String()}
	}
}

// Literal renders v the way the expression language's literal() prints
// values: lists with no inner spaces, strings single-quoted.
func (v Value) Literal() string {
	switch v.kind {
	case BoolKind:
		if v.b {
			return "true"
		}
		return "false"
	case IntKind:
		return v.i.Text('f')
	case StringKind:
		return "'" + v.s + "'"
	case ListKind:
		xs := make([]string, len(v.xs))
		for i, x := range v.xs {
			xs[i] = "'" + x + "'"
		}
		return "[" + strings.Join(xs, ",") + "]"
	default:
		return ""
	}
}

// sortedCopy returns a sorted copy of xs.
func sortedCopy(xs []string) []string {
	cp := append([]string(nil), xs...)
	sort.Strings(cp)
	return cp
}

// SortedList exposes sortedCopy for callers outside this package.
func SortedList(xs []string) []string { return sortedCopy(xs) }
