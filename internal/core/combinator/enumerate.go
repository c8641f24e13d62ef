package combinator

import (
	"github.com/archetype-run/archetype/internal/core/ast"
	"github.com/archetype-run/archetype/internal/core/value"
)

// Assignment is one full (or partial, during traversal) variation: the
// value each active input resolved to.
type Assignment map[string]value.Value

func (a Assignment) with(k string, v value.Value) Assignment {
	cp := make(Assignment, len(a)+1)
	for kk, vv := range a {
		cp[kk] = vv
	}
	cp[k] = v
	return cp
}

func (a Assignment) lookup(name string) (value.Value, bool) {
	v, ok := a[name]
	return v, ok
}

// ApplyPresets collapses every TreeNode named in presets to a fixed
// value, so it contributes exactly one index to every enumerated
// variation (spec: a preset-bound input is not itself varied).
func ApplyPresets(t *Tree, presets map[string]string) {
	applyPresetsTo(t.Roots, presets)
}

func applyPresetsTo(nodes []*TreeNode, presets map[string]string) {
	for _, n := range nodes {
		if v, ok := presets[n.ID]; ok {
			n.Preset = &PresetNode{Value: v}
			n.Index = NewNodeIndex(1)
		}
		for _, branch := range n.Branches {
			applyPresetsTo(branch, presets)
		}
	}
}

// Excluder reports whether a (possibly partial) assignment should be
// pruned from the explored space — the combinator's use of
// value.Sub-style conjunct checking, lifted to whole expressions rather
// than single literals (spec §4.4's exclusion filters).
type Excluder func(Assignment) (bool, error)

// BuildExcluder compiles a set of exclusion expression sources once; the
// returned Excluder reports exclude=true if any expression evaluates
// truthy against the assignment. An expression referencing an input not
// yet in the (partial) assignment is treated as not-yet-decided and
// never excludes early.
func BuildExcluder(exprs []string) (Excluder, error) {
	parsed := make([]*value.Expression, 0, len(exprs))
	for _, src := range exprs {
		e, err := value.Parse(src)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, e)
	}
	return func(a Assignment) (bool, error) {
		for _, e := range parsed {
			v, err := e.Eval(a.lookup)
			if err != nil {
				continue // unresolved reference: not yet decided, don't exclude
			}
			b, err := v.AsBool()
			if err != nil {
				continue
			}
			if b {
				return true, nil
			}
		}
		return false, nil
	}, nil
}

func valueFor(n *TreeNode, idx int) value.Value {
	if n.Preset != nil {
		return coercePreset(n, n.Preset.Value)
	}
	switch n.Kind {
	case ast.KindBoolean:
		return value.NewBool(idx == 1)
	case ast.KindEnum:
		return value.NewString(n.Options[idx])
	case ast.KindList:
		return value.NewList(subsetFor(n.Options, idx))
	default: // text: a single synthetic placeholder value
		return value.NewString("")
	}
}

func coercePreset(n *TreeNode, raw string) value.Value {
	switch n.Kind {
	case ast.KindBoolean:
		return value.NewBool(raw == "true")
	case ast.KindList:
		xs, _ := value.NewString(raw).AsList()
		return value.NewList(xs)
	default:
		return value.NewString(raw)
	}
}

// subsetFor decodes idx as a bitmask over options, in declared order.
func subsetFor(options []string, idx int) []string {
	var out []string
	for i, o := range options {
		if idx&(1<<uint(i)) != 0 {
			out = append(out, o)
		}
	}
	return out
}

// activeChildren returns the nested nodes revealed once a node resolves
// to value at idx: an enum's matching option's children, or a list's
// always-active children (list-scoped content isn't gated per-subset).
func activeChildren(n *TreeNode, idx int) []*TreeNode {
	switch n.Kind {
	case ast.KindEnum:
		return n.Branches[n.Options[idx]]
	case ast.KindList:
		return n.Branches[""]
	default:
		return nil
	}
}

// Enumerate runs the full odometer walk over t, calling visit once per
// surviving variation (after exclude, if any, is consulted) and
// returning the number of variations visited.
func Enumerate(t *Tree, exclude Excluder, visit func(Assignment) error) (int, error) {
	return enumerateNodes(t.Roots, Assignment{}, exclude, visit)
}

// Count is Enumerate without a visit callback, for when only the total
// is needed (property 8 / E7's "exactly N combinations" checks).
func Count(t *Tree, exclude Excluder) (int, error) {
	return enumerateNodes(t.Roots, Assignment{}, exclude, func(Assignment) error { return nil })
}

func enumerateNodes(nodes []*TreeNode, asg Assignment, exclude Excluder, visit func(Assignment) error) (int, error) {
	if len(nodes) == 0 {
		if exclude != nil {
			excluded, err := exclude(asg)
			if err != nil {
				return 0, err
			}
			if excluded {
				return 0, nil
			}
		}
		if err := visit(asg); err != nil {
			return 0, err
		}
		return 1, nil
	}

	n := nodes[0]
	rest := nodes[1:]
	if n.Condition != "" {
		truthy, err := evalCondition(n.Condition, asg)
		if err != nil {
			return 0, err
		}
		if !truthy {
			return enumerateNodes(rest, asg, exclude, visit)
		}
	}
	total := 0
	for idx := 0; idx < n.Size(); idx++ {
		n.Index.Current = idx
		val := valueFor(n, idx)
		next := asg.with(n.ID, val)

		branchNodes := append(append([]*TreeNode{}, activeChildren(n, idx)...), rest...)
		cnt, err := enumerateNodes(branchNodes, next, exclude, visit)
		if err != nil {
			return 0, err
		}
		total += cnt
	}
	return total, nil
}

func evalCondition(src string, asg Assignment) (bool, error) {
	e, err := value.Parse(src)
	if err != nil {
		return false, err
	}
	v, err := e.Eval(asg.lookup)
	if err != nil {
		return false, err
	}
	return v.AsBool()
}
