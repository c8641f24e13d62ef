// Package combinator implements the combinatorial variation explorer
// (spec §4.4's "exhaustive input-tree enumeration", property 8, E7): a
// static shape of every input a script can ask, each input contributing
// a digit to a mixed-radix odometer, with nested inputs only active
// under the option branch that would actually reveal them and preset-
// bound inputs collapsed to a single fixed value.
package combinator

import (
	"github.com/archetype-run/archetype/internal/core/ast"
)

// NodeIndex is one digit of the odometer: it cycles through 0..Size-1 and
// reports whether advancing it carried into the next digit.
type NodeIndex struct {
	Size    int
	Current int
}

func NewNodeIndex(size int) *NodeIndex {
	if size < 1 {
		size = 1
	}
	return &NodeIndex{Size: size}
}

// Next advances the digit by one position. It returns true (a carry)
// when the digit rolled back over to 0 and the next-more-significant
// digit must also advance.
func (n *NodeIndex) Next() bool {
	n.Current++
	if n.Current >= n.Size {
		n.Current = 0
		return true
	}
	return false
}

func (n *NodeIndex) Reset() { n.Current = 0 }

// PresetNode is a TreeNode bound to a single fixed value by a <presets>
// block: it still occupies a position in the tree (so nested children
// under its matching option remain reachable) but never varies.
type PresetNode struct {
	Value string
}

// TreeNode is one input's static shape within the tree: its own digit,
// plus, for enum/list inputs, the nested input nodes that only exist
// under each option (or, for list, each selectable subset).
type TreeNode struct {
	ID      string
	Kind    ast.Kind // KindBoolean, KindText, KindEnum, KindList
	Index   *NodeIndex
	Options []string // declared option values, for enum/list
	Preset  *PresetNode

	// Branches maps an option value (for enum) to the input nodes
	// nested under that option's children. Bool/text inputs have no
	// branches; list inputs key by a synthetic "selected"/"" pair since
	// every subset is one index but only the "most selections" branch
	// realistically nests children in practice — list-scoped children
	// are exposed under the empty-string key, always active.
	Branches map[string][]*TreeNode

	// Condition holds the declared if= condition gating this node itself,
	// evaluated against the partial assignment built up so far.
	Condition string
}

// Tree is the root collection of top-level input nodes (those not
// nested under any option).
type Tree struct {
	Roots []*TreeNode
}

// Size returns the digit count this node contributes standing alone,
// without descending into option branches (used by callers that only
// need a flat multiplicity estimate).
func (n *TreeNode) Size() int {
	if n.Preset != nil {
		return 1
	}
	return n.Index.Size
}

// listSubsetCount returns 2^len(options), the number of distinct
// subsets a <list> input can resolve to (including the empty subset).
func listSubsetCount(options []string) int {
	return 1 << uint(len(options))
}

// Build walks a script's static <inputs> shape (ignoring presets; the
// caller applies those separately via ApplyPresets) into a Tree. Method
// bodies and source/exec includes are out of scope for this static pass:
// spec §4.4 scopes variation enumeration to one script's own declared
// inputs.
func Build(root *ast.Node) *Tree {
	t := &Tree{}
	t.Roots = buildChildren(root.Children)
	return t
}

func buildChildren(nodes []*ast.Node) []*TreeNode {
	var out []*TreeNode
	for _, n := range nodes {
		switch n.Kind {
		case ast.KindInputs:
			out = append(out, buildChildren(n.Children)...)
		case ast.KindBoolean, ast.KindText, ast.KindEnum, ast.KindList:
			out = append(out, buildInput(n))
		case ast.KindCondition:
			out = append(out, buildChildren(n.Children)...)
		}
	}
	return out
}

func buildInput(n *ast.Node) *TreeNode {
	tn := &TreeNode{ID: n.AttrString("id"), Kind: n.Kind}
	if cond, ok := n.If(); ok {
		tn.Condition = cond
	}
	switch n.Kind {
	case ast.KindBoolean:
		tn.Index = NewNodeIndex(2)
		tn.Options = []string{"false", "true"}
	case ast.KindText:
		tn.Index = NewNodeIndex(1)
	case ast.KindEnum:
		opts := n.ChildrenOf(ast.KindOption)
		tn.Options = make([]string, len(opts))
		tn.Branches = map[string][]*TreeNode{}
		for i, o := range opts {
			tn.Options[i] = o.AttrString("value")
			tn.Branches[tn.Options[i]] = buildChildren(o.Children)
		}
		tn.Index = NewNodeIndex(max(1, len(opts)))
	case ast.KindList:
		opts := n.ChildrenOf(ast.KindOption)
		tn.Options = make([]string, len(opts))
		var nested []*TreeNode
		for i, o := range opts {
			tn.Options[i] = o.AttrString("value")
			nested = append(nested, buildChildren(o.Children)...)
		}
		tn.Branches = map[string][]*TreeNode{"": nested}
		tn.Index = NewNodeIndex(listSubsetCount(opts))
	}
	return tn
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
