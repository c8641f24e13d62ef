// Package model implements the template model merger (spec §3 TemplateModel,
// §4.6): an accumulated tree of Value/List/Map fragments with deterministic
// ordered merge semantics.
package model

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/archetype-run/archetype/internal/core/value"
)

type Kind int

const (
	ValueKind Kind = iota
	ListKind
	MapKind
)

const DefaultOrder = 100

// Node is one fragment of the merged model tree.
type Node struct {
	Kind     Kind
	Key      string // empty for the anonymous root and for unkeyed list elements
	Order    int
	Override bool
	Value    value.Value // Kind == ValueKind
	Items    []*Node     // Kind == ListKind: elements, each any kind
	Entries  map[string]*Node
	order    []string // insertion order of Entries' keys, for Kind == MapKind
}

func NewValue(key string, v value.Value, order int, override bool) *Node {
	return &Node{Kind: ValueKind, Key: key, Value: v, Order: order, Override: override}
}

func NewList(key string, order int) *Node {
	return &Node{Kind: ListKind, Key: key, Order: order}
}

func NewMap(key string, order int) *Node {
	return &Node{Kind: MapKind, Key: key, Order: order, Entries: map[string]*Node{}}
}

// Tree is the merged model accumulated while a script is invoked. The
// root is always a Map node whose entries are the top-level named
// fragments.
type Tree struct {
	root *Node
}

func NewTree() *Tree {
	return &Tree{root: NewMap("", DefaultOrder)}
}

// Add merges a new fragment into the tree at the top level, applying the
// merge rules of spec §4.6.
func (t *Tree) Add(n *Node) error {
	merged, err := mergeInto(t.root, n)
	if err != nil {
		return err
	}
	t.root = merged
	return nil
}

// Root exposes the merged tree for rendering/inspection.
func (t *Tree) Root() *Node { return t.root }

// mergeInto merges child into parent (a MapKind node), keyed by
// child.Key. Adding a keyless entry to a Map is a fatal error.
func mergeInto(parent *Node, child *Node) (*Node, error) {
	if parent.Kind != MapKind {
		return nil, fmt.Errorf("model: cannot merge into a non-map node")
	}
	if child.Key == "" {
		return nil, fmt.Errorf("model: adding a keyless entry to a map is fatal")
	}
	existing, ok := parent.Entries[child.Key]
	if !ok {
		parent.order = append(parent.order, child.Key)
		parent.Entries[child.Key] = child
		return parent, nil
	}
	merged, err := mergeNodes(existing, child)
	if err != nil {
		return nil, err
	}
	parent.Entries[child.Key] = merged
	return parent, nil
}

// mergeNodes merges two same-keyed fragments per spec §4.6:
//   - List: concatenate, stable-sorted by increasing order (lower = earlier).
//   - Map: union of keys; an entry present in both is merged by these
//     same rules.
//   - Value: child overrides if override=true, else earlier-by-order wins.
func mergeNodes(a, b *Node) (*Node, error) {
	if a.Kind != b.Kind {
		// A later fragment of a different kind always takes over the
		// slot; this mirrors a script redeclaring a key's shape.
		return b, nil
	}
	switch a.Kind {
	case ValueKind:
		if b.Override {
			return b, nil
		}
		if b.Order < a.Order {
			return b, nil
		}
		return a, nil
	case ListKind:
		merged := &Node{Kind: ListKind, Key: a.Key, Order: a.Order}
		merged.Items = append(merged.Items, a.Items...)
		merged.Items = append(merged.Items, b.Items...)
		slices.SortStableFunc(merged.Items, func(x, y *Node) int {
			return x.Order - y.Order
		})
		return merged, nil
	case MapKind:
		merged := NewMap(a.Key, a.Order)
		merged.order = append(merged.order, a.order...)
		for k, v := range a.Entries {
			merged.Entries[k] = v
		}
		for _, k := range b.order {
			v := b.Entries[k]
			if existing, ok := merged.Entries[k]; ok {
				nv, err := mergeNodes(existing, v)
				if err != nil {
					return nil, err
				}
				merged.Entries[k] = nv
			} else {
				merged.order = append(merged.order, k)
				merged.Entries[k] = v
			}
		}
		return merged, nil
	}
	return b, nil
}

// OrderedKeys returns a Map node's entry keys in insertion order.
func (n *Node) OrderedKeys() []string {
	if n.Kind != MapKind {
		return nil
	}
	return append([]string(nil), n.order...)
}

// Get resolves a dotted path of map keys starting at n.
func (n *Node) Get(path string) (*Node, bool) {
	cur := n
	for _, seg := range splitDot(path) {
		if cur.Kind != MapKind {
			return nil, false
		}
		child, ok := cur.Entries[seg]
		if !ok {
			return nil, false
		}
		cur = child
	}
	return cur, true
}

func splitDot(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
