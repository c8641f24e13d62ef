// Package ast defines the archetype script's immutable node tree (spec
// §3, §4.2): one Kind per block the XML grammar in spec §6 recognizes.
package ast

import "github.com/archetype-run/archetype/internal/core/value"

// Kind discriminates the block a Node represents.
type Kind int

const (
	KindScript Kind = iota
	KindStep
	KindInputs
	KindBoolean
	KindText
	KindEnum
	KindList
	KindOption
	KindPresets
	KindVariables
	KindCondition
	KindSourceInvocation
	KindExecInvocation
	KindMethodInvocation
	KindCallInvocation
	KindMethodDecl
	KindOutput
	KindModelValue
	KindModelList
	KindModelMap
	KindTemplates
	KindFiles
	KindTemplate
	KindFile
	KindTransformation
	KindReplace
	KindIncludes
	KindExcludes
	KindValidations
	KindValidation
	KindRegex
)

func (k Kind) String() string {
	names := map[Kind]string{
		KindScript: "script", KindStep: "step", KindInputs: "inputs",
		KindBoolean: "boolean", KindText: "text", KindEnum: "enum", KindList: "list",
		KindOption: "option", KindPresets: "presets", KindVariables: "variables",
		KindCondition: "condition", KindSourceInvocation: "source", KindExecInvocation: "exec",
		KindMethodInvocation: "method", KindCallInvocation: "call", KindMethodDecl: "methodDecl",
		KindOutput: "output", KindModelValue: "value", KindModelList: "list-model",
		KindModelMap: "map", KindTemplates: "templates", KindFiles: "files",
		KindTemplate: "template", KindFile: "file", KindTransformation: "transformation",
		KindReplace: "replace", KindIncludes: "includes", KindExcludes: "excludes",
		KindValidations: "validations", KindValidation: "validation", KindRegex: "regex",
	}
	if n, ok := names[k]; ok {
		return n
	}
	return "unknown"
}

// Pos locates a Node's declaration for diagnostics (spec §4.2).
type Pos struct {
	Path string
	Line int
}

// Node is one immutable element of a parsed script. Attrs carries every
// XML attribute the loader recognized (dynamic, Value-typed per spec
// §3); unknown attributes are preserved too. The compiler's validator
// has no rule that flags them.
type Node struct {
	Kind     Kind
	Attrs    map[string]value.Value
	Children []*Node
	Raw      value.Value // e.g. a <regex> body or <option> label text
	Pos      Pos
}

func NewNode(kind Kind, pos Pos) *Node {
	return &Node{Kind: kind, Attrs: map[string]value.Value{}, Pos: pos}
}

func (n *Node) Attr(name string) (value.Value, bool) {
	v, ok := n.Attrs[name]
	return v, ok
}

func (n *Node) AttrString(name string) string {
	v, ok := n.Attrs[name]
	if !ok {
		return ""
	}
	return v.MustString()
}

func (n *Node) SetAttr(name string, v value.Value) {
	n.Attrs[name] = v
}

func (n *Node) AddChild(c *Node) {
	n.Children = append(n.Children, c)
}

// ChildrenOf returns the direct children of the given kind, in document
// order.
func (n *Node) ChildrenOf(kind Kind) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// If returns the node's "if" attribute expression source, if present.
func (n *Node) If() (string, bool) {
	v, ok := n.Attrs["if"]
	if !ok {
		return "", false
	}
	return v.MustString(), true
}

// Clone deep-copies a Node tree; used when specializing a Global scope's
// subtree (context package) so mutation never aliases the loaded AST.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := &Node{
		Kind: n.Kind,
		Raw:  n.Raw,
		Pos:  n.Pos,
	}
	cp.Attrs = make(map[string]value.Value, len(n.Attrs))
	for k, v := range n.Attrs {
		cp.Attrs[k] = v
	}
	cp.Children = make([]*Node, len(n.Children))
	for i, c := range n.Children {
		cp.Children[i] = c.Clone()
	}
	return cp
}
