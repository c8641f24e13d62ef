package compiler

import (
	"sort"
	"strings"

	"github.com/archetype-run/archetype/internal/core/ast"
)

// CanonicalXML renders a Node tree to a deterministic XML-like text form:
// attributes sorted by name, consistent indentation, no self-closing
// shorthand variance. It exists so tests can golden-file compare two
// trees (e.g. before/after a round trip through a Decoder) without
// depending on attribute map iteration order.
func CanonicalXML(n *ast.Node) string {
	var b strings.Builder
	writeNode(&b, n, 0)
	return b.String()
}

func writeNode(b *strings.Builder, n *ast.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	b.WriteString(indent)
	b.WriteString("<")
	b.WriteString(n.Kind.String())
	for _, name := range sortedAttrNames(n) {
		b.WriteString(" ")
		b.WriteString(name)
		b.WriteString(`="`)
		b.WriteString(escapeAttr(n.Attrs[name].MustString()))
		b.WriteString(`"`)
	}
	if len(n.Children) == 0 && n.Raw.IsEmpty() {
		b.WriteString("/>\n")
		return
	}
	b.WriteString(">")
	if !n.Raw.IsEmpty() {
		b.WriteString(escapeText(n.Raw.MustString()))
	}
	if len(n.Children) > 0 {
		b.WriteString("\n")
		for _, c := range n.Children {
			writeNode(b, c, depth+1)
		}
		b.WriteString(indent)
	}
	b.WriteString("</")
	b.WriteString(n.Kind.String())
	b.WriteString(">\n")
}

func sortedAttrNames(n *ast.Node) []string {
	names := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func escapeAttr(s string) string {
	r := strings.NewReplacer(`&`, "&amp;", `"`, "&quot;", `<`, "&lt;", `>`, "&gt;")
	return r.Replace(s)
}

func escapeText(s string) string {
	r := strings.NewReplacer(`&`, "&amp;", `<`, "&lt;", `>`, "&gt;")
	return r.Replace(s)
}
