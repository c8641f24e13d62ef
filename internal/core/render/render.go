// Package render implements the Mustache-subset template renderer (spec
// §4.7) over a merged model.Tree, with ${…} context-variable expansion.
package render

import (
	"fmt"
	"strings"

	"github.com/archetype-run/archetype/internal/core/model"
	"github.com/archetype-run/archetype/internal/core/value"
)

// Substituter expands ${name} references against the active Context
// (render only depends on this narrow interface, not the whole Context
// package API, so it stays easy to unit test with a fake).
type Substituter interface {
	Substitute(s string) string
}

// Renderer renders Mustache-subset templates against a merged model.
type Renderer struct {
	model *model.Tree
	ctx   Substituter
	clock model.Clock
}

func New(m *model.Tree, ctx Substituter) *Renderer {
	return &Renderer{model: m, ctx: ctx}
}

// WithClock overrides the clock backing the synthetic current-date
// value; intended for tests.
func (r *Renderer) WithClock(c model.Clock) *Renderer {
	r.clock = c
	return r
}

// scope is the local rendering environment: the "extra scope" (if any)
// layered above the base model, plus the current section's local value
// when iterating.
type scope struct {
	extra *model.Node
	local *model.Node
	dot   *model.Node // the "." current item, when inside a list section
	last  bool        // true only on the last element, for {{^last}}
	base  *model.Node
}

// Render renders template text against the tree, with an optional extra
// scope layered above it (spec §4.7).
func (r *Renderer) Render(tmpl string, extra *model.Node) (string, error) {
	sc := &scope{extra: extra, local: r.model.Root(), base: r.model.Root()}
	out, _, err := r.render(tmpl, sc)
	return out, err
}

// render returns the rendered text and the unconsumed remainder of
// tmpl (used internally so that {{/section}} can terminate recursion).
func (r *Renderer) render(tmpl string, sc *scope) (string, string, error) {
	var b strings.Builder
	rest := tmpl
	for {
		idx := strings.Index(rest, "{{")
		if idx < 0 {
			b.WriteString(r.expand(rest, sc))
			return b.String(), "", nil
		}
		b.WriteString(r.expand(rest[:idx], sc))
		rest = rest[idx+2:]
		end := strings.Index(rest, "}}")
		if end < 0 {
			return "", "", fmt.Errorf("render: unterminated {{ tag")
		}
		tag := strings.TrimSpace(rest[:end])
		rest = rest[end+2:]

		switch {
		case tag == "":
			continue
		case strings.HasPrefix(tag, "#"):
			name := strings.TrimSpace(tag[1:])
			body, after, err := splitSection(rest, name)
			if err != nil {
				return "", "", err
			}
			text, err := r.renderSection(name, body, sc, false)
			if err != nil {
				return "", "", err
			}
			b.WriteString(text)
			rest = after
		case strings.HasPrefix(tag, "^"):
			name := strings.TrimSpace(tag[1:])
			body, after, err := splitSection(rest, name)
			if err != nil {
				return "", "", err
			}
			text, err := r.renderSection(name, body, sc, true)
			if err != nil {
				return "", "", err
			}
			b.WriteString(text)
			rest = after
		case tag == ".":
			b.WriteString(r.dotText(sc))
		default:
			b.WriteString(r.lookupScalar(tag, sc))
		}
	}
}

// splitSection finds the body of a {{#name}}...{{/name}} or
// {{^name}}...{{/name}} block, returning the body and the text after its
// closing tag.
func splitSection(rest, name string) (body, after string, err error) {
	depth := 1
	var b strings.Builder
	cursor := rest
	for depth > 0 {
		idx := strings.Index(cursor, "{{")
		if idx < 0 {
			return "", "", fmt.Errorf("render: unterminated section %q", name)
		}
		b.WriteString(cursor[:idx])
		afterOpen := cursor[idx+2:]
		end := strings.Index(afterOpen, "}}")
		if end < 0 {
			return "", "", fmt.Errorf("render: unterminated tag in section %q", name)
		}
		tag := strings.TrimSpace(afterOpen[:end])
		cursor = afterOpen[end+2:]
		switch {
		case strings.HasPrefix(tag, "#") || strings.HasPrefix(tag, "^"):
			depth++
			b.WriteString("{{" + tag + "}}")
		case strings.HasPrefix(tag, "/"):
			depth--
			if depth == 0 {
				return b.String(), cursor, nil
			}
			b.WriteString("{{" + tag + "}}")
		default:
			b.WriteString("{{" + tag + "}}")
		}
	}
	return "", "", fmt.Errorf("render: unreachable")
}

func (r *Renderer) renderSection(name, body string, sc *scope, inverted bool) (string, error) {
	node := r.resolve(name, sc)

	present := node != nil && !isFalsy(node)
	if inverted {
		if present {
			return "", nil
		}
		text, _, err := r.render(body, sc)
		return text, err
	}
	if !present {
		return "", nil
	}

	switch node.Kind {
	case model.ListKind:
		var b strings.Builder
		for i, item := range node.Items {
			child := &scope{extra: sc.extra, local: item, dot: item, base: sc.base, last: i == len(node.Items)-1}
			text, _, err := r.render(body, child)
			if err != nil {
				return "", err
			}
			b.WriteString(text)
		}
		return b.String(), nil
	case model.MapKind:
		child := &scope{extra: sc.extra, local: node, dot: node, base: sc.base}
		text, _, err := r.render(body, child)
		return text, err
	default: // ValueKind
		child := &scope{extra: sc.extra, local: node, dot: node, base: sc.base}
		text, _, err := r.render(body, child)
		return text, err
	}
}

func isFalsy(n *model.Node) bool {
	if n.Kind == model.ValueKind {
		if b, err := n.Value.AsBool(); err == nil {
			return !b
		}
		s, _ := n.Value.AsString()
		return s == ""
	}
	if n.Kind == model.ListKind {
		return len(n.Items) == 0
	}
	return false
}

// resolve looks a name up against, in order: the "last" synthetic
// marker, the current-date name, the local scope, the extra scope, then
// the base model.
func (r *Renderer) resolve(name string, sc *scope) *model.Node {
	if name == "last" {
		if sc.last {
			return model.NewValue("last", value.NewBool(true), model.DefaultOrder, false)
		}
		return nil
	}
	if name == CurrentDateName {
		return model.NewValue(CurrentDateName, value.NewString(model.CurrentDate(r.clock)), model.DefaultOrder, false)
	}
	if sc.local != nil {
		if n, ok := sc.local.Get(name); ok {
			return n
		}
	}
	if sc.extra != nil {
		if n, ok := sc.extra.Get(name); ok {
			return n
		}
	}
	if sc.base != nil {
		if n, ok := sc.base.Get(name); ok {
			return n
		}
	}
	return nil
}

const CurrentDateName = "current-date"

func (r *Renderer) dotText(sc *scope) string {
	if sc.dot == nil {
		return ""
	}
	return r.valueText(sc.dot)
}

func (r *Renderer) lookupScalar(name string, sc *scope) string {
	n := r.resolve(name, sc)
	if n == nil {
		return ""
	}
	return r.valueText(n)
}

// valueText renders a scalar Node to text, expanding ${…} against the
// active Context. Rendering a list or map where a scalar is expected is
// a rendering error in the spec; callers that need strict failure should
// check Node.Kind before calling this from a non-{{tag}} site. Inside
// {{tag}} itself we degrade gracefully to empty text for non-scalars,
// since that is the only place untyped user templates reach this path.
func (r *Renderer) valueText(n *model.Node) string {
	if n.Kind != model.ValueKind {
		return ""
	}
	s, _ := n.Value.AsString()
	if r.ctx != nil {
		s = r.ctx.Substitute(s)
	}
	return s
}

