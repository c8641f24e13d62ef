package invoke

import (
	"regexp"
	"strings"

	"github.com/archetype-run/archetype/internal/core/ast"
	"github.com/archetype-run/archetype/internal/core/context"
	cerrors "github.com/archetype-run/archetype/internal/core/errors"
	"github.com/archetype-run/archetype/internal/core/model"
	"github.com/archetype-run/archetype/internal/core/resolve"
	"github.com/archetype-run/archetype/internal/core/value"
)

var inputKindOf = map[ast.Kind]resolve.InputKind{
	ast.KindBoolean: resolve.KindBool,
	ast.KindText:    resolve.KindText,
	ast.KindEnum:    resolve.KindEnum,
	ast.KindList:    resolve.KindList,
}

// visitInput implements the input resolution state machine of spec §4.4/
// §4.5: an already-bound Context value (external value or default, or a
// value bound on a prior pass) short-circuits straight to scope push.
// Otherwise, with no Resolver the declared default is bound directly;
// with one, the Resolver supplies the value (BatchResolver returns the
// declared default, InteractiveResolver may prompt).
func (c *Controller) visitInput(s *ast.Script, n *ast.Node, ctx *context.Context, tree *model.Tree) (VisitResult, error) {
	id := n.AttrString("id")

	if v, ok := ctx.Get(id); ok {
		return c.enterInputScope(s, n, id, v, ctx, tree)
	}

	spec := resolve.InputSpec{
		ID:         id,
		Kind:       inputKindOf[n.Kind],
		PromptText: n.AttrString("prompt"),
		Help:       n.AttrString("help"),
		Optional:   n.AttrString("optional") == "true",
	}
	if dv, ok := n.Attr("default"); ok {
		spec.HasDefault = true
		spec.Default = dv.MustString()
	}
	if n.Kind == ast.KindEnum || n.Kind == ast.KindList {
		for _, opt := range n.ChildrenOf(ast.KindOption) {
			spec.Options = append(spec.Options, opt.AttrString("value"))
		}
	}

	if spec.HasDefault && c.Resolver == nil {
		v, err := coerceDefault(n.Kind, spec.Default)
		if err != nil {
			return Terminate, cerrors.NewInvocationError(pos(n), err)
		}
		return c.bindAndEnter(s, n, id, v, ctx, tree)
	}

	raw, resolved, err := c.resolve(spec)
	if err != nil {
		return Terminate, cerrors.NewInvocationError(pos(n), err)
	}
	if !resolved {
		if spec.Optional {
			return Continue, nil
		}
		return Terminate, cerrors.NewInvocationError(pos(n), &cerrors.UnresolvedInputError{InputID: id})
	}
	v, err := coerceDefault(n.Kind, raw)
	if err != nil {
		return Terminate, cerrors.NewInvocationError(pos(n), err)
	}
	if err := c.validate(n, id, v); err != nil {
		return Terminate, cerrors.NewInvocationError(pos(n), err)
	}
	return c.bindAndEnter(s, n, id, v, ctx, tree)
}

func (c *Controller) resolve(spec resolve.InputSpec) (string, bool, error) {
	if c.Resolver == nil {
		return "", false, nil
	}
	return c.Resolver.Resolve(spec)
}

func coerceDefault(kind ast.Kind, raw string) (value.Value, error) {
	switch kind {
	case ast.KindBoolean:
		return value.NewBool(raw == "true" || raw == "yes"), nil
	case ast.KindList:
		xs, err := value.NewString(raw).AsList()
		if err != nil {
			return value.Value{}, err
		}
		return value.NewList(xs), nil
	default:
		return value.NewString(raw), nil
	}
}

func (c *Controller) bindAndEnter(s *ast.Script, n *ast.Node, id string, v value.Value, ctx *context.Context, tree *model.Tree) (VisitResult, error) {
	if err := ctx.PutAt(id, v, context.KindUser); err != nil {
		return Terminate, cerrors.NewInvocationError(pos(n), err)
	}
	return c.enterInputScope(s, n, id, v, ctx, tree)
}

// enterInputScope pushes a scope named for the input (so nested
// variables/presets/model fragments bind under it), walks its matching
// <option> children (for enum/list) or all children (bool/text), then
// pops back out.
func (c *Controller) enterInputScope(s *ast.Script, n *ast.Node, id string, v value.Value, ctx *context.Context, tree *model.Tree) (VisitResult, error) {
	vis := context.VisLocal
	if n.AttrString("global") == "true" {
		vis = context.VisGlobal
	}
	if _, err := ctx.Push(id, vis); err != nil {
		return Terminate, cerrors.NewInvocationError(pos(n), err)
	}
	defer ctx.Pop()

	children := n.Children
	if n.Kind == ast.KindEnum || n.Kind == ast.KindList {
		children = matchingOptions(n, v)
	}
	res, err := c.walkChildren(s, children, ctx, tree)
	if err != nil {
		return Terminate, err
	}
	return res, nil
}

// matchingOptions returns, for an enum, the single matched option's
// children, or for a list, the concatenation of every selected option's
// children. No scope is pushed per option; the children run in the
// input's own scope.
func matchingOptions(n *ast.Node, v value.Value) []*ast.Node {
	opts := n.ChildrenOf(ast.KindOption)
	if n.Kind == ast.KindEnum {
		s := v.MustString()
		for _, o := range opts {
			if o.AttrString("value") == s {
				return o.Children
			}
		}
		return nil
	}
	selected, _ := v.AsList()
	sel := map[string]bool{}
	for _, s := range selected {
		sel[s] = true
	}
	var out []*ast.Node
	for _, o := range opts {
		if sel[o.AttrString("value")] {
			out = append(out, o.Children...)
		}
	}
	return out
}

// validate resolves each <validation> an input's "validations" attribute
// names (space-separated, matching the "transformations" attribute
// convention) and requires every regex on every named validation to
// match, collecting every non-matching pattern into a single
// InputValidationError (spec §4.4/§7).
func (c *Controller) validate(n *ast.Node, id string, v value.Value) error {
	ref := n.AttrString("validations")
	if ref == "" {
		return nil
	}
	s, err := v.AsString()
	if err != nil {
		return err
	}
	var failed []string
	for _, name := range strings.Fields(ref) {
		vnode, ok := c.findValidation(name)
		if !ok {
			continue
		}
		for _, re := range vnode.ChildrenOf(ast.KindRegex) {
			pattern := re.Raw.MustString()
			r, err := regexp.Compile(pattern)
			if err != nil {
				continue
			}
			if !r.MatchString(s) {
				failed = append(failed, pattern)
			}
		}
	}
	if len(failed) > 0 {
		return &cerrors.InputValidationError{InputID: id, Value: s, Failed: failed}
	}
	return nil
}

// findValidation looks up a <validation> node by the name (or id) an
// input's "validations" attribute references.
func (c *Controller) findValidation(name string) (*ast.Node, bool) {
	v, ok := c.validations[name]
	return v, ok
}

// IndexValidations walks a script's root once, registering every
// <validation> node (nested under a <validations> block per the §6
// grammar) by both its "id" and its display "name" so later input
// nodes can reference it by name regardless of document position.
func (c *Controller) IndexValidations(root *ast.Node) {
	if c.validations == nil {
		c.validations = map[string]*ast.Node{}
	}
	var walk func(n *ast.Node)
	walk = func(n *ast.Node) {
		if n.Kind == ast.KindValidation {
			if id := n.AttrString("id"); id != "" {
				c.validations[id] = n
			}
			if name := n.AttrString("name"); name != "" {
				c.validations[name] = n
			}
		}
		for _, ch := range n.Children {
			walk(ch)
		}
	}
	walk(root)
}
