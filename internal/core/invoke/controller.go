package invoke

import (
	"fmt"
	"strconv"

	"github.com/archetype-run/archetype/internal/core/ast"
	"github.com/archetype-run/archetype/internal/core/context"
	cerrors "github.com/archetype-run/archetype/internal/core/errors"
	"github.com/archetype-run/archetype/internal/core/model"
	"github.com/archetype-run/archetype/internal/core/render"
	"github.com/archetype-run/archetype/internal/core/resolve"
	"github.com/archetype-run/archetype/internal/core/value"
)

// ScriptLoader resolves a canonical path to a parsed Script, caching as it
// sees fit. Invocation never parses XML itself (spec §6's explicit
// non-goal); it only asks a loader for one.
type ScriptLoader interface {
	Load(path string) (*ast.Script, error)
}

// Generator consumes the resolved output events a script produces: one
// call per <template>, <file>, <templates>, <files> and <transformation>
// node the invoker visits, each carrying the context/model state active
// at that point (spec §4.8).
type Generator interface {
	Emit(evt Event) error
}

// Event describes one output-producing node as the invoker reaches it.
type Event struct {
	Kind   ast.Kind
	Node   *ast.Node
	Ctx    *context.Context
	Model  *model.Tree
	Render *render.Renderer
}

// Controller walks a Script's AST against a Context and merged model,
// dispatching invocations and output events (spec §4.4).
type Controller struct {
	Loader    ScriptLoader
	Resolver  resolve.Resolver
	Generator Generator
	Clock     model.Clock

	// OnVisit, if set, is called before a node's own handling and can
	// short-circuit traversal by returning SkipChildren/SkipSiblings/
	// Terminate instead of Continue.
	OnVisit func(n *ast.Node) (VisitResult, error)

	chain       []string             // canonical paths of sources/execs currently open, for cycle detection
	included    map[string]bool      // every path <include>d so far this invocation, active or not, for dup detection
	methodChain []string             // "path#method" frames currently on the call stack
	validations map[string]*ast.Node // validations id -> node, built lazily per script
}

// New returns a Controller ready to invoke scripts.
func New(loader ScriptLoader, resolver resolve.Resolver, gen Generator) *Controller {
	return &Controller{Loader: loader, Resolver: resolver, Generator: gen}
}

// Invoke runs a script's root against ctx/tree, starting a fresh call
// chain. ctx and tree are mutated in place as the walk proceeds.
func (c *Controller) Invoke(s *ast.Script, ctx *context.Context, tree *model.Tree) error {
	c.IndexValidations(s.Root)
	c.included = map[string]bool{s.Path: true}
	c.chain = append(c.chain, s.Path)
	defer func() { c.chain = c.chain[:len(c.chain)-1] }()
	_, err := c.walkChildren(s, s.Root.Children, ctx, tree)
	return err
}

func pos(n *ast.Node) cerrors.Pos { return cerrors.Pos{Path: n.Pos.Path, Line: n.Pos.Line} }

func (c *Controller) walkChildren(s *ast.Script, nodes []*ast.Node, ctx *context.Context, tree *model.Tree) (VisitResult, error) {
	for _, n := range nodes {
		res, err := c.visit(s, n, ctx, tree)
		if err != nil {
			return Terminate, err
		}
		switch res {
		case SkipSiblings, Terminate:
			return res, nil
		}
	}
	return Continue, nil
}

// visit dispatches one node. Method declarations are never auto-executed
// by a plain walk: they only run when a <method>/<call> invocation
// reaches them.
func (c *Controller) visit(s *ast.Script, n *ast.Node, ctx *context.Context, tree *model.Tree) (VisitResult, error) {
	if n.Kind == ast.KindMethodDecl {
		return Continue, nil
	}
	if c.OnVisit != nil {
		res, err := c.OnVisit(n)
		if err != nil || res != Continue {
			return res, err
		}
	}
	if src, ok := n.If(); ok {
		truthy, err := c.evalCondition(src, ctx)
		if err != nil {
			return Terminate, cerrors.NewInvocationError(pos(n), err)
		}
		if !truthy {
			return SkipChildren, nil
		}
	}

	switch n.Kind {
	case ast.KindScript, ast.KindStep, ast.KindInputs, ast.KindCondition, ast.KindOutput, ast.KindOption:
		return c.walkChildren(s, n.Children, ctx, tree)

	case ast.KindBoolean, ast.KindText, ast.KindEnum, ast.KindList:
		return c.visitInput(s, n, ctx, tree)

	case ast.KindPresets:
		return c.visitPresets(n, ctx)

	case ast.KindVariables:
		return c.visitVariables(n, ctx)

	case ast.KindSourceInvocation, ast.KindExecInvocation:
		return c.visitInclude(n, ctx, tree)

	case ast.KindMethodInvocation, ast.KindCallInvocation:
		return c.visitCall(s, n, ctx, tree)

	case ast.KindModelValue, ast.KindModelList, ast.KindModelMap:
		return c.visitModel(n, ctx, tree)

	case ast.KindTemplates, ast.KindFiles, ast.KindTemplate, ast.KindFile, ast.KindTransformation:
		return c.emit(s, n, ctx, tree)

	case ast.KindValidations, ast.KindValidation, ast.KindRegex, ast.KindIncludes, ast.KindExcludes, ast.KindReplace:
		return Continue, nil // consumed structurally by their parent, not walked standalone

	default:
		return Continue, nil
	}
}

func (c *Controller) emit(s *ast.Script, n *ast.Node, ctx *context.Context, tree *model.Tree) (VisitResult, error) {
	if c.Generator != nil {
		r := render.New(tree, ctxSubstituter{ctx}).WithClock(c.Clock)
		if err := c.Generator.Emit(Event{Kind: n.Kind, Node: n, Ctx: ctx, Model: tree, Render: r}); err != nil {
			return Terminate, cerrors.NewInvocationError(pos(n), err)
		}
	}
	if n.Kind == ast.KindTemplates || n.Kind == ast.KindFiles {
		return c.walkChildren(s, n.Children, ctx, tree)
	}
	return Continue, nil
}

type ctxSubstituter struct{ c *context.Context }

func (s ctxSubstituter) Substitute(str string) string { return s.c.Substitute(str) }

func (c *Controller) evalCondition(src string, ctx *context.Context) (bool, error) {
	expr, err := value.Parse(src)
	if err != nil {
		return false, err
	}
	v, err := expr.Eval(lookupFor(ctx))
	if err != nil {
		return false, err
	}
	b, err := v.AsBool()
	if err != nil {
		return false, err
	}
	return b, nil
}

func lookupFor(ctx *context.Context) value.Lookup {
	return func(name string) (value.Value, bool) { return ctx.Get(name) }
}

func (c *Controller) visitVariables(n *ast.Node, ctx *context.Context) (VisitResult, error) {
	for _, child := range n.Children {
		name := child.AttrString("id")
		exprSrc := child.AttrString("value")
		expr, err := value.Parse(exprSrc)
		if err != nil {
			return Terminate, cerrors.NewInvocationError(pos(child), err)
		}
		v, err := expr.Eval(lookupFor(ctx))
		if err != nil {
			return Terminate, cerrors.NewInvocationError(pos(child), err)
		}
		if err := ctx.PutAt(name, v, context.KindLocal); err != nil {
			return Terminate, cerrors.NewInvocationError(pos(child), err)
		}
	}
	return Continue, nil
}

func (c *Controller) visitPresets(n *ast.Node, ctx *context.Context) (VisitResult, error) {
	for _, child := range n.Children {
		name := child.AttrString("id")
		v, err := presetValue(child)
		if err != nil {
			return Terminate, cerrors.NewInvocationError(pos(child), err)
		}
		if err := ctx.PutAt(name, v, context.KindPresets); err != nil {
			return Terminate, cerrors.NewInvocationError(pos(child), err)
		}
	}
	return Continue, nil
}

func presetValue(n *ast.Node) (value.Value, error) {
	raw, ok := n.Attr("value")
	if !ok {
		return value.NewEmpty(), nil
	}
	switch n.Kind {
	case ast.KindBoolean:
		b, err := raw.AsBool()
		if err != nil {
			s := raw.MustString()
			return value.NewBool(s == "true" || s == "yes"), nil
		}
		return value.NewBool(b), nil
	case ast.KindList:
		xs, _ := raw.AsList()
		return value.NewList(xs), nil
	default:
		return raw, nil
	}
}

func (c *Controller) visitModel(n *ast.Node, ctx *context.Context, tree *model.Tree) (VisitResult, error) {
	key := n.AttrString("key")
	order := parseOrder(n, model.DefaultOrder)
	override := false
	if ov, ok := n.Attr("override"); ok {
		if b, err := ov.AsBool(); err == nil {
			override = b
		}
	}

	var frag *model.Node
	switch n.Kind {
	case ast.KindModelValue:
		v, ok := n.Attr("value")
		if !ok {
			v = n.Raw
		}
		frag = model.NewValue(key, v, order, override)
	case ast.KindModelList:
		frag = model.NewList(key, order)
		for _, item := range n.Children {
			iv, ok := item.Attr("value")
			if !ok {
				iv = item.Raw
			}
			itemOrder := parseOrder(item, order)
			frag.Items = append(frag.Items, model.NewValue("", iv, itemOrder, override))
		}
	case ast.KindModelMap:
		frag = model.NewMap(key, order)
		for _, entry := range n.Children {
			ek := entry.AttrString("key")
			ev, ok := entry.Attr("value")
			if !ok {
				ev = entry.Raw
			}
			frag.Entries[ek] = model.NewValue(ek, ev, order, override)
		}
	}
	if frag == nil {
		return Continue, nil
	}
	if err := tree.Add(frag); err != nil {
		return Terminate, cerrors.NewInvocationError(pos(n), err)
	}
	return Continue, nil
}

// parseOrder reads a node's "order" attribute as a plain integer,
// falling back to def if absent or malformed.
func parseOrder(n *ast.Node, def int) int {
	ov, ok := n.Attr("order")
	if !ok {
		return def
	}
	s := ov.MustString()
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func (c *Controller) visitInclude(n *ast.Node, ctx *context.Context, tree *model.Tree) (VisitResult, error) {
	src := ctx.Substitute(n.AttrString("src"))
	for _, p := range c.chain {
		if p == src {
			// src is still an open ancestor on this very path: a → ... → src
			// → this include re-enters src, a real cycle (spec §8 E5).
			return Terminate, cerrors.NewInvocationError(pos(n), &cerrors.IncludeCycleError{Site: pos(n), Chain: append([]string(nil), c.chain...)})
		}
	}
	if len(c.chain) > maxChainDepth {
		return Terminate, cerrors.NewInvocationError(pos(n), &cerrors.IncludeCycleError{Site: pos(n), Chain: append([]string(nil), c.chain...)})
	}
	if c.included == nil {
		c.included = map[string]bool{}
	}
	if c.included[src] {
		// src already finished elsewhere in this invocation: not a cycle,
		// just the same file included twice (e.g. from two siblings).
		return Terminate, cerrors.NewInvocationError(pos(n), &cerrors.DuplicateIncludeError{Site: pos(n), Path: src})
	}
	script, err := c.Loader.Load(src)
	if err != nil {
		return Terminate, cerrors.NewInvocationError(pos(n), err)
	}
	c.IndexValidations(script.Root)
	c.included[src] = true
	c.chain = append(c.chain, src)
	ctx.PushCwd(src)
	_, err = c.walkChildren(script, script.Root.Children, ctx, tree)
	ctx.PopCwd()
	c.chain = c.chain[:len(c.chain)-1]
	if err != nil {
		return Terminate, err
	}
	return Continue, nil
}

const maxChainDepth = 64

func (c *Controller) visitCall(s *ast.Script, n *ast.Node, ctx *context.Context, tree *model.Tree) (VisitResult, error) {
	name := n.AttrString("method")
	if name == "" {
		name = n.AttrString("name")
	}
	method, ok := s.Method(name)
	if !ok {
		return Terminate, cerrors.NewInvocationError(pos(n), fmt.Errorf("undefined method %q", name))
	}
	frame := s.Path + "#" + name
	for _, f := range c.methodChain {
		if f == frame {
			return Terminate, cerrors.NewInvocationError(pos(n), &cerrors.IncludeCycleError{Site: pos(n), Chain: append([]string(nil), c.methodChain...)})
		}
	}
	c.methodChain = append(c.methodChain, frame)
	_, err := c.walkChildren(s, method.Children, ctx, tree)
	c.methodChain = c.methodChain[:len(c.methodChain)-1]
	if err != nil {
		return Terminate, err
	}
	return Continue, nil
}
