package invoke

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archetype-run/archetype/internal/core/ast"
	"github.com/archetype-run/archetype/internal/core/context"
	cerrors "github.com/archetype-run/archetype/internal/core/errors"
	"github.com/archetype-run/archetype/internal/core/model"
	"github.com/archetype-run/archetype/internal/core/resolve"
	"github.com/archetype-run/archetype/internal/core/value"
)

type fakeGenerator struct{ events []Event }

func (g *fakeGenerator) Emit(evt Event) error {
	g.events = append(g.events, evt)
	return nil
}

type stubLoader struct{ scripts map[string]*ast.Script }

func (l *stubLoader) Load(path string) (*ast.Script, error) {
	return l.scripts[path], nil
}

func attr(v string) value.Value { return value.NewString(v) }

func TestControllerPresetsVariablesAndModel(t *testing.T) {
	root := ast.NewNode(ast.KindScript, ast.Pos{})

	presets := ast.NewNode(ast.KindPresets, ast.Pos{})
	name := ast.NewNode(ast.KindText, ast.Pos{})
	name.SetAttr("id", attr("project-name"))
	name.SetAttr("value", attr("demo"))
	presets.AddChild(name)
	root.AddChild(presets)

	vars := ast.NewNode(ast.KindVariables, ast.Pos{})
	shout := ast.NewNode(ast.KindVariables, ast.Pos{})
	shout.SetAttr("id", attr("shout"))
	shout.SetAttr("value", attr(`'demo' contains 'demo'`))
	vars.AddChild(shout)
	root.AddChild(vars)

	mv := ast.NewNode(ast.KindModelValue, ast.Pos{})
	mv.SetAttr("key", attr("greeting"))
	mv.SetAttr("value", attr("hi ${project-name}"))
	root.AddChild(mv)

	script, err := ast.NewScript("root.xml", root)
	require.NoError(t, err)

	ctx := context.New()
	tree := model.NewTree()
	gen := &fakeGenerator{}
	c := New(&stubLoader{}, resolve.BatchResolver{}, gen)

	require.NoError(t, c.Invoke(script, ctx, tree))

	v, ok := ctx.Get("project-name")
	require.True(t, ok)
	assert.Equal(t, "demo", v.MustString())

	greeting, ok := tree.Root().Get("greeting")
	require.True(t, ok)
	assert.Equal(t, "hi ${project-name}", greeting.Value.MustString())
	assert.Equal(t, "hi demo", ctx.Substitute(greeting.Value.MustString()))
}

func TestControllerConditionSkipsSubtree(t *testing.T) {
	root := ast.NewNode(ast.KindScript, ast.Pos{})
	presets := ast.NewNode(ast.KindPresets, ast.Pos{})
	flag := ast.NewNode(ast.KindBoolean, ast.Pos{})
	flag.SetAttr("id", attr("enabled"))
	flag.SetAttr("value", attr("false"))
	presets.AddChild(flag)
	root.AddChild(presets)

	gated := ast.NewNode(ast.KindModelValue, ast.Pos{})
	gated.SetAttr("if", attr("${enabled}"))
	gated.SetAttr("key", attr("x"))
	gated.SetAttr("value", attr("y"))
	root.AddChild(gated)

	script, err := ast.NewScript("root.xml", root)
	require.NoError(t, err)

	ctx := context.New()
	tree := model.NewTree()
	c := New(&stubLoader{}, resolve.BatchResolver{}, nil)
	require.NoError(t, c.Invoke(script, ctx, tree))

	_, ok := tree.Root().Get("x")
	assert.False(t, ok, "node gated by a false if= must not run")
}

// fixedResolver always resolves to a fixed raw string, bypassing any
// declared default so validate() is exercised on a path an external
// value actually reaches (see visitInput: ctx.Get and the
// HasDefault-with-no-Resolver branch both skip validate()).
type fixedResolver struct{ raw string }

func (r fixedResolver) Resolve(spec resolve.InputSpec) (string, bool, error) {
	return r.raw, true, nil
}

func newRegex(pattern string) *ast.Node {
	n := ast.NewNode(ast.KindRegex, ast.Pos{})
	n.Raw = attr(pattern)
	return n
}

func TestControllerValidationRequiresAllRegexesToMatch(t *testing.T) {
	root := ast.NewNode(ast.KindScript, ast.Pos{})

	validations := ast.NewNode(ast.KindValidations, ast.Pos{})
	v := ast.NewNode(ast.KindValidation, ast.Pos{})
	v.SetAttr("id", attr("v1"))
	v.SetAttr("name", attr("alnum"))
	v.AddChild(newRegex("^[a-z]+$"))
	v.AddChild(newRegex("^.{3,}$"))
	validations.AddChild(v)
	root.AddChild(validations)

	inputs := ast.NewNode(ast.KindInputs, ast.Pos{})
	text := ast.NewNode(ast.KindText, ast.Pos{})
	text.SetAttr("id", attr("username"))
	text.SetAttr("validations", attr("alnum"))
	inputs.AddChild(text)
	root.AddChild(inputs)

	script, err := ast.NewScript("root.xml", root)
	require.NoError(t, err)

	ctx := context.New()
	tree := model.NewTree()
	c := New(&stubLoader{}, fixedResolver{raw: "A"}, nil)

	err = c.Invoke(script, ctx, tree)
	require.Error(t, err)
	var ve *cerrors.InputValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "username", ve.InputID)
	assert.ElementsMatch(t, []string{"^[a-z]+$", "^.{3,}$"}, ve.Failed)
}

func TestControllerValidationPassesWhenAllRegexesMatch(t *testing.T) {
	root := ast.NewNode(ast.KindScript, ast.Pos{})

	validations := ast.NewNode(ast.KindValidations, ast.Pos{})
	v := ast.NewNode(ast.KindValidation, ast.Pos{})
	v.SetAttr("id", attr("v1"))
	v.SetAttr("name", attr("alnum"))
	v.AddChild(newRegex("^[a-z]+$"))
	v.AddChild(newRegex("^.{3,}$"))
	validations.AddChild(v)
	root.AddChild(validations)

	inputs := ast.NewNode(ast.KindInputs, ast.Pos{})
	text := ast.NewNode(ast.KindText, ast.Pos{})
	text.SetAttr("id", attr("username"))
	text.SetAttr("validations", attr("alnum"))
	inputs.AddChild(text)
	root.AddChild(inputs)

	script, err := ast.NewScript("root.xml", root)
	require.NoError(t, err)

	ctx := context.New()
	tree := model.NewTree()
	c := New(&stubLoader{}, fixedResolver{raw: "abcdef"}, nil)

	require.NoError(t, c.Invoke(script, ctx, tree))
	got, ok := ctx.Get("username")
	require.True(t, ok)
	assert.Equal(t, "abcdef", got.MustString())
}

func newSourceInclude(src string) *ast.Node {
	n := ast.NewNode(ast.KindSourceInvocation, ast.Pos{})
	n.SetAttr("src", attr(src))
	return n
}

func TestControllerIncludeCycleDetected(t *testing.T) {
	rootNode := ast.NewNode(ast.KindScript, ast.Pos{})
	rootNode.AddChild(newSourceInclude("b.xml"))
	rootScript, err := ast.NewScript("root.xml", rootNode)
	require.NoError(t, err)

	bNode := ast.NewNode(ast.KindScript, ast.Pos{})
	bNode.AddChild(newSourceInclude("root.xml"))
	bScript, err := ast.NewScript("b.xml", bNode)
	require.NoError(t, err)

	loader := &stubLoader{scripts: map[string]*ast.Script{
		"root.xml": rootScript,
		"b.xml":    bScript,
	}}

	ctx := context.New()
	tree := model.NewTree()
	c := New(loader, resolve.BatchResolver{}, nil)

	err = c.Invoke(rootScript, ctx, tree)
	require.Error(t, err)
	var ce *cerrors.IncludeCycleError
	assert.True(t, errors.As(err, &ce), "want IncludeCycleError, got %v", err)
}

func TestControllerDuplicateIncludeOfCompletedSiblingIsNotACycle(t *testing.T) {
	rootNode := ast.NewNode(ast.KindScript, ast.Pos{})
	rootNode.AddChild(newSourceInclude("shared.xml"))
	rootNode.AddChild(newSourceInclude("shared.xml"))
	rootScript, err := ast.NewScript("root.xml", rootNode)
	require.NoError(t, err)

	sharedNode := ast.NewNode(ast.KindScript, ast.Pos{})
	sharedScript, err := ast.NewScript("shared.xml", sharedNode)
	require.NoError(t, err)

	loader := &stubLoader{scripts: map[string]*ast.Script{
		"root.xml":   rootScript,
		"shared.xml": sharedScript,
	}}

	ctx := context.New()
	tree := model.NewTree()
	c := New(loader, resolve.BatchResolver{}, nil)

	err = c.Invoke(rootScript, ctx, tree)
	require.Error(t, err)
	var de *cerrors.DuplicateIncludeError
	require.True(t, errors.As(err, &de), "want DuplicateIncludeError, got %v", err)
	assert.Equal(t, "shared.xml", de.Path)
}

func TestControllerRequiredInputWithoutDefaultIsUnresolved(t *testing.T) {
	root := ast.NewNode(ast.KindScript, ast.Pos{})
	inputs := ast.NewNode(ast.KindInputs, ast.Pos{})
	text := ast.NewNode(ast.KindText, ast.Pos{})
	text.SetAttr("id", attr("missing"))
	inputs.AddChild(text)
	root.AddChild(inputs)

	script, err := ast.NewScript("root.xml", root)
	require.NoError(t, err)

	ctx := context.New()
	tree := model.NewTree()
	c := New(&stubLoader{}, resolve.BatchResolver{}, nil)
	err = c.Invoke(script, ctx, tree)
	assert.Error(t, err)
}
