package combinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archetype-run/archetype/internal/core/ast"
	"github.com/archetype-run/archetype/internal/core/value"
)

func strVal(s string) value.Value { return value.NewString(s) }

func boolInput(name string) *ast.Node {
	n := ast.NewNode(ast.KindBoolean, ast.Pos{})
	n.SetAttr("id", strVal(name))
	return n
}

func enumInput(name string, options ...string) *ast.Node {
	n := ast.NewNode(ast.KindEnum, ast.Pos{})
	n.SetAttr("id", strVal(name))
	for _, o := range options {
		opt := ast.NewNode(ast.KindOption, ast.Pos{})
		opt.SetAttr("value", strVal(o))
		n.AddChild(opt)
	}
	return n
}

func TestEnumerateFlatProduct(t *testing.T) {
	root := ast.NewNode(ast.KindScript, ast.Pos{})
	inputs := ast.NewNode(ast.KindInputs, ast.Pos{})
	inputs.AddChild(boolInput("tests"))
	inputs.AddChild(enumInput("build", "maven", "gradle", "bazel"))
	root.AddChild(inputs)

	tree := Build(root)
	count, err := Count(tree, nil)
	require.NoError(t, err)
	assert.Equal(t, 2*3, count, "2 bool values x 3 enum options")
}

func TestEnumerateNestedOptionChildren(t *testing.T) {
	root := ast.NewNode(ast.KindScript, ast.Pos{})
	inputs := ast.NewNode(ast.KindInputs, ast.Pos{})
	build := enumInput("build", "maven", "gradle")
	// only the "gradle" option reveals a nested boolean input.
	gradleOpt := build.Children[1]
	gradleOpt.AddChild(boolInput("kotlin-dsl"))
	inputs.AddChild(build)
	root.AddChild(inputs)

	tree := Build(root)
	count, err := Count(tree, nil)
	require.NoError(t, err)
	// maven contributes 1, gradle contributes 2 (kotlin-dsl true/false).
	assert.Equal(t, 1+2, count)
}

func TestEnumeratePresetsCollapseToOne(t *testing.T) {
	root := ast.NewNode(ast.KindScript, ast.Pos{})
	inputs := ast.NewNode(ast.KindInputs, ast.Pos{})
	inputs.AddChild(boolInput("tests"))
	inputs.AddChild(enumInput("build", "maven", "gradle", "bazel"))
	root.AddChild(inputs)

	tree := Build(root)
	ApplyPresets(tree, map[string]string{"build": "gradle"})
	count, err := Count(tree, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "build is fixed by presets, only tests still varies")
}

func TestEnumerateExcluderPrunes(t *testing.T) {
	root := ast.NewNode(ast.KindScript, ast.Pos{})
	inputs := ast.NewNode(ast.KindInputs, ast.Pos{})
	inputs.AddChild(boolInput("tests"))
	inputs.AddChild(enumInput("build", "maven", "gradle"))
	root.AddChild(inputs)

	tree := Build(root)
	excl, err := BuildExcluder([]string{`${build} == 'bazel'`})
	require.NoError(t, err)
	count, err := Count(tree, excl)
	require.NoError(t, err)
	assert.Equal(t, 4, count, "no variation actually has build==bazel here, nothing pruned")
}

func TestEnumerateConditionalInputGatesOnEarlierChoice(t *testing.T) {
	root := ast.NewNode(ast.KindScript, ast.Pos{})
	inputs := ast.NewNode(ast.KindInputs, ast.Pos{})
	inputs.AddChild(boolInput("advanced"))
	gated := boolInput("extra-flag")
	gated.SetAttr("if", strVal("${advanced}"))
	inputs.AddChild(gated)
	root.AddChild(inputs)

	tree := Build(root)
	visited := 0
	_, err := Enumerate(tree, nil, func(a Assignment) error {
		visited++
		return nil
	})
	require.NoError(t, err)
	// advanced=false -> extra-flag skipped (1 variation);
	// advanced=true -> extra-flag true/false (2 variations): 3 total.
	assert.Equal(t, 3, visited)
}
