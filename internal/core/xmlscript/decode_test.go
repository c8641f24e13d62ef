package xmlscript

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archetype-run/archetype/internal/core/ast"
)

func TestDecodeInputsAndOptions(t *testing.T) {
	src := `<script>
  <inputs>
    <enum id="build" default="maven">
      <option name="Maven" value="maven"/>
      <option name="Gradle" value="gradle"/>
    </enum>
  </inputs>
</script>`

	root, err := New().Decode("t.xml", strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, ast.KindScript, root.Kind)

	inputs := root.ChildrenOf(ast.KindInputs)
	require.Len(t, inputs, 1)
	enums := inputs[0].ChildrenOf(ast.KindEnum)
	require.Len(t, enums, 1)
	assert.Equal(t, "build", enums[0].AttrString("id"))
	assert.Equal(t, "maven", enums[0].AttrString("default"))

	opts := enums[0].ChildrenOf(ast.KindOption)
	require.Len(t, opts, 2)
	assert.Equal(t, "maven", opts[0].AttrString("value"))
	assert.Equal(t, "gradle", opts[1].AttrString("value"))
}

func TestDecodeModelWrapperUnwraps(t *testing.T) {
	src := `<script>
  <step name="emit">
    <model>
      <value key="greeting" value="hi"/>
      <list key="data" order="0">
        <value value="a"/>
      </list>
    </model>
  </step>
</script>`

	root, err := New().Decode("t.xml", strings.NewReader(src))
	require.NoError(t, err)

	step := root.ChildrenOf(ast.KindStep)
	require.Len(t, step, 1)

	values := step[0].ChildrenOf(ast.KindModelValue)
	require.Len(t, values, 1)
	assert.Equal(t, "greeting", values[0].AttrString("key"))

	lists := step[0].ChildrenOf(ast.KindModelList)
	require.Len(t, lists, 1)
	assert.Equal(t, "data", lists[0].AttrString("key"))
	assert.Equal(t, "0", lists[0].AttrString("order"))
}

func TestDecodeValidationsRegexRawText(t *testing.T) {
	src := `<script>
  <validations>
    <validation id="slug" name="lowercase slug">
      <regex>^[a-z0-9-]+$</regex>
    </validation>
  </validations>
</script>`

	root, err := New().Decode("t.xml", strings.NewReader(src))
	require.NoError(t, err)

	blocks := root.ChildrenOf(ast.KindValidations)
	require.Len(t, blocks, 1)
	rules := blocks[0].ChildrenOf(ast.KindValidation)
	require.Len(t, rules, 1)
	assert.Equal(t, "slug", rules[0].AttrString("id"))

	regexes := rules[0].ChildrenOf(ast.KindRegex)
	require.Len(t, regexes, 1)
	assert.Equal(t, "^[a-z0-9-]+$", regexes[0].Raw.MustString())
}

func TestDecodeTracksLineNumbers(t *testing.T) {
	src := "<script>\n  <step name=\"one\">\n  </step>\n</script>"
	root, err := New().Decode("t.xml", strings.NewReader(src))
	require.NoError(t, err)
	steps := root.ChildrenOf(ast.KindStep)
	require.Len(t, steps, 1)
	assert.Equal(t, 2, steps[0].Pos.Line)
}

func TestDecodeUnknownElementIgnored(t *testing.T) {
	src := `<script><bogus attr="x"><step name="s"/></bogus></script>`
	root, err := New().Decode("t.xml", strings.NewReader(src))
	require.NoError(t, err)
	assert.Empty(t, root.Children, "unknown element and its children are dropped")
}
