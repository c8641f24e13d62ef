package compiler

import (
	"strings"
	"testing"

	"github.com/cockroachdb/apd/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/kr/pretty"
	"github.com/kylelemons/godebug/diff"
	"github.com/stretchr/testify/require"

	"github.com/archetype-run/archetype/internal/core/ast"
	"github.com/archetype-run/archetype/internal/core/value"
	"github.com/archetype-run/archetype/internal/core/xmlscript"
)

// diffOpts lets go-cmp walk into value.Value's unexported tag fields,
// comparing its embedded *apd.Decimal through its own Cmp rather than
// prying open apd's internal representation. Pos is ignored: canonical
// re-serialization reflows line numbers, which isn't a structural change.
var diffOpts = []cmp.Option{
	cmp.AllowUnexported(value.Value{}),
	cmp.Comparer(func(x, y *apd.Decimal) bool {
		if x == nil || y == nil {
			return x == y
		}
		return x.Cmp(y) == 0
	}),
	cmpopts.IgnoreFields(ast.Node{}, "Pos"),
}

func TestCanonicalXMLAttributesSorted(t *testing.T) {
	n := ast.NewNode(ast.KindStep, ast.Pos{Path: "t.xml", Line: 1})
	n.SetAttr("name", value.NewString("emit"))
	n.SetAttr("help", value.NewString("does the thing"))

	got := CanonicalXML(n)
	want := "<step help=\"does the thing\" name=\"emit\"/>\n"
	if got != want {
		t.Errorf("canonical form mismatch:\n%s", diff.Diff(want, got))
	}
}

func TestCanonicalXMLRoundTripsThroughDecoder(t *testing.T) {
	src := `<script>
  <inputs>
    <enum id="build" default="maven">
      <option name="Maven" value="maven"/>
      <option name="Gradle" value="gradle"/>
    </enum>
  </inputs>
  <validations>
    <validation id="slug" name="lowercase slug">
      <regex>^[a-z0-9-]+$</regex>
    </validation>
  </validations>
</script>`

	dec := xmlscript.New()
	first, err := dec.Decode("t.xml", strings.NewReader(src))
	require.NoError(t, err)

	canonical := CanonicalXML(first)
	second, err := dec.Decode("t.xml", strings.NewReader(canonical))
	require.NoError(t, err)

	if !cmp.Equal(first, second, diffOpts...) {
		t.Errorf("round trip changed the tree:\n%s\n---\n%s",
			cmp.Diff(first, second, diffOpts...), pretty.Sprint(second))
	}
}
