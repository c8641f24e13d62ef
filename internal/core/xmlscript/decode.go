// Package xmlscript is the default script Decoder (spec §6, §4.2's
// "delegated to the XML collaborator"): it turns the archetype script
// XML grammar into ast.Node trees using the standard library's
// encoding/xml. There is no third-party XML library anywhere in the
// retrieval pack (see DESIGN.md), so this is the one package in the
// module that is grounded on the standard library by necessity rather
// than choice.
package xmlscript

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/archetype-run/archetype/internal/core/ast"
	"github.com/archetype-run/archetype/internal/core/value"
)

// kinds maps an XML element name to its ast.Kind, for every element
// except the two that need surrounding context to disambiguate
// (<list> and, inside <model>, <value>/<list>/<map>).
var kinds = map[string]ast.Kind{
	"script":       ast.KindScript,
	"step":         ast.KindStep,
	"inputs":       ast.KindInputs,
	"boolean":      ast.KindBoolean,
	"text":         ast.KindText,
	"enum":         ast.KindEnum,
	"option":       ast.KindOption,
	"presets":      ast.KindPresets,
	"variables":    ast.KindVariables,
	"condition":    ast.KindCondition,
	"source":       ast.KindSourceInvocation,
	"exec":         ast.KindExecInvocation,
	"method":       ast.KindMethodDecl,
	"call":         ast.KindCallInvocation,
	"output":       ast.KindOutput,
	"transformation": ast.KindTransformation,
	"replace":      ast.KindReplace,
	"templates":    ast.KindTemplates,
	"files":        ast.KindFiles,
	"includes":     ast.KindIncludes,
	"excludes":     ast.KindExcludes,
	"template":     ast.KindTemplate,
	"file":         ast.KindFile,
	"validations":  ast.KindValidations,
	"validation":   ast.KindValidation,
	"regex":        ast.KindRegex,
}

// modelKinds is consulted instead of kinds while decoding the children
// of a <model> element, which the decoder unwraps rather than
// materializing (no ast.Kind corresponds to the wrapper itself).
var modelKinds = map[string]ast.Kind{
	"value": ast.KindModelValue,
	"list":  ast.KindModelList,
	"map":   ast.KindModelMap,
}

// Decoder parses archetype script XML into an ast.Node tree.
type Decoder struct{}

func New() *Decoder { return &Decoder{} }

// Decode parses the XML document read from r, attributing every Node's
// Pos to path and the line its start tag appears on.
func (d *Decoder) Decode(path string, r io.Reader) (*ast.Node, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("xmlscript: reading %s: %w", path, err)
	}
	dec := xml.NewDecoder(bytes.NewReader(data))

	var root *ast.Node
	var stack []*ast.Node
	inModel := map[*ast.Node]bool{}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xmlscript: %s: %w", path, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if name == "model" {
				// Unwrapped: its children attach directly to the
				// current parent, as if <model> were never there.
				if len(stack) == 0 {
					return nil, fmt.Errorf("xmlscript: %s: <model> outside any element", path)
				}
				inModel[stack[len(stack)-1]] = true
				stack = append(stack, stack[len(stack)-1])
				continue
			}
			var kind ast.Kind
			var ok bool
			if len(stack) > 0 && inModel[stack[len(stack)-1]] {
				kind, ok = modelKinds[name]
			}
			if !ok && name == "list" {
				kind, ok = ast.KindList, true
			}
			if !ok {
				kind, ok = kinds[name]
			}
			if !ok {
				// Unknown elements are ignored by the loader (spec §6);
				// push a placeholder so its children are skipped too.
				stack = append(stack, nil)
				continue
			}
			line := 1 + strings.Count(string(data[:dec.InputOffset()]), "\n")
			n := ast.NewNode(kind, ast.Pos{Path: path, Line: line})
			for _, a := range t.Attr {
				n.SetAttr(a.Name.Local, value.NewString(a.Value))
			}
			if len(stack) == 0 {
				root = n
			} else if parent := stack[len(stack)-1]; parent != nil {
				parent.AddChild(n)
			}
			stack = append(stack, n)

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("xmlscript: %s: unbalanced closing tag %q", path, t.Name.Local)
			}
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			cur := stack[len(stack)-1]
			if cur == nil {
				continue
			}
			text := strings.TrimSpace(string(t))
			if text != "" {
				cur.Raw = value.NewString(text)
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("xmlscript: %s: no root element", path)
	}
	return root, nil
}
