// Package compiler implements the one-pass script validator (spec §4.9):
// a single walk that accumulates every ValidationError it finds instead
// of halting on the first, plus a canonical XML serializer used for
// golden-file comparison in tests.
package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/archetype-run/archetype/internal/core/ast"
	cerrors "github.com/archetype-run/archetype/internal/core/errors"
	"github.com/archetype-run/archetype/internal/core/value"
)

// Options controls how strict validation runs. IgnoreErrors names rules
// whose errors are not reported at all.
type Options struct {
	IgnoreErrors map[string]bool
}

// ValidationError is one static problem the validator found, carrying
// enough of the site to let a CLI render "file:line: message".
type ValidationError struct {
	Pos     ast.Pos
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s:%d: %s: %s", e.Pos.Path, e.Pos.Line, e.Rule, e.Message)
}

// Validate walks script's tree once, returning every ValidationError
// found (an empty, non-nil List if none). It never mutates the script.
func Validate(script *ast.Script, opts Options) *cerrors.List {
	v := &validator{
		opts:        opts,
		errs:        &cerrors.List{},
		validations: map[string]*ast.Node{},
		inputKinds:  map[string]value.Kind{},
	}
	v.indexValidations(script.Root)
	v.indexInputKinds(script.Root, false)
	v.walk(script.Root, map[string]bool{}, scopeState{})
	v.checkMethods(script)
	return v.errs
}

type validator struct {
	opts        Options
	errs        *cerrors.List
	validations map[string]*ast.Node
	inputKinds  map[string]value.Kind // declared non-preset input id -> its resolved value Kind
}

func (v *validator) enabled(rule string) bool { return !v.opts.IgnoreErrors[rule] }

func (v *validator) add(rule string, n *ast.Node, format string, args ...interface{}) {
	if !v.enabled(rule) {
		return
	}
	v.errs.Add(&ValidationError{Pos: n.Pos, Rule: rule, Message: fmt.Sprintf(format, args...)})
}

// indexValidations registers every <validation> node (nested under a
// <validations> block per the §6 grammar) by both its id and its display
// name, mirroring how an input's "validations" attribute resolves it at
// invocation time (see invoke.Controller.IndexValidations).
func (v *validator) indexValidations(n *ast.Node) {
	if n.Kind == ast.KindValidation {
		if id := n.AttrString("id"); id != "" {
			v.validations[id] = n
		}
		if name := n.AttrString("name"); name != "" {
			v.validations[name] = n
		}
	}
	for _, c := range n.Children {
		v.indexValidations(c)
	}
}

// indexInputKinds records every declared non-preset input's resolved
// value Kind so if= expressions can be statically type-checked against
// them (§4.9's "type match" and "if expression" checks) without a second
// traversal order dependency.
func (v *validator) indexInputKinds(n *ast.Node, inPreset bool) {
	switch n.Kind {
	case ast.KindPresets, ast.KindVariables:
		inPreset = true
	case ast.KindBoolean, ast.KindText, ast.KindEnum, ast.KindList:
		if !inPreset {
			if id := n.AttrString("id"); id != "" {
				if _, exists := v.inputKinds[id]; !exists {
					v.inputKinds[id] = inputValueKind(n.Kind)
				}
			}
		}
	}
	for _, c := range n.Children {
		v.indexInputKinds(c, inPreset)
	}
}

func inputValueKind(k ast.Kind) value.Kind {
	switch k {
	case ast.KindBoolean:
		return value.BoolKind
	case ast.KindList:
		return value.ListKind
	default:
		return value.StringKind
	}
}

func zeroValueOf(k value.Kind) value.Value {
	switch k {
	case value.BoolKind:
		return value.NewBool(false)
	case value.ListKind:
		return value.NewList(nil)
	default:
		return value.NewString("")
	}
}

// scopeState tracks the structural context walk() carries down the tree:
// whether the current node is inside a <presets>/<variables> binding
// (exempt from step-scoping, §4.9 "Inputs in steps" is non-preset only)
// and the nearest enclosing <step>'s optionality, for the "no
// strengthening" check.
type scopeState struct {
	inPreset     bool
	inStep       bool
	stepOptional bool
}

// walk recurses the whole tree, tracking sibling input names in scope
// (inputNames) to flag duplicates (rule "duplicate-input").
func (v *validator) walk(n *ast.Node, inputNames map[string]bool, st scopeState) {
	switch n.Kind {
	case ast.KindBoolean, ast.KindText, ast.KindEnum, ast.KindList:
		v.checkInput(n, inputNames, st)
	case ast.KindStep:
		v.checkStep(n, st)
	}
	if src, ok := n.If(); ok {
		v.checkCondition(n, src)
	}

	childState := st
	switch n.Kind {
	case ast.KindPresets, ast.KindVariables:
		childState.inPreset = true
	case ast.KindStep:
		optional := n.AttrString("optional") == "true"
		childState.inStep = true
		childState.stepOptional = optional
	}

	switch n.Kind {
	case ast.KindInputs, ast.KindOption, ast.KindCondition:
		local := map[string]bool{}
		for _, c := range n.Children {
			v.walk(c, local, childState)
		}
		for k := range local {
			inputNames[k] = true
		}
		return
	}
	for _, c := range n.Children {
		v.walk(c, inputNames, childState)
	}
}

func (v *validator) checkInput(n *ast.Node, inputNames map[string]bool, st scopeState) {
	name := n.AttrString("id")
	if name == "" {
		v.add("missing-name", n, "%s input is missing a name attribute", n.Kind)
		return
	}
	if !st.inPreset {
		// A preset/variable binding is expected to reuse the id of the
		// input it presets, so it never counts toward sibling uniqueness.
		if inputNames[name] {
			v.add("duplicate-input", n, "input %q is declared more than once in this scope", name)
		}
		inputNames[name] = true
	}

	if !st.inPreset && !st.inStep {
		v.add("input-outside-step", n, "input %q must be a descendant of a step", name)
	}
	if st.inStep && st.stepOptional && n.AttrString("optional") != "true" {
		v.add("step-requires-optional-input", n, "input %q must be optional: declared under an optional step", name)
	}

	if n.Kind == ast.KindEnum || n.Kind == ast.KindList {
		v.checkOptions(n)
	}

	if !st.inPreset {
		if ref := n.AttrString("validations"); ref != "" {
			for _, vid := range strings.Fields(ref) {
				if _, ok := v.validations[vid]; !ok {
					v.add("unknown-validations", n, "input %q references undeclared validations %q", name, vid)
				}
			}
		}
	}

	if st.inPreset {
		if want, ok := v.inputKinds[name]; ok && want != inputValueKind(n.Kind) {
			v.add("preset-type-mismatch", n, "preset %q is declared as %s but input %q is %s", name, n.Kind, name, want)
		}
	}

	if dv, hasDefault := n.Attr("default"); hasDefault && (n.Kind == ast.KindEnum || n.Kind == ast.KindList) {
		v.checkDefaultIsDeclaredOption(n, name, dv)
	}
	if dv, hasDefault := n.Attr("default"); hasDefault && n.Kind == ast.KindBoolean {
		if s := dv.MustString(); s != "true" && s != "false" {
			v.add("bad-default", n, "input %q default %q is not a boolean literal", name, s)
		}
	}
}

// checkCondition parses and, via a lookup synthesized from every
// declared non-preset input's resolved Kind, type-checks an if=
// expression (§4.9): a reference to an undeclared input id is flagged
// distinctly from an operator applied to a value of the wrong kind.
func (v *validator) checkCondition(n *ast.Node, src string) {
	expr, err := value.Parse(src)
	if err != nil {
		v.add("bad-condition", n, "invalid if= expression %q: %v", src, err)
		return
	}
	lookup := func(name string) (value.Value, bool) {
		k, ok := v.inputKinds[name]
		if !ok {
			return value.Value{}, false
		}
		return zeroValueOf(k), true
	}
	if _, err := expr.Eval(lookup); err != nil {
		var uv *cerrors.UnresolvedVariableError
		if errors.As(err, &uv) {
			v.add("undefined-variable", n, "if= expression %q references undeclared input %q", src, uv.Name)
			return
		}
		v.add("bad-condition-type", n, "if= expression %q does not type-check: %v", src, err)
	}
}

func (v *validator) checkOptions(n *ast.Node) {
	opts := n.ChildrenOf(ast.KindOption)
	if len(opts) == 0 {
		v.add("no-options", n, "%s input %q declares no options", n.Kind, n.AttrString("id"))
		return
	}
	seen := map[string]bool{}
	for _, o := range opts {
		val := o.AttrString("value")
		if val == "" {
			v.add("missing-option-value", o, "option is missing a value attribute")
			continue
		}
		if seen[val] {
			v.add("duplicate-option", o, "option value %q is declared more than once", val)
		}
		seen[val] = true
	}
}

func (v *validator) checkDefaultIsDeclaredOption(n *ast.Node, name string, dv value.Value) {
	opts := n.ChildrenOf(ast.KindOption)
	declared := make(map[string]bool, len(opts))
	for _, o := range opts {
		declared[o.AttrString("value")] = true
	}
	if n.Kind == ast.KindEnum {
		if !declared[dv.MustString()] {
			v.add("bad-default", n, "input %q default %q is not a declared option", name, dv.MustString())
		}
		return
	}
	xs, err := dv.AsList()
	if err != nil {
		v.add("bad-default", n, "input %q default is not a valid list", name)
		return
	}
	for _, x := range xs {
		if !declared[x] {
			v.add("bad-default", n, "input %q default entry %q is not a declared option", name, x)
		}
	}
}

// checkStep enforces §4.9's step-optionality rules. The "may only
// contain optional inputs" half is enforced input-by-input in
// checkInput via the propagated scopeState; this only needs to check
// the step's own declaration against its immediate surroundings: a
// non-optional step must own at least one required input, and a step
// nested under an optional ancestor may not declare itself non-optional
// (that would strengthen what the ancestor already relaxed).
func (v *validator) checkStep(n *ast.Node, ancestor scopeState) {
	name := n.AttrString("name")
	if name == "" {
		v.add("missing-name", n, "step is missing a name attribute")
	}
	optional := n.AttrString("optional") == "true"
	if ancestor.inStep && ancestor.stepOptional && !optional {
		v.add("step-optionality-strengthened", n, "step %q may not be non-optional when nested under an optional step", name)
	}
	if !optional && !hasRequiredInput(n) {
		v.add("step-requires-input", n, "non-optional step %q must declare at least one required input", name)
	}
}

// hasRequiredInput reports whether n's own subtree (stopping at a
// nested <step>, <presets>, or <variables> boundary, each of which
// establishes its own contract) declares any non-optional input.
func hasRequiredInput(n *ast.Node) bool {
	for _, c := range n.Children {
		if c.Kind == ast.KindStep || c.Kind == ast.KindPresets || c.Kind == ast.KindVariables {
			continue
		}
		isInput := c.Kind == ast.KindBoolean || c.Kind == ast.KindText || c.Kind == ast.KindEnum || c.Kind == ast.KindList
		if isInput && c.AttrString("optional") != "true" {
			return true
		}
		if hasRequiredInput(c) {
			return true
		}
	}
	return false
}

// checkMethods flags <call>/<method> invocations that reference a method
// name the script never declares.
func (v *validator) checkMethods(script *ast.Script) {
	var walk func(n *ast.Node)
	walk = func(n *ast.Node) {
		if n.Kind == ast.KindMethodInvocation || n.Kind == ast.KindCallInvocation {
			name := n.AttrString("method")
			if name == "" {
				name = n.AttrString("name")
			}
			if _, ok := script.Method(name); !ok {
				v.add("undefined-method", n, "invocation references undeclared method %q", name)
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(script.Root)
}
