package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archetype-run/archetype/internal/core/ast"
	"github.com/archetype-run/archetype/internal/core/value"
)

func named(kind ast.Kind, id string) *ast.Node {
	n := ast.NewNode(kind, ast.Pos{Path: "t.xml", Line: 1})
	n.SetAttr("id", value.NewString(id))
	return n
}

// withStep wraps inputs in a named, non-optional <step> the way a real
// script always does: §4.9 requires every non-preset input to be a
// step's descendant.
func withStep(inputs *ast.Node) *ast.Node {
	step := ast.NewNode(ast.KindStep, ast.Pos{Path: "t.xml", Line: 1})
	step.SetAttr("name", value.NewString("step"))
	step.AddChild(inputs)
	return step
}

func TestValidateDuplicateInput(t *testing.T) {
	root := ast.NewNode(ast.KindScript, ast.Pos{})
	inputs := ast.NewNode(ast.KindInputs, ast.Pos{})
	inputs.AddChild(named(ast.KindText, "project-name"))
	inputs.AddChild(named(ast.KindText, "project-name"))
	root.AddChild(withStep(inputs))
	script, err := ast.NewScript("t.xml", root)
	require.NoError(t, err)

	errs := Validate(script, Options{})
	require.Equal(t, 1, errs.Len())
	assert.Contains(t, errs.Error(), "duplicate-input")
}

func TestValidateEnumNoOptions(t *testing.T) {
	root := ast.NewNode(ast.KindScript, ast.Pos{})
	inputs := ast.NewNode(ast.KindInputs, ast.Pos{})
	inputs.AddChild(named(ast.KindEnum, "build"))
	root.AddChild(withStep(inputs))
	script, err := ast.NewScript("t.xml", root)
	require.NoError(t, err)

	errs := Validate(script, Options{})
	require.Equal(t, 1, errs.Len())
	assert.Contains(t, errs.Error(), "no-options")
}

func TestValidateBadDefaultOption(t *testing.T) {
	root := ast.NewNode(ast.KindScript, ast.Pos{})
	inputs := ast.NewNode(ast.KindInputs, ast.Pos{})
	enum := named(ast.KindEnum, "build")
	enum.SetAttr("default", value.NewString("bazel"))
	opt := ast.NewNode(ast.KindOption, ast.Pos{})
	opt.SetAttr("value", value.NewString("maven"))
	enum.AddChild(opt)
	inputs.AddChild(enum)
	root.AddChild(withStep(inputs))
	script, err := ast.NewScript("t.xml", root)
	require.NoError(t, err)

	errs := Validate(script, Options{})
	require.Equal(t, 1, errs.Len())
	assert.Contains(t, errs.Error(), "bad-default")
}

func TestValidateUndefinedMethod(t *testing.T) {
	root := ast.NewNode(ast.KindScript, ast.Pos{})
	call := ast.NewNode(ast.KindCallInvocation, ast.Pos{})
	call.SetAttr("method", value.NewString("missing"))
	root.AddChild(call)
	script, err := ast.NewScript("t.xml", root)
	require.NoError(t, err)

	errs := Validate(script, Options{})
	require.Equal(t, 1, errs.Len())
	assert.Contains(t, errs.Error(), "undefined-method")
}

func TestValidateIgnoreErrorsSuppressesRule(t *testing.T) {
	root := ast.NewNode(ast.KindScript, ast.Pos{})
	inputs := ast.NewNode(ast.KindInputs, ast.Pos{})
	inputs.AddChild(named(ast.KindEnum, "build"))
	root.AddChild(withStep(inputs))
	script, err := ast.NewScript("t.xml", root)
	require.NoError(t, err)

	errs := Validate(script, Options{IgnoreErrors: map[string]bool{"no-options": true}})
	assert.Equal(t, 0, errs.Len())
}

func TestValidateCleanScriptHasNoErrors(t *testing.T) {
	root := ast.NewNode(ast.KindScript, ast.Pos{})
	inputs := ast.NewNode(ast.KindInputs, ast.Pos{})
	text := named(ast.KindText, "project-name")
	text.SetAttr("default", value.NewString("demo"))
	inputs.AddChild(text)
	root.AddChild(withStep(inputs))
	script, err := ast.NewScript("t.xml", root)
	require.NoError(t, err)

	errs := Validate(script, Options{})
	assert.Equal(t, 0, errs.Len())
}

func TestValidateInputOutsideStepFlagged(t *testing.T) {
	root := ast.NewNode(ast.KindScript, ast.Pos{})
	inputs := ast.NewNode(ast.KindInputs, ast.Pos{})
	inputs.AddChild(named(ast.KindText, "project-name"))
	root.AddChild(inputs)
	script, err := ast.NewScript("t.xml", root)
	require.NoError(t, err)

	errs := Validate(script, Options{})
	require.Equal(t, 1, errs.Len())
	assert.Contains(t, errs.Error(), "input-outside-step")
}

func TestValidateOptionalStepRejectsRequiredInput(t *testing.T) {
	root := ast.NewNode(ast.KindScript, ast.Pos{})
	step := ast.NewNode(ast.KindStep, ast.Pos{})
	step.SetAttr("name", value.NewString("extras"))
	step.SetAttr("optional", value.NewString("true"))
	inputs := ast.NewNode(ast.KindInputs, ast.Pos{})
	inputs.AddChild(named(ast.KindText, "nickname"))
	step.AddChild(inputs)
	root.AddChild(step)
	script, err := ast.NewScript("t.xml", root)
	require.NoError(t, err)

	errs := Validate(script, Options{})
	require.Equal(t, 1, errs.Len())
	assert.Contains(t, errs.Error(), "step-requires-optional-input")
}

func TestValidateNonOptionalStepRequiresAnInput(t *testing.T) {
	root := ast.NewNode(ast.KindScript, ast.Pos{})
	step := ast.NewNode(ast.KindStep, ast.Pos{})
	step.SetAttr("name", value.NewString("extras"))
	inputs := ast.NewNode(ast.KindInputs, ast.Pos{})
	optIn := named(ast.KindText, "nickname")
	optIn.SetAttr("optional", value.NewString("true"))
	inputs.AddChild(optIn)
	step.AddChild(inputs)
	root.AddChild(step)
	script, err := ast.NewScript("t.xml", root)
	require.NoError(t, err)

	errs := Validate(script, Options{})
	require.Equal(t, 1, errs.Len())
	assert.Contains(t, errs.Error(), "step-requires-input")
}

func TestValidateNestedStepMayNotStrengthenOptionality(t *testing.T) {
	root := ast.NewNode(ast.KindScript, ast.Pos{})
	outer := ast.NewNode(ast.KindStep, ast.Pos{})
	outer.SetAttr("name", value.NewString("outer"))
	outer.SetAttr("optional", value.NewString("true"))
	inner := ast.NewNode(ast.KindStep, ast.Pos{})
	inner.SetAttr("name", value.NewString("inner"))
	inputs := ast.NewNode(ast.KindInputs, ast.Pos{})
	optIn := named(ast.KindText, "nickname")
	optIn.SetAttr("optional", value.NewString("true"))
	inputs.AddChild(optIn)
	inner.AddChild(inputs)
	outer.AddChild(inner)
	root.AddChild(outer)
	script, err := ast.NewScript("t.xml", root)
	require.NoError(t, err)

	errs := Validate(script, Options{})
	assert.Contains(t, errs.Error(), "step-optionality-strengthened")
}

func TestValidateUnknownValidationsReference(t *testing.T) {
	root := ast.NewNode(ast.KindScript, ast.Pos{})
	inputs := ast.NewNode(ast.KindInputs, ast.Pos{})
	text := named(ast.KindText, "project-name")
	text.SetAttr("validations", value.NewString("missing"))
	inputs.AddChild(text)
	root.AddChild(withStep(inputs))
	script, err := ast.NewScript("t.xml", root)
	require.NoError(t, err)

	errs := Validate(script, Options{})
	require.Equal(t, 1, errs.Len())
	assert.Contains(t, errs.Error(), "unknown-validations")
}

func TestValidatePresetTypeMismatch(t *testing.T) {
	root := ast.NewNode(ast.KindScript, ast.Pos{})
	inputs := ast.NewNode(ast.KindInputs, ast.Pos{})
	text := named(ast.KindText, "use-gradle")
	inputs.AddChild(text)
	root.AddChild(withStep(inputs))

	presets := ast.NewNode(ast.KindPresets, ast.Pos{})
	mismatched := named(ast.KindBoolean, "use-gradle")
	mismatched.SetAttr("value", value.NewString("true"))
	presets.AddChild(mismatched)
	root.AddChild(presets)

	script, err := ast.NewScript("t.xml", root)
	require.NoError(t, err)

	errs := Validate(script, Options{})
	require.Equal(t, 1, errs.Len())
	assert.Contains(t, errs.Error(), "preset-type-mismatch")
}

func TestValidateConditionReferencesUndeclaredInput(t *testing.T) {
	root := ast.NewNode(ast.KindScript, ast.Pos{})
	inputs := ast.NewNode(ast.KindInputs, ast.Pos{})
	text := named(ast.KindText, "project-name")
	text.SetAttr("if", value.NewString("${missing-input} == 'x'"))
	inputs.AddChild(text)
	root.AddChild(withStep(inputs))
	script, err := ast.NewScript("t.xml", root)
	require.NoError(t, err)

	errs := Validate(script, Options{})
	require.Equal(t, 1, errs.Len())
	assert.Contains(t, errs.Error(), "undefined-variable")
}

func TestValidateConditionTypeMismatch(t *testing.T) {
	root := ast.NewNode(ast.KindScript, ast.Pos{})
	inputs := ast.NewNode(ast.KindInputs, ast.Pos{})
	flag := named(ast.KindBoolean, "use-gradle")
	cond := ast.NewNode(ast.KindCondition, ast.Pos{})
	cond.SetAttr("if", value.NewString("sizeof ${use-gradle}"))
	flag.AddChild(cond)
	inputs.AddChild(flag)
	root.AddChild(withStep(inputs))
	script, err := ast.NewScript("t.xml", root)
	require.NoError(t, err)

	errs := Validate(script, Options{})
	require.Equal(t, 1, errs.Len())
	assert.Contains(t, errs.Error(), "bad-condition-type")
}

func TestCanonicalXMLDeterministicAttrOrder(t *testing.T) {
	n := ast.NewNode(ast.KindText, ast.Pos{})
	n.SetAttr("name", value.NewString("project-name"))
	n.SetAttr("default", value.NewString("demo"))
	out1 := CanonicalXML(n)
	out2 := CanonicalXML(n)
	assert.Equal(t, out1, out2)
	assert.Contains(t, out1, `default="demo" name="project-name"`)
}
