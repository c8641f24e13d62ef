package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPrompter replays a fixed sequence of operator responses, one
// per Prompt call, mirroring the teacher's style of table-driven fakes
// for an external collaborator.
type scriptedPrompter struct {
	responses []string
	calls     int
}

func (p *scriptedPrompter) Prompt(kind InputKind, id, promptText, help string, options []string, def string) (string, error) {
	r := p.responses[p.calls]
	p.calls++
	return r, nil
}

func TestInteractiveResolverBoolYesNo(t *testing.T) {
	r := &InteractiveResolver{Prompter: &scriptedPrompter{responses: []string{"Y"}}}
	v, ok, err := r.Resolve(InputSpec{ID: "confirm", Kind: KindBool})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "true", v)
}

func TestInteractiveResolverRepromptsOnInvalid(t *testing.T) {
	r := &InteractiveResolver{Prompter: &scriptedPrompter{responses: []string{"maybe", "no"}}}
	v, ok, err := r.Resolve(InputSpec{ID: "confirm", Kind: KindBool})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "false", v)
}

func TestInteractiveResolverEnumByIndex(t *testing.T) {
	r := &InteractiveResolver{Prompter: &scriptedPrompter{responses: []string{"2"}}}
	v, ok, err := r.Resolve(InputSpec{ID: "flavor", Kind: KindEnum, Options: []string{"maven", "gradle"}})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "gradle", v)
}

func TestInteractiveResolverEnumByCaseInsensitiveName(t *testing.T) {
	r := &InteractiveResolver{Prompter: &scriptedPrompter{responses: []string{"GRADLE"}}}
	v, ok, err := r.Resolve(InputSpec{ID: "flavor", Kind: KindEnum, Options: []string{"maven", "gradle"}})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "gradle", v)
}

func TestInteractiveResolverListDedupsIndices(t *testing.T) {
	r := &InteractiveResolver{Prompter: &scriptedPrompter{responses: []string{"1 2 1"}}}
	v, ok, err := r.Resolve(InputSpec{ID: "modules", Kind: KindList, Options: []string{"core", "web"}})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "core,web", v)
}

func TestInteractiveResolverEmptyUsesDefault(t *testing.T) {
	r := &InteractiveResolver{Prompter: &scriptedPrompter{responses: []string{""}}}
	v, ok, err := r.Resolve(InputSpec{ID: "name", Kind: KindText, HasDefault: true, Default: "demo"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "demo", v)
}

func TestInteractiveResolverEmptyOptionalDeclines(t *testing.T) {
	r := &InteractiveResolver{Prompter: &scriptedPrompter{responses: []string{""}}}
	_, ok, err := r.Resolve(InputSpec{ID: "name", Kind: KindText, Optional: true})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBatchResolverDeclinesWithoutDefault(t *testing.T) {
	_, ok, err := (BatchResolver{}).Resolve(InputSpec{ID: "x"})
	require.NoError(t, err)
	assert.False(t, ok)
}
