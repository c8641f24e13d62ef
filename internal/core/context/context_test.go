package context

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archetype-run/archetype/internal/core/value"
)

func TestExternalValuesSubstitution(t *testing.T) {
	// E1: External values {foo: "foo", bar: "${foo}"}; get("bar") == "foo".
	c := New()
	require.NoError(t, c.ExternalValues(map[string]string{
		"foo": "foo",
		"bar": "${foo}",
	}))
	v, ok := c.Get("bar")
	require.True(t, ok)
	assert.Equal(t, "foo", c.Substitute(v.MustString()))
}

func TestExternalDefaultFallback(t *testing.T) {
	// E2: external defaults {some_var: "default"}, external values
	// {foo2: "${some_var}"}; get("foo2") == "default".
	c := New()
	require.NoError(t, c.ExternalDefaults(map[string]string{"some_var": "default"}))
	require.NoError(t, c.ExternalValues(map[string]string{"foo2": "${some_var}"}))
	v, ok := c.Get("foo2")
	require.True(t, ok)
	assert.Equal(t, "default", c.Substitute(v.MustString()))
}

func TestExternalConflictIsFatal(t *testing.T) {
	c := New()
	require.NoError(t, c.PutAt("x", value.NewString("a"), KindExternal))
	err := c.PutAt("x", value.NewString("b"), KindExternal)
	assert.Error(t, err)
	v, _ := c.Get("x")
	assert.Equal(t, "a", v.MustString()) // context left unchanged
}

func TestPrecedenceOrdering(t *testing.T) {
	c := New()
	require.NoError(t, c.PutAt("x", value.NewString("default"), KindDefault))
	require.NoError(t, c.PutAt("x", value.NewString("user"), KindUser))
	// a later Default must not override the already-bound User value.
	require.NoError(t, c.PutAt("x", value.NewString("default2"), KindDefault))
	v, ok := c.Get("x")
	require.True(t, ok)
	assert.Equal(t, "user", v.MustString())

	require.NoError(t, c.PutAt("x", value.NewString("ext"), KindExternal))
	v, _ = c.Get("x")
	assert.Equal(t, "ext", v.MustString())
}

func TestPathRoundTrip(t *testing.T) {
	// property 5: for every scope s with key k = s.path(), root.get(k) == s.value().
	c := New()
	ref, err := c.Push("step1", VisLocal)
	require.NoError(t, err)
	require.NoError(t, c.Put(value.NewString("v1"), KindUser))
	ref2, err := c.Push("input1", VisLocal)
	require.NoError(t, err)
	require.NoError(t, c.Put(value.NewString("v2"), KindUser))

	v, ok := c.Get(ref2.Path())
	require.True(t, ok)
	assert.Equal(t, "v2", v.MustString())

	v, ok = c.Get(ref.Path())
	require.True(t, ok)
	assert.Equal(t, "v1", v.MustString())
}

func TestCopyOnWriteFork(t *testing.T) {
	c := New()
	require.NoError(t, c.PutAt("color", value.NewString("red"), KindUser))

	branchA := c.Fork()
	branchB := c.Fork()
	require.NoError(t, branchA.PutAt("color", value.NewString("red"), KindUser))
	require.NoError(t, branchB.PutAt("flavor", value.NewString("blue"), KindUser))

	va, _ := branchA.Get("color")
	vb, _ := branchB.Get("color")
	assert.Equal(t, "red", va.MustString())
	assert.Equal(t, "red", vb.MustString())

	_, ok := branchA.Get("flavor")
	assert.False(t, ok, "mutation on branchB must not be visible from branchA")
}

func TestPlainNameAncestorSearch(t *testing.T) {
	c := New()
	_, err := c.Push("parent", VisLocal)
	require.NoError(t, err)
	require.NoError(t, c.PutAt(".shared", value.NewString("fromparent"), KindUser))
	_, err = c.Push("child", VisLocal)
	require.NoError(t, err)

	v, ok := c.Get("shared")
	require.True(t, ok)
	assert.Equal(t, "fromparent", v.MustString())
}

func TestInvalidPath(t *testing.T) {
	c := New()
	_, err := c.GetOrCreate(".bad", VisLocal)
	assert.Error(t, err)

	_, err = c.GetOrCreate("Bad-Name!", VisLocal)
	assert.Error(t, err)
}
