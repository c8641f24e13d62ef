package loader

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archetype-run/archetype/internal/core/ast"
)

type fakeArchive struct{ files map[string]string }

func (a *fakeArchive) Resolve(p string) (string, error) { return "/archive/" + p, nil }

func (a *fakeArchive) Open(p string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewBufferString(a.files[p])), nil
}

type fakeDecoder struct{ calls int }

func (d *fakeDecoder) Decode(path string, r io.Reader) (*ast.Node, error) {
	d.calls++
	return ast.NewNode(ast.KindScript, ast.Pos{Path: path, Line: 1}), nil
}

func TestLoadCachesScriptByCanonicalPath(t *testing.T) {
	a := &fakeArchive{files: map[string]string{"a.xml": "<script/>"}}
	d := &fakeDecoder{}
	l := New(a, d, nil)

	s1, err := l.Load("a.xml")
	require.NoError(t, err)
	s2, err := l.Load("a.xml")
	require.NoError(t, err)

	assert.Same(t, s1, s2, "second Load of the same canonical path returns the cached Script")
	assert.Equal(t, "/archive/a.xml", s1.Path)
}

func TestLoadStoresRawBytesInCache(t *testing.T) {
	a := &fakeArchive{files: map[string]string{"a.xml": "<script/>"}}
	d := &fakeDecoder{}
	cache := NewMemCache()
	l := New(a, d, cache)

	_, err := l.Load("a.xml")
	require.NoError(t, err)
	assert.Equal(t, 1, d.calls)

	raw, ok := cache.Get("/archive/a.xml")
	require.True(t, ok)
	assert.Equal(t, "<script/>", string(raw))
}
