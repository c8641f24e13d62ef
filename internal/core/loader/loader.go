// Package loader implements the script loader (spec §4.2): it resolves
// a logical path through an Archive, decodes it with a Decoder, and
// caches the parsed Script by canonical path so repeated <source>/<exec>
// references to the same file only pay the parse cost once (spec §5:
// "Script cache is read-mostly; concurrent use must be guarded by the
// caller").
package loader

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/archetype-run/archetype/internal/core/ast"
)

// Archive resolves a logical script path to something openable. The
// default implementation is internal/core/archive.Archive.
type Archive interface {
	Open(logicalPath string) (io.ReadCloser, error)
	Resolve(logicalPath string) (string, error)
}

// Decoder parses one script's XML source into its root Node. The
// default implementation is internal/core/xmlscript.Decoder.
type Decoder interface {
	Decode(path string, r io.Reader) (*ast.Node, error)
}

// Cache persists a script's raw source bytes across Loader instances
// (e.g. across CLI invocations sharing a BoltCache-backed directory),
// keyed by canonical path. It is consulted before the Archive and
// populated after a successful read, saving the filesystem round trip
// on repeat access. It does not save the parse: a new Loader decodes the
// cached bytes again, while one Loader reuses its own parsed Script for
// a path it has already loaded. The in-memory default never persists
// past one Loader's lifetime.
type Cache interface {
	Get(path string) ([]byte, bool)
	Put(path string, raw []byte)
}

// MemCache is the default Cache: a plain map guarded by a mutex, scoped
// to one Loader's lifetime.
type MemCache struct {
	mu  sync.RWMutex
	raw map[string][]byte
}

func NewMemCache() *MemCache { return &MemCache{raw: map[string][]byte{}} }

func (c *MemCache) Get(path string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.raw[path]
	return b, ok
}

func (c *MemCache) Put(path string, raw []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.raw[path] = raw
}

// Loader loads and caches Scripts by their canonical (archive-resolved)
// path. It satisfies invoke.ScriptLoader.
type Loader struct {
	Archive Archive
	Decoder Decoder
	Cache   Cache

	mu       sync.Mutex
	scripts  map[string]*ast.Script
}

// New returns a Loader backed by archive/decoder, caching raw source
// bytes in an in-memory MemCache unless cache is non-nil.
func New(a Archive, d Decoder, cache Cache) *Loader {
	if cache == nil {
		cache = NewMemCache()
	}
	return &Loader{Archive: a, Decoder: d, Cache: cache, scripts: map[string]*ast.Script{}}
}

// Load resolves path to its canonical form, returning the cached Script
// if one already exists for that canonical path, else decoding it fresh.
func (l *Loader) Load(path string) (*ast.Script, error) {
	canon, err := l.Archive.Resolve(path)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if s, ok := l.scripts[canon]; ok {
		return s, nil
	}

	raw, ok := l.Cache.Get(canon)
	if !ok {
		r, err := l.Archive.Open(path)
		if err != nil {
			return nil, fmt.Errorf("loader: opening %s: %w", canon, err)
		}
		raw, err = io.ReadAll(r)
		r.Close()
		if err != nil {
			return nil, fmt.Errorf("loader: reading %s: %w", canon, err)
		}
		l.Cache.Put(canon, raw)
	}

	root, err := l.Decoder.Decode(canon, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("loader: decoding %s: %w", canon, err)
	}

	script, err := ast.NewScript(canon, root)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	l.scripts[canon] = script
	return script, nil
}
