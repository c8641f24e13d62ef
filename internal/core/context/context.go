// Package context implements the archetype interpreter's hierarchical
// scoped Context (spec §3, §4.3): a tree of named Scopes with
// absolute/relative path queries, global/local visibility, value-kind
// precedence, ${name} substitution, and copy-on-write forking for the
// combinatorial variation explorer.
package context

import (
	"regexp"
	"strings"

	cerrors "github.com/archetype-run/archetype/internal/core/errors"
	"github.com/archetype-run/archetype/internal/core/value"
)

var segmentRE = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Context is a cursor into an immutable Scope tree plus the ephemeral
// bookkeeping a traversal needs: the active-scope stack and the cwd
// stack used to resolve relative source/exec paths (spec §4.3).
type Context struct {
	root *scope
	path []string // ids from root to the current scope
	cwd  []string // stack of cwd path segments
}

// New returns an empty Context positioned at the root scope.
func New() *Context {
	return &Context{root: newScope("")}
}

// Fork returns an independent Context that currently shares the same
// scope tree; subsequent Puts on the fork build new scope nodes via
// path-copying and never mutate the scopes the original Context can
// still see (spec §4.3's copy-on-write edges).
func (c *Context) Fork() *Context {
	cp := &Context{root: c.root}
	cp.path = append([]string(nil), c.path...)
	cp.cwd = append([]string(nil), c.cwd...)
	return cp
}

func isParentSeg(seg string) bool { return seg == ".." }

// parseKey splits a key into (ids, fromRoot, error) per spec §4.3: `~`
// prefix resets to root, `..` walks one parent, a leading empty segment
// (bare ".") means "explicitly relative to current" and is illegal when
// the current scope is root.
func parseKey(key string) (ids []string, fromRoot bool, err error) {
	rest := key
	if strings.HasPrefix(rest, "~") {
		fromRoot = true
		rest = strings.TrimPrefix(rest, "~")
		rest = strings.TrimPrefix(rest, ".")
	}
	if rest == "" {
		return nil, fromRoot, nil
	}
	segs := strings.Split(rest, ".")
	for i, s := range segs {
		if s == "" {
			if i != 0 || fromRoot {
				return nil, false, &cerrors.InvalidPathError{Key: key, Reason: "empty path segment"}
			}
			ids = append(ids, "") // marker resolved by caller against current depth
			continue
		}
		if isParentSeg(s) {
			ids = append(ids, "..")
			continue
		}
		if !segmentRE.MatchString(s) {
			return nil, false, &cerrors.InvalidPathError{Key: key, Reason: "segment " + s + " does not match [a-z0-9][a-z0-9-]*"}
		}
		ids = append(ids, s)
	}
	return ids, fromRoot, nil
}

// resolveIDs turns a parsed key into an absolute id path from root,
// honoring the current cursor for relative keys.
func (c *Context) resolveIDs(key string) ([]string, error) {
	segs, fromRoot, err := parseKey(key)
	if err != nil {
		return nil, err
	}
	base := append([]string(nil), c.path...)
	if fromRoot {
		base = nil
	}
	for _, s := range segs {
		switch s {
		case "":
			if len(base) == 0 {
				return nil, &cerrors.InvalidPathError{Key: key, Reason: "leading '.' is illegal at root"}
			}
		case "..":
			if len(base) == 0 {
				return nil, &cerrors.InvalidPathError{Key: key, Reason: "'..' has no parent at root"}
			}
			base = base[:len(base)-1]
		default:
			base = append(base, s)
		}
	}
	return base, nil
}

func ensure(s *scope, ids []string) (*scope, *scope) {
	if len(ids) == 0 {
		return s, s
	}
	id := ids[0]
	child, ok := s.children[id]
	if !ok {
		child = newScope(id)
	}
	newChild, leaf := ensure(child, ids[1:])
	return s.withChild(id, newChild), leaf
}

func lookup(s *scope, ids []string) (*scope, bool) {
	cur := s
	for _, id := range ids {
		child, ok := cur.children[id]
		if !ok {
			return nil, false
		}
		cur = child
	}
	return cur, true
}

// GetOrCreate resolves key (creating any missing intermediate scopes)
// and returns a handle on the resulting scope, per spec §4.3.
//
// For a VisGlobal scope, the id path collapses to the scope's own single
// id directly under the tree root: this is the module's resolution of
// the spec's "global specialization" mechanism — rather
// than physically relocating an existing subtree the first time a
// duplicate Global id is declared, every Global scope of a given id is
// simply the very same root-level scope from the moment it is first
// created, so "moving down to coalesce duplicates" has nothing to do:
// there is only ever one.
func (c *Context) GetOrCreate(key string, vis Visibility) (*ScopeRef, error) {
	var ids []string
	if vis == VisGlobal {
		segs, _, err := parseKey(key)
		if err != nil {
			return nil, err
		}
		if len(segs) == 0 {
			return nil, &cerrors.InvalidPathError{Key: key, Reason: "empty global scope id"}
		}
		ids = []string{segs[len(segs)-1]}
	} else {
		resolved, err := c.resolveIDs(key)
		if err != nil {
			return nil, err
		}
		ids = resolved
	}
	newRoot, leaf := ensure(c.root, ids)
	if vis != VisUnset {
		leaf = leaf.withVisibility(vis)
		newRoot = replaceAt(newRoot, ids, leaf)
	}
	c.root = newRoot
	return &ScopeRef{ids: ids, s: leaf}, nil
}

func replaceAt(s *scope, ids []string, leaf *scope) *scope {
	if len(ids) == 0 {
		return leaf
	}
	child := s.children[ids[0]]
	return s.withChild(ids[0], replaceAt(child, ids[1:], leaf))
}

// Get resolves key without creating anything. A dotted/absolute key is
// resolved structurally; a bare name is resolved with the plain-name
// search order from spec §4.3: current scope's children, then ancestors
// up to root, then root-level globals.
func (c *Context) Get(key string) (value.Value, bool) {
	if strings.ContainsAny(key, ".~") {
		ids, err := c.resolveIDs(key)
		if err != nil {
			return value.Value{}, false
		}
		s, ok := lookup(c.root, ids)
		if !ok || !s.hasValue {
			return value.Value{}, false
		}
		return s.value, true
	}
	return c.getPlain(key)
}

func (c *Context) getPlain(name string) (value.Value, bool) {
	cur, ok := lookup(c.root, c.path)
	if !ok {
		cur = c.root
	}
	if child, ok := cur.children[name]; ok && child.hasValue {
		return child.value, true
	}
	for depth := len(c.path) - 1; depth >= 0; depth-- {
		anc, ok := lookup(c.root, c.path[:depth])
		if !ok {
			continue
		}
		if child, ok := anc.children[name]; ok && child.hasValue {
			return child.value, true
		}
	}
	if child, ok := c.root.children[name]; ok && child.visibility == VisGlobal && child.hasValue {
		return child.value, true
	}
	return value.Value{}, false
}

// Put stores v with the given kind at the current scope, enforcing the
// kind-precedence and External-conflict rules of spec §3/§4.3/testable
// property 4.
func (c *Context) Put(v value.Value, kind Kind) error {
	return c.PutAt("~."+joinDot(c.path), v, kind)
}

// PutAt stores v at an explicit (possibly relative) key.
func (c *Context) PutAt(key string, v value.Value, kind Kind) error {
	ids, err := c.resolveIDs(key)
	if err != nil {
		return err
	}
	newRoot, leaf := ensure(c.root, ids)
	updated, err := applyValue(leaf, v, kind)
	if err != nil {
		return err
	}
	c.root = replaceAt(newRoot, ids, updated)
	return nil
}

func applyValue(s *scope, v value.Value, kind Kind) (*scope, error) {
	if s.hasValue {
		if s.kind == KindExternal && kind == KindExternal {
			if !value.Equal(s.value, v) {
				return nil, &cerrors.InvalidPathError{Key: s.id, Reason: "external value conflict"}
			}
			return s, nil
		}
		if kind <= s.kind {
			return s, nil // lower or equal precedence never overrides an existing bind
		}
	}
	return s.withValue(v, kind, VisUnset), nil
}

// Push enters a named child scope, creating it with the given visibility
// if necessary, and makes it the current scope.
func (c *Context) Push(id string, vis Visibility) (*ScopeRef, error) {
	ref, err := c.GetOrCreate(id, vis)
	if err != nil {
		return nil, err
	}
	c.path = ref.ids
	return ref, nil
}

// Pop returns the cursor to the parent scope.
func (c *Context) Pop() error {
	if len(c.path) == 0 {
		return &cerrors.InvalidPathError{Key: "~", Reason: "pop at root"}
	}
	c.path = c.path[:len(c.path)-1]
	return nil
}

func (c *Context) PushCwd(path string) { c.cwd = append(c.cwd, path) }

func (c *Context) PopCwd() {
	if len(c.cwd) > 0 {
		c.cwd = c.cwd[:len(c.cwd)-1]
	}
}

func (c *Context) Cwd() string {
	if len(c.cwd) == 0 {
		return ""
	}
	return c.cwd[len(c.cwd)-1]
}

// Scope returns a handle on the current scope.
func (c *Context) Scope() *ScopeRef {
	s, ok := lookup(c.root, c.path)
	if !ok {
		s = c.root
	}
	return &ScopeRef{ids: append([]string(nil), c.path...), s: s}
}

// ExternalValues installs values eagerly as Externals (spec §4.3).
func (c *Context) ExternalValues(values map[string]string) error {
	for k, v := range values {
		if err := c.PutAt(k, value.NewString(v), KindExternal); err != nil {
			return err
		}
	}
	return nil
}

// ExternalDefaults installs values as read-only fallback Defaults: they
// only surface on Get if nothing of higher precedence is ever bound.
func (c *Context) ExternalDefaults(defaults map[string]string) error {
	for k, v := range defaults {
		if err := c.PutAt(k, value.NewString(v), KindDefault); err != nil {
			return err
		}
	}
	return nil
}

// ToMap snapshots every resolved, user-visible (non-empty) value in the
// tree as path -> string.
func (c *Context) ToMap() map[string]string {
	out := map[string]string{}
	var walk func(s *scope, path []string)
	walk = func(s *scope, path []string) {
		if s.hasValue {
			out[joinDot(path)] = s.value.MustString()
		}
		for id, child := range s.children {
			walk(child, append(append([]string(nil), path...), id))
		}
	}
	walk(c.root, nil)
	return out
}

// Visit performs a depth-first walk of every scope that carries a value.
func (c *Context) Visit(fn func(path string, v value.Value, kind Kind)) {
	var walk func(s *scope, path []string)
	walk = func(s *scope, path []string) {
		if s.hasValue {
			fn(joinDot(path), s.value, s.kind)
		}
		for id, child := range s.children {
			walk(child, append(append([]string(nil), path...), id))
		}
	}
	walk(c.root, nil)
}

// Substitute expands every ${name} occurrence in s by recursively
// resolving through Get; a name cycle is broken by treating the
// revisited name as empty, and an unresolved name expands to "" (spec
// §4.3 — distinct from Expression.Eval, where an unresolved variable is
// fatal).
func (c *Context) Substitute(s string) string {
	return c.substitute(s, map[string]bool{})
}

func (c *Context) substitute(s string, visiting map[string]bool) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == '$' && i+1 < len(s) && s[i+1] == '{' {
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				b.WriteString(s[i:])
				break
			}
			name := s[i+2 : i+2+end]
			if visiting[name] {
				i += 2 + end + 1
				continue
			}
			if v, ok := c.Get(name); ok {
				raw := v.MustString()
				visiting[name] = true
				b.WriteString(c.substitute(raw, visiting))
				delete(visiting, name)
			}
			i += 2 + end + 1
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}
