package ast

import "fmt"

// Script is one loaded archetype script file: a root Node plus an index
// of its named <method> blocks (spec §3). Method names are unique within
// one script; that invariant is enforced at construction.
type Script struct {
	Root    *Node
	Path    string // canonical path, used as the loader's cache key
	methods map[string]*Node
}

// NewScript builds a Script from a parsed root node, indexing its method
// declarations. It returns an error if two methods share a name.
func NewScript(path string, root *Node) (*Script, error) {
	s := &Script{Root: root, Path: path, methods: map[string]*Node{}}
	for _, m := range root.Children {
		if m.Kind != KindMethodDecl {
			continue
		}
		name := m.AttrString("name")
		if _, dup := s.methods[name]; dup {
			return nil, fmt.Errorf("%s: duplicate method %q", path, name)
		}
		s.methods[name] = m
	}
	return s, nil
}

// Method looks up a named method declaration. The second return value is
// false if no such method exists; calling an undefined method is a fatal
// error at the invoker level (spec §3's Script invariant).
func (s *Script) Method(name string) (*Node, bool) {
	m, ok := s.methods[name]
	return m, ok
}

func (s *Script) MethodNames() []string {
	names := make([]string, 0, len(s.methods))
	for n := range s.methods {
		names = append(names, n)
	}
	return names
}
