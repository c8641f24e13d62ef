// Package archive is the default Archive collaborator (spec §6): it
// resolves a script's logical path to a concrete filesystem location
// and discovers entry-point scripts under a root directory. Grounded on
// the glob-matching idiom of the termfx-morfx file walker, using
// doublestar instead of hand-rolled pattern matching.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Archive resolves logical script paths against a root directory on
// disk. The zero value is not usable; construct with New.
type Archive struct {
	root string
}

func New(root string) *Archive {
	return &Archive{root: root}
}

// Resolve turns a logical path (relative to the archive root, or
// already absolute) into an absolute filesystem path, verifying the
// file exists. Callers resolve a relative <source>/<exec> "src" against
// the current cwd scope before calling Resolve (spec §6); Resolve
// itself only ever joins against the archive root.
func (a *Archive) Resolve(logicalPath string) (string, error) {
	if filepath.IsAbs(logicalPath) {
		if _, err := os.Stat(logicalPath); err != nil {
			return "", fmt.Errorf("archive: %w", err)
		}
		return logicalPath, nil
	}
	abs := filepath.Join(a.root, logicalPath)
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("archive: %w", err)
	}
	return abs, nil
}

// Open opens the resolved file for reading, satisfying both
// loader.Archive and generator.SourceOpener.
func (a *Archive) Open(logicalPath string) (io.ReadCloser, error) {
	abs, err := a.Resolve(logicalPath)
	if err != nil {
		return nil, err
	}
	return os.Open(abs)
}

// Discover returns every script path under the archive root matching a
// doublestar pattern (e.g. "**/*.xml"), relative to the root, sorted for
// deterministic CLI listing order.
func (a *Archive) Discover(pattern string) ([]string, error) {
	var matches []string
	err := filepath.WalkDir(a.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(a.root, path)
		if err != nil {
			return err
		}
		ok, err := doublestar.Match(pattern, filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		if ok {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive: discovering %q under %s: %w", pattern, a.root, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// MatchAny reports whether path matches any of the given doublestar
// patterns; used to evaluate a <files>/<templates> directive's
// <includes>/<excludes> patterns against a discovered file.
func MatchAny(patterns []string, path string) (bool, error) {
	for _, p := range patterns {
		ok, err := doublestar.Match(p, filepath.ToSlash(path))
		if err != nil {
			return false, fmt.Errorf("archive: bad pattern %q: %w", p, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
