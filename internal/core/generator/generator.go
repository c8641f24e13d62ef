// Package generator is the default Generator collaborator (spec §6): it
// consumes the resolved output events the Controller emits in
// declaration order and performs the actual on-disk project
// materialization — directory creation, verbatim file copies, and
// Mustache-subset template rendering — that spec §1 explicitly keeps
// out of the core.
package generator

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/archetype-run/archetype/internal/core/archive"
	"github.com/archetype-run/archetype/internal/core/ast"
	"github.com/archetype-run/archetype/internal/core/invoke"
)

// SourceOpener is the narrow Archive capability the generator needs:
// opening a script-relative source path for reading. The default
// implementation is internal/core/archive.Archive.
type SourceOpener interface {
	Open(logicalPath string) (io.ReadCloser, error)
}

// Generator materializes a project under OutputDir by consuming the
// Controller's emitted <template>/<file>/<templates>/<files>/
// <transformation> events.
type Generator struct {
	Source    SourceOpener
	OutputDir string

	transformations map[string]*ast.Node // id -> <transformation> node, indexed as declared
}

func New(source SourceOpener, outputDir string) *Generator {
	return &Generator{Source: source, OutputDir: outputDir, transformations: map[string]*ast.Node{}}
}

// Emit dispatches one node kind the Controller reached.
func (g *Generator) Emit(evt invoke.Event) error {
	switch evt.Kind {
	case ast.KindTransformation:
		g.transformations[evt.Node.AttrString("id")] = evt.Node
		return nil
	case ast.KindFile:
		return g.emitFile(evt, evt.Node, false)
	case ast.KindTemplate:
		return g.emitFile(evt, evt.Node, true)
	case ast.KindFiles:
		return g.emitDirectory(evt, false)
	case ast.KindTemplates:
		return g.emitDirectory(evt, true)
	}
	return nil
}

func (g *Generator) emitFile(evt invoke.Event, n *ast.Node, isTemplate bool) error {
	src := evt.Ctx.Substitute(n.AttrString("source"))
	target := g.transformTarget(evt.Ctx.Substitute(n.AttrString("target")), n.AttrString("transformations"))
	return g.writeOne(evt, src, target, isTemplate)
}

func (g *Generator) emitDirectory(evt invoke.Event, isTemplate bool) error {
	n := evt.Node
	dir := evt.Ctx.Substitute(n.AttrString("directory"))
	transformIDs := n.AttrString("transformations")

	includes := patternsOf(n, ast.KindIncludes)
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	excludes := patternsOf(n, ast.KindExcludes)

	base, err := resolveDir(g.Source, dir)
	if err != nil {
		return err
	}
	return filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		relSlash := filepath.ToSlash(rel)
		ok, err := archive.MatchAny(includes, relSlash)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if excluded, err := archive.MatchAny(excludes, relSlash); err != nil {
			return err
		} else if excluded {
			return nil
		}
		target := g.transformTarget(evt.Ctx.Substitute(rel), transformIDs)
		return g.writeOne(evt, filepath.Join(dir, rel), target, isTemplate)
	})
}

func (g *Generator) writeOne(evt invoke.Event, src, target string, isTemplate bool) error {
	out := filepath.Join(g.OutputDir, target)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("generator: creating %s: %w", filepath.Dir(out), err)
	}

	f, err := g.Source.Open(src)
	if err != nil {
		return fmt.Errorf("generator: opening %s: %w", src, err)
	}
	defer f.Close()

	if !isTemplate {
		dst, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("generator: creating %s: %w", out, err)
		}
		defer dst.Close()
		if _, err := io.Copy(dst, f); err != nil {
			return fmt.Errorf("generator: copying %s -> %s: %w", src, out, err)
		}
		return nil
	}

	raw, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("generator: reading template %s: %w", src, err)
	}
	rendered, err := evt.Render.Render(string(raw), nil)
	if err != nil {
		return fmt.Errorf("generator: rendering %s: %w", src, err)
	}
	if err := os.WriteFile(out, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("generator: writing %s: %w", out, err)
	}
	return nil
}

// transformTarget applies every <replace> rule of each referenced
// transformation, in the order the ids are listed, to a destination
// path. Declaring a <transformation> only registers it (see Emit); it
// has no effect until named here, matching spec §6's "transformations?"
// attribute on <templates>/<files>/<template>/<file>.
func (g *Generator) transformTarget(target, ids string) string {
	for _, id := range strings.Fields(ids) {
		t, ok := g.transformations[id]
		if !ok {
			continue
		}
		for _, r := range t.ChildrenOf(ast.KindReplace) {
			pattern := r.AttrString("regex")
			replacement := r.AttrString("replacement")
			re, err := regexp.Compile(pattern)
			if err != nil {
				continue
			}
			target = re.ReplaceAllString(target, replacement)
		}
	}
	return target
}

// patternsOf reads the whitespace/comma-separated glob patterns held in
// the raw text of a <includes>/<excludes> child, if present.
func patternsOf(n *ast.Node, kind ast.Kind) []string {
	var out []string
	for _, c := range n.ChildrenOf(kind) {
		if c.Raw.IsEmpty() {
			continue
		}
		text := c.Raw.MustString()
		for _, f := range strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == '\n' || r == ' ' || r == '\t' }) {
			if f != "" {
				out = append(out, f)
			}
		}
	}
	return out
}

// resolveDir joins dir onto the archive root when the opener also
// implements Resolve; otherwise it returns dir unchanged.
func resolveDir(src SourceOpener, dir string) (string, error) {
	type resolver interface {
		Resolve(string) (string, error)
	}
	if r, ok := src.(resolver); ok {
		abs, err := r.Resolve(".")
		if err != nil {
			return "", fmt.Errorf("generator: resolving archive root: %w", err)
		}
		return filepath.Join(abs, dir), nil
	}
	return dir, nil
}
