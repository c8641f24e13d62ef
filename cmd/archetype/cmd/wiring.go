package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/archetype-run/archetype/internal/core/archive"
	"github.com/archetype-run/archetype/internal/core/ast"
	"github.com/archetype-run/archetype/internal/core/context"
	"github.com/archetype-run/archetype/internal/core/loader"
	"github.com/archetype-run/archetype/internal/core/prompt"
	"github.com/archetype-run/archetype/internal/core/resolve"
	"github.com/archetype-run/archetype/internal/core/xmlscript"
)

// terminalPrompter wires a prompt.Terminal over cmd's own in/out
// streams, so tests that swap cmd.SetIn/SetOut drive the prompter too.
func terminalPrompter(cmd *cobra.Command) resolve.Prompter {
	return prompt.New(cmd.InOrStdin(), cmd.OutOrStdout())
}

// openEntry loads and decodes the entry-point script named by the
// --archive/--entry flags on cmd. When --cache names a file, loaded
// script source persists there (via a BoltCache) across runs instead of
// the default in-memory cache; the returned closer releases it and must
// be called once the caller is done with the Loader.
func openEntry(cmd *cobra.Command) (*ast.Script, *loader.Loader, func() error, error) {
	archiveDir, _ := cmd.Flags().GetString("archive")
	entry, _ := cmd.Flags().GetString("entry")
	cachePath, _ := cmd.Flags().GetString("cache")

	var cache loader.Cache
	closer := func() error { return nil }
	if cachePath != "" {
		bc, err := loader.OpenBoltCache(cachePath)
		if err != nil {
			return nil, nil, nil, err
		}
		cache = bc
		closer = bc.Close
	}

	a := archive.New(archiveDir)
	l := loader.New(a, xmlscript.New(), cache)
	script, err := l.Load(entry)
	if err != nil {
		_ = closer()
		return nil, nil, nil, fmt.Errorf("loading %s: %w", entry, err)
	}
	return script, l, closer, nil
}

// newContext builds a Context with external values/defaults installed
// from every --values/--defaults YAML file on cmd, in the order given
// (a later values file that binds an id to a different value is an
// error; for defaults the first file to bind an id wins).
func newContext(cmd *cobra.Command) (*context.Context, error) {
	ctx := context.New()

	values, _ := cmd.Flags().GetStringSlice("values")
	for _, path := range values {
		m, err := readYAMLStrings(path)
		if err != nil {
			return nil, err
		}
		if err := ctx.ExternalValues(m); err != nil {
			return nil, fmt.Errorf("applying external values from %s: %w", path, err)
		}
	}

	defaults, _ := cmd.Flags().GetStringSlice("defaults")
	for _, path := range defaults {
		m, err := readYAMLStrings(path)
		if err != nil {
			return nil, err
		}
		if err := ctx.ExternalDefaults(m); err != nil {
			return nil, fmt.Errorf("applying external defaults from %s: %w", path, err)
		}
	}

	return ctx, nil
}

// readYAMLStrings decodes a flat YAML mapping of input id -> value. A
// YAML sequence is joined with commas so list inputs can be written as
// sequences in the values file; other non-string scalars go through
// fmt.Sprintf("%v").
func readYAMLStrings(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = scalarString(v)
	}
	return out, nil
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []interface{}:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = scalarString(e)
		}
		s := ""
		for i, p := range parts {
			if i > 0 {
				s += ","
			}
			s += p
		}
		return s
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", t)
	}
}
