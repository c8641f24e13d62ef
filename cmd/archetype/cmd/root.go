// Package cmd is the archetype CLI front-end (spec §6's "any command-
// line front-end" non-goal for the core, wired here as a concrete
// consumer): generate, validate, and variations subcommands over
// loader+compiler+invoke+resolve+generator.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// addGlobalFlags registers the flags every subcommand shares: which
// archive to read, which script is its entry point, and where external
// values/defaults come from.
func addGlobalFlags(f *pflag.FlagSet) {
	f.String("archive", ".", "root directory the archive's logical script paths resolve against")
	f.String("entry", "archetype.xml", "entry-point script, relative to --archive")
	f.StringSlice("values", nil, "YAML file(s) of external input values (highest precedence)")
	f.StringSlice("defaults", nil, "YAML file(s) of external input defaults (used only when nothing else resolves an input)")
	f.String("cache", "", "bolt database file persisting loaded script source across runs (default: in-memory, not persisted)")
}

// New builds the root "archetype" command with its subcommands
// attached.
func New() *cobra.Command {
	root := &cobra.Command{
		Use:           "archetype",
		Short:         "archetype generates a project from a scripted archetype",
		Long:          `archetype interprets a tree of XML scripts describing questions, a data model, and file-generation directives, then materializes a new project directory.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	addGlobalFlags(root.PersistentFlags())

	root.AddCommand(newGenerateCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newVariationsCmd())

	return root
}

// Main runs the CLI and returns a process exit code.
func Main(args []string) int {
	root := New()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

// MainTest is the testscript.RunMain entry point: it runs Main against
// the process's own os.Args, exactly as the compiled binary's main()
// would, so script tests exercise the real CLI wiring.
func MainTest() int {
	return Main(os.Args[1:])
}
