package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/archetype-run/archetype/internal/core/archive"
	"github.com/archetype-run/archetype/internal/core/generator"
	"github.com/archetype-run/archetype/internal/core/invoke"
	"github.com/archetype-run/archetype/internal/core/model"
	"github.com/archetype-run/archetype/internal/core/resolve"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "run an archetype's entry-point script and materialize a project",
		RunE:  runGenerate,
	}
	cmd.Flags().StringP("out", "o", ".", "directory the generated project is written into")
	cmd.Flags().Bool("interactive", false, "prompt on the terminal for any input left unresolved by --values/--defaults")
	return cmd
}

func runGenerate(cmd *cobra.Command, args []string) error {
	script, l, closeCache, err := openEntry(cmd)
	if err != nil {
		return err
	}
	defer closeCache()
	ctx, err := newContext(cmd)
	if err != nil {
		return err
	}

	archiveDir, _ := cmd.Flags().GetString("archive")
	outDir, _ := cmd.Flags().GetString("out")
	interactive, _ := cmd.Flags().GetBool("interactive")

	var resolver resolve.Resolver = resolve.BatchResolver{}
	if interactive {
		resolver = &resolve.InteractiveResolver{Prompter: terminalPrompter(cmd)}
	}

	gen := generator.New(archive.New(archiveDir), outDir)
	ctrl := invoke.New(l, resolver, gen)

	tree := model.NewTree()
	if err := ctrl.Invoke(script, ctx, tree); err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "generated project under %s\n", outDir)
	return nil
}
