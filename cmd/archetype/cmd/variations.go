package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/archetype-run/archetype/internal/core/combinator"
)

func newVariationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "variations",
		Short: "enumerate the admissible input combinations of an archetype",
		RunE:  runVariations,
	}
	cmd.Flags().StringToString("preset", nil, "fix an input id to a value before enumerating, collapsing it out of the product")
	cmd.Flags().StringSlice("exclude", nil, "expression(s); a combination matching any is skipped")
	cmd.Flags().Bool("count-only", false, "print only the total variation count")
	return cmd
}

func runVariations(cmd *cobra.Command, args []string) error {
	script, _, closeCache, err := openEntry(cmd)
	if err != nil {
		return err
	}
	defer closeCache()

	tree := combinator.Build(script.Root)

	presets, _ := cmd.Flags().GetStringToString("preset")
	if len(presets) > 0 {
		combinator.ApplyPresets(tree, presets)
	}

	excludeExprs, _ := cmd.Flags().GetStringSlice("exclude")
	excluder, err := combinator.BuildExcluder(excludeExprs)
	if err != nil {
		return fmt.Errorf("variations: %w", err)
	}

	countOnly, _ := cmd.Flags().GetBool("count-only")
	if countOnly {
		n, err := combinator.Count(tree, excluder)
		if err != nil {
			return fmt.Errorf("variations: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	}

	n, err := combinator.Enumerate(tree, excluder, func(a combinator.Assignment) error {
		fmt.Fprintln(cmd.OutOrStdout(), formatAssignment(a))
		return nil
	})
	if err != nil {
		return fmt.Errorf("variations: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d total\n", n)
	return nil
}

func formatAssignment(a combinator.Assignment) string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += " "
		}
		out += k + "=" + a[k].MustString()
	}
	return out
}
