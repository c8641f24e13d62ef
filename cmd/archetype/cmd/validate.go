package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/archetype-run/archetype/internal/core/compiler"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "statically check an archetype's entry-point script",
		RunE:  runValidate,
	}
	cmd.Flags().StringSlice("ignore", nil, "rule names to ignore (see the message prefix of a validation error)")
	cmd.Flags().Bool("xml", false, "print the canonical XML form of the compiled script")
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	script, _, closeCache, err := openEntry(cmd)
	if err != nil {
		return err
	}
	defer closeCache()

	ignored, _ := cmd.Flags().GetStringSlice("ignore")
	opts := compiler.Options{IgnoreErrors: map[string]bool{}}
	for _, r := range ignored {
		opts.IgnoreErrors[r] = true
	}

	errs := compiler.Validate(script, opts)

	printXML, _ := cmd.Flags().GetBool("xml")
	if printXML {
		fmt.Fprint(cmd.OutOrStdout(), compiler.CanonicalXML(script.Root))
	}

	if errs.Len() > 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), errs.Error())
		return fmt.Errorf("validate: %d error(s)", errs.Len())
	}
	fmt.Fprintln(cmd.OutOrStdout(), "ok")
	return nil
}
