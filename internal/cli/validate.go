package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/loadgate/internal/loadtest/config"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <plan-file>",
		Short: "Check a test plan without sending any traffic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0])
		},
	}
}

func runValidate(cmd *cobra.Command, path string) error {
	plan, err := config.LoadPlan(path)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	if err := plan.Validate(); err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	name := plan.Name
	if name == "" {
		name = path
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid (%d batches against %s)\n", name, len(plan.Batches), plan.Settings.BaseURL)
	return nil
}
