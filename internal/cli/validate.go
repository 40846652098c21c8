package cli

import (
	"fmt"

	"github.com/rulemorph/rulemorph"
	"github.com/spf13/cobra"
)

// NewValidateCommand builds `rulemorph validate <rule>`.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <rule>",
		Short: "Load a rule document and its call graph, reporting every diagnostic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, rootOpts, args[0])
		},
	}
}

func runValidate(cmd *cobra.Command, rootOpts *RootOptions, rulePath string) error {
	rt := rulemorph.New(rootOpts.Root)
	diags, err := rt.ValidateRule(rulePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "validate", err)
	}

	formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
	if len(diags) == 0 {
		return formatter.Success(map[string]interface{}{"valid": true, "diagnostics": []interface{}{}})
	}

	if formatter.Format == "json" {
		items := make([]interface{}, len(diags))
		for i, d := range diags {
			items[i] = map[string]interface{}{
				"code":    d.Code,
				"path":    d.Path,
				"rule":    d.Rule,
				"message": d.Message,
			}
		}
		if err := formatter.Success(map[string]interface{}{"valid": false, "diagnostics": items}); err != nil {
			return WrapExitError(ExitCommandError, "write output", err)
		}
		return NewExitError(ExitFailure, "rule failed validation")
	}

	for _, d := range diags {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n", d.Path, d.Message, d.Code)
	}
	return NewExitError(ExitFailure, "rule failed validation")
}
