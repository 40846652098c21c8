package cli

import (
	"io"
	"os"

	"github.com/rulemorph/rulemorph"
	"github.com/rulemorph/rulemorph/internal/value"
	"github.com/spf13/cobra"
)

// NewTraceCommand builds `rulemorph trace <rule> [input]`, printing the
// full trace.Document instead of just the output records.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	var contextPath string

	cmd := &cobra.Command{
		Use:   "trace <rule> [input]",
		Short: "Transform an input file, printing the resulting trace document",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd, rootOpts, args, contextPath)
		},
	}
	cmd.Flags().StringVar(&contextPath, "context", "", "path to a JSON file used as the request context (@context)")
	return cmd
}

func runTrace(cmd *cobra.Command, rootOpts *RootOptions, args []string, contextPath string) error {
	rulePath := args[0]

	var inputBytes []byte
	var err error
	if len(args) == 2 {
		inputBytes, err = os.ReadFile(args[1])
	} else {
		inputBytes, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "read input", err)
	}

	reqContext := value.NullValue
	if contextPath != "" {
		raw, err := os.ReadFile(contextPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "read context", err)
		}
		reqContext, err = value.Unmarshal(raw)
		if err != nil {
			return WrapExitError(ExitCommandError, "parse context", err)
		}
	}

	rt := rulemorph.New(rootOpts.Root)
	stream, doc, err := rt.TransformWithTrace(rulePath, inputBytes, reqContext)
	if err != nil {
		return WrapExitError(ExitFailure, "transform_with_trace", err)
	}
	if _, err := rulemorph.Collect(stream); err != nil {
		return WrapExitError(ExitFailure, "collect output", err)
	}

	// The trace document is always a structured value; there is no
	// separate text rendering for it.
	formatter := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
	return formatter.Success(doc)
}
