package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rulemorph/rulemorph"
	"github.com/rulemorph/rulemorph/internal/value"
	"github.com/spf13/cobra"
)

// NewRunCommand builds `rulemorph run <rule> [input]`.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	var contextPath string

	cmd := &cobra.Command{
		Use:   "run <rule> [input]",
		Short: "Transform an input file through a rule document",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, rootOpts, args, contextPath)
		},
	}
	cmd.Flags().StringVar(&contextPath, "context", "", "path to a JSON file used as the request context (@context)")
	return cmd
}

func runRun(cmd *cobra.Command, rootOpts *RootOptions, args []string, contextPath string) error {
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
	stream, err := rt.Transform(rulePath, inputBytes, reqContext)
	if err != nil {
		return WrapExitError(ExitFailure, "transform", err)
	}

	out, err := rulemorph.Collect(stream)
	if err != nil {
		return WrapExitError(ExitFailure, "collect output", err)
	}

	formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
	if formatter.Format == "json" {
		docs := make([]interface{}, len(out))
		for i, v := range out {
			docs[i] = value.ToJSON(v)
		}
		return formatter.Success(docs)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, v := range out {
		if err := enc.Encode(value.ToJSON(v)); err != nil {
			return WrapExitError(ExitCommandError, "write output", err)
		}
	}
	return nil
}
