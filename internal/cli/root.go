package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// RootOptions holds flags shared by every subcommand.
type RootOptions struct {
	Verbose bool
	Format  string
	Root    string
}

// NewRootCommand builds the top-level `rulemorph` command with every
// subcommand attached.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "rulemorph",
		Short:         "Evaluate declarative rule documents against CSV/JSON input",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log evaluation details to stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format: text or json")
	cmd.PersistentFlags().StringVar(&opts.Root, "root", ".", "loader root that rule references resolve against")

	cmd.AddCommand(
		NewRunCommand(opts),
		NewValidateCommand(opts),
		NewTraceCommand(opts),
		NewGraphCommand(opts),
	)

	return cmd
}

// Execute runs the root command and returns the process exit code the
// caller should pass to os.Exit.
func Execute() int {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		formatter := &OutputFormatter{Format: "text", Writer: os.Stderr}
		if f, _ := cmd.Flags().GetString("format"); f == "json" {
			formatter.Format = "json"
		}
		reportError(formatter, err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

func reportError(f *OutputFormatter, err error) {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		_ = enc.Encode(Response{Status: "error", Error: &RespError{Code: "error", Message: err.Error()}})
		return
	}
	fmt.Fprintln(f.Writer, "error:", err)
}
