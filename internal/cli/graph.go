package cli

import (
	"fmt"

	"github.com/rulemorph/rulemorph"
	"github.com/spf13/cobra"
)

// NewGraphCommand builds `rulemorph graph <rule>`.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "graph <rule>",
		Short: "Print the transitive call graph rooted at a rule document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd, rootOpts, args[0])
		},
	}
}

func runGraph(cmd *cobra.Command, rootOpts *RootOptions, rulePath string) error {
	rt := rulemorph.New(rootOpts.Root)
	graph, err := rt.BuildCallGraph(rulePath)
	if err != nil {
		return WrapExitError(ExitFailure, "build_call_graph", err)
	}

	formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
	if formatter.Format == "json" {
		return formatter.Success(graph)
	}

	for _, n := range graph.Nodes {
		fmt.Fprintf(cmd.OutOrStdout(), "node %s [%s] %s\n", n.ID, n.Kind, n.Path)
	}
	for _, e := range graph.Edges {
		fmt.Fprintf(cmd.OutOrStdout(), "edge %s -> %s (%s)\n", e.Source, e.Target, e.Kind)
	}
	return nil
}
