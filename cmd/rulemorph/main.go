// Command rulemorph is the CLI driver over the rulemorph library:
// run/validate/trace/graph subcommands, each a thin wrapper over a
// rulemorph.Runtime (spec §6).
package main

import (
	"os"

	"github.com/rulemorph/rulemorph/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
