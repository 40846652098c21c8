// Package cond is the public condition-evaluator API (spec §4.4):
// boolean combinators and typed comparison predicates. The evaluator
// itself lives in internal/pipe because a Condition's Compare operands
// are pipelines and an If pipeline step evaluates a Condition — the two
// are mutually recursive and Go forbids the resulting import cycle if
// they're split across packages. This package re-exports the condition
// half of that interpreter as Rulemorph's standalone condition API, for
// callers (the rule loader, the record engine's `when`/`record_when`
// handling, finalize's `filter`) that only ever need conditions.
package cond

import (
	"github.com/rulemorph/rulemorph/internal/pipe"
	"github.com/rulemorph/rulemorph/internal/ref"
)

type (
	// Condition is the sealed condition AST: All, Any, or Compare.
	Condition = pipe.Condition
	// All is true when every child condition is true.
	All = pipe.All
	// Any is true when at least one child condition is true.
	Any = pipe.Any
	// Compare applies a comparison operator to two pipeline operands.
	Compare = pipe.Compare
	// CompareOp names a comparison operator.
	CompareOp = pipe.CompareOp
)

const (
	OpEq    = pipe.OpEq
	OpNe    = pipe.OpNe
	OpGt    = pipe.OpGt
	OpGte   = pipe.OpGte
	OpLt    = pipe.OpLt
	OpLte   = pipe.OpLte
	OpMatch = pipe.OpMatch
)

// Eval evaluates cond against env. The caller decides how to treat an
// error: in a `when` context it demotes to a skip plus a trace warning
// (spec §4.4); elsewhere it is a hard evaluation failure.
func Eval(c Condition, env ref.Env, reg *pipe.Registry) (bool, error) {
	return pipe.EvalCondition(c, env, reg)
}
