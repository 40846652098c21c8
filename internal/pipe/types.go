// Package pipe implements the pipe-expression interpreter (spec §4.5)
// and, of necessity, the condition evaluator (spec §4.4): an `If` step
// evaluates a Condition, and a Condition's Compare operands are
// themselves pipelines, so the two are mutually recursive and cannot
// live in separate packages without a cycle. internal/cond re-exports
// the condition half of this package as Rulemorph's public condition
// evaluator API; see DESIGN.md.
package pipe

import "github.com/rulemorph/rulemorph/internal/value"

// Expr is a pipeline start expression: a reference, a literal Value, a
// `$`-current-value marker, or an escaped `lit:` string.
type Expr interface {
	exprNode()
}

// Ref is a parsed reference start, e.g. `@input.n`.
type Ref struct {
	Path string // raw reference text, parsed lazily by ref.Parse
}

func (Ref) exprNode() {}

// Literal is a literal Value start, including `lit:`-escaped strings
// (the loader strips the prefix and produces a Literal{value.String}).
type Literal struct {
	Value value.Value
}

func (Literal) exprNode() {}

// Current resolves to the pipeline's current value (`$`).
type Current struct{}

func (Current) exprNode() {}

// Pipeline is `(start, [step...])`, evaluated left to right.
type Pipeline struct {
	Start Expr
	Steps []Step
}

// Step is one of Op, Let, If, Map (spec §3's Expression AST).
type Step interface {
	stepNode()
}

// OpStep applies a named registry operation to the current pipe value.
type OpStep struct {
	Name string
	Args []Pipeline
}

func (OpStep) stepNode() {}

// LetBinding is one ordered binding within a Let step.
type LetBinding struct {
	Name string
	Expr Pipeline
}

// LetStep extends the environment with new bindings, evaluated in
// order so later bindings can see earlier ones.
type LetStep struct {
	Bindings []LetBinding
}

func (LetStep) stepNode() {}

// IfStep branches on a Condition.
type IfStep struct {
	Cond Condition
	Then Pipeline
	Else *Pipeline
}

func (IfStep) stepNode() {}

// MapStep runs Body once per element of an array pipe value, with
// `@item`/`@item.index` bound; elements whose body evaluates to missing
// are omitted from the result.
type MapStep struct {
	Body Pipeline
}

func (MapStep) stepNode() {}

// Condition is the sealed condition AST (spec §3): All, Any, or Compare.
type Condition interface {
	conditionNode()
}

// All is true when every child is true; empty All is vacuously true.
type All struct {
	Children []Condition
}

func (All) conditionNode() {}

// Any is true when at least one child is true; empty Any is false.
type Any struct {
	Children []Condition
}

func (Any) conditionNode() {}

// CompareOp names a comparison operator used by Compare.
type CompareOp string

const (
	OpEq    CompareOp = "eq"
	OpNe    CompareOp = "ne"
	OpGt    CompareOp = "gt"
	OpGte   CompareOp = "gte"
	OpLt    CompareOp = "lt"
	OpLte   CompareOp = "lte"
	OpMatch CompareOp = "match"
)

// Compare applies Op to the results of evaluating Lhs and Rhs.
type Compare struct {
	Op  CompareOp
	Lhs Pipeline
	Rhs Pipeline
}

func (Compare) conditionNode() {}
