// Package rule parses rule documents (spec §3) into a typed AST, runs
// static validation, and loads a rule's transitive call graph with
// cycle rejection: a CUE-as-schema-gate structural check (schema.go),
// non-fail-fast ValidationError collection (validate.go), and a
// graph-walk cycle check (load.go).
package rule

import (
	"github.com/rulemorph/rulemorph/internal/cond"
	"github.com/rulemorph/rulemorph/internal/pipe"
	"github.com/rulemorph/rulemorph/internal/value"
)

// Kind discriminates the three rule document shapes (spec §3).
type Kind string

const (
	KindNormal   Kind = "normal"
	KindEndpoint Kind = "endpoint"
	KindNetwork  Kind = "network"
)

// InputFormat is the declared shape of a normal rule's input stream.
type InputFormat string

const (
	FormatCSV  InputFormat = "csv"
	FormatJSON InputFormat = "json"
)

// CSVColumn names and types a column for headerless CSV input.
type CSVColumn struct {
	Name string
	Type string
}

// CSVInput configures the CSV reader (spec §4.10, supplemented by
// SPEC_FULL.md's delimiter/column-type defaults).
type CSVInput struct {
	HasHeader bool
	Delimiter rune
	// DelimiterRaw is the undecoded `delimiter` string as written in the
	// rule document, kept alongside Delimiter so Validate can reject a
	// multi-character value instead of the parser silently truncating it
	// to its first rune.
	DelimiterRaw string
	Columns      []CSVColumn
}

// JSONInput configures the JSON reader (spec §4.10).
type JSONInput struct {
	RecordsPath string
	HasPath     bool
}

// InputSpec is a normal rule's `input` descriptor.
type InputSpec struct {
	Format InputFormat
	CSV    CSVInput
	JSON   JSONInput
}

// Position locates a node within a parsed rule document for
// JSON-pointer-like diagnostics (spec §4.3).
type Position struct {
	Line   int
	Column int
	Path   string // JSON-pointer-like, e.g. "/mappings/2/target"
}

// Mapping is a single field-producing rule (spec §3's Mapping type).
// Exactly one of HasSource/HasValue/HasExpr is true after a
// successfully validated parse.
type Mapping struct {
	Target string

	HasSource bool
	Source    string

	HasValue bool
	Value    value.Value

	HasExpr bool
	Expr    pipe.Pipeline

	Type string // optional cast: string|int|float|bool

	Required bool

	HasDefault bool
	Default    value.Value

	HasWhen bool
	When    cond.Condition

	Pos Position
}

// Assert is a steps-path `asserts` entry (spec §4.6).
type Assert struct {
	When    cond.Condition
	Code    string
	Message string
	Pos     Position
}

// Branch is a steps-path `branch` entry (spec §4.6/§4.7).
type Branch struct {
	When cond.Condition

	Then string

	HasElse bool
	Else    string

	Return bool

	// HasCatch models `steps[].catch` (spec §7's error-propagation
	// precedence names a step-level catch, but the only step variant
	// that can fail via a sub-rule call is branch, so it lives here
	// rather than on Step itself).
	HasCatch bool
	Catch    Catch

	Pos Position
}

// Step is one element of a `steps` program. Exactly one of
// HasMappings/HasRecordWhen/HasAsserts/HasBranch is true.
type Step struct {
	HasMappings bool
	Mappings    []Mapping

	HasRecordWhen bool
	RecordWhen    cond.Condition

	HasAsserts bool
	Asserts    []Assert

	HasBranch bool
	Branch    Branch

	Pos Position
}

// SortSpec is finalize's `sort` clause (spec §4.8).
type SortSpec struct {
	By    string
	Order string // asc|desc
}

// Finalize is the post-processing pipeline run once over the whole
// output sequence (spec §4.8).
type Finalize struct {
	HasFilter bool
	Filter    cond.Condition

	HasSort bool
	Sort    SortSpec

	HasOffset bool
	Offset    int

	HasLimit bool
	Limit    int

	HasWrap bool
	// WrapOrder preserves declaration order so the wrapped object's
	// keys round-trip in the same order the rule author wrote them.
	WrapOrder []string
	Wrap      map[string]pipe.Pipeline

	// UnknownKeys lists any finalize mapping key the parser didn't
	// recognize, for Validate to report as a ValidationError (spec.md
	// §3: "finalize keys are known").
	UnknownKeys []string
}

// Output carries supplemental metadata about a rule's emitted shape
// (the `output.name` field supplemented from original_source/, see
// DESIGN.md).
type Output struct {
	HasName bool
	Name    string
}

// Catch maps dispatch keys (an exact integer status code as a string,
// "4xx", "5xx", "timeout", "default") to a rule reference.
type Catch map[string]string

// RetryBackoff is a network request's retry backoff strategy.
type RetryBackoff string

const (
	BackoffFixed       RetryBackoff = "fixed"
	BackoffLinear      RetryBackoff = "linear"
	BackoffExponential RetryBackoff = "exponential"
)

// NetworkRetry configures request retry (spec §6's YAML surface).
type NetworkRetry struct {
	Max          int
	Backoff      RetryBackoff
	InitialDelay int64 // milliseconds
}

// NetworkRequest is the body of a `network`-typed rule.
type NetworkRequest struct {
	Method  string
	URL     pipe.Pipeline
	Headers map[string]string

	HasBody    bool
	Body       pipe.Pipeline
	HasBodyMap bool
	BodyMap    map[string]pipe.Pipeline
	HasBodyRule bool
	BodyRule   string

	TimeoutMS int64

	HasRetry bool
	Retry    NetworkRetry

	HasSelect bool
	Select    string

	Catch Catch
}

// Endpoint is the body of an `endpoint`-typed rule.
type Endpoint struct {
	Method string
	Path   string
	Input  InputSpec
	Steps  []Step
	Reply  []Mapping // supplemented: endpoint output-shaping mapping list
	Catch  Catch
}

// Rule is a fully parsed rule document (spec §3).
type Rule struct {
	// Path is the rule file's location, relative to the loader root.
	// Set by the loader, not the parser.
	Path string

	Type    Kind
	Version int

	Input InputSpec

	HasMappings bool
	Mappings    []Mapping

	HasSteps bool
	Steps    []Step

	HasRecordWhen bool
	RecordWhen    cond.Condition

	HasFinalize bool
	Finalize    Finalize

	HasOutput bool
	Output    Output

	Endpoint *Endpoint
	Network  *NetworkRequest
}
