package rule

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/rulemorph/rulemorph/internal/rmerr"
)

// ruleSchemaSource is a coarse structural gate, not a full semantic
// validator: it catches gross shape errors (wrong field types, an
// unknown enum value, a `sort` with no `by`) before the field-by-field
// checks in Validate run. It intentionally stays permissive on
// anything Validate is better positioned to explain precisely, such
// as mappings/steps mutual exclusivity, which needs a rule-specific
// error message rather than a generic CUE unification failure.
const ruleSchemaSource = `
#Rule: {
	version: int
	type?:   "normal" | "endpoint" | "network"
	input?: {
		format: "csv" | "json"
		...
	}
	mappings?: [...{
		target: string
		...
	}]
	steps?: [...{...}]
	record_when?: {...}
	finalize?: close({
		filter?: {...}
		sort?: {
			by:     string
			order?: "asc" | "desc"
		}
		offset?: int
		limit?:  int
		wrap?: {...}
	})
	output?: {
		name?: string
		...
	}
	method?: string
	path?:   string
	reply?: [...{...}]
	request?: {
		method?:    string
		url:        _
		headers?: {...}
		body?:      _
		body_map?: {...}
		body_rule?: string
		timeout?:   string
		retry?: {
			max:            int
			backoff?:       "fixed" | "linear" | "exponential"
			initial_delay?: string
		}
		select?: string
		...
	}
	catch?: {...}
	...
}
`

var (
	schemaCtx = cuecontext.New()
	schemaDef = schemaCtx.CompileString(ruleSchemaSource).LookupPath(cue.ParsePath("#Rule"))
)

// CheckSchema unifies a raw decoded rule document (as produced by
// yaml.Node.Decode into a map[string]any) against the structural
// schema above: CUE gates document shape before Go code inspects
// field-by-field semantics, and any failure is reported through
// formatCUEError, which extracts CUE's error position into the
// document's own line/column.
func CheckSchema(raw map[string]any) error {
	if err := schemaDef.Err(); err != nil {
		return formatCUEError(err)
	}
	doc := schemaCtx.Encode(raw)
	if err := doc.Err(); err != nil {
		return formatCUEError(err)
	}
	unified := schemaDef.Unify(doc)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return rmerr.Wrap(rmerr.CodeValidationError, "", err.Error(), err)
	}
	first := errs[0]
	path := ""
	if positions := errors.Positions(first); len(positions) > 0 {
		p := positions[0]
		path = fmt.Sprintf(":%d:%d", p.Line(), p.Column())
	}
	return rmerr.Wrap(rmerr.CodeValidationError, path, first.Error(), err)
}
