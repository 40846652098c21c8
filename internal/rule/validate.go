package rule

import (
	"fmt"

	"github.com/rulemorph/rulemorph/internal/pipe"
	"github.com/rulemorph/rulemorph/internal/ref"
	"github.com/rulemorph/rulemorph/internal/rmerr"
)

var knownFinalizeKeys = map[string]bool{
	"filter": true, "sort": true, "offset": true, "limit": true, "wrap": true,
}

// Validate runs the static checks named in spec §4.3 against a single
// parsed rule document. It never stops at the first problem — it
// collects every diagnostic so a rule author sees all of a document's
// problems in one pass. Cross-file
// checks (referenced rule existence, cycles) are the loader's job
// since they need the whole transitive closure, not a single document.
func Validate(r *Rule, reg *pipe.Registry) []*rmerr.RuleError {
	var diags []*rmerr.RuleError
	report := func(path, format string, args ...any) {
		diags = append(diags, rmerr.New(rmerr.CodeValidationError, path, fmt.Sprintf(format, args...)))
	}

	if r.Version != 2 {
		report("/version", "version must be 2, got %d", r.Version)
	}
	switch r.Type {
	case KindNormal, KindEndpoint, KindNetwork:
	default:
		report("/type", "unknown rule type %q", r.Type)
	}

	switch r.Type {
	case KindNormal:
		validateNormal(r, reg, report)
	case KindEndpoint:
		validateEndpoint(r, reg, report)
	case KindNetwork:
		validateNetwork(r, reg, report)
	}

	if r.HasFinalize {
		validateFinalize(r.Finalize, "/finalize", reg, report)
	}
	return diags
}

type reporter func(path, format string, args ...any)

func validateNormal(r *Rule, reg *pipe.Registry, report reporter) {
	if r.HasMappings == r.HasSteps {
		report("", "a normal rule must have exactly one of mappings or steps")
	}
	if r.HasRecordWhen && r.HasSteps {
		report("/record_when", "top-level record_when cannot be combined with steps")
	}
	if r.Input.Format == "" {
		report("/input/format", "input.format is required")
	}
	if r.Input.Format == FormatCSV && r.Input.CSV.DelimiterRaw != "" {
		if n := len([]rune(r.Input.CSV.DelimiterRaw)); n != 1 {
			report("/input/csv/delimiter", "delimiter must be exactly one character, got %q", r.Input.CSV.DelimiterRaw)
		}
	}
	if r.HasMappings {
		validateMappings(r.Mappings, "/mappings", reg, report)
	}
	if r.HasSteps {
		validateSteps(r.Steps, "/steps", reg, report)
	}
	if r.HasRecordWhen {
		validateCondition(r.RecordWhen, "/record_when", reg, report)
	}
}

func validateEndpoint(r *Rule, reg *pipe.Registry, report reporter) {
	ep := r.Endpoint
	if ep == nil {
		report("", "endpoint rule missing endpoint body")
		return
	}
	if ep.Method == "" {
		report("/method", "endpoint.method is required")
	}
	if ep.Path == "" {
		report("/path", "endpoint.path is required")
	}
	validateSteps(ep.Steps, "/steps", reg, report)
	if len(ep.Reply) > 0 {
		validateMappings(ep.Reply, "/reply", reg, report)
	}
	validateCatch(ep.Catch, "/catch", report)
}

func validateNetwork(r *Rule, reg *pipe.Registry, report reporter) {
	nr := r.Network
	if nr == nil {
		report("", "network rule missing request body")
		return
	}
	if nr.Method == "" {
		report("/request/method", "request.method is required")
	}
	bodyKinds := 0
	if nr.HasBody {
		bodyKinds++
		validatePipeline(nr.Body, "/request/body", reg, report)
	}
	if nr.HasBodyMap {
		bodyKinds++
		for k, p := range nr.BodyMap {
			validatePipeline(p, "/request/body_map/"+k, reg, report)
		}
	}
	if nr.HasBodyRule {
		bodyKinds++
	}
	if bodyKinds > 1 {
		report("/request", "body, body_map, and body_rule are mutually exclusive")
	}
	if nr.TimeoutMS <= 0 {
		report("/request/timeout", "timeout must be a positive duration")
	}
	if nr.HasRetry {
		switch nr.Retry.Backoff {
		case BackoffFixed, BackoffLinear, BackoffExponential:
		default:
			report("/request/retry/backoff", "unknown backoff %q", nr.Retry.Backoff)
		}
	}
	validatePipeline(nr.URL, "/request/url", reg, report)
	validateCatch(nr.Catch, "/catch", report)
}

func validateCatch(c Catch, path string, report reporter) {
	for k := range c {
		switch k {
		case "timeout", "default", "4xx", "5xx":
			continue
		default:
			// must be an exact integer status code
			var n int
			if _, err := fmt.Sscanf(k, "%d", &n); err != nil {
				report(path+"/"+k, "catch key must be an integer status code, \"4xx\", \"5xx\", \"timeout\", or \"default\"")
			}
		}
	}
}

func validateMappings(ms []Mapping, base string, reg *pipe.Registry, report reporter) {
	seen := map[string]bool{}
	for i, m := range ms {
		path := fmt.Sprintf("%s/%d", base, i)
		if m.Target == "" {
			report(path+"/target", "target is required")
		} else if tp, err := ref.Parse("@out." + m.Target); err != nil {
			report(path+"/target", "invalid target path: %v", err)
		} else {
			for _, seg := range tp.Segments {
				if seg.Kind != ref.FieldSegment {
					report(path+"/target", "target must decompose into object keys only")
					break
				}
			}
		}
		count := 0
		if m.HasSource {
			count++
			if _, err := ref.Parse(ref.NormalizeSource(m.Source)); err != nil {
				report(path+"/source", "invalid reference: %v", err)
			}
		}
		if m.HasValue {
			count++
		}
		if m.HasExpr {
			count++
			validatePipeline(m.Expr, path+"/expr", reg, report)
		}
		if count != 1 {
			report(path, "exactly one of source, value, expr must be set")
		}
		if m.Type != "" {
			switch m.Type {
			case "string", "int", "float", "bool":
			default:
				report(path+"/type", "unknown cast type %q", m.Type)
			}
		}
		if m.HasWhen {
			validateCondition(m.When, path+"/when", reg, report)
		}
		seen[m.Target] = true
	}
}

func validateSteps(steps []Step, base string, reg *pipe.Registry, report reporter) {
	for i, st := range steps {
		path := fmt.Sprintf("%s/%d", base, i)
		count := 0
		if st.HasMappings {
			count++
			validateMappings(st.Mappings, path+"/mappings", reg, report)
		}
		if st.HasRecordWhen {
			count++
			validateCondition(st.RecordWhen, path+"/record_when", reg, report)
		}
		if st.HasAsserts {
			count++
			for j, a := range st.Asserts {
				validateCondition(a.When, fmt.Sprintf("%s/asserts/%d/when", path, j), reg, report)
				if a.Code == "" {
					report(fmt.Sprintf("%s/asserts/%d/error/code", path, j), "assert error.code is required")
				}
			}
		}
		if st.HasBranch {
			count++
			validateCondition(st.Branch.When, path+"/branch/when", reg, report)
			if st.Branch.Then == "" {
				report(path+"/branch/then", "branch.then is required")
			}
			if st.Branch.HasCatch {
				validateCatch(st.Branch.Catch, path+"/branch/catch", report)
			}
		}
		if count != 1 {
			report(path, "a step must have exactly one of mappings, record_when, asserts, branch")
		}
	}
}

func validateFinalize(f Finalize, base string, reg *pipe.Registry, report reporter) {
	if f.HasFilter {
		validateCondition(f.Filter, base+"/filter", reg, report)
	}
	if f.HasSort {
		if f.Sort.By == "" {
			report(base+"/sort/by", "sort.by is required")
		}
		switch f.Sort.Order {
		case "asc", "desc", "":
		default:
			report(base+"/sort/order", "sort.order must be asc or desc")
		}
	}
	if f.HasOffset && f.Offset < 0 {
		report(base+"/offset", "offset must be non-negative")
	}
	if f.HasLimit && f.Limit < 0 {
		report(base+"/limit", "limit must be non-negative")
	}
	if f.HasWrap {
		for k, p := range f.Wrap {
			validatePipeline(p, base+"/wrap/"+k, reg, report)
		}
	}
	for _, k := range f.UnknownKeys {
		report(base+"/"+k, "unknown finalize key %q", k)
	}
}

func validatePipeline(p pipe.Pipeline, path string, reg *pipe.Registry, report reporter) {
	if r, ok := p.Start.(pipe.Ref); ok {
		if _, err := ref.Parse(ref.NormalizeSource(r.Path)); err != nil {
			report(path+"/start", "invalid reference %q: %v", r.Path, err)
		}
	}
	for i, st := range p.Steps {
		stepPath := fmt.Sprintf("%s/%d", path, i)
		switch s := st.(type) {
		case pipe.OpStep:
			if !reg.IsKnownOp(s.Name) {
				report(stepPath, "unknown op %q", s.Name)
			}
			for j, a := range s.Args {
				validatePipeline(a, fmt.Sprintf("%s/args/%d", stepPath, j), reg, report)
			}
		case pipe.LetStep:
			for _, b := range s.Bindings {
				validatePipeline(b.Expr, stepPath+"/let/"+b.Name, reg, report)
			}
		case pipe.IfStep:
			validateCondition(s.Cond, stepPath+"/cond", reg, report)
			validatePipeline(s.Then, stepPath+"/then", reg, report)
			if s.Else != nil {
				validatePipeline(*s.Else, stepPath+"/else", reg, report)
			}
		case pipe.MapStep:
			validatePipeline(s.Body, stepPath+"/map", reg, report)
		}
	}
}

func validateCondition(c pipe.Condition, path string, reg *pipe.Registry, report reporter) {
	switch cc := c.(type) {
	case pipe.All:
		for i, child := range cc.Children {
			validateCondition(child, fmt.Sprintf("%s/all/%d", path, i), reg, report)
		}
	case pipe.Any:
		for i, child := range cc.Children {
			validateCondition(child, fmt.Sprintf("%s/any/%d", path, i), reg, report)
		}
	case pipe.Compare:
		validatePipeline(cc.Lhs, path+"/lhs", reg, report)
		validatePipeline(cc.Rhs, path+"/rhs", reg, report)
	}
}
