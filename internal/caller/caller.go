// Package caller resolves `rule` references relative to the calling
// rule's directory and re-enters the record engine, implementing spec
// §4.7's Inter-rule caller: `branch` and `network.body_rule` dispatch,
// `catch` precedence, and (for `network` rules) delegation to a
// pluggable transport.
//
// A stateless dispatcher holding shared dependencies (the loaded
// document set, the op registry, the transport) with one entry point
// per call. It closes the record/caller mutual dependency described in
// internal/record/engine.go's package doc by implementing
// record.CallFunc.
package caller

import (
	"fmt"
	"path/filepath"

	"github.com/rulemorph/rulemorph/internal/pipe"
	"github.com/rulemorph/rulemorph/internal/record"
	"github.com/rulemorph/rulemorph/internal/rmerr"
	"github.com/rulemorph/rulemorph/internal/rule"
	"github.com/rulemorph/rulemorph/internal/trace"
	"github.com/rulemorph/rulemorph/internal/transport"
	"github.com/rulemorph/rulemorph/internal/value"
)

// DefaultMaxDepth bounds branch/body_rule recursion depth for a single
// input record. Load-time cycle rejection (internal/rule/load.go)
// already makes unbounded recursion through the static call graph
// impossible, but a long acyclic chain of branches is still legal, so
// this is a defensive ceiling rather than a substitute for cycle
// detection (spec §9's `WithMaxDepth` option surfaces it).
const DefaultMaxDepth = 64

// Caller dispatches rule references for a single loaded document set.
type Caller struct {
	Docs      map[string]*rule.Rule
	Reg       *pipe.Registry
	Transport transport.Transport
	MaxDepth  int

	// Clock and IDs back a per-dispatch trace.Recorder used to populate
	// a branch step's child_trace (spec §4.9). A nil Clock disables
	// child tracing, so an untraced run never builds one.
	Clock trace.Clock
	IDs   trace.IDGenerator
}

// New builds a Caller over an already-loaded document set (the return
// value of rule.Loader.Load), keyed by normalized absolute path exactly
// as the loader produces it.
func New(docs map[string]*rule.Rule, reg *pipe.Registry, tr transport.Transport) *Caller {
	return &Caller{Docs: docs, Reg: reg, Transport: tr, MaxDepth: DefaultMaxDepth}
}

// Bound returns a record.CallFunc closed over a fresh recursion-depth
// counter, for evaluating exactly one input record. Binding a new
// closure per record (rather than sharing one mutable counter on
// Caller) keeps concurrent record evaluations independent without
// locking.
func (c *Caller) Bound() record.CallFunc {
	depth := 0
	var call record.CallFunc
	call = func(ruleRef, dir string, input, context value.Value) (value.Value, *trace.Record, *rmerr.RuleError) {
		depth++
		defer func() { depth-- }()
		if depth > c.MaxDepth {
			return nil, nil, rmerr.New(rmerr.CodeValidationError, "", "maximum call depth exceeded")
		}
		return c.dispatch(ruleRef, dir, input, context, call)
	}
	return call
}

func (c *Caller) dispatch(ruleRef, dir string, input, context value.Value, call record.CallFunc) (value.Value, *trace.Record, *rmerr.RuleError) {
	path := resolveRef(dir, ruleRef)
	r, ok := c.Docs[path]
	if !ok {
		return nil, nil, rmerr.New(rmerr.CodeValidationError, "", fmt.Sprintf("called rule %q resolved to %s, which was not loaded", ruleRef, path))
	}

	builder := c.childTraceBuilder(r, path, input)

	switch r.Type {
	case rule.KindNormal:
		eng := record.NewEngine(c.Reg, filepath.Dir(path), call)
		eng.Trace = builder
		return c.finishEvaluate(eng.Evaluate(r, input, context), builder)

	case rule.KindEndpoint:
		eng := record.NewEngine(c.Reg, filepath.Dir(path), call)
		eng.Trace = builder
		return c.finishEvaluate(eng.Evaluate(syntheticFromEndpoint(r.Endpoint), input, context), builder)

	case rule.KindNetwork:
		out, cerr := c.callNetwork(r, path, input, context, call)
		return out, nil, cerr

	default:
		return nil, nil, rmerr.New(rmerr.CodeValidationError, "", fmt.Sprintf("rule %s has unknown type %q", path, r.Type))
	}
}

// childTraceBuilder starts a one-record trace for a branch/body_rule
// dispatch, so its Finish result can be attached as the caller's
// child_trace (spec §4.9). Returns nil when the Caller has no Clock
// configured, i.e. the top-level run isn't tracing.
func (c *Caller) childTraceBuilder(r *rule.Rule, path string, input value.Value) *trace.RecordBuilder {
	if c.Clock == nil {
		return nil
	}
	rec := trace.New(c.Clock, c.IDs, filepath.Base(path), path, string(r.Type), r.Version)
	return rec.BeginRecord(0, input)
}

func (c *Caller) finishEvaluate(outcome record.Outcome, builder *trace.RecordBuilder) (value.Value, *trace.Record, *rmerr.RuleError) {
	switch {
	case outcome.Err != nil:
		return nil, builder.Finish("error", nil), outcome.Err
	case outcome.Skipped:
		return value.NullValue, builder.Finish("skipped", nil), nil
	default:
		return outcome.Output, builder.Finish("ok", outcome.Output), nil
	}
}

// syntheticFromEndpoint adapts an endpoint rule's steps+reply into a
// plain steps program the record engine already knows how to run: the
// reply mapping list becomes one trailing mappings step, run after
// steps complete, shaping the endpoint's response distinct from @out
// (spec §C's supplemented `endpoint.reply`).
func syntheticFromEndpoint(ep *rule.Endpoint) *rule.Rule {
	steps := append([]rule.Step{}, ep.Steps...)
	if len(ep.Reply) > 0 {
		steps = append(steps, rule.Step{HasMappings: true, Mappings: ep.Reply})
	}
	return &rule.Rule{Type: rule.KindNormal, HasSteps: true, Steps: steps}
}

// resolveRef resolves a rule reference relative to dir, mirroring
// rule.Loader's own path normalization so a caller's dispatch keys land
// on exactly the paths the loader used.
func resolveRef(dir, ref string) string {
	if filepath.IsAbs(ref) {
		return filepath.Clean(ref)
	}
	return filepath.Clean(filepath.Join(dir, ref))
}

// buildCatchInput assembles the @input object handed to a catch target:
// the failing call's error (code, message) plus the original input's
// own fields, so a catch rule can both report the error and see what
// was being processed when it happened.
func buildCatchInput(cerr *rmerr.RuleError, original value.Value) value.Value {
	errObj := value.NewObject()
	errObj.Set("code", value.String(cerr.Code))
	errObj.Set("message", value.String(cerr.Message))

	obj := value.NewObject()
	obj.Set("error", errObj)
	if orig, ok := original.(*value.Object); ok {
		orig.ForEach(func(k string, v value.Value) bool {
			if k != "error" {
				obj.Set(k, v)
			}
			return true
		})
	}
	return obj
}
