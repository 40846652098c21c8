// Package record drives a single input record through a rule's
// `mappings` or `steps` program (spec §4.6), producing an output object
// or a taxonomy error. A small stateless Engine holds shared
// dependencies (op registry, base directory) and an Evaluate method
// walks one document per call.
//
// A steps program's `branch` entry must dispatch to another rule and
// re-enter this engine to run it, while the caller that performs that
// dispatch (internal/caller) needs to run this engine to answer the
// call — a mutual dependency. Unlike internal/pipe and internal/cond,
// which share actual AST types and so had to merge into one package,
// record and caller only share a behavior, so the cycle is broken with
// a single injected function value (CallFunc) instead: the same seam
// spec §9 describes for HTTP ("isolating transport behind a single
// function value preserves the engine's purity for tests"), applied
// here to inter-rule dispatch.
package record

import (
	"fmt"
	"log/slog"

	"github.com/rulemorph/rulemorph/internal/cond"
	"github.com/rulemorph/rulemorph/internal/pipe"
	"github.com/rulemorph/rulemorph/internal/ref"
	"github.com/rulemorph/rulemorph/internal/rmerr"
	"github.com/rulemorph/rulemorph/internal/rule"
	"github.com/rulemorph/rulemorph/internal/trace"
	"github.com/rulemorph/rulemorph/internal/value"
)

// Warning is a non-fatal condition surfaced during evaluation (a failed
// `when`, a suppressed target) that the trace recorder attaches to a
// record's trace entry without failing it.
type Warning struct {
	Path    string
	Message string
}

// CallFunc dispatches a rule reference to another rule's evaluation and
// returns its single-record output, plus that call's own record trace
// when the caller's Engine is tracing (nil otherwise, at no extra cost
// when tracing is off). dir is the calling rule's directory, used to
// resolve ruleRef relatively (spec §4.7). Supplied by internal/caller; a
// nil CallFunc makes any `branch` step fail with a validation error
// rather than panicking.
type CallFunc func(ruleRef, dir string, input, context value.Value) (value.Value, *trace.Record, *rmerr.RuleError)

// Outcome is the result of evaluating one input record.
type Outcome struct {
	// Output is the produced record. Nil (untyped) when Skipped or Err
	// is set.
	Output value.Value
	// Skipped is true when record_when dropped the record without
	// error.
	Skipped bool
	// Err is set when the record failed outright.
	Err *rmerr.RuleError
	// Warnings accumulates non-fatal problems encountered along the way.
	Warnings []Warning
}

// Engine evaluates records against a single rule document.
type Engine struct {
	Reg  *pipe.Registry
	Dir  string // the rule's own directory, for resolving relative branch targets
	Call CallFunc

	// Trace, when set, receives one Step node per mapping/record_when/
	// asserts/branch this Engine evaluates (spec §4.9). Nil by default,
	// so tracing costs one nil check per step rather than an allocation
	// (spec §9's "null sink at zero cost" requirement).
	Trace *trace.RecordBuilder

	// Log receives per-mapping Debug detail, per-when-demotion Warn
	// entries, and a per-record Error on failure (SPEC_FULL.md §A.1).
	// Nil falls back to slog.Default() so callers that never configure
	// logging still get output on the default handler rather than a
	// panic.
	Log *slog.Logger
}

// NewEngine builds an Engine bound to reg and dir.
func NewEngine(reg *pipe.Registry, dir string, call CallFunc) *Engine {
	return &Engine{Reg: reg, Dir: dir, Call: call}
}

func (e *Engine) logger() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.Default()
}

// Evaluate runs r's mappings-or-steps program against a single input
// record with the given caller-supplied context (spec §4.6).
func (e *Engine) Evaluate(r *rule.Rule, input, context value.Value) Outcome {
	env := ref.NewEnv(input, context, value.NewObject())

	var out Outcome
	if r.HasSteps {
		out = e.evaluateSteps(r, env)
	} else {
		out = e.evaluateMappings(r, env)
	}
	if out.Err != nil {
		e.logger().Error("record evaluation failed", "rule", r.Path, "code", out.Err.Code, "path", out.Err.Path, "message", out.Err.Message)
	}
	return out
}

// evaluateMappings implements spec §4.6's "Mappings path": a top-level
// record_when gates the whole record (error demotes to skip, matching
// the literal wording "false/error skips the record" — distinct from
// the steps path's record_when, see evaluateSteps), then mappings run
// once against a single growing @out.
func (e *Engine) evaluateMappings(r *rule.Rule, env ref.Env) Outcome {
	var warnings []Warning

	if r.HasRecordWhen {
		start := e.Trace.Now()
		ok, err := cond.Eval(r.RecordWhen, env, e.Reg)
		e.traceCond("record_when", "/record_when", start, ok, err)
		if err != nil {
			e.logger().Warn("record_when demoted to skip", "path", "/record_when", "error", err)
		}
		if err != nil || !ok {
			return Outcome{Skipped: true, Warnings: warnings}
		}
	}

	out := env.Out.(*value.Object)
	rerr, w := e.runMappings(r.Mappings, out, env)
	warnings = append(warnings, w...)
	if rerr != nil {
		return Outcome{Err: rerr, Warnings: warnings}
	}
	return Outcome{Output: out, Warnings: warnings}
}

// evaluateSteps implements spec §4.6's "Steps path": each step runs in
// order against a single @out that grows across steps (mappings write
// into it in place; a returning branch replaces it outright).
func (e *Engine) evaluateSteps(r *rule.Rule, env ref.Env) Outcome {
	var warnings []Warning
	out := env.Out.(*value.Object)

	for i, st := range r.Steps {
		path := fmt.Sprintf("/steps/%d", i)
		env = env.WithOut(out)

		switch {
		case st.HasMappings:
			rerr, w := e.runMappings(st.Mappings, out, env)
			warnings = append(warnings, w...)
			if rerr != nil {
				return Outcome{Err: rerr, Warnings: warnings}
			}

		case st.HasRecordWhen:
			// Steps-path record_when fails the record on error, unlike
			// the mappings-path top-level record_when, which skips it
			// (spec §4.6). Implemented literally as the two paths
			// state it, not unified; see DESIGN.md.
			start := e.Trace.Now()
			ok, err := cond.Eval(st.RecordWhen, env, e.Reg)
			e.traceCond("record_when", path+"/record_when", start, ok, err)
			if err != nil {
				return Outcome{Err: rmerr.Wrap(rmerr.CodeReferenceMissing, path+"/record_when", err.Error(), err), Warnings: warnings}
			}
			if !ok {
				return Outcome{Skipped: true, Warnings: warnings}
			}

		case st.HasAsserts:
			start := e.Trace.Now()
			rerr := e.runAsserts(st.Asserts, path, env)
			e.Trace.AddStep(trace.Step{
				Kind: "asserts", Label: path + "/asserts",
				Status:     assertStatus(rerr),
				DurationUS: e.Trace.Elapsed(start),
				Meta:       &trace.Meta{AssertsOK: trace.BoolPtr(rerr == nil)},
				Error:      ruleErrString(rerr),
			})
			if rerr != nil {
				return Outcome{Err: rerr, Warnings: warnings}
			}

		case st.HasBranch:
			outcome, done := e.runBranch(st.Branch, path, out, env, warnings)
			if done {
				return outcome
			}
			warnings = outcome.Warnings
			if outcome.Output != nil {
				if newOut, ok := outcome.Output.(*value.Object); ok {
					out = newOut
				}
			}
		}
	}
	return Outcome{Output: out, Warnings: warnings}
}

// runAsserts checks each assert's `when` in order; the first true
// condition fails the record and subsequent asserts are not consulted
// (spec §4.6: "first true when fails the record... subsequent asserts
// short-circuit").
func (e *Engine) runAsserts(asserts []rule.Assert, base string, env ref.Env) *rmerr.RuleError {
	for i, a := range asserts {
		path := fmt.Sprintf("%s/asserts/%d", base, i)
		ok, err := cond.Eval(a.When, env, e.Reg)
		if err != nil {
			return rmerr.Wrap(rmerr.CodeReferenceMissing, path+"/when", err.Error(), err)
		}
		if ok {
			return &rmerr.RuleError{
				Code:     rmerr.CodeUserAssert,
				Path:     path,
				Message:  a.Message,
				UserCode: a.Code,
			}
		}
	}
	return nil
}

// runBranch implements spec §4.6/§4.7's branch dispatch: call the
// chosen target with @input = @out, then either replace @out (return:
// true) or deep-merge the sub-rule's output into it and continue.
func (e *Engine) runBranch(b rule.Branch, path string, out *value.Object, env ref.Env, warnings []Warning) (Outcome, bool) {
	start := e.Trace.Now()
	ok, err := cond.Eval(b.When, env, e.Reg)
	if err != nil {
		e.logger().Warn("branch when demoted to skip", "path", path+"/branch/when", "error", err)
		warnings = append(warnings, Warning{Path: path + "/branch/when", Message: err.Error()})
		e.traceBranch(path, start, "none", "", nil, nil)
		return Outcome{Warnings: warnings}, false
	}

	target, hasTarget := "", false
	if ok {
		target, hasTarget = b.Then, true
	} else if b.HasElse {
		target, hasTarget = b.Else, true
	}
	branchTaken := "none"
	switch {
	case hasTarget && ok:
		branchTaken = "then"
	case hasTarget:
		branchTaken = "else"
	}
	if !hasTarget {
		e.traceBranch(path, start, branchTaken, "", nil, nil)
		return Outcome{Warnings: warnings}, false
	}
	if e.Call == nil {
		rerr := rmerr.New(rmerr.CodeValidationError, path+"/branch", "branch dispatch requested but no caller is configured")
		e.traceBranch(path, start, branchTaken, target, rerr, nil)
		return Outcome{Err: rerr, Warnings: warnings}, true
	}

	subOut, child, cerr := e.Call(target, e.Dir, out, env.Context)
	if cerr != nil {
		if b.HasCatch {
			if catchTarget, found := b.Catch.Resolve(string(cerr.Code), "", false); found {
				catchInput := buildCatchInput(cerr, out)
				subOut, child, cerr = e.Call(catchTarget, e.Dir, catchInput, env.Context)
			}
		}
	}
	if cerr != nil {
		e.traceBranch(path, start, branchTaken, target, cerr, child)
		return Outcome{Err: cerr, Warnings: warnings}, true
	}

	if b.Return {
		e.traceBranch(path, start, branchTaken, target, nil, child)
		return Outcome{Output: subOut, Warnings: warnings}, true
	}

	subObj, ok := subOut.(*value.Object)
	if !ok {
		rerr := rmerr.New(rmerr.CodeTypeMismatch, path+"/branch", "called rule's output must be an object to merge into @out")
		e.traceBranch(path, start, branchTaken, target, rerr, child)
		return Outcome{Err: rerr, Warnings: warnings}, true
	}
	merged := pipe.DeepMerge(out, subObj)
	e.traceBranch(path, start, branchTaken, target, nil, child)
	return Outcome{Output: merged, Warnings: warnings}, false
}

// buildCatchInput assembles the @input object handed to a catch
// target: the failing call's error (code, message) plus the fields of
// the accumulated @out at the point of failure, so a catch rule can
// both report the error and see what the calling rule had produced so
// far.
func buildCatchInput(cerr *rmerr.RuleError, original *value.Object) value.Value {
	errObj := value.NewObject()
	errObj.Set("code", value.String(cerr.Code))
	errObj.Set("message", value.String(cerr.Message))

	obj := value.NewObject()
	obj.Set("error", errObj)
	original.ForEach(func(k string, v value.Value) bool {
		if k != "error" {
			obj.Set(k, v)
		}
		return true
	})
	return obj
}
