package record

import (
	"time"

	"github.com/rulemorph/rulemorph/internal/rmerr"
	"github.com/rulemorph/rulemorph/internal/trace"
)

// traceCond appends a Step for a boolean condition check (record_when).
// An evaluation error is traced as a warning, matching spec §4.4's "the
// error is demoted to a warning and recorded in the trace" for `when`
// contexts generally.
func (e *Engine) traceCond(kind, label string, start time.Time, ok bool, err error) {
	if e.Trace == nil {
		return
	}
	step := trace.Step{
		Kind:       kind,
		Label:      label,
		DurationUS: e.Trace.Elapsed(start),
		Meta:       &trace.Meta{RecordWhen: trace.BoolPtr(ok)},
	}
	if err != nil {
		step.Status = "warning"
		step.Error = err.Error()
	} else {
		step.Status = "ok"
	}
	e.Trace.AddStep(step)
}

// traceBranch appends a Step describing a branch dispatch's outcome
// (spec §4.9's branch_taken/rule_ref meta). child, when non-nil, is the
// callee's own record trace, nested under child_trace (spec §4.9:
// "child invocations are nested under child_trace").
func (e *Engine) traceBranch(label string, start time.Time, taken, target string, rerr *rmerr.RuleError, child *trace.Record) {
	if e.Trace == nil {
		return
	}
	step := trace.Step{
		Kind:       "branch",
		Label:      label + "/branch",
		DurationUS: e.Trace.Elapsed(start),
		Status:     "ok",
		Meta:       &trace.Meta{BranchTaken: taken, RuleRef: target},
		ChildTrace: child,
	}
	if rerr != nil {
		step.Status = "error"
		step.Error = rerr.Message
	}
	e.Trace.AddStep(step)
}

func assertStatus(err *rmerr.RuleError) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func ruleErrString(err *rmerr.RuleError) string {
	if err == nil {
		return ""
	}
	return err.Message
}
