package record

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rulemorph/rulemorph/internal/cond"
	"github.com/rulemorph/rulemorph/internal/pipe"
	"github.com/rulemorph/rulemorph/internal/ref"
	"github.com/rulemorph/rulemorph/internal/rmerr"
	"github.com/rulemorph/rulemorph/internal/rule"
	"github.com/rulemorph/rulemorph/internal/trace"
	"github.com/rulemorph/rulemorph/internal/value"
)

// runMappings implements the five-step mapping algorithm from spec
// §4.6, shared by both the mappings path and each steps-path mappings
// entry. out is the current @out object, mutated in place: because
// value.Object is a pointer type and env.Out aliases the same pointer,
// a write here is immediately visible to any later reference against
// @out in this same evaluation, without rebuilding env.
func (e *Engine) runMappings(mappings []rule.Mapping, out *value.Object, env ref.Env) (*rmerr.RuleError, []Warning) {
	var warnings []Warning

	for _, m := range mappings {
		start := e.Trace.Now()

		if m.HasWhen {
			ok, err := cond.Eval(m.When, env, e.Reg)
			if err != nil {
				e.logger().Warn("mapping when demoted to skip", "path", m.Pos.Path+"/when", "error", err)
				warnings = append(warnings, Warning{Path: m.Pos.Path + "/when", Message: err.Error()})
				continue
			}
			if !ok {
				continue
			}
		}

		var events []pipe.OpEvent
		v, err := resolveMappingValue(m, env, e.Reg, func(ev pipe.OpEvent) { events = append(events, ev) })
		if err != nil {
			rerr := rmerr.Wrap(classifyPipeErr(err), m.Pos.Path, err.Error(), err)
			e.traceMapping(m, start, nil, events, rerr)
			return rerr, warnings
		}

		if value.IsMissing(v) {
			switch {
			case m.HasDefault:
				v = m.Default
			case m.Required:
				rerr := rmerr.New(rmerr.CodeReferenceMissing, m.Pos.Path, fmt.Sprintf("required target %q resolved to missing", m.Target))
				e.traceMapping(m, start, nil, events, rerr)
				return rerr, warnings
			default:
				e.traceMapping(m, start, value.MissingValue, events, nil)
				continue // suppress the target: no write
			}
		}

		if m.Type != "" {
			casted, cerr := castValue(m.Type, v)
			if cerr != nil {
				rerr := rmerr.Wrap(rmerr.CodeTypeMismatch, m.Pos.Path+"/type", cerr.Error(), cerr)
				e.traceMapping(m, start, v, events, rerr)
				return rerr, warnings
			}
			v = casted
		}

		if werr := writeTarget(out, m.Target, v); werr != nil {
			rerr := rmerr.Wrap(rmerr.CodeTypeMismatch, m.Pos.Path+"/target", werr.Error(), werr)
			e.traceMapping(m, start, v, events, rerr)
			return rerr, warnings
		}
		e.logger().Debug("mapping resolved", "path", m.Pos.Path, "target", m.Target)
		e.traceMapping(m, start, v, events, nil)
	}
	return nil, warnings
}

func resolveMappingValue(m rule.Mapping, env ref.Env, reg *pipe.Registry, onOp func(pipe.OpEvent)) (value.Value, error) {
	switch {
	case m.HasSource:
		return ref.ResolveString(m.Source, env), nil
	case m.HasValue:
		return m.Value, nil
	case m.HasExpr:
		return pipe.EvalTraced(m.Expr, env, reg, onOp)
	default:
		return value.MissingValue, nil
	}
}

// traceMapping appends one Step per mapping target, matching the
// per-node granularity spec §4.9 describes ("one node per mapping...a
// record's evaluation touches"). events, when non-empty, becomes the
// Step's Op child: the pipeline's overall input/output plus a
// PipeStep per op applied along the way, so a multi-op expr chain
// (e.g. `["@input.foo", uppercase, trim]`) is inspectable step by step.
func (e *Engine) traceMapping(m rule.Mapping, start time.Time, out value.Value, events []pipe.OpEvent, rerr *rmerr.RuleError) {
	if e.Trace == nil {
		return
	}
	step := trace.Step{
		Kind:       "mapping",
		Label:      m.Pos.Path,
		DurationUS: e.Trace.Elapsed(start),
		Status:     "ok",
		Output:     trace.ValJSON(out),
	}
	if rerr != nil {
		step.Status = "error"
		step.Error = rerr.Message
	}
	if op := buildOpTrace(events); op != nil {
		step.Op = op
	}
	e.Trace.AddStep(step)
}

// buildOpTrace turns the op events fired while evaluating one mapping's
// expr pipeline into an OpTrace: the first event's pipe value is the
// chain's input, the last event's output is the chain's output, and
// every event becomes a PipeStep recording that op's own input/output
// (spec §4.9's "pipe_steps[] for intra-op transitions").
func buildOpTrace(events []pipe.OpEvent) *trace.OpTrace {
	if len(events) == 0 {
		return nil
	}
	op := &trace.OpTrace{
		Input:  trace.ValJSON(events[0].PipeValue),
		Output: trace.ValJSON(events[len(events)-1].Output),
	}
	last := events[len(events)-1]
	if last.Error != "" {
		op.Error = last.Error
	}
	if len(last.Args) > 0 {
		args := make([]interface{}, len(last.Args))
		for i, a := range last.Args {
			args[i] = trace.ValJSON(a)
		}
		op.Args = args
	}
	if len(events) > 1 {
		op.PipeValue = trace.ValJSON(last.PipeValue)
	}
	for _, ev := range events {
		op.PipeSteps = append(op.PipeSteps, trace.PipeStep{
			Op:     ev.Op,
			Input:  trace.ValJSON(ev.PipeValue),
			Output: trace.ValJSON(ev.Output),
		})
	}
	return op
}

func castValue(t string, v value.Value) (value.Value, error) {
	switch t {
	case "string":
		return value.ToString(v)
	case "int":
		return value.ToInt(v)
	case "float":
		return value.ToFloat(v)
	case "bool":
		return value.ToBool(v)
	default:
		return v, nil
	}
}

// classifyPipeErr picks the taxonomy code for a pipe/ref evaluation
// failure: division-by-zero and similar arithmetic faults get their own
// code (spec §7's ArithmeticError), everything else collapses to
// TypeMismatch since the pipe interpreter's own errors are dominated by
// operand-shape mismatches.
func classifyPipeErr(err error) rmerr.Code {
	if errors.Is(err, pipe.ErrArithmetic) {
		return rmerr.CodeArithmeticError
	}
	return rmerr.CodeTypeMismatch
}

// writeTarget decomposes target (validated at load time to be a plain
// dotted path of object keys, see validate.go's validateMappings) and
// writes v at that location, creating missing intermediate objects and
// failing if an intermediate segment already holds a non-object value
// (spec §4.6, mappings step 5).
func writeTarget(out *value.Object, target string, v value.Value) error {
	parts := strings.Split(target, ".")
	cur := out
	for i, p := range parts[:len(parts)-1] {
		existing, ok := cur.Get(p)
		if !ok || value.IsMissing(existing) {
			child := value.NewObject()
			cur.Set(p, child)
			cur = child
			continue
		}
		child, ok := existing.(*value.Object)
		if !ok {
			return fmt.Errorf("target segment %q addresses a non-object value", strings.Join(parts[:i+1], "."))
		}
		cur = child
	}
	cur.Set(parts[len(parts)-1], v)
	return nil
}
