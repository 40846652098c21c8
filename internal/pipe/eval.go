package pipe

import (
	"fmt"

	"github.com/rulemorph/rulemorph/internal/ref"
	"github.com/rulemorph/rulemorph/internal/value"
)

// OpEvent captures one op application in a pipeline's top-level step
// chain, for populating a trace Step's Op field (spec §4.9's "op
// children" with input/pipe_value/args/output). Only direct steps of
// the pipeline being traced fire an event; ops nested inside an op's
// own pipeline-valued arguments or a map/if body are not separately
// reported, since spec §4.9's pipe_steps[] describes intra-op
// transitions within one chain, not the whole expression tree.
type OpEvent struct {
	Op        string
	PipeValue value.Value
	Args      []value.Value
	Output    value.Value
	Error     string
}

// Eval evaluates a full pipeline against env using reg as the op
// registry (spec §4.5).
func Eval(p Pipeline, env ref.Env, reg *Registry) (value.Value, error) {
	return evalPipeline(p, env, reg, nil)
}

// EvalTraced behaves like Eval but invokes onOp once per op step
// evaluated directly in p's chain, for the record engine to build a
// trace Step's Op field (spec §4.9).
func EvalTraced(p Pipeline, env ref.Env, reg *Registry, onOp func(OpEvent)) (value.Value, error) {
	return evalPipeline(p, env, reg, onOp)
}

func evalPipeline(p Pipeline, env ref.Env, reg *Registry, onOp func(OpEvent)) (value.Value, error) {
	cur, err := evalStart(p.Start, env)
	if err != nil {
		return nil, err
	}
	for _, step := range p.Steps {
		cur, env, err = evalStep(step, cur, env, reg, onOp)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

func evalStart(e Expr, env ref.Env) (value.Value, error) {
	switch t := e.(type) {
	case Ref:
		return ref.ResolveString(t.Path, env), nil
	case Literal:
		return t.Value, nil
	case Current:
		// `$` at pipeline start has no prior pipe value. Inside a
		// nested pipeline (map/if body, let binding) EvalNested seeds
		// it with the current value; the loader does not reject a
		// bare top-level `$`, which resolves to missing here.
		return value.MissingValue, nil
	default:
		return nil, fmt.Errorf("pipe: unknown start expression %T", e)
	}
}

// EvalNested evaluates a nested pipeline (an If branch or Map body)
// seeded with an explicit current value for `$`, per spec §4.5's "If
// step" and "Map step".
func EvalNested(p Pipeline, seed value.Value, env ref.Env, reg *Registry) (value.Value, error) {
	cur, err := evalNestedStart(p.Start, seed, env)
	if err != nil {
		return nil, err
	}
	for _, step := range p.Steps {
		cur, env, err = evalStep(step, cur, env, reg, nil)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

func evalNestedStart(e Expr, seed value.Value, env ref.Env) (value.Value, error) {
	if _, ok := e.(Current); ok {
		return seed, nil
	}
	return evalStart(e, env)
}

func evalStep(step Step, cur value.Value, env ref.Env, reg *Registry, onOp func(OpEvent)) (value.Value, ref.Env, error) {
	switch s := step.(type) {
	case OpStep:
		out, err := evalOpStep(s, cur, env, reg, onOp)
		return out, env, err
	case LetStep:
		newEnv := env
		for _, b := range s.Bindings {
			v, err := EvalNested(b.Expr, cur, newEnv, reg)
			if err != nil {
				return nil, env, fmt.Errorf("pipe: let binding %q: %w", b.Name, err)
			}
			newEnv = newEnv.WithLet(b.Name, v)
		}
		return cur, newEnv, nil
	case IfStep:
		ok, err := EvalCondition(s.Cond, env, reg)
		if err != nil {
			return nil, env, fmt.Errorf("pipe: if condition: %w", err)
		}
		if ok {
			out, err := EvalNested(s.Then, cur, env, reg)
			return out, env, err
		}
		if s.Else != nil {
			out, err := EvalNested(*s.Else, cur, env, reg)
			return out, env, err
		}
		return cur, env, nil
	case MapStep:
		out, err := evalMapStep(s, cur, env, reg)
		return out, env, err
	default:
		return nil, env, fmt.Errorf("pipe: unknown step %T", step)
	}
}

func evalOpStep(s OpStep, cur value.Value, env ref.Env, reg *Registry, onOp func(OpEvent)) (value.Value, error) {
	if fn, ok := pipelineArgOps[s.Name]; ok {
		out, err := fn(cur, s.Args, env, reg)
		if err != nil {
			fireOpEvent(onOp, s.Name, cur, nil, nil, err)
			return nil, fmt.Errorf("pipe: op %q: %w", s.Name, err)
		}
		fireOpEvent(onOp, s.Name, cur, nil, out, nil)
		return out, nil
	}

	op, ok := reg.Lookup(s.Name)
	if !ok {
		return nil, fmt.Errorf("pipe: unknown op %q", s.Name)
	}
	if len(s.Args) < op.MinArgs || (op.MaxArgs >= 0 && len(s.Args) > op.MaxArgs) {
		return nil, fmt.Errorf("pipe: op %q takes %d..%d args, got %d", s.Name, op.MinArgs, op.MaxArgs, len(s.Args))
	}
	if op.Accepts != nil && !op.Accepts(cur) {
		return nil, fmt.Errorf("pipe: op %q: %w (got %s)", s.Name, value.ErrTypeMismatch, cur.Kind())
	}

	args := make([]value.Value, len(s.Args))
	for i, a := range s.Args {
		v, err := Eval(a, env, reg)
		if err != nil {
			return nil, fmt.Errorf("pipe: op %q arg %d: %w", s.Name, i, err)
		}
		args[i] = v
	}

	out, err := op.Fn(cur, args)
	if err != nil {
		fireOpEvent(onOp, s.Name, cur, args, nil, err)
		return nil, fmt.Errorf("pipe: op %q: %w", s.Name, err)
	}
	fireOpEvent(onOp, s.Name, cur, args, out, nil)
	return out, nil
}

func fireOpEvent(onOp func(OpEvent), name string, pipeValue value.Value, args []value.Value, output value.Value, err error) {
	if onOp == nil {
		return
	}
	ev := OpEvent{Op: name, PipeValue: pipeValue, Args: args, Output: output}
	if err != nil {
		ev.Error = err.Error()
	}
	onOp(ev)
}

func evalMapStep(s MapStep, cur value.Value, env ref.Env, reg *Registry) (value.Value, error) {
	if value.IsMissing(cur) {
		return value.MissingValue, nil
	}
	arr, ok := cur.(value.Array)
	if !ok {
		return nil, fmt.Errorf("pipe: map: %w (got %s)", value.ErrTypeMismatch, cur.Kind())
	}
	out := make(value.Array, 0, len(arr))
	for i, elem := range arr {
		itemEnv := env.WithItem(elem, i)
		result, err := EvalNested(s.Body, elem, itemEnv, reg)
		if err != nil {
			return nil, fmt.Errorf("pipe: map element %d: %w", i, err)
		}
		if value.IsMissing(result) {
			continue
		}
		out = append(out, result)
	}
	return out, nil
}

// EvalCondition evaluates a Condition against env (spec §4.4). This is
// the implementation behind internal/cond's public Eval.
func EvalCondition(c Condition, env ref.Env, reg *Registry) (bool, error) {
	switch n := c.(type) {
	case All:
		for _, child := range n.Children {
			ok, err := EvalCondition(child, env, reg)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case Any:
		for _, child := range n.Children {
			ok, err := EvalCondition(child, env, reg)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case Compare:
		return evalCompare(n, env, reg)
	default:
		return false, fmt.Errorf("pipe: unknown condition node %T", c)
	}
}

func evalCompare(c Compare, env ref.Env, reg *Registry) (bool, error) {
	lhs, err := Eval(c.Lhs, env, reg)
	if err != nil {
		return false, fmt.Errorf("pipe: comparing %s: evaluating lhs: %w", c.Op, err)
	}
	rhs, err := Eval(c.Rhs, env, reg)
	if err != nil {
		return false, fmt.Errorf("pipe: comparing %s: evaluating rhs: %w", c.Op, err)
	}

	switch c.Op {
	case OpEq:
		return value.Equal(lhs, rhs), nil
	case OpNe:
		return !value.Equal(lhs, rhs), nil
	case OpGt, OpGte, OpLt, OpLte:
		ord, err := value.Compare(lhs, rhs)
		if err != nil {
			return false, fmt.Errorf("pipe: comparing %s: %w", c.Op, err)
		}
		switch c.Op {
		case OpGt:
			return ord == value.Greater, nil
		case OpGte:
			return ord == value.Greater || ord == value.Same, nil
		case OpLt:
			return ord == value.Less, nil
		default:
			return ord == value.Less || ord == value.Same, nil
		}
	case OpMatch:
		return evalMatch(lhs, rhs)
	default:
		return false, fmt.Errorf("pipe: unknown comparison op %q", c.Op)
	}
}
