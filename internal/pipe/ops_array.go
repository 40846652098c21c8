package pipe

import (
	"fmt"
	"sort"

	"github.com/rulemorph/rulemorph/internal/ref"
	"github.com/rulemorph/rulemorph/internal/value"
)

// PipelineArgFunc is the signature of array ops that evaluate a
// predicate or key pipeline (filter, sort_by, ...) per element. Registry
// ops receive pre-evaluated Values (see eval.go's evalOpStep), but
// predicate/key arguments are pipelines that must be evaluated
// per-element against @item, so these ops receive the unevaluated arg
// pipelines plus the calling environment and registry. They are kept in
// pipelineArgOps, which evalOpStep consults before the registry.
type PipelineArgFunc func(pipeValue value.Value, args []Pipeline, env ref.Env, reg *Registry) (value.Value, error)

// pipelineArgOps holds ops whose arguments are pipelines evaluated
// per-element (with @item bound) rather than once up front.
var pipelineArgOps = map[string]PipelineArgFunc{}

func registerPipelineArgOp(name string, fn PipelineArgFunc) {
	pipelineArgOps[name] = fn
}

func registerArrayOps(r *Registry) {
	registerPipelineArgOp("filter", func(p value.Value, args []Pipeline, env ref.Env, reg *Registry) (value.Value, error) {
		if value.IsMissing(p) {
			return value.MissingValue, nil
		}
		arr, ok := p.(value.Array)
		if !ok {
			return nil, fmt.Errorf("filter: %w", value.ErrTypeMismatch)
		}
		out := make(value.Array, 0, len(arr))
		for i, elem := range arr {
			ok, err := evalPredicate(args[0], elem, i, env, reg)
			if err != nil {
				return nil, fmt.Errorf("filter: element %d: %w", i, err)
			}
			if ok {
				out = append(out, elem)
			}
		}
		return out, nil
	})
	registerPipelineArgOp("map", func(p value.Value, args []Pipeline, env ref.Env, reg *Registry) (value.Value, error) {
		return evalMapStep(MapStep{Body: args[0]}, p, env, reg)
	})
	registerPipelineArgOp("flat_map", func(p value.Value, args []Pipeline, env ref.Env, reg *Registry) (value.Value, error) {
		mapped, err := evalMapStep(MapStep{Body: args[0]}, p, env, reg)
		if err != nil {
			return nil, err
		}
		return flattenArray(mapped.(value.Array), 1), nil
	})
	registerPipelineArgOp("sort_by", func(p value.Value, args []Pipeline, env ref.Env, reg *Registry) (value.Value, error) {
		arr, ok := p.(value.Array)
		if !ok {
			return nil, fmt.Errorf("sort_by: %w", value.ErrTypeMismatch)
		}
		keys := make([]value.Value, len(arr))
		for i, elem := range arr {
			k, err := EvalNested(args[0], elem, env.WithItem(elem, i), reg)
			if err != nil {
				return nil, fmt.Errorf("sort_by: key %d: %w", i, err)
			}
			keys[i] = k
		}
		idx := make([]int, len(arr))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool {
			ord, err := value.Compare(keys[idx[a]], keys[idx[b]])
			if err != nil {
				return false
			}
			return ord == value.Less
		})
		out := make(value.Array, len(arr))
		for i, j := range idx {
			out[i] = arr[j]
		}
		return out, nil
	})
	registerPipelineArgOp("group_by", groupByImpl(false))
	registerPipelineArgOp("key_by", groupByImpl(true))
	registerPipelineArgOp("distinct_by", func(p value.Value, args []Pipeline, env ref.Env, reg *Registry) (value.Value, error) {
		arr, ok := p.(value.Array)
		if !ok {
			return nil, fmt.Errorf("distinct_by: %w", value.ErrTypeMismatch)
		}
		var seen []value.Value
		out := make(value.Array, 0, len(arr))
		for i, elem := range arr {
			k, err := EvalNested(args[0], elem, env.WithItem(elem, i), reg)
			if err != nil {
				return nil, err
			}
			dup := false
			for _, s := range seen {
				if value.Equal(s, k) {
					dup = true
					break
				}
			}
			if !dup {
				seen = append(seen, k)
				out = append(out, elem)
			}
		}
		return out, nil
	})
	registerPipelineArgOp("find", func(p value.Value, args []Pipeline, env ref.Env, reg *Registry) (value.Value, error) {
		arr, ok := p.(value.Array)
		if !ok {
			return nil, fmt.Errorf("find: %w", value.ErrTypeMismatch)
		}
		for i, elem := range arr {
			ok, err := evalPredicate(args[0], elem, i, env, reg)
			if err != nil {
				return nil, err
			}
			if ok {
				return elem, nil
			}
		}
		return value.MissingValue, nil
	})
	registerPipelineArgOp("find_index", func(p value.Value, args []Pipeline, env ref.Env, reg *Registry) (value.Value, error) {
		arr, ok := p.(value.Array)
		if !ok {
			return nil, fmt.Errorf("find_index: %w", value.ErrTypeMismatch)
		}
		for i, elem := range arr {
			ok, err := evalPredicate(args[0], elem, i, env, reg)
			if err != nil {
				return nil, err
			}
			if ok {
				return value.Int(i), nil
			}
		}
		return value.MissingValue, nil
	})
	registerPipelineArgOp("partition", func(p value.Value, args []Pipeline, env ref.Env, reg *Registry) (value.Value, error) {
		arr, ok := p.(value.Array)
		if !ok {
			return nil, fmt.Errorf("partition: %w", value.ErrTypeMismatch)
		}
		var yes, no value.Array
		for i, elem := range arr {
			ok, err := evalPredicate(args[0], elem, i, env, reg)
			if err != nil {
				return nil, err
			}
			if ok {
				yes = append(yes, elem)
			} else {
				no = append(no, elem)
			}
		}
		if yes == nil {
			yes = value.Array{}
		}
		if no == nil {
			no = value.Array{}
		}
		return value.Array{yes, no}, nil
	})
	registerPipelineArgOp("reduce", func(p value.Value, args []Pipeline, env ref.Env, reg *Registry) (value.Value, error) {
		arr, ok := p.(value.Array)
		if !ok {
			return nil, fmt.Errorf("reduce: %w", value.ErrTypeMismatch)
		}
		if len(arr) == 0 {
			return value.MissingValue, nil
		}
		acc := arr[0]
		for i := 1; i < len(arr); i++ {
			elem := arr[i]
			itemEnv := env.WithItem(elem, i).WithAcc(acc)
			out, err := EvalNested(args[0], elem, itemEnv, reg)
			if err != nil {
				return nil, fmt.Errorf("reduce: element %d: %w", i, err)
			}
			acc = out
		}
		return acc, nil
	})
	registerPipelineArgOp("zip_with", func(p value.Value, args []Pipeline, env ref.Env, reg *Registry) (value.Value, error) {
		if len(args) < 2 {
			return nil, fmt.Errorf("zip_with: requires an array and a combine pipeline: %w", value.ErrTypeMismatch)
		}
		arr, ok := p.(value.Array)
		if !ok {
			return nil, fmt.Errorf("zip_with: %w", value.ErrTypeMismatch)
		}
		otherVal, err := Eval(args[0], env, reg)
		if err != nil {
			return nil, fmt.Errorf("zip_with: other array: %w", err)
		}
		other, ok := otherVal.(value.Array)
		if !ok {
			return nil, fmt.Errorf("zip_with: other argument must be array: %w", value.ErrTypeMismatch)
		}
		n := len(arr)
		if len(other) < n {
			n = len(other)
		}
		out := make(value.Array, n)
		for i := 0; i < n; i++ {
			pair := value.Array{arr[i], other[i]}
			combined, err := EvalNested(args[1], pair, env.WithItem(pair, i), reg)
			if err != nil {
				return nil, fmt.Errorf("zip_with: element %d: %w", i, err)
			}
			out[i] = combined
		}
		return out, nil
	})
	registerPipelineArgOp("fold", func(p value.Value, args []Pipeline, env ref.Env, reg *Registry) (value.Value, error) {
		arr, ok := p.(value.Array)
		if !ok {
			return nil, fmt.Errorf("fold: %w", value.ErrTypeMismatch)
		}
		acc, err := Eval(args[0], env, reg)
		if err != nil {
			return nil, fmt.Errorf("fold: init: %w", err)
		}
		for i, elem := range arr {
			itemEnv := env.WithItem(elem, i).WithAcc(acc)
			out, err := EvalNested(args[1], elem, itemEnv, reg)
			if err != nil {
				return nil, fmt.Errorf("fold: element %d: %w", i, err)
			}
			acc = out
		}
		return acc, nil
	})

	r.register(Op{Name: "flatten", MinArgs: 0, MaxArgs: 1, Accepts: acceptsArray, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		depth := 1
		if len(args) == 1 {
			d, ok := args[0].(value.Int)
			if !ok {
				return nil, fmt.Errorf("flatten: depth must be int: %w", value.ErrTypeMismatch)
			}
			depth = int(d)
		}
		return flattenArray(p.(value.Array), depth), nil
	}})
	r.register(Op{Name: "take", MinArgs: 1, MaxArgs: 1, Accepts: acceptsArray, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		return takeDrop(p.(value.Array), args[0], true)
	}})
	r.register(Op{Name: "drop", MinArgs: 1, MaxArgs: 1, Accepts: acceptsArray, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		return takeDrop(p.(value.Array), args[0], false)
	}})
	r.register(Op{Name: "slice", MinArgs: 1, MaxArgs: 2, Accepts: acceptsArray, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		arr := p.(value.Array)
		start, err := sliceIndex(args[0], len(arr))
		if err != nil {
			return nil, err
		}
		end := len(arr)
		if len(args) == 2 {
			end, err = sliceIndex(args[1], len(arr))
			if err != nil {
				return nil, err
			}
		}
		if start > end {
			start = end
		}
		return append(value.Array{}, arr[start:end]...), nil
	}})
	r.register(Op{Name: "chunk", MinArgs: 1, MaxArgs: 1, Accepts: acceptsArray, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		n, ok := args[0].(value.Int)
		if !ok || n <= 0 {
			return nil, fmt.Errorf("chunk: size must be a positive int: %w", value.ErrTypeMismatch)
		}
		arr := p.(value.Array)
		var out value.Array
		for i := 0; i < len(arr); i += int(n) {
			end := i + int(n)
			if end > len(arr) {
				end = len(arr)
			}
			out = append(out, append(value.Array{}, arr[i:end]...))
		}
		if out == nil {
			out = value.Array{}
		}
		return out, nil
	}})
	r.register(Op{Name: "zip", MinArgs: 1, MaxArgs: 1, Accepts: acceptsArray, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		other, ok := args[0].(value.Array)
		if !ok {
			return nil, fmt.Errorf("zip: argument must be array: %w", value.ErrTypeMismatch)
		}
		a := p.(value.Array)
		n := len(a)
		if len(other) < n {
			n = len(other)
		}
		out := make(value.Array, n)
		for i := 0; i < n; i++ {
			out[i] = value.Array{a[i], other[i]}
		}
		return out, nil
	}})
	r.register(Op{Name: "unzip", MinArgs: 0, MaxArgs: 0, Accepts: acceptsArray, Fn: func(p value.Value, _ []value.Value) (value.Value, error) {
		arr := p.(value.Array)
		firsts := make(value.Array, 0, len(arr))
		seconds := make(value.Array, 0, len(arr))
		for i, elem := range arr {
			pair, ok := elem.(value.Array)
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("unzip: element %d must be a 2-tuple: %w", i, value.ErrTypeMismatch)
			}
			firsts = append(firsts, pair[0])
			seconds = append(seconds, pair[1])
		}
		return value.Array{firsts, seconds}, nil
	}})
	r.register(Op{Name: "unique", MinArgs: 0, MaxArgs: 0, Accepts: acceptsArray, Fn: func(p value.Value, _ []value.Value) (value.Value, error) {
		arr := p.(value.Array)
		var out value.Array
		for _, elem := range arr {
			dup := false
			for _, e := range out {
				if value.Equal(e, elem) {
					dup = true
					break
				}
			}
			if !dup {
				out = append(out, elem)
			}
		}
		if out == nil {
			out = value.Array{}
		}
		return out, nil
	}})
	r.register(Op{Name: "index_of", MinArgs: 1, MaxArgs: 1, Accepts: acceptsArray, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		for i, elem := range p.(value.Array) {
			if value.Equal(elem, args[0]) {
				return value.Int(i), nil
			}
		}
		return value.MissingValue, nil
	}})
	r.register(Op{Name: "contains", MinArgs: 1, MaxArgs: 1, Accepts: acceptsArray, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		for _, elem := range p.(value.Array) {
			if value.Equal(elem, args[0]) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	}})
	r.register(Op{Name: "sum", MinArgs: 0, MaxArgs: 0, Accepts: acceptsArray, Fn: numericReduce(func(a, b float64) float64 { return a + b }, 0)})
	r.register(Op{Name: "min", MinArgs: 0, MaxArgs: 0, Accepts: acceptsArray, Fn: extremum(true)})
	r.register(Op{Name: "max", MinArgs: 0, MaxArgs: 0, Accepts: acceptsArray, Fn: extremum(false)})
	r.register(Op{Name: "avg", MinArgs: 0, MaxArgs: 0, Accepts: acceptsArray, Fn: func(p value.Value, _ []value.Value) (value.Value, error) {
		arr := p.(value.Array)
		if len(arr) == 0 {
			return value.MissingValue, nil
		}
		var sum float64
		for i, e := range arr {
			if !value.IsNumeric(e) {
				return nil, fmt.Errorf("avg: element %d not numeric: %w", i, value.ErrTypeMismatch)
			}
			sum += value.AsFloat64(e)
		}
		return value.Float(sum / float64(len(arr))), nil
	}})
	r.register(Op{Name: "first", MinArgs: 0, MaxArgs: 0, Accepts: acceptsArray, Fn: func(p value.Value, _ []value.Value) (value.Value, error) {
		arr := p.(value.Array)
		if len(arr) == 0 {
			return value.MissingValue, nil
		}
		return arr[0], nil
	}})
	r.register(Op{Name: "last", MinArgs: 0, MaxArgs: 0, Accepts: acceptsArray, Fn: func(p value.Value, _ []value.Value) (value.Value, error) {
		arr := p.(value.Array)
		if len(arr) == 0 {
			return value.MissingValue, nil
		}
		return arr[len(arr)-1], nil
	}})
}

func evalPredicate(pred Pipeline, elem value.Value, index int, env ref.Env, reg *Registry) (bool, error) {
	itemEnv := env.WithItem(elem, index)
	result, err := EvalNested(pred, elem, itemEnv, reg)
	if err != nil {
		return false, err
	}
	b, ok := value.Truthy(result)
	if !ok {
		return false, fmt.Errorf("predicate: %w (got %s)", value.ErrTypeMismatch, result.Kind())
	}
	return b, nil
}

func groupByImpl(lastWins bool) PipelineArgFunc {
	return func(p value.Value, args []Pipeline, env ref.Env, reg *Registry) (value.Value, error) {
		arr, ok := p.(value.Array)
		if !ok {
			return nil, fmt.Errorf("group_by/key_by: %w", value.ErrTypeMismatch)
		}
		out := value.NewObject()
		for i, elem := range arr {
			k, err := EvalNested(args[0], elem, env.WithItem(elem, i), reg)
			if err != nil {
				return nil, err
			}
			ks, err := value.ToString(k)
			if err != nil {
				return nil, fmt.Errorf("group_by/key_by: key not stringable: %w", err)
			}
			key := string(ks.(value.String))
			if lastWins {
				out.Set(key, elem)
				continue
			}
			existing, present := out.Get(key)
			if !present {
				out.Set(key, value.Array{elem})
				continue
			}
			out.Set(key, append(existing.(value.Array), elem))
		}
		return out, nil
	}
}

func flattenArray(arr value.Array, depth int) value.Array {
	if depth <= 0 {
		return arr
	}
	out := make(value.Array, 0, len(arr))
	for _, elem := range arr {
		if nested, ok := elem.(value.Array); ok {
			out = append(out, flattenArray(nested, depth-1)...)
		} else {
			out = append(out, elem)
		}
	}
	return out
}

func takeDrop(arr value.Array, nv value.Value, isTake bool) (value.Value, error) {
	n, ok := nv.(value.Int)
	if !ok {
		return nil, fmt.Errorf("take/drop: n must be int: %w", value.ErrTypeMismatch)
	}
	count := int(n)
	length := len(arr)
	if count < 0 {
		count = -count
		if count > length {
			count = length
		}
		if isTake {
			return append(value.Array{}, arr[length-count:]...), nil
		}
		return append(value.Array{}, arr[:length-count]...), nil
	}
	if count > length {
		count = length
	}
	if isTake {
		return append(value.Array{}, arr[:count]...), nil
	}
	return append(value.Array{}, arr[count:]...), nil
}

func sliceIndex(v value.Value, length int) (int, error) {
	n, ok := v.(value.Int)
	if !ok {
		return 0, fmt.Errorf("slice: index must be int: %w", value.ErrTypeMismatch)
	}
	idx := int(n)
	if idx < 0 {
		idx += length
	}
	if idx < 0 {
		idx = 0
	}
	if idx > length {
		idx = length
	}
	return idx, nil
}

func numericReduce(fn func(a, b float64) float64, init float64) OpFunc {
	return func(p value.Value, _ []value.Value) (value.Value, error) {
		arr := p.(value.Array)
		allInt := true
		acc := init
		for i, e := range arr {
			if !value.IsNumeric(e) {
				return nil, fmt.Errorf("sum: element %d not numeric: %w", i, value.ErrTypeMismatch)
			}
			if _, isInt := e.(value.Int); !isInt {
				allInt = false
			}
			acc = fn(acc, value.AsFloat64(e))
		}
		if allInt {
			return value.Int(int64(acc)), nil
		}
		return value.Float(acc), nil
	}
}

func extremum(wantMin bool) OpFunc {
	return func(p value.Value, _ []value.Value) (value.Value, error) {
		arr := p.(value.Array)
		if len(arr) == 0 {
			return value.MissingValue, nil
		}
		best := arr[0]
		if !value.IsNumeric(best) {
			return nil, fmt.Errorf("min/max: element 0 not numeric: %w", value.ErrTypeMismatch)
		}
		for i := 1; i < len(arr); i++ {
			if !value.IsNumeric(arr[i]) {
				return nil, fmt.Errorf("min/max: element %d not numeric: %w", i, value.ErrTypeMismatch)
			}
			ord, _ := value.Compare(arr[i], best)
			if (wantMin && ord == value.Less) || (!wantMin && ord == value.Greater) {
				best = arr[i]
			}
		}
		return best, nil
	}
}
