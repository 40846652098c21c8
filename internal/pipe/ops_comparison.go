package pipe

import "github.com/rulemorph/rulemorph/internal/value"

// registerComparisonOps exposes the same comparisons used by Condition
// Compare nodes as pipe ops (`==`,`!=`,`<`,`<=`,`>`,`>=`,`~=`, with
// `eq`/`ne`/`lt`/`lte`/`gt`/`gte`/`match` aliases), so a pipeline can
// compute a boolean mid-expression without an `if`.
func registerComparisonOps(r *Registry) {
	r.register(Op{Name: "==", MinArgs: 1, MaxArgs: 1, Accepts: acceptsAny, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(value.Equal(p, args[0])), nil
	}})
	r.alias("eq", "==")
	r.register(Op{Name: "!=", MinArgs: 1, MaxArgs: 1, Accepts: acceptsAny, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(!value.Equal(p, args[0])), nil
	}})
	r.alias("ne", "!=")
	r.register(Op{Name: "<", MinArgs: 1, MaxArgs: 1, Accepts: acceptsAny, Fn: orderOp(value.Less, false)})
	r.alias("lt", "<")
	r.register(Op{Name: "<=", MinArgs: 1, MaxArgs: 1, Accepts: acceptsAny, Fn: orderOp(value.Less, true)})
	r.alias("lte", "<=")
	r.register(Op{Name: ">", MinArgs: 1, MaxArgs: 1, Accepts: acceptsAny, Fn: orderOp(value.Greater, false)})
	r.alias("gt", ">")
	r.register(Op{Name: ">=", MinArgs: 1, MaxArgs: 1, Accepts: acceptsAny, Fn: orderOp(value.Greater, true)})
	r.alias("gte", ">=")
	r.register(Op{Name: "~=", MinArgs: 1, MaxArgs: 1, Accepts: acceptsAny, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		ok, err := evalMatch(p, args[0])
		if err != nil {
			return nil, err
		}
		return value.Bool(ok), nil
	}})
	r.alias("match", "~=")
}

func orderOp(want value.Ordering, orEqual bool) OpFunc {
	return func(p value.Value, args []value.Value) (value.Value, error) {
		ord, err := value.Compare(p, args[0])
		if err != nil {
			return nil, err
		}
		return value.Bool(ord == want || (orEqual && ord == value.Same)), nil
	}
}
