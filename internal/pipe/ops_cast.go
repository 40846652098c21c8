package pipe

import "github.com/rulemorph/rulemorph/internal/value"

func registerCastOps(r *Registry) {
	r.register(Op{Name: "string", MinArgs: 0, MaxArgs: 0, Accepts: acceptsAny, Fn: func(p value.Value, _ []value.Value) (value.Value, error) {
		return value.ToString(p)
	}})
	r.register(Op{Name: "int", MinArgs: 0, MaxArgs: 0, Accepts: acceptsAny, Fn: func(p value.Value, _ []value.Value) (value.Value, error) {
		return value.ToInt(p)
	}})
	r.register(Op{Name: "float", MinArgs: 0, MaxArgs: 0, Accepts: acceptsAny, Fn: func(p value.Value, _ []value.Value) (value.Value, error) {
		return value.ToFloat(p)
	}})
	r.register(Op{Name: "bool", MinArgs: 0, MaxArgs: 0, Accepts: acceptsAny, Fn: func(p value.Value, _ []value.Value) (value.Value, error) {
		return value.ToBool(p)
	}})
}
