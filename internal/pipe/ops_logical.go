package pipe

import (
	"fmt"

	"github.com/rulemorph/rulemorph/internal/value"
)

func registerLogicalOps(r *Registry) {
	r.register(Op{Name: "and", MinArgs: 1, MaxArgs: 1, Accepts: acceptsAny, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		a, ok := value.Truthy(p)
		if !ok {
			return nil, fmt.Errorf("and: %w", value.ErrTypeMismatch)
		}
		b, ok := value.Truthy(args[0])
		if !ok {
			return nil, fmt.Errorf("and: %w", value.ErrTypeMismatch)
		}
		return value.Bool(a && b), nil
	}})
	r.register(Op{Name: "or", MinArgs: 1, MaxArgs: 1, Accepts: acceptsAny, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		a, ok := value.Truthy(p)
		if !ok {
			return nil, fmt.Errorf("or: %w", value.ErrTypeMismatch)
		}
		b, ok := value.Truthy(args[0])
		if !ok {
			return nil, fmt.Errorf("or: %w", value.ErrTypeMismatch)
		}
		return value.Bool(a || b), nil
	}})
	r.register(Op{Name: "not", MinArgs: 0, MaxArgs: 0, Accepts: acceptsAny, Fn: func(p value.Value, _ []value.Value) (value.Value, error) {
		b, ok := value.Truthy(p)
		if !ok {
			return nil, fmt.Errorf("not: %w", value.ErrTypeMismatch)
		}
		return value.Bool(!b), nil
	}})
}
