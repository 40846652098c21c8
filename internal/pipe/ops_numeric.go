package pipe

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rulemorph/rulemorph/internal/value"
)

func registerNumericOps(r *Registry) {
	r.register(Op{Name: "+", MinArgs: 1, MaxArgs: 1, Accepts: acceptsNumeric, Fn: arith(func(a, b float64) float64 { return a + b }, addInt64)})
	r.alias("add", "+")
	r.register(Op{Name: "-", MinArgs: 1, MaxArgs: 1, Accepts: acceptsNumeric, Fn: arith(func(a, b float64) float64 { return a - b }, func(a, b int64) (int64, error) { return a - b, nil })})
	r.register(Op{Name: "*", MinArgs: 1, MaxArgs: 1, Accepts: acceptsNumeric, Fn: arith(func(a, b float64) float64 { return a * b }, mulInt64)})
	r.alias("multiply", "*")
	r.register(Op{Name: "/", MinArgs: 1, MaxArgs: 1, Accepts: acceptsNumeric, Fn: divOp})
	r.register(Op{Name: "round", MinArgs: 0, MaxArgs: 1, Accepts: acceptsNumeric, Fn: roundOp})
	r.register(Op{Name: "to_base", MinArgs: 1, MaxArgs: 1, Accepts: acceptsNumeric, Fn: toBaseOp})
}

// arith implements the shared int/float promotion rule from spec §4.1:
// if either operand is float, the result is float; otherwise integer
// arithmetic is used.
func arith(floatFn func(a, b float64) float64, intFn func(a, b int64) (int64, error)) OpFunc {
	return func(p value.Value, args []value.Value) (value.Value, error) {
		if !value.IsNumeric(args[0]) {
			return nil, fmt.Errorf("arith: operand must be numeric: %w", value.ErrTypeMismatch)
		}
		pi, pIsInt := p.(value.Int)
		ai, aIsInt := args[0].(value.Int)
		if pIsInt && aIsInt {
			n, err := intFn(int64(pi), int64(ai))
			if err != nil {
				return nil, err
			}
			return value.Int(n), nil
		}
		return value.Float(floatFn(value.AsFloat64(p), value.AsFloat64(args[0]))), nil
	}
}

// addInt64 and mulInt64 detect int64 overflow so `+`/`*` raise
// ArithmeticError (spec §7) instead of silently wrapping, matching
// divOp's divide-by-zero handling below.
func addInt64(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, fmt.Errorf("+: integer overflow: %w", ErrArithmetic)
	}
	return sum, nil
}

func mulInt64(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if (a == math.MinInt64 && b == -1) || (b == math.MinInt64 && a == -1) {
		return 0, fmt.Errorf("*: integer overflow: %w", ErrArithmetic)
	}
	result := a * b
	if result/b != a {
		return 0, fmt.Errorf("*: integer overflow: %w", ErrArithmetic)
	}
	return result, nil
}

func divOp(p value.Value, args []value.Value) (value.Value, error) {
	if !value.IsNumeric(args[0]) {
		return nil, fmt.Errorf("/: operand must be numeric: %w", value.ErrTypeMismatch)
	}
	num := value.AsFloat64(p)
	den := value.AsFloat64(args[0])
	if den == 0 {
		return nil, fmt.Errorf("/: division by zero: %w", ErrArithmetic)
	}
	pi, pIsInt := p.(value.Int)
	ai, aIsInt := args[0].(value.Int)
	if pIsInt && aIsInt && ai != 0 && int64(pi)%int64(ai) == 0 {
		return value.Int(int64(pi) / int64(ai)), nil
	}
	return value.Float(num / den), nil
}

// ErrArithmetic is wrapped by division-by-zero and overflow errors so
// callers can classify them per spec §7's ArithmeticError taxonomy
// entry.
var ErrArithmetic = fmt.Errorf("arithmetic error")

// roundOp implements half-away-from-zero rounding to an optional
// decimal scale (spec §4.1).
func roundOp(p value.Value, args []value.Value) (value.Value, error) {
	scale := 0
	if len(args) == 1 {
		n, ok := args[0].(value.Int)
		if !ok {
			return nil, fmt.Errorf("round: scale must be int: %w", value.ErrTypeMismatch)
		}
		scale = int(n)
	}
	f := value.AsFloat64(p)
	factor := math.Pow(10, float64(scale))
	scaled := f * factor
	var rounded float64
	if scaled >= 0 {
		rounded = math.Floor(scaled + 0.5)
	} else {
		rounded = math.Ceil(scaled - 0.5)
	}
	result := rounded / factor
	if _, isInt := p.(value.Int); isInt && scale <= 0 {
		return value.Int(int64(result)), nil
	}
	return value.Float(result), nil
}

func toBaseOp(p value.Value, args []value.Value) (value.Value, error) {
	base, ok := args[0].(value.Int)
	if !ok || base < 2 || base > 36 {
		return nil, fmt.Errorf("to_base: base must be an int in [2, 36]: %w", value.ErrTypeMismatch)
	}
	i, ok := p.(value.Int)
	if !ok {
		return nil, fmt.Errorf("to_base: pipe value must be int: %w", value.ErrTypeMismatch)
	}
	s := strconv.FormatInt(int64(i), int(base))
	return value.String(strings.ToLower(s)), nil
}
