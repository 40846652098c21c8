package pipe

import (
	"fmt"
	"strings"

	"github.com/rulemorph/rulemorph/internal/value"
)

func registerStringOps(r *Registry) {
	r.register(Op{Name: "trim", MinArgs: 0, MaxArgs: 0, Accepts: acceptsString, Fn: func(p value.Value, _ []value.Value) (value.Value, error) {
		return value.String(strings.TrimSpace(string(p.(value.String)))), nil
	}})
	r.register(Op{Name: "lowercase", MinArgs: 0, MaxArgs: 0, Accepts: acceptsString, Fn: func(p value.Value, _ []value.Value) (value.Value, error) {
		return value.String(strings.ToLower(string(p.(value.String)))), nil
	}})
	r.register(Op{Name: "uppercase", MinArgs: 0, MaxArgs: 0, Accepts: acceptsString, Fn: func(p value.Value, _ []value.Value) (value.Value, error) {
		return value.String(strings.ToUpper(string(p.(value.String)))), nil
	}})
	r.register(Op{Name: "to_string", MinArgs: 0, MaxArgs: 0, Accepts: acceptsAny, Fn: func(p value.Value, _ []value.Value) (value.Value, error) {
		return value.ToString(p)
	}})
	r.register(Op{Name: "concat", MinArgs: 0, MaxArgs: -1, Accepts: acceptsAny, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		var sb strings.Builder
		s, err := value.ToString(p)
		if err != nil {
			return nil, err
		}
		sb.WriteString(string(s.(value.String)))
		for _, a := range args {
			as, err := value.ToString(a)
			if err != nil {
				return nil, err
			}
			sb.WriteString(string(as.(value.String)))
		}
		return value.String(sb.String()), nil
	}})
	r.register(Op{Name: "replace", MinArgs: 2, MaxArgs: 3, Accepts: acceptsString, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		pat, ok := args[0].(value.String)
		if !ok {
			return nil, fmt.Errorf("replace: pattern must be string: %w", value.ErrTypeMismatch)
		}
		rep, ok := args[1].(value.String)
		if !ok {
			return nil, fmt.Errorf("replace: replacement must be string: %w", value.ErrTypeMismatch)
		}
		mode := "all"
		if len(args) == 3 {
			m, ok := args[2].(value.String)
			if !ok {
				return nil, fmt.Errorf("replace: mode must be string: %w", value.ErrTypeMismatch)
			}
			mode = string(m)
		}
		s := string(p.(value.String))
		if mode == "first" {
			return value.String(strings.Replace(s, string(pat), string(rep), 1)), nil
		}
		return value.String(strings.ReplaceAll(s, string(pat), string(rep))), nil
	}})
	r.register(Op{Name: "split", MinArgs: 1, MaxArgs: 1, Accepts: acceptsString, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		delim, ok := args[0].(value.String)
		if !ok {
			return nil, fmt.Errorf("split: delimiter must be string: %w", value.ErrTypeMismatch)
		}
		parts := strings.Split(string(p.(value.String)), string(delim))
		out := make(value.Array, len(parts))
		for i, part := range parts {
			out[i] = value.String(part)
		}
		return out, nil
	}})
	r.register(Op{Name: "pad_start", MinArgs: 1, MaxArgs: 2, Accepts: acceptsString, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		return padOp(p, args, true)
	}})
	r.register(Op{Name: "pad_end", MinArgs: 1, MaxArgs: 2, Accepts: acceptsString, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		return padOp(p, args, false)
	}})
}

func padOp(p value.Value, args []value.Value, start bool) (value.Value, error) {
	n, ok := args[0].(value.Int)
	if !ok {
		return nil, fmt.Errorf("pad: length must be int: %w", value.ErrTypeMismatch)
	}
	pad := " "
	if len(args) == 2 {
		ps, ok := args[1].(value.String)
		if !ok {
			return nil, fmt.Errorf("pad: pad char must be string: %w", value.ErrTypeMismatch)
		}
		if ps == "" {
			return nil, fmt.Errorf("pad: pad string must not be empty")
		}
		pad = string(ps)
	}
	s := string(p.(value.String))
	target := int(n)
	for len([]rune(s)) < target {
		if start {
			s = pad + s
		} else {
			s = s + pad
		}
	}
	runes := []rune(s)
	if len(runes) > target {
		if start {
			s = string(runes[len(runes)-target:])
		} else {
			s = string(runes[:target])
		}
	}
	return value.String(s), nil
}
