package pipe

import (
	"fmt"

	"github.com/rulemorph/rulemorph/internal/value"
)

// registerLookupOps implements `lookup`/`lookup_first`: search an array
// of objects (either the pipe value or an explicit `from` argument) for
// entries whose match_key field equals needle, optionally projecting a
// `get` field from each match (spec §4.5:
// `lookup(from?, match_key, needle, get?)`).
func registerLookupOps(r *Registry) {
	r.register(Op{Name: "lookup", MinArgs: 2, MaxArgs: 4, Accepts: acceptsAny, Fn: lookupOp(false)})
	r.register(Op{Name: "lookup_first", MinArgs: 2, MaxArgs: 4, Accepts: acceptsAny, Fn: lookupOp(true)})
}

func lookupOp(first bool) OpFunc {
	return func(p value.Value, args []value.Value) (value.Value, error) {
		table, matchKey, needle, getField, err := parseLookupArgs(p, args)
		if err != nil {
			return nil, err
		}

		matchKeyStr, ok := matchKey.(value.String)
		if !ok {
			return nil, fmt.Errorf("lookup: match_key must be string: %w", value.ErrTypeMismatch)
		}

		var matches value.Array
		for _, row := range table {
			obj, ok := row.(*value.Object)
			if !ok {
				continue
			}
			field, present := obj.Get(string(matchKeyStr))
			if !present || !value.Equal(field, needle) {
				continue
			}
			result := value.Value(obj)
			if getField != nil {
				gf, ok := getField.(value.String)
				if !ok {
					return nil, fmt.Errorf("lookup: get must be string: %w", value.ErrTypeMismatch)
				}
				v, _ := obj.Get(string(gf))
				result = v
			}
			if first {
				return result, nil
			}
			matches = append(matches, result)
		}
		if first {
			return value.MissingValue, nil
		}
		if matches == nil {
			matches = value.Array{}
		}
		return matches, nil
	}
}

// parseLookupArgs disambiguates lookup's optional leading `from` and
// trailing `get` arguments by arity and the type of the first argument.
func parseLookupArgs(p value.Value, args []value.Value) (table value.Array, matchKey, needle, getField value.Value, err error) {
	switch len(args) {
	case 2:
		t, ok := p.(value.Array)
		if !ok {
			return nil, nil, nil, nil, fmt.Errorf("lookup: pipe value must be array when from is omitted: %w", value.ErrTypeMismatch)
		}
		return t, args[0], args[1], nil, nil
	case 3:
		if fromArr, ok := args[0].(value.Array); ok {
			return fromArr, args[1], args[2], nil, nil
		}
		t, ok := p.(value.Array)
		if !ok {
			return nil, nil, nil, nil, fmt.Errorf("lookup: pipe value must be array when from is omitted: %w", value.ErrTypeMismatch)
		}
		return t, args[0], args[1], args[2], nil
	case 4:
		fromArr, ok := args[0].(value.Array)
		if !ok {
			return nil, nil, nil, nil, fmt.Errorf("lookup: from must be array: %w", value.ErrTypeMismatch)
		}
		return fromArr, args[1], args[2], args[3], nil
	default:
		return nil, nil, nil, nil, fmt.Errorf("lookup: unexpected argument count %d", len(args))
	}
}
