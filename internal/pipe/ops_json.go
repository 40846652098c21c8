package pipe

import (
	"fmt"
	"strings"

	"github.com/rulemorph/rulemorph/internal/ref"
	"github.com/rulemorph/rulemorph/internal/value"
)

func registerJSONOps(r *Registry) {
	r.register(Op{Name: "merge", MinArgs: 1, MaxArgs: 1, Accepts: acceptsObject, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		other, ok := args[0].(*value.Object)
		if !ok {
			return nil, fmt.Errorf("merge: argument must be object: %w", value.ErrTypeMismatch)
		}
		out := p.(*value.Object).Clone()
		other.ForEach(func(k string, v value.Value) bool {
			out.Set(k, value.CloneValue(v))
			return true
		})
		return out, nil
	}})
	r.register(Op{Name: "deep_merge", MinArgs: 1, MaxArgs: 1, Accepts: acceptsObject, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		other, ok := args[0].(*value.Object)
		if !ok {
			return nil, fmt.Errorf("deep_merge: argument must be object: %w", value.ErrTypeMismatch)
		}
		return DeepMerge(p.(*value.Object), other), nil
	}})
	r.register(Op{Name: "get", MinArgs: 1, MaxArgs: 1, Accepts: acceptsAny, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		path, ok := args[0].(value.String)
		if !ok {
			return nil, fmt.Errorf("get: path must be string: %w", value.ErrTypeMismatch)
		}
		return getPath(p, string(path)), nil
	}})
	r.register(Op{Name: "pick", MinArgs: 1, MaxArgs: -1, Accepts: acceptsObject, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		obj := p.(*value.Object)
		out := value.NewObject()
		for _, a := range args {
			key, ok := a.(value.String)
			if !ok {
				return nil, fmt.Errorf("pick: path must be string: %w", value.ErrTypeMismatch)
			}
			if v, ok := obj.Get(string(key)); ok {
				out.Set(string(key), v)
			}
		}
		return out, nil
	}})
	r.register(Op{Name: "omit", MinArgs: 1, MaxArgs: -1, Accepts: acceptsObject, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		obj := p.(*value.Object).Clone()
		for _, a := range args {
			key, ok := a.(value.String)
			if !ok {
				return nil, fmt.Errorf("omit: path must be string: %w", value.ErrTypeMismatch)
			}
			obj.Delete(string(key))
		}
		return obj, nil
	}})
	r.register(Op{Name: "keys", MinArgs: 0, MaxArgs: 0, Accepts: acceptsObject, Fn: func(p value.Value, _ []value.Value) (value.Value, error) {
		obj := p.(*value.Object)
		out := make(value.Array, 0, obj.Len())
		for _, k := range obj.Keys() {
			out = append(out, value.String(k))
		}
		return out, nil
	}})
	r.register(Op{Name: "values", MinArgs: 0, MaxArgs: 0, Accepts: acceptsObject, Fn: func(p value.Value, _ []value.Value) (value.Value, error) {
		obj := p.(*value.Object)
		out := make(value.Array, 0, obj.Len())
		obj.ForEach(func(_ string, v value.Value) bool {
			out = append(out, v)
			return true
		})
		return out, nil
	}})
	r.register(Op{Name: "entries", MinArgs: 0, MaxArgs: 0, Accepts: acceptsObject, Fn: func(p value.Value, _ []value.Value) (value.Value, error) {
		obj := p.(*value.Object)
		out := make(value.Array, 0, obj.Len())
		obj.ForEach(func(k string, v value.Value) bool {
			pair := value.NewObject()
			pair.Set("key", value.String(k))
			pair.Set("value", v)
			out = append(out, pair)
			return true
		})
		return out, nil
	}})
	r.register(Op{Name: "from_entries", MinArgs: 0, MaxArgs: 0, Accepts: acceptsArray, Fn: func(p value.Value, _ []value.Value) (value.Value, error) {
		arr := p.(value.Array)
		out := value.NewObject()
		for i, elem := range arr {
			pair, ok := elem.(*value.Object)
			if !ok {
				return nil, fmt.Errorf("from_entries: element %d must be an object: %w", i, value.ErrTypeMismatch)
			}
			k, ok := pair.Get("key")
			if !ok {
				return nil, fmt.Errorf("from_entries: element %d missing key: %w", i, value.ErrTypeMismatch)
			}
			ks, ok := k.(value.String)
			if !ok {
				return nil, fmt.Errorf("from_entries: element %d key must be string: %w", i, value.ErrTypeMismatch)
			}
			v, _ := pair.Get("value")
			out.Set(string(ks), v)
		}
		return out, nil
	}})
	r.register(Op{Name: "object_flatten", MinArgs: 0, MaxArgs: 1, Accepts: acceptsObject, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		sep := "."
		if len(args) == 1 {
			s, ok := args[0].(value.String)
			if !ok {
				return nil, fmt.Errorf("object_flatten: separator must be string: %w", value.ErrTypeMismatch)
			}
			sep = string(s)
		}
		out := value.NewObject()
		flattenInto(out, "", p.(*value.Object), sep)
		return out, nil
	}})
	r.register(Op{Name: "object_unflatten", MinArgs: 0, MaxArgs: 1, Accepts: acceptsObject, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		sep := "."
		if len(args) == 1 {
			s, ok := args[0].(value.String)
			if !ok {
				return nil, fmt.Errorf("object_unflatten: separator must be string: %w", value.ErrTypeMismatch)
			}
			sep = string(s)
		}
		out := value.NewObject()
		obj := p.(*value.Object)
		obj.ForEach(func(k string, v value.Value) bool {
			setDotted(out, strings.Split(k, sep), v)
			return true
		})
		return out, nil
	}})
	r.register(Op{Name: "len", MinArgs: 0, MaxArgs: 0, Accepts: func(v value.Value) bool {
		return acceptsArray(v) || acceptsObject(v) || acceptsString(v)
	}, Fn: func(p value.Value, _ []value.Value) (value.Value, error) {
		switch t := p.(type) {
		case value.Array:
			return value.Int(len(t)), nil
		case *value.Object:
			return value.Int(t.Len()), nil
		case value.String:
			return value.Int(len([]rune(string(t)))), nil
		default:
			return nil, fmt.Errorf("len: %w", value.ErrTypeMismatch)
		}
	}})
}

// DeepMerge overlays other onto base: objects merge recursively, arrays
// and scalars are replaced wholesale by other's value (spec §4.5,
// §9's "@out semantics").
func DeepMerge(base, other *value.Object) *value.Object {
	out := base.Clone()
	other.ForEach(func(k string, v value.Value) bool {
		existing, present := out.Get(k)
		if present {
			eo, eIsObj := existing.(*value.Object)
			vo, vIsObj := v.(*value.Object)
			if eIsObj && vIsObj {
				out.Set(k, DeepMerge(eo, vo))
				return true
			}
		}
		out.Set(k, value.CloneValue(v))
		return true
	})
	return out
}

func getPath(v value.Value, path string) value.Value {
	if path == "" {
		return v
	}
	p, err := ref.Parse("@_." + path)
	if err != nil {
		return value.MissingValue
	}
	env := ref.NewEnv(nil, nil, nil).WithLet("_", v)
	return ref.Resolve(p, env)
}

func flattenInto(out *value.Object, prefix string, obj *value.Object, sep string) {
	obj.ForEach(func(k string, v value.Value) bool {
		full := k
		if prefix != "" {
			full = prefix + sep + k
		}
		if nested, ok := v.(*value.Object); ok && nested.Len() > 0 {
			flattenInto(out, full, nested, sep)
		} else {
			out.Set(full, v)
		}
		return true
	})
}

func setDotted(out *value.Object, segs []string, v value.Value) {
	if len(segs) == 1 {
		out.Set(segs[0], v)
		return
	}
	head := segs[0]
	child, ok := out.Get(head)
	childObj, isObj := child.(*value.Object)
	if !ok || !isObj {
		childObj = value.NewObject()
		out.Set(head, childObj)
	}
	setDotted(childObj, segs[1:], v)
}
