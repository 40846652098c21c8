package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
)

// FromJSON converts a decoded encoding/json value (as produced by
// json.Unmarshal into an `any`, decoded with UseNumber) into a Value.
// Both float and null are accepted: Rulemorph records are literal JSON
// documents, not content-addressed IR nodes.
func FromJSON(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return NullValue, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return numberFromJSON(t)
	case float64:
		return Float(t), nil
	case []any:
		arr := make(Array, len(t))
		for i, e := range t {
			v, err := FromJSON(e)
			if err != nil {
				return nil, err
			}
			arr[i] = v
		}
		return arr, nil
	case map[string]any:
		obj := NewObject()
		for k, e := range t {
			v, err := FromJSON(e)
			if err != nil {
				return nil, err
			}
			obj.Set(k, v)
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("value: unsupported JSON decode type %T", raw)
	}
}

// numberFromJSON classifies a json.Number as Int or Float. A literal
// with no fractional or exponent part that fits in int64 becomes an
// Int; everything else becomes a Float, matching how the source
// implementation's serde_json::Number distinguishes the two.
func numberFromJSON(n json.Number) (Value, error) {
	if i, err := n.Int64(); err == nil {
		return Int(i), nil
	}
	f, ok := new(big.Float).SetString(n.String())
	if !ok {
		return nil, fmt.Errorf("value: invalid JSON number %q", n.String())
	}
	fv, _ := f.Float64()
	return Float(fv), nil
}

// Unmarshal decodes JSON bytes into a Value, preserving int/float
// distinction via json.Number rather than collapsing everything to
// float64 the way encoding/json's default `any` decoding does.
func Unmarshal(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("value: decode JSON: %w", err)
	}
	return FromJSON(raw)
}

// ToJSON converts v into the plain `any` shape encoding/json.Marshal
// expects (map[string]any, []any, and native scalars). Object.Set stores
// whatever value it is given, so callers that must not emit Missing
// leave such fields out of the object; ToJSON itself renders a stray
// Missing as JSON null.
func ToJSON(v Value) any {
	switch t := v.(type) {
	case Null, Missing:
		return nil
	case Bool:
		return bool(t)
	case Int:
		return int64(t)
	case Float:
		return float64(t)
	case String:
		return string(t)
	case Array:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = ToJSON(e)
		}
		return out
	case *Object:
		out := make(map[string]any, t.Len())
		t.ForEach(func(k string, e Value) bool {
			out[k] = ToJSON(e)
			return true
		})
		return out
	default:
		return nil
	}
}

// Marshal renders v as JSON bytes.
func Marshal(v Value) ([]byte, error) {
	return json.Marshal(ToJSON(v))
}
