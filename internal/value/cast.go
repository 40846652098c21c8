package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ToString coerces v to its string representation for the to_string
// cast op. Objects and arrays are not stringified here; callers that
// need JSON text should go through json.go's Marshal instead.
func ToString(v Value) (Value, error) {
	switch t := v.(type) {
	case String:
		return t, nil
	case Int:
		return String(strconv.FormatInt(int64(t), 10)), nil
	case Float:
		return String(strconv.FormatFloat(float64(t), 'g', -1, 64)), nil
	case Bool:
		return String(strconv.FormatBool(bool(t))), nil
	case Null:
		return String("null"), nil
	default:
		return nil, fmt.Errorf("value: cannot cast %s to string: %w", v.Kind(), ErrTypeMismatch)
	}
}

// ToInt coerces v to an integer. A string only converts if it parses as
// an exact integer literal; "3.2" fails rather than truncating, per
// spec.md §8. A float truncates toward zero.
func ToInt(v Value) (Value, error) {
	switch t := v.(type) {
	case Int:
		return t, nil
	case Float:
		f := float64(t)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("value: cannot cast non-finite float to int: %w", ErrTypeMismatch)
		}
		return Int(math.Trunc(f)), nil
	case String:
		s := strings.TrimSpace(string(t))
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("value: cannot cast %q to int: %w", string(t), ErrTypeMismatch)
		}
		return Int(n), nil
	case Bool:
		if t {
			return Int(1), nil
		}
		return Int(0), nil
	default:
		return nil, fmt.Errorf("value: cannot cast %s to int: %w", v.Kind(), ErrTypeMismatch)
	}
}

// ToFloat coerces v to a float. Unlike ToInt, a numeric string with a
// fractional component is accepted.
func ToFloat(v Value) (Value, error) {
	switch t := v.(type) {
	case Float:
		return t, nil
	case Int:
		return Float(t), nil
	case String:
		s := strings.TrimSpace(string(t))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("value: cannot cast %q to float: %w", string(t), ErrTypeMismatch)
		}
		return Float(f), nil
	case Bool:
		if t {
			return Float(1), nil
		}
		return Float(0), nil
	default:
		return nil, fmt.Errorf("value: cannot cast %s to float: %w", v.Kind(), ErrTypeMismatch)
	}
}

// ToBool coerces v to a bool. An empty string or "false" is false and
// "true" is true (case-insensitive); any other string is a TypeMismatch rather
// than a silent "non-empty is true" — spec.md §8 requires "true"/other
// strings to be distinguished, not treated as generically truthy.
func ToBool(v Value) (Value, error) {
	switch t := v.(type) {
	case Bool:
		return t, nil
	case String:
		switch strings.ToLower(strings.TrimSpace(string(t))) {
		case "":
			return Bool(false), nil
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		default:
			return nil, fmt.Errorf("value: cannot cast %q to bool: %w", string(t), ErrTypeMismatch)
		}
	case Int:
		return Bool(t != 0), nil
	case Float:
		return Bool(t != 0), nil
	default:
		return nil, fmt.Errorf("value: cannot cast %s to bool: %w", v.Kind(), ErrTypeMismatch)
	}
}
