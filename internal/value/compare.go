package value

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Ordering is the result of comparing two values.
type Ordering int

const (
	Less    Ordering = -1
	Same    Ordering = 0
	Greater Ordering = 1
)

// Compare implements the ordering semantics lt/lte/gt/gte use (spec.md
// §4.1): each operand is coerced to numeric independently — a numeric
// Value compares directly, and a String that parses cleanly as a
// number also qualifies — so gt(5, "3") orders numerically rather than
// failing as a type mismatch. When at least one side doesn't coerce,
// two String operands still fall back to lexicographic-by-codepoint
// comparison of NFC-normalized strings; any other combination is a
// TypeMismatch. Strings are NFC-normalized before comparing (via
// golang.org/x/text/unicode/norm) so visually identical Unicode inputs
// from different sources order the same way.
func Compare(a, b Value) (Ordering, error) {
	if af, aOk := asNumericOperand(a); aOk {
		if bf, bOk := asNumericOperand(b); bOk {
			return compareFloat(af, bf), nil
		}
	}

	as, aIsStr := a.(String)
	bs, bIsStr := b.(String)
	if aIsStr && bIsStr {
		return compareString(string(as), string(bs)), nil
	}

	return 0, fmt.Errorf("value: cannot order %s and %s: %w", a.Kind(), b.Kind(), ErrTypeMismatch)
}

// asNumericOperand coerces v to a float64 for Compare, independently per
// side: a numeric Value compares directly, and a String is coerced if
// it parses cleanly as a number.
func asNumericOperand(v Value) (float64, bool) {
	if IsNumeric(v) {
		return AsFloat64(v), true
	}
	if s, ok := v.(String); ok {
		return parseNumeric(string(s))
	}
	return 0, false
}

func compareFloat(a, b float64) Ordering {
	switch {
	case a < b:
		return Less
	case a > b:
		return Greater
	default:
		return Same
	}
}

func compareString(a, b string) Ordering {
	na, nb := norm.NFC.String(a), norm.NFC.String(b)
	switch {
	case na < nb:
		return Less
	case na > nb:
		return Greater
	default:
		return Same
	}
}

// parseNumeric attempts to interpret s as a number, for the
// string-vs-string numeric ordering fallback.
func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ErrTypeMismatch is the sentinel wrapped by comparison and cast errors
// so callers can errors.Is against it regardless of the concrete
// message.
var ErrTypeMismatch = fmt.Errorf("type mismatch")
