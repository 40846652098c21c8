package pipe

import (
	"fmt"
	"regexp"

	"github.com/rulemorph/rulemorph/internal/value"
)

// evalMatch implements the `match`/`~=` comparison: lhs is coerced to a
// string, rhs is a regular expression pattern. Go's regexp package is
// RE2, not true POSIX ERE; this is a documented divergence (spec §4.4
// asks for "POSIX-ERE-style, anchored-free" matching, which RE2's
// unanchored Find semantics approximate for the common case of literal
// and character-class patterns).
func evalMatch(lhs, rhs value.Value) (bool, error) {
	lhsStr, err := value.ToString(lhs)
	if err != nil {
		return false, fmt.Errorf("match: lhs: %w", err)
	}
	rhsStr, ok := rhs.(value.String)
	if !ok {
		return false, fmt.Errorf("match: pattern must be a string, got %s: %w", rhs.Kind(), value.ErrTypeMismatch)
	}
	re, err := regexp.Compile(string(rhsStr))
	if err != nil {
		return false, fmt.Errorf("match: invalid pattern %q: %w", string(rhsStr), err)
	}
	return re.MatchString(string(lhsStr.(value.String))), nil
}
