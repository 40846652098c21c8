// Package ref implements Rulemorph's reference resolver: parsing and
// evaluating the dotted/bracketed paths (`@input.a.b[0]`) that appear as
// pipeline starts, mapping sources, and condition operands.
package ref

import (
	"fmt"
	"strconv"
	"strings"
)

// SegmentKind discriminates a path segment.
type SegmentKind int

const (
	// FieldSegment addresses an object key, either a bare identifier
	// (`.name`) or a bracketed quoted key (`["name"]`).
	FieldSegment SegmentKind = iota
	// IndexSegment addresses an array position (`[N]`).
	IndexSegment
)

// Segment is one component of a parsed Path.
type Segment struct {
	Kind  SegmentKind
	Name  string // valid when Kind == FieldSegment
	Index int    // valid when Kind == IndexSegment
}

// Path is a parsed reference: a namespace plus zero or more segments.
type Path struct {
	Namespace string
	Segments  []Segment
	Raw       string
}

// Parse parses a reference string of the form `@ns(.seg|[seg])*`. The
// leading `@` is required; use NormalizeSource first for bare mapping
// `source` strings that omit it.
func Parse(s string) (Path, error) {
	raw := s
	if !strings.HasPrefix(s, "@") {
		return Path{}, fmt.Errorf("ref: reference %q must start with '@'", raw)
	}
	s = s[1:]

	ns, rest, err := readIdent(s)
	if err != nil {
		return Path{}, fmt.Errorf("ref: parsing namespace in %q: %w", raw, err)
	}
	if ns == "" {
		return Path{}, fmt.Errorf("ref: empty namespace in %q", raw)
	}

	p := Path{Namespace: ns, Raw: raw}
	for len(rest) > 0 {
		switch rest[0] {
		case '.':
			rest = rest[1:]
			var name string
			name, rest, err = readIdent(rest)
			if err != nil {
				return Path{}, fmt.Errorf("ref: parsing segment in %q: %w", raw, err)
			}
			if name == "" {
				return Path{}, fmt.Errorf("ref: empty segment after '.' in %q", raw)
			}
			p.Segments = append(p.Segments, Segment{Kind: FieldSegment, Name: name})
		case '[':
			var seg Segment
			seg, rest, err = readBracket(rest)
			if err != nil {
				return Path{}, fmt.Errorf("ref: parsing bracket in %q: %w", raw, err)
			}
			p.Segments = append(p.Segments, seg)
		default:
			return Path{}, fmt.Errorf("ref: unexpected character %q in %q", rest[0], raw)
		}
	}
	return p, nil
}

// NormalizeSource applies the implicit-@input rule (spec §4.2): a
// mapping `source` with no leading `@` and no dot is shorthand for
// `@input.<name>`. Any other bare string is returned unchanged and will
// fail Parse if it is not otherwise a valid reference.
func NormalizeSource(s string) string {
	if strings.HasPrefix(s, "@") {
		return s
	}
	if !strings.Contains(s, ".") && !strings.Contains(s, "[") {
		return "@input." + s
	}
	return s
}

func readIdent(s string) (ident, rest string, err error) {
	i := 0
	for i < len(s) && isIdentChar(s[i]) {
		i++
	}
	return s[:i], s[i:], nil
}

func isIdentChar(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

// readBracket parses a bracketed segment starting at s[0] == '['. It
// handles a bare integer `[N]` or a quoted key `["k"]`/`['k']`, where
// only `\` and the matching quote character may be escaped inside the
// quotes; literal `[` and `]` are forbidden inside the key.
func readBracket(s string) (Segment, string, error) {
	if len(s) < 2 || s[0] != '[' {
		return Segment{}, s, fmt.Errorf("expected '['")
	}
	body := s[1:]
	if len(body) > 0 && (body[0] == '"' || body[0] == '\'') {
		quote := body[0]
		var sb strings.Builder
		i := 1
		for i < len(body) {
			c := body[i]
			if c == '\\' && i+1 < len(body) && (body[i+1] == quote || body[i+1] == '\\') {
				sb.WriteByte(body[i+1])
				i += 2
				continue
			}
			if c == quote {
				break
			}
			if c == '[' || c == ']' {
				return Segment{}, s, fmt.Errorf("unescaped %q inside bracketed key", c)
			}
			sb.WriteByte(c)
			i++
		}
		if i >= len(body) || body[i] != quote {
			return Segment{}, s, fmt.Errorf("unterminated quoted key")
		}
		i++ // consume closing quote
		if i >= len(body) || body[i] != ']' {
			return Segment{}, s, fmt.Errorf("expected ']' after quoted key")
		}
		return Segment{Kind: FieldSegment, Name: sb.String()}, body[i+1:], nil
	}

	end := strings.IndexByte(body, ']')
	if end < 0 {
		return Segment{}, s, fmt.Errorf("unterminated bracket")
	}
	numStr := body[:end]
	n, err := strconv.Atoi(numStr)
	if err != nil {
		return Segment{}, s, fmt.Errorf("invalid bracket index %q", numStr)
	}
	return Segment{Kind: IndexSegment, Index: n}, body[end+1:], nil
}

func (p Path) String() string {
	var sb strings.Builder
	sb.WriteByte('@')
	sb.WriteString(p.Namespace)
	for _, seg := range p.Segments {
		switch seg.Kind {
		case FieldSegment:
			sb.WriteByte('.')
			sb.WriteString(seg.Name)
		case IndexSegment:
			sb.WriteByte('[')
			sb.WriteString(strconv.Itoa(seg.Index))
			sb.WriteByte(']')
		}
	}
	return sb.String()
}
