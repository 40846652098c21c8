package ref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimple(t *testing.T) {
	p, err := Parse("@input.n")
	require.NoError(t, err)
	assert.Equal(t, "input", p.Namespace)
	require.Len(t, p.Segments, 1)
	assert.Equal(t, FieldSegment, p.Segments[0].Kind)
	assert.Equal(t, "n", p.Segments[0].Name)
}

func TestParseBracketIndex(t *testing.T) {
	p, err := Parse("@out.items[2]")
	require.NoError(t, err)
	require.Len(t, p.Segments, 2)
	assert.Equal(t, IndexSegment, p.Segments[1].Kind)
	assert.Equal(t, 2, p.Segments[1].Index)
}

func TestParseNegativeBracketIndex(t *testing.T) {
	p, err := Parse("@out.items[-1]")
	require.NoError(t, err)
	assert.Equal(t, -1, p.Segments[1].Index)
}

func TestParseBracketQuotedKey(t *testing.T) {
	p, err := Parse(`@input["a key"]`)
	require.NoError(t, err)
	require.Len(t, p.Segments, 1)
	assert.Equal(t, FieldSegment, p.Segments[0].Kind)
	assert.Equal(t, "a key", p.Segments[0].Name)
}

func TestParseBracketEscapedQuote(t *testing.T) {
	p, err := Parse(`@input["a \"quoted\" key"]`)
	require.NoError(t, err)
	assert.Equal(t, `a "quoted" key`, p.Segments[0].Name)
}

func TestParseBareLetVar(t *testing.T) {
	p, err := Parse("@base")
	require.NoError(t, err)
	assert.Equal(t, "base", p.Namespace)
	assert.Empty(t, p.Segments)
}

func TestParseItemIndex(t *testing.T) {
	p, err := Parse("@item.index")
	require.NoError(t, err)
	assert.Equal(t, "item", p.Namespace)
	assert.Equal(t, "index", p.Segments[0].Name)
}

func TestParseRequiresAtPrefix(t *testing.T) {
	_, err := Parse("input.n")
	assert.Error(t, err)
}

func TestParseUnescapedBracketInKeyErrors(t *testing.T) {
	_, err := Parse(`@input["a[b"]`)
	assert.Error(t, err)
}

func TestNormalizeSourceBareName(t *testing.T) {
	assert.Equal(t, "@input.foo", NormalizeSource("foo"))
}

func TestNormalizeSourceAlreadyAt(t *testing.T) {
	assert.Equal(t, "@out.foo", NormalizeSource("@out.foo"))
}

func TestNormalizeSourceWithDotUnchanged(t *testing.T) {
	assert.Equal(t, "input.foo", NormalizeSource("input.foo"))
}

func TestPathString(t *testing.T) {
	p, err := Parse("@out.items[2]")
	require.NoError(t, err)
	assert.Equal(t, "@out.items[2]", p.String())
}
