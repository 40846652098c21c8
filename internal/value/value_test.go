package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMissing(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"nil interface", nil, true},
		{"missing sentinel", MissingValue, true},
		{"null is not missing", NullValue, false},
		{"zero int is not missing", Int(0), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, IsMissing(c.v))
		})
	}
}

func TestTruthy(t *testing.T) {
	b, ok := Truthy(Bool(true))
	require.True(t, ok)
	assert.True(t, b)

	b, ok = Truthy(MissingValue)
	require.True(t, ok)
	assert.False(t, b)

	_, ok = Truthy(Int(1))
	assert.False(t, ok)
}

func TestAsFloat64(t *testing.T) {
	assert.Equal(t, 3.0, AsFloat64(Int(3)))
	assert.Equal(t, 2.5, AsFloat64(Float(2.5)))
}

func TestAsFloat64PanicsOnNonNumeric(t *testing.T) {
	assert.Panics(t, func() { AsFloat64(String("x")) })
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "missing", KindMissing.String())
	assert.Equal(t, "object", KindObject.String())
}
