package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToIntRejectsFractionalString(t *testing.T) {
	_, err := ToInt(String("3.2"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestToIntTruncatesFloatTowardZero(t *testing.T) {
	v, err := ToInt(Float(3.7))
	require.NoError(t, err)
	assert.Equal(t, Int(3), v)

	v, err = ToInt(Float(-3.7))
	require.NoError(t, err)
	assert.Equal(t, Int(-3), v)
}

func TestToBoolEmptyStringIsFalse(t *testing.T) {
	v, err := ToBool(String(""))
	require.NoError(t, err)
	assert.Equal(t, Bool(false), v)
}

func TestToBoolTrueString(t *testing.T) {
	v, err := ToBool(String("true"))
	require.NoError(t, err)
	assert.Equal(t, Bool(true), v)
}

func TestToBoolOtherStringErrors(t *testing.T) {
	_, err := ToBool(String("maybe"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestToFloatAcceptsFractionalString(t *testing.T) {
	v, err := ToFloat(String("3.2"))
	require.NoError(t, err)
	assert.Equal(t, Float(3.2), v)
}

func TestToStringFromInt(t *testing.T) {
	v, err := ToString(Int(42))
	require.NoError(t, err)
	assert.Equal(t, String("42"), v)
}
