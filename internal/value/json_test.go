package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalPreservesIntVsFloat(t *testing.T) {
	v, err := Unmarshal([]byte(`{"a": 1, "b": 1.5, "c": null}`))
	require.NoError(t, err)
	obj := v.(*Object)

	a, _ := obj.Get("a")
	assert.Equal(t, Int(1), a)

	b, _ := obj.Get("b")
	assert.Equal(t, Float(1.5), b)

	c, _ := obj.Get("c")
	assert.True(t, IsNull(c))
}

func TestUnmarshalArray(t *testing.T) {
	v, err := Unmarshal([]byte(`[1, "x", true]`))
	require.NoError(t, err)
	arr := v.(Array)
	require.Len(t, arr, 3)
	assert.Equal(t, Int(1), arr[0])
	assert.Equal(t, String("x"), arr[1])
	assert.Equal(t, Bool(true), arr[2])
}

func TestMarshalRoundTrip(t *testing.T) {
	obj := NewObject()
	obj.Set("name", String("alice"))
	obj.Set("age", Int(30))

	data, err := Marshal(obj)
	require.NoError(t, err)

	v, err := Unmarshal(data)
	require.NoError(t, err)
	assert.True(t, Equal(obj, v))
}

func TestMarshalRendersStrayMissingAsNull(t *testing.T) {
	data, err := Marshal(MissingValue)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}
