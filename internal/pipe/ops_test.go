package pipe

import (
	"math"
	"testing"

	"github.com/rulemorph/rulemorph/internal/ref"
	"github.com/rulemorph/rulemorph/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runOp(t *testing.T, name string, pipeValue value.Value, argLiterals []value.Value) (value.Value, error) {
	t.Helper()
	reg := NewRegistry()
	env := ref.NewEnv(value.NullValue, value.NullValue, value.NewObject())
	args := make([]Pipeline, len(argLiterals))
	for i, a := range argLiterals {
		args[i] = Pipeline{Start: Literal{Value: a}}
	}
	p := Pipeline{Start: Literal{Value: pipeValue}, Steps: []Step{OpStep{Name: name, Args: args}}}
	return Eval(p, env, reg)
}

func TestOpTakeNegative(t *testing.T) {
	out, err := runOp(t, "take", value.Array{value.Int(1), value.Int(2), value.Int(3)}, []value.Value{value.Int(-2)})
	require.NoError(t, err)
	assert.Equal(t, value.Array{value.Int(2), value.Int(3)}, out)
}

func TestOpFlatten(t *testing.T) {
	nested := value.Array{value.Array{value.Int(1), value.Int(2)}, value.Array{value.Int(3)}}
	out, err := runOp(t, "flatten", nested, nil)
	require.NoError(t, err)
	assert.Equal(t, value.Array{value.Int(1), value.Int(2), value.Int(3)}, out)
}

func TestOpChunk(t *testing.T) {
	arr := value.Array{value.Int(1), value.Int(2), value.Int(3), value.Int(4), value.Int(5)}
	out, err := runOp(t, "chunk", arr, []value.Value{value.Int(2)})
	require.NoError(t, err)
	assert.Equal(t, value.Array{
		value.Array{value.Int(1), value.Int(2)},
		value.Array{value.Int(3), value.Int(4)},
		value.Array{value.Int(5)},
	}, out)
}

func TestOpDeepMergeObjectOverlayArrayReplace(t *testing.T) {
	base := value.NewObject()
	base.Set("a", value.Int(1))
	nestedBase := value.NewObject()
	nestedBase.Set("x", value.Int(1))
	nestedBase.Set("arr", value.Array{value.Int(1)})
	base.Set("nested", nestedBase)

	other := value.NewObject()
	nestedOther := value.NewObject()
	nestedOther.Set("y", value.Int(2))
	nestedOther.Set("arr", value.Array{value.Int(9)})
	other.Set("nested", nestedOther)

	merged := DeepMerge(base, other)
	nested, _ := merged.Get("nested")
	nestedObj := nested.(*value.Object)
	x, _ := nestedObj.Get("x")
	y, _ := nestedObj.Get("y")
	arr, _ := nestedObj.Get("arr")
	assert.Equal(t, value.Int(1), x)
	assert.Equal(t, value.Int(2), y)
	assert.Equal(t, value.Array{value.Int(9)}, arr, "arrays are replaced wholesale, not merged")
}

func TestOpPickOmit(t *testing.T) {
	obj := value.NewObject()
	obj.Set("a", value.Int(1))
	obj.Set("b", value.Int(2))
	obj.Set("c", value.Int(3))

	picked, err := runOp(t, "pick", obj, []value.Value{value.String("a"), value.String("c")})
	require.NoError(t, err)
	po := picked.(*value.Object)
	assert.Equal(t, []string{"a", "c"}, po.Keys())

	omitted, err := runOp(t, "omit", obj, []value.Value{value.String("b")})
	require.NoError(t, err)
	oo := omitted.(*value.Object)
	assert.Equal(t, []string{"a", "c"}, oo.Keys())
}

func TestOpLookupWithoutFrom(t *testing.T) {
	row := func(id int64, name string) *value.Object {
		o := value.NewObject()
		o.Set("id", value.Int(id))
		o.Set("name", value.String(name))
		return o
	}
	table := value.Array{row(1, "a"), row(2, "b")}
	out, err := runOp(t, "lookup_first", table, []value.Value{value.String("id"), value.Int(2)})
	require.NoError(t, err)
	obj := out.(*value.Object)
	name, _ := obj.Get("name")
	assert.Equal(t, value.String("b"), name)
}

func TestOpLookupNoMatchReturnsMissingOrEmpty(t *testing.T) {
	out, err := runOp(t, "lookup_first", value.Array{}, []value.Value{value.String("id"), value.Int(1)})
	require.NoError(t, err)
	assert.True(t, value.IsMissing(out))

	out, err = runOp(t, "lookup", value.Array{}, []value.Value{value.String("id"), value.Int(1)})
	require.NoError(t, err)
	assert.Equal(t, value.Array{}, out)
}

func TestOpRoundHalfAwayFromZero(t *testing.T) {
	out, err := runOp(t, "round", value.Float(2.5), nil)
	require.NoError(t, err)
	assert.Equal(t, value.Float(3), out)

	out, err = runOp(t, "round", value.Float(-2.5), nil)
	require.NoError(t, err)
	assert.Equal(t, value.Float(-3), out)
}

func TestOpAddIntOverflow(t *testing.T) {
	_, err := runOp(t, "+", value.Int(math.MaxInt64), []value.Value{value.Int(1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArithmetic)
}

func TestOpMultiplyIntOverflow(t *testing.T) {
	_, err := runOp(t, "*", value.Int(math.MaxInt64), []value.Value{value.Int(2)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArithmetic)

	_, err = runOp(t, "*", value.Int(math.MinInt64), []value.Value{value.Int(-1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArithmetic)

	out, err := runOp(t, "*", value.Int(3), []value.Value{value.Int(4)})
	require.NoError(t, err)
	assert.Equal(t, value.Int(12), out)
}

func TestOpMatchRegex(t *testing.T) {
	out, err := runOp(t, "match", value.String("hello123"), []value.Value{value.String(`^[a-z]+[0-9]+$`)})
	require.NoError(t, err)
	assert.Equal(t, value.Bool(true), out)
}

func TestOpObjectFlattenUnflatten(t *testing.T) {
	inner := value.NewObject()
	inner.Set("b", value.Int(1))
	outer := value.NewObject()
	outer.Set("a", inner)

	flat, err := runOp(t, "object_flatten", outer, nil)
	require.NoError(t, err)
	fo := flat.(*value.Object)
	v, ok := fo.Get("a.b")
	require.True(t, ok)
	assert.Equal(t, value.Int(1), v)

	unflat, err := runOp(t, "object_unflatten", fo, nil)
	require.NoError(t, err)
	uo := unflat.(*value.Object)
	a, _ := uo.Get("a")
	b, _ := a.(*value.Object).Get("b")
	assert.Equal(t, value.Int(1), b)
}
