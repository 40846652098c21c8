package pipe

import (
	"testing"

	"github.com/rulemorph/rulemorph/internal/ref"
	"github.com/rulemorph/rulemorph/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEnv(input *value.Object) ref.Env {
	return ref.NewEnv(input, value.NullValue, value.NewObject())
}

func TestTrimUppercasePipeline(t *testing.T) {
	reg := NewRegistry()
	input := value.NewObject()
	input.Set("n", value.String(" alice "))
	env := newTestEnv(input)

	p := Pipeline{
		Start: Ref{Path: "@input.n"},
		Steps: []Step{
			OpStep{Name: "trim"},
			OpStep{Name: "uppercase"},
		},
	}
	out, err := Eval(p, env, reg)
	require.NoError(t, err)
	assert.Equal(t, value.String("ALICE"), out)
}

func TestLetAndIfPipeline(t *testing.T) {
	reg := NewRegistry()

	build := func(price int64) Pipeline {
		return Pipeline{
			Start: Literal{Value: value.Int(price)},
			Steps: []Step{
				LetStep{Bindings: []LetBinding{{Name: "base", Expr: Pipeline{Start: Current{}}}}},
				IfStep{
					Cond: Compare{Op: OpGt, Lhs: Pipeline{Start: Ref{Path: "@base"}}, Rhs: Pipeline{Start: Literal{Value: value.Int(100)}}},
					Then: Pipeline{Start: Current{}, Steps: []Step{OpStep{Name: "*", Args: []Pipeline{{Start: Literal{Value: value.Float(0.9)}}}}}},
					Else: &Pipeline{Start: Current{}},
				},
			},
		}
	}

	env := newTestEnv(value.NewObject())
	out, err := Eval(build(120), env, reg)
	require.NoError(t, err)
	assert.Equal(t, value.Float(108.0), out)

	out, err = Eval(build(50), env, reg)
	require.NoError(t, err)
	assert.Equal(t, value.Int(50), out)
}

func TestLetScopingShadowsAndSeesEarlier(t *testing.T) {
	reg := NewRegistry()
	env := newTestEnv(value.NewObject())

	p := Pipeline{
		Start: Literal{Value: value.Int(0)},
		Steps: []Step{
			LetStep{Bindings: []LetBinding{{Name: "a", Expr: Pipeline{Start: Literal{Value: value.String("X")}}}}},
			LetStep{Bindings: []LetBinding{{Name: "a", Expr: Pipeline{Start: Literal{Value: value.String("Y")}}}}},
			OpStep{Name: "concat", Args: []Pipeline{{Start: Ref{Path: "@a"}}}},
		},
	}
	out, err := Eval(p, env, reg)
	require.NoError(t, err)
	assert.Equal(t, value.String("0Y"), out)
}

func TestLetBindingSeesEarlierBinding(t *testing.T) {
	reg := NewRegistry()
	env := newTestEnv(value.NewObject())

	p := Pipeline{
		Start: Literal{Value: value.Int(0)},
		Steps: []Step{
			LetStep{Bindings: []LetBinding{
				{Name: "a", Expr: Pipeline{Start: Literal{Value: value.String("X")}}},
				{Name: "b", Expr: Pipeline{Start: Ref{Path: "@a"}}},
			}},
			OpStep{Name: "concat", Args: []Pipeline{{Start: Ref{Path: "@b"}}}},
		},
	}
	out, err := Eval(p, env, reg)
	require.NoError(t, err)
	assert.Equal(t, value.String("0X"), out)
}

func TestMapOmitsMissing(t *testing.T) {
	reg := NewRegistry()
	env := newTestEnv(value.NewObject())

	items := value.Array{value.Int(1), value.Int(2), value.Int(3)}
	p := Pipeline{
		Start: Literal{Value: items},
		Steps: []Step{
			MapStep{Body: Pipeline{
				Start: Current{},
				Steps: []Step{IfStep{
					Cond: Compare{Op: OpEq, Lhs: Pipeline{Start: Ref{Path: "@item"}}, Rhs: Pipeline{Start: Literal{Value: value.Int(2)}}},
					Then: Pipeline{Start: Literal{Value: value.MissingValue}},
					Else: &Pipeline{Start: Current{}},
				}},
			}},
		},
	}
	out, err := Eval(p, env, reg)
	require.NoError(t, err)
	assert.Equal(t, value.Array{value.Int(1), value.Int(3)}, out)
}

func TestMapOnMissingIsMissing(t *testing.T) {
	reg := NewRegistry()
	env := newTestEnv(value.NewObject())
	p := Pipeline{Start: Literal{Value: value.MissingValue}, Steps: []Step{MapStep{Body: Pipeline{Start: Current{}}}}}
	out, err := Eval(p, env, reg)
	require.NoError(t, err)
	assert.True(t, value.IsMissing(out))
}

func TestMapOnEmptyArrayIsEmpty(t *testing.T) {
	reg := NewRegistry()
	env := newTestEnv(value.NewObject())
	p := Pipeline{Start: Literal{Value: value.Array{}}, Steps: []Step{MapStep{Body: Pipeline{Start: Current{}}}}}
	out, err := Eval(p, env, reg)
	require.NoError(t, err)
	assert.Equal(t, value.Array{}, out)
}

func TestMapOnNonArrayIsTypeMismatch(t *testing.T) {
	reg := NewRegistry()
	env := newTestEnv(value.NewObject())
	p := Pipeline{Start: Literal{Value: value.Int(1)}, Steps: []Step{MapStep{Body: Pipeline{Start: Current{}}}}}
	_, err := Eval(p, env, reg)
	assert.Error(t, err)
}

func TestFilterOpWithItemBound(t *testing.T) {
	reg := NewRegistry()
	env := newTestEnv(value.NewObject())
	arr := value.Array{value.Int(1), value.Int(2), value.Int(3), value.Int(4)}
	p := Pipeline{
		Start: Literal{Value: arr},
		Steps: []Step{OpStep{Name: "filter", Args: []Pipeline{{
			Start: Current{},
			Steps: []Step{OpStep{Name: ">", Args: []Pipeline{{Start: Literal{Value: value.Int(2)}}}}},
		}}}},
	}
	out, err := Eval(p, env, reg)
	require.NoError(t, err)
	assert.Equal(t, value.Array{value.Int(3), value.Int(4)}, out)
}

func TestZipWithCombinesElementwise(t *testing.T) {
	reg := NewRegistry()
	env := newTestEnv(value.NewObject())
	p := Pipeline{
		Start: Literal{Value: value.Array{value.Int(1), value.Int(2), value.Int(3)}},
		Steps: []Step{OpStep{Name: "zip_with", Args: []Pipeline{
			{Start: Literal{Value: value.Array{value.Int(10), value.Int(20), value.Int(30)}}},
			{Start: Ref{Path: "@item[0]"}, Steps: []Step{OpStep{Name: "+", Args: []Pipeline{{Start: Ref{Path: "@item[1]"}}}}}},
		}}},
	}
	out, err := Eval(p, env, reg)
	require.NoError(t, err)
	assert.Equal(t, value.Array{value.Int(11), value.Int(22), value.Int(33)}, out)
}

func TestZipWithTruncatesToShorterArray(t *testing.T) {
	reg := NewRegistry()
	env := newTestEnv(value.NewObject())
	p := Pipeline{
		Start: Literal{Value: value.Array{value.Int(1), value.Int(2), value.Int(3)}},
		Steps: []Step{OpStep{Name: "zip_with", Args: []Pipeline{
			{Start: Literal{Value: value.Array{value.Int(10)}}},
			{Start: Ref{Path: "@item[0]"}, Steps: []Step{OpStep{Name: "+", Args: []Pipeline{{Start: Ref{Path: "@item[1]"}}}}}},
		}}},
	}
	out, err := Eval(p, env, reg)
	require.NoError(t, err)
	assert.Equal(t, value.Array{value.Int(11)}, out)
}

func TestReduceWithAcc(t *testing.T) {
	reg := NewRegistry()
	env := newTestEnv(value.NewObject())
	arr := value.Array{value.Int(1), value.Int(2), value.Int(3)}
	p := Pipeline{
		Start: Literal{Value: arr},
		Steps: []Step{OpStep{Name: "reduce", Args: []Pipeline{{
			Start: Ref{Path: "@acc"},
			Steps: []Step{OpStep{Name: "+", Args: []Pipeline{{Start: Ref{Path: "@item"}}}}},
		}}}},
	}
	out, err := Eval(p, env, reg)
	require.NoError(t, err)
	assert.Equal(t, value.Int(6), out)
}

func TestFoldWithInit(t *testing.T) {
	reg := NewRegistry()
	env := newTestEnv(value.NewObject())
	arr := value.Array{value.Int(1), value.Int(2), value.Int(3)}
	p := Pipeline{
		Start: Literal{Value: arr},
		Steps: []Step{OpStep{Name: "fold", Args: []Pipeline{
			{Start: Literal{Value: value.Int(10)}},
			{Start: Ref{Path: "@acc"}, Steps: []Step{OpStep{Name: "+", Args: []Pipeline{{Start: Ref{Path: "@item"}}}}}},
		}}},
	}
	out, err := Eval(p, env, reg)
	require.NoError(t, err)
	assert.Equal(t, value.Int(16), out)
}

func TestSortByStable(t *testing.T) {
	reg := NewRegistry()
	env := newTestEnv(value.NewObject())
	mk := func(s, tag int64) *value.Object {
		o := value.NewObject()
		o.Set("s", value.Int(s))
		o.Set("tag", value.Int(tag))
		return o
	}
	arr := value.Array{mk(1, 1), mk(3, 2), mk(1, 3)}
	p := Pipeline{
		Start: Literal{Value: arr},
		Steps: []Step{OpStep{Name: "sort_by", Args: []Pipeline{{Start: Ref{Path: "@item.s"}}}}},
	}
	out, err := Eval(p, env, reg)
	require.NoError(t, err)
	got := out.(value.Array)
	require.Len(t, got, 3)
	tag0, _ := got[0].(*value.Object).Get("tag")
	tag1, _ := got[1].(*value.Object).Get("tag")
	assert.Equal(t, value.Int(1), tag0, "stable sort keeps original relative order for equal keys")
	assert.Equal(t, value.Int(3), tag1)
}

func TestArithmeticIntFloatPromotion(t *testing.T) {
	reg := NewRegistry()
	env := newTestEnv(value.NewObject())
	p := Pipeline{Start: Literal{Value: value.Int(3)}, Steps: []Step{OpStep{Name: "+", Args: []Pipeline{{Start: Literal{Value: value.Float(0.5)}}}}}}
	out, err := Eval(p, env, reg)
	require.NoError(t, err)
	assert.Equal(t, value.Float(3.5), out)
}

func TestDivisionByZero(t *testing.T) {
	reg := NewRegistry()
	env := newTestEnv(value.NewObject())
	p := Pipeline{Start: Literal{Value: value.Int(1)}, Steps: []Step{OpStep{Name: "/", Args: []Pipeline{{Start: Literal{Value: value.Int(0)}}}}}}
	_, err := Eval(p, env, reg)
	assert.ErrorIs(t, err, ErrArithmetic)
}

func TestConditionTypeStrictness(t *testing.T) {
	reg := NewRegistry()
	env := newTestEnv(value.NewObject())

	ok, err := EvalCondition(Compare{Op: OpEq, Lhs: Pipeline{Start: Literal{Value: value.Int(1)}}, Rhs: Pipeline{Start: Literal{Value: value.String("1")}}}, env, reg)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = EvalCondition(Compare{Op: OpEq, Lhs: Pipeline{Start: Literal{Value: value.Int(1)}}, Rhs: Pipeline{Start: Literal{Value: value.Float(1.0)}}}, env, reg)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = EvalCondition(Compare{Op: OpGt, Lhs: Pipeline{Start: Literal{Value: value.String("2")}}, Rhs: Pipeline{Start: Literal{Value: value.String("10")}}}, env, reg)
	require.NoError(t, err)
	assert.True(t, ok, "numeric string comparison")

	ok, err = EvalCondition(Compare{Op: OpGt, Lhs: Pipeline{Start: Literal{Value: value.String("b")}}, Rhs: Pipeline{Start: Literal{Value: value.String("aa")}}}, env, reg)
	require.NoError(t, err)
	assert.True(t, ok, "lexicographic fallback")
}

func TestAllAnyShortCircuit(t *testing.T) {
	reg := NewRegistry()
	env := newTestEnv(value.NewObject())

	trueCond := Compare{Op: OpEq, Lhs: Pipeline{Start: Literal{Value: value.Int(1)}}, Rhs: Pipeline{Start: Literal{Value: value.Int(1)}}}
	falseCond := Compare{Op: OpEq, Lhs: Pipeline{Start: Literal{Value: value.Int(1)}}, Rhs: Pipeline{Start: Literal{Value: value.Int(2)}}}

	ok, err := EvalCondition(All{Children: []Condition{trueCond, falseCond}}, env, reg)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = EvalCondition(Any{Children: []Condition{falseCond, trueCond}}, env, reg)
	require.NoError(t, err)
	assert.True(t, ok)
}
