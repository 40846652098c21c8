package finalize

import (
	"testing"

	"github.com/rulemorph/rulemorph/internal/pipe"
	"github.com/rulemorph/rulemorph/internal/rule"
	"github.com/rulemorph/rulemorph/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finalizeOf(t *testing.T, doc string) rule.Finalize {
	t.Helper()
	r, err := rule.ParseBytes([]byte(doc))
	require.NoError(t, err)
	require.True(t, r.HasFinalize)
	return r.Finalize
}

func rec(fields map[string]value.Value) value.Value {
	o := value.NewObject()
	for k, v := range fields {
		o.Set(k, v)
	}
	return o
}

func TestRunFilterSortLimit(t *testing.T) {
	f := finalizeOf(t, `
version: 2
input: {format: json, json: {records_path: r}}
mappings: [{target: n, source: n}]
finalize:
  filter: {gt: ["@item.n", 0]}
  sort: {by: n, order: asc}
  limit: 2
`)
	records := []value.Value{
		rec(map[string]value.Value{"n": value.Int(3)}),
		rec(map[string]value.Value{"n": value.Int(-1)}),
		rec(map[string]value.Value{"n": value.Int(1)}),
		rec(map[string]value.Value{"n": value.Int(2)}),
	}

	out, err := Run(f, records, value.NullValue, pipe.NewRegistry())
	require.NoError(t, err)
	arr := out.(value.Array)
	require.Len(t, arr, 2)
	n0, _ := arr[0].(*value.Object).Get("n")
	n1, _ := arr[1].(*value.Object).Get("n")
	assert.Equal(t, value.Int(1), n0)
	assert.Equal(t, value.Int(2), n1)
}

func TestSortMissingKeyOrder(t *testing.T) {
	f := finalizeOf(t, `
version: 2
input: {format: json, json: {records_path: r}}
mappings: [{target: n, source: n}]
finalize:
  sort: {by: n, order: asc}
`)
	withKey := rec(map[string]value.Value{"n": value.Int(1)})
	withoutKey := rec(map[string]value.Value{"other": value.Int(9)})
	records := []value.Value{withKey, withoutKey}

	out, err := Run(f, records, value.NullValue, pipe.NewRegistry())
	require.NoError(t, err)
	arr := out.(value.Array)
	require.Len(t, arr, 2)
	assert.Same(t, withKey, arr[0])
	assert.Same(t, withoutKey, arr[1])
}

func TestSortMissingKeyOrderDescending(t *testing.T) {
	f := finalizeOf(t, `
version: 2
input: {format: json, json: {records_path: r}}
mappings: [{target: n, source: n}]
finalize:
  sort: {by: n, order: desc}
`)
	withKey := rec(map[string]value.Value{"n": value.Int(1)})
	withoutKey := rec(map[string]value.Value{"other": value.Int(9)})
	records := []value.Value{withKey, withoutKey}

	out, err := Run(f, records, value.NullValue, pipe.NewRegistry())
	require.NoError(t, err)
	arr := out.(value.Array)
	require.Len(t, arr, 2)
	assert.Same(t, withoutKey, arr[0])
	assert.Same(t, withKey, arr[1])
}

func TestOffsetLimitClamped(t *testing.T) {
	f := finalizeOf(t, `
version: 2
input: {format: json, json: {records_path: r}}
mappings: [{target: n, source: n}]
finalize:
  offset: 5
  limit: 10
`)
	records := []value.Value{
		rec(map[string]value.Value{"n": value.Int(1)}),
		rec(map[string]value.Value{"n": value.Int(2)}),
	}
	out, err := Run(f, records, value.NullValue, pipe.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, value.Array{}, out)
}

func TestWrapWithMeta(t *testing.T) {
	f := finalizeOf(t, `
version: 2
input: {format: json, json: {records_path: r}}
mappings: [{target: n, source: n}]
finalize:
  wrap:
    data: "@out"
    meta:
      total: ["@out", len]
`)
	records := []value.Value{
		rec(map[string]value.Value{"n": value.Int(1)}),
		rec(map[string]value.Value{"n": value.Int(2)}),
		rec(map[string]value.Value{"n": value.Int(3)}),
	}
	out, err := Run(f, records, value.NullValue, pipe.NewRegistry())
	require.NoError(t, err)
	obj := out.(*value.Object)

	data, ok := obj.Get("data")
	require.True(t, ok)
	assert.Equal(t, value.Array(records), data)

	meta, ok := obj.Get("meta")
	require.True(t, ok)
	total, ok := meta.(*value.Object).Get("total")
	require.True(t, ok)
	assert.Equal(t, value.Int(3), total)
}

func TestRunNoFinalizeReturnsArrayUnchanged(t *testing.T) {
	var f rule.Finalize
	records := []value.Value{rec(map[string]value.Value{"n": value.Int(1)})}
	out, err := Run(f, records, value.NullValue, pipe.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, value.Array(records), out)
}
