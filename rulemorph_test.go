package rulemorph

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rulemorph/rulemorph/internal/testutil"
	"github.com/rulemorph/rulemorph/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRule(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestTransformCSVMappingsToJSON(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "greet.yaml", `
version: 2
input: {format: csv, csv: {has_header: true}}
mappings:
  - target: name
    source: name
  - target: greeting
    expr: ["@input.name", trim, uppercase]
`)

	rt := New(dir)
	stream, err := rt.Transform("greet.yaml", []byte("name\n ada \nlin\n"), value.NullValue)
	require.NoError(t, err)

	out, err := Collect(stream)
	require.NoError(t, err)
	require.Len(t, out, 2)

	first := out[0].(*value.Object)
	name, _ := first.Get("name")
	greeting, _ := first.Get("greeting")
	assert.Equal(t, value.String(" ada "), name)
	assert.Equal(t, value.String("ADA"), greeting)
}

func TestTransformSkippedRecordOmittedFromStream(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "even.yaml", `
version: 2
input: {format: json, json: {records_path: r}}
record_when: {gt: ["@input.n", 2]}
mappings:
  - target: n
    source: n
`)

	rt := New(dir)
	stream, err := rt.Transform("even.yaml", []byte(`{"r":[{"n":1},{"n":2},{"n":3},{"n":4}]}`), value.NullValue)
	require.NoError(t, err)

	out, err := Collect(stream)
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestTransformFinalizeWrapProducesSingleDocument(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "wrapped.yaml", `
version: 2
input: {format: json, json: {records_path: r}}
mappings:
  - target: n
    source: n
finalize:
  wrap:
    items: "@out"
    count: ["@out", len]
`)

	rt := New(dir)
	stream, err := rt.Transform("wrapped.yaml", []byte(`{"r":[{"n":1},{"n":2}]}`), value.NullValue)
	require.NoError(t, err)

	out, err := Collect(stream)
	require.NoError(t, err)
	require.Len(t, out, 1, "a wrapped finalize output is a single envelope document")

	obj := out[0].(*value.Object)
	count, ok := obj.Get("count")
	require.True(t, ok)
	assert.Equal(t, value.Int(2), count)
}

func TestValidateRuleReportsCycle(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "a.yaml", `
version: 2
input: {format: json, json: {records_path: r}}
steps:
  - branch: {when: {eq: [1, 1]}, then: ./a.yaml, return: true}
`)

	rt := New(dir)
	diags, err := rt.ValidateRule("a.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, diags)
}

func TestBuildCallGraphFollowsBranch(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "a.yaml", `
version: 2
input: {format: json, json: {records_path: r}}
steps:
  - branch: {when: {eq: [1, 1]}, then: ./b.yaml, return: true}
`)
	writeRule(t, dir, "b.yaml", `
version: 2
input: {format: json, json: {records_path: r}}
mappings: [{target: ok, value: true}]
`)

	rt := New(dir)
	graph, err := rt.BuildCallGraph("a.yaml")
	require.NoError(t, err)
	assert.Len(t, graph.Nodes, 2)
	require.Len(t, graph.Edges, 1)
	assert.Equal(t, "branch", graph.Edges[0].Kind)
}

func TestTransformDispatchesBranchToOtherRule(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "a.yaml", `
version: 2
input: {format: json, json: {records_path: r}}
steps:
  - mappings: [{target: n, source: n}]
  - branch: {when: {eq: [1, 1]}, then: ./b.yaml, return: true}
`)
	writeRule(t, dir, "b.yaml", `
version: 2
input: {format: json, json: {records_path: r}}
mappings:
  - target: doubled
    expr: ["@input.n", {"*": [2]}]
`)

	rt := New(dir)
	stream, err := rt.Transform("a.yaml", []byte(`{"r":[{"n":3}]}`), value.NullValue)
	require.NoError(t, err)

	out, err := Collect(stream)
	require.NoError(t, err)
	require.Len(t, out, 1)
	obj := out[0].(*value.Object)
	doubled, ok := obj.Get("doubled")
	require.True(t, ok)
	assert.Equal(t, value.Int(6), doubled)
}

func TestTransformWithTraceProducesDeterministicDocument(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "one.yaml", `
version: 2
input: {format: json, json: {records_path: r}}
mappings:
  - target: n
    source: n
`)

	clock := testutil.NewFixedClock(time.Unix(0, 0).UTC(), time.Millisecond)
	ids := testutil.NewFixedIDGenerator("trace-fixed")
	rt := New(dir, WithClock(clock), WithIDGenerator(ids))

	stream, doc, err := rt.TransformWithTrace("one.yaml", []byte(`{"r":[{"n":1},{"n":2}]}`), value.NullValue)
	require.NoError(t, err)
	assert.Equal(t, "trace-fixed", doc.TraceID)
	assert.Equal(t, "normal", doc.Rule.Type)
	require.Len(t, doc.Records, 2)
	assert.Equal(t, "ok", doc.Records[0].Status)

	out, err := Collect(stream)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestParseRuleWithoutLoaderRoot(t *testing.T) {
	r, err := ParseRule([]byte(`
version: 2
input: {format: json, json: {records_path: r}}
mappings: [{target: ok, value: true}]
`))
	require.NoError(t, err)
	assert.True(t, r.HasMappings)
}

func TestDiagnosticsErrorJoinsMessages(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "bad.yaml", `
version: 2
input: {format: json, json: {records_path: r}}
mappings:
  - target: x
`)
	rt := New(dir)
	diags, err := rt.ValidateRule("bad.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, diags)
	assert.NotEmpty(t, diags.Error())
}
