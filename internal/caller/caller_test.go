package caller

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rulemorph/rulemorph/internal/pipe"
	"github.com/rulemorph/rulemorph/internal/rule"
	"github.com/rulemorph/rulemorph/internal/transport"
	"github.com/rulemorph/rulemorph/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRule(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestCallerDispatchesBranchToNormalRule(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "main.yaml", `
version: 2
input: {format: json, json: {records_path: r}}
steps:
  - mappings: [{target: a, source: a}]
  - branch: {when: {eq: [1, 1]}, then: ./sub.yaml, return: true}
`)
	writeRule(t, dir, "sub.yaml", `
version: 2
input: {format: json, json: {records_path: r}}
mappings: [{target: doubled, expr: ["@input.a", {"*": [2]}]}]
`)

	reg := pipe.NewRegistry()
	loader := rule.NewLoader(dir, reg)
	docs, diags, err := loader.Load("main.yaml")
	require.NoError(t, err)
	require.Empty(t, diags)

	c := New(docs, reg, nil)
	call := c.Bound()

	mainPath := filepath.Join(dir, "main.yaml")
	out, _, cerr := call("./sub.yaml", filepath.Dir(mainPath), inputObj(map[string]value.Value{"a": value.Int(3)}), value.NullValue)
	require.Nil(t, cerr)
	obj := out.(*value.Object)
	doubled, ok := obj.Get("doubled")
	require.True(t, ok)
	assert.Equal(t, value.Int(6), doubled)
}

func TestCallerMaxDepthExceeded(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "a.yaml", `
version: 2
input: {format: json, json: {records_path: r}}
mappings: [{target: ok, value: true}]
`)
	reg := pipe.NewRegistry()
	loader := rule.NewLoader(dir, reg)
	docs, diags, err := loader.Load("a.yaml")
	require.NoError(t, err)
	require.Empty(t, diags)

	c := New(docs, reg, nil)
	c.MaxDepth = 0
	call := c.Bound()
	_, _, cerr := call("./a.yaml", dir, inputObj(nil), value.NullValue)
	require.NotNil(t, cerr)
}

type fakeTransport struct {
	resp transport.Response
	err  error
}

func (f fakeTransport) Do(ctx context.Context, req transport.Request) (transport.Response, error) {
	return f.resp, f.err
}

func TestCallerNetworkSuccessWithSelect(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "net.yaml", `
version: 2
type: network
request:
  method: GET
  url: ["lit:http://example.invalid/api"]
  timeout: 5s
  select: data.items
`)
	reg := pipe.NewRegistry()
	loader := rule.NewLoader(dir, reg)
	docs, diags, err := loader.Load("net.yaml")
	require.NoError(t, err)
	require.Empty(t, diags)

	body, _ := value.Unmarshal([]byte(`{"data":{"items":[1,2,3]}}`))
	tr := fakeTransport{resp: transport.Response{Status: 200, BodyJSON: body}}
	c := New(docs, reg, tr)
	call := c.Bound()

	out, _, cerr := call("./net.yaml", dir, inputObj(nil), value.NullValue)
	require.Nil(t, cerr)
	assert.Equal(t, value.Array{value.Int(1), value.Int(2), value.Int(3)}, out)
}

func TestCallerNetworkCatchOnStatus(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "net.yaml", `
version: 2
type: network
request:
  method: GET
  url: ["lit:http://example.invalid/api"]
  timeout: 5s
  catch: {"4xx": ./fallback.yaml}
`)
	writeRule(t, dir, "fallback.yaml", `
version: 2
input: {format: json, json: {records_path: r}}
mappings: [{target: handled, value: true}]
`)
	reg := pipe.NewRegistry()
	loader := rule.NewLoader(dir, reg)
	docs, diags, err := loader.Load("net.yaml")
	require.NoError(t, err)
	require.Empty(t, diags)

	tr := fakeTransport{resp: transport.Response{Status: 404}}
	c := New(docs, reg, tr)
	call := c.Bound()

	out, _, cerr := call("./net.yaml", dir, inputObj(nil), value.NullValue)
	require.Nil(t, cerr)
	obj := out.(*value.Object)
	v, ok := obj.Get("handled")
	require.True(t, ok)
	assert.Equal(t, value.Bool(true), v)
}

func inputObj(fields map[string]value.Value) value.Value {
	o := value.NewObject()
	for k, v := range fields {
		o.Set(k, v)
	}
	return o
}
