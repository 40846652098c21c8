package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rulemorph/rulemorph/internal/rule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphCommandJSONOutput(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "a.yaml", `
version: 2
input: {format: json, json: {records_path: r}}
steps:
  - branch: {when: {eq: [1, 1]}, then: ./b.yaml, return: true}
`)
	writeRuleFile(t, dir, "b.yaml", `
version: 2
input: {format: json, json: {records_path: r}}
mappings: [{target: ok, value: true}]
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json", Root: dir}
	cmd := NewGraphCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"a.yaml"})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string             `json:"status"`
		Data   rule.GraphDocument `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Len(t, resp.Data.Nodes, 2)
	require.Len(t, resp.Data.Edges, 1)
	assert.Equal(t, "branch", resp.Data.Edges[0].Kind)
}

func TestGraphCommandTextOutput(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "solo.yaml", `
version: 2
input: {format: json, json: {records_path: r}}
mappings: [{target: ok, value: true}]
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Root: dir}
	cmd := NewGraphCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"solo.yaml"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "node ")
}
