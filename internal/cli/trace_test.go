package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rulemorph/rulemorph/internal/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceCommandJSONOutput(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "one.yaml", `
version: 2
input: {format: json, json: {records_path: r}}
mappings:
  - target: n
    source: n
`)
	inputPath := writeRuleFile(t, dir, "input.json", `{"r":[{"n":1},{"n":2}]}`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Root: dir}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"one.yaml", inputPath})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string         `json:"status"`
		Data   trace.Document `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Len(t, resp.Data.Records, 2)
	assert.Equal(t, "normal", resp.Data.Rule.Type)
}
