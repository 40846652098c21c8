package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRuleFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunCommandTextOutput(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "double.yaml", `
version: 2
input: {format: json, json: {records_path: r}}
mappings:
  - target: doubled
    expr: ["@input.n", {"*": [2]}]
`)
	inputPath := writeRuleFile(t, dir, "input.json", `{"r":[{"n":1},{"n":2}]}`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Root: dir}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"double.yaml", inputPath})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), `"doubled":2`)
	assert.Contains(t, buf.String(), `"doubled":4`)
}

func TestRunCommandJSONOutput(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "pass.yaml", `
version: 2
input: {format: json, json: {records_path: r}}
mappings:
  - target: n
    source: n
`)
	inputPath := writeRuleFile(t, dir, "input.json", `{"r":[{"n":1}]}`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json", Root: dir}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"pass.yaml", inputPath})

	require.NoError(t, cmd.Execute())

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestRunCommandMissingInputFileIsCommandError(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "pass.yaml", `
version: 2
input: {format: json, json: {records_path: r}}
mappings: [{target: ok, value: true}]
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Root: dir}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"pass.yaml", filepath.Join(dir, "missing.json")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
