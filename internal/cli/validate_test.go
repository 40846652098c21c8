package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommandCleanRule(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "ok.yaml", `
version: 2
input: {format: json, json: {records_path: r}}
mappings: [{target: ok, value: true}]
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Root: dir}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"ok.yaml"})

	require.NoError(t, cmd.Execute())
}

func TestValidateCommandReportsCycleAsFailure(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "a.yaml", `
version: 2
input: {format: json, json: {records_path: r}}
steps:
  - branch: {when: {eq: [1, 1]}, then: ./a.yaml, return: true}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Root: dir}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"a.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.NotEmpty(t, buf.String())
}
