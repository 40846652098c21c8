package rule

import (
	"testing"

	"github.com/rulemorph/rulemorph/internal/pipe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, doc string) *Rule {
	t.Helper()
	r, err := ParseBytes([]byte(doc))
	require.NoError(t, err)
	return r
}

func TestValidateMappingsXorSteps(t *testing.T) {
	reg := pipe.NewRegistry()
	r := mustParse(t, `
version: 2
input: {format: json, json: {records_path: r}}
mappings: [{target: a, source: a}]
`)
	r.HasSteps = true // simulate a document that (illegally) sets both
	r.Steps = []Step{{HasMappings: true, Mappings: []Mapping{{Target: "b", HasSource: true, Source: "b"}}}}
	diags := Validate(r, reg)
	found := false
	for _, d := range diags {
		if d.Message == "a normal rule must have exactly one of mappings or steps" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateUnknownOp(t *testing.T) {
	reg := pipe.NewRegistry()
	r := mustParse(t, `
version: 2
input: {format: json, json: {records_path: r}}
mappings:
  - target: a
    expr: ["@input.a", nonexistent_op]
`)
	diags := Validate(r, reg)
	require.NotEmpty(t, diags)
	assert.Contains(t, diags[0].Message, "unknown op")
}

func TestValidateRecordWhenWithStepsRejected(t *testing.T) {
	reg := pipe.NewRegistry()
	r := mustParse(t, `
version: 2
input: {format: json, json: {records_path: r}}
record_when: {eq: ["@input.a", 1]}
steps:
  - mappings: [{target: a, source: a}]
`)
	diags := Validate(r, reg)
	found := false
	for _, d := range diags {
		if d.Message == "top-level record_when cannot be combined with steps" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateMappingExclusivity(t *testing.T) {
	reg := pipe.NewRegistry()
	r := &Rule{
		Version:     2,
		Type:        KindNormal,
		Input:       InputSpec{Format: FormatJSON},
		HasMappings: true,
		Mappings: []Mapping{
			{Target: "a", HasSource: true, Source: "a", HasValue: true},
		},
	}
	diags := Validate(r, reg)
	found := false
	for _, d := range diags {
		if d.Message == "exactly one of source, value, expr must be set" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateGoodDocumentHasNoDiagnostics(t *testing.T) {
	reg := pipe.NewRegistry()
	r := mustParse(t, `
version: 2
input: {format: json, json: {records_path: u}}
mappings:
  - target: name
    expr: ["@input.n", trim, uppercase]
`)
	diags := Validate(r, reg)
	assert.Empty(t, diags)
}
