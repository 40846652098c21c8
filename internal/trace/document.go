// Package trace builds the JSON trace document spec §4.9/§6 defines:
// one document per rule invocation, one TraceRecord per input record,
// nested StepTrace nodes for each mapping/record_when/asserts/branch a
// record's evaluation touches. Field names match spec §6's "field names
// are part of the public contract" verbatim, since the persisted
// documents are consumed by an external UI this repo does not build.
//
// trace_id generation uses google/uuid's UUIDv7; the document shape is
// a per-record step tree keyed by trace id rather than a flat
// invocation/completion event log.
package trace

import "time"

// RuleRef describes the rule a trace document was recorded against.
type RuleRef struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Type    string `json:"type"`
	Version int    `json:"version"`
}

// Document is the top-level trace document (spec §6).
type Document struct {
	TraceID   string        `json:"trace_id"`
	Timestamp time.Time     `json:"timestamp"`
	Rule      RuleRef       `json:"rule"`
	RuleSource string       `json:"rule_source,omitempty"`
	Records   []Record      `json:"records"`
	Finalize  *FinalizeNode `json:"finalize,omitempty"`
}

// Record is one input record's evaluation trace (spec §4.9).
type Record struct {
	Index      int         `json:"index"`
	Status     string      `json:"status"` // ok|skipped|error
	DurationUS int64       `json:"duration_us"`
	Input      interface{} `json:"input"`
	Output     interface{} `json:"output,omitempty"`
	Nodes      []Step      `json:"nodes"`
}

// OpTrace captures one op application inside a pipeline step (spec
// §4.9's "op children"). PipeSteps records intra-op transitions for
// multi-step pipelines (e.g. a mapping's expr chain).
type OpTrace struct {
	Input     interface{}   `json:"input"`
	PipeValue interface{}   `json:"pipe_value,omitempty"`
	Args      []interface{} `json:"args,omitempty"`
	Output    interface{}   `json:"output"`
	PipeSteps []PipeStep    `json:"pipe_steps,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// PipeStep is one intra-op transition within an op's pipeline chain.
type PipeStep struct {
	Op     string      `json:"op"`
	Input  interface{} `json:"input"`
	Output interface{} `json:"output"`
}

// Meta carries the step-kind-specific detail spec §4.9 lists: rule
// references for branch/network dispatch, the branch taken, and the
// boolean outcome of a record_when/asserts evaluation.
type Meta struct {
	RuleRef      string   `json:"rule_ref,omitempty"`
	RuleRefs     []string `json:"rule_refs,omitempty"`
	RuleRefLabel string   `json:"rule_ref_label,omitempty"`
	BranchTaken  string   `json:"branch_taken,omitempty"` // then|else|none
	RecordWhen   *bool    `json:"record_when,omitempty"`
	AssertsOK    *bool    `json:"asserts_ok,omitempty"`
}

// Step is one node in a record's evaluation tree: a mapping, a
// record_when check, an asserts list, or a branch dispatch.
type Step struct {
	Kind       string      `json:"kind"` // mapping|record_when|asserts|branch
	Label      string      `json:"label"`
	Status     string      `json:"status"` // ok|warning|error
	DurationUS int64       `json:"duration_us"`
	Input      interface{} `json:"input,omitempty"`
	Output     interface{} `json:"output,omitempty"`
	Op         *OpTrace    `json:"op,omitempty"`
	Error      string      `json:"error,omitempty"`
	Meta       *Meta       `json:"meta,omitempty"`

	// ChildTrace nests the callee's own record trace when this step
	// dispatched to another rule (branch, network.body_rule).
	ChildTrace *Record `json:"child_trace,omitempty"`
}

// FinalizeNode is the optional trace of the finalize stage.
type FinalizeNode struct {
	Nodes  []Step      `json:"nodes,omitempty"`
	Input  interface{} `json:"input"`
	Output interface{} `json:"output,omitempty"`
	Status string      `json:"status"`
}
