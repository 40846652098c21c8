package trace

import (
	"time"

	"github.com/google/uuid"
	"github.com/rulemorph/rulemorph/internal/value"
)

// Clock abstracts wall-clock time so trace timestamps and durations are
// reproducible in tests: a real clock in production, a fixed one under
// test (internal/testutil.FixedClock).
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock, backed by time.Now.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// IDGenerator produces trace_id values. UUIDv7Generator is the default
// (time-sortable); tests substitute a fixed sequence.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 trace ids.
type UUIDv7Generator struct{}

// Generate implements IDGenerator.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Recorder assembles one Document across the records of a single rule
// invocation. A nil *Recorder is valid and every method on it is a
// no-op, so callers thread an optional recorder through the record
// engine and caller without a separate enabled/disabled flag.
type Recorder struct {
	clock Clock
	ids   IDGenerator
	doc   Document
}

// New starts a Recorder for one invocation of r.
func New(clock Clock, ids IDGenerator, ruleName, rulePath, ruleType string, version int) *Recorder {
	return &Recorder{
		clock: clock,
		ids:   ids,
		doc: Document{
			TraceID:   ids.Generate(),
			Timestamp: clock.Now(),
			Rule:      RuleRef{Name: ruleName, Path: rulePath, Type: ruleType, Version: version},
		},
	}
}

// RecordBuilder accumulates Step nodes for a single input record.
type RecordBuilder struct {
	r     *Recorder
	index int
	start time.Time
	input value.Value
	steps []Step
}

// BeginRecord starts a record-level trace. Safe to call on a nil
// Recorder; the returned builder's methods are then no-ops.
func (r *Recorder) BeginRecord(index int, input value.Value) *RecordBuilder {
	if r == nil {
		return nil
	}
	return &RecordBuilder{r: r, index: index, start: r.clock.Now(), input: input}
}

// AddStep appends a completed step node to the record's trace.
func (b *RecordBuilder) AddStep(s Step) {
	if b == nil {
		return
	}
	b.steps = append(b.steps, s)
}

// Finish closes the record trace with its outcome, appends it to the
// owning Recorder's document, and returns the finished Record so a
// caller re-entering the engine for a sub-rule call (spec §4.7) can
// nest it under a parent Step's child_trace (spec §4.9).
func (b *RecordBuilder) Finish(status string, output value.Value) *Record {
	if b == nil {
		return nil
	}
	rec := Record{
		Index:      b.index,
		Status:     status,
		DurationUS: b.r.clock.Now().Sub(b.start).Microseconds(),
		Input:      value.ToJSON(b.input),
		Nodes:      b.steps,
	}
	if output != nil {
		rec.Output = value.ToJSON(output)
	}
	b.r.doc.Records = append(b.r.doc.Records, rec)
	return &b.r.doc.Records[len(b.r.doc.Records)-1]
}

// StepTimer measures one step's duration against the owning Recorder's
// clock, for building a Step's DurationUS field.
func (r *Recorder) StepTimer() time.Time {
	if r == nil {
		return time.Time{}
	}
	return r.clock.Now()
}

// Now returns the current time from b's owning Recorder's clock, or the
// zero time when b is nil.
func (b *RecordBuilder) Now() time.Time {
	if b == nil {
		return time.Time{}
	}
	return b.r.clock.Now()
}

// Elapsed returns the microseconds since start, using b's owning
// Recorder's clock. Returns 0 when b is nil.
func (b *RecordBuilder) Elapsed(start time.Time) int64 {
	if b == nil {
		return 0
	}
	return b.r.clock.Now().Sub(start).Microseconds()
}

// Elapsed returns the microseconds since start, using the Recorder's
// clock. Returns 0 for a nil Recorder.
func (r *Recorder) Elapsed(start time.Time) int64 {
	if r == nil {
		return 0
	}
	return r.clock.Now().Sub(start).Microseconds()
}

// SetFinalize records the finalize stage's trace node.
func (r *Recorder) SetFinalize(node *FinalizeNode) {
	if r == nil {
		return
	}
	r.doc.Finalize = node
}

// SetRuleSource attaches the rule's original source text to the
// document, when the caller opted to include it.
func (r *Recorder) SetRuleSource(src string) {
	if r == nil {
		return
	}
	r.doc.RuleSource = src
}

// Document returns the assembled trace document. Call once, after every
// record has been finished.
func (r *Recorder) Document() Document {
	if r == nil {
		return Document{}
	}
	return r.doc
}

// Emit sends the assembled document to sink, if both are non-nil.
func Emit(r *Recorder, sink Sink) error {
	if r == nil || sink == nil {
		return nil
	}
	return sink.Write(r.Document())
}

// ValJSON renders v for embedding in a trace node, treating a nil Value
// (a field the caller has nothing to report yet) as absent rather than
// JSON null.
func ValJSON(v value.Value) interface{} {
	if v == nil {
		return nil
	}
	return value.ToJSON(v)
}

// BoolPtr is a small helper for Meta's *bool fields.
func BoolPtr(b bool) *bool { return &b }
