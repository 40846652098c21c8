package trace

import (
	"testing"
	"time"

	"github.com/rulemorph/rulemorph/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fixedIDs struct{ id string }

func (f fixedIDs) Generate() string { return f.id }

func TestRecorderBuildsDocument(t *testing.T) {
	clock := fixedClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := New(clock, fixedIDs{id: "trace-1"}, "widget", "widget.yaml", "normal", 2)

	rb := r.BeginRecord(0, value.String("in"))
	rb.AddStep(Step{Kind: "mapping", Label: "/mappings", Status: "ok"})
	rb.Finish("ok", value.String("out"))

	doc := r.Document()
	assert.Equal(t, "trace-1", doc.TraceID)
	assert.Equal(t, "widget", doc.Rule.Name)
	require.Len(t, doc.Records, 1)
	assert.Equal(t, "ok", doc.Records[0].Status)
	assert.Equal(t, "out", doc.Records[0].Output)
	require.Len(t, doc.Records[0].Nodes, 1)
	assert.Equal(t, "mapping", doc.Records[0].Nodes[0].Kind)
}

func TestNilRecorderIsNoOp(t *testing.T) {
	var r *Recorder
	rb := r.BeginRecord(0, value.NullValue)
	rb.AddStep(Step{Kind: "mapping"})
	rb.Finish("ok", value.NullValue)
	assert.Nil(t, rb)
	assert.Equal(t, Document{}, r.Document())
	assert.NoError(t, Emit(r, NullSink{}))
}

func TestNullSinkDiscards(t *testing.T) {
	assert.NoError(t, NullSink{}.Write(Document{TraceID: "x"}))
}

func TestFuncSinkInvoked(t *testing.T) {
	var got Document
	sink := FuncSink(func(d Document) error {
		got = d
		return nil
	})
	require.NoError(t, sink.Write(Document{TraceID: "abc"}))
	assert.Equal(t, "abc", got.TraceID)
}
