package tracestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rulemorph/rulemorph/internal/rule"
	"github.com/rulemorph/rulemorph/internal/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "traces.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWriteReadTraceRoundTrips(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	doc := trace.Document{
		TraceID:   "trace-1",
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Rule:      trace.RuleRef{Name: "w", Path: "w.yaml", Type: "normal", Version: 2},
		Records: []trace.Record{
			{Index: 0, Status: "ok", DurationUS: 42, Input: map[string]interface{}{"a": 1.0}},
		},
	}

	require.NoError(t, s.WriteTrace(ctx, doc))

	got, err := s.ReadTrace(ctx, "trace-1")
	require.NoError(t, err)
	assert.Equal(t, doc.TraceID, got.TraceID)
	assert.Equal(t, doc.Rule, got.Rule)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "ok", got.Records[0].Status)
}

func TestWriteTraceOverwritesSameID(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	doc := trace.Document{TraceID: "t-1", Rule: trace.RuleRef{Path: "w.yaml"}, Records: []trace.Record{{Index: 0, Status: "ok"}}}
	require.NoError(t, s.WriteTrace(ctx, doc))

	doc.Records = []trace.Record{{Index: 0, Status: "error"}}
	require.NoError(t, s.WriteTrace(ctx, doc))

	got, err := s.ReadTrace(ctx, "t-1")
	require.NoError(t, err)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "error", got.Records[0].Status)
}

func TestReadTraceMissingErrors(t *testing.T) {
	s := openTemp(t)
	_, err := s.ReadTrace(context.Background(), "nope")
	assert.Error(t, err)
}

func TestWriteReadCallGraphRoundTrips(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	doc := rule.GraphDocument{
		Nodes: []rule.GraphNode{
			{ID: "main.yaml", Label: "main.yaml", Kind: "normal", Path: "main.yaml", Ops: []rule.GraphOp{{Label: "mappings"}}},
			{ID: "sub.yaml", Label: "sub.yaml", Kind: "normal", Path: "sub.yaml"},
		},
		Edges: []rule.GraphEdge{
			{Source: "main.yaml", Target: "sub.yaml", Label: "branch: then", Kind: "branch"},
		},
	}

	require.NoError(t, s.WriteCallGraph(ctx, "main.yaml", doc))

	got, err := s.ReadCallGraph(ctx, "main.yaml")
	require.NoError(t, err)
	require.Len(t, got.Nodes, 2)
	require.Len(t, got.Edges, 1)
	assert.Equal(t, "main.yaml", got.Nodes[0].ID)
	assert.Equal(t, "branch", got.Edges[0].Kind)
}

func TestWriteCallGraphReplacesPriorSnapshot(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	first := rule.GraphDocument{Nodes: []rule.GraphNode{{ID: "a.yaml"}, {ID: "b.yaml"}}}
	require.NoError(t, s.WriteCallGraph(ctx, "a.yaml", first))

	second := rule.GraphDocument{Nodes: []rule.GraphNode{{ID: "a.yaml"}}}
	require.NoError(t, s.WriteCallGraph(ctx, "a.yaml", second))

	got, err := s.ReadCallGraph(ctx, "a.yaml")
	require.NoError(t, err)
	assert.Len(t, got.Nodes, 1)
}
