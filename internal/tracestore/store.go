// Package tracestore provides optional durable persistence for trace
// documents and call-graph snapshots: SQLite with WAL mode, a
// single-writer connection pool, and a `traces` +
// `call_graph_nodes`/`call_graph_edges` schema (SPEC_FULL.md §B).
// Exercised by callers that opt into persistence rather than the
// default in-memory sinks (internal/trace.NullSink/WriterSink); the
// record/finalize/caller core never imports this package directly.
package tracestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rulemorph/rulemorph/internal/rule"
	"github.com/rulemorph/rulemorph/internal/trace"
)

func marshalJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

func unmarshalJSON(s string, v interface{}) error {
	return json.Unmarshal([]byte(s), v)
}

const schema = `
CREATE TABLE IF NOT EXISTS traces (
	trace_id   TEXT PRIMARY KEY,
	rule_path  TEXT NOT NULL,
	created_at TEXT NOT NULL,
	document   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS call_graphs (
	rule_path  TEXT PRIMARY KEY,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS call_graph_nodes (
	rule_path TEXT NOT NULL,
	id        TEXT NOT NULL,
	label     TEXT NOT NULL,
	kind      TEXT NOT NULL,
	path      TEXT NOT NULL,
	ops       TEXT NOT NULL,
	PRIMARY KEY (rule_path, id),
	FOREIGN KEY (rule_path) REFERENCES call_graphs(rule_path) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS call_graph_edges (
	rule_path TEXT NOT NULL,
	source    TEXT NOT NULL,
	target    TEXT NOT NULL,
	label     TEXT,
	kind      TEXT NOT NULL,
	FOREIGN KEY (rule_path) REFERENCES call_graphs(rule_path) ON DELETE CASCADE
);
`

// Store is a durable sink for trace documents and call-graph snapshots.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at path, applying WAL mode
// and the core schema. Idempotent: safe to call against an existing
// database file.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("tracestore: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("tracestore: connect: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("tracestore: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("tracestore: pragma %q: %w", p, err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WriteTrace persists doc, keyed by its own trace_id. A second write
// with the same trace_id overwrites the prior document (a rule
// evaluated and traced twice under the same id supersedes, it doesn't
// duplicate).
func (s *Store) WriteTrace(ctx context.Context, doc trace.Document) error {
	body, err := marshalJSON(doc)
	if err != nil {
		return fmt.Errorf("tracestore: marshal trace: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO traces (trace_id, rule_path, created_at, document)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(trace_id) DO UPDATE SET document = excluded.document
	`, doc.TraceID, doc.Rule.Path, doc.Timestamp.Format(rfc3339), body)
	if err != nil {
		return fmt.Errorf("tracestore: write trace: %w", err)
	}
	return nil
}

// ReadTrace loads a previously written trace document by id.
func (s *Store) ReadTrace(ctx context.Context, traceID string) (trace.Document, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM traces WHERE trace_id = ?`, traceID).Scan(&body)
	if err != nil {
		return trace.Document{}, fmt.Errorf("tracestore: read trace %q: %w", traceID, err)
	}
	var doc trace.Document
	if err := unmarshalJSON(body, &doc); err != nil {
		return trace.Document{}, fmt.Errorf("tracestore: decode trace %q: %w", traceID, err)
	}
	return doc, nil
}

// WriteCallGraph persists a call-graph snapshot for rulePath, replacing
// any previously stored snapshot for the same path.
func (s *Store) WriteCallGraph(ctx context.Context, rulePath string, doc rule.GraphDocument) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tracestore: write call graph: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO call_graphs (rule_path, created_at) VALUES (?, datetime('now'))
		ON CONFLICT(rule_path) DO UPDATE SET created_at = excluded.created_at
	`, rulePath); err != nil {
		return fmt.Errorf("tracestore: write call graph: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM call_graph_nodes WHERE rule_path = ?`, rulePath); err != nil {
		return fmt.Errorf("tracestore: clear nodes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM call_graph_edges WHERE rule_path = ?`, rulePath); err != nil {
		return fmt.Errorf("tracestore: clear edges: %w", err)
	}

	for _, n := range doc.Nodes {
		opsJSON, err := marshalJSON(n.Ops)
		if err != nil {
			return fmt.Errorf("tracestore: marshal ops: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO call_graph_nodes (rule_path, id, label, kind, path, ops)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rulePath, n.ID, n.Label, n.Kind, n.Path, opsJSON); err != nil {
			return fmt.Errorf("tracestore: write node %q: %w", n.ID, err)
		}
	}
	for _, e := range doc.Edges {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO call_graph_edges (rule_path, source, target, label, kind)
			VALUES (?, ?, ?, ?, ?)
		`, rulePath, e.Source, e.Target, e.Label, e.Kind); err != nil {
			return fmt.Errorf("tracestore: write edge %s->%s: %w", e.Source, e.Target, err)
		}
	}

	return tx.Commit()
}

// ReadCallGraph reconstructs a call-graph document for rulePath from
// its persisted nodes and edges.
func (s *Store) ReadCallGraph(ctx context.Context, rulePath string) (rule.GraphDocument, error) {
	var doc rule.GraphDocument

	nodeRows, err := s.db.QueryContext(ctx, `
		SELECT id, label, kind, path, ops FROM call_graph_nodes WHERE rule_path = ? ORDER BY id
	`, rulePath)
	if err != nil {
		return doc, fmt.Errorf("tracestore: read nodes: %w", err)
	}
	defer nodeRows.Close()
	for nodeRows.Next() {
		var n rule.GraphNode
		var opsJSON string
		if err := nodeRows.Scan(&n.ID, &n.Label, &n.Kind, &n.Path, &opsJSON); err != nil {
			return doc, fmt.Errorf("tracestore: scan node: %w", err)
		}
		if err := unmarshalJSON(opsJSON, &n.Ops); err != nil {
			return doc, fmt.Errorf("tracestore: decode ops: %w", err)
		}
		doc.Nodes = append(doc.Nodes, n)
	}
	if err := nodeRows.Err(); err != nil {
		return doc, fmt.Errorf("tracestore: iterate nodes: %w", err)
	}

	edgeRows, err := s.db.QueryContext(ctx, `
		SELECT source, target, label, kind FROM call_graph_edges WHERE rule_path = ? ORDER BY source, target
	`, rulePath)
	if err != nil {
		return doc, fmt.Errorf("tracestore: read edges: %w", err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var e rule.GraphEdge
		var label sql.NullString
		if err := edgeRows.Scan(&e.Source, &e.Target, &label, &e.Kind); err != nil {
			return doc, fmt.Errorf("tracestore: scan edge: %w", err)
		}
		e.Label = label.String
		doc.Edges = append(doc.Edges, e)
	}
	if err := edgeRows.Err(); err != nil {
		return doc, fmt.Errorf("tracestore: iterate edges: %w", err)
	}

	return doc, nil
}

const rfc3339 = "2006-01-02T15:04:05.999999999Z07:00"
