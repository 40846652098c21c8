package rule

import (
	"fmt"
	"path/filepath"
)

// GraphNode is one rule file in the call-graph document (spec §6).
type GraphNode struct {
	ID    string    `json:"id"`
	Label string    `json:"label"`
	Kind  string    `json:"kind"`
	Path  string    `json:"path"`
	Ops   []GraphOp `json:"ops,omitempty"`
}

// GraphOp summarizes one operational facet of a rule (its mappings,
// steps, endpoint binding, or network call) for the graph document.
type GraphOp struct {
	Label  string   `json:"label"`
	Detail string   `json:"detail,omitempty"`
	Refs   []string `json:"refs,omitempty"`
}

// GraphEdge is a directed, labeled edge between two rule files.
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
	Kind   string `json:"kind"` // step|branch|body_rule|ref
}

// GraphDocument is the exported static call graph (spec §6, consumed
// by the UI's architecture view — the UI itself is out of scope, its
// data model is not).
type GraphDocument struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// BuildGraph exports the graph accumulated by a completed Load call.
func (l *Loader) BuildGraph() GraphDocument {
	doc := GraphDocument{}
	for _, path := range l.order {
		r := l.docs[path]
		doc.Nodes = append(doc.Nodes, GraphNode{
			ID:    path,
			Label: filepath.Base(path),
			Kind:  string(r.Type),
			Path:  path,
			Ops:   opsOf(r),
		})
		dir := filepath.Dir(path)
		for _, e := range refsOf(r) {
			if e.Target == "" {
				continue
			}
			target := e.Target
			if !filepath.IsAbs(target) {
				target = filepath.Join(dir, target)
			}
			doc.Edges = append(doc.Edges, GraphEdge{
				Source: path,
				Target: l.normalize(target),
				Label:  e.Label,
				Kind:   string(e.Kind),
			})
		}
	}
	return doc
}

func opsOf(r *Rule) []GraphOp {
	var ops []GraphOp
	if r.HasMappings {
		ops = append(ops, GraphOp{Label: "mappings", Detail: fmt.Sprintf("%d mapping(s)", len(r.Mappings))})
	}
	if r.HasSteps {
		ops = append(ops, GraphOp{Label: "steps", Detail: fmt.Sprintf("%d step(s)", len(r.Steps))})
	}
	if r.Endpoint != nil {
		ops = append(ops, GraphOp{Label: "endpoint", Detail: r.Endpoint.Method + " " + r.Endpoint.Path})
	}
	if r.Network != nil {
		ops = append(ops, GraphOp{Label: "network", Detail: r.Network.Method})
	}
	return ops
}
