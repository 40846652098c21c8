// Package rulemorph is the library surface spec §6 names: parse_rule,
// validate_rule, transform, transform_with_trace, build_call_graph, and
// register_transport. It wires together the engine's internal packages
// (internal/rule's loader/parser, internal/record's per-record engine,
// internal/caller's inter-rule dispatcher, internal/finalize's output
// pipeline, internal/input's CSV/JSON readers and internal/trace's
// recorder) behind one top-level type, the way a long-lived engine
// wires its compiler, store and dispatcher together.
//
// Everything below the library surface is an implementation detail of
// internal/; cmd/rulemorph and any other collaborator talks to a rule
// set only through a Runtime.
package rulemorph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rulemorph/rulemorph/internal/caller"
	"github.com/rulemorph/rulemorph/internal/finalize"
	"github.com/rulemorph/rulemorph/internal/input"
	"github.com/rulemorph/rulemorph/internal/pipe"
	"github.com/rulemorph/rulemorph/internal/record"
	"github.com/rulemorph/rulemorph/internal/rmerr"
	"github.com/rulemorph/rulemorph/internal/rule"
	"github.com/rulemorph/rulemorph/internal/trace"
	"github.com/rulemorph/rulemorph/internal/transport"
	"github.com/rulemorph/rulemorph/internal/tracestore"
	"github.com/rulemorph/rulemorph/internal/value"
)

// Diagnostics is the result of validate_rule: the union of every
// ValidationError/ParseError found while loading a rule and its
// transitive call graph. Empty means the graph is safe to evaluate
// (spec §4.3/§7: only a load-time ValidationError aborts execution).
type Diagnostics []*rmerr.RuleError

// Error renders Diagnostics as a single error, joining every entry with
// errors.Join so errors.As/errors.Is still reach an individual
// RuleError (SPEC_FULL.md §A.2).
func (d Diagnostics) Error() string {
	errs := make([]error, len(d))
	for i, e := range d {
		errs[i] = e
	}
	return errors.Join(errs...).Error()
}

// Runtime loads and evaluates rule documents rooted at a single
// directory: one long-lived value holding the op registry, transport
// and trace configuration, reused across many Transform calls rather
// than rebuilt per call.
type Runtime struct {
	root string
	reg  *pipe.Registry

	maxDepth   int
	transport  transport.Transport
	traceSink  trace.Sink
	traceStore *tracestore.Store
	clock      trace.Clock
	ids        trace.IDGenerator
}

// New builds a Runtime rooted at root, the directory every rule
// reference (`steps[].branch.then/else/catch`, `network.body_rule`) is
// resolved against.
func New(root string, opts ...Option) *Runtime {
	rt := &Runtime{root: root, reg: pipe.NewRegistry()}
	rt.apply(opts)
	return rt
}

// RegisterTransport sets the transport used for `network` rule
// dispatch after construction, for collaborators that only learn their
// transport once the Runtime already exists (spec §6's
// register_transport).
func (rt *Runtime) RegisterTransport(t transport.Transport) {
	rt.transport = t
}

// ParseRule parses a single rule document's bytes without resolving or
// validating its references, mirroring spec §6's parse_rule(text) ->
// Rule. Use ValidateRule to additionally check the document and its
// transitive call graph.
func ParseRule(text []byte) (*rule.Rule, error) {
	return rule.ParseBytes(text)
}

// ValidateRule loads entryPath (resolved against the Runtime's root)
// and its full transitive call graph, returning every diagnostic found.
// Idempotent: calling it twice performs the same load and validation
// work again rather than caching, matching spec §6's "validate_rule
// (idempotent)" — a fresh Loader is built each call so an earlier
// call's diagnostics can never leak into a later one.
func (rt *Runtime) ValidateRule(entryPath string) (Diagnostics, error) {
	loader := rule.NewLoader(rt.root, rt.reg)
	_, diags, err := loader.Load(entryPath)
	if err != nil {
		return nil, err
	}
	return Diagnostics(diags), nil
}

// loaded bundles everything a single load of entryPath produces: the
// loader itself (for BuildGraph), the resolved entry rule, its
// normalized path, and any diagnostics.
type loaded struct {
	loader *rule.Loader
	docs   map[string]*rule.Rule
	rule   *rule.Rule
	norm   string
	diags  Diagnostics
}

func (rt *Runtime) load(entryPath string) (loaded, error) {
	loader := rule.NewLoader(rt.root, rt.reg)
	docs, diags, err := loader.Load(entryPath)
	if err != nil {
		return loaded{}, err
	}
	norm := entryPath
	if !filepath.IsAbs(norm) {
		norm = filepath.Clean(filepath.Join(rt.root, norm))
	} else {
		norm = filepath.Clean(norm)
	}
	if len(diags) > 0 {
		return loaded{loader: loader, docs: docs, norm: norm, diags: Diagnostics(diags)}, nil
	}
	r, ok := docs[norm]
	if !ok {
		return loaded{}, fmt.Errorf("rulemorph: entry rule %q did not resolve to a loaded document", entryPath)
	}
	return loaded{loader: loader, docs: docs, rule: r, norm: norm}, nil
}

// BuildCallGraph loads entryPath's transitive call graph and returns
// its GraphDocument (spec §6's build_call_graph), delegating to the
// loader that already walks steps[].branch/catch and network.body_rule
// at load time rather than re-deriving the same graph a second way.
func (rt *Runtime) BuildCallGraph(entryPath string) (rule.GraphDocument, error) {
	l, err := rt.load(entryPath)
	if err != nil {
		return rule.GraphDocument{}, err
	}
	if len(l.diags) > 0 {
		return rule.GraphDocument{}, l.diags
	}
	graph := l.loader.BuildGraph()
	if rt.traceStore != nil {
		if err := rt.traceStore.WriteCallGraph(context.Background(), entryPath, graph); err != nil {
			return graph, fmt.Errorf("rulemorph: persist call graph: %w", err)
		}
	}
	return graph, nil
}

// Transform evaluates inputBytes against entryPath's rule, returning a
// RecordStream of successfully-produced output records (spec §6's
// transform). A record that fails, is skipped, or is routed through a
// catch that itself succeeds behaves exactly per spec §4.6/§4.7;
// Transform surfaces none of that as a stream-level error, only as
// fewer or different items — per spec §4.6, "record-level failure does
// not halt the stream".
func (rt *Runtime) Transform(entryPath string, inputBytes []byte, reqContext value.Value) (RecordStream, error) {
	stream, _, _, err := rt.run(entryPath, inputBytes, reqContext, false)
	return stream, err
}

// TransformWithTrace is Transform plus a full trace.Document of every
// record's evaluation (spec §6's transform_with_trace). When the
// Runtime was built WithTraceStore, the document and the rule's call
// graph are also persisted before returning.
func (rt *Runtime) TransformWithTrace(entryPath string, inputBytes []byte, reqContext value.Value) (RecordStream, trace.Document, error) {
	stream, _, rec, err := rt.run(entryPath, inputBytes, reqContext, true)
	if err != nil {
		return nil, trace.Document{}, err
	}
	doc := rec.Document()

	if rt.traceSink != nil {
		if werr := rt.traceSink.Write(doc); werr != nil {
			return stream, doc, fmt.Errorf("rulemorph: write trace: %w", werr)
		}
	}
	if rt.traceStore != nil {
		if werr := rt.traceStore.WriteTrace(context.Background(), doc); werr != nil {
			return stream, doc, fmt.Errorf("rulemorph: persist trace: %w", werr)
		}
	}
	return stream, doc, nil
}

// run is the shared implementation of Transform/TransformWithTrace: it
// loads the rule graph, reads every input record, evaluates each
// through the record engine (re-entering through internal/caller for
// branch/body_rule dispatch), and applies finalize if the rule declares
// one. withTrace selects whether a trace.Recorder is built and threaded
// through evaluation; Transform passes false so a discarded recorder
// never costs an allocation per record.
func (rt *Runtime) run(entryPath string, inputBytes []byte, reqContext value.Value, withTrace bool) (RecordStream, *rule.Rule, *trace.Recorder, error) {
	l, err := rt.load(entryPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(l.diags) > 0 {
		return nil, nil, nil, l.diags
	}

	reader, err := input.Open(l.rule.Input, bytes.NewReader(inputBytes))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("rulemorph: open input: %w", err)
	}

	var rec *trace.Recorder
	if withTrace {
		name := filepath.Base(l.norm)
		name = name[:len(name)-len(filepath.Ext(name))]
		rec = trace.New(rt.clock, rt.ids, name, l.norm, string(l.rule.Type), l.rule.Version)
	}

	c := caller.New(l.docs, rt.reg, rt.transport)
	c.MaxDepth = rt.maxDepth
	if withTrace {
		c.Clock = rt.clock
		c.IDs = rt.ids
	}
	eng := record.NewEngine(rt.reg, filepath.Dir(l.norm), c.Bound())

	var outputs []value.Value
	index := 0
	for {
		in, err := reader.Next()
		if errors.Is(err, input.ErrDone) {
			break
		}
		if err != nil {
			return nil, nil, nil, fmt.Errorf("rulemorph: read input record %d: %w", index, err)
		}

		var builder *trace.RecordBuilder
		if rec != nil {
			builder = rec.BeginRecord(index, in)
		}
		eng.Trace = builder

		outcome := eng.Evaluate(l.rule, in, reqContext)
		switch {
		case outcome.Err != nil:
			if builder != nil {
				builder.Finish("error", nil)
			}
		case outcome.Skipped:
			if builder != nil {
				builder.Finish("skipped", nil)
			}
		default:
			outputs = append(outputs, outcome.Output)
			if builder != nil {
				builder.Finish("ok", outcome.Output)
			}
		}
		index++
	}

	if !l.rule.HasFinalize {
		return &sliceStream{values: outputs}, l.rule, rec, nil
	}

	final, err := finalize.Run(l.rule.Finalize, outputs, reqContext, rt.reg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("rulemorph: finalize: %w", err)
	}
	if rec != nil {
		rec.SetFinalize(&trace.FinalizeNode{
			Input:  trace.ValJSON(value.Array(outputs)),
			Output: trace.ValJSON(final),
			Status: "ok",
		})
	}
	if arr, ok := final.(value.Array); ok {
		return &sliceStream{values: []value.Value(arr)}, l.rule, rec, nil
	}
	return &sliceStream{values: []value.Value{final}}, l.rule, rec, nil
}
