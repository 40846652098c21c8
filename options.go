package rulemorph

import (
	"github.com/rulemorph/rulemorph/internal/caller"
	"github.com/rulemorph/rulemorph/internal/trace"
	"github.com/rulemorph/rulemorph/internal/transport"
	"github.com/rulemorph/rulemorph/internal/tracestore"
)

// Option configures a Runtime using the functional-options shape
// SPEC_FULL.md §A.3 names.
type Option func(*Runtime)

// WithMaxDepth bounds branch/body_rule recursion depth for a single
// input record (internal/caller.DefaultMaxDepth otherwise).
func WithMaxDepth(n int) Option {
	return func(rt *Runtime) { rt.maxDepth = n }
}

// WithTransport registers the transport used to execute `network` rule
// requests. Equivalent to spec §6's register_transport(fn).
func WithTransport(t transport.Transport) Option {
	return func(rt *Runtime) { rt.transport = t }
}

// WithTraceSink directs TransformWithTrace's output to sink in addition
// to returning the Document to the caller. Nil (the default) means the
// document is only returned, never written anywhere.
func WithTraceSink(sink trace.Sink) Option {
	return func(rt *Runtime) { rt.traceSink = sink }
}

// WithTraceStore persists every trace document and the rule's call
// graph through store, for callers that want durable trace history
// rather than per-call in-memory documents (SPEC_FULL.md §B).
func WithTraceStore(store *tracestore.Store) Option {
	return func(rt *Runtime) { rt.traceStore = store }
}

// WithClock overrides the clock used for trace timestamps and
// durations; pipeline ops do not read it. Tests substitute internal/testutil.FixedClock for reproducible
// timestamps and durations.
func WithClock(c trace.Clock) Option {
	return func(rt *Runtime) { rt.clock = c }
}

// WithIDGenerator overrides trace_id generation (trace.UUIDv7Generator
// by default). Tests substitute internal/testutil.FixedIDGenerator.
func WithIDGenerator(g trace.IDGenerator) Option {
	return func(rt *Runtime) { rt.ids = g }
}

func (rt *Runtime) apply(opts []Option) {
	for _, opt := range opts {
		opt(rt)
	}
	if rt.maxDepth <= 0 {
		rt.maxDepth = caller.DefaultMaxDepth
	}
	if rt.clock == nil {
		rt.clock = trace.SystemClock{}
	}
	if rt.ids == nil {
		rt.ids = trace.UUIDv7Generator{}
	}
}
