package trace

import (
	"encoding/json"
	"io"
)

// Sink receives a completed trace document. Injected at the engine
// root (spec §9's "trace as a first-class output"), so production
// paths run against NullSink at the cost of one nil-interface check per
// call, never a type switch or allocation.
type Sink interface {
	Write(doc Document) error
}

// NullSink discards every document. The zero value is ready to use.
type NullSink struct{}

// Write implements Sink.
func (NullSink) Write(Document) error { return nil }

// WriterSink JSON-encodes each document to an underlying io.Writer, one
// document per call — the "one JSON file per trace" persisted layout
// (spec §6) with the actual file handling left to the caller (the sink
// only owns serialization, not the directory layout the core is
// explicitly silent on).
type WriterSink struct {
	W io.Writer
}

// Write implements Sink.
func (s WriterSink) Write(doc Document) error {
	enc := json.NewEncoder(s.W)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// FuncSink adapts a plain function to Sink, for tests and for
// collectors that want to fan a trace out somewhere other than a file
// (e.g. the SSE broadcaster spec §1 excludes from this core's scope).
type FuncSink func(Document) error

// Write implements Sink.
func (f FuncSink) Write(doc Document) error { return f(doc) }
