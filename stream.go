package rulemorph

import (
	"errors"

	"github.com/rulemorph/rulemorph/internal/value"
)

// ErrStreamDone is returned by RecordStream.Next once every record has
// been delivered, mirroring internal/input.ErrDone's pull-based
// exhaustion signal (spec §6's RecordStream<JsonValue>).
var ErrStreamDone = errors.New("rulemorph: record stream done")

// RecordStream yields a rule's output records one at a time. Per spec
// §4.6, a record that fails or is skipped never reaches the stream —
// Next only ever returns a successfully-produced value or
// ErrStreamDone, never a mid-stream data error.
type RecordStream interface {
	Next() (value.Value, error)
}

// sliceStream is the concrete RecordStream every Runtime.Transform call
// returns today. Output records are collected once evaluation and any
// finalize pass complete (spec §5 permits this: "finalize.sort forces
// materialization, so streaming-plus-sort callers must accept a bounded
// in-memory buffer" — and a finalize-absent rule still buffers here
// only long enough to hand records to the caller one at a time).
type sliceStream struct {
	values []value.Value
	pos    int
}

// Next implements RecordStream.
func (s *sliceStream) Next() (value.Value, error) {
	if s.pos >= len(s.values) {
		return nil, ErrStreamDone
	}
	v := s.values[s.pos]
	s.pos++
	return v, nil
}

// Collect drains a RecordStream into a slice, for callers that don't
// need streaming semantics.
func Collect(s RecordStream) ([]value.Value, error) {
	var out []value.Value
	for {
		v, err := s.Next()
		if errors.Is(err, ErrStreamDone) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}
