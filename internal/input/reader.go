// Package input implements the record readers spec §4.10 describes:
// CSV (typed columns, optional header, configurable delimiter) and
// JSON (records_path resolution). Both readers hand out records one at
// a time through Next. The CSV reader reads each row as it is pulled;
// the JSON reader reads and decodes the whole input before the first
// Next (see json.go), so JSON input is buffered in full.
//
// Built on the standard library's encoding/csv.Reader and
// encoding/json.Decoder, which already expose the pull-based Next/Token
// shape this package needs (DESIGN.md records this as a deliberate
// stdlib choice rather than an oversight).
package input

import (
	"errors"
	"io"

	"github.com/rulemorph/rulemorph/internal/rmerr"
	"github.com/rulemorph/rulemorph/internal/rule"
	"github.com/rulemorph/rulemorph/internal/value"
)

// ErrDone is returned by Reader.Next when the input sequence is
// exhausted, mirroring io.EOF's role in encoding/csv and bufio.Scanner.
var ErrDone = errors.New("input: no more records")

// Reader produces records lazily, one at a time.
type Reader interface {
	// Next returns the next record, or ErrDone when exhausted. A
	// non-nil, non-ErrDone error is a taxonomy failure (spec §7) tied
	// to the record at the current position.
	Next() (value.Value, error)
}

// Open constructs the reader spec.InputSpec.Format names, wrapping raw
// in the format-specific decoder.
func Open(spec rule.InputSpec, raw io.Reader) (Reader, error) {
	switch spec.Format {
	case rule.FormatCSV:
		return newCSVReader(spec.CSV, raw)
	case rule.FormatJSON:
		return newJSONReader(spec.JSON, raw)
	default:
		return nil, rmerr.New(rmerr.CodeValidationError, "/input/format", "unknown input format "+string(spec.Format))
	}
}

// Collect drains r into a slice, for callers that need the whole
// sequence up front (e.g. finalize.sort's forced materialization, spec
// §5).
func Collect(r Reader) ([]value.Value, error) {
	var out []value.Value
	for {
		v, err := r.Next()
		if errors.Is(err, ErrDone) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}
