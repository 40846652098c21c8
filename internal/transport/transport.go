// Package transport defines the pluggable HTTP seam for `network`-typed
// rules. Spec §1 explicitly excludes "HTTP client plumbing for network
// rules" from the core's scope, keeping "only its contract with the
// core" specified (spec §4.7: "the core consumes only status,
// body_json, and a boolean timeout flag") — this package is that
// contract plus one concrete, minimal implementation, following spec
// §9's "transport plug-in" design note: isolate an external dependency
// behind a small interface so tests substitute a fake without touching
// the real network.
package transport

import (
	"context"
	"time"

	"github.com/rulemorph/rulemorph/internal/value"
)

// Request is a fully-resolved outbound HTTP request: every pipeline in
// the originating `network` rule has already been evaluated by the
// caller into concrete values.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte // nil when the rule set no body
	Timeout time.Duration
}

// Response is the transport's answer, reduced to exactly the fields the
// core is allowed to depend on (spec §4.7).
type Response struct {
	Status   int
	BodyJSON value.Value // Missing if the body was empty or not JSON
	Timeout  bool
}

// Transport executes one outbound request. Implementations must map a
// client-side deadline exceeded into Response{Timeout: true}, nil
// rather than an error, so the caller's catch-precedence logic (spec
// §4.7) can dispatch on it uniformly with HTTP status classes.
type Transport interface {
	Do(ctx context.Context, req Request) (Response, error)
}
