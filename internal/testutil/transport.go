package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/rulemorph/rulemorph/internal/transport"
)

// FixedTransport is a scripted transport.Transport double: each Do call
// consumes the next entry in Responses, in order, so a network-rule
// test can assert on exact request/response pairs without a real HTTP
// server.
type FixedTransport struct {
	mu        sync.Mutex
	Responses []transport.Response
	Err       error // returned instead of a response, if set
	Requests  []transport.Request
	next      int
}

// NewFixedTransport returns a FixedTransport that replays responses in
// order.
func NewFixedTransport(responses ...transport.Response) *FixedTransport {
	return &FixedTransport{Responses: responses}
}

// Do records req and returns the next scripted response.
func (t *FixedTransport) Do(_ context.Context, req transport.Request) (transport.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Requests = append(t.Requests, req)

	if t.Err != nil {
		return transport.Response{}, t.Err
	}
	if t.next >= len(t.Responses) {
		return transport.Response{}, fmt.Errorf("testutil: FixedTransport exhausted after %d calls", t.next)
	}
	resp := t.Responses[t.next]
	t.next++
	return resp, nil
}
