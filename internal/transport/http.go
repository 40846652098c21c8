package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/rulemorph/rulemorph/internal/value"
)

// HTTPTransport is the default Transport, backed by net/http. Spec §1
// explicitly scopes "HTTP client plumbing for network rules" out of the
// core, and no dependency in the domain stack offers an HTTP client
// (golang.org/x/net and golang.org/x/oauth2 ride along only as indirect
// transitive deps of the CUE SDK and are never imported directly) — so
// this is the one component in the tree that reaches for the standard
// library on purpose, per DESIGN.md.
type HTTPTransport struct {
	Client *http.Client
}

// NewHTTPTransport returns an HTTPTransport using http.DefaultClient's
// settings, minus a shared deadline (each call's timeout comes from the
// request's own Timeout field, set from the rule's request.timeout).
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{Client: &http.Client{}}
}

func (t *HTTPTransport) Do(ctx context.Context, req Request) (Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return Response{}, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.Client.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Response{Timeout: true}, nil
		}
		return Response{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{Status: resp.StatusCode}, err
	}

	bodyJSON := value.MissingValue
	if len(raw) > 0 {
		if v, err := value.Unmarshal(raw); err == nil {
			bodyJSON = v
		}
	}
	return Response{Status: resp.StatusCode, BodyJSON: bodyJSON}, nil
}
