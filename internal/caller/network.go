package caller

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rulemorph/rulemorph/internal/pipe"
	"github.com/rulemorph/rulemorph/internal/record"
	"github.com/rulemorph/rulemorph/internal/ref"
	"github.com/rulemorph/rulemorph/internal/rmerr"
	"github.com/rulemorph/rulemorph/internal/rule"
	"github.com/rulemorph/rulemorph/internal/transport"
	"github.com/rulemorph/rulemorph/internal/value"
)

// callNetwork executes a `network`-typed rule (spec §4.7/§6): resolve
// method/url/body from the rule's pipelines, delegate the actual HTTP
// exchange to c.Transport, then reduce the response to status/body/
// timeout before dispatching `catch` or `select`.
func (c *Caller) callNetwork(r *rule.Rule, path string, input, context value.Value, call record.CallFunc) (value.Value, *rmerr.RuleError) {
	nr := r.Network
	env := ref.NewEnv(input, context, value.NewObject())
	dir := filepath.Dir(path)

	urlVal, err := pipe.Eval(nr.URL, env, c.Reg)
	if err != nil {
		return nil, rmerr.Wrap(rmerr.CodeTypeMismatch, "/request/url", err.Error(), err)
	}
	urlStr, ok := urlVal.(value.String)
	if !ok {
		return nil, rmerr.New(rmerr.CodeTypeMismatch, "/request/url", "request.url must evaluate to a string")
	}

	body, berr := c.buildBody(nr, dir, input, context, env, call)
	if berr != nil {
		return nil, berr
	}

	req := transport.Request{
		Method:  nr.Method,
		URL:     string(urlStr),
		Headers: nr.Headers,
		Body:    body,
		Timeout: time.Duration(nr.TimeoutMS) * time.Millisecond,
	}

	resp, cerr := c.doWithRetry(nr, req)
	if cerr != nil {
		return c.dispatchCatch(nr.Catch, "", "", false, dir, input, context, call, cerr)
	}
	if resp.Timeout {
		return c.dispatchCatch(nr.Catch, "", "", true, dir, input, context, call,
			rmerr.New(rmerr.CodeTimeout, "/request", "request timed out"))
	}
	if resp.Status >= 400 {
		return c.dispatchCatch(nr.Catch, fmt.Sprint(resp.Status), rule.StatusClass(resp.Status), false, dir, input, context, call,
			rmerr.New(rmerr.CodeExternalError, "/request", fmt.Sprintf("request failed with status %d", resp.Status)))
	}

	if value.IsMissing(resp.BodyJSON) {
		return c.dispatchCatch(nr.Catch, fmt.Sprint(resp.Status), rule.StatusClass(resp.Status), false, dir, input, context, call,
			rmerr.New(rmerr.CodeExternalError, "/request", "response body was empty or not valid JSON"))
	}

	if !nr.HasSelect {
		return resp.BodyJSON, nil
	}
	selected := resolveSelect(nr.Select, resp.BodyJSON)
	if value.IsMissing(selected) {
		return c.dispatchCatch(nr.Catch, fmt.Sprint(resp.Status), rule.StatusClass(resp.Status), false, dir, input, context, call,
			rmerr.New(rmerr.CodeExternalError, "/request/select", fmt.Sprintf("select path %q absent in response body", nr.Select)))
	}
	return selected, nil
}

func (c *Caller) buildBody(nr *rule.NetworkRequest, dir string, input, context value.Value, env ref.Env, call record.CallFunc) ([]byte, *rmerr.RuleError) {
	switch {
	case nr.HasBody:
		v, err := pipe.Eval(nr.Body, env, c.Reg)
		if err != nil {
			return nil, rmerr.Wrap(rmerr.CodeTypeMismatch, "/request/body", err.Error(), err)
		}
		if value.IsMissing(v) {
			return nil, nil
		}
		b, err := value.Marshal(v)
		if err != nil {
			return nil, rmerr.Wrap(rmerr.CodeTypeMismatch, "/request/body", err.Error(), err)
		}
		return b, nil

	case nr.HasBodyMap:
		obj := value.NewObject()
		for k, p := range nr.BodyMap {
			v, err := pipe.Eval(p, env, c.Reg)
			if err != nil {
				return nil, rmerr.Wrap(rmerr.CodeTypeMismatch, "/request/body_map/"+k, err.Error(), err)
			}
			if !value.IsMissing(v) {
				obj.Set(k, v)
			}
		}
		b, err := value.Marshal(obj)
		if err != nil {
			return nil, rmerr.Wrap(rmerr.CodeTypeMismatch, "/request/body_map", err.Error(), err)
		}
		return b, nil

	case nr.HasBodyRule:
		out, _, cerr := call(nr.BodyRule, dir, input, context)
		if cerr != nil {
			return nil, cerr
		}
		b, err := value.Marshal(out)
		if err != nil {
			return nil, rmerr.Wrap(rmerr.CodeTypeMismatch, "/request/body_rule", err.Error(), err)
		}
		return b, nil

	default:
		return nil, nil
	}
}

// doWithRetry executes req, retrying per nr.Retry when the response is
// a transport-level failure, a timeout, or a 5xx — matching spec §6's
// retry surface. A 4xx never retries since the request itself is
// presumed malformed rather than transiently failing.
func (c *Caller) doWithRetry(nr *rule.NetworkRequest, req transport.Request) (transport.Response, *rmerr.RuleError) {
	attempts := 1
	if nr.HasRetry {
		attempts = nr.Retry.Max + 1
	}

	var resp transport.Response
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			time.Sleep(backoffDelay(nr.Retry, attempt))
		}
		resp, lastErr = c.Transport.Do(context.Background(), req)
		if lastErr == nil && !resp.Timeout && resp.Status < 500 {
			return resp, nil
		}
	}
	if lastErr != nil {
		return transport.Response{}, rmerr.Wrap(rmerr.CodeExternalError, "/request", lastErr.Error(), lastErr)
	}
	return resp, nil
}

func backoffDelay(r rule.NetworkRetry, attempt int) time.Duration {
	base := time.Duration(r.InitialDelay) * time.Millisecond
	switch r.Backoff {
	case rule.BackoffLinear:
		return base * time.Duration(attempt)
	case rule.BackoffExponential:
		return base * time.Duration(1<<uint(attempt-1))
	default: // fixed
		return base
	}
}

// resolveSelect resolves a `select` dot path (spec §6: "select (dot
// path)") against a response body, applying the same implicit-@input
// convention mapping sources use so a bare "data.items" addresses the
// body's own fields.
func resolveSelect(sel string, body value.Value) value.Value {
	if !strings.HasPrefix(sel, "@") {
		sel = "@input." + sel
	}
	p, err := ref.Parse(sel)
	if err != nil {
		return value.MissingValue
	}
	return ref.Resolve(p, ref.NewEnv(body, value.NullValue, value.NewObject()))
}

func (c *Caller) dispatchCatch(catch rule.Catch, exact, class string, isTimeout bool, dir string, input, context value.Value, call record.CallFunc, failure *rmerr.RuleError) (value.Value, *rmerr.RuleError) {
	target, found := catch.Resolve(exact, class, isTimeout)
	if !found {
		return nil, failure
	}
	out, _, cerr := call(target, dir, buildCatchInput(failure, input), context)
	return out, cerr
}
