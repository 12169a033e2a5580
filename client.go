// Package fetchlist fetches the hiring item collection over HTTP with bounded retry,
// groups and orders the items for display, and publishes each fetch as a sequence of
// discrete states that any number of consumers can observe.
//
// The HTTP stack is a chain of middleware over a ResilientClient: the retry layer,
// an optional circuit breaker, the response logger and transport metrics all wrap
// the next Transport in turn.
package fetchlist

import (
	"context"
	"net/http"
	"time"
)

// ResilientClient defines a generic interface for executing requests.
// The retry, circuit breaker, logging and metrics layers all implement it for
// *http.Request and *http.Response and wrap one another.
type ResilientClient[Req, Resp any] interface {
	// Execute performs a request and returns a response or error.
	// The context should be used to control timeouts and cancellation.
	Execute(ctx context.Context, req Req) (Resp, error)
}

// Transport is a ResilientClient specialised to HTTP.
type Transport = ResilientClient[*http.Request, *http.Response]

// TransportFunc adapts an ordinary function to the Transport interface.
type TransportFunc func(ctx context.Context, req *http.Request) (*http.Response, error)

// Execute calls f(ctx, req).
func (f TransportFunc) Execute(ctx context.Context, req *http.Request) (*http.Response, error) {
	return f(ctx, req)
}

// Middleware wraps a Transport with additional behaviour.
type Middleware func(next Transport) Transport

// Chain wraps base with the given middleware. The first middleware is the outermost,
// so Chain(base, retry, logger) sends every request through retry, then logger, then base.
//
// Example:
//
//	transport := fetchlist.Chain(
//	    fetchlist.NewHTTPExecutor(10*time.Second),
//	    fetchlist.RetryMiddleware(fetchlist.WithMaxAttempts(3)),
//	    fetchlist.NewResponseLogger(logger),
//	)
func Chain(base Transport, mws ...Middleware) Transport {
	t := base
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		t = mws[i](t)
	}
	return t
}

// HTTPExecutor adapts *http.Client to the Transport interface.
type HTTPExecutor struct {
	client *http.Client
}

// NewHTTPExecutor creates an HTTPExecutor whose client times out after timeout.
// A zero timeout means no client-level timeout; the request context still applies.
func NewHTTPExecutor(timeout time.Duration) *HTTPExecutor {
	return &HTTPExecutor{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewHTTPExecutorWithClient wraps an existing *http.Client.
func NewHTTPExecutorWithClient(client *http.Client) *HTTPExecutor {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPExecutor{client: client}
}

// Execute sends req with ctx attached.
func (e *HTTPExecutor) Execute(ctx context.Context, req *http.Request) (*http.Response, error) {
	return e.client.Do(req.WithContext(ctx))
}
