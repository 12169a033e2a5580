package fetchlist

import (
	"context"
	"log/slog"
	"net/http"
)

// NewResponseLogger returns a Middleware that records the status of every response and
// every transport error at debug level. It never alters or absorbs either.
// Placed inside the retry layer it sees each attempt before the retry decision is made.
func NewResponseLogger(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Transport) Transport {
		return TransportFunc(func(ctx context.Context, req *http.Request) (*http.Response, error) {
			resp, err := next.Execute(ctx, req)
			if err != nil {
				logger.DebugContext(ctx, "request failed",
					"method", req.Method,
					"url", req.URL.String(),
					"error", err)
				return resp, err
			}
			logger.DebugContext(ctx, "response received",
				"method", req.Method,
				"url", req.URL.String(),
				"status", resp.StatusCode)
			return resp, nil
		})
	}
}
