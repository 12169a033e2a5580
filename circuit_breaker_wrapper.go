package fetchlist

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	jperrors "github.com/JohnPlummer/jp-go-errors"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerWrapper wraps a Transport with circuit breaker functionality.
// Transport errors and server error responses count as failures. A failing response
// is still returned to the caller; only the breaker's bookkeeping sees it as an error.
// When the circuit is open, requests are rejected without reaching the network.
type CircuitBreakerWrapper struct {
	client     Transport
	cb         *gobreaker.CircuitBreaker[*http.Response]
	logger     *slog.Logger
	classifier CircuitBreakerErrorClassifier
}

// NewCircuitBreakerWrapper creates a new circuit breaker wrapper around a Transport.
//
// Example:
//
//	wrapper := fetchlist.NewCircuitBreakerWrapper(
//	    transport,
//	    fetchlist.WithMaxRequests(5),
//	    fetchlist.WithTimeout(60*time.Second),
//	)
func NewCircuitBreakerWrapper(client Transport, opts ...CircuitBreakerOption) *CircuitBreakerWrapper {
	config := DefaultCircuitBreakerConfig()
	for _, opt := range opts {
		opt(config)
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	if config.ErrorClassifier == nil {
		config.ErrorClassifier = DefaultCircuitBreakerErrorClassifier()
	}

	if config.ReadyToTrip == nil {
		config.ReadyToTrip = DefaultCircuitBreakerConfig().ReadyToTrip
	}

	classifier := config.ErrorClassifier

	settings := gobreaker.Settings{
		Name:        "hiring-api",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return config.ReadyToTrip(convertGobreakerCounts(counts))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			config.Logger.Warn("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String())

			if config.OnStateChange != nil {
				config.OnStateChange(name, convertGobreakerState(from), convertGobreakerState(to))
			}
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return !classifier.ShouldTripCircuit(err)
		},
	}

	return &CircuitBreakerWrapper{
		client:     client,
		cb:         gobreaker.NewCircuitBreaker[*http.Response](settings),
		logger:     config.Logger,
		classifier: classifier,
	}
}

// CircuitBreakerMiddleware returns a Middleware that wraps the next Transport in a
// CircuitBreakerWrapper. Use NewCircuitBreakerWrapper directly to keep a handle for
// State or GetHealth.
func CircuitBreakerMiddleware(opts ...CircuitBreakerOption) Middleware {
	return func(next Transport) Transport {
		return NewCircuitBreakerWrapper(next, opts...)
	}
}

// Execute sends the request through the circuit breaker.
// Circuit breaker rejections are wrapped with jperrors types:
//   - gobreaker.ErrOpenState becomes a jperrors circuit breaker error in state "open"
//   - gobreaker.ErrTooManyRequests becomes one in state "half-open"
//
// Both still match the gobreaker sentinels with errors.Is.
func (w *CircuitBreakerWrapper) Execute(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := w.cb.Execute(func() (*http.Response, error) {
		resp, err := w.client.Execute(ctx, req)
		if err != nil {
			return nil, err
		}
		if !isSuccess(resp.StatusCode) {
			// Report the status to the breaker but keep the response for the caller.
			return resp, newHTTPStatusError(resp.StatusCode)
		}
		return resp, nil
	})
	if err == nil {
		return resp, nil
	}

	var statusErr *StatusCodeError
	if resp != nil && errors.As(err, &statusErr) {
		return resp, nil
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		w.logger.Warn("circuit breaker is open, request rejected",
			"error", err,
			"state", w.cb.State())
		return nil, w.rejection(err, "request rejected", "open")
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		w.logger.Debug("circuit breaker in half-open state, too many requests",
			"error", err)
		return nil, w.rejection(err, "too many requests in half-open state", "half-open")
	default:
		w.logger.Debug("request failed through circuit breaker",
			"error", err,
			"should_trip", w.classifier.ShouldTripCircuit(err))
	}
	return nil, err
}

func (w *CircuitBreakerWrapper) rejection(cause error, message, state string) error {
	counts := w.cb.Counts()
	return jperrors.NewCircuitBreakerError(
		message,
		"execute",
		state,
		jperrors.WithCause(cause),
		jperrors.WithCounts(jperrors.CircuitCounts{
			Requests:             counts.Requests,
			TotalSuccesses:       counts.TotalSuccesses,
			TotalFailures:        counts.TotalFailures,
			ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
			ConsecutiveFailures:  counts.ConsecutiveFailures,
		}),
	)
}

// State returns the current state of the circuit breaker.
func (w *CircuitBreakerWrapper) State() CircuitBreakerState {
	return convertGobreakerState(w.cb.State())
}

// Counts returns the current counts of the circuit breaker.
func (w *CircuitBreakerWrapper) Counts() CircuitBreakerCounts {
	return convertGobreakerCounts(w.cb.Counts())
}

// GetHealth returns the health status of the circuit breaker.
func (w *CircuitBreakerWrapper) GetHealth() HealthStatus {
	state := w.State()
	counts := w.Counts()

	var healthy bool
	var status string

	switch state {
	case StateClosed:
		healthy = true
		status = "closed"
	case StateHalfOpen:
		healthy = true // Degraded but operational
		status = "half-open"
	case StateOpen:
		healthy = false
		status = "open"
	default:
		status = "unknown"
	}

	return HealthStatus{
		Healthy:              healthy,
		Status:               status,
		State:                state.String(),
		Requests:             counts.Requests,
		TotalSuccesses:       counts.TotalSuccesses,
		TotalFailures:        counts.TotalFailures,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
	}
}

func convertGobreakerCounts(counts gobreaker.Counts) CircuitBreakerCounts {
	return CircuitBreakerCounts{
		Requests:             counts.Requests,
		TotalSuccesses:       counts.TotalSuccesses,
		TotalFailures:        counts.TotalFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
	}
}

// convertGobreakerState converts gobreaker.State to our CircuitBreakerState.
func convertGobreakerState(state gobreaker.State) CircuitBreakerState {
	switch state {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}
