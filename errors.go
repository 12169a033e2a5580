package fetchlist

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/JohnPlummer/jp-go-errors"
	"github.com/sony/gobreaker/v2"
)

// ErrorClassifier determines whether a transport error should trigger a retry.
// Implement this interface to customize retry behavior for your specific error types.
type ErrorClassifier interface {
	// IsRetryable returns true if the error represents a transient failure
	// that should be retried.
	IsRetryable(err error) bool
}

// StatusClassifier determines whether a response status code should trigger a retry.
type StatusClassifier interface {
	// IsRetryableStatus returns true if a response with this status code is a
	// transient server failure.
	IsRetryableStatus(code int) bool
}

// CircuitBreakerErrorClassifier determines whether an error should trip the circuit breaker.
// Implement this interface to customize circuit breaker behavior for your specific error types.
type CircuitBreakerErrorClassifier interface {
	// ShouldTripCircuit returns true if the error represents a failure serious enough
	// to open the circuit breaker and stop requests temporarily.
	ShouldTripCircuit(err error) bool
}

// HTTPStatusClassifier classifies transport errors and HTTP status codes.
// Transport-level failures (connection refused, reset, timeout) are transient;
// server errors are retried; anything else the server answered is final.
type HTTPStatusClassifier struct {
	// RetryableStatuses lists HTTP status codes that should trigger retries.
	// Any 5xx when nil.
	RetryableStatuses []int

	// CircuitTripStatuses lists HTTP status codes that should trip the circuit breaker.
	// Any 5xx when nil.
	CircuitTripStatuses []int
}

// HTTPError represents an error with an associated HTTP status code.
type HTTPError interface {
	error
	StatusCode() int
}

// NewHTTPStatusClassifier creates a new HTTPStatusClassifier that retries and trips on any 5xx.
func NewHTTPStatusClassifier() *HTTPStatusClassifier {
	return &HTTPStatusClassifier{}
}

// IsRetryable implements ErrorClassifier for transport errors.
func (c *HTTPStatusClassifier) IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are NOT retryable - if the parent context is exceeded or canceled,
	// retrying with the same context will fail immediately.
	// Check these FIRST, as context.DeadlineExceeded is also a timeout.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	// A rejecting circuit breaker is not going to change its mind within the backoff.
	if isCircuitRejection(err) {
		return false
	}

	if errors.Is(err, pkgerrors.ErrRateLimited) || pkgerrors.IsTimeout(err) {
		return true
	}

	// An error that carries a status code came from a layer that already read the response.
	if statusCode := extractStatusCode(err); statusCode != 0 {
		return c.IsRetryableStatus(statusCode)
	}

	// Everything else is a network failure: refused, reset, DNS, client timeout.
	return true
}

// IsRetryableStatus implements StatusClassifier.
func (c *HTTPStatusClassifier) IsRetryableStatus(code int) bool {
	if c.RetryableStatuses != nil {
		return containsStatus(c.RetryableStatuses, code)
	}
	return isServerError(code)
}

// ShouldTripCircuit implements CircuitBreakerErrorClassifier.
func (c *HTTPStatusClassifier) ShouldTripCircuit(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, pkgerrors.ErrRateLimited) {
		return false
	}

	statusCode := extractStatusCode(err)
	if statusCode == 0 {
		// Transport failures mean the service is unreachable
		return true
	}

	if c.CircuitTripStatuses != nil {
		return containsStatus(c.CircuitTripStatuses, statusCode)
	}
	return isServerError(statusCode)
}

// extractStatusCode attempts to extract an HTTP status code from an error chain.
func extractStatusCode(err error) int {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode()
	}
	return 0
}

// containsStatus checks if a status code is in the list.
func containsStatus(statuses []int, status int) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func isServerError(code int) bool {
	return code >= 500 && code <= 599
}

func isSuccess(code int) bool {
	return code >= 200 && code <= 299
}

func isCircuitRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// DefaultErrorClassifier retries every transport failure except context cancellation,
// deadline expiry and circuit breaker rejections.
func DefaultErrorClassifier() ErrorClassifier {
	return NewHTTPStatusClassifier()
}

// DefaultStatusClassifier retries any 5xx response.
func DefaultStatusClassifier() StatusClassifier {
	return NewHTTPStatusClassifier()
}

// DefaultCircuitBreakerErrorClassifier trips on transport failures and 5xx responses,
// but not on client errors, rate limits or context errors.
func DefaultCircuitBreakerErrorClassifier() CircuitBreakerErrorClassifier {
	return NewHTTPStatusClassifier()
}

// StatusCodeError wraps an error with an HTTP status code.
// FetchClient returns it for every non-2xx response that escaped the retry layer.
type StatusCodeError struct {
	Err  error
	Code int
}

// Error implements the error interface.
func (e *StatusCodeError) Error() string {
	return e.Err.Error()
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *StatusCodeError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code.
// This implements the HTTPError interface.
func (e *StatusCodeError) StatusCode() int {
	return e.Code
}

// NewStatusCodeError creates a new StatusCodeError.
//
// Example:
//
//	return fetchlist.NewStatusCodeError(http.StatusServiceUnavailable, err)
func NewStatusCodeError(statusCode int, err error) error {
	return &StatusCodeError{
		Code: statusCode,
		Err:  err,
	}
}

// newHTTPStatusError builds the error FetchClient reports for an unusable response.
func newHTTPStatusError(code int) error {
	return NewStatusCodeError(code, fmt.Errorf("HTTP %d %s", code, http.StatusText(code)))
}

// TransportError is returned when every attempt failed before a response arrived.
type TransportError struct {
	// Err is the cause of the last attempt.
	Err error

	// Attempts is the number of requests that were sent.
	Attempts int
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("max retries exceeded due to network error: %v", e.Err)
}

// Unwrap returns the last cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// DataFormatError is returned when a successful response body is not the expected JSON.
type DataFormatError struct {
	Err error
}

// Error implements the error interface.
func (e *DataFormatError) Error() string {
	return fmt.Sprintf("malformed response body: %v", e.Err)
}

// Unwrap returns the decoding error.
func (e *DataFormatError) Unwrap() error {
	return e.Err
}
