package fetchlist

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// maxAttemptsCap bounds MaxAttempts so the uint64 conversions below are safe.
const maxAttemptsCap = 1000

// errRetryableStatus marks a 5xx attempt inside the retry loop. It never leaves Execute.
var errRetryableStatus = errors.New("retryable status")

// RetryWrapper wraps a Transport with bounded retry.
// A 2xx response is returned at once. A retryable status (5xx by default) is discarded
// and retried; once attempts run out the last such response is returned as-is with a
// nil error. Any other status is returned without retry. Transport errors are retried
// and, when attempts run out, reported as a *TransportError wrapping the last cause.
//
// Backoff pauses observe ctx, so a cancelled request stops sleeping immediately.
type RetryWrapper struct {
	client           Transport
	config           *RetryConfig
	logger           *slog.Logger
	classifier       ErrorClassifier
	statusClassifier StatusClassifier
	stats            *retryStats
}

// retryStats tracks retry operation statistics.
type retryStats struct {
	mu              sync.RWMutex
	totalAttempts   int64
	totalRetries    int64
	totalSuccesses  int64
	totalFailures   int64
	lastAttemptTime time.Time
	lastError       error
}

// NewRetryWrapper creates a new retry wrapper around a Transport.
// It applies the provided options to configure retry behavior.
//
// Example:
//
//	wrapper := fetchlist.NewRetryWrapper(
//	    fetchlist.NewHTTPExecutor(10*time.Second),
//	    fetchlist.WithMaxAttempts(3),
//	    fetchlist.WithLinearBackoff(time.Second),
//	)
func NewRetryWrapper(client Transport, opts ...RetryOption) *RetryWrapper {
	config := DefaultRetryConfig()
	for _, opt := range opts {
		opt(config)
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	if config.ErrorClassifier == nil {
		config.ErrorClassifier = DefaultErrorClassifier()
	}

	if config.StatusClassifier == nil {
		config.StatusClassifier = DefaultStatusClassifier()
	}

	return &RetryWrapper{
		client:           client,
		config:           config,
		logger:           config.Logger,
		classifier:       config.ErrorClassifier,
		statusClassifier: config.StatusClassifier,
		stats:            &retryStats{},
	}
}

// RetryMiddleware returns a Middleware that wraps the next Transport in a RetryWrapper.
func RetryMiddleware(opts ...RetryOption) Middleware {
	return func(next Transport) Transport {
		return NewRetryWrapper(next, opts...)
	}
}

// Execute sends req, retrying transient failures up to MaxAttempts times.
func (w *RetryWrapper) Execute(ctx context.Context, req *http.Request) (*http.Response, error) {
	if w.config.MaxAttempts <= 0 {
		return nil, errors.New("max attempts must be positive")
	}

	// Check if parent context is already done before attempting any requests
	select {
	case <-ctx.Done():
		w.logger.Debug("context already done before request",
			"error", ctx.Err())
		return nil, ctx.Err()
	default:
	}

	maxAttempts := w.maxAttempts()

	var response *http.Response
	var lastStatus int
	var attempts int

	err := retry.Do(ctx, w.getBackoffStrategy(), func(ctx context.Context) error {
		attempts++

		w.stats.mu.Lock()
		w.stats.totalAttempts++
		if attempts > 1 {
			w.stats.totalRetries++
		}
		w.stats.lastAttemptTime = time.Now()
		w.stats.mu.Unlock()

		resp, err := w.client.Execute(ctx, req.Clone(ctx))
		if err != nil {
			if !w.classifier.IsRetryable(err) {
				w.logger.Debug("non-retryable error, giving up",
					"error", err,
					"attempts", attempts)
				return err
			}

			if attempts >= maxAttempts {
				return &TransportError{Err: err, Attempts: attempts}
			}

			w.logger.Warn("retrying request after network error",
				"attempt", attempts,
				"error", err)
			return retry.RetryableError(err)
		}

		if isSuccess(resp.StatusCode) {
			if attempts > 1 {
				w.logger.Info("request succeeded after retry",
					"attempts", attempts)
			}
			response = resp
			return nil
		}

		if !w.statusClassifier.IsRetryableStatus(resp.StatusCode) || attempts >= maxAttempts {
			// Caller errors and the final retryable status are handed back untouched.
			response = resp
			return nil
		}

		lastStatus = resp.StatusCode
		discard(resp)
		w.logger.Warn("retrying request after server error",
			"attempt", attempts,
			"status", resp.StatusCode)
		return retry.RetryableError(errRetryableStatus)
	})
	if err != nil {
		if errors.Is(err, errRetryableStatus) {
			// The backoff gave up before the attempt budget did.
			err = newHTTPStatusError(lastStatus)
		}
		w.logger.Warn("request failed after retries",
			"attempts", attempts,
			"error", err)
		w.recordFailure(err)
		return nil, err
	}

	if isSuccess(response.StatusCode) {
		w.stats.mu.Lock()
		w.stats.totalSuccesses++
		w.stats.mu.Unlock()
	} else {
		w.recordFailure(newHTTPStatusError(response.StatusCode))
	}

	return response, nil
}

func (w *RetryWrapper) recordFailure(err error) {
	w.stats.mu.Lock()
	w.stats.totalFailures++
	w.stats.lastError = err
	w.stats.mu.Unlock()
}

// discard drains and closes a response that will not be handed to the caller,
// so the underlying connection can be reused.
func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func (w *RetryWrapper) maxAttempts() int {
	maxAttempts := w.config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if maxAttempts > maxAttemptsCap {
		maxAttempts = maxAttemptsCap
	}
	return maxAttempts
}

// getBackoffStrategy returns a fresh backoff for one Execute call.
// Note: retry.Do() counts the initial attempt, so MaxAttempts-1 is passed to WithMaxRetries.
func (w *RetryWrapper) getBackoffStrategy() retry.Backoff {
	maxRetries := uint64(w.maxAttempts() - 1) // #nosec G115 - bounds checked in maxAttempts

	switch w.config.Strategy {
	case RetryStrategyConstant:
		return retry.WithMaxRetries(
			maxRetries,
			retry.BackoffFunc(func() (time.Duration, bool) {
				// Add jitter to prevent thundering herd using crypto/rand
				jitterMax := int64(w.config.InitialDelay / 10)
				if jitterMax <= 0 {
					jitterMax = 1
				}
				jitterBig, err := rand.Int(rand.Reader, big.NewInt(jitterMax))
				if err != nil {
					// Fallback to no jitter if crypto/rand fails
					return w.config.InitialDelay, false
				}
				jitter := time.Duration(jitterBig.Int64())
				return w.config.InitialDelay + jitter, false
			}),
		)

	case RetryStrategyFibonacci:
		return retry.WithMaxRetries(
			maxRetries,
			retry.WithCappedDuration(
				w.config.MaxDelay,
				retry.WithJitter(
					w.config.InitialDelay/10,
					retry.NewFibonacci(w.config.InitialDelay),
				),
			),
		)

	case RetryStrategyExponential:
		return retry.WithMaxRetries(
			maxRetries,
			retry.WithCappedDuration(
				w.config.MaxDelay,
				retry.WithJitter(
					w.config.InitialDelay/10,
					w.newConfigurableExponential(),
				),
			),
		)

	default:
		return retry.WithMaxRetries(maxRetries, newLinear(w.config.InitialDelay))
	}
}

// newLinear returns a backoff whose n-th delay is n × base.
func newLinear(base time.Duration) retry.Backoff {
	var retries int64
	return retry.BackoffFunc(func() (time.Duration, bool) {
		retries++
		return time.Duration(retries) * base, false
	})
}

// newConfigurableExponential creates a custom exponential backoff using the configured multiplier.
// The delay for attempt N is: initialDelay * (multiplier ^ N)
func (w *RetryWrapper) newConfigurableExponential() retry.Backoff {
	multiplier := w.config.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	if multiplier == 2.0 {
		return retry.NewExponential(w.config.InitialDelay)
	}

	attempt := uint64(0)
	return retry.BackoffFunc(func() (time.Duration, bool) {
		delay := float64(w.config.InitialDelay)
		for i := uint64(0); i < attempt; i++ {
			delay *= multiplier
			if delay > float64(1<<63-1) {
				attempt++
				return time.Duration(1<<63 - 1), false
			}
		}
		attempt++
		return time.Duration(delay), false
	})
}

// RetryStats holds statistics about retry operations.
type RetryStats struct {
	// TotalAttempts is the total number of requests sent (including initial and retries)
	TotalAttempts int64

	// TotalRetries is the number of retry attempts (not including initial attempts)
	TotalRetries int64

	// TotalSuccesses is the number of calls that ended with a 2xx response
	TotalSuccesses int64

	// TotalFailures is the number of calls that ended with an error or a non-2xx response
	TotalFailures int64

	// LastAttemptTime is the time of the last attempt
	LastAttemptTime time.Time

	// LastError is the last failure recorded (if any)
	LastError error
}

// GetRetryStats returns a snapshot of retry statistics. Safe for concurrent use.
func (w *RetryWrapper) GetRetryStats() RetryStats {
	w.stats.mu.RLock()
	defer w.stats.mu.RUnlock()

	return RetryStats{
		TotalAttempts:   w.stats.totalAttempts,
		TotalRetries:    w.stats.totalRetries,
		TotalSuccesses:  w.stats.totalSuccesses,
		TotalFailures:   w.stats.totalFailures,
		LastAttemptTime: w.stats.lastAttemptTime,
		LastError:       w.stats.lastError,
	}
}
