package cli

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	fetchlist "github.com/JohnPlummer/jp-go-fetchlist"
	"github.com/JohnPlummer/jp-go-fetchlist/internal/config"
)

// pipeline is the wired fetch stack for one process.
type pipeline struct {
	controller *fetchlist.Controller
	client     *fetchlist.FetchClient
	retry      *fetchlist.RetryWrapper
	breaker    *fetchlist.CircuitBreakerWrapper
	metrics    *fetchlist.TransportMetrics
}

// newPipeline builds Controller → FetchClient → Retry → [CircuitBreaker] →
// ResponseLogger → Metrics → HTTP from cfg. A nil reg skips metric registration.
func newPipeline(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) *pipeline {
	p := &pipeline{
		metrics: fetchlist.NewTransportMetrics(reg),
	}

	var transport fetchlist.Transport = fetchlist.Chain(
		fetchlist.NewHTTPExecutor(cfg.API.Timeout),
		fetchlist.NewResponseLogger(logger),
		p.metrics.Middleware(),
	)

	if cfg.CircuitBreaker.Enabled {
		p.breaker = fetchlist.NewCircuitBreakerWrapper(
			transport,
			fetchlist.WithMaxRequests(cfg.CircuitBreaker.MaxRequests),
			fetchlist.WithInterval(cfg.CircuitBreaker.Interval),
			fetchlist.WithTimeout(cfg.CircuitBreaker.Timeout),
			fetchlist.WithCircuitBreakerLogger(logger),
		)
		transport = p.breaker
	}

	p.retry = fetchlist.NewRetryWrapper(transport, retryOptions(cfg.Retry, logger)...)

	p.client = fetchlist.NewFetchClient(
		cfg.API.BaseURL,
		p.retry,
		fetchlist.WithEndpoint(cfg.API.Endpoint),
		fetchlist.WithFetchLogger(logger),
	)

	p.controller = fetchlist.NewController(
		p.client,
		fetchlist.NewSlogErrorLogger(logger),
		fetchlist.WithControllerLogger(logger),
		fetchlist.WithOverlapPolicy(fetchlist.OverlapPolicy(cfg.Controller.Overlap)),
	)

	return p
}

func retryOptions(cfg config.RetryConfig, logger *slog.Logger) []fetchlist.RetryOption {
	opts := []fetchlist.RetryOption{
		fetchlist.WithMaxAttempts(cfg.MaxAttempts),
		fetchlist.WithRetryLogger(logger),
	}

	switch fetchlist.RetryStrategy(cfg.Strategy) {
	case fetchlist.RetryStrategyExponential:
		opts = append(opts,
			fetchlist.WithExponentialBackoff(cfg.BaseDelay, cfg.MaxDelay),
			fetchlist.WithMultiplier(cfg.Multiplier),
		)
	case fetchlist.RetryStrategyConstant:
		opts = append(opts, fetchlist.WithConstantBackoff(cfg.BaseDelay))
	case fetchlist.RetryStrategyFibonacci:
		opts = append(opts, fetchlist.WithFibonacciBackoff(cfg.BaseDelay, cfg.MaxDelay))
	default:
		opts = append(opts, fetchlist.WithLinearBackoff(cfg.BaseDelay))
	}

	return opts
}

// logDiagnostics reports retry statistics and, when enabled, breaker health.
func (p *pipeline) logDiagnostics(logger *slog.Logger) {
	stats := p.retry.GetRetryStats()
	logger.Debug("retry statistics",
		"attempts", stats.TotalAttempts,
		"retries", stats.TotalRetries,
		"successes", stats.TotalSuccesses,
		"failures", stats.TotalFailures)

	if p.breaker != nil {
		health := p.breaker.GetHealth()
		logger.Debug("circuit breaker health",
			"healthy", health.Healthy,
			"state", health.State,
			"requests", health.Requests,
			"consecutive_failures", health.ConsecutiveFailures)
	}
}
