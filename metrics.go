package fetchlist

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TransportMetrics counts HTTP attempts by outcome.
type TransportMetrics struct {
	responses       *prometheus.CounterVec
	transportErrors prometheus.Counter
	duration        prometheus.Histogram
}

// NewTransportMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is convenient in tests.
func NewTransportMetrics(reg prometheus.Registerer) *TransportMetrics {
	m := &TransportMetrics{
		responses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchlist_http_responses_total",
				Help: "Total number of HTTP responses received, by status code",
			},
			[]string{"code"},
		),
		transportErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fetchlist_http_transport_errors_total",
				Help: "Total number of HTTP attempts that failed before a response arrived",
			},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fetchlist_http_request_duration_seconds",
				Help:    "Duration of individual HTTP attempts in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.responses, m.transportErrors, m.duration)
	}
	return m
}

// Middleware returns a Middleware that observes every attempt passing through it.
func (m *TransportMetrics) Middleware() Middleware {
	return func(next Transport) Transport {
		return TransportFunc(func(ctx context.Context, req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.Execute(ctx, req)
			m.duration.Observe(time.Since(start).Seconds())
			if err != nil {
				m.transportErrors.Inc()
				return resp, err
			}
			m.responses.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
			return resp, nil
		})
	}
}

// Responses returns the response counter, labelled by status code.
func (m *TransportMetrics) Responses() *prometheus.CounterVec {
	return m.responses
}

// TransportErrors returns the transport error counter.
func (m *TransportMetrics) TransportErrors() prometheus.Counter {
	return m.transportErrors
}
