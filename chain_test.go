package fetchlist_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sony/gobreaker/v2"

	fetchlist "github.com/JohnPlummer/jp-go-fetchlist"
)

var _ = Describe("Chain", func() {
	It("applies the first middleware outermost", func() {
		var mu sync.Mutex
		var order []string
		tag := func(name string) fetchlist.Middleware {
			return func(next fetchlist.Transport) fetchlist.Transport {
				return fetchlist.TransportFunc(func(ctx context.Context, req *http.Request) (*http.Response, error) {
					mu.Lock()
					order = append(order, name)
					mu.Unlock()
					return next.Execute(ctx, req)
				})
			}
		}
		base := (&mockTransport{}).sequence(http.StatusOK)

		transport := fetchlist.Chain(base, tag("outer"), nil, tag("inner"))
		_, err := transport.Execute(context.Background(), newRequest())
		Expect(err).NotTo(HaveOccurred())
		Expect(order).To(Equal([]string{"outer", "inner"}))
		Expect(base.getCallCount()).To(Equal(1))
	})

	It("returns the base transport when there is nothing to wrap", func() {
		base := (&mockTransport{}).sequence(http.StatusOK)
		Expect(fetchlist.Chain(base)).To(BeIdenticalTo(base))
	})
})

var _ = Describe("Retry with circuit breaker", func() {
	var (
		ctx    context.Context
		client *mockTransport
		logger *slog.Logger
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &mockTransport{}
		logger = quietLogger()
	})

	It("does not retry a request the open circuit rejected", func() {
		client.sequence(http.StatusInternalServerError)
		breaker := fetchlist.NewCircuitBreakerWrapper(client, fetchlist.WithCircuitBreakerLogger(logger))
		transport := fetchlist.Chain(
			breaker,
			fetchlist.RetryMiddleware(
				fetchlist.WithMaxAttempts(5),
				fetchlist.WithLinearBackoff(time.Millisecond),
				fetchlist.WithRetryLogger(logger),
			),
		)

		_, err := transport.Execute(ctx, newRequest())
		Expect(errors.Is(err, gobreaker.ErrOpenState)).To(BeTrue())
		// three 500s trip the breaker; the fourth attempt is rejected and not retried
		Expect(client.getCallCount()).To(Equal(3))
		Expect(breaker.State()).To(Equal(fetchlist.StateOpen))
	})

	It("recovers through retry once the server does", func() {
		client.sequence(http.StatusBadGateway, http.StatusOK)
		transport := fetchlist.Chain(
			client,
			fetchlist.RetryMiddleware(
				fetchlist.WithLinearBackoff(time.Millisecond),
				fetchlist.WithRetryLogger(logger),
			),
			fetchlist.CircuitBreakerMiddleware(fetchlist.WithCircuitBreakerLogger(logger)),
		)

		resp, err := transport.Execute(ctx, newRequest())
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(client.getCallCount()).To(Equal(2))
	})
})

var _ = Describe("Transport against a live server", func() {
	var (
		server   *httptest.Server
		requests atomic.Int32
		mu       sync.Mutex
		statuses []int
		handler  *recordingHandler
		logger   *slog.Logger
	)

	setStatuses := func(codes ...int) {
		mu.Lock()
		defer mu.Unlock()
		statuses = codes
	}

	BeforeEach(func() {
		requests.Store(0)
		setStatuses(http.StatusOK)
		handler = &recordingHandler{}
		logger = slog.New(handler)

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := int(requests.Add(1))
			mu.Lock()
			code := statuses[min(n-1, len(statuses)-1)]
			mu.Unlock()
			w.WriteHeader(code)
			_, _ = w.Write([]byte("[]"))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newTransport := func() fetchlist.Transport {
		return fetchlist.Chain(
			fetchlist.NewHTTPExecutor(time.Second),
			fetchlist.RetryMiddleware(
				fetchlist.WithLinearBackoff(5*time.Millisecond),
				fetchlist.WithRetryLogger(quietLogger()),
			),
			fetchlist.NewResponseLogger(logger),
		)
	}

	get := func() (*http.Response, error) {
		req, err := http.NewRequest(http.MethodGet, server.URL+"/hiring.json", nil)
		Expect(err).NotTo(HaveOccurred())
		return newTransport().Execute(context.Background(), req)
	}

	It("logs every attempt the retry layer makes", func() {
		setStatuses(http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusOK)

		resp, err := get()
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(requests.Load()).To(Equal(int32(3)))

		Expect(handler.messages()).To(Equal([]string{
			"response received",
			"response received",
			"response received",
		}))
		Expect(handler.attr(0, "status").Int64()).To(Equal(int64(500)))
		Expect(handler.attr(1, "status").Int64()).To(Equal(int64(503)))
		Expect(handler.attr(2, "status").Int64()).To(Equal(int64(200)))
		Expect(handler.attr(0, "method").String()).To(Equal(http.MethodGet))
	})

	It("hands a persistent server error back after three attempts", func() {
		setStatuses(http.StatusInternalServerError)

		resp, err := get()
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
		Expect(requests.Load()).To(Equal(int32(3)))
		Expect(handler.messages()).To(HaveLen(3))
	})

	It("sends a client error once", func() {
		setStatuses(http.StatusNotFound)

		resp, err := get()
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		Expect(requests.Load()).To(Equal(int32(1)))
	})

	It("logs transport failures and reports them after three attempts", func() {
		server.Close()

		_, err := get()
		var transportErr *fetchlist.TransportError
		Expect(errors.As(err, &transportErr)).To(BeTrue())
		Expect(transportErr.Attempts).To(Equal(3))
		Expect(handler.messages()).To(Equal([]string{
			"request failed",
			"request failed",
			"request failed",
		}))
	})
})
