package fetchlist_test

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	fetchlist "github.com/JohnPlummer/jp-go-fetchlist"
)

var _ = Describe("TransportMetrics", func() {
	var (
		reg     *prometheus.Registry
		metrics *fetchlist.TransportMetrics
		client  *mockTransport
	)

	BeforeEach(func() {
		reg = prometheus.NewRegistry()
		metrics = fetchlist.NewTransportMetrics(reg)
		client = &mockTransport{}
	})

	It("counts responses by status code", func() {
		client.sequence(http.StatusServiceUnavailable, http.StatusOK)
		transport := fetchlist.Chain(client, metrics.Middleware())

		_, _ = transport.Execute(context.Background(), newRequest())
		_, _ = transport.Execute(context.Background(), newRequest())
		_, _ = transport.Execute(context.Background(), newRequest())

		Expect(testutil.ToFloat64(metrics.Responses().WithLabelValues("503"))).To(Equal(1.0))
		Expect(testutil.ToFloat64(metrics.Responses().WithLabelValues("200"))).To(Equal(2.0))
		Expect(testutil.ToFloat64(metrics.TransportErrors())).To(Equal(0.0))
	})

	It("counts transport errors", func() {
		client.executeFunc = func(ctx context.Context, req *http.Request) (*http.Response, error) {
			return nil, errConnRefused
		}
		transport := fetchlist.Chain(client, metrics.Middleware())

		_, err := transport.Execute(context.Background(), newRequest())
		Expect(err).To(Equal(errConnRefused))
		Expect(testutil.ToFloat64(metrics.TransportErrors())).To(Equal(1.0))
	})

	It("registers its collectors", func() {
		client.sequence(http.StatusOK)
		_, _ = fetchlist.Chain(client, metrics.Middleware()).Execute(context.Background(), newRequest())

		count, err := testutil.GatherAndCount(reg,
			"fetchlist_http_responses_total",
			"fetchlist_http_transport_errors_total",
			"fetchlist_http_request_duration_seconds",
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(3))
	})

	It("works without a registry", func() {
		unregistered := fetchlist.NewTransportMetrics(nil)
		client.sequence(http.StatusOK)

		resp, err := fetchlist.Chain(client, unregistered.Middleware()).Execute(context.Background(), newRequest())
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})
})
