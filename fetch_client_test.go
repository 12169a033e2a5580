package fetchlist_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	fetchlist "github.com/JohnPlummer/jp-go-fetchlist"
)

var _ = Describe("FetchClient", func() {
	var (
		ctx      context.Context
		server   *httptest.Server
		requests atomic.Int32
		lastReq  atomic.Pointer[http.Request]
	)

	serve := func(code int, body string) {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			lastReq.Store(r)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			_, _ = w.Write([]byte(body))
		}))
	}

	newClient := func() *fetchlist.FetchClient {
		transport := fetchlist.NewRetryWrapper(
			fetchlist.NewHTTPExecutor(2*time.Second),
			fetchlist.WithLinearBackoff(5*time.Millisecond),
			fetchlist.WithRetryLogger(quietLogger()),
		)
		return fetchlist.NewFetchClient(server.URL, transport, fetchlist.WithFetchLogger(quietLogger()))
	}

	BeforeEach(func() {
		ctx = context.Background()
		requests.Store(0)
		lastReq.Store(nil)
	})

	AfterEach(func() {
		if server != nil {
			server.Close()
		}
	})

	Describe("NewFetchClient", func() {
		It("joins the base URL and endpoint", func() {
			client := fetchlist.NewFetchClient("https://example.test/", nil)
			Expect(client.URL()).To(Equal("https://example.test/hiring.json"))
		})

		It("accepts an endpoint without a leading slash", func() {
			client := fetchlist.NewFetchClient("https://example.test", nil, fetchlist.WithEndpoint("lists.json"))
			Expect(client.URL()).To(Equal("https://example.test/lists.json"))
		})
	})

	Describe("FetchItems", func() {
		It("decodes the collection in server order", func() {
			serve(http.StatusOK, `[
				{"id": 684, "listId": 1, "name": "Item 684"},
				{"id": 276, "listId": 1, "name": ""},
				{"id": 808, "listId": 4, "name": null},
				{"id": 680, "listId": 3, "name": "Item 680"}
			]`)

			items, err := newClient().FetchItems(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(4))
			Expect(items[0].ID).To(Equal(684))
			Expect(items[0].ListID).To(Equal(1))
			Expect(items[0].DisplayName()).To(Equal("Item 684"))
			Expect(items[1].Name).NotTo(BeNil())
			Expect(*items[1].Name).To(BeEmpty())
			Expect(items[2].Name).To(BeNil())
			Expect(items[3].ListID).To(Equal(3))
		})

		It("sends a single GET for the hiring path", func() {
			serve(http.StatusOK, `[]`)

			_, err := newClient().FetchItems(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(requests.Load()).To(Equal(int32(1)))

			req := lastReq.Load()
			Expect(req.Method).To(Equal(http.MethodGet))
			Expect(req.URL.Path).To(Equal("/hiring.json"))
			Expect(req.Header.Get("Accept")).To(Equal("application/json"))
		})

		It("returns an empty slice for an empty array", func() {
			serve(http.StatusOK, `[]`)

			items, err := newClient().FetchItems(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).NotTo(BeNil())
			Expect(items).To(BeEmpty())
		})

		It("returns an empty slice for a null body", func() {
			serve(http.StatusOK, `null`)

			items, err := newClient().FetchItems(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).NotTo(BeNil())
			Expect(items).To(BeEmpty())
		})

		It("accepts trailing whitespace after the array", func() {
			serve(http.StatusOK, "[{\"id\": 1, \"listId\": 1, \"name\": \"Item 1\"}]\n\n")

			items, err := newClient().FetchItems(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
		})

		It("ignores unknown fields", func() {
			serve(http.StatusOK, `[{"id": 1, "listId": 2, "name": "Item 1", "extra": true}]`)

			items, err := newClient().FetchItems(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
		})

		It("decodes a large collection", func() {
			var b strings.Builder
			b.WriteString("[")
			for i := 0; i < 1000; i++ {
				if i > 0 {
					b.WriteString(",")
				}
				fmt.Fprintf(&b, `{"id": %d, "listId": %d, "name": "Item %d"}`, i, i%4+1, i)
			}
			b.WriteString("]")
			serve(http.StatusOK, b.String())

			items, err := newClient().FetchItems(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1000))
			Expect(fetchlist.Transform(items).Len()).To(Equal(1000))
		})

		It("reports a 404 as a status error without retrying", func() {
			serve(http.StatusNotFound, `{"message": "missing"}`)

			items, err := newClient().FetchItems(ctx)
			Expect(items).To(BeNil())
			Expect(requests.Load()).To(Equal(int32(1)))

			var statusErr *fetchlist.StatusCodeError
			Expect(errors.As(err, &statusErr)).To(BeTrue())
			Expect(statusErr.StatusCode()).To(Equal(http.StatusNotFound))
			Expect(err.Error()).To(Equal("HTTP 404 Not Found"))
		})

		It("reports a persistent 500 after three attempts", func() {
			serve(http.StatusInternalServerError, `oops`)

			_, err := newClient().FetchItems(ctx)
			Expect(requests.Load()).To(Equal(int32(3)))

			var statusErr *fetchlist.StatusCodeError
			Expect(errors.As(err, &statusErr)).To(BeTrue())
			Expect(statusErr.StatusCode()).To(Equal(http.StatusInternalServerError))
		})

		DescribeTable("reports malformed bodies as a data format error",
			func(body string) {
				serve(http.StatusOK, body)

				_, err := newClient().FetchItems(ctx)
				var formatErr *fetchlist.DataFormatError
				Expect(errors.As(err, &formatErr)).To(BeTrue())
				Expect(err.Error()).To(HavePrefix("malformed response body"))
				Expect(requests.Load()).To(Equal(int32(1)))
			},
			Entry("truncated JSON", `[{"id": 1,`),
			Entry("an object instead of an array", `{"id": 1}`),
			Entry("a wrong field type", `[{"id": "one", "listId": 1, "name": "x"}]`),
			Entry("not JSON at all", `<html></html>`),
			Entry("trailing data", `[{"id":1,"listId":1,"name":"Item 1"}] garbage`),
			Entry("a second array", `[] []`),
		)

		It("reports an unreachable host as a transport error", func() {
			serve(http.StatusOK, `[]`)
			client := newClient()
			server.Close()

			_, err := client.FetchItems(ctx)
			var transportErr *fetchlist.TransportError
			Expect(errors.As(err, &transportErr)).To(BeTrue())
			Expect(transportErr.Attempts).To(Equal(3))
		})

		It("returns the context error when cancelled", func() {
			release := make(chan struct{})
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-release:
				case <-r.Context().Done():
				}
			}))
			defer close(release)

			cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()

			_, err := newClient().FetchItems(cancelCtx)
			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
		})
	})

	Describe("Item JSON", func() {
		It("keeps an absent name distinct from an empty one", func() {
			var items []fetchlist.Item
			Expect(json.Unmarshal([]byte(`[{"id":1,"listId":1},{"id":2,"listId":1,"name":""}]`), &items)).To(Succeed())
			Expect(items[0].Name).To(BeNil())
			Expect(items[0].HasName()).To(BeFalse())
			Expect(items[1].Name).NotTo(BeNil())
			Expect(items[1].HasName()).To(BeFalse())
		})
	})
})
