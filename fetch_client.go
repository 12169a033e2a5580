package fetchlist

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	// DefaultBaseURL is the host serving the hiring collection.
	DefaultBaseURL = "https://fetch-hiring.s3.amazonaws.com"

	// DefaultEndpoint is the path of the hiring collection.
	DefaultEndpoint = "/hiring.json"
)

// ItemFetcher retrieves the complete item collection.
type ItemFetcher interface {
	FetchItems(ctx context.Context) ([]Item, error)
}

// FetchClient issues the GET for the hiring collection and decodes the result.
type FetchClient struct {
	transport Transport
	baseURL   string
	endpoint  string
	logger    *slog.Logger
}

// FetchClientOption configures a FetchClient.
type FetchClientOption func(*FetchClient)

// WithEndpoint overrides the collection path. Default: DefaultEndpoint.
func WithEndpoint(path string) FetchClientOption {
	return func(c *FetchClient) {
		c.endpoint = path
	}
}

// WithFetchLogger sets the logger for the fetch client. Default: slog.Default().
func WithFetchLogger(logger *slog.Logger) FetchClientOption {
	return func(c *FetchClient) {
		c.logger = logger
	}
}

// NewFetchClient creates a FetchClient that sends requests for baseURL through transport.
//
// Example:
//
//	client := fetchlist.NewFetchClient(
//	    fetchlist.DefaultBaseURL,
//	    fetchlist.Chain(
//	        fetchlist.NewHTTPExecutor(10*time.Second),
//	        fetchlist.RetryMiddleware(),
//	        fetchlist.NewResponseLogger(logger),
//	    ),
//	)
func NewFetchClient(baseURL string, transport Transport, opts ...FetchClientOption) *FetchClient {
	c := &FetchClient{
		transport: transport,
		baseURL:   strings.TrimRight(baseURL, "/"),
		endpoint:  DefaultEndpoint,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if !strings.HasPrefix(c.endpoint, "/") {
		c.endpoint = "/" + c.endpoint
	}
	return c
}

// URL returns the address FetchItems requests.
func (c *FetchClient) URL() string {
	return c.baseURL + c.endpoint
}

// FetchItems sends one GET for the collection.
// A non-2xx response yields a *StatusCodeError carrying the code; a body that is not a
// JSON array of items yields a *DataFormatError. Transport errors are returned unchanged.
func (c *FetchClient) FetchItems(ctx context.Context) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.transport.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if !isSuccess(resp.StatusCode) {
		return nil, newHTTPStatusError(resp.StatusCode)
	}

	var items []Item
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&items); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &DataFormatError{Err: err}
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err == nil {
			err = fmt.Errorf("unexpected data after JSON array at offset %d", dec.InputOffset())
		}
		return nil, &DataFormatError{Err: err}
	}
	if items == nil {
		items = []Item{}
	}

	c.logger.Debug("items fetched",
		"url", c.URL(),
		"count", len(items))

	return items, nil
}
