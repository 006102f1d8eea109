// Package feed provides the client for the upstream yields aggregator API.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/yieldscout/internal/model"
)

// Fetcher is the interface the cache layer consumes. Satisfied by Client
// and by test doubles.
type Fetcher interface {
	// FetchPools retrieves the full raw pool universe from the feed.
	FetchPools(ctx context.Context) ([]model.RawPool, error)
}

// Client fetches the yields feed over HTTP with retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a feed client for the given endpoint. The timeout
// bounds each individual attempt, not the whole retry sequence.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: newRetryClient(timeout),
	}
}

// FetchPools retrieves the full pool list from the feed. The feed wraps
// its payload in a data envelope; records inside stay raw and are
// normalized by the caller.
func (c *Client) FetchPools(ctx context.Context) ([]model.RawPool, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	logrus.Debugf("Fetching pools from feed: %s", c.baseURL)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching pools from feed: %w", err)
	}
	defer resp.Body.Close()

	// Retryable statuses (429, most 5xx) are consumed by the transport
	// and surface from Do as a retries-exhausted error; only statuses the
	// retry policy passes through (4xx, 501) reach this branch.
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("feed API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Data []model.RawPool `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("error decoding feed response: %w", err)
	}

	if len(response.Data) == 0 {
		return nil, fmt.Errorf("no pools returned from feed")
	}

	logrus.Debugf("Received %d raw pools from feed", len(response.Data))
	return response.Data, nil
}

// newRetryClient creates an HTTP client with retry capabilities. Worst
// case a fully failing feed burns about 4 seconds of backoff per refresh
// cycle; the cache TTL spaces those cycles out.
func newRetryClient(timeout time.Duration) *http.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.HTTPClient.Timeout = timeout
	c.Logger = nil
	return c.StandardClient()
}
