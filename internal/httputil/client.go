// Package httputil provides HTTP client and response helpers shared by the
// detector client, the Telegram notifier, and the API server.
package httputil

import "net/http"

// HTTPClient abstracts request execution for testability. Production code
// wraps *http.Client via NewStandardClient; tests substitute httptest servers
// or fakes.
type HTTPClient interface {
	// Do sends an HTTP request and returns an HTTP response.
	Do(req *http.Request) (*http.Response, error)
}

// StandardClient wraps *http.Client to implement HTTPClient.
type StandardClient struct {
	*http.Client
}

// NewStandardClient creates a new StandardClient wrapping the given http.Client.
func NewStandardClient(c *http.Client) *StandardClient {
	if c == nil {
		c = http.DefaultClient
	}
	return &StandardClient{Client: c}
}

// Do sends an HTTP request.
func (c *StandardClient) Do(req *http.Request) (*http.Response, error) {
	return c.Client.Do(req)
}
