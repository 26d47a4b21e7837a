// Package goldapi adapts GoldAPI.io for international spot gold in USD per
// ounce.
package goldapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"findata/internal/provider"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=goldapi_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the GoldAPI.io spot price endpoint.
type Client struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient HTTPClient
}

// Option is a configuration option for the client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient creates a GoldAPI.io client authenticated with key.
func NewClient(key string, options ...Option) *Client {
	c := &Client{
		name:       "goldapi",
		baseURL:    "https://www.goldapi.io/api",
		apiKey:     key,
		httpClient: http.DefaultClient,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return c.name }

type spotResponse struct {
	Price       float64 `json:"price"`
	OpenPrice   float64 `json:"open_price"`
	HighPrice24 float64 `json:"high_price_24h"`
	LowPrice24  float64 `json:"low_price_24h"`
	Timestamp   int64   `json:"timestamp"`
}

// FetchGold returns the XAU/USD spot as a single quote.
func (c *Client) FetchGold(ctx context.Context) ([]provider.Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/XAU/USD", nil)
	if err != nil {
		return nil, provider.Wrap(provider.KindInvalidData, c.name, err)
	}
	req.Header.Set("x-access-token", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.TransportError(c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return nil, provider.Errf(provider.StatusKind(resp.StatusCode), c.name, "XAU/USD -> %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var body spotResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, provider.Errf(provider.KindInvalidData, c.name, "decode: %v", err)
	}
	if body.Price <= 0 {
		return nil, provider.Errf(provider.KindNoData, c.name, "zero spot price")
	}

	asOf := time.Now().UTC()
	if body.Timestamp > 0 {
		asOf = time.Unix(body.Timestamp, 0).UTC()
	}
	q := provider.Quote{
		Symbol:   "XAU",
		Open:     body.OpenPrice,
		High:     body.HighPrice24,
		Low:      body.LowPrice24,
		Close:    body.Price,
		AsOf:     asOf,
		Currency: "USD",
		Source:   c.name,
	}
	if !q.Valid() {
		return nil, provider.Errf(provider.KindInvalidData, c.name, "implausible spot response")
	}
	return []provider.Quote{q}, nil
}
