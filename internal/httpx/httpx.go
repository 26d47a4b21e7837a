package httpx

import (
	"context"
	"net"
	"net/http"
	"time"
)

// Client is a small wrapper around http.Client with sane defaults. Connect
// and read timeouts are split: batch endpoints are slow to first byte but
// cheap to dial, so a single overall timeout would either hang on dead hosts
// or kill legitimate responses.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	Headers   map[string]string
}

// New builds a client with the given connect and read timeouts. Zero values
// fall back to 10s / 90s.
func New(connectTimeout, readTimeout time.Duration) *Client {
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	if readTimeout <= 0 {
		readTimeout = 90 * time.Second
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   connectTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: readTimeout,
	}
	return &Client{
		HTTP:      &http.Client{Timeout: connectTimeout + readTimeout, Transport: transport},
		UserAgent: "findata/1.0",
	}
}

func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return c.HTTP.Do(req.WithContext(ctx))
}
