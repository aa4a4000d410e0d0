package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"trainsync/internal/observability/metrics"
)

const maxResponseBytes = 32 << 20

// Client executes requests against one upstream service over HTTP.
type Client struct {
	service string
	client  *http.Client
	header  http.Header
	debug   *log.Logger
}

// Option configures the client.
type Option func(*Client)

// WithTimeout overrides the default request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying http client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if key != "" {
			c.header.Set(key, value)
		}
	}
}

// WithDebugLogger enables per-request debug lines.
func WithDebugLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.debug = logger
	}
}

// NewClient constructs a client for the named service.
func NewClient(service string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(service) == "" {
		return nil, errors.New("transport: empty service name")
	}
	c := &Client{
		service: service,
		client:  &http.Client{Timeout: 15 * time.Second},
		header:  http.Header{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Service returns the service name used in logs and metrics.
func (c *Client) Service() string {
	return c.service
}

// Do performs the request. Non-2xx statuses are returned as responses, not errors.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	target, err := req.ResolvedURL()
	if err != nil {
		return nil, err
	}
	method := req.method()

	httpReq, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	for key, values := range c.header {
		httpReq.Header[key] = values
	}
	for key, values := range req.Header {
		httpReq.Header[key] = values
	}
	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	metrics.ObserveUpstream(c.service, err, time.Since(start))
	if err != nil {
		if c.debug != nil {
			c.debug.Printf("%s: %s %s failed: %v", c.service, method, target, err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if c.debug != nil {
		c.debug.Printf("%s: %s %d %s", c.service, method, resp.StatusCode, target)
	}
	return &Response{StatusCode: resp.StatusCode, URL: target, Body: body}, nil
}
