package transport

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// Request describes one outbound call. URL may already carry a query string
// (pagination links do); Params are merged into it.
type Request struct {
	Method string
	URL    string
	Params url.Values
	Header http.Header
	Body   []byte
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	URL        string
	Body       []byte
	FromCache  bool
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Doer executes requests. Client, RateLimited and Cached all implement it.
type Doer interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// DoerFunc adapts a function to Doer.
type DoerFunc func(ctx context.Context, req Request) (*Response, error)

// Do calls f.
func (f DoerFunc) Do(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// ResolvedURL returns the target URL with Params merged into its query.
// Query keys are emitted in sorted order.
func (r Request) ResolvedURL() (string, error) {
	if r.URL == "" {
		return "", errors.New("transport: empty url")
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return "", err
	}
	if len(r.Params) == 0 && u.RawQuery == "" {
		return u.String(), nil
	}
	query := u.Query()
	for key, values := range r.Params {
		query.Del(key)
		for _, value := range values {
			query.Add(key, value)
		}
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

// RequestKey is the cache signature of a request: method, resolved URL with
// normalized parameters, and body.
func RequestKey(req Request) (string, error) {
	target, err := req.ResolvedURL()
	if err != nil {
		return "", err
	}
	h := sha1.New()
	h.Write([]byte(req.method()))
	h.Write([]byte{' '})
	h.Write([]byte(target))
	if len(req.Body) > 0 {
		h.Write([]byte{'\n'})
		h.Write(req.Body)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
