package transport

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"trainsync/internal/observability/metrics"
)

// CachedResponse is what a CacheStore keeps per request signature.
type CachedResponse struct {
	StatusCode int
	URL        string
	Body       []byte
	StoredAt   time.Time
}

// CacheStore persists responses with a time-to-live.
type CacheStore interface {
	Get(ctx context.Context, key string) (CachedResponse, bool, error)
	Set(ctx context.Context, key string, resp CachedResponse, ttl time.Duration) error
}

// Cached serves repeated GET requests from a CacheStore. Only 200 responses
// are stored. Keys are prefixed with the namespace so that instances sharing
// one store never answer each other's requests.
type Cached struct {
	next      Doer
	store     CacheStore
	ttl       time.Duration
	namespace string
	logger    *log.Logger
	debug     *log.Logger
	now       func() time.Time
}

// CacheOption configures the cache.
type CacheOption func(*Cached)

// WithCacheLogger sets a logger for store failures.
func WithCacheLogger(logger *log.Logger) CacheOption {
	return func(c *Cached) {
		c.logger = logger
	}
}

// WithCacheDebugLogger enables a debug line per cache hit, matching the
// per-request lines of Client.
func WithCacheDebugLogger(logger *log.Logger) CacheOption {
	return func(c *Cached) {
		c.debug = logger
	}
}

// NewCached wraps next with a response cache.
func NewCached(next Doer, store CacheStore, namespace string, ttl time.Duration, opts ...CacheOption) (*Cached, error) {
	if next == nil {
		return nil, errors.New("transport: nil doer")
	}
	if store == nil {
		return nil, errors.New("transport: nil cache store")
	}
	if namespace == "" {
		return nil, errors.New("transport: empty cache namespace")
	}
	if ttl <= 0 {
		return nil, errors.New("transport: cache ttl must be positive")
	}
	c := &Cached{
		next:      next,
		store:     store,
		ttl:       ttl,
		namespace: namespace,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Do returns a cached response when one is live, otherwise calls next.
func (c *Cached) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.method()
	if method != http.MethodGet && method != http.MethodHead {
		return c.next.Do(ctx, req)
	}
	key, err := RequestKey(req)
	if err != nil {
		return nil, err
	}
	key = c.namespace + ":" + key

	cached, ok, err := c.store.Get(ctx, key)
	if err != nil && c.logger != nil {
		c.logger.Printf("transport cache: get failed namespace=%s err=%v", c.namespace, err)
	}
	metrics.ObserveCache(c.namespace, ok && err == nil)
	if ok && err == nil {
		if c.debug != nil {
			c.debug.Printf("%s: %s %d %s (cached)", c.namespace, method, cached.StatusCode, cached.URL)
		}
		return &Response{
			StatusCode: cached.StatusCode,
			URL:        cached.URL,
			Body:       cached.Body,
			FromCache:  true,
		}, nil
	}

	resp, err := c.next.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		entry := CachedResponse{
			StatusCode: resp.StatusCode,
			URL:        resp.URL,
			Body:       resp.Body,
			StoredAt:   c.now().UTC(),
		}
		if err := c.store.Set(ctx, key, entry, c.ttl); err != nil && c.logger != nil {
			c.logger.Printf("transport cache: set failed namespace=%s err=%v", c.namespace, err)
		}
	}
	return resp, nil
}
