package memory

import (
	"context"
	"errors"
	"time"

	"github.com/bluele/gcache"

	"trainsync/internal/transport"
)

const defaultCacheSize = 10000

// CacheStore is an in-process LRU response cache with per-entry expiry.
type CacheStore struct {
	cache gcache.Cache
}

// CacheOption configures the store.
type CacheOption func(*cacheOptions)

type cacheOptions struct {
	size  int
	clock gcache.Clock
}

// WithSize overrides the maximum number of entries.
func WithSize(size int) CacheOption {
	return func(o *cacheOptions) {
		if size > 0 {
			o.size = size
		}
	}
}

// WithClock overrides the expiry clock.
func WithClock(clock gcache.Clock) CacheOption {
	return func(o *cacheOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// NewCacheStore constructs a store.
func NewCacheStore(opts ...CacheOption) *CacheStore {
	o := cacheOptions{size: defaultCacheSize, clock: gcache.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}
	return &CacheStore{cache: gcache.New(o.size).LRU().Clock(o.clock).Build()}
}

// Get returns a live entry.
func (s *CacheStore) Get(ctx context.Context, key string) (transport.CachedResponse, bool, error) {
	_ = ctx
	value, err := s.cache.Get(key)
	if err != nil {
		if errors.Is(err, gcache.KeyNotFoundError) {
			return transport.CachedResponse{}, false, nil
		}
		return transport.CachedResponse{}, false, err
	}
	entry, ok := value.(transport.CachedResponse)
	if !ok {
		return transport.CachedResponse{}, false, errors.New("memory cache: unexpected entry type")
	}
	return entry, true, nil
}

// Set stores an entry for ttl.
func (s *CacheStore) Set(ctx context.Context, key string, resp transport.CachedResponse, ttl time.Duration) error {
	_ = ctx
	if key == "" {
		return errors.New("memory cache: empty key")
	}
	return s.cache.SetWithExpire(key, resp, ttl)
}

// Len returns the number of live entries.
func (s *CacheStore) Len() int {
	return s.cache.Len(true)
}
