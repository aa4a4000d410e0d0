package transport

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"trainsync/internal/observability/metrics"
)

// RateLimited bounds calls to next to perMinute in any rolling minute by
// pacing them evenly. Callers block until a token is available.
type RateLimited struct {
	next    Doer
	limiter *rate.Limiter
	service string
}

// LimitOption configures the limiter.
type LimitOption func(*limitOptions)

type limitOptions struct {
	burst   int
	service string
}

// WithBurst overrides the bucket size (defaults to 1). A burst b admits up
// to perMinute+b-1 calls in a rolling minute.
func WithBurst(burst int) LimitOption {
	return func(o *limitOptions) {
		if burst > 0 {
			o.burst = burst
		}
	}
}

// WithLimitService sets the metrics label.
func WithLimitService(service string) LimitOption {
	return func(o *limitOptions) {
		o.service = service
	}
}

// NewRateLimited wraps next with a limiter.
func NewRateLimited(next Doer, perMinute int, opts ...LimitOption) (*RateLimited, error) {
	if next == nil {
		return nil, errors.New("transport: nil doer")
	}
	if perMinute <= 0 {
		return nil, errors.New("transport: rate limit must be positive")
	}
	o := limitOptions{burst: 1}
	for _, opt := range opts {
		opt(&o)
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(perMinuteLimit(perMinute), o.burst),
		service: o.service,
	}, nil
}

// Do waits for capacity, then delegates.
func (l *RateLimited) Do(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	metrics.ObserveRateLimitWait(l.service, time.Since(start))
	return l.next.Do(ctx, req)
}

func perMinuteLimit(perMinute int) rate.Limit {
	return rate.Limit(float64(perMinute) / time.Minute.Seconds())
}
