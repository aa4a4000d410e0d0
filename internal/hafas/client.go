package hafas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"trainsync/internal/transport"
)

const defaultBoardAttempts = 2

// Client reads departure boards, arrival boards and trip details.
type Client struct {
	doer       transport.Doer
	baseURL    string
	query      BoardQuery
	attempts   int
	newBackOff func() backoff.BackOff
	logger     *log.Logger
}

// Option configures the client.
type Option func(*Client)

// WithBoardAttempts overrides the number of attempts for board requests.
func WithBoardAttempts(attempts int) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
	}
}

// WithBackOff overrides the delay policy between board attempts.
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(c *Client) {
		if factory != nil {
			c.newBackOff = factory
		}
	}
}

// WithLogger sets the logger used for retry notices.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient constructs a client on top of a rate-limited, cached doer.
func NewClient(doer transport.Doer, baseURL string, query BoardQuery, opts ...Option) (*Client, error) {
	if doer == nil {
		return nil, errors.New("hafas: nil doer")
	}
	if baseURL == "" {
		return nil, errors.New("hafas: empty base url")
	}
	c := &Client{
		doer:     doer,
		baseURL:  strings.TrimRight(baseURL, "/"),
		query:    query,
		attempts: defaultBoardAttempts,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Departures returns the departure board of a station. On failure the
// returned slice is empty and err tells why.
func (c *Client) Departures(ctx context.Context, stationID string) ([]BoardEntry, error) {
	return c.board(ctx, "departures", stationID)
}

// Arrivals returns the arrival board of a station. On failure the returned
// slice is empty and err tells why.
func (c *Client) Arrivals(ctx context.Context, stationID string) ([]BoardEntry, error) {
	return c.board(ctx, "arrivals", stationID)
}

func (c *Client) board(ctx context.Context, kind, stationID string) ([]BoardEntry, error) {
	if stationID == "" {
		return []BoardEntry{}, errors.New("hafas: empty station id")
	}
	op := "hafas." + kind
	req := transport.Request{
		URL:    fmt.Sprintf("%s/stops/%s/%s", c.baseURL, url.PathEscape(stationID), kind),
		Params: c.query.Values(),
	}

	attempt := func() ([]BoardEntry, error) {
		entries, err := c.fetchBoard(ctx, op, kind, req)
		if err != nil && !transport.IsTransient(err) {
			return nil, backoff.Permanent(err)
		}
		return entries, err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.attempts-1)), ctx)
	notify := func(err error, wait time.Duration) {
		if c.logger != nil {
			c.logger.Printf("hafas: retrying %s station=%s in %s: %v", kind, stationID, wait, err)
		}
	}
	entries, err := backoff.RetryNotifyWithData(attempt, policy, notify)
	if err != nil {
		return []BoardEntry{}, err
	}
	return entries, nil
}

func (c *Client) fetchBoard(ctx context.Context, op, kind string, req transport.Request) ([]BoardEntry, error) {
	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		return nil, transport.Classify(op, req.URL, err)
	}
	if !resp.OK() {
		return nil, transport.Rejected(op, resp)
	}
	entries, err := decodeBoard(resp.Body, kind)
	if err != nil {
		return nil, transport.Shape(op, resp.URL, err)
	}
	return entries, nil
}

// decodeBoard accepts a bare array or an object keyed by the board kind.
func decodeBoard(body []byte, kind string) ([]BoardEntry, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}
	if trimmed[0] == '[' {
		var entries []BoardEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, err
		}
		return entries, nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, err
	}
	raw, ok := wrapped[kind]
	if !ok {
		return nil, fmt.Errorf("missing %q", kind)
	}
	var entries []BoardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Trip loads the full detail of one trip. It is not retried here; the
// caller decides. Errors are *transport.FetchError.
func (c *Client) Trip(ctx context.Context, lineName, tripID string) (*Trip, error) {
	if tripID == "" {
		return nil, errors.New("hafas: empty trip id")
	}
	const op = "hafas.trip"
	req := transport.Request{
		URL:    fmt.Sprintf("%s/trips/%s", c.baseURL, url.PathEscape(tripID)),
		Params: c.query.tripValues(lineName),
	}
	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		return nil, transport.Classify(op, req.URL, err)
	}
	if !resp.OK() {
		return nil, transport.Rejected(op, resp)
	}
	trip, err := decodeTrip(resp.Body)
	if err != nil {
		return nil, transport.Shape(op, resp.URL, err)
	}
	return trip, nil
}

// decodeTrip accepts a bare trip or {"trip": {...}}.
func decodeTrip(body []byte) (*Trip, error) {
	var wrapped struct {
		Trip *Trip `json:"trip"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Trip != nil {
		return validTrip(wrapped.Trip)
	}
	var trip Trip
	if err := json.Unmarshal(body, &trip); err != nil {
		return nil, err
	}
	return validTrip(&trip)
}

func validTrip(trip *Trip) (*Trip, error) {
	if trip.ID == "" {
		return nil, errors.New("trip without id")
	}
	if trip.Line == nil {
		return nil, errors.New("trip without line")
	}
	return trip, nil
}
