package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trainsync/internal/transport"
)

const defaultCacheTable = "http_cache"

// CacheStore is a Postgres implementation of the response cache.
type CacheStore struct {
	db    *sql.DB
	table string
	now   func() time.Time
}

// NewCacheStore constructs a cache store.
func NewCacheStore(db *sql.DB, opts ...CacheOption) *CacheStore {
	store := &CacheStore{db: db, table: defaultCacheTable, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// CacheOption configures the cache store.
type CacheOption func(*CacheStore)

// WithCacheTable overrides table name.
func WithCacheTable(table string) CacheOption {
	return func(store *CacheStore) {
		if table != "" {
			store.table = table
		}
	}
}

// WithNow overrides the clock.
func WithNow(now func() time.Time) CacheOption {
	return func(store *CacheStore) {
		if now != nil {
			store.now = now
		}
	}
}

// EnsureSchema creates the cache table when missing.
func (s *CacheStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("cache store: nil db")
	}
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	cache_key TEXT PRIMARY KEY,
	status_code INTEGER NOT NULL,
	url TEXT NOT NULL,
	body BYTEA NOT NULL,
	stored_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
)`, s.table)
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Get loads an unexpired entry.
func (s *CacheStore) Get(ctx context.Context, key string) (transport.CachedResponse, bool, error) {
	if s == nil || s.db == nil {
		return transport.CachedResponse{}, false, errors.New("cache store: nil db")
	}
	if key == "" {
		return transport.CachedResponse{}, false, errors.New("cache store: empty key")
	}
	query := fmt.Sprintf(`
SELECT status_code, url, body, stored_at
FROM %s
WHERE cache_key = $1 AND expires_at > $2`, s.table)

	var entry transport.CachedResponse
	err := s.db.QueryRowContext(ctx, query, key, s.now().UTC()).Scan(
		&entry.StatusCode,
		&entry.URL,
		&entry.Body,
		&entry.StoredAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return transport.CachedResponse{}, false, nil
		}
		return transport.CachedResponse{}, false, err
	}
	entry.StoredAt = entry.StoredAt.UTC()
	return entry, true, nil
}

// Set upserts an entry expiring after ttl.
func (s *CacheStore) Set(ctx context.Context, key string, resp transport.CachedResponse, ttl time.Duration) error {
	if s == nil || s.db == nil {
		return errors.New("cache store: nil db")
	}
	if key == "" {
		return errors.New("cache store: empty key")
	}
	stored := resp.StoredAt
	if stored.IsZero() {
		stored = s.now().UTC()
	}
	query := fmt.Sprintf(`
INSERT INTO %s (cache_key, status_code, url, body, stored_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (cache_key)
DO UPDATE SET
	status_code = EXCLUDED.status_code,
	url = EXCLUDED.url,
	body = EXCLUDED.body,
	stored_at = EXCLUDED.stored_at,
	expires_at = EXCLUDED.expires_at`, s.table)
	_, err := s.db.ExecContext(ctx, query, key, resp.StatusCode, resp.URL, resp.Body, stored, stored.Add(ttl))
	return err
}

// DeleteExpired removes entries past their expiry and returns how many were removed.
func (s *CacheStore) DeleteExpired(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("cache store: nil db")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= $1`, s.table)
	res, err := s.db.ExecContext(ctx, query, s.now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
