package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"trainsync/internal/transport"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return db
}

func TestCacheStoreRoundTripAndExpiry(t *testing.T) {
	db := openDB(t)
	defer db.Close()
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewCacheStore(db, WithCacheTable("http_cache_test"), WithNow(func() time.Time { return now }))
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	_, _ = db.ExecContext(ctx, "DELETE FROM http_cache_test")

	entry := transport.CachedResponse{StatusCode: 200, URL: "http://example.com/trips/1", Body: []byte(`{"id":"1"}`), StoredAt: now}
	if err := store.Set(ctx, "hafas:abc", entry, time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := store.Get(ctx, "hafas:abc")
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if string(got.Body) != `{"id":"1"}` {
		t.Fatalf("unexpected body %s", got.Body)
	}

	now = now.Add(2 * time.Hour)
	if _, ok, err := store.Get(ctx, "hafas:abc"); err != nil || ok {
		t.Fatalf("expected expired miss, ok=%v err=%v", ok, err)
	}
	removed, err := store.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed row, got %d", removed)
	}
}
