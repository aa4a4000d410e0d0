package transport_test

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"trainsync/internal/transport"
	"trainsync/internal/transport/infrastructure/memory"
)

func newCountingServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestRequestKeyNormalizesParamOrder(t *testing.T) {
	a := transport.Request{URL: "http://example.com/stops/1/departures", Params: url.Values{"duration": {"480"}, "bus": {"false"}}}
	b := transport.Request{URL: "http://example.com/stops/1/departures?bus=false", Params: url.Values{"duration": {"480"}}}

	keyA, err := transport.RequestKey(a)
	if err != nil {
		t.Fatalf("key a: %v", err)
	}
	keyB, err := transport.RequestKey(b)
	if err != nil {
		t.Fatalf("key b: %v", err)
	}
	if keyA != keyB {
		t.Fatalf("expected equal keys, got %s and %s", keyA, keyB)
	}

	c := transport.Request{Method: http.MethodPost, URL: a.URL, Params: a.Params}
	keyC, err := transport.RequestKey(c)
	if err != nil {
		t.Fatalf("key c: %v", err)
	}
	if keyC == keyA {
		t.Fatalf("expected method to change the key")
	}
}

func TestCachedServesRepeatedRequestFromCache(t *testing.T) {
	server, hits := newCountingServer(t, http.StatusOK, `[]`)
	client, err := transport.NewClient("hafas")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	cached, err := transport.NewCached(client, memory.NewCacheStore(), "hafas", time.Hour)
	if err != nil {
		t.Fatalf("new cached: %v", err)
	}

	req := transport.Request{URL: server.URL + "/stops/8000105/departures", Params: url.Values{"duration": {"480"}}}
	first, err := cached.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	if first.FromCache {
		t.Fatalf("expected first response from network")
	}
	second, err := cached.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if !second.FromCache {
		t.Fatalf("expected second response from cache")
	}
	if string(second.Body) != `[]` {
		t.Fatalf("unexpected cached body %q", second.Body)
	}
	if got := atomic.LoadInt32(hits); got != 1 {
		t.Fatalf("expected 1 upstream call, got %d", got)
	}
}

func TestCachedLogsCacheHits(t *testing.T) {
	server, _ := newCountingServer(t, http.StatusOK, `[]`)
	var buf bytes.Buffer
	debug := log.New(&buf, "", 0)
	client, _ := transport.NewClient("hafas", transport.WithDebugLogger(debug))
	cached, err := transport.NewCached(client, memory.NewCacheStore(), "hafas", time.Hour, transport.WithCacheDebugLogger(debug))
	if err != nil {
		t.Fatalf("new cached: %v", err)
	}

	req := transport.Request{URL: server.URL + "/stops/8000105/arrivals"}
	for i := 0; i < 2; i++ {
		if _, err := cached.Do(context.Background(), req); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected one debug line per call, got %q", buf.String())
	}
	want := "hafas: GET 200 " + server.URL + "/stops/8000105/arrivals (cached)"
	if lines[1] != want {
		t.Fatalf("expected hit line %q, got %q", want, lines[1])
	}
}

func TestCachedDoesNotStoreNonOKResponses(t *testing.T) {
	server, hits := newCountingServer(t, http.StatusServiceUnavailable, `busy`)
	client, _ := transport.NewClient("hafas")
	cached, err := transport.NewCached(client, memory.NewCacheStore(), "hafas", time.Hour)
	if err != nil {
		t.Fatalf("new cached: %v", err)
	}

	req := transport.Request{URL: server.URL + "/trips/1"}
	for i := 0; i < 2; i++ {
		resp, err := cached.Do(context.Background(), req)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", resp.StatusCode)
		}
	}
	if got := atomic.LoadInt32(hits); got != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", got)
	}
}

func TestCachedNamespacesAreIsolated(t *testing.T) {
	server, hits := newCountingServer(t, http.StatusOK, `{}`)
	store := memory.NewCacheStore()
	client, _ := transport.NewClient("shared")
	hafas, _ := transport.NewCached(client, store, "hafas", time.Hour)
	coaches, _ := transport.NewCached(client, store, "coachsequence", time.Hour)

	req := transport.Request{URL: server.URL + "/same"}
	if _, err := hafas.Do(context.Background(), req); err != nil {
		t.Fatalf("hafas request: %v", err)
	}
	resp, err := coaches.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("coach request: %v", err)
	}
	if resp.FromCache {
		t.Fatalf("expected coach request to miss the hafas entry")
	}
	if got := atomic.LoadInt32(hits); got != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", got)
	}
}

func TestCachedBypassesWrites(t *testing.T) {
	var calls int
	next := transport.DoerFunc(func(ctx context.Context, req transport.Request) (*transport.Response, error) {
		calls++
		return &transport.Response{StatusCode: http.StatusOK}, nil
	})
	cached, _ := transport.NewCached(next, memory.NewCacheStore(), "internal", time.Hour)
	req := transport.Request{Method: http.MethodPost, URL: "http://example.com/trains/", Body: []byte(`{}`)}
	for i := 0; i < 2; i++ {
		if _, err := cached.Do(context.Background(), req); err != nil {
			t.Fatalf("post %d: %v", i, err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestRateLimitedBlocksUntilCapacity(t *testing.T) {
	var calls int
	next := transport.DoerFunc(func(ctx context.Context, req transport.Request) (*transport.Response, error) {
		calls++
		return &transport.Response{StatusCode: http.StatusOK}, nil
	})
	limited, err := transport.NewRateLimited(next, 1)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	req := transport.Request{URL: "http://example.com/"}
	if _, err := limited.Do(context.Background(), req); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := limited.Do(ctx, req); err == nil {
		t.Fatalf("expected second call to wait past the deadline")
	}
	if calls != 1 {
		t.Fatalf("expected 1 delegated call, got %d", calls)
	}
}

func TestRateLimitedRejectsInvalidRate(t *testing.T) {
	next := transport.DoerFunc(func(ctx context.Context, req transport.Request) (*transport.Response, error) {
		return nil, errors.New("unreachable")
	})
	if _, err := transport.NewRateLimited(next, 0); err == nil {
		t.Fatalf("expected error for zero rate")
	}
}

func TestClientReturnsNonOKAsResponse(t *testing.T) {
	server, _ := newCountingServer(t, http.StatusNotFound, `missing`)
	client, err := transport.NewClient("internal", transport.WithHeader("Authorization", "Basic abc"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	resp, err := client.Do(context.Background(), transport.Request{URL: server.URL + "/x"})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.OK() {
		t.Fatalf("expected non-OK response")
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
