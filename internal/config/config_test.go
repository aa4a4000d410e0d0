package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func env(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

// withSecret adds the minimum credentials a valid config needs.
func withSecret(values map[string]string) map[string]string {
	out := map[string]string{"INTERNAL_JWT_SECRET": "s3cret"}
	for key, value := range values {
		out[key] = value
	}
	return out
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(env(withSecret(nil)))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RateLimit != 90 || cfg.InternalRateLimit != 300 {
		t.Fatalf("unexpected rate limits %d %d", cfg.RateLimit, cfg.InternalRateLimit)
	}
	if cfg.Query.Duration != 480 || !cfg.Query.NationalExpress || cfg.Query.Bus {
		t.Fatalf("unexpected query %+v", cfg.Query)
	}
	if cfg.SyncInterval != time.Minute || cfg.CacheTTL != time.Hour {
		t.Fatalf("unexpected durations %s %s", cfg.SyncInterval, cfg.CacheTTL)
	}
	if cfg.UpdateStopovers || cfg.UpdateStationCoordinates {
		t.Fatalf("update policies must default to off")
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.yaml")
	content := []byte("rate_limit: 60\nsync_interval: 2m\nquery:\n  duration: 120\n  language: en\nstation_usage: RV\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadFrom(env(withSecret(map[string]string{
		"SYNC_CONFIG":      path,
		"RATE_LIMIT":       "30",
		"QUERY_BUS":        "true",
		"CACHE_TTL":        "600",
		"UPDATE_STOPOVERS": "true",
	})))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RateLimit != 30 {
		t.Fatalf("env should win over yaml, got %d", cfg.RateLimit)
	}
	if cfg.SyncInterval != 2*time.Minute || cfg.Query.Duration != 120 || cfg.Query.Language != "en" || cfg.StationUsage != "RV" {
		t.Fatalf("yaml values not applied: %+v", cfg)
	}
	if !cfg.Query.Bus || cfg.CacheTTL != 10*time.Minute || !cfg.UpdateStopovers {
		t.Fatalf("env values not applied: %+v", cfg)
	}
	if !cfg.Query.NationalExpress {
		t.Fatalf("defaults lost under yaml")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"bad int":            {"RATE_LIMIT": "lots"},
		"zero rate":          {"RATE_LIMIT": "0"},
		"bad url":            {"HAFAS_BASE_URL": "not a url"},
		"postgres no dsn":    {"CACHE_BACKEND": "postgres"},
		"unknown backend":    {"CACHE_BACKEND": "redis"},
		"bad timezone":       {"TIMEZONE": "Mars/Olympus"},
		"password sans user": {"INTERNAL_PASSWORD": "pw"},
	}
	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadFrom(env(withSecret(values))); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadRequiresStoreCredentials(t *testing.T) {
	if _, err := LoadFrom(env(nil)); err == nil {
		t.Fatalf("expected error without store credentials")
	}
	if _, err := LoadFrom(env(map[string]string{"INTERNAL_USERNAME": "sync", "INTERNAL_PASSWORD": "pw"})); err != nil {
		t.Fatalf("basic credentials should be accepted: %v", err)
	}
	if _, err := LoadFrom(env(map[string]string{"INTERNAL_JWT_SECRET": "s3cret"})); err != nil {
		t.Fatalf("service token secret should be accepted: %v", err)
	}
}

func TestRedactedHidesSecrets(t *testing.T) {
	cfg := Default()
	cfg.InternalUsername = "sync"
	cfg.InternalPassword = "hunter2"
	cfg.InternalJWTSecret = "s3cret"
	cfg.DatabaseURL = "postgres://u:p@db/sync"
	seen := map[string]string{}
	for _, setting := range cfg.Redacted() {
		seen[setting.Key] = setting.Value
	}
	for _, key := range []string{"INTERNAL_PASSWORD", "INTERNAL_JWT_SECRET", "DATABASE_URL"} {
		if seen[key] != "NO_LOG" {
			t.Fatalf("%s not redacted: %q", key, seen[key])
		}
	}
	if seen["INTERNAL_USERNAME"] != "sync" || seen["RATE_LIMIT"] != "90" {
		t.Fatalf("unexpected values %v", seen)
	}
}
