package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Query is the board query sent for every station.
type Query struct {
	When            string `yaml:"when"`
	Duration        int    `yaml:"duration" validate:"gt=0"`
	Language        string `yaml:"language" validate:"required"`
	Bus             bool   `yaml:"bus"`
	Ferry           bool   `yaml:"ferry"`
	Subway          bool   `yaml:"subway"`
	Tram            bool   `yaml:"tram"`
	Taxi            bool   `yaml:"taxi"`
	Suburban        bool   `yaml:"suburban"`
	Regional        bool   `yaml:"regional"`
	RegionalExp     bool   `yaml:"regional_exp"`
	National        bool   `yaml:"national"`
	NationalExpress bool   `yaml:"national_express"`
	Stopovers       bool   `yaml:"stopovers"`
	Pretty          bool   `yaml:"pretty"`
	Remarks         bool   `yaml:"remarks"`
	Polyline        bool   `yaml:"polyline"`
}

// Config is built once at startup and passed to every component.
type Config struct {
	InternalBaseURL      string `yaml:"internal_base_url" validate:"required,url"`
	InternalUsername     string `yaml:"internal_username"`
	InternalPassword     string `yaml:"internal_password"`
	InternalJWTSecret    string `yaml:"internal_jwt_secret"`
	CoachSequenceBaseURL string `yaml:"coach_sequence_base_url" validate:"required,url"`
	HafasBaseURL         string `yaml:"hafas_base_url" validate:"required,url"`

	Query Query `yaml:"query"`

	RateLimit         int           `yaml:"rate_limit" validate:"gt=0"`
	InternalRateLimit int           `yaml:"internal_rate_limit" validate:"gt=0"`
	RequestTimeout    time.Duration `yaml:"request_timeout" validate:"gt=0"`
	Debug             bool          `yaml:"debug"`

	StationUsage string        `yaml:"station_usage" validate:"required"`
	SyncInterval time.Duration `yaml:"sync_interval" validate:"gt=0"`
	Timezone     string        `yaml:"timezone" validate:"required"`

	CacheBackend string        `yaml:"cache_backend" validate:"oneof=memory postgres"`
	CacheTTL     time.Duration `yaml:"cache_ttl" validate:"gt=0"`
	CacheSize    int           `yaml:"cache_size" validate:"gt=0"`
	DatabaseURL  string        `yaml:"database_url" validate:"required_if=CacheBackend postgres"`

	UpdateStopovers          bool `yaml:"update_stopovers"`
	UpdateStationCoordinates bool `yaml:"update_station_coordinates"`

	HTTPAddr         string `yaml:"http_addr"`
	ReportDir        string `yaml:"report_dir"`
	NotifyWebhookURL string `yaml:"notify_webhook_url" validate:"omitempty,url"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		InternalBaseURL:      "https://django.kube-test.itdw.io",
		CoachSequenceBaseURL: "https://bahn.expert",
		HafasBaseURL:         "https://v5.db.transport.rest",
		Query: Query{
			When:            "now",
			Duration:        480,
			Language:        "de",
			National:        true,
			NationalExpress: true,
			Stopovers:       true,
			Remarks:         true,
		},
		RateLimit:         90,
		InternalRateLimit: 300,
		RequestTimeout:    15 * time.Second,
		Debug:             true,
		StationUsage:      "FV",
		SyncInterval:      time.Minute,
		Timezone:          "Europe/Berlin",
		CacheBackend:      "memory",
		CacheTTL:          time.Hour,
		CacheSize:         10000,
		HTTPAddr:          ":8080",
	}
}

// Load reads defaults, then the yaml file named by SYNC_CONFIG, then the
// environment. Later sources win.
func Load() (Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom is Load with an injectable environment.
func LoadFrom(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path, ok := lookup("SYNC_CONFIG"); ok && path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	for _, b := range bindings {
		value, ok := lookup(b.key)
		if !ok || value == "" {
			continue
		}
		if err := b.set(&cfg, value); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", b.key, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone: %w", err)
	}
	if c.InternalPassword != "" && c.InternalUsername == "" {
		return errors.New("config: INTERNAL_PASSWORD set without INTERNAL_USERNAME")
	}
	if c.InternalUsername == "" && c.InternalJWTSecret == "" {
		return errors.New("config: backing store writes need INTERNAL_USERNAME or INTERNAL_JWT_SECRET")
	}
	return nil
}

// Location returns the service-date time zone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Setting is one key and its printable value.
type Setting struct {
	Key   string
	Value string
}

// Redacted lists every setting in a fixed order with secrets replaced by
// NO_LOG.
func (c Config) Redacted() []Setting {
	out := make([]Setting, 0, len(bindings))
	for _, b := range bindings {
		value := b.get(&c)
		if isSecret(b.key) {
			value = "NO_LOG"
		}
		out = append(out, Setting{Key: b.key, Value: value})
	}
	return out
}

func isSecret(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range []string{"password", "secret", "token", "database_url"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

type binding struct {
	key string
	get func(*Config) string
	set func(*Config, string) error
}

func str(key string, field func(*Config) *string) binding {
	return binding{
		key: key,
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func integer(key string, field func(*Config) *int) binding {
	return binding{
		key: key,
		get: func(c *Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *Config, v string) error {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			*field(c) = parsed
			return nil
		},
	}
}

func boolean(key string, field func(*Config) *bool) binding {
	return binding{
		key: key,
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			*field(c) = parsed
			return nil
		},
	}
}

// duration accepts Go durations or a bare number of seconds.
func duration(key string, field func(*Config) *time.Duration) binding {
	return binding{
		key: key,
		get: func(c *Config) string { return field(c).String() },
		set: func(c *Config, v string) error {
			if secs, err := strconv.Atoi(v); err == nil {
				*field(c) = time.Duration(secs) * time.Second
				return nil
			}
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return err
			}
			*field(c) = parsed
			return nil
		},
	}
}

var bindings = []binding{
	str("INTERNAL_BASE_URL", func(c *Config) *string { return &c.InternalBaseURL }),
	str("INTERNAL_USERNAME", func(c *Config) *string { return &c.InternalUsername }),
	str("INTERNAL_PASSWORD", func(c *Config) *string { return &c.InternalPassword }),
	str("INTERNAL_JWT_SECRET", func(c *Config) *string { return &c.InternalJWTSecret }),
	str("COACH_SEQUENCE_BASE_URL", func(c *Config) *string { return &c.CoachSequenceBaseURL }),
	str("HAFAS_BASE_URL", func(c *Config) *string { return &c.HafasBaseURL }),
	str("QUERY_WHEN", func(c *Config) *string { return &c.Query.When }),
	integer("QUERY_DURATION", func(c *Config) *int { return &c.Query.Duration }),
	str("QUERY_LANGUAGE", func(c *Config) *string { return &c.Query.Language }),
	boolean("QUERY_BUS", func(c *Config) *bool { return &c.Query.Bus }),
	boolean("QUERY_FERRY", func(c *Config) *bool { return &c.Query.Ferry }),
	boolean("QUERY_SUBWAY", func(c *Config) *bool { return &c.Query.Subway }),
	boolean("QUERY_TRAM", func(c *Config) *bool { return &c.Query.Tram }),
	boolean("QUERY_TAXI", func(c *Config) *bool { return &c.Query.Taxi }),
	boolean("QUERY_SUBURBAN", func(c *Config) *bool { return &c.Query.Suburban }),
	boolean("QUERY_REGIONAL", func(c *Config) *bool { return &c.Query.Regional }),
	boolean("QUERY_REGIONALEXP", func(c *Config) *bool { return &c.Query.RegionalExp }),
	boolean("QUERY_NATIONAL", func(c *Config) *bool { return &c.Query.National }),
	boolean("QUERY_NATIONALEXPRESS", func(c *Config) *bool { return &c.Query.NationalExpress }),
	boolean("QUERY_STOPOVERS", func(c *Config) *bool { return &c.Query.Stopovers }),
	boolean("QUERY_PRETTY", func(c *Config) *bool { return &c.Query.Pretty }),
	boolean("QUERY_REMARKS", func(c *Config) *bool { return &c.Query.Remarks }),
	boolean("QUERY_POLYLINE", func(c *Config) *bool { return &c.Query.Polyline }),
	integer("RATE_LIMIT", func(c *Config) *int { return &c.RateLimit }),
	integer("INTERNAL_RATE_LIMIT", func(c *Config) *int { return &c.InternalRateLimit }),
	duration("REQUEST_TIMEOUT", func(c *Config) *time.Duration { return &c.RequestTimeout }),
	boolean("DEBUG", func(c *Config) *bool { return &c.Debug }),
	str("STATION_USAGE", func(c *Config) *string { return &c.StationUsage }),
	duration("SYNC_INTERVAL", func(c *Config) *time.Duration { return &c.SyncInterval }),
	str("TIMEZONE", func(c *Config) *string { return &c.Timezone }),
	str("CACHE_BACKEND", func(c *Config) *string { return &c.CacheBackend }),
	duration("CACHE_TTL", func(c *Config) *time.Duration { return &c.CacheTTL }),
	integer("CACHE_SIZE", func(c *Config) *int { return &c.CacheSize }),
	str("DATABASE_URL", func(c *Config) *string { return &c.DatabaseURL }),
	boolean("UPDATE_STOPOVERS", func(c *Config) *bool { return &c.UpdateStopovers }),
	boolean("UPDATE_STATION_COORDINATES", func(c *Config) *bool { return &c.UpdateStationCoordinates }),
	str("HTTP_ADDR", func(c *Config) *string { return &c.HTTPAddr }),
	str("REPORT_DIR", func(c *Config) *string { return &c.ReportDir }),
	str("NOTIFY_WEBHOOK_URL", func(c *Config) *string { return &c.NotifyWebhookURL }),
}
