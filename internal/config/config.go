// Package config loads the mediator's configuration from environment
// variables (the primary source, matching how the service is deployed)
// with optional file-based overrides layered on top via viper.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvConfig reads prefixed environment variables, e.g. prefix "WGM" turns
// GetString("upstream_base_url") into a lookup of WGM_UPSTREAM_BASE_URL.
type EnvConfig struct {
	prefix string
}

func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{prefix: prefix}
}

func (e *EnvConfig) buildKey(key string) string {
	return strings.ToUpper(e.prefix) + "_" + strings.ToUpper(key)
}

func (e *EnvConfig) GetString(key, fallback string) string {
	if v := os.Getenv(e.buildKey(key)); v != "" {
		return v
	}
	return fallback
}

func (e *EnvConfig) MustGetString(key string) (string, error) {
	v := os.Getenv(e.buildKey(key))
	if v == "" {
		return "", fmt.Errorf("required environment variable %s is not set", e.buildKey(key))
	}
	return v, nil
}

func (e *EnvConfig) GetInt(key string, fallback int) int {
	v := os.Getenv(e.buildKey(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (e *EnvConfig) GetBool(key string, fallback bool) bool {
	v := os.Getenv(e.buildKey(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func (e *EnvConfig) GetDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(e.buildKey(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func (e *EnvConfig) GetFloat(key string, fallback float64) float64 {
	v := os.Getenv(e.buildKey(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// UpstreamConfig controls the Upstream Gateway: base URL, auth, rate
// limiting and retry behaviour.
type UpstreamConfig struct {
	BaseURL           string
	APIKey            string
	RequestsPerSecond float64
	BurstSize         int
	MaxRetries        int
	InitialBackoff    time.Duration
	BackoffStrategy   string // "exponential" or "linear"
	RequestTimeout    time.Duration
}

// DatabaseConfig names the four upstream database identifiers the service
// is told about at startup — the adopted "database-id-based"
// entity-kind detection (Q1) depends on these being known up front rather
// than inferred from page shape.
type DatabaseConfig struct {
	CharacterDBID     string
	ElementDBID       string
	PuzzleDBID        string
	TimelineEventDBID string
}

// CacheConfig controls the Cache Coordinator's in-memory bound and, if set,
// its Redis-backed tier.
type CacheConfig struct {
	MaxEntries int
	TTL        time.Duration
	RedisURL   string // empty disables the Redis tier
}

// ServerConfig controls the outer HTTP transport shell.
type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	APIKey          string
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	Enabled        bool
	OTLPEndpoint   string
	ServiceName    string
	SamplingRatio  float64
	Environment    string
}

type Config struct {
	Upstream UpstreamConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Server   ServerConfig
	Tracing  TracingConfig
	LogLevel string
}

// KindForDatabaseID resolves an upstream page's parent database id to an
// entity kind, returning ok=false for an unrecognized database.
func (d DatabaseConfig) KindForDatabaseID(dbID string) (string, bool) {
	switch dbID {
	case d.CharacterDBID:
		return "character", true
	case d.ElementDBID:
		return "element", true
	case d.PuzzleDBID:
		return "puzzle", true
	case d.TimelineEventDBID:
		return "timeline_event", true
	default:
		return "", false
	}
}

// Load builds Config from environment variables under the WGM_ prefix,
// then — if configFile is non-empty — layers viper-parsed file overrides
// on top, matching the "env first, file overrides" pattern used by the
// CLI entrypoint.
func Load(configFile string) (*Config, error) {
	env := NewEnvConfig("WGM")

	cfg := &Config{
		Database: DatabaseConfig{
			CharacterDBID:     env.GetString("db_character_id", ""),
			ElementDBID:       env.GetString("db_element_id", ""),
			PuzzleDBID:        env.GetString("db_puzzle_id", ""),
			TimelineEventDBID: env.GetString("db_timeline_event_id", ""),
		},
		Upstream: UpstreamConfig{
			BaseURL:           env.GetString("upstream_base_url", "https://api.workspace.example.com"),
			APIKey:            env.GetString("upstream_api_key", ""),
			RequestsPerSecond: env.GetFloat("upstream_rate_limit", 3),
			BurstSize:         env.GetInt("upstream_burst", 3),
			MaxRetries:        env.GetInt("upstream_max_retries", 3),
			InitialBackoff:    env.GetDuration("upstream_initial_backoff", 500*time.Millisecond),
			BackoffStrategy:   env.GetString("upstream_backoff_strategy", "exponential"),
			RequestTimeout:    env.GetDuration("upstream_timeout", 30*time.Second),
		},
		Cache: CacheConfig{
			MaxEntries: env.GetInt("cache_max_entries", 10000),
			TTL:        env.GetDuration("cache_ttl", 5*time.Minute),
			RedisURL:   env.GetString("cache_redis_url", ""),
		},
		Server: ServerConfig{
			Host:            env.GetString("server_host", "0.0.0.0"),
			Port:            env.GetInt("server_port", 8080),
			ShutdownTimeout: env.GetDuration("server_shutdown_timeout", 10*time.Second),
			APIKey:          env.GetString("server_api_key", ""),
		},
		Tracing: TracingConfig{
			Enabled:       env.GetBool("otel_enabled", false),
			OTLPEndpoint:  env.GetString("otel_exporter_otlp_endpoint", "localhost:4318"),
			ServiceName:   env.GetString("otel_service_name", "workspace-graph-mediator"),
			SamplingRatio: env.GetFloat("otel_sampling_ratio", 1.0),
			Environment:   env.GetString("otel_environment", "development"),
		},
		LogLevel: env.GetString("log_level", "info"),
	}

	if configFile == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
	}

	applyViperOverrides(v, cfg)
	return cfg, nil
}

func applyViperOverrides(v *viper.Viper, cfg *Config) {
	if v.IsSet("upstream.base_url") {
		cfg.Upstream.BaseURL = v.GetString("upstream.base_url")
	}
	if v.IsSet("upstream.api_key") {
		cfg.Upstream.APIKey = v.GetString("upstream.api_key")
	}
	if v.IsSet("upstream.requests_per_second") {
		cfg.Upstream.RequestsPerSecond = v.GetFloat64("upstream.requests_per_second")
	}
	if v.IsSet("upstream.burst_size") {
		cfg.Upstream.BurstSize = v.GetInt("upstream.burst_size")
	}
	if v.IsSet("upstream.max_retries") {
		cfg.Upstream.MaxRetries = v.GetInt("upstream.max_retries")
	}
	if v.IsSet("cache.max_entries") {
		cfg.Cache.MaxEntries = v.GetInt("cache.max_entries")
	}
	if v.IsSet("cache.ttl") {
		cfg.Cache.TTL = v.GetDuration("cache.ttl")
	}
	if v.IsSet("cache.redis_url") {
		cfg.Cache.RedisURL = v.GetString("cache.redis_url")
	}
	if v.IsSet("server.port") {
		cfg.Server.Port = v.GetInt("server.port")
	}
	if v.IsSet("server.api_key") {
		cfg.Server.APIKey = v.GetString("server.api_key")
	}
	if v.IsSet("tracing.enabled") {
		cfg.Tracing.Enabled = v.GetBool("tracing.enabled")
	}
}
