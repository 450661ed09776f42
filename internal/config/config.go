package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Upstream modes.
const (
	UpstreamMock = "mock"
	UpstreamHTTP = "http"
)

// Outbox transports.
const (
	TransportInProcess = "inprocess"
	TransportAsynq     = "asynq"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CORSAllowedOrigins []string

	UpstreamMode      string
	UpstreamBaseURL   string
	UpstreamTimeout   time.Duration
	UpstreamMockDelay time.Duration

	OutboxTransport string
	OutboxWorkers   int
	OutboxBuffer    int
	OutboxQueue     string

	CatalogPath      string
	CatalogCacheTTL  time.Duration
	CatalogRefresh   string
	SessionIdleTTL   time.Duration
	SessionSweepSpec string

	IdempotencyTTL    time.Duration
	RateLimitMax      int
	RateLimitWriteMax int
	RateLimitWindow   time.Duration
	BodyLimitBytes    int64

	CircuitMinRequests  int
	CircuitFailureRatio float64
	CircuitOpenFor      time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		UpstreamMode:      strings.ToLower(valueOrDefault(k.String("UPSTREAM_MODE"), UpstreamMock)),
		UpstreamBaseURL:   strings.TrimRight(strings.TrimSpace(k.String("UPSTREAM_BASE_URL")), "/"),
		UpstreamTimeout:   parseDuration(k.String("UPSTREAM_TIMEOUT"), "5s"),
		UpstreamMockDelay: parseDuration(k.String("UPSTREAM_MOCK_DELAY"), "500ms"),

		OutboxTransport: strings.ToLower(valueOrDefault(k.String("OUTBOX_TRANSPORT"), TransportInProcess)),
		OutboxWorkers:   parseInt(k.String("OUTBOX_WORKERS"), 4),
		OutboxBuffer:    parseInt(k.String("OUTBOX_BUFFER"), 256),
		OutboxQueue:     valueOrDefault(k.String("OUTBOX_QUEUE"), "liquidation"),

		CatalogPath:      strings.TrimSpace(k.String("CATALOG_PATH")),
		CatalogCacheTTL:  parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		CatalogRefresh:   valueOrDefault(k.String("CATALOG_REFRESH_SPEC"), "@every 10m"),
		SessionIdleTTL:   parseDuration(k.String("SESSION_IDLE_TTL"), "30m"),
		SessionSweepSpec: valueOrDefault(k.String("SESSION_SWEEP_SPEC"), "@every 1m"),

		IdempotencyTTL:    parseDuration(k.String("IDEMPOTENCY_TTL"), "10s"),
		RateLimitMax:      parseInt(k.String("RATE_LIMIT_MAX"), 120),
		RateLimitWriteMax: parseInt(k.String("RATE_LIMIT_WRITE_MAX"), 60),
		RateLimitWindow:   parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		BodyLimitBytes:    int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),

		CircuitMinRequests:  parseInt(k.String("CIRCUIT_MIN_REQUESTS"), 10),
		CircuitFailureRatio: parseFloat(k.String("CIRCUIT_FAILURE_RATIO"), 0.5),
		CircuitOpenFor:      parseDuration(k.String("CIRCUIT_OPEN_FOR"), "30s"),
	}

	switch cfg.UpstreamMode {
	case UpstreamMock:
	case UpstreamHTTP:
		if cfg.UpstreamBaseURL == "" {
			return nil, errors.New("UPSTREAM_BASE_URL is required when UPSTREAM_MODE=http")
		}
	default:
		return nil, fmt.Errorf("unsupported UPSTREAM_MODE %q", cfg.UpstreamMode)
	}

	switch cfg.OutboxTransport {
	case TransportInProcess:
	case TransportAsynq:
		if cfg.RedisURL == "" {
			return nil, errors.New("REDIS_URL is required when OUTBOX_TRANSPORT=asynq")
		}
	default:
		return nil, fmt.Errorf("unsupported OUTBOX_TRANSPORT %q", cfg.OutboxTransport)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
