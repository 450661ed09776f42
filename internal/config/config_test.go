package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"UPSTREAM_MODE":    "",
		"OUTBOX_TRANSPORT": "",
		"OUTBOX_WORKERS":   "",
		"PORT":             "",
	})
	require.NoError(t, err)
	require.Equal(t, UpstreamMock, cfg.UpstreamMode)
	require.Equal(t, TransportInProcess, cfg.OutboxTransport)
	require.Equal(t, 4, cfg.OutboxWorkers)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 500*time.Millisecond, cfg.UpstreamMockDelay)
}

func TestLoadHTTPUpstreamRequiresBaseURL(t *testing.T) {
	_, err := LoadForTests(map[string]string{"UPSTREAM_MODE": "http", "UPSTREAM_BASE_URL": ""})
	require.Error(t, err)

	cfg, err := LoadForTests(map[string]string{
		"UPSTREAM_MODE":     "HTTP",
		"UPSTREAM_BASE_URL": "https://ops.example.com/",
		"UPSTREAM_TIMEOUT":  "bogus",
	})
	require.NoError(t, err)
	require.Equal(t, "https://ops.example.com", cfg.UpstreamBaseURL)
	require.Equal(t, 5*time.Second, cfg.UpstreamTimeout)
}

func TestLoadAsynqRequiresRedis(t *testing.T) {
	_, err := LoadForTests(map[string]string{"OUTBOX_TRANSPORT": "asynq", "REDIS_URL": ""})
	require.Error(t, err)

	_, err = LoadForTests(map[string]string{"OUTBOX_TRANSPORT": "carrier-pigeon"})
	require.Error(t, err)
}

func TestLoadParsesLists(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"CORS_ALLOWED_ORIGINS":  "https://a.example, ,https://b.example",
		"CIRCUIT_FAILURE_RATIO": "0.25",
		"RATE_LIMIT_MAX":        "-3",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	require.Equal(t, 0.25, cfg.CircuitFailureRatio)
	require.Equal(t, 120, cfg.RateLimitMax)
	require.Equal(t, 60, cfg.RateLimitWriteMax)
}
