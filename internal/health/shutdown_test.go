package health_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-liquidacion/internal/app"
	"github.com/noah-isme/backend-liquidacion/internal/health"
	"github.com/noah-isme/backend-liquidacion/internal/resilience"
	"github.com/noah-isme/backend-liquidacion/internal/upstream"
)

func readiness(t *testing.T, h health.Handler) (int, map[string]string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var body map[string]string
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec.Code, body
}

func TestReadinessFollowsUpstreamBreaker(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	ops := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if failing.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ops.Close()

	client, err := upstream.NewClient(upstream.ClientConfig{
		BaseURL: ops.URL,
		Timeout: time.Second,
		Breaker: resilience.NewBreaker(1, 0.5, 30*time.Millisecond).WithTarget("ready-ops"),
	})
	require.NoError(t, err)
	h := health.Handler{Checker: app.Checker{Backend: client}, UpstreamTimeout: 50 * time.Millisecond}

	code, body := readiness(t, h)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, map[string]string{"redis": "ok", "upstream": "ok"}, body)

	_, err = client.GetGeneralInfo(context.Background(), "230-6584-1226")
	require.Error(t, err)

	code, body = readiness(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "ok", body["redis"])
	require.Equal(t, resilience.ErrOpenCircuit.Error(), body["upstream"])

	failing.Store(false)
	require.Eventually(t, func() bool {
		_, err := client.GetGeneralInfo(context.Background(), "230-6584-1226")
		return err == nil
	}, time.Second, 10*time.Millisecond)

	code, _ = readiness(t, h)
	require.Equal(t, http.StatusOK, code)
}

type countingChecker struct{ calls atomic.Int32 }

func (c *countingChecker) PingRedis(context.Context, time.Duration) error {
	c.calls.Add(1)
	return nil
}

func (c *countingChecker) PingUpstream(context.Context, time.Duration) error {
	c.calls.Add(1)
	return nil
}

func TestDrainingSkipsDependencyChecks(t *testing.T) {
	checker := &countingChecker{}
	h := health.Handler{Checker: checker}

	health.SetReady(false)
	t.Cleanup(func() { health.SetReady(true) })

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "shutting down")
	require.Zero(t, checker.calls.Load())
}
