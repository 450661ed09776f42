package common

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestIdemRejectsReplayedKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	calls := 0
	h := Idem{R: client, TTL: 10 * time.Second}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s1/items", nil)
	req.Header.Set("Idempotency-Key", "add-1")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "IDEMPOTENT_REPLAY")
	require.Equal(t, 1, calls)

	mr.FastForward(11 * time.Second)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)
}

func TestIdemScopesKeyToPath(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := Idem{R: client, TTL: time.Minute}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for _, path := range []string{"/api/v1/sessions/s1/save", "/api/v1/sessions/s2/save"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set(IdempotencyHeader, "save")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		require.Equal(t, http.StatusNoContent, rr.Code, path)
	}
	require.Len(t, mr.Keys(), 2)
	require.Contains(t, mr.Keys()[0], "liquidacion:idem:")
}

func TestIdemPassesThroughWithoutKey(t *testing.T) {
	calls := 0
	h := Idem{}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	}
	require.Equal(t, 2, calls)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	require.Equal(t, "192.0.2.1", ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.9")
	require.Equal(t, "198.51.100.9", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.4, 10.0.0.1")
	require.Equal(t, "203.0.113.4", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "not-an-ip")
	require.Equal(t, "198.51.100.9", ClientIP(req))
}

func TestAtoiDefault(t *testing.T) {
	require.Equal(t, 5, AtoiDefault("", 5))
	require.Equal(t, 5, AtoiDefault("x", 5))
	require.Equal(t, 12, AtoiDefault(" 12 ", 5))
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&offset=-3&page=x", nil)
	require.Equal(t, 200, QueryInt(req, "limit", 50, 1, 200))
	require.Equal(t, 0, QueryInt(req, "offset", 0, 0, 0))
	require.Equal(t, 7, QueryInt(req, "page", 7, 1, 100))
	require.Equal(t, 50, QueryInt(req, "missing", 50, 1, 200))
}

func TestWriteAppError(t *testing.T) {
	rr := httptest.NewRecorder()
	err := fmt.Errorf("wrapped: %w", NewAppError("UPSTREAM_ERROR", "", http.StatusBadGateway, nil).WithDetails(map[string]any{"awb": "230-6584-1226"}))
	require.True(t, WriteAppError(rr, err))
	require.Equal(t, http.StatusBadGateway, rr.Code)
	require.Contains(t, rr.Body.String(), `"code":"UPSTREAM_ERROR"`)
	require.Contains(t, rr.Body.String(), `"message":"Bad Gateway"`)

	require.False(t, WriteAppError(httptest.NewRecorder(), errors.New("plain")))
}
