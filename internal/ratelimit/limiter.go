package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/noah-isme/backend-liquidacion/internal/common"
)

// Limiter decides whether one more event for key fits in the window.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error)
}

var (
	_ Limiter = SlidingWindow{}
	_ Limiter = (*Memory)(nil)
)

type rate struct {
	window time.Duration
	max    int
}

// Memory is a fixed window limiter kept in process memory. It serves single
// instance deployments that run without Redis.
type Memory struct {
	store limiter.Store

	mu       sync.Mutex
	limiters map[rate]*limiter.Limiter
}

// NewMemory builds an in-memory limiter.
func NewMemory() *Memory {
	return &Memory{
		store:    memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: "ratelimit", CleanUpInterval: time.Minute}),
		limiters: make(map[rate]*limiter.Limiter),
	}
}

// Allow implements Limiter.
func (m *Memory) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	lctx, err := m.limiter(window, max).Get(ctx, key)
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !lctx.Reached, int(lctx.Remaining), time.Unix(lctx.Reset, 0), nil
}

func (m *Memory) limiter(window time.Duration, max int) *limiter.Limiter {
	r := rate{window: window, max: max}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.limiters[r]
	if !ok {
		l = limiter.New(m.store, limiter.Rate{Period: window, Limit: int64(max)})
		m.limiters[r] = l
	}
	return l
}

// ByClientIP keys requests by the caller's address.
func ByClientIP(r *http.Request) string {
	return "ip:" + common.ClientIP(r)
}

// BySession keys requests by the editor session in the route and the
// caller's address, so one busy session does not use up another's budget.
// Requests outside a session route fall back to the address alone.
func BySession(r *http.Request) string {
	if id := chi.URLParam(r, "sessionID"); id != "" {
		return "session:" + id + ":" + ByClientIP(r)
	}
	return ByClientIP(r)
}
