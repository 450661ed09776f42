package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/backend-liquidacion/internal/common"
)

// Config describes how to derive a rate limit key and thresholds.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler enforces rate limits before delegating to the next handler.
// Limiter failures let the request through and are reported to OnError.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
	// Skip exempts requests, such as CORS preflights.
	Skip func(*http.Request) bool
	// Scope separates the counters of handlers sharing one limiter, e.g.
	// "api" for every request and "write" for session mutations.
	Scope string
}

func (h Handler) key(r *http.Request) string {
	if h.Scope == "" {
		return h.Config.Key(r)
	}
	return h.Scope + ":" + h.Config.Key(r)
}

// Middleware implements the http.Handler middleware interface.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter == nil || h.Config.Key == nil || (h.Skip != nil && h.Skip(r)) {
			next.ServeHTTP(w, r)
			return
		}
		allowed, remaining, resetAt, err := h.Limiter.Allow(r.Context(), h.key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(max(h.Config.Max, 0)))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
		if allowed {
			next.ServeHTTP(w, r)
			return
		}

		retryAfter := int(math.Ceil(time.Until(resetAt).Seconds()))
		headers.Set("Retry-After", strconv.Itoa(max(retryAfter, 0)))
		common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", map[string]any{"retryAfter": max(retryAfter, 0)})
	})
}
