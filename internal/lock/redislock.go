// Package lock coordinates background jobs across API replicas.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotConfigured is returned when the locker has no Redis client.
var ErrNotConfigured = errors.New("lock: redis client not configured")

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`

// Locker is a Redis SET NX lock. Keys are namespaced with Prefix.
type Locker struct {
	R            *redis.Client
	Prefix       string
	RetryBackoff time.Duration
}

// TryRun runs fn only if the lock for key is free, and reports whether it ran.
func (l Locker) TryRun(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) (bool, error) {
	token, ok, err := l.acquire(ctx, key, ttl)
	if err != nil || !ok {
		return false, err
	}
	defer l.release(key, token)
	return true, fn(ctx)
}

// WithLock waits for the lock on key and runs fn while holding it. The lock
// is released even if fn fails.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	for {
		token, ok, err := l.acquire(ctx, key, ttl)
		if err != nil {
			return err
		}
		if ok {
			defer l.release(key, token)
			return fn(ctx)
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l Locker) acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l.R == nil {
		return "", false, ErrNotConfigured
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	token := uuid.NewString()
	ok, err := l.R.SetNX(ctx, l.Prefix+key, token, ttl).Result()
	return token, ok, err
}

func (l Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = l.R.Eval(ctx, releaseScript, []string{l.Prefix + key}, token).Err()
}
