package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slideScript prunes entries older than the window and records the call only
// when it fits, so rejected calls do not push the window forward. It returns
// the admission flag, the entries in the window and the oldest entry's score.
var slideScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)
local first = now
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  first = tonumber(oldest[2])
end
return {allowed, count, first}
`)

// SlidingWindow is a Redis sorted-set limiter shared by every API replica.
// Each key holds the admission times, in milliseconds, of its last window.
type SlidingWindow struct {
	Client redis.UniversalClient
	Prefix string
	// Now overrides the clock; scores come from it rather than from Redis.
	Now func() time.Time
}

// Allow implements Limiter. reset is when the oldest admitted call leaves
// the window, which is when one more call fits again.
func (l SlidingWindow) Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error) {
	now := time.Now()
	if l.Now != nil {
		now = l.Now()
	}
	if l.Client == nil || max <= 0 || window <= 0 {
		return true, max, now.Add(window), nil
	}
	windowMs := window.Milliseconds()
	if windowMs < 1 {
		windowMs = 1
	}

	res, err := slideScript.Run(ctx, l.Client, []string{l.Prefix + key},
		now.UnixMilli(), windowMs, max, uuid.NewString()).Int64Slice()
	if err != nil {
		return false, 0, now.Add(window), fmt.Errorf("sliding window %s: %w", key, err)
	}
	if len(res) != 3 {
		return false, 0, now.Add(window), fmt.Errorf("sliding window %s: unexpected reply %v", key, res)
	}
	remaining = max - int(res[1])
	if remaining < 0 {
		remaining = 0
	}
	return res[0] == 1, remaining, time.UnixMilli(res[2]).Add(window), nil
}
