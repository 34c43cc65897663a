package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// incrScript atomically increments the bucket and stamps its expiry on the
// first hit of a window. Running it server-side avoids the read-modify-write
// race a caller-side counter would have. Returns the count and remaining
// window in milliseconds.
var incrScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`)

// Redis is the distributed fixed-window limiter shared by all instances.
type Redis struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedis(client *redis.Client, limit int, window time.Duration) *Redis {
	return &Redis{client: client, limit: limit, window: window}
}

func (r *Redis) Allow(ctx context.Context, namespace, identity string) (Result, error) {
	vals, err := incrScript.Run(ctx, r.client, []string{"ratelimit:" + key(namespace, identity)}, r.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit increment failed: %w", err)
	}
	if len(vals) != 2 {
		return Result{}, fmt.Errorf("rate limit script returned %d values", len(vals))
	}

	count, ttlMs := vals[0], vals[1]
	now := time.Now()
	resetAt := now.Add(r.window)
	if ttlMs > 0 {
		resetAt = now.Add(time.Duration(ttlMs) * time.Millisecond)
	}

	if count > int64(r.limit) {
		return Result{
			OK:         false,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfter(resetAt, now),
		}, nil
	}

	return Result{
		OK:        true,
		Remaining: r.limit - int(count),
		ResetAt:   resetAt,
	}, nil
}
