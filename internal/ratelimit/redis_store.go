package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// takeScript returns {allowed, count, pttl}. The first hit of a window creates
// the key with the window as its TTL; a key at the limit is left untouched.
var takeScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if not current then
	redis.call("SET", KEYS[1], 1, "PX", ARGV[1])
	return {1, 1, tonumber(ARGV[1])}
end
local count = tonumber(current)
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("SET", KEYS[1], 1, "PX", ARGV[1])
	return {1, 1, tonumber(ARGV[1])}
end
if count >= tonumber(ARGV[2]) then
	return {0, count, ttl}
end
count = redis.call("INCR", KEYS[1])
return {1, count, ttl}
`)

// RedisStore shares counters between processes. Windows are anchored to the
// Redis clock, so ResetTime is reconstructed from the key TTL.
type RedisStore struct {
	Client redis.Scripter
	Prefix string
}

func NewRedisStore(client redis.Scripter) *RedisStore {
	return &RedisStore{Client: client, Prefix: "ratelimit:"}
}

func (s *RedisStore) Take(ctx context.Context, key string, cfg Config, now time.Time) (Result, error) {
	raw, err := takeScript.Run(ctx, s.Client, []string{s.Prefix + key},
		cfg.Window.Milliseconds(), cfg.MaxRequests).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(raw) != 3 {
		return Result{}, fmt.Errorf("rate limit script: unexpected reply %v", raw)
	}

	allowed, count, ttl := raw[0] == 1, int(raw[1]), time.Duration(raw[2])*time.Millisecond
	res := Result{
		Allowed:   allowed,
		ResetTime: now.Add(ttl),
	}
	if allowed {
		res.Remaining = cfg.MaxRequests - count
	}
	return res, nil
}
