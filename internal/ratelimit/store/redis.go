package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"registrar/internal/ratelimit"
)

// slidingWindowScript trims expired members, then admits the request if the
// window has room. Returns {allowed, count, oldest_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, member)
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldestScore = now
if oldest[2] then
  oldestScore = tonumber(oldest[2])
end
return {allowed, count, oldestScore}
`)

// Redis shares sliding windows across server instances using sorted sets.
type Redis struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client, now: time.Now}
}

func (s *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) (*ratelimit.Result, error) {
	now := s.now()
	vals, err := slidingWindowScript.Run(ctx, s.client, []string{key},
		now.UnixMilli(), window.Milliseconds(), limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(vals) != 3 {
		return nil, fmt.Errorf("rate limit %s: unexpected script reply %v", key, vals)
	}

	resetAt := time.UnixMilli(vals[2]).Add(window)
	res := &ratelimit.Result{
		Allowed: vals[0] == 1,
		Limit:   limit,
		ResetAt: resetAt,
	}
	if res.Allowed {
		res.Remaining = limit - int(vals[1])
	} else {
		res.RetryAfter = ratelimit.RetryAfterFor(resetAt, now)
	}
	return res, nil
}
