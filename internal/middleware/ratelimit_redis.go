package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimitStore shares fixed windows across API instances. Keys are
// "ratelimit:<policy>:<key>:<window index>" and expire with their window.
type RedisRateLimitStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisRateLimitStore wraps client.
func NewRedisRateLimitStore(client redis.UniversalClient) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client, now: time.Now}
}

// Allow increments the current window. Errors are returned so the
// middleware can fail open and count them.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, policy RateLimitPolicy) (Decision, error) {
	now := s.now()
	slot := now.UnixNano() / int64(policy.Window)
	redisKey := "ratelimit:" + policy.Name + ":" + key + ":" + strconv.FormatInt(slot, 10)
	resetAt := time.Unix(0, (slot+1)*int64(policy.Window))

	var count *redis.IntCmd
	if _, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.Incr(ctx, redisKey)
		pipe.ExpireAt(ctx, redisKey, resetAt)
		return nil
	}); err != nil {
		return Decision{}, err
	}

	n := int(count.Val())
	if n > policy.Limit {
		return Decision{ResetAt: resetAt}, nil
	}
	return Decision{Allowed: true, Remaining: policy.Limit - n, ResetAt: resetAt}, nil
}
