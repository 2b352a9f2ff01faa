package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const tenantKeyPrefix = "vigil:ratelimit:tenant"

// RedisLimiter is the shared-state variant used for per-tenant limits so
// that replicas agree on counts. Same sliding window semantics, backed by a
// sorted set scored with unix timestamps.
type RedisLimiter struct {
	redis        *redis.Client
	maxRequests  int
	window       time.Duration
	timeProvider func() time.Time
	uuidProvider func() uuid.UUID
}

// RedisLimiterOpts override the clock and id source for tests.
type RedisLimiterOpts struct {
	TimeProvider func() time.Time
	UuidProvider func() uuid.UUID
}

func NewRedisLimiter(client *redis.Client, maxRequests int, window time.Duration, opts *RedisLimiterOpts) *RedisLimiter {
	timeProvider := time.Now
	uuidProvider := uuid.New
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}
	if opts != nil && opts.UuidProvider != nil {
		uuidProvider = opts.UuidProvider
	}
	return &RedisLimiter{
		redis:        client,
		maxRequests:  maxRequests,
		window:       window,
		timeProvider: timeProvider,
		uuidProvider: uuidProvider,
	}
}

// TenantKey builds the limiter key for a tenant and client pair.
func TenantKey(tenantID, clientIP string) string {
	return fmt.Sprintf("%s:%s:%s", tenantKeyPrefix, tenantID, clientIP)
}

func (l *RedisLimiter) Check(ctx context.Context, key string) (Decision, error) {
	return l.CheckWithLimit(ctx, key, l.maxRequests, l.window)
}

// CheckWithLimit runs the window check with per-call limits, used for keys
// whose tenant policy overrides the configured defaults.
func (l *RedisLimiter) CheckWithLimit(ctx context.Context, key string, maxRequests int, window time.Duration) (Decision, error) {
	if maxRequests <= 0 {
		maxRequests = l.maxRequests
	}
	if window <= 0 {
		window = l.window
	}

	now := l.timeProvider()
	windowStart := now.Add(-window).Unix()

	count, err := l.redis.ZCount(ctx, key,
		strconv.FormatInt(windowStart, 10),
		strconv.FormatInt(now.Unix(), 10)).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to count window for %s: %w", key, err)
	}

	reset := now.Add(window)
	if count >= int64(maxRequests) {
		return Decision{
			Allowed:    false,
			Limit:      maxRequests,
			Remaining:  0,
			Reset:      reset,
			RetryAfter: window,
		}, nil
	}

	member := fmt.Sprintf("%d:%s", now.Unix(), l.uuidProvider().String())
	pipe := l.redis.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	pipe.ZAdd(ctx, key, &redis.Z{Score: float64(now.Unix()), Member: member})
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("failed to record request for %s: %w", key, err)
	}

	return Decision{
		Allowed:   true,
		Limit:     maxRequests,
		Remaining: maxRequests - int(count) - 1,
		Reset:     reset,
	}, nil
}
