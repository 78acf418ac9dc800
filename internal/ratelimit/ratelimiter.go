package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	window    = 1 * time.Minute
	keyExpiry = 2 * time.Minute
)

// Limiter enforces per-session request limits.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// NoopLimiter allows all requests.
type NoopLimiter struct{}

func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

func (l *NoopLimiter) Allow(ctx context.Context, key string) bool {
	return true
}

// RateLimiter implements distributed sliding-window rate limiting with Redis
// sorted sets. Request timestamps are the scores; entries older than the
// window are trimmed on every check.
type RateLimiter struct {
	client *redis.Client
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// AllowWithDetails checks whether one more request fits the limit and
// reports the remaining allowance and when the window resets. A limit of
// zero or less means unlimited: remaining is -1 and resetAt is zero.
// Blocked requests do not consume allowance.
func (rl *RateLimiter) AllowWithDetails(ctx context.Context, key string, limit int) (bool, int, time.Time, error) {
	if limit <= 0 {
		return true, -1, time.Time{}, nil
	}

	redisKey := rl.key(key)
	now := time.Now()
	windowStart := now.Add(-window)

	pipe := rl.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.UnixMilli()))
	countCmd := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limit check failed: %w", err)
	}

	count := int(countCmd.Val())
	resetAt := now.Add(window)

	if count >= limit {
		return false, 0, resetAt, nil
	}

	pipe = rl.client.Pipeline()
	timestamp := now.UnixMilli()
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(timestamp),
		Member: fmt.Sprintf("%d:%d", timestamp, now.Nanosecond()),
	})
	pipe.Expire(ctx, redisKey, keyExpiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limit update failed: %w", err)
	}

	return true, limit - count - 1, resetAt, nil
}

// GetCurrentUsage returns the current request count in the window.
func (rl *RateLimiter) GetCurrentUsage(ctx context.Context, key string) (int64, error) {
	redisKey := rl.key(key)
	windowStart := time.Now().Add(-window)

	if err := rl.client.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.UnixMilli())).Err(); err != nil {
		return 0, fmt.Errorf("failed to clean old entries: %w", err)
	}

	count, err := rl.client.ZCard(ctx, redisKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get current usage: %w", err)
	}

	return count, nil
}

// Reset resets the rate limit for a key.
func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	return rl.client.Del(ctx, rl.key(key)).Err()
}

func (rl *RateLimiter) key(key string) string {
	return fmt.Sprintf("ratelimit:%s", key)
}

// SessionLimiter adapts RateLimiter to the Limiter interface with a fixed
// per-session limit. Redis errors fail open: a broken limiter should not
// take chat traffic down with it.
type SessionLimiter struct {
	limiter *RateLimiter
	limit   int
}

// NewSessionLimiter creates a limiter enforcing the given per-minute limit.
func NewSessionLimiter(client *redis.Client, limit int) *SessionLimiter {
	return &SessionLimiter{
		limiter: NewRateLimiter(client),
		limit:   limit,
	}
}

func (l *SessionLimiter) Allow(ctx context.Context, key string) bool {
	allowed, _, _, err := l.limiter.AllowWithDetails(ctx, key, l.limit)
	if err != nil {
		return true
	}
	return allowed
}
