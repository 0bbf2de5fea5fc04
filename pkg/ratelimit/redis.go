package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisLimiter implements a sliding-window rate limiter backed by Redis
// sorted sets, so limits are shared across instances. Each admitted request
// is a ZSET member scored by its unix-nano timestamp; members older than
// the window are removed before counting.
//
// On Redis errors the limiter fails open and reports the error so callers
// can log it without turning a cache outage into a request outage.
type RedisLimiter struct {
	client *redis.Client
	window time.Duration
	prefix string
	now    func() time.Time
	seq    uint64
}

// NewRedisLimiter creates a Redis-backed sliding-window limiter.
func NewRedisLimiter(client *redis.Client, window time.Duration, prefix string) *RedisLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{
		client: client,
		window: window,
		prefix: prefix,
		now:    time.Now,
	}
}

func (l *RedisLimiter) key(key string) string {
	return fmt.Sprintf("%s:%s", l.prefix, key)
}

// Check records a request against the key's quota if under the limit.
func (l *RedisLimiter) Check(ctx context.Context, key string, limit int) (Info, error) {
	now := l.now()
	redisKey := l.key(key)
	cutoff := now.Add(-l.window).UnixNano()
	reset := now.Unix() + int64(l.window/time.Second)

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(cutoff, 10))
	card := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return l.failOpen(limit, reset), fmt.Errorf("redis error: %w", err)
	}

	count := int(card.Val())
	if count >= limit {
		return Info{Limit: limit, Remaining: 0, Reset: reset, Allowed: false}, nil
	}

	// The sequence suffix keeps members unique even when two requests
	// land on the same nanosecond.
	member := fmt.Sprintf("%d-%d", now.UnixNano(), atomic.AddUint64(&l.seq, 1))
	record := l.client.Pipeline()
	record.ZAdd(ctx, redisKey, &redis.Z{Score: float64(now.UnixNano()), Member: member})
	record.Expire(ctx, redisKey, l.window)
	if _, err := record.Exec(ctx); err != nil {
		return l.failOpen(limit, reset), fmt.Errorf("redis error: %w", err)
	}

	remaining := limit - count - 1
	if remaining < 0 {
		remaining = 0
	}
	return Info{Limit: limit, Remaining: remaining, Reset: reset, Allowed: true}, nil
}

// Peek reports the current window state without consuming quota.
func (l *RedisLimiter) Peek(ctx context.Context, key string, limit int) (Info, error) {
	now := l.now()
	redisKey := l.key(key)
	cutoff := now.Add(-l.window).UnixNano()
	reset := now.Unix() + int64(l.window/time.Second)

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(cutoff, 10))
	card := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return l.failOpen(limit, reset), fmt.Errorf("redis error: %w", err)
	}

	remaining := limit - int(card.Val())
	if remaining < 0 {
		remaining = 0
	}
	return Info{Limit: limit, Remaining: remaining, Reset: reset, Allowed: true}, nil
}

// Reset clears the window for a key.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.key(key)).Err()
}

func (l *RedisLimiter) failOpen(limit int, reset int64) Info {
	return Info{Limit: limit, Remaining: limit, Reset: reset, Allowed: true}
}
