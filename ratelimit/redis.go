package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTracker shares quota counters across worker processes. Window
// expiry rides on key TTLs, so the lazy-reset behavior of the memory
// tracker falls out of Redis expiration for free.
type RedisTracker struct {
	client      *redis.Client
	prefix      string
	hourlyLimit int
	dailyLimit  int
}

func NewRedisTracker(client *redis.Client, prefix string, hourlyLimit, dailyLimit int) *RedisTracker {
	if prefix == "" {
		prefix = "vidscribe:quota"
	}
	return &RedisTracker{
		client:      client,
		prefix:      prefix,
		hourlyLimit: hourlyLimit,
		dailyLimit:  dailyLimit,
	}
}

func (t *RedisTracker) hourKey() string {
	return fmt.Sprintf("%s:h:%d", t.prefix, time.Now().Unix()/3600)
}

func (t *RedisTracker) dayKey() string {
	return fmt.Sprintf("%s:d:%d", t.prefix, time.Now().Unix()/86400)
}

func (t *RedisTracker) CanProcess(ctx context.Context, durationSeconds int) (Decision, error) {
	pipe := t.client.Pipeline()
	hourly := pipe.Get(ctx, t.hourKey())
	daily := pipe.Get(ctx, t.dayKey())
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return Decision{}, fmt.Errorf("quota read: %w", err)
	}

	hourlyUsed, _ := hourly.Int()
	dailyUsed, _ := daily.Int()

	d := Decision{
		HourlyRemaining: t.hourlyLimit - hourlyUsed,
		DailyRemaining:  t.dailyLimit - dailyUsed,
	}

	if hourlyUsed+durationSeconds > t.hourlyLimit {
		ttl, err := t.client.TTL(ctx, t.hourKey()).Result()
		if err == nil && ttl > 0 {
			d.EstimatedWait = ttl
		} else {
			d.EstimatedWait = defaultResetDelay
		}
		return d, nil
	}
	if dailyUsed+durationSeconds > t.dailyLimit {
		ttl, err := t.client.TTL(ctx, t.dayKey()).Result()
		if err == nil && ttl > 0 {
			d.EstimatedWait = ttl
		} else {
			d.EstimatedWait = 24 * time.Hour
		}
		return d, nil
	}

	d.Allowed = true
	return d, nil
}

func (t *RedisTracker) TrackUsage(ctx context.Context, durationSeconds int) error {
	pipe := t.client.Pipeline()

	hourKey, dayKey := t.hourKey(), t.dayKey()
	hourly := pipe.IncrBy(ctx, hourKey, int64(durationSeconds))
	daily := pipe.IncrBy(ctx, dayKey, int64(durationSeconds))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("quota increment: %w", err)
	}

	// First writer of the window sets its expiry, slightly past the
	// bucket end so late readers still see it.
	if hourly.Val() == int64(durationSeconds) {
		t.client.Expire(ctx, hourKey, time.Hour+time.Minute)
	}
	if daily.Val() == int64(durationSeconds) {
		t.client.Expire(ctx, dayKey, 24*time.Hour+time.Minute)
	}
	return nil
}

func (t *RedisTracker) Reconcile(ctx context.Context, usedSeconds int, retryAfter time.Duration) error {
	if retryAfter <= 0 {
		retryAfter = defaultResetDelay
	}

	if err := t.client.Set(ctx, t.hourKey(), usedSeconds, retryAfter).Err(); err != nil {
		return fmt.Errorf("quota reconcile: %w", err)
	}
	return nil
}
