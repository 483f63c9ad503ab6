// Package throttle provides a Redis fixed-window counter that caps how
// often a refresh-token family may rotate. A runaway client retrying in a
// tight loop burns its own family budget instead of hammering the
// revocation store.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrLimited is returned when an identifier exceeds its window budget.
	ErrLimited = errors.New("refresh rate limit exceeded")

	// ErrUnavailable is returned when the counter backend cannot be reached.
	ErrUnavailable = errors.New("throttle store unavailable")
)

// Config holds limiter tuning parameters.
type Config struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration
}

// Limiter enforces a per-family refresh budget using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, prefix string, cfg Config) *Limiter {
	if prefix == "" {
		prefix = "ac"
	}
	return &Limiter{
		redis:  redisClient,
		prefix: prefix,
		config: cfg,
	}
}

func (l *Limiter) key(familyID string) string {
	return l.prefix + ":rl:" + familyID
}

// Check counts one refresh attempt for the family and reports whether the
// window budget is exceeded.
func (l *Limiter) Check(ctx context.Context, familyID string) error {
	if !l.config.Enabled {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, l.key(familyID), l.config.Window)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxAttempts) {
		return ErrLimited
	}

	return nil
}

// Reset clears the counter for a family. Called when the family is revoked
// so the key does not linger past its usefulness.
func (l *Limiter) Reset(ctx context.Context, familyID string) error {
	if !l.config.Enabled {
		return nil
	}

	if err := l.redis.Del(ctx, l.key(familyID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return count, nil
}
