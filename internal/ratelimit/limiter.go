package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRateLimited is returned when a user exhausts their grading-call
// window
var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter throttles grading calls per user with a fixed window counter in
// Redis. A nil Redis client disables limiting entirely; Redis outages fail
// open so grading never depends on the limiter being up.
type Limiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
}

// NewLimiter creates a limiter. rdb may be nil to disable limiting.
func NewLimiter(rdb *redis.Client, limit int, window time.Duration) *Limiter {
	return &Limiter{rdb: rdb, limit: limit, window: window}
}

// Allow records one grading call for a user. Returns ErrRateLimited when
// the window is exhausted.
func (l *Limiter) Allow(ctx context.Context, userID string) error {
	if l == nil || l.rdb == nil || l.limit <= 0 {
		return nil
	}

	key := fmt.Sprintf("ratelimit:grade:%s", userID)

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		slog.Warn("rate limiter unavailable, allowing request", "error", err)
		return nil
	}

	if count == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			slog.Warn("failed to set rate limit window", "error", err)
		}
	}

	if count > int64(l.limit) {
		return ErrRateLimited
	}

	return nil
}
