package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "kart:ratelimit:"

// RateLimiter is a sliding window limiter backed by sorted sets. Each key
// holds the timestamps of the requests seen during the last window.
type RateLimiter struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRateLimiter returns a RateLimiter using client.
func NewRateLimiter(client redis.UniversalClient) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// Allow records a request for key and reports whether it fits into max
// requests per window. The window is trimmed, the request added and counted
// in one transaction. Rejected requests are removed again.
func (l *RateLimiter) Allow(ctx context.Context, key string, max int, window time.Duration) (int, time.Time, bool, error) {
	now := l.now()
	resetAt := now.Add(window)
	k := rateLimitPrefix + key
	cutoff := strconv.FormatInt(now.Add(-window).UnixNano(), 10)
	member := uuid.NewString()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "-inf", "("+cutoff)
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixNano()), Member: member})
	count := pipe.ZCard(ctx, k)
	pipe.PExpire(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, resetAt, false, errors.Wrap(err, "record request")
	}

	current := int(count.Val())
	if current > max {
		if err := l.client.ZRem(ctx, k, member).Err(); err != nil {
			return 0, resetAt, false, errors.Wrap(err, "drop rejected request")
		}
		return 0, resetAt, false, nil
	}
	return max - current, resetAt, true, nil
}
