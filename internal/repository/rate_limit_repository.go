package repository

import (
	"RecruitTalkAPI/internal/adapter"
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitRepository keeps fixed-window hit counters for the send and upload
// endpoints. A window opens on the first hit of a key and is never extended
// by later hits.
type RateLimitRepository struct {
	redisAdapter *adapter.RedisAdapter
}

func NewRateLimitRepository(redisAdapter *adapter.RedisAdapter) *RateLimitRepository {
	return &RateLimitRepository{
		redisAdapter: redisAdapter,
	}
}

// Hit records one request against key and returns the hit count of the
// current window with the time left until it resets.
func (r *RateLimitRepository) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	var count *redis.IntCmd
	var reset *redis.DurationCmd

	_, err := r.redisAdapter.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		reset = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("rate limit hit %s: %w", key, err)
	}

	left := reset.Val()
	if left <= 0 || left > window {
		left = window
	}

	return count.Val(), left, nil
}
