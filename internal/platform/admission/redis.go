package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares counters across API replicas. Each window gets its own
// key that expires shortly after the window ends.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "pollwarden:admission"
	}
	return &RedisLimiter{client: client, prefix: prefix}
}

func (l *RedisLimiter) Hit(ctx context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, error) {
	windowStart := now.Truncate(window)
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, windowStart.UnixMilli())

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.PExpire(ctx, redisKey, window+time.Second)
		return nil
	})
	if err != nil {
		return 0, time.Time{}, err
	}
	return incr.Val(), windowStart, nil
}

func (l *RedisLimiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
