package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "ratelimit"

// Limiter Redis 固定窗口限流，多实例共享计数
type Limiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewLimiter 每个窗口最多 limit 次
func NewLimiter(client *redis.Client, limit int, window time.Duration) *Limiter {
	return &Limiter{
		client: client,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow 记录一次请求并返回是否放行以及窗口内剩余次数
func (l *Limiter) Allow(ctx context.Context, scope string) (bool, int, error) {
	bucket := l.now().UnixNano() / int64(l.window)
	key := fmt.Sprintf("%s:%s:%d", keyPrefix, scope, bucket)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		// 窗口编号已在 key 中，过期只用于回收
		if err := l.client.Expire(ctx, key, 2*l.window).Err(); err != nil {
			return false, 0, err
		}
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return int(count) <= l.limit, remaining, nil
}
