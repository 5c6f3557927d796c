// Package ratelimit caps requests per client in fixed windows backed by Redis.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"crm-bridge/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// Result describes the caller's standing in the current window.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// RedisLimiter counts hits per key with an atomic INCR/PEXPIRE script, so every
// gateway instance sharing the Redis shares the budget.
type RedisLimiter struct {
	rdb    redis.Scripter
	max    int
	window time.Duration
	prefix string
}

func NewRedisLimiter(rdb redis.Scripter, max int, window time.Duration) (*RedisLimiter, error) {
	if rdb == nil {
		return nil, errors.New("ratelimit: redis client is nil")
	}
	if max <= 0 || window <= 0 {
		return nil, errors.New("ratelimit: max and window must be > 0")
	}
	return &RedisLimiter{rdb: rdb, max: max, window: window, prefix: "crm-bridge:rl:"}, nil
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	count, ttl, err := utils.IncrWindow(ctx, l.rdb, l.prefix+key, l.window)
	if err != nil {
		return Result{}, err
	}
	remaining := l.max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(l.max),
		Limit:     l.max,
		Remaining: remaining,
		ResetIn:   ttl,
	}, nil
}
