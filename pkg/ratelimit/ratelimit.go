// Package ratelimit 提供基于 Redis GCRA 的分布式限流，以及 Redis 不可用时基于 x/time/rate 的单机限流
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter 按 key 限流
type RateLimiter interface {
	// Allow 检查该 key 本次请求是否放行
	Allow(ctx context.Context, key string, limit Limit) (*Result, error)
}

// Limit 限流规则
type Limit struct {
	Rate   int
	Period time.Duration
	Burst  int
}

// Result 限流结果
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAfter time.Duration
	RetryAfter time.Duration
}

// RedisRateLimiter 基于 redis_rate，多实例共享额度
type RedisRateLimiter struct {
	limiter *redis_rate.Limiter
	prefix  string
}

func NewRedisRateLimiter(rdb *redis.Client, prefix string) *RedisRateLimiter {
	return &RedisRateLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		prefix:  prefix,
	}
}

func (r *RedisRateLimiter) Allow(ctx context.Context, key string, limit Limit) (*Result, error) {
	res, err := r.limiter.Allow(ctx, r.prefix+key, redis_rate.Limit{
		Rate:   limit.Rate,
		Period: limit.Period,
		Burst:  limit.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Remaining:  res.Remaining,
		ResetAfter: res.ResetAfter,
		RetryAfter: res.RetryAfter,
	}, nil
}

// LocalRateLimiter 进程内限流，每个 key 一个 rate.Limiter。
// 空闲超过 idleTTL 的 key 在后续调用中被清理，内存随活跃 key 数而非历史 key 数增长。
type LocalRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*localEntry
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const defaultIdleTTL = 10 * time.Minute

func NewLocalRateLimiter() *LocalRateLimiter {
	return &LocalRateLimiter{
		limiters: make(map[string]*localEntry),
		idleTTL:  defaultIdleTTL,
		now:      time.Now,
	}
}

func (l *LocalRateLimiter) Allow(_ context.Context, key string, limit Limit) (*Result, error) {
	if limit.Rate <= 0 || limit.Period <= 0 {
		return &Result{Allowed: true, Remaining: limit.Burst}, nil
	}
	every := rate.Limit(float64(limit.Rate) / limit.Period.Seconds())
	burst := max(limit.Burst, 1)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	e, ok := l.limiters[key]
	if !ok {
		e = &localEntry{limiter: rate.NewLimiter(every, burst)}
		l.limiters[key] = e
	} else {
		if e.limiter.Limit() != every {
			e.limiter.SetLimitAt(now, every)
		}
		if e.limiter.Burst() != burst {
			e.limiter.SetBurstAt(now, burst)
		}
	}
	e.lastSeen = now

	fill := func(tokens float64) time.Duration {
		return time.Duration((float64(burst) - tokens) / float64(every) * float64(time.Second))
	}

	r := e.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); !r.OK() || delay > 0 {
		if r.OK() {
			r.CancelAt(now)
		}
		return &Result{
			Allowed:    false,
			RetryAfter: delay,
			ResetAfter: fill(e.limiter.TokensAt(now)),
		}, nil
	}
	tokens := e.limiter.TokensAt(now)
	return &Result{
		Allowed:    true,
		Remaining:  int(max(tokens, 0)),
		ResetAfter: fill(tokens),
	}, nil
}

// sweep 每个 idleTTL 周期最多执行一次，调用方持有锁
func (l *LocalRateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	l.lastSweep = now
	for k, e := range l.limiters {
		if now.Sub(e.lastSeen) >= l.idleTTL {
			delete(l.limiters, k)
		}
	}
}

func (l *LocalRateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
