package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRateLimiter_BurstThenRefill(t *testing.T) {
	l := NewLocalRateLimiter()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	limit := Limit{Rate: 1, Period: time.Second, Burst: 2}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "ip", limit)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := l.Allow(ctx, "ip", limit)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	// 其它 key 独立计数
	res, _ = l.Allow(ctx, "other", limit)
	assert.True(t, res.Allowed)

	now = now.Add(time.Second)
	res, _ = l.Allow(ctx, "ip", limit)
	assert.True(t, res.Allowed)
}

func TestLocalRateLimiter_EvictsIdleKeys(t *testing.T) {
	l := NewLocalRateLimiter()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	limit := Limit{Rate: 5, Period: time.Second, Burst: 5}
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		_, err := l.Allow(ctx, fmt.Sprintf("ip:%d", i), limit)
		require.NoError(t, err)
	}
	assert.Equal(t, 1000, l.size())

	now = now.Add(24 * time.Hour)
	res, err := l.Allow(ctx, "ip:fresh", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, l.size(), "idle keys are dropped")
}

func TestLocalRateLimiter_ActiveKeySurvivesSweep(t *testing.T) {
	l := NewLocalRateLimiter()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	limit := Limit{Rate: 1, Period: time.Minute, Burst: 1}
	ctx := context.Background()

	res, _ := l.Allow(ctx, "user:1", limit)
	require.True(t, res.Allowed)

	// 临近过期时再次访问，刷新 lastSeen
	now = now.Add(defaultIdleTTL - time.Second)
	res, _ = l.Allow(ctx, "user:1", limit)
	assert.True(t, res.Allowed, "a token refilled after nine minutes")

	now = now.Add(2 * time.Second)
	res, _ = l.Allow(ctx, "user:1", limit)
	assert.False(t, res.Allowed, "state kept across the sweep")
	assert.Equal(t, 1, l.size())
}
