package ratelimit

import (
	"context"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalsum/internal/config"
	"evalsum/internal/redis"
)

func TestMemoryLimiterSlidingWindow(t *testing.T) {
	now := time.Unix(1700000000, 0)
	l := NewMemoryLimiter(2, time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)

	other, err := l.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "keys are limited independently")

	now = now.Add(61 * time.Second)
	d, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "old hits slide out of the window")
}

func TestMemoryLimiterPrunesIdleKeys(t *testing.T) {
	now := time.Unix(1700000000, 0)
	l := NewMemoryLimiter(1, time.Second)
	l.now = func() time.Time { return now }
	for i := 0; i < 1100; i++ {
		_, _ = l.Allow(context.Background(), strconv.Itoa(i))
	}
	now = now.Add(time.Minute)
	_, _ = l.Allow(context.Background(), "fresh")
	assert.Len(t, l.hits, 1)
}

func TestRedisLimiter(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set; skipping redis tests")
	}
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	client, err := redis.NewRedisClient(config.RedisConfig{Host: host, Port: port})
	require.NoError(t, err)
	defer client.Close()

	l := NewRedisLimiter(client, 1, time.Minute)
	key := uuid.NewString()

	d, err := l.Allow(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Allow(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
}
