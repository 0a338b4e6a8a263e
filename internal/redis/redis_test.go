package redis

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
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set; skipping redis tests")
	}
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	client, err := NewRedisClient(config.RedisConfig{Host: host, Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestIncrWindow(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	key := "evalsum:test:" + uuid.NewString()
	t.Cleanup(func() { client.inner.Del(ctx, key) })
	require.NoError(t, client.Ping(ctx))

	n, ttl, err := client.IncrWindow(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Greater(t, ttl, 50*time.Second)

	n, ttl2, err := client.IncrWindow(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.LessOrEqual(t, ttl2, ttl, "expiry is set once per window")
}

func TestNilClient(t *testing.T) {
	var c *Client
	_, _, err := c.IncrWindow(context.Background(), "k", time.Second)
	assert.Error(t, err)
	assert.Error(t, c.Ping(context.Background()))
	assert.NoError(t, c.Close())
}
