//go:build integration

package ratelimit

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func startRedis(t *testing.T) *goredis.Client {
	t.Helper()
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := goredis.ParseURL(url)
	require.NoError(t, err)
	client := goredis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisLimiterSharesCountsAcrossInstances(t *testing.T) {
	client := startRedis(t)
	policy := Policy{Limit: 3, Window: time.Minute}

	a, err := NewRedisLimiter(client, "origin:ratelimit", policy)
	require.NoError(t, err)
	b, err := NewRedisLimiter(client, "origin:ratelimit", policy)
	require.NoError(t, err)

	ctx := context.Background()
	for i, limiter := range []*RedisLimiter{a, b, a} {
		decision, err := limiter.TryAcquire(ctx, "203.0.113.7")
		require.NoError(t, err)
		require.True(t, decision.Allowed, "request %d", i+1)
	}

	decision, err := b.TryAcquire(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, 0, decision.Remaining)
	assert.WithinDuration(t, time.Now().Add(time.Minute), decision.ResetAt, 5*time.Second)

	ttl, err := client.PTTL(ctx, "origin:ratelimit:203.0.113.7").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
