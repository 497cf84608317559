package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryLimiterRejectsEleventhRequest(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	limiter, err := NewMemoryLimiter(Policy{Limit: 10, Window: 15 * time.Minute}, WithClock(clock.Now))
	require.NoError(t, err)

	for i := 1; i <= 10; i++ {
		decision, err := limiter.TryAcquire(context.Background(), "203.0.113.7")
		require.NoError(t, err)
		require.True(t, decision.Allowed, "request %d should be allowed", i)
		assert.Equal(t, 10-i, decision.Remaining)
	}

	decision, err := limiter.TryAcquire(context.Background(), "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, 0, decision.Remaining)
	assert.Equal(t, 10, decision.Limit)
	assert.Equal(t, clock.Now().Add(15*time.Minute), decision.ResetAt)

	other, err := limiter.TryAcquire(context.Background(), "198.51.100.1")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "other clients keep their own window")
}

func TestMemoryLimiterResetsAfterWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	limiter, err := NewMemoryLimiter(Policy{Limit: 1, Window: time.Minute}, WithClock(clock.Now))
	require.NoError(t, err)

	first, _ := limiter.TryAcquire(context.Background(), "c")
	second, _ := limiter.TryAcquire(context.Background(), "c")
	require.True(t, first.Allowed)
	require.False(t, second.Allowed)

	clock.Advance(time.Minute)
	third, _ := limiter.TryAcquire(context.Background(), "c")
	assert.True(t, third.Allowed)
}

func TestMemoryLimiterTreatsEmptyClientAsAnonymous(t *testing.T) {
	limiter, err := NewMemoryLimiter(Policy{Limit: 1, Window: time.Minute})
	require.NoError(t, err)

	first, _ := limiter.TryAcquire(context.Background(), "")
	second, _ := limiter.TryAcquire(context.Background(), AnonymousClient)
	assert.True(t, first.Allowed)
	assert.False(t, second.Allowed)
}

func TestMemoryLimiterPrune(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	limiter, err := NewMemoryLimiter(Policy{Limit: 5, Window: time.Minute}, WithClock(clock.Now))
	require.NoError(t, err)

	_, _ = limiter.TryAcquire(context.Background(), "a")
	_, _ = limiter.TryAcquire(context.Background(), "b")
	assert.Equal(t, 0, limiter.Prune())

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 2, limiter.Prune())
}

func TestPrefixedLimiterNamespacesKeys(t *testing.T) {
	limiter, err := NewMemoryLimiter(Policy{Limit: 1, Window: time.Minute})
	require.NoError(t, err)

	qr := Prefixed(limiter, "qr")
	first, _ := qr.TryAcquire(context.Background(), "ip")
	direct, _ := limiter.TryAcquire(context.Background(), "ip")
	second, _ := qr.TryAcquire(context.Background(), "ip")

	assert.True(t, first.Allowed)
	assert.True(t, direct.Allowed, "unprefixed key is a separate window")
	assert.False(t, second.Allowed)
}

func TestNewMemoryLimiterValidatesPolicy(t *testing.T) {
	_, err := NewMemoryLimiter(Policy{Limit: 0, Window: time.Minute})
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestDecisionRetryAfter(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	d := Decision{ResetAt: now.Add(1500 * time.Millisecond)}
	assert.Equal(t, 2*time.Second, d.RetryAfter(now))
	assert.Equal(t, time.Duration(0), Decision{ResetAt: now}.RetryAfter(now))
}
