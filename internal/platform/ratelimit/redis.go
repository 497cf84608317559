package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisLimiter shares fixed windows across instances with INCR and PEXPIRE NX in one pipeline.
type RedisLimiter struct {
	client goredis.Cmdable
	policy Policy
	prefix string
	clock  func() time.Time
}

// NewRedisLimiter constructs a distributed limiter writing keys under prefix.
func NewRedisLimiter(client goredis.Cmdable, prefix string, policy Policy) (*RedisLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("ratelimit: redis client is required")
	}
	if err := policy.validate(); err != nil {
		return nil, err
	}
	return &RedisLimiter{client: client, policy: policy, prefix: prefix, clock: time.Now}, nil
}

// TryAcquire increments the window counter for clientID.
func (l *RedisLimiter) TryAcquire(ctx context.Context, clientID string) (Decision, error) {
	key := l.prefix + ":" + normaliseClient(clientID)

	var (
		incr *goredis.IntCmd
		ttl  *goredis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Do(ctx, "PEXPIRE", key, l.policy.Window.Milliseconds(), "NX")
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: redis acquire: %w", err)
	}

	count := int(incr.Val())
	remaining := ttl.Val()
	if remaining <= 0 {
		remaining = l.policy.Window
	}
	decision := Decision{Limit: l.policy.Limit, ResetAt: l.clock().Add(remaining)}
	if count > l.policy.Limit {
		return decision, nil
	}
	decision.Allowed = true
	decision.Remaining = l.policy.Limit - count
	return decision, nil
}
