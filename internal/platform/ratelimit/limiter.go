// Package ratelimit implements fixed-window request limits keyed by client identifier.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// AnonymousClient is the key used when no client identifier is available.
const AnonymousClient = "anonymous"

// ErrInvalidLimit is returned when a limiter is configured without a positive limit or window.
var ErrInvalidLimit = errors.New("ratelimit: limit and window must be positive")

// Decision reports the outcome of one acquisition attempt.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the wait until the window resets, rounded up to whole seconds.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait <= 0 {
		return 0
	}
	return wait.Truncate(time.Second) + time.Second
}

// Limiter admits or rejects requests for a client within a fixed window.
type Limiter interface {
	TryAcquire(ctx context.Context, clientID string) (Decision, error)
}

// Policy is the limit applied within one window.
type Policy struct {
	Limit  int
	Window time.Duration
}

func (p Policy) validate() error {
	if p.Limit <= 0 || p.Window <= 0 {
		return ErrInvalidLimit
	}
	return nil
}

func normaliseClient(clientID string) string {
	if clientID == "" {
		return AnonymousClient
	}
	return clientID
}

// Prefixed namespaces client identifiers so one backend can serve several policies.
func Prefixed(limiter Limiter, prefix string) Limiter {
	return prefixedLimiter{next: limiter, prefix: prefix}
}

type prefixedLimiter struct {
	next   Limiter
	prefix string
}

func (p prefixedLimiter) TryAcquire(ctx context.Context, clientID string) (Decision, error) {
	return p.next.TryAcquire(ctx, p.prefix+":"+normaliseClient(clientID))
}
