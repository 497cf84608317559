package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps fixed windows in a mutex-guarded map. It is only correct for a single instance.
type MemoryLimiter struct {
	policy Policy
	clock  func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

// MemoryOption customises the memory limiter.
type MemoryOption func(*MemoryLimiter)

// WithClock injects a custom time source.
func WithClock(clock func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// NewMemoryLimiter constructs an in-process limiter.
func NewMemoryLimiter(policy Policy, opts ...MemoryOption) (*MemoryLimiter, error) {
	if err := policy.validate(); err != nil {
		return nil, err
	}
	limiter := &MemoryLimiter{policy: policy, clock: time.Now, windows: make(map[string]*window)}
	for _, opt := range opts {
		if opt != nil {
			opt(limiter)
		}
	}
	return limiter, nil
}

// TryAcquire counts one request for clientID.
func (l *MemoryLimiter) TryAcquire(_ context.Context, clientID string) (Decision, error) {
	key := normaliseClient(clientID)
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.policy.Window)}
		l.windows[key] = w
	}
	if w.count >= l.policy.Limit {
		return Decision{Allowed: false, Limit: l.policy.Limit, Remaining: 0, ResetAt: w.resetAt}, nil
	}
	w.count++
	return Decision{Allowed: true, Limit: l.policy.Limit, Remaining: l.policy.Limit - w.count, ResetAt: w.resetAt}, nil
}

// Prune drops expired windows and returns how many were removed.
func (l *MemoryLimiter) Prune() int {
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}
