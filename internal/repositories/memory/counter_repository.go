package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/repositories"
)

type counterState struct {
	current int64
	cfg     repositories.CounterConfig
}

// CounterRepository keeps sequence counters in process.
type CounterRepository struct {
	mu       sync.Mutex
	counters map[string]*counterState
}

var _ repositories.CounterRepository = (*CounterRepository)(nil)

// NewCounterRepository constructs an empty counter store.
func NewCounterRepository() *CounterRepository {
	return &CounterRepository{counters: make(map[string]*counterState)}
}

func (r *CounterRepository) Next(_ context.Context, counterID string, step int64) (int64, error) {
	id := strings.TrimSpace(counterID)
	if id == "" {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.counters[id]
	if state == nil {
		state = &counterState{}
	}
	next, usedStep, err := repositories.NextCounterValue(id, state.current, state.cfg, step)
	if err != nil {
		return 0, err
	}
	state.current = next
	state.cfg.Step = usedStep
	r.counters[id] = state
	return next, nil
}

func (r *CounterRepository) Configure(_ context.Context, counterID string, cfg repositories.CounterConfig) error {
	id := strings.TrimSpace(counterID)
	if id == "" {
		return repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.counters[id]
	if state == nil {
		state = &counterState{}
		r.counters[id] = state
	}
	if cfg.Step > 0 {
		state.cfg.Step = cfg.Step
	}
	if cfg.MaxValue != nil {
		max := *cfg.MaxValue
		state.cfg.MaxValue = &max
	}
	if cfg.InitialValue != nil {
		state.current = *cfg.InitialValue
	}
	return nil
}
