package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/repositories"
)

type stubCounterRepository struct {
	mu             sync.Mutex
	nextFn         func(context.Context, string, int64) (int64, error)
	configureFn    func(context.Context, string, repositories.CounterConfig) error
	nextCalls      []counterCall
	configureCalls []configureCall
}

type counterCall struct {
	ID   string
	Step int64
}

type configureCall struct {
	ID  string
	Cfg repositories.CounterConfig
}

func (s *stubCounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	s.mu.Lock()
	s.nextCalls = append(s.nextCalls, counterCall{ID: counterID, Step: step})
	s.mu.Unlock()
	if s.nextFn != nil {
		return s.nextFn(ctx, counterID, step)
	}
	return 0, nil
}

func (s *stubCounterRepository) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	s.mu.Lock()
	s.configureCalls = append(s.configureCalls, configureCall{ID: counterID, Cfg: cfg})
	s.mu.Unlock()
	if s.configureFn != nil {
		return s.configureFn(ctx, counterID, cfg)
	}
	return nil
}

func TestCounterServiceNextFormatsAndConfigures(t *testing.T) {
	repo := &stubCounterRepository{}
	repo.nextFn = func(context.Context, string, int64) (int64, error) {
		return 42, nil
	}

	svc, err := NewCounterService(CounterServiceDeps{Repository: repo, Clock: func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}})
	if err != nil {
		t.Fatalf("new counter service: %v", err)
	}

	ctx := context.Background()
	value, err := svc.Next(ctx, "receipts", "global", CounterGenerationOptions{
		Step:      5,
		Prefix:    "RCP-",
		PadLength: 4,
	})
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if value.Value != 42 {
		t.Fatalf("expected raw value 42, got %d", value.Value)
	}
	if value.Formatted != "RCP-0042" {
		t.Fatalf("expected formatted RCP-0042, got %s", value.Formatted)
	}

	repo.mu.Lock()
	if len(repo.configureCalls) != 1 {
		t.Fatalf("expected configure called once, got %d", len(repo.configureCalls))
	}
	if repo.configureCalls[0].Cfg.Step != 5 {
		t.Fatalf("expected configure step 5, got %d", repo.configureCalls[0].Cfg.Step)
	}
	repo.mu.Unlock()
}

func TestCounterServiceMapsExhaustionToConflict(t *testing.T) {
	repo := &stubCounterRepository{}
	repo.nextFn = func(context.Context, string, int64) (int64, error) {
		return 0, repositories.NewCounterError(repositories.CounterErrorExhausted, "limit", nil)
	}

	svc, err := NewCounterService(CounterServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("new counter service: %v", err)
	}

	_, err = svc.Next(context.Background(), "test", "limit", CounterGenerationOptions{})
	if !errors.Is(err, ErrCounterExhausted) {
		t.Fatalf("expected exhausted error, got %v", err)
	}
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestCounterServiceRejectsBlankScope(t *testing.T) {
	svc, err := NewCounterService(CounterServiceDeps{Repository: &stubCounterRepository{}})
	if err != nil {
		t.Fatalf("new counter service: %v", err)
	}
	if _, err := svc.Next(context.Background(), " ", "2025", CounterGenerationOptions{}); !errors.Is(err, ErrCounterInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCounterServiceNextCertificateReferences(t *testing.T) {
	repo := &stubCounterRepository{}
	values := map[string]int64{
		"certificates:2025": 42,
		"our_ref:2025":      7,
		"your_ref:2025":     8,
	}
	repo.nextFn = func(_ context.Context, id string, _ int64) (int64, error) {
		return values[id], nil
	}

	svc, err := NewCounterService(CounterServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("new counter service: %v", err)
	}

	refs, err := svc.NextCertificateReferences(context.Background(), 2025)
	if err != nil {
		t.Fatalf("next references: %v", err)
	}
	if refs.CertificateNumber != "IBN25 0042" {
		t.Fatalf("expected certificate number IBN25 0042, got %s", refs.CertificateNumber)
	}
	if refs.OurRef != "IBN/LGA/ORG/2025/0007" {
		t.Fatalf("expected our ref IBN/LGA/ORG/2025/0007, got %s", refs.OurRef)
	}
	if refs.YourRef != "IBN/ORG/2025/0008" {
		t.Fatalf("expected your ref IBN/ORG/2025/0008, got %s", refs.YourRef)
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.configureCalls) != 3 {
		t.Fatalf("expected three counters configured, got %d", len(repo.configureCalls))
	}
	for _, call := range repo.configureCalls {
		if call.Cfg.MaxValue == nil || *call.Cfg.MaxValue != 9999 {
			t.Fatalf("expected max value 9999 for %s, got %v", call.ID, call.Cfg.MaxValue)
		}
	}
}

func TestCounterServiceNextCertificateReferencesRejectsYear(t *testing.T) {
	svc, err := NewCounterService(CounterServiceDeps{Repository: &stubCounterRepository{}})
	if err != nil {
		t.Fatalf("new counter service: %v", err)
	}
	if _, err := svc.NextCertificateReferences(context.Background(), 99); !errors.Is(err, ErrCounterInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
