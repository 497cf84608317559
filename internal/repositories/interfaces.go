package repositories

import (
	"context"
	"time"

	domain "github.com/Josebert2001/ibeno-origin-scribe/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CertificateRepository persists certificate records. Missing records surface as RepositoryError with
// IsNotFound; duplicate ids or certificate numbers surface with IsConflict.
type CertificateRepository interface {
	Insert(ctx context.Context, certificate domain.Certificate) (domain.Certificate, error)
	Get(ctx context.Context, id string) (domain.Certificate, error)
	FindByNumber(ctx context.Context, number string) (domain.Certificate, error)
	List(ctx context.Context, filter CertificateListFilter) (domain.CursorPage[domain.Certificate], error)
	Stats(ctx context.Context) (domain.CertificateStats, error)
	UpdateStatus(ctx context.Context, id string, update StatusUpdate) (domain.Certificate, error)
	UpdateArtifacts(ctx context.Context, id string, artifacts domain.CertificateArtifacts, at time.Time) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// CertificateListFilter narrows dashboard listings. Results are ordered newest first.
type CertificateListFilter struct {
	// Query matches case-insensitively against number, bearer, native_of and village.
	Query      string
	Status     domain.CertificateStatus
	Pagination domain.Pagination
	// Offset is the decoded position of Pagination.PageToken.
	Offset int
}

// StatusUpdate captures an admin status change.
type StatusUpdate struct {
	Status domain.CertificateStatus
	Note   string
	At     time.Time
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
