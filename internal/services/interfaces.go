package services

import (
	"context"
	"time"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/domain"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/storage"
)

// Event types published on the certificate topic.
const (
	EventCertificateGenerated     = "certificate.generated"
	EventCertificateStatusChanged = "certificate.status_changed"
)

// QREncoder renders text into a PNG data URI.
type QREncoder interface {
	Encode(ctx context.Context, text string, size int) (string, error)
}

// AssetProvider exposes the current template and logo snapshot.
type AssetProvider interface {
	Assets(ctx context.Context) (Assets, error)
}

// ArtifactStore is the storage contract used for rendered artifacts.
type ArtifactStore interface {
	Put(ctx context.Context, object string, body []byte, contentType string) (storage.Object, error)
	Delete(ctx context.Context, object string) error
	SignedURL(ctx context.Context, object string, ttl time.Duration) (storage.SignedURL, error)
}

// PDFRenderer converts populated HTML to a PDF document.
type PDFRenderer interface {
	Enabled() bool
	Render(ctx context.Context, html string) ([]byte, error)
}

// EventPublisher emits certificate lifecycle events.
type EventPublisher interface {
	PublishCertificateEvent(ctx context.Context, event CertificateEvent) (string, error)
}

// CertificateEvent is the payload published for lifecycle changes.
type CertificateEvent struct {
	EventID           string                   `json:"eventId"`
	Type              string                   `json:"type"`
	CertificateID     string                   `json:"certificateId,omitempty"`
	CertificateNumber string                   `json:"certificateNumber"`
	Status            domain.CertificateStatus `json:"status,omitempty"`
	PreviousStatus    domain.CertificateStatus `json:"previousStatus,omitempty"`
	HTMLURL           string                   `json:"htmlUrl,omitempty"`
	PDFURL            string                   `json:"pdfUrl,omitempty"`
	ActorID           string                   `json:"actorId,omitempty"`
	OccurredAt        time.Time                `json:"occurredAt"`
}

// GenerationMetrics records generation outcomes. observability.Metrics satisfies it.
type GenerationMetrics interface {
	GenerationOutcome(outcome string)
	FallbackUsed(component, source string)
	RateLimitDenied(scope string)
	PersistFailed(artifact string)
}

type noopMetrics struct{}

func (noopMetrics) GenerationOutcome(string) {}
func (noopMetrics) FallbackUsed(string, string) {}
func (noopMetrics) RateLimitDenied(string) {}
func (noopMetrics) PersistFailed(string) {}

// GenerationService renders certificates and persists their artifacts.
type GenerationService interface {
	Generate(ctx context.Context, cmd GenerateCommand) (GenerationResult, error)
}

// VerificationService answers public lookups.
type VerificationService interface {
	Verify(ctx context.Context, query string) (VerificationResult, error)
}

// CertificateService covers the admin record lifecycle.
type CertificateService interface {
	Create(ctx context.Context, cmd CreateCertificateCommand) (domain.Certificate, error)
	Get(ctx context.Context, id string) (domain.Certificate, error)
	List(ctx context.Context, filter CertificateListFilter) (domain.CursorPage[domain.Certificate], error)
	Stats(ctx context.Context) (domain.CertificateStats, error)
	UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (domain.Certificate, error)
	Delete(ctx context.Context, cmd DeleteCertificateCommand) error
	GenerateForRecord(ctx context.Context, cmd GenerateForRecordCommand) (GenerationResult, error)
	ArtifactURL(ctx context.Context, id string, kind domain.ArtifactKind) (domain.SignedArtifactURL, error)
}

// CounterService issues sequence numbers.
type CounterService interface {
	Next(ctx context.Context, scope, name string, opts CounterGenerationOptions) (CounterValue, error)
	NextCertificateReferences(ctx context.Context, issueYear int) (CertificateReferences, error)
}

// SystemService aggregates health information.
type SystemService interface {
	HealthReport(ctx context.Context) (domain.SystemHealthReport, error)
}

// CounterGenerationOptions controls how counter values are incremented and formatted.
type CounterGenerationOptions struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
	Prefix       string
	Suffix       string
	PadLength    int
	Formatter    func(time.Time, int64) string
}

// CounterValue is a freshly issued sequence value.
type CounterValue struct {
	Value     int64
	Formatted string
}

// CertificateReferences are the identifiers assigned to a new record.
type CertificateReferences struct {
	OurRef            string
	YourRef           string
	CertificateNumber string
}

// GenerateCommand requests a certificate render. Input is the raw request body; Data, when set,
// is an already validated record view and skips validation.
type GenerateCommand struct {
	ClientID      string
	Input         map[string]any
	Data          *domain.CertificateData
	CertificateID string
	ActorID       string
	ForcePersist  bool
	SkipRateLimit bool
}

// GenerationResult is the rendered certificate plus persisted artifact URLs when available.
type GenerationResult struct {
	HTML              string
	HTMLURL           string
	PDFURL            string
	QRCode            string
	CertificateNumber string
}

// VerificationResult is the public lookup answer.
type VerificationResult struct {
	Found       bool
	Certificate *domain.VerificationProjection
}

// CreateCertificateCommand carries the admin create payload.
type CreateCertificateCommand struct {
	BearerName    string `validate:"required"`
	NativeOf      string `validate:"required"`
	Village       string `validate:"required"`
	DateIssued    string `validate:"required,datetime=2006-01-02"`
	PassportPhoto string
	ActorID       string
}

// CertificateListFilter narrows admin listings.
type CertificateListFilter struct {
	Query      string
	Status     string
	Pagination domain.Pagination
}

// UpdateStatusCommand changes a record status.
type UpdateStatusCommand struct {
	ID      string `validate:"required"`
	Status  string `validate:"required,oneof=valid superseded revoked invalid"`
	Note    string `validate:"max=500"`
	ActorID string
}

// DeleteCertificateCommand removes a record.
type DeleteCertificateCommand struct {
	ID      string
	ActorID string
}

// GenerateForRecordCommand renders a stored record.
type GenerateForRecordCommand struct {
	ID            string
	ClientID      string
	ActorID       string
	ForcePersist  bool
	SkipRateLimit bool
}
