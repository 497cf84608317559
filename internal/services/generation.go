package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/domain"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/ratelimit"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/requestctx"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/storage"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/repositories"
)

// Generation outcome labels recorded in metrics.
const (
	OutcomeSuccess     = "success"
	OutcomeRateLimited = "rate_limited"
	OutcomeInvalid     = "invalid"
	OutcomeTemplate    = "template_error"
	OutcomeRender      = "render_error"
)

// GenerationServiceDeps bundles collaborators for certificate generation.
type GenerationServiceDeps struct {
	Limiter    ratelimit.Limiter
	QR         QREncoder
	Assets     AssetProvider
	Store      ArtifactStore
	PDF        PDFRenderer
	Repository repositories.CertificateRepository
	Events     EventPublisher
	Metrics    GenerationMetrics
	Logger     *zap.Logger
	Clock      func() time.Time
	// Persist enables best-effort artifact uploads for every generation.
	Persist bool
}

type generationService struct {
	limiter ratelimit.Limiter
	qr      QREncoder
	assets  AssetProvider
	store   ArtifactStore
	pdf     PDFRenderer
	repo    repositories.CertificateRepository
	events  EventPublisher
	metrics GenerationMetrics
	logger  *zap.Logger
	clock   func() time.Time
	persist bool
}

// NewGenerationService wires the generation pipeline. QR and asset collaborators are required.
func NewGenerationService(deps GenerationServiceDeps) (GenerationService, error) {
	if deps.QR == nil {
		return nil, errors.New("generation service: qr encoder is required")
	}
	if deps.Assets == nil {
		return nil, errors.New("generation service: asset provider is required")
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &generationService{
		limiter: deps.Limiter,
		qr:      deps.QR,
		assets:  deps.Assets,
		store:   deps.Store,
		pdf:     deps.PDF,
		repo:    deps.Repository,
		events:  deps.Events,
		metrics: metrics,
		logger:  logger,
		clock:   func() time.Time { return clock().UTC() },
		persist: deps.Persist,
	}, nil
}

func (s *generationService) Generate(ctx context.Context, cmd GenerateCommand) (GenerationResult, error) {
	if err := s.acquire(ctx, cmd); err != nil {
		return GenerationResult{}, err
	}

	var data domain.CertificateData
	if cmd.Data != nil {
		data = *cmd.Data
	} else {
		validated, err := ValidateCertificateInput(cmd.Input)
		if err != nil {
			s.metrics.GenerationOutcome(OutcomeInvalid)
			return GenerationResult{}, err
		}
		data = validated
	}

	photo := ""
	if data.PassportPhoto != "" {
		if strings.HasPrefix(data.PassportPhoto, jpegDataURIPrefix) && cmd.Data != nil {
			photo = data.PassportPhoto
		} else {
			normalized, err := NormalizePassportPhoto(data.PassportPhoto)
			if err != nil {
				s.metrics.GenerationOutcome(OutcomeInvalid)
				return GenerationResult{}, err
			}
			photo = normalized
		}
	}

	qrCode, err := s.qr.Encode(ctx, data.QRCodeData, DefaultCertificateQRSize)
	if err != nil {
		s.log(ctx).Warn("qr encoding failed, using placeholder", zap.Error(err))
		s.metrics.FallbackUsed("qr", "placeholder")
		qrCode = PlaceholderQRCode
	}

	assets, err := s.assets.Assets(ctx)
	if err != nil {
		s.metrics.GenerationOutcome(OutcomeTemplate)
		var tplErr *TemplateLoadError
		if !errors.As(err, &tplErr) {
			err = &TemplateLoadError{Err: err}
		}
		return GenerationResult{}, err
	}

	html, err := Populate(assets.Template, data, RenderImages{
		QRCode:        qrCode,
		LogoBase64:    assets.LogoBase64,
		PassportPhoto: photo,
	})
	if err != nil {
		s.metrics.GenerationOutcome(OutcomeRender)
		return GenerationResult{}, err
	}

	result := GenerationResult{
		HTML:              html,
		QRCode:            qrCode,
		CertificateNumber: data.CertificateNumber,
	}
	if s.store != nil && (s.persist || cmd.ForcePersist) {
		s.persistArtifacts(ctx, cmd, data, &result)
	}
	s.metrics.GenerationOutcome(OutcomeSuccess)
	return result, nil
}

func (s *generationService) acquire(ctx context.Context, cmd GenerateCommand) error {
	if s.limiter == nil || cmd.SkipRateLimit {
		return nil
	}
	decision, err := s.limiter.TryAcquire(ctx, cmd.ClientID)
	if err != nil {
		s.log(ctx).Warn("rate limiter unavailable, allowing request", zap.Error(err))
		return nil
	}
	if decision.Allowed {
		return nil
	}
	s.metrics.RateLimitDenied("generation")
	s.metrics.GenerationOutcome(OutcomeRateLimited)
	return &RateLimitError{Limit: decision.Limit, Remaining: decision.Remaining, ResetAt: decision.ResetAt}
}

func (s *generationService) persistArtifacts(ctx context.Context, cmd GenerateCommand, data domain.CertificateData, result *GenerationResult) {
	logger := s.log(ctx).With(zap.String("certificate_number", data.CertificateNumber))
	artifacts := domain.CertificateArtifacts{}

	htmlObject, err := s.put(ctx, data, domain.ArtifactHTML, []byte(result.HTML), "text/html; charset=utf-8")
	if err != nil {
		s.metrics.PersistFailed(string(domain.ArtifactHTML))
		logger.Warn("html artifact not persisted", zap.Error(err))
	} else {
		artifacts.HTMLObject = htmlObject.Name
		artifacts.HTMLURL = htmlObject.URL
	}

	if s.pdf != nil && s.pdf.Enabled() {
		document, renderErr := s.pdf.Render(ctx, result.HTML)
		if renderErr != nil {
			s.metrics.PersistFailed(string(domain.ArtifactPDF))
			logger.Warn("pdf render failed", zap.Error(&UpstreamError{Service: "pdf", Message: "PDF rendering failed", Err: renderErr}))
		} else {
			pdfObject, putErr := s.put(ctx, data, domain.ArtifactPDF, document, "application/pdf")
			if putErr != nil {
				s.metrics.PersistFailed(string(domain.ArtifactPDF))
				logger.Warn("pdf artifact not persisted", zap.Error(putErr))
			} else {
				artifacts.PDFObject = pdfObject.Name
				artifacts.PDFURL = pdfObject.URL
			}
		}
	}

	if artifacts.Empty() {
		return
	}
	result.HTMLURL = artifacts.HTMLURL
	result.PDFURL = artifacts.PDFURL

	if cmd.CertificateID != "" && s.repo != nil {
		recorded := artifacts
		if stored, err := s.repo.Get(ctx, cmd.CertificateID); err == nil {
			recorded = artifacts.Merge(stored.Artifacts)
		} else if !isNotFound(err) {
			logger.Warn("stored artifacts not read", zap.String("certificate_id", cmd.CertificateID), zap.Error(err))
		}
		if err := s.repo.UpdateArtifacts(ctx, cmd.CertificateID, recorded, s.clock()); err != nil {
			logger.Error("artifact urls not recorded", zap.String("certificate_id", cmd.CertificateID), zap.Error(err))
		}
	}

	if s.events != nil {
		event := CertificateEvent{
			Type:              EventCertificateGenerated,
			CertificateID:     cmd.CertificateID,
			CertificateNumber: data.CertificateNumber,
			HTMLURL:           artifacts.HTMLURL,
			PDFURL:            artifacts.PDFURL,
			ActorID:           cmd.ActorID,
			OccurredAt:        s.clock(),
		}
		if _, err := s.events.PublishCertificateEvent(ctx, event); err != nil {
			logger.Warn("certificate event not published", zap.String("event_type", event.Type), zap.Error(err))
		}
	}
}

func (s *generationService) put(ctx context.Context, data domain.CertificateData, kind domain.ArtifactKind, body []byte, contentType string) (storage.Object, error) {
	object, err := storage.BuildCertificatePath(storage.PathParams{
		DateIssued:        data.DateIssued,
		CertificateNumber: data.CertificateNumber,
		Kind:              kind,
	})
	if err != nil {
		return storage.Object{}, &StorageError{Op: "path", Object: string(kind), Err: err}
	}
	stored, err := s.store.Put(ctx, object, body, contentType)
	if err != nil {
		return storage.Object{}, &StorageError{Op: "put", Object: object, Err: err}
	}
	return stored, nil
}

func (s *generationService) log(ctx context.Context) *zap.Logger {
	if logger := requestctx.Logger(ctx); logger != nil && logger != requestctx.NoopLogger() {
		return logger.Named("generation")
	}
	return s.logger
}
