package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/domain"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/pagination"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/repositories"
)

const defaultArtifactURLTTL = 15 * time.Minute

var createFieldNames = map[string]string{
	"BearerName": "bearer_name",
	"NativeOf":   "native_of",
	"Village":    "village",
	"DateIssued": "date_issued",
	"Status":     "status",
	"Note":       "note",
	"ID":         "id",
}

// CertificateServiceDeps bundles collaborators for admin certificate management.
type CertificateServiceDeps struct {
	Repository repositories.CertificateRepository
	Counters   CounterService
	Generation GenerationService
	Store      ArtifactStore
	Events     EventPublisher
	Logger     *zap.Logger
	Clock      func() time.Time
	NewID      func(time.Time) string
	// PublicOrigin prefixes the verification URL encoded into each certificate QR code.
	PublicOrigin       string
	EnforceIssueWindow bool
	SignedURLTTL       time.Duration
}

type certificateService struct {
	repo         repositories.CertificateRepository
	counters     CounterService
	generation   GenerationService
	store        ArtifactStore
	events       EventPublisher
	logger       *zap.Logger
	clock        func() time.Time
	newID        func(time.Time) string
	origin       string
	issueWindow  bool
	signedURLTTL time.Duration
	validate     *validator.Validate
	notePolicy   *bluemonday.Policy
}

// NewCertificateService constructs the admin certificate service.
func NewCertificateService(deps CertificateServiceDeps) (CertificateService, error) {
	if deps.Repository == nil {
		return nil, errors.New("certificate service: repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("certificate service: counter service is required")
	}
	if deps.Generation == nil {
		return nil, errors.New("certificate service: generation service is required")
	}
	origin := strings.TrimRight(strings.TrimSpace(deps.PublicOrigin), "/")
	if !validAbsoluteURL(origin) {
		return nil, fmt.Errorf("certificate service: public origin %q must be an absolute url", deps.PublicOrigin)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = func(at time.Time) string {
			return ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()
		}
	}
	ttl := deps.SignedURLTTL
	if ttl <= 0 {
		ttl = defaultArtifactURLTTL
	}
	return &certificateService{
		repo:         deps.Repository,
		counters:     deps.Counters,
		generation:   deps.Generation,
		store:        deps.Store,
		events:       deps.Events,
		logger:       logger,
		clock:        func() time.Time { return clock().UTC() },
		newID:        newID,
		origin:       origin,
		issueWindow:  deps.EnforceIssueWindow,
		signedURLTTL: ttl,
		validate:     validator.New(),
		notePolicy:   bluemonday.StrictPolicy(),
	}, nil
}

func (s *certificateService) Create(ctx context.Context, cmd CreateCertificateCommand) (domain.Certificate, error) {
	if err := s.validateStruct(cmd); err != nil {
		return domain.Certificate{}, err
	}

	rawBearer := strings.TrimSpace(norm.NFC.String(cmd.BearerName))
	if !bearerNamePattern.MatchString(rawBearer) {
		return domain.Certificate{}, newValidationError("bearer_name", "bearer_name may only contain letters, spaces, apostrophes, periods and hyphens")
	}

	bearer := Sanitize(cmd.BearerName)
	nativeOf := Sanitize(cmd.NativeOf)
	village := Sanitize(cmd.Village)
	for _, check := range []struct{ field, value string }{
		{"bearer_name", bearer},
		{"native_of", nativeOf},
		{"village", village},
	} {
		if err := checkLength(check.field, check.value); err != nil {
			return domain.Certificate{}, err
		}
	}

	now := s.clock()
	issued, err := time.Parse("2006-01-02", cmd.DateIssued)
	if err != nil {
		return domain.Certificate{}, newValidationError("date_issued", "invalid date format")
	}
	if s.issueWindow {
		if err := checkIssueWindow(issued, now); err != nil {
			return domain.Certificate{}, err
		}
	}

	photo, err := NormalizePassportPhoto(cmd.PassportPhoto)
	if err != nil {
		return domain.Certificate{}, err
	}

	refs, err := s.counters.NextCertificateReferences(ctx, issued.Year())
	if err != nil {
		return domain.Certificate{}, err
	}

	certificate := domain.Certificate{
		ID:                s.newID(now),
		CertificateNumber: refs.CertificateNumber,
		OurRef:            refs.OurRef,
		YourRef:           refs.YourRef,
		BearerName:        bearer,
		NativeOf:          nativeOf,
		Village:           village,
		DateIssued:        cmd.DateIssued,
		Status:            domain.CertificateStatusValid,
		QRCodeData:        s.verificationURL(refs.CertificateNumber),
		PassportPhoto:     photo,
		CreatedBy:         strings.TrimSpace(cmd.ActorID),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	created, err := s.repo.Insert(ctx, certificate)
	if err != nil {
		return domain.Certificate{}, translateRepositoryError(err)
	}
	s.logger.Info("certificate created",
		zap.String("certificate_id", created.ID),
		zap.String("certificate_number", created.CertificateNumber),
		zap.String("actor_id", created.CreatedBy),
	)
	return created, nil
}

func (s *certificateService) Get(ctx context.Context, id string) (domain.Certificate, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Certificate{}, newValidationError("id", "id is required")
	}
	certificate, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Certificate{}, translateRepositoryError(err)
	}
	return certificate, nil
}

func (s *certificateService) List(ctx context.Context, filter CertificateListFilter) (domain.CursorPage[domain.Certificate], error) {
	repoFilter := repositories.CertificateListFilter{
		Query:      strings.TrimSpace(filter.Query),
		Pagination: filter.Pagination,
	}
	if raw := strings.TrimSpace(filter.Status); raw != "" {
		status, ok := domain.ParseCertificateStatus(raw)
		if !ok {
			return domain.CursorPage[domain.Certificate]{}, newValidationError("status", "status must be one of valid, superseded, revoked, invalid")
		}
		repoFilter.Status = status
	}
	if repoFilter.Pagination.PageSize <= 0 {
		repoFilter.Pagination.PageSize = pagination.DefaultPageSize
	}
	if repoFilter.Pagination.PageSize > pagination.DefaultMaxPageSize {
		repoFilter.Pagination.PageSize = pagination.DefaultMaxPageSize
	}
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Certificate]{}, newValidationError("page_token", "invalid page_token")
	}
	repoFilter.Offset = cursor.Offset

	page, err := s.repo.List(ctx, repoFilter)
	if err != nil {
		return domain.CursorPage[domain.Certificate]{}, translateRepositoryError(err)
	}
	return page, nil
}

func (s *certificateService) Stats(ctx context.Context) (domain.CertificateStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return domain.CertificateStats{}, translateRepositoryError(err)
	}
	return stats, nil
}

func (s *certificateService) UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (domain.Certificate, error) {
	cmd.ID = strings.TrimSpace(cmd.ID)
	cmd.Status = strings.ToLower(strings.TrimSpace(cmd.Status))
	if err := s.validateStruct(cmd); err != nil {
		return domain.Certificate{}, err
	}
	status, _ := domain.ParseCertificateStatus(cmd.Status)

	previous, err := s.repo.Get(ctx, cmd.ID)
	if err != nil {
		return domain.Certificate{}, translateRepositoryError(err)
	}

	updated, err := s.repo.UpdateStatus(ctx, cmd.ID, repositories.StatusUpdate{
		Status: status,
		Note:   strings.TrimSpace(s.notePolicy.Sanitize(cmd.Note)),
		At:     s.clock(),
	})
	if err != nil {
		return domain.Certificate{}, translateRepositoryError(err)
	}

	s.publish(ctx, CertificateEvent{
		Type:              EventCertificateStatusChanged,
		CertificateID:     updated.ID,
		CertificateNumber: updated.CertificateNumber,
		Status:            updated.Status,
		PreviousStatus:    previous.Status,
		ActorID:           cmd.ActorID,
		OccurredAt:        updated.UpdatedAt,
	})
	return updated, nil
}

func (s *certificateService) Delete(ctx context.Context, cmd DeleteCertificateCommand) error {
	id := strings.TrimSpace(cmd.ID)
	if id == "" {
		return newValidationError("id", "id is required")
	}
	certificate, err := s.repo.Get(ctx, id)
	if err != nil {
		return translateRepositoryError(err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return translateRepositoryError(err)
	}

	if s.store != nil {
		for _, object := range []string{certificate.Artifacts.HTMLObject, certificate.Artifacts.PDFObject} {
			if object == "" {
				continue
			}
			if err := s.store.Delete(ctx, object); err != nil {
				s.logger.Warn("artifact not deleted",
					zap.String("certificate_id", id),
					zap.Error(&StorageError{Op: "delete", Object: object, Err: err}),
				)
			}
		}
	}
	s.logger.Info("certificate deleted", zap.String("certificate_id", id), zap.String("actor_id", cmd.ActorID))
	return nil
}

func (s *certificateService) GenerateForRecord(ctx context.Context, cmd GenerateForRecordCommand) (GenerationResult, error) {
	certificate, err := s.Get(ctx, cmd.ID)
	if err != nil {
		return GenerationResult{}, err
	}
	data := CertificateDataFromRecord(certificate)
	return s.generation.Generate(ctx, GenerateCommand{
		ClientID:      cmd.ClientID,
		Data:          &data,
		CertificateID: certificate.ID,
		ActorID:       cmd.ActorID,
		ForcePersist:  cmd.ForcePersist,
		SkipRateLimit: cmd.SkipRateLimit,
	})
}

func (s *certificateService) ArtifactURL(ctx context.Context, id string, kind domain.ArtifactKind) (domain.SignedArtifactURL, error) {
	if s.store == nil {
		return domain.SignedArtifactURL{}, ErrStorageDisabled
	}
	certificate, err := s.Get(ctx, id)
	if err != nil {
		return domain.SignedArtifactURL{}, err
	}
	object := certificate.Artifacts.Object(kind)
	if object == "" {
		return domain.SignedArtifactURL{}, fmt.Errorf("%w: %s artifact not persisted", ErrNotFound, kind)
	}
	signed, err := s.store.SignedURL(ctx, object, s.signedURLTTL)
	if err != nil {
		return domain.SignedArtifactURL{}, &StorageError{Op: "sign", Object: object, Err: err}
	}
	return domain.SignedArtifactURL{
		Kind:      kind,
		URL:       signed.URL,
		Method:    signed.Method,
		ExpiresAt: signed.ExpiresAt,
	}, nil
}

func (s *certificateService) verificationURL(number string) string {
	return s.origin + "/verify?cert_id=" + strings.ReplaceAll(url.QueryEscape(number), "+", "%20")
}

func (s *certificateService) publish(ctx context.Context, event CertificateEvent) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishCertificateEvent(ctx, event); err != nil {
		s.logger.Warn("certificate event not published",
			zap.String("event_type", event.Type),
			zap.String("certificate_id", event.CertificateID),
			zap.Error(err),
		)
	}
}

func (s *certificateService) validateStruct(value any) error {
	err := s.validate.Struct(value)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return newValidationError("", err.Error())
	}
	first := fieldErrs[0]
	field, ok := createFieldNames[first.StructField()]
	if !ok {
		field = strings.ToLower(first.StructField())
	}
	switch first.Tag() {
	case "required":
		return newValidationError(field, field+" is required")
	case "datetime":
		return newValidationError(field, "invalid date format")
	case "oneof":
		return newValidationError(field, field+" must be one of "+strings.ReplaceAll(first.Param(), " ", ", "))
	case "max":
		return newValidationError(field, field+" must be at most "+first.Param()+" characters")
	default:
		return newValidationError(field, field+" is invalid")
	}
}

func checkIssueWindow(issued, now time.Time) error {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if issued.After(today) {
		return newValidationError("date_issued", "date_issued cannot be in the future")
	}
	if issued.Before(today.AddDate(-1, 0, 0)) {
		return newValidationError("date_issued", "date_issued cannot be more than one year in the past")
	}
	return nil
}
