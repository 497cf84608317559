package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/domain"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/repositories/memory"
)

type stubGenerationService struct {
	cmd    GenerateCommand
	result GenerationResult
	err    error
}

func (s *stubGenerationService) Generate(_ context.Context, cmd GenerateCommand) (GenerationResult, error) {
	s.cmd = cmd
	return s.result, s.err
}

type certificateFixture struct {
	repo       *memory.CertificateRepository
	generation *stubGenerationService
	store      *stubStore
	events     *stubPublisher
	now        time.Time
}

func newCertificateFixture() *certificateFixture {
	return &certificateFixture{
		repo:       memory.NewCertificateRepository(),
		generation: &stubGenerationService{result: GenerationResult{HTML: "<p>ok</p>"}},
		store:      newStubStore(),
		events:     &stubPublisher{},
		now:        time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC),
	}
}

func (f *certificateFixture) service(t *testing.T, enforceWindow bool, withStore bool) CertificateService {
	t.Helper()
	counters, err := NewCounterService(CounterServiceDeps{Repository: memory.NewCounterRepository()})
	if err != nil {
		t.Fatalf("new counter service: %v", err)
	}
	var store ArtifactStore
	if withStore {
		store = f.store
	}
	seq := 0
	svc, err := NewCertificateService(CertificateServiceDeps{
		Repository: f.repo,
		Counters:   counters,
		Generation: f.generation,
		Store:      store,
		Events:     f.events,
		Clock:      func() time.Time { return f.now },
		NewID: func(time.Time) string {
			seq++
			return "cert-" + string(rune('0'+seq))
		},
		PublicOrigin:       "https://origin.example.gov/",
		EnforceIssueWindow: enforceWindow,
	})
	if err != nil {
		t.Fatalf("new certificate service: %v", err)
	}
	return svc
}

func createCommand() CreateCertificateCommand {
	return CreateCertificateCommand{
		BearerName: "Jane O'Neil",
		NativeOf:   "Okposo",
		Village:    "Upenekang",
		DateIssued: "2025-03-01",
		ActorID:    "admin-1",
	}
}

func TestCertificateServiceCreateAssignsReferences(t *testing.T) {
	f := newCertificateFixture()
	svc := f.service(t, true, false)

	created, err := svc.Create(context.Background(), createCommand())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != "cert-1" {
		t.Fatalf("expected generated id, got %s", created.ID)
	}
	if created.CertificateNumber != "IBN25 0001" || created.OurRef != "IBN/LGA/ORG/2025/0001" || created.YourRef != "IBN/ORG/2025/0001" {
		t.Fatalf("unexpected references %s %s %s", created.CertificateNumber, created.OurRef, created.YourRef)
	}
	if created.QRCodeData != "https://origin.example.gov/verify?cert_id=IBN25%200001" {
		t.Fatalf("unexpected qr data %s", created.QRCodeData)
	}
	if created.Status != domain.CertificateStatusValid || created.CreatedBy != "admin-1" {
		t.Fatalf("unexpected status or creator %s %s", created.Status, created.CreatedBy)
	}
	if created.BearerName != "Jane ONeil" {
		t.Fatalf("expected sanitized bearer, got %q", created.BearerName)
	}
	if !created.CreatedAt.Equal(f.now) {
		t.Fatalf("expected created at %s, got %s", f.now, created.CreatedAt)
	}

	second, err := svc.Create(context.Background(), createCommand())
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if second.CertificateNumber != "IBN25 0002" {
		t.Fatalf("expected sequential number, got %s", second.CertificateNumber)
	}
}

func TestCertificateServiceCreateValidation(t *testing.T) {
	f := newCertificateFixture()
	svc := f.service(t, true, false)

	cases := []struct {
		name    string
		mutate  func(*CreateCertificateCommand)
		message string
	}{
		{"missing bearer", func(c *CreateCertificateCommand) { c.BearerName = "" }, "bearer_name is required"},
		{"bad date", func(c *CreateCertificateCommand) { c.DateIssued = "01/03/2025" }, "invalid date format"},
		{"digits in name", func(c *CreateCertificateCommand) { c.BearerName = "Jane 2" }, "bearer_name may only contain letters, spaces, apostrophes, periods and hyphens"},
		{"short village", func(c *CreateCertificateCommand) { c.Village = "U" }, "village must be between 2 and 100 characters"},
		{"future date", func(c *CreateCertificateCommand) { c.DateIssued = "2025-03-11" }, "date_issued cannot be in the future"},
		{"stale date", func(c *CreateCertificateCommand) { c.DateIssued = "2024-03-09" }, "date_issued cannot be more than one year in the past"},
	}
	for _, tc := range cases {
		cmd := createCommand()
		tc.mutate(&cmd)
		_, err := svc.Create(context.Background(), cmd)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
		if vErr.Message != tc.message {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.message, vErr.Message)
		}
	}
}

func TestCertificateServiceCreateWithoutIssueWindow(t *testing.T) {
	f := newCertificateFixture()
	svc := f.service(t, false, false)

	cmd := createCommand()
	cmd.DateIssued = "2019-06-01"
	created, err := svc.Create(context.Background(), cmd)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.CertificateNumber != "IBN19 0001" {
		t.Fatalf("expected issue year in number, got %s", created.CertificateNumber)
	}
}

func TestCertificateServiceUpdateStatus(t *testing.T) {
	f := newCertificateFixture()
	svc := f.service(t, true, false)
	created, err := svc.Create(context.Background(), createCommand())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.UpdateStatus(context.Background(), UpdateStatusCommand{
		ID:      created.ID,
		Status:  " Revoked ",
		Note:    `<script>alert(1)</script>Lost <b>original</b>`,
		ActorID: "admin-2",
	})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != domain.CertificateStatusRevoked {
		t.Fatalf("expected revoked, got %s", updated.Status)
	}
	if strings.ContainsAny(updated.StatusNote, "<>") || !strings.Contains(updated.StatusNote, "Lost original") {
		t.Fatalf("expected html stripped note, got %q", updated.StatusNote)
	}

	if len(f.events.events) != 1 {
		t.Fatalf("expected one event, got %d", len(f.events.events))
	}
	event := f.events.events[0]
	if event.Type != EventCertificateStatusChanged || event.PreviousStatus != domain.CertificateStatusValid || event.Status != domain.CertificateStatusRevoked {
		t.Fatalf("unexpected event %+v", event)
	}

	_, err = svc.UpdateStatus(context.Background(), UpdateStatusCommand{ID: created.ID, Status: "expired"})
	requireValidationMessage(t, err, "status must be one of valid, superseded, revoked, invalid")

	_, err = svc.UpdateStatus(context.Background(), UpdateStatusCommand{ID: "missing", Status: "valid"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCertificateServiceListAndStats(t *testing.T) {
	f := newCertificateFixture()
	svc := f.service(t, true, false)
	for i := 0; i < 3; i++ {
		if _, err := svc.Create(context.Background(), createCommand()); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := svc.UpdateStatus(context.Background(), UpdateStatusCommand{ID: "cert-2", Status: "superseded"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	page, err := svc.List(context.Background(), CertificateListFilter{Pagination: domain.Pagination{PageSize: 2}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 2 || page.NextPageToken == "" {
		t.Fatalf("expected first page of two with token, got %d %q", len(page.Items), page.NextPageToken)
	}
	next, err := svc.List(context.Background(), CertificateListFilter{Pagination: domain.Pagination{PageSize: 2, PageToken: page.NextPageToken}})
	if err != nil {
		t.Fatalf("list next: %v", err)
	}
	if len(next.Items) != 1 || next.NextPageToken != "" {
		t.Fatalf("expected final page of one, got %d %q", len(next.Items), next.NextPageToken)
	}

	filtered, err := svc.List(context.Background(), CertificateListFilter{Status: "superseded"})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(filtered.Items) != 1 || filtered.Items[0].ID != "cert-2" {
		t.Fatalf("unexpected filtered items %+v", filtered.Items)
	}

	if _, err := svc.List(context.Background(), CertificateListFilter{Status: "expired"}); err == nil {
		t.Fatalf("expected invalid status filter to fail")
	}
	if _, err := svc.List(context.Background(), CertificateListFilter{Pagination: domain.Pagination{PageToken: "%%"}}); err == nil {
		t.Fatalf("expected invalid token to fail")
	}

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Valid != 2 || stats.Superseded != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestCertificateServiceDeleteRemovesArtifacts(t *testing.T) {
	f := newCertificateFixture()
	svc := f.service(t, true, true)
	created, err := svc.Create(context.Background(), createCommand())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	artifacts := domain.CertificateArtifacts{HTMLObject: "certificates/2025/ibn25-0001/certificate.html"}
	if err := f.repo.UpdateArtifacts(context.Background(), created.ID, artifacts, f.now); err != nil {
		t.Fatalf("update artifacts: %v", err)
	}

	if err := svc.Delete(context.Background(), DeleteCertificateCommand{ID: created.ID, ActorID: "admin-1"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(f.store.deleted) != 1 || f.store.deleted[0] != artifacts.HTMLObject {
		t.Fatalf("expected html artifact deleted, got %v", f.store.deleted)
	}
	if _, err := svc.Get(context.Background(), created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected record removed, got %v", err)
	}
	if err := svc.Delete(context.Background(), DeleteCertificateCommand{ID: created.ID}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestCertificateServiceGenerateForRecord(t *testing.T) {
	f := newCertificateFixture()
	svc := f.service(t, true, false)
	created, err := svc.Create(context.Background(), createCommand())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.GenerateForRecord(context.Background(), GenerateForRecordCommand{ID: created.ID, ClientID: "admin-1", ForcePersist: true}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	cmd := f.generation.cmd
	if cmd.CertificateID != created.ID || !cmd.ForcePersist || cmd.Data == nil {
		t.Fatalf("unexpected generate command %+v", cmd)
	}
	if cmd.Data.QRCodeData != created.QRCodeData || cmd.Data.CertificateNumber != created.CertificateNumber {
		t.Fatalf("expected stored qr data reused, got %+v", cmd.Data)
	}
}

func TestCertificateServiceArtifactURL(t *testing.T) {
	f := newCertificateFixture()
	disabled := f.service(t, true, false)
	if _, err := disabled.ArtifactURL(context.Background(), "cert-1", domain.ArtifactHTML); !errors.Is(err, ErrStorageDisabled) {
		t.Fatalf("expected storage disabled, got %v", err)
	}

	svc := f.service(t, true, true)
	created, err := svc.Create(context.Background(), createCommand())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.ArtifactURL(context.Background(), created.ID, domain.ArtifactPDF); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected missing artifact to be not found, got %v", err)
	}

	object := "certificates/2025/ibn25-0001/certificate.pdf"
	if err := f.repo.UpdateArtifacts(context.Background(), created.ID, domain.CertificateArtifacts{PDFObject: object}, f.now); err != nil {
		t.Fatalf("update artifacts: %v", err)
	}
	signed, err := svc.ArtifactURL(context.Background(), created.ID, domain.ArtifactPDF)
	if err != nil {
		t.Fatalf("artifact url: %v", err)
	}
	if signed.Kind != domain.ArtifactPDF || !strings.HasPrefix(signed.URL, "https://signed.example.com/"+object) || signed.Method != "GET" {
		t.Fatalf("unexpected signed url %+v", signed)
	}
}

func TestNewCertificateServiceRequiresOrigin(t *testing.T) {
	counters, _ := NewCounterService(CounterServiceDeps{Repository: memory.NewCounterRepository()})
	_, err := NewCertificateService(CertificateServiceDeps{
		Repository:   memory.NewCertificateRepository(),
		Counters:     counters,
		Generation:   &stubGenerationService{},
		PublicOrigin: "origin.example.gov",
	})
	if err == nil {
		t.Fatalf("expected relative origin to be rejected")
	}
}
