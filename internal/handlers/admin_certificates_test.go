package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/go-chi/chi/v5"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/domain"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/auth"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/idempotency"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/services"
)

type stubGenerationService struct {
	commands []services.GenerateCommand
	result   services.GenerationResult
	err      error
}

func (s *stubGenerationService) Generate(_ context.Context, cmd services.GenerateCommand) (services.GenerationResult, error) {
	s.commands = append(s.commands, cmd)
	return s.result, s.err
}

type stubCertificateService struct {
	created       []services.CreateCertificateCommand
	createErr     error
	record        domain.Certificate
	getErr        error
	listFilters   []services.CertificateListFilter
	page          domain.CursorPage[domain.Certificate]
	stats         domain.CertificateStats
	statusUpdates []services.UpdateStatusCommand
	deleted       []services.DeleteCertificateCommand
	generated     []services.GenerateForRecordCommand
	generation    services.GenerationResult
	generateErr   error
	artifactKinds []domain.ArtifactKind
	artifact      domain.SignedArtifactURL
	artifactErr   error
}

func (s *stubCertificateService) Create(_ context.Context, cmd services.CreateCertificateCommand) (domain.Certificate, error) {
	s.created = append(s.created, cmd)
	if s.createErr != nil {
		return domain.Certificate{}, s.createErr
	}
	cert := s.record
	cert.BearerName = cmd.BearerName
	cert.CreatedBy = cmd.ActorID
	return cert, nil
}

func (s *stubCertificateService) Get(_ context.Context, id string) (domain.Certificate, error) {
	if s.getErr != nil {
		return domain.Certificate{}, s.getErr
	}
	if id != s.record.ID {
		return domain.Certificate{}, fmt.Errorf("%w: %s", services.ErrNotFound, id)
	}
	return s.record, nil
}

func (s *stubCertificateService) List(_ context.Context, filter services.CertificateListFilter) (domain.CursorPage[domain.Certificate], error) {
	s.listFilters = append(s.listFilters, filter)
	return s.page, nil
}

func (s *stubCertificateService) Stats(context.Context) (domain.CertificateStats, error) {
	return s.stats, nil
}

func (s *stubCertificateService) UpdateStatus(_ context.Context, cmd services.UpdateStatusCommand) (domain.Certificate, error) {
	s.statusUpdates = append(s.statusUpdates, cmd)
	status, ok := domain.ParseCertificateStatus(cmd.Status)
	if !ok {
		return domain.Certificate{}, &services.ValidationError{Field: "status", Message: "status must be one of valid, superseded, revoked, invalid"}
	}
	cert := s.record
	cert.Status = status
	cert.StatusNote = cmd.Note
	return cert, nil
}

func (s *stubCertificateService) Delete(_ context.Context, cmd services.DeleteCertificateCommand) error {
	s.deleted = append(s.deleted, cmd)
	if cmd.ID != s.record.ID {
		return services.ErrNotFound
	}
	return nil
}

func (s *stubCertificateService) GenerateForRecord(_ context.Context, cmd services.GenerateForRecordCommand) (services.GenerationResult, error) {
	s.generated = append(s.generated, cmd)
	return s.generation, s.generateErr
}

func (s *stubCertificateService) ArtifactURL(_ context.Context, id string, kind domain.ArtifactKind) (domain.SignedArtifactURL, error) {
	s.artifactKinds = append(s.artifactKinds, kind)
	if s.artifactErr != nil {
		return domain.SignedArtifactURL{}, s.artifactErr
	}
	return s.artifact, nil
}

func sampleCertificate() domain.Certificate {
	created := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	return domain.Certificate{
		ID:                "cert-1",
		CertificateNumber: "IBN25 0042",
		OurRef:            "IBN/LGA/ORG/2025/0007",
		YourRef:           "IBN/ORG/2025/0008",
		BearerName:        "Jane O'Neil",
		NativeOf:          "Ibeno",
		Village:           "Upenekang",
		DateIssued:        "2025-03-01",
		Status:            domain.CertificateStatusValid,
		QRCodeData:        "https://origin.example.gov/verify?cert_id=IBN25%200042",
		PassportPhoto:     "data:image/jpeg;base64,AAAA",
		CreatedBy:         "admin-1",
		CreatedAt:         created,
		UpdatedAt:         created,
	}
}

func newAdminRouter(h *AdminCertificateHandlers) http.Handler {
	router := chi.NewRouter()
	h.Routes(router)
	return router
}

func withAdmin(req *http.Request) *http.Request {
	identity := &auth.Identity{UID: "admin-1", Roles: []string{auth.RoleAdmin}}
	return req.WithContext(auth.WithIdentity(req.Context(), identity))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestAdminGenerateRawSuccess(t *testing.T) {
	gen := &stubGenerationService{result: services.GenerationResult{
		HTML:              "<html>cert</html>",
		QRCode:            "data:image/png;base64,QUJD",
		CertificateNumber: "IBN25 0042",
	}}
	router := newAdminRouter(NewAdminCertificateHandlers(nil, &stubCertificateService{}, gen))

	body := `{"ourRef":"IBN/LGA/ORG/2025/0007","certificateNumber":"IBN25 0042"}`
	req := withAdmin(httptest.NewRequest(http.MethodPost, "/certificates:generate", strings.NewReader(body)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	payload := decodeBody(t, rr)
	if payload["success"] != true || payload["html"] != "<html>cert</html>" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if _, ok := payload["htmlUrl"]; ok {
		t.Fatalf("expected htmlUrl to be omitted when nothing was persisted")
	}
	if payload["certificateNumber"] != "IBN25 0042" {
		t.Fatalf("expected certificate number, got %v", payload["certificateNumber"])
	}

	if len(gen.commands) != 1 {
		t.Fatalf("expected one generation call, got %d", len(gen.commands))
	}
	cmd := gen.commands[0]
	if cmd.ClientID != "uid:admin-1" || cmd.ActorID != "admin-1" {
		t.Fatalf("expected admin client identity, got %q/%q", cmd.ClientID, cmd.ActorID)
	}
	if cmd.Input["ourRef"] != "IBN/LGA/ORG/2025/0007" {
		t.Fatalf("expected raw input forwarded, got %v", cmd.Input)
	}
}

func TestAdminGenerateRawErrors(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	cases := map[string]struct {
		err     error
		status  int
		message string
	}{
		"validation": {
			err:     &services.ValidationError{Field: "ourRef", Message: "missing or invalid field: ourRef"},
			status:  http.StatusBadRequest,
			message: "missing or invalid field: ourRef",
		},
		"rate limited": {
			err:     &services.RateLimitError{Limit: 10, ResetAt: now.Add(15 * time.Minute)},
			status:  http.StatusTooManyRequests,
			message: rateLimitedMessage,
		},
		"template": {
			err:     &services.TemplateLoadError{Err: errors.New("no template source available")},
			status:  http.StatusInternalServerError,
			message: generationFailedMessage,
		},
		"render": {
			err:     &services.RenderError{Message: "populate failed", Err: errors.New("empty template")},
			status:  http.StatusInternalServerError,
			message: generationFailedMessage,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			gen := &stubGenerationService{err: tc.err}
			router := newAdminRouter(NewAdminCertificateHandlers(nil, &stubCertificateService{}, gen, WithAdminClock(func() time.Time { return now })))

			req := withAdmin(httptest.NewRequest(http.MethodPost, "/certificates:generate", strings.NewReader(`{"ourRef":"x"}`)))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
			payload := decodeBody(t, rr)
			if payload["error"] != tc.message {
				t.Fatalf("expected message %q, got %v", tc.message, payload["error"])
			}
			if tc.status >= http.StatusInternalServerError {
				if details, _ := payload["details"].(string); details == "" {
					t.Fatalf("expected technical details for 5xx")
				}
			}
			if tc.status == http.StatusTooManyRequests {
				if rr.Header().Get("Retry-After") != "901" {
					t.Fatalf("expected Retry-After 901, got %s", rr.Header().Get("Retry-After"))
				}
				if rr.Header().Get("X-RateLimit-Reset") != fmt.Sprint(now.Add(15*time.Minute).Unix()) {
					t.Fatalf("unexpected reset header %s", rr.Header().Get("X-RateLimit-Reset"))
				}
			}
		})
	}
}

func TestAdminGenerateRawRejectsNonObject(t *testing.T) {
	gen := &stubGenerationService{}
	router := newAdminRouter(NewAdminCertificateHandlers(nil, &stubCertificateService{}, gen))

	for _, body := range []string{"null", "[1,2]", `"text"`} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, withAdmin(httptest.NewRequest(http.MethodPost, "/certificates:generate", strings.NewReader(body))))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400 for %s, got %d", body, rr.Code)
		}
	}
	if len(gen.commands) != 0 {
		t.Fatalf("expected generation not to run")
	}
}

func TestAdminCreateCertificate(t *testing.T) {
	svc := &stubCertificateService{record: sampleCertificate()}
	router := newAdminRouter(NewAdminCertificateHandlers(nil, svc, &stubGenerationService{}))

	body := `{"bearer_name":"Jane O'Neil","native_of":"Ibeno","village":"Upenekang","date_issued":"2025-03-01"}`
	req := withAdmin(httptest.NewRequest(http.MethodPost, "/certificates", strings.NewReader(body)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/certificates/cert-1" {
		t.Fatalf("expected location header, got %s", loc)
	}
	if len(svc.created) != 1 {
		t.Fatalf("expected one create call, got %d", len(svc.created))
	}
	cmd := svc.created[0]
	if cmd.NativeOf != "Ibeno" || cmd.Village != "Upenekang" || cmd.DateIssued != "2025-03-01" || cmd.ActorID != "admin-1" {
		t.Fatalf("unexpected command %+v", cmd)
	}
	payload := decodeBody(t, rr)
	if payload["certificate_number"] != "IBN25 0042" || payload["our_ref"] != "IBN/LGA/ORG/2025/0007" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if _, ok := payload["passport_photo"]; ok {
		t.Fatalf("expected passport photo to be omitted from create response")
	}
}

func TestAdminCreateCertificateValidation(t *testing.T) {
	svc := &stubCertificateService{createErr: &services.ValidationError{Field: "date_issued", Message: "date_issued cannot be in the future"}}
	router := newAdminRouter(NewAdminCertificateHandlers(nil, svc, &stubGenerationService{}))

	req := withAdmin(httptest.NewRequest(http.MethodPost, "/certificates", strings.NewReader(`{"bearer_name":"A B"}`)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	payload := decodeBody(t, rr)
	if payload["error"] != "date_issued cannot be in the future" || payload["field"] != "date_issued" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestAdminCreateCertificateIdempotent(t *testing.T) {
	svc := &stubCertificateService{record: sampleCertificate()}
	store := idempotency.NewMemoryStore()
	router := newAdminRouter(NewAdminCertificateHandlers(nil, svc, &stubGenerationService{},
		WithCreateMiddlewares(idempotency.Middleware(store)),
	))

	body := `{"bearer_name":"Jane O'Neil","native_of":"Ibeno","village":"Upenekang","date_issued":"2025-03-01"}`
	var responses []string
	for i := 0; i < 2; i++ {
		req := withAdmin(httptest.NewRequest(http.MethodPost, "/certificates", strings.NewReader(body)))
		req.Header.Set("Idempotency-Key", "create-1")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusCreated {
			t.Fatalf("attempt %d: expected status 201, got %d: %s", i, rr.Code, rr.Body.String())
		}
		responses = append(responses, rr.Body.String())
	}

	if len(svc.created) != 1 {
		t.Fatalf("expected a single create for a repeated key, got %d", len(svc.created))
	}
	if responses[0] != responses[1] {
		t.Fatalf("expected replayed body, got %q and %q", responses[0], responses[1])
	}
}

func TestAdminListCertificates(t *testing.T) {
	svc := &stubCertificateService{page: domain.CursorPage[domain.Certificate]{
		Items:         []domain.Certificate{sampleCertificate()},
		NextPageToken: "next-token",
	}}
	router := newAdminRouter(NewAdminCertificateHandlers(nil, svc, &stubGenerationService{}))

	req := withAdmin(httptest.NewRequest(http.MethodGet, "/certificates?q=jane&status=valid&page_size=500", nil))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(svc.listFilters) != 1 {
		t.Fatalf("expected one list call")
	}
	filter := svc.listFilters[0]
	if filter.Query != "jane" || filter.Status != "valid" || filter.Pagination.PageSize != 100 {
		t.Fatalf("unexpected filter %+v", filter)
	}

	var body certificateListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(body.Items) != 1 || body.NextPageToken != "next-token" {
		t.Fatalf("unexpected list response %+v", body)
	}
	if body.Items[0].PassportPhoto != "" {
		t.Fatalf("expected listing to omit passport photos")
	}
}

func TestAdminListRejectsBadPaging(t *testing.T) {
	router := newAdminRouter(NewAdminCertificateHandlers(nil, &stubCertificateService{}, &stubGenerationService{}))

	for _, query := range []string{"page_size=abc", "page_size=-1", "page_token=not-a-token"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, withAdmin(httptest.NewRequest(http.MethodGet, "/certificates?"+query, nil)))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400 for %s, got %d", query, rr.Code)
		}
	}
}

func TestAdminStats(t *testing.T) {
	svc := &stubCertificateService{stats: domain.CertificateStats{Total: 5, Valid: 3, Revoked: 1, Invalid: 1}}
	router := newAdminRouter(NewAdminCertificateHandlers(nil, svc, &stubGenerationService{}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withAdmin(httptest.NewRequest(http.MethodGet, "/certificates:stats", nil)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body certificateStatsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Total != 5 || body.Valid != 3 || body.Superseded != 0 || body.Revoked != 1 || body.Invalid != 1 {
		t.Fatalf("unexpected stats %+v", body)
	}
}

func TestAdminGetCertificate(t *testing.T) {
	svc := &stubCertificateService{record: sampleCertificate()}
	router := newAdminRouter(NewAdminCertificateHandlers(nil, svc, &stubGenerationService{}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withAdmin(httptest.NewRequest(http.MethodGet, "/certificates/cert-1", nil)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	payload := decodeBody(t, rr)
	if payload["passport_photo"] != "data:image/jpeg;base64,AAAA" {
		t.Fatalf("expected passport photo on detail view, got %v", payload["passport_photo"])
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, withAdmin(httptest.NewRequest(http.MethodGet, "/certificates/missing", nil)))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestAdminUpdateStatus(t *testing.T) {
	svc := &stubCertificateService{record: sampleCertificate()}
	router := newAdminRouter(NewAdminCertificateHandlers(nil, svc, &stubGenerationService{}))

	req := withAdmin(httptest.NewRequest(http.MethodPut, "/certificates/cert-1/status", strings.NewReader(`{"status":"revoked","note":"issued in error"}`)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(svc.statusUpdates) != 1 {
		t.Fatalf("expected one status update")
	}
	cmd := svc.statusUpdates[0]
	if cmd.ID != "cert-1" || cmd.Status != "revoked" || cmd.Note != "issued in error" || cmd.ActorID != "admin-1" {
		t.Fatalf("unexpected command %+v", cmd)
	}
	if payload := decodeBody(t, rr); payload["status"] != "revoked" {
		t.Fatalf("expected revoked status, got %v", payload["status"])
	}

	req = withAdmin(httptest.NewRequest(http.MethodPut, "/certificates/cert-1/status", strings.NewReader(`{"status":"lost"}`)))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for unknown status, got %d", rr.Code)
	}
}

func TestAdminDeleteCertificate(t *testing.T) {
	svc := &stubCertificateService{record: sampleCertificate()}
	router := newAdminRouter(NewAdminCertificateHandlers(nil, svc, &stubGenerationService{}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withAdmin(httptest.NewRequest(http.MethodDelete, "/certificates/cert-1", nil)))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if len(svc.deleted) != 1 || svc.deleted[0].ActorID != "admin-1" {
		t.Fatalf("unexpected delete commands %+v", svc.deleted)
	}
}

func TestAdminGenerateForRecord(t *testing.T) {
	svc := &stubCertificateService{
		record: sampleCertificate(),
		generation: services.GenerationResult{
			HTML:              "<html/>",
			HTMLURL:           "https://storage.example.com/certificates/2025/ibn25-0042/certificate.html",
			QRCode:            "data:image/png;base64,QUJD",
			CertificateNumber: "IBN25 0042",
		},
	}
	router := newAdminRouter(NewAdminCertificateHandlers(nil, svc, &stubGenerationService{}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withAdmin(httptest.NewRequest(http.MethodPost, "/certificates/cert-1:generate", nil)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(svc.generated) != 1 {
		t.Fatalf("expected one generate call")
	}
	cmd := svc.generated[0]
	if cmd.ID != "cert-1" || cmd.ForcePersist || cmd.SkipRateLimit {
		t.Fatalf("unexpected command %+v", cmd)
	}
	if payload := decodeBody(t, rr); payload["htmlUrl"] != svc.generation.HTMLURL {
		t.Fatalf("expected html url, got %v", payload["htmlUrl"])
	}
}

func TestAdminArtifactURL(t *testing.T) {
	expires := time.Date(2025, 3, 10, 9, 45, 0, 0, time.UTC)
	svc := &stubCertificateService{
		record: sampleCertificate(),
		artifact: domain.SignedArtifactURL{
			Kind:      domain.ArtifactPDF,
			URL:       "https://signed.example.com/certificate.pdf",
			Method:    http.MethodGet,
			ExpiresAt: expires,
		},
	}
	router := newAdminRouter(NewAdminCertificateHandlers(nil, svc, &stubGenerationService{}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withAdmin(httptest.NewRequest(http.MethodGet, "/certificates/cert-1/artifacts/PDF", nil)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(svc.artifactKinds) != 1 || svc.artifactKinds[0] != domain.ArtifactPDF {
		t.Fatalf("expected pdf kind, got %v", svc.artifactKinds)
	}
	payload := decodeBody(t, rr)
	if payload["url"] != "https://signed.example.com/certificate.pdf" || payload["expires_at"] != "2025-03-10T09:45:00Z" {
		t.Fatalf("unexpected payload %v", payload)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, withAdmin(httptest.NewRequest(http.MethodGet, "/certificates/cert-1/artifacts/docx", nil)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for unknown kind, got %d", rr.Code)
	}

	svc.artifactErr = services.ErrStorageDisabled
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, withAdmin(httptest.NewRequest(http.MethodGet, "/certificates/cert-1/artifacts/html", nil)))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 when storage is disabled, got %d", rr.Code)
	}
}

type nonAdminVerifier struct {
	calls int
}

func (v *nonAdminVerifier) VerifyIDToken(context.Context, string) (*firebaseauth.Token, error) {
	v.calls++
	return &firebaseauth.Token{UID: "user-1", Claims: map[string]any{}}, nil
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	verifier := &nonAdminVerifier{}
	authn := auth.NewAuthenticator(verifier)
	svc := &stubCertificateService{record: sampleCertificate()}
	router := newAdminRouter(NewAdminCertificateHandlers(authn, svc, &stubGenerationService{}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/certificates/cert-1", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 without token, got %d", rr.Code)
	}
	if verifier.calls != 0 {
		t.Fatalf("expected verifier not to be called without a token")
	}

	req := httptest.NewRequest(http.MethodGet, "/certificates/cert-1", nil)
	req.Header.Set("Authorization", "Bearer token")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 without admin role, got %d", rr.Code)
	}
}
