package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/domain"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/auth"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/httpx"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/pagination"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/services"
)

const maxStatusBodySize = 8 * 1024

// AdminCertificateHandlers exposes certificate issuance and record management to admins.
type AdminCertificateHandlers struct {
	authn        *auth.Authenticator
	certificates services.CertificateService
	generation   services.GenerationService
	createMW     []func(http.Handler) http.Handler
	clock        func() time.Time
}

// AdminCertificateOption customises the admin certificate handlers.
type AdminCertificateOption func(*AdminCertificateHandlers)

// WithCreateMiddlewares wraps only the create route, typically with the idempotency middleware.
func WithCreateMiddlewares(mw ...func(http.Handler) http.Handler) AdminCertificateOption {
	return func(h *AdminCertificateHandlers) {
		h.createMW = append(h.createMW, mw...)
	}
}

// WithAdminClock overrides the clock used for rate limit hints.
func WithAdminClock(clock func() time.Time) AdminCertificateOption {
	return func(h *AdminCertificateHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewAdminCertificateHandlers constructs handlers requiring the admin role on every route.
func NewAdminCertificateHandlers(authn *auth.Authenticator, certificates services.CertificateService, generation services.GenerationService, opts ...AdminCertificateOption) *AdminCertificateHandlers {
	h := &AdminCertificateHandlers{
		authn:        authn,
		certificates: certificates,
		generation:   generation,
		clock:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /admin endpoints onto the provided router.
func (h *AdminCertificateHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}
	r.Post("/certificates:generate", h.generateRaw)
	r.Get("/certificates:stats", h.stats)

	create := http.Handler(http.HandlerFunc(h.create))
	for i := len(h.createMW) - 1; i >= 0; i-- {
		if h.createMW[i] != nil {
			create = h.createMW[i](create)
		}
	}
	r.Method(http.MethodPost, "/certificates", create)
	r.Get("/certificates", h.list)
	r.Get("/certificates/{id}", h.get)
	r.Delete("/certificates/{id}", h.delete)
	r.Put("/certificates/{id}/status", h.updateStatus)
	r.Post("/certificates/{id}:generate", h.generateForRecord)
	r.Get("/certificates/{id}/artifacts/{kind}", h.artifact)
}

type generationResponse struct {
	Success           bool   `json:"success"`
	HTML              string `json:"html"`
	HTMLURL           string `json:"htmlUrl,omitempty"`
	PDFURL            string `json:"pdfUrl,omitempty"`
	QRCode            string `json:"qrCode"`
	CertificateNumber string `json:"certificateNumber"`
}

func newGenerationResponse(result services.GenerationResult) generationResponse {
	return generationResponse{
		Success:           true,
		HTML:              result.HTML,
		HTMLURL:           result.HTMLURL,
		PDFURL:            result.PDFURL,
		QRCode:            result.QRCode,
		CertificateNumber: result.CertificateNumber,
	}
}

type certificateArtifactsPayload struct {
	HTMLURL string `json:"html_url,omitempty"`
	PDFURL  string `json:"pdf_url,omitempty"`
}

type certificatePayload struct {
	ID                string                       `json:"id"`
	CertificateNumber string                       `json:"certificate_number"`
	OurRef            string                       `json:"our_ref"`
	YourRef           string                       `json:"your_ref"`
	BearerName        string                       `json:"bearer_name"`
	NativeOf          string                       `json:"native_of"`
	Village           string                       `json:"village"`
	DateIssued        string                       `json:"date_issued"`
	Status            domain.CertificateStatus     `json:"status"`
	StatusNote        string                       `json:"status_note,omitempty"`
	QRCodeData        string                       `json:"qr_code_data"`
	PassportPhoto     string                       `json:"passport_photo,omitempty"`
	Artifacts         *certificateArtifactsPayload `json:"artifacts,omitempty"`
	CreatedBy         string                       `json:"created_by,omitempty"`
	CreatedAt         string                       `json:"created_at"`
	UpdatedAt         string                       `json:"updated_at,omitempty"`
}

func newCertificatePayload(cert domain.Certificate, includePhoto bool) certificatePayload {
	payload := certificatePayload{
		ID:                cert.ID,
		CertificateNumber: cert.CertificateNumber,
		OurRef:            cert.OurRef,
		YourRef:           cert.YourRef,
		BearerName:        cert.BearerName,
		NativeOf:          cert.NativeOf,
		Village:           cert.Village,
		DateIssued:        cert.DateIssued,
		Status:            cert.Status,
		StatusNote:        cert.StatusNote,
		QRCodeData:        cert.QRCodeData,
		CreatedBy:         cert.CreatedBy,
		CreatedAt:         formatTime(cert.CreatedAt),
		UpdatedAt:         formatTime(cert.UpdatedAt),
	}
	if includePhoto {
		payload.PassportPhoto = cert.PassportPhoto
	}
	if cert.Artifacts.HTMLURL != "" || cert.Artifacts.PDFURL != "" {
		payload.Artifacts = &certificateArtifactsPayload{
			HTMLURL: cert.Artifacts.HTMLURL,
			PDFURL:  cert.Artifacts.PDFURL,
		}
	}
	return payload
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

type certificateListResponse struct {
	Items         []certificatePayload `json:"items"`
	NextPageToken string               `json:"next_page_token,omitempty"`
}

type certificateStatsResponse struct {
	Total      int64 `json:"total"`
	Valid      int64 `json:"valid"`
	Superseded int64 `json:"superseded"`
	Revoked    int64 `json:"revoked"`
	Invalid    int64 `json:"invalid"`
}

type createCertificateRequest struct {
	BearerName    string `json:"bearer_name"`
	NativeOf      string `json:"native_of"`
	Village       string `json:"village"`
	DateIssued    string `json:"date_issued"`
	PassportPhoto string `json:"passport_photo"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

type artifactURLResponse struct {
	Kind      domain.ArtifactKind `json:"kind"`
	URL       string              `json:"url"`
	Method    string              `json:"method"`
	ExpiresAt string              `json:"expires_at"`
}

func (h *AdminCertificateHandlers) generateRaw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.generation == nil {
		httpx.WriteError(ctx, w, httpx.NewError("generation_unavailable", "generation service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var input map[string]any
	if !decodeJSONBody(w, r, certificateBodyLimit, &input) {
		return
	}
	if input == nil {
		writeBodyError(ctx, w, errNotObject)
		return
	}

	result, err := h.generation.Generate(ctx, services.GenerateCommand{
		ClientID: clientIdentifier(r),
		Input:    input,
		ActorID:  actorID(ctx),
	})
	if err != nil {
		writeServiceError(ctx, w, err, generationFailedMessage, h.clock())
		return
	}
	writeJSONResponse(w, http.StatusOK, newGenerationResponse(result))
}

func (h *AdminCertificateHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireCertificates(w, r) {
		return
	}

	var req createCertificateRequest
	if !decodeJSONBody(w, r, certificateBodyLimit, &req) {
		return
	}

	cert, err := h.certificates.Create(ctx, services.CreateCertificateCommand{
		BearerName:    req.BearerName,
		NativeOf:      req.NativeOf,
		Village:       req.Village,
		DateIssued:    req.DateIssued,
		PassportPhoto: req.PassportPhoto,
		ActorID:       actorID(ctx),
	})
	if err != nil {
		writeServiceError(ctx, w, err, internalErrorMessage, h.clock())
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+cert.ID)
	writeJSONResponse(w, http.StatusCreated, newCertificatePayload(cert, false))
}

func (h *AdminCertificateHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireCertificates(w, r) {
		return
	}

	query := r.URL.Query()
	params, err := pagination.Parse(query, pagination.Options{})
	if err != nil {
		switch {
		case errors.Is(err, pagination.ErrInvalidPageSize):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be a positive integer", http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid page_token", http.StatusBadRequest))
		}
		return
	}

	page, err := h.certificates.List(ctx, services.CertificateListFilter{
		Query:  strings.TrimSpace(query.Get("q")),
		Status: strings.TrimSpace(query.Get("status")),
		Pagination: domain.Pagination{
			PageSize:  params.PageSize,
			PageToken: params.PageToken,
		},
	})
	if err != nil {
		writeServiceError(ctx, w, err, internalErrorMessage, h.clock())
		return
	}

	items := make([]certificatePayload, 0, len(page.Items))
	for _, cert := range page.Items {
		items = append(items, newCertificatePayload(cert, false))
	}
	writeJSONResponse(w, http.StatusOK, certificateListResponse{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *AdminCertificateHandlers) stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireCertificates(w, r) {
		return
	}
	stats, err := h.certificates.Stats(ctx)
	if err != nil {
		writeServiceError(ctx, w, err, internalErrorMessage, h.clock())
		return
	}
	writeJSONResponse(w, http.StatusOK, certificateStatsResponse{
		Total:      stats.Total,
		Valid:      stats.Valid,
		Superseded: stats.Superseded,
		Revoked:    stats.Revoked,
		Invalid:    stats.Invalid,
	})
}

func (h *AdminCertificateHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireCertificates(w, r) {
		return
	}
	cert, err := h.certificates.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(ctx, w, err, internalErrorMessage, h.clock())
		return
	}
	writeJSONResponse(w, http.StatusOK, newCertificatePayload(cert, true))
}

func (h *AdminCertificateHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireCertificates(w, r) {
		return
	}
	err := h.certificates.Delete(ctx, services.DeleteCertificateCommand{
		ID:      chi.URLParam(r, "id"),
		ActorID: actorID(ctx),
	})
	if err != nil {
		writeServiceError(ctx, w, err, internalErrorMessage, h.clock())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminCertificateHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireCertificates(w, r) {
		return
	}

	var req updateStatusRequest
	if !decodeJSONBody(w, r, maxStatusBodySize, &req) {
		return
	}

	cert, err := h.certificates.UpdateStatus(ctx, services.UpdateStatusCommand{
		ID:      chi.URLParam(r, "id"),
		Status:  req.Status,
		Note:    req.Note,
		ActorID: actorID(ctx),
	})
	if err != nil {
		writeServiceError(ctx, w, err, internalErrorMessage, h.clock())
		return
	}
	writeJSONResponse(w, http.StatusOK, newCertificatePayload(cert, false))
}

func (h *AdminCertificateHandlers) generateForRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireCertificates(w, r) {
		return
	}
	result, err := h.certificates.GenerateForRecord(ctx, services.GenerateForRecordCommand{
		ID:       chi.URLParam(r, "id"),
		ClientID: clientIdentifier(r),
		ActorID:  actorID(ctx),
	})
	if err != nil {
		writeServiceError(ctx, w, err, generationFailedMessage, h.clock())
		return
	}
	writeJSONResponse(w, http.StatusOK, newGenerationResponse(result))
}

func (h *AdminCertificateHandlers) artifact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireCertificates(w, r) {
		return
	}
	kind, ok := domain.ParseArtifactKind(chi.URLParam(r, "kind"))
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "artifact kind must be html or pdf", http.StatusBadRequest))
		return
	}
	signed, err := h.certificates.ArtifactURL(ctx, chi.URLParam(r, "id"), kind)
	if err != nil {
		writeServiceError(ctx, w, err, internalErrorMessage, h.clock())
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSONResponse(w, http.StatusOK, artifactURLResponse{
		Kind:      signed.Kind,
		URL:       signed.URL,
		Method:    signed.Method,
		ExpiresAt: formatTime(signed.ExpiresAt),
	})
}

func (h *AdminCertificateHandlers) requireCertificates(w http.ResponseWriter, r *http.Request) bool {
	if h.certificates != nil {
		return true
	}
	httpx.WriteError(r.Context(), w, httpx.NewError("certificate_service_unavailable", "certificate service is unavailable", http.StatusServiceUnavailable))
	return false
}
