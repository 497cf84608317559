package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/domain"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/httpx"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/services"
)

const maxVerifyBodySize = 4 * 1024

// VerificationHandlers exposes the public certificate lookup.
type VerificationHandlers struct {
	verification services.VerificationService
	clock        func() time.Time
}

// NewVerificationHandlers constructs the public verification handlers.
func NewVerificationHandlers(verification services.VerificationService) *VerificationHandlers {
	return &VerificationHandlers{
		verification: verification,
		clock:        time.Now,
	}
}

// Routes wires the verification endpoints onto the public router.
func (h *VerificationHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/verify", h.verifyByBody)
	r.Get("/verify", h.verifyByQuery)
}

type verifyRequest struct {
	Query string `json:"query"`
}

type verifyResponse struct {
	Found       bool                           `json:"found"`
	Certificate *domain.VerificationProjection `json:"certificate,omitempty"`
}

func (h *VerificationHandlers) verifyByBody(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeJSONBody(w, r, maxVerifyBodySize, &req) {
		return
	}
	h.respond(w, r, req.Query)
}

func (h *VerificationHandlers) verifyByQuery(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("cert_id")
	if query == "" {
		query = r.URL.Query().Get("query")
	}
	h.respond(w, r, query)
}

func (h *VerificationHandlers) respond(w http.ResponseWriter, r *http.Request, query string) {
	ctx := r.Context()
	if h.verification == nil {
		httpx.WriteError(ctx, w, httpx.NewError("verification_unavailable", "verification service is unavailable", http.StatusServiceUnavailable))
		return
	}

	result, err := h.verification.Verify(ctx, query)
	if err != nil {
		writeServiceError(ctx, w, err, internalErrorMessage, h.clock())
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSONResponse(w, http.StatusOK, verifyResponse{
		Found:       result.Found,
		Certificate: result.Certificate,
	})
}
