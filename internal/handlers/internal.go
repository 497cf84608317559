package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/httpx"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/requestctx"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/services"
)

// AssetReloader refreshes the template and logo snapshot.
type AssetReloader interface {
	Reload(ctx context.Context) (services.Assets, error)
}

// InternalHandlers serves maintenance endpoints called by schedulers and other services.
// Authentication is applied by the router through the internal middleware chain.
type InternalHandlers struct {
	assets       AssetReloader
	certificates services.CertificateService
	clock        func() time.Time
}

// NewInternalHandlers constructs the internal maintenance handlers.
func NewInternalHandlers(assets AssetReloader, certificates services.CertificateService) *InternalHandlers {
	return &InternalHandlers{
		assets:       assets,
		certificates: certificates,
		clock:        time.Now,
	}
}

// Routes wires the /internal endpoints.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/assets:reload", h.reloadAssets)
	r.Post("/certificates/{id}:persist", h.persistCertificate)
}

type assetSnapshotResponse struct {
	TemplateSource string `json:"templateSource"`
	LogoSource     string `json:"logoSource"`
	LoadedAt       string `json:"loadedAt"`
}

type persistResponse struct {
	CertificateNumber string `json:"certificateNumber"`
	HTMLURL           string `json:"htmlUrl,omitempty"`
	PDFURL            string `json:"pdfUrl,omitempty"`
	Persisted         bool   `json:"persisted"`
}

func (h *InternalHandlers) reloadAssets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.assets == nil {
		httpx.WriteError(ctx, w, httpx.NewError("assets_unavailable", "asset loader is unavailable", http.StatusServiceUnavailable))
		return
	}
	snapshot, err := h.assets.Reload(ctx)
	if err != nil {
		writeServiceError(ctx, w, err, "Failed to reload assets", h.clock())
		return
	}
	requestctx.Logger(ctx).Named("internal").Info("assets reloaded",
		zap.String("template_source", snapshot.TemplateSource),
		zap.String("logo_source", snapshot.LogoSource),
	)
	writeJSONResponse(w, http.StatusOK, assetSnapshotResponse{
		TemplateSource: snapshot.TemplateSource,
		LogoSource:     snapshot.LogoSource,
		LoadedAt:       formatTime(snapshot.LoadedAt),
	})
}

func (h *InternalHandlers) persistCertificate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.certificates == nil {
		httpx.WriteError(ctx, w, httpx.NewError("certificate_service_unavailable", "certificate service is unavailable", http.StatusServiceUnavailable))
		return
	}
	result, err := h.certificates.GenerateForRecord(ctx, services.GenerateForRecordCommand{
		ID:            chi.URLParam(r, "id"),
		ActorID:       actorID(ctx),
		ForcePersist:  true,
		SkipRateLimit: true,
	})
	if err != nil {
		writeServiceError(ctx, w, err, generationFailedMessage, h.clock())
		return
	}
	writeJSONResponse(w, http.StatusOK, persistResponse{
		CertificateNumber: result.CertificateNumber,
		HTMLURL:           result.HTMLURL,
		PDFURL:            result.PDFURL,
		Persisted:         result.HTMLURL != "",
	})
}
