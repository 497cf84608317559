package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/httpx"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/ratelimit"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/requestctx"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/services"
)

const (
	maxQRBodySize = 8 * 1024
	maxQRText     = 2048
)

// QRRateMetrics records rate limit denials for the QR endpoint.
type QRRateMetrics interface {
	RateLimitDenied(scope string)
}

// QRCodeHandlers renders QR codes for arbitrary text on the public surface.
type QRCodeHandlers struct {
	encoder     services.QREncoder
	limiter     ratelimit.Limiter
	metrics     QRRateMetrics
	clock       func() time.Time
	defaultSize int
}

// QRCodeOption customises the QR handlers.
type QRCodeOption func(*QRCodeHandlers)

// WithQRLimiter throttles the endpoint per client. Keys are namespaced with "qr".
func WithQRLimiter(limiter ratelimit.Limiter) QRCodeOption {
	return func(h *QRCodeHandlers) {
		if limiter != nil {
			h.limiter = ratelimit.Prefixed(limiter, "qr")
		}
	}
}

// WithQRMetrics records rate limit denials.
func WithQRMetrics(metrics QRRateMetrics) QRCodeOption {
	return func(h *QRCodeHandlers) {
		h.metrics = metrics
	}
}

// WithQRDefaultSize sets the size used when a request omits one.
func WithQRDefaultSize(size int) QRCodeOption {
	return func(h *QRCodeHandlers) {
		if size > 0 {
			h.defaultSize = services.ClampQRSize(size, services.DefaultPublicQRSize)
		}
	}
}

// WithQRClock overrides the clock.
func WithQRClock(clock func() time.Time) QRCodeOption {
	return func(h *QRCodeHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewQRCodeHandlers constructs the QR handlers.
func NewQRCodeHandlers(encoder services.QREncoder, opts ...QRCodeOption) *QRCodeHandlers {
	h := &QRCodeHandlers{
		encoder:     encoder,
		clock:       time.Now,
		defaultSize: services.DefaultPublicQRSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires POST /qr-codes onto the public router.
func (h *QRCodeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/qr-codes", h.generate)
}

type qrCodeRequest struct {
	Text string `json:"text"`
	Size int    `json:"size"`
}

type qrCodeResponse struct {
	QRCode string `json:"qrCode"`
	Text   string `json:"text"`
	Size   int    `json:"size"`
}

func (h *QRCodeHandlers) generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.encoder == nil {
		httpx.WriteError(ctx, w, httpx.NewError("qr_unavailable", "QR service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req qrCodeRequest
	if !decodeJSONBody(w, r, maxQRBodySize, &req) {
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "text is required", http.StatusBadRequest).WithFields(map[string]any{"field": "text"}))
		return
	}
	if len([]rune(text)) > maxQRText {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "text is too long", http.StatusBadRequest).WithFields(map[string]any{"field": "text"}))
		return
	}

	if h.limiter != nil {
		decision, err := h.limiter.TryAcquire(ctx, clientIdentifier(r))
		switch {
		case err != nil:
			requestctx.Logger(ctx).Named("qr").Warn("rate limiter unavailable; allowing request", zap.Error(err))
		case !decision.Allowed:
			if h.metrics != nil {
				h.metrics.RateLimitDenied("qr")
			}
			httpx.WriteError(ctx, w, rateLimitedError(decision.Limit, decision.ResetAt, h.clock()))
			return
		default:
			setRateLimitHeaders(w, decision.Limit, decision.Remaining, decision.ResetAt)
		}
	}

	size := services.ClampQRSize(req.Size, h.defaultSize)
	dataURI, err := h.encoder.Encode(ctx, text, size)
	if err != nil {
		requestctx.Logger(ctx).Named("qr").Error("qr encoding failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("qr_generation_failed", "Failed to generate QR code", http.StatusBadGateway).WithDetail(err.Error()))
		return
	}

	writeJSONResponse(w, http.StatusOK, qrCodeResponse{
		QRCode: dataURI,
		Text:   text,
		Size:   size,
	})
}
