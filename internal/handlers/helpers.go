package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/auth"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/httpx"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/ratelimit"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/requestctx"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/services"
)

const (
	defaultBodyLimit = 64 * 1024
	// passport photos travel inline as base64 so create and generate bodies get more room.
	certificateBodyLimit = 8 * 1024 * 1024

	generationFailedMessage = "Failed to generate certificate"
	internalErrorMessage    = "Internal Server Error"
	rateLimitedMessage      = "Too many requests"
)

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is required")
	errNotObject    = errors.New("request body must be a JSON object")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeJSONBody reads a bounded body and decodes it into dst. Failures are written to w and
// reported as false.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	ctx := r.Context()
	body, err := readLimitedBody(r, limit)
	if err != nil {
		writeBodyError(ctx, w, err)
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "" {
			writeBodyError(ctx, w, errNotObject)
			return false
		}
		writeBodyError(ctx, w, fmt.Errorf("invalid JSON payload: %w", err))
		return false
	}
	return true
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// clientIdentifier picks the rate limit key: the admin UID when authenticated, otherwise the
// caller address recorded by clientAddressMiddleware.
func clientIdentifier(r *http.Request) string {
	ctx := r.Context()
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil && strings.TrimSpace(identity.UID) != "" {
		return "uid:" + strings.TrimSpace(identity.UID)
	}
	if id := requestctx.ClientID(ctx); id != "" {
		return id
	}
	return remoteClient(r)
}

func remoteClient(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if addr == "" {
		return "anonymous"
	}
	return "ip:" + addr
}

// clientAddressMiddleware runs after chi's RealIP so RemoteAddr already reflects forwarding headers.
func clientAddressMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(requestctx.WithClientID(r.Context(), remoteClient(r))))
	})
}

func actorID(ctx context.Context) string {
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil {
		return strings.TrimSpace(identity.UID)
	}
	if svc, ok := auth.ServiceIdentityFromContext(ctx); ok && svc != nil {
		return strings.TrimSpace(svc.Subject)
	}
	return ""
}

func setRateLimitHeaders(w http.ResponseWriter, limit, remaining int, resetAt time.Time) {
	if limit <= 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

func rateLimitedError(limit int, resetAt, now time.Time) httpx.Error {
	retryAfter := ratelimit.Decision{ResetAt: resetAt}.RetryAfter(now)
	seconds := int(retryAfter / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return httpx.NewError("rate_limited", rateLimitedMessage, http.StatusTooManyRequests).
		WithDetail(fmt.Sprintf("limit of %d requests reached; try again after %s", limit, resetAt.UTC().Format(time.RFC3339))).
		WithHeader("Retry-After", strconv.Itoa(seconds)).
		WithHeader("X-RateLimit-Limit", strconv.Itoa(limit)).
		WithHeader("X-RateLimit-Remaining", "0").
		WithHeader("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

// writeServiceError maps service errors onto the JSON envelope. failureMessage is used for
// unexpected 5xx responses.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error, failureMessage string, now time.Time) {
	if err == nil {
		return
	}
	if failureMessage == "" {
		failureMessage = internalErrorMessage
	}

	var (
		validationErr *services.ValidationError
		rateErr       *services.RateLimitError
		templateErr   *services.TemplateLoadError
		renderErr     *services.RenderError
		upstreamErr   *services.UpstreamError
		storageErr    *services.StorageError
	)

	switch {
	case errors.As(err, &validationErr):
		apiErr := httpx.NewError("invalid_request", validationErr.Message, http.StatusBadRequest)
		if validationErr.Field != "" {
			apiErr = apiErr.WithFields(map[string]any{"field": validationErr.Field})
		}
		httpx.WriteError(ctx, w, apiErr)
	case errors.As(err, &rateErr):
		httpx.WriteError(ctx, w, rateLimitedError(rateErr.Limit, rateErr.ResetAt, now))
	case errors.Is(err, services.ErrNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("certificate_not_found", "certificate not found", http.StatusNotFound).WithDetail(err.Error()))
	case errors.Is(err, services.ErrConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", "certificate could not be saved due to a conflict", http.StatusConflict).WithDetail(err.Error()))
	case errors.Is(err, services.ErrStorageDisabled):
		httpx.WriteError(ctx, w, httpx.NewError("storage_disabled", "artifact storage is not configured", http.StatusServiceUnavailable))
	case errors.Is(err, services.ErrUnavailable):
		logError(ctx, "dependency unavailable", err)
		httpx.WriteError(ctx, w, httpx.NewError("dependency_unavailable", failureMessage, http.StatusInternalServerError).WithDetail(err.Error()))
	case errors.As(err, &templateErr):
		logError(ctx, "template unavailable", err)
		httpx.WriteError(ctx, w, httpx.NewError("template_unavailable", failureMessage, http.StatusInternalServerError).WithDetail(err.Error()))
	case errors.As(err, &renderErr):
		logError(ctx, "render failed", err)
		httpx.WriteError(ctx, w, httpx.NewError("render_failed", failureMessage, http.StatusInternalServerError).WithDetail(err.Error()))
	case errors.As(err, &upstreamErr):
		logError(ctx, "upstream failed", err)
		httpx.WriteError(ctx, w, httpx.NewError("upstream_failed", failureMessage, http.StatusBadGateway).WithDetail(err.Error()))
	case errors.As(err, &storageErr):
		logError(ctx, "storage failed", err)
		httpx.WriteError(ctx, w, httpx.NewError("storage_failed", failureMessage, http.StatusBadGateway).WithDetail(err.Error()))
	default:
		logError(ctx, "request failed", err)
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", failureMessage, http.StatusInternalServerError).WithDetail(err.Error()))
	}
}

func logError(ctx context.Context, msg string, err error) {
	requestctx.Logger(ctx).Named("handlers").Error(msg, zap.Error(err))
}
