package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/config"
)

const (
	DefaultPublicQRSize      = 200
	DefaultCertificateQRSize = 150
	MinQRSize                = 50
	MaxQRSize                = 1000

	defaultQREndpoint = "https://api.qrserver.com/v1/create-qr-code/"
	defaultQRTimeout  = 10 * time.Second
	maxQRResponseSize = 1 << 20

	pngDataURIPrefix = "data:image/png;base64,"

	// PlaceholderQRCode is a 1x1 transparent PNG used when every encoder fails.
	PlaceholderQRCode = pngDataURIPrefix + "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="
)

var errEmptyQRText = errors.New("services: qr text is required")

// ClampQRSize bounds a requested size, substituting fallback when the request is unset.
func ClampQRSize(size, fallback int) int {
	if size <= 0 {
		size = fallback
	}
	if size < MinQRSize {
		return MinQRSize
	}
	if size > MaxQRSize {
		return MaxQRSize
	}
	return size
}

// RemoteQREncoder renders codes through an HTTP image API.
type RemoteQREncoder struct {
	endpoint string
	client   *http.Client
}

// RemoteQROption customises the remote encoder.
type RemoteQROption func(*RemoteQREncoder)

// WithQRHTTPClient overrides the HTTP client.
func WithQRHTTPClient(client *http.Client) RemoteQROption {
	return func(e *RemoteQREncoder) {
		if client != nil {
			e.client = client
		}
	}
}

// NewRemoteQREncoder builds an encoder for endpoint. A zero timeout uses the default.
func NewRemoteQREncoder(endpoint string, timeout time.Duration, opts ...RemoteQROption) *RemoteQREncoder {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = defaultQREndpoint
	}
	if timeout <= 0 {
		timeout = defaultQRTimeout
	}
	encoder := &RemoteQREncoder{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(encoder)
		}
	}
	return encoder
}

func (e *RemoteQREncoder) Encode(ctx context.Context, text string, size int) (string, error) {
	if text == "" {
		return "", errEmptyQRText
	}
	size = ClampQRSize(size, DefaultPublicQRSize)

	query := url.Values{}
	dimension := strconv.Itoa(size)
	query.Set("size", dimension+"x"+dimension)
	query.Set("data", text)
	query.Set("format", "png")

	target := e.endpoint
	if strings.Contains(target, "?") {
		target += "&" + query.Encode()
	} else {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", &UpstreamError{Service: "qr", Message: "QR generation failed", Err: err}
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return "", &UpstreamError{Service: "qr", Message: "QR generation failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &UpstreamError{Service: "qr", Message: "QR generation failed", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxQRResponseSize))
	if err != nil {
		return "", &UpstreamError{Service: "qr", Message: "QR generation failed", Err: err}
	}
	if len(body) == 0 {
		return "", &UpstreamError{Service: "qr", Message: "QR generation failed", Err: errors.New("empty body")}
	}
	return pngDataURIPrefix + base64.StdEncoding.EncodeToString(body), nil
}

// LocalQREncoder renders codes in process.
type LocalQREncoder struct {
	level qrcode.RecoveryLevel
}

// NewLocalQREncoder builds an encoder at medium recovery level.
func NewLocalQREncoder() *LocalQREncoder {
	return &LocalQREncoder{level: qrcode.Medium}
}

func (e *LocalQREncoder) Encode(_ context.Context, text string, size int) (string, error) {
	if text == "" {
		return "", errEmptyQRText
	}
	png, err := qrcode.Encode(text, e.level, ClampQRSize(size, DefaultPublicQRSize))
	if err != nil {
		return "", &UpstreamError{Service: "qr", Message: "QR generation failed", Err: err}
	}
	return pngDataURIPrefix + base64.StdEncoding.EncodeToString(png), nil
}

// NamedEncoder labels an encoder for fallback logs and metrics.
type NamedEncoder struct {
	Name    string
	Encoder QREncoder
}

// ChainQREncoder tries encoders in order and returns the first success.
type ChainQREncoder struct {
	encoders []NamedEncoder
	logger   *zap.Logger
	metrics  GenerationMetrics
}

// NewChainQREncoder composes encoders. Nil entries are skipped.
func NewChainQREncoder(logger *zap.Logger, metrics GenerationMetrics, encoders ...NamedEncoder) *ChainQREncoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	filtered := make([]NamedEncoder, 0, len(encoders))
	for _, encoder := range encoders {
		if encoder.Encoder != nil {
			filtered = append(filtered, encoder)
		}
	}
	return &ChainQREncoder{encoders: filtered, logger: logger, metrics: metrics}
}

func (c *ChainQREncoder) Encode(ctx context.Context, text string, size int) (string, error) {
	if len(c.encoders) == 0 {
		return "", &UpstreamError{Service: "qr", Message: "QR generation failed", Err: errors.New("no encoders configured")}
	}
	var lastErr error
	for i, encoder := range c.encoders {
		if i > 0 {
			c.metrics.FallbackUsed("qr", encoder.Name)
		}
		dataURI, err := encoder.Encoder.Encode(ctx, text, size)
		if err == nil {
			return dataURI, nil
		}
		if errors.Is(err, errEmptyQRText) {
			return "", err
		}
		lastErr = err
		c.logger.Warn("qr encoder failed", zap.String("encoder", encoder.Name), zap.Error(err))
	}
	return "", lastErr
}

// NewQREncoder builds the chain for the configured provider. Remote mode always falls back to local.
func NewQREncoder(provider, endpoint string, timeout time.Duration, logger *zap.Logger, metrics GenerationMetrics) QREncoder {
	local := NamedEncoder{Name: "local", Encoder: NewLocalQREncoder()}
	if strings.EqualFold(strings.TrimSpace(provider), config.QRProviderLocal) {
		return NewChainQREncoder(logger, metrics, local)
	}
	remote := NamedEncoder{Name: "remote", Encoder: NewRemoteQREncoder(endpoint, timeout)}
	return NewChainQREncoder(logger, metrics, remote, local)
}
