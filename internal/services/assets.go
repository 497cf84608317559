package services

import (
	"context"
	_ "embed"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	defaultAssetFetchTimeout = 10 * time.Second
	maxTemplateBytes         = 2 << 20
	maxLogoBytes             = 1 << 20

	AssetSourceEmbedded = "embedded"
)

var (
	//go:embed assets/certificate-template.html
	embeddedTemplate string
	//go:embed assets/logo.png
	embeddedLogo []byte

	errAssetTooLarge = errors.New("services: asset exceeds size limit")
	errAssetEmpty    = errors.New("services: asset body is empty")
)

// Assets is an immutable snapshot of the certificate template and logo.
type Assets struct {
	Template       string
	LogoBase64     string
	TemplateSource string
	LogoSource     string
	LoadedAt       time.Time
}

// AssetLoaderConfig lists the sources tried in order before the embedded defaults.
type AssetLoaderConfig struct {
	TemplateURLs []string
	LogoURLs     []string
	Timeout      time.Duration
	// DisableEmbedded removes the built-in template and logo from the chain.
	DisableEmbedded bool
}

// AssetLoaderDeps bundles collaborators for the loader.
type AssetLoaderDeps struct {
	HTTPClient *http.Client
	Logger     *zap.Logger
	Metrics    GenerationMetrics
	Clock      func() time.Time
}

// AssetLoader resolves and caches the template and logo.
type AssetLoader struct {
	cfg      AssetLoaderConfig
	client   *http.Client
	logger   *zap.Logger
	metrics  GenerationMetrics
	clock    func() time.Time
	snapshot atomic.Pointer[Assets]
	loadMu   sync.Mutex
}

// NewAssetLoader constructs a loader. Load must be called to populate the snapshot, otherwise the
// first Assets call loads lazily.
func NewAssetLoader(cfg AssetLoaderConfig, deps AssetLoaderDeps) *AssetLoader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultAssetFetchTimeout
	}
	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &AssetLoader{
		cfg:     cfg,
		client:  client,
		logger:  logger,
		metrics: metrics,
		clock:   func() time.Time { return clock().UTC() },
	}
}

// Load fetches both assets and swaps in a fresh snapshot.
func (l *AssetLoader) Load(ctx context.Context) (Assets, error) {
	l.loadMu.Lock()
	defer l.loadMu.Unlock()
	return l.load(ctx)
}

// Reload is Load under another name for the internal refresh route.
func (l *AssetLoader) Reload(ctx context.Context) (Assets, error) {
	return l.Load(ctx)
}

// Assets returns the current snapshot, loading it on first use.
func (l *AssetLoader) Assets(ctx context.Context) (Assets, error) {
	if current := l.snapshot.Load(); current != nil {
		return *current, nil
	}
	l.loadMu.Lock()
	defer l.loadMu.Unlock()
	if current := l.snapshot.Load(); current != nil {
		return *current, nil
	}
	return l.load(ctx)
}

func (l *AssetLoader) load(ctx context.Context) (Assets, error) {
	template, templateSource, err := l.resolveTemplate(ctx)
	if err != nil {
		return Assets{}, err
	}
	logo, logoSource := l.resolveLogo(ctx)

	assets := &Assets{
		Template:       template,
		LogoBase64:     logo,
		TemplateSource: templateSource,
		LogoSource:     logoSource,
		LoadedAt:       l.clock(),
	}
	l.snapshot.Store(assets)
	l.logger.Info("certificate assets loaded",
		zap.String("template_source", templateSource),
		zap.String("logo_source", logoSource),
	)
	return *assets, nil
}

func (l *AssetLoader) resolveTemplate(ctx context.Context) (string, string, error) {
	var lastErr error
	for i, source := range nonEmpty(l.cfg.TemplateURLs) {
		if i > 0 {
			l.metrics.FallbackUsed("template", "fallback_url")
		}
		body, err := l.fetch(ctx, source, maxTemplateBytes)
		if err == nil && strings.TrimSpace(string(body)) != "" {
			return string(body), source, nil
		}
		if err == nil {
			err = errAssetEmpty
		}
		lastErr = err
		l.logger.Warn("template source failed", zap.String("source", source), zap.Error(err))
	}
	if !l.cfg.DisableEmbedded && strings.TrimSpace(embeddedTemplate) != "" {
		if len(l.cfg.TemplateURLs) > 0 {
			l.metrics.FallbackUsed("template", AssetSourceEmbedded)
		}
		return embeddedTemplate, AssetSourceEmbedded, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no template source configured")
	}
	return "", "", &TemplateLoadError{Err: lastErr}
}

func (l *AssetLoader) resolveLogo(ctx context.Context) (string, string) {
	for i, source := range nonEmpty(l.cfg.LogoURLs) {
		if i > 0 {
			l.metrics.FallbackUsed("logo", "fallback_url")
		}
		body, err := l.fetch(ctx, source, maxLogoBytes)
		if err == nil && len(body) > 0 {
			return base64.StdEncoding.EncodeToString(body), source
		}
		if err == nil {
			err = errAssetEmpty
		}
		l.logger.Warn("logo source failed", zap.String("source", source), zap.Error(err))
	}
	if l.cfg.DisableEmbedded {
		return "", ""
	}
	if len(l.cfg.LogoURLs) > 0 {
		l.metrics.FallbackUsed("logo", AssetSourceEmbedded)
	}
	return base64.StdEncoding.EncodeToString(embeddedLogo), AssetSourceEmbedded
}

func (l *AssetLoader) fetch(ctx context.Context, source string, limit int64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, errAssetTooLarge
	}
	if len(body) == 0 {
		return nil, errAssetEmpty
	}
	return body, nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}
