package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/config"
)

const (
	defaultSignedURLTTL = 15 * time.Minute
	maxSignedURLTTL     = 7 * 24 * time.Hour
)

var (
	// ErrObjectRequired is returned when an operation is attempted without an object name.
	ErrObjectRequired = errors.New("storage: object name is required")
	// ErrEmptyBody is returned when an upload carries no content.
	ErrEmptyBody = errors.New("storage: body is empty")
	// ErrExpiryTooLong is returned when a signed URL would outlive the permitted maximum.
	ErrExpiryTooLong = errors.New("storage: expiry exceeds permitted maximum")
)

// Object describes a stored artifact.
type Object struct {
	Bucket      string
	Name        string
	URL         string
	ContentType string
	Size        int64
}

// SignedURL is a time-limited download link.
type SignedURL struct {
	URL       string
	Method    string
	ExpiresAt time.Time
}

// ArtifactStore persists rendered certificate artifacts.
type ArtifactStore interface {
	Put(ctx context.Context, object string, body []byte, contentType string) (Object, error)
	Delete(ctx context.Context, object string) error
	SignedURL(ctx context.Context, object string, ttl time.Duration) (SignedURL, error)
	Check(ctx context.Context) error
}

// New builds the artifact store selected in configuration. A nil store is returned when storage is disabled.
func New(ctx context.Context, cfg config.StorageConfig) (ArtifactStore, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", config.BackendNone:
		return nil, func() error { return nil }, nil
	case config.BackendGCS:
		store, err := NewGCSStore(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.BackendS3:
		store, err := NewS3Store(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("storage: unsupported backend %q", cfg.Backend)
	}
}

func normaliseObject(object string) (string, error) {
	object = strings.TrimLeft(strings.TrimSpace(object), "/")
	if object == "" {
		return "", ErrObjectRequired
	}
	return object, nil
}

func resolveTTL(ttl, fallback time.Duration) (time.Duration, error) {
	if ttl <= 0 {
		ttl = fallback
	}
	if ttl <= 0 {
		ttl = defaultSignedURLTTL
	}
	if ttl > maxSignedURLTTL {
		return 0, ErrExpiryTooLong
	}
	return ttl, nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
