package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/config"
)

// GCSStore persists artifacts in a Cloud Storage bucket.
type GCSStore struct {
	client  *gcs.Client
	bucket  string
	signer  Signer
	timeout time.Duration
	ttl     time.Duration
	now     func() time.Time
}

// GCSOption customises the store.
type GCSOption func(*GCSStore)

// WithGCSSigner signs URLs with an explicit service account key instead of the client's credentials.
func WithGCSSigner(signer Signer) GCSOption {
	return func(s *GCSStore) {
		if signer != nil {
			s.signer = signer
		}
	}
}

// WithGCSClock overrides the clock used for expiry calculation.
func WithGCSClock(clock func() time.Time) GCSOption {
	return func(s *GCSStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewGCSStore dials Cloud Storage using the configured credentials.
func NewGCSStore(ctx context.Context, cfg config.StorageConfig, opts ...GCSOption) (*GCSStore, error) {
	var clientOpts []option.ClientOption
	var signer Signer
	switch {
	case strings.TrimSpace(cfg.GCS.CredentialsJSON) != "":
		raw := []byte(cfg.GCS.CredentialsJSON)
		clientOpts = append(clientOpts, option.WithCredentialsJSON(raw))
		s, err := NewServiceAccountSignerFromJSON(raw)
		if err != nil {
			return nil, err
		}
		signer = s
	case strings.TrimSpace(cfg.GCS.CredentialsFile) != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.GCS.CredentialsFile))
		s, err := NewServiceAccountSignerFromFile(cfg.GCS.CredentialsFile)
		if err != nil {
			return nil, err
		}
		signer = s
	}
	client, err := gcs.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage: create gcs client: %w", err)
	}
	if signer != nil {
		opts = append([]GCSOption{WithGCSSigner(signer)}, opts...)
	}
	return NewGCSStoreWithClient(client, cfg, opts...)
}

// NewGCSStoreWithClient wraps an existing client.
func NewGCSStoreWithClient(client *gcs.Client, cfg config.StorageConfig, opts ...GCSOption) (*GCSStore, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("storage: bucket name is required")
	}
	store := &GCSStore{
		client:  client,
		bucket:  bucket,
		timeout: cfg.Timeout,
		ttl:     cfg.SignedURLTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// Put uploads the body, replacing any previous object.
func (s *GCSStore) Put(ctx context.Context, object string, body []byte, contentType string) (Object, error) {
	name, err := normaliseObject(object)
	if err != nil {
		return Object{}, err
	}
	if len(body) == 0 {
		return Object{}, ErrEmptyBody
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "private, max-age=0"
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return Object{}, fmt.Errorf("storage: write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return Object{}, fmt.Errorf("storage: finalise %s: %w", name, err)
	}
	return Object{
		Bucket:      s.bucket,
		Name:        name,
		URL:         s.publicURL(name),
		ContentType: contentType,
		Size:        int64(len(body)),
	}, nil
}

// Delete removes the object. Missing objects are not an error.
func (s *GCSStore) Delete(ctx context.Context, object string) error {
	name, err := normaliseObject(object)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Bucket(s.bucket).Object(name).Delete(ctx); err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("storage: delete %s: %w", name, err)
	}
	return nil
}

// SignedURL returns a V4 signed GET URL.
func (s *GCSStore) SignedURL(ctx context.Context, object string, ttl time.Duration) (SignedURL, error) {
	name, err := normaliseObject(object)
	if err != nil {
		return SignedURL{}, err
	}
	ttl, err = resolveTTL(ttl, s.ttl)
	if err != nil {
		return SignedURL{}, err
	}
	expires := s.now().Add(ttl)
	opts := &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: expires,
	}

	var signed string
	if s.signer != nil {
		opts.GoogleAccessID = s.signer.Email()
		opts.SignBytes = func(payload []byte) ([]byte, error) {
			return s.signer.SignBytes(ctx, payload)
		}
		signed, err = gcs.SignedURL(s.bucket, name, opts)
	} else {
		if s.client == nil {
			return SignedURL{}, errors.New("storage: gcs client is not initialised")
		}
		signed, err = s.client.Bucket(s.bucket).SignedURL(name, opts)
	}
	if err != nil {
		return SignedURL{}, fmt.Errorf("storage: sign download url: %w", err)
	}
	return SignedURL{URL: signed, Method: http.MethodGet, ExpiresAt: expires}, nil
}

// Check reads the bucket attributes as a readiness probe.
func (s *GCSStore) Check(ctx context.Context) error {
	if _, err := s.client.Bucket(s.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("storage: bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *GCSStore) publicURL(name string) string {
	return (&url.URL{Scheme: "https", Host: "storage.googleapis.com", Path: "/" + s.bucket + "/" + name}).String()
}
