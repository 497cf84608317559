package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/config"
)

// S3Store persists artifacts in an S3 bucket or an S3-compatible endpoint such as MinIO.
type S3Store struct {
	client   *s3.Client
	presign  *s3.PresignClient
	bucket   string
	region   string
	endpoint *url.URL
	timeout  time.Duration
	ttl      time.Duration
	now      func() time.Time
}

type s3Options struct {
	httpClient *http.Client
	now        func() time.Time
}

// S3Option customises the store.
type S3Option func(*s3Options)

// WithS3HTTPClient routes SDK requests through the supplied client.
func WithS3HTTPClient(client *http.Client) S3Option {
	return func(o *s3Options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithS3Clock overrides the clock used for expiry calculation.
func WithS3Clock(clock func() time.Time) S3Option {
	return func(o *s3Options) {
		if clock != nil {
			o.now = clock
		}
	}
}

// NewS3Store loads the AWS configuration and builds the client.
func NewS3Store(ctx context.Context, cfg config.StorageConfig, opts ...S3Option) (*S3Store, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("storage: bucket name is required")
	}
	options := s3Options{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	region := strings.TrimSpace(cfg.S3.Region)
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.S3.AccessKeyID != "" && cfg.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	var endpoint *url.URL
	if raw := strings.TrimSpace(cfg.S3.Endpoint); raw != "" {
		endpoint, err = url.Parse(raw)
		if err != nil || endpoint.Host == "" {
			return nil, fmt.Errorf("storage: invalid s3 endpoint %q", raw)
		}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.S3.UsePathStyle
		if endpoint != nil {
			o.BaseEndpoint = aws.String(endpoint.String())
		}
		if options.httpClient != nil {
			o.HTTPClient = options.httpClient
		}
	})

	return &S3Store{
		client:   client,
		presign:  s3.NewPresignClient(client),
		bucket:   bucket,
		region:   region,
		endpoint: endpoint,
		timeout:  cfg.Timeout,
		ttl:      cfg.SignedURLTTL,
		now:      options.now,
	}, nil
}

// Put uploads the body, replacing any previous object.
func (s *S3Store) Put(ctx context.Context, object string, body []byte, contentType string) (Object, error) {
	key, err := normaliseObject(object)
	if err != nil {
		return Object{}, err
	}
	if len(body) == 0 {
		return Object{}, ErrEmptyBody
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return Object{}, fmt.Errorf("storage: put %s: %w", key, err)
	}
	return Object{
		Bucket:      s.bucket,
		Name:        key,
		URL:         s.objectURL(key),
		ContentType: contentType,
		Size:        int64(len(body)),
	}, nil
}

// Delete removes the object. S3 treats missing keys as success.
func (s *S3Store) Delete(ctx context.Context, object string) error {
	key, err := normaliseObject(object)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}); err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// SignedURL presigns a GET request for the object.
func (s *S3Store) SignedURL(ctx context.Context, object string, ttl time.Duration) (SignedURL, error) {
	key, err := normaliseObject(object)
	if err != nil {
		return SignedURL{}, err
	}
	ttl, err = resolveTTL(ttl, s.ttl)
	if err != nil {
		return SignedURL{}, err
	}
	out, err := s.presign.PresignGetObject(ctx,
		&s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)},
		func(po *s3.PresignOptions) { po.Expires = ttl },
	)
	if err != nil {
		return SignedURL{}, fmt.Errorf("storage: presign %s: %w", key, err)
	}
	return SignedURL{URL: out.URL, Method: out.Method, ExpiresAt: s.now().Add(ttl)}, nil
}

// Check issues HeadBucket as a readiness probe.
func (s *S3Store) Check(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("storage: bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *S3Store) objectURL(key string) string {
	if s.endpoint != nil {
		u := *s.endpoint
		u.Path = strings.TrimRight(u.Path, "/") + "/" + s.bucket + "/" + key
		return u.String()
	}
	return (&url.URL{
		Scheme: "https",
		Host:   fmt.Sprintf("%s.s3.%s.amazonaws.com", s.bucket, s.region),
		Path:   "/" + key,
	}).String()
}
