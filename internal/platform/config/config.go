package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 60 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultRequestTimeout       = 60 * time.Second
	defaultShutdownTimeout      = 10 * time.Second
	defaultPublicOrigin         = "http://localhost:8080"
	defaultSecurityEnvironment  = "local"
	defaultOIDCJWKSURL          = "https://www.googleapis.com/oauth2/v3/certs"
	defaultSecurityIssuer       = "https://accounts.google.com"
	defaultSecurityIAPIssuer    = "https://cloud.google.com/iap"
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
	defaultQREndpoint           = "https://api.qrserver.com/v1/create-qr-code/"
	defaultQRTimeout            = 10 * time.Second
	defaultQRPublicSize         = 200
	defaultAssetTimeout         = 10 * time.Second
	defaultTemplateFallbackURL  = "https://raw.githubusercontent.com/Josebert3001/ibeno-origin-scribe/main/public/certificate-template.html"
	defaultPDFTimeout           = 30 * time.Second
	defaultStorageTimeout       = 15 * time.Second
	defaultSignedURLTTL         = 15 * time.Minute
	defaultGenerationLimit      = 10
	defaultGenerationWindow     = 15 * time.Minute
	defaultQRLimit              = 60
	defaultQRWindow             = 15 * time.Minute
	defaultRateLimitPrefix      = "origin:ratelimit"
	defaultRateLimitCleanup     = time.Minute
	defaultPostgresMaxConns     = 10
	defaultEventsTopic          = "certificate-events"
)

// Supported backend identifiers.
const (
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendMemory    = "memory"
	BackendRedis     = "redis"
	BackendGCS       = "gcs"
	BackendS3        = "s3"
	BackendNone      = "none"

	QRProviderRemote = "remote"
	QRProviderLocal  = "local"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server       ServerConfig
	Firebase     FirebaseConfig
	Persistence  PersistenceConfig
	Firestore    FirestoreConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Storage      StorageConfig
	Assets       AssetsConfig
	QR           QRConfig
	PDF          PDFConfig
	RateLimits   RateLimitConfig
	Certificates CertificateConfig
	Security     SecurityConfig
	Idempotency  IdempotencyConfig
	Events       EventsConfig
	CORS         CORSConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// PersistenceConfig selects the certificate repository backend.
type PersistenceConfig struct {
	Backend string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// PostgresConfig configures the alternate relational backend.
type PostgresConfig struct {
	DSN            string
	MaxConns       int
	MigrateOnStart bool
}

// RedisConfig configures the shared counter store used by rate limiting and idempotency.
type RedisConfig struct {
	URL string
}

// StorageConfig selects where rendered artifacts are persisted.
type StorageConfig struct {
	Backend      string
	Bucket       string
	Timeout      time.Duration
	SignedURLTTL time.Duration
	GCS          GCSConfig
	S3           S3Config
}

// GCSConfig holds signing credentials for Cloud Storage.
type GCSConfig struct {
	CredentialsJSON string
	CredentialsFile string
}

// S3Config targets AWS S3 or an S3-compatible endpoint such as MinIO.
type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// AssetsConfig lists the template and logo sources tried in order before the embedded defaults.
type AssetsConfig struct {
	TemplateURL         string
	TemplateFallbackURL string
	LogoURL             string
	LogoFallbackURL     string
	FetchTimeout        time.Duration
}

// QRConfig selects the QR encoder chain.
type QRConfig struct {
	Provider    string
	Endpoint    string
	Timeout     time.Duration
	DefaultSize int
}

// PDFConfig toggles chromedp rendering of certificate PDFs.
type PDFConfig struct {
	Enabled    bool
	ChromePath string
	Timeout    time.Duration
}

// RateLimitConfig controls request throttling.
type RateLimitConfig struct {
	Backend          string
	AllowMemory      bool
	KeyPrefix        string
	GenerationLimit  int
	GenerationWindow time.Duration
	QRLimit          int
	QRWindow         time.Duration
	CleanupInterval  time.Duration
}

// CertificateConfig holds issuance rules.
type CertificateConfig struct {
	PublicOrigin       string
	EnforceIssueWindow bool
	PersistArtifacts   bool
}

// SecurityConfig groups server-to-server authentication settings.
type SecurityConfig struct {
	Environment string
	OIDC        OIDCConfig
}

// OIDCConfig controls Google-signed token verification.
type OIDCConfig struct {
	JWKSURL   string
	Audience  string
	Audiences map[string]string
	Issuers   []string
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Backend          string
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// EventsConfig configures Pub/Sub publication of certificate events.
type EventsConfig struct {
	ProjectID string
	Topic     string
}

// CORSConfig lists the origins allowed to call the API from browsers.
type CORSConfig struct {
	AllowedOrigins []string
}

// AllowsMemoryRateLimit reports whether the in-process limiter is acceptable.
func (c Config) AllowsMemoryRateLimit() bool {
	if c.RateLimits.AllowMemory {
		return true
	}
	switch c.Security.Environment {
	case "local", "dev", "test":
		return true
	}
	return false
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError indicates that one or more required secrets resolved to empty values.
type MissingSecretsError struct {
	names []string
}

// Error implements the error interface. Names are hashed so secrets never reach logs.
func (e *MissingSecretsError) Error() string {
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(e.RedactedNames(), ", "))
}

// Names returns the config field names of the missing secrets.
func (e *MissingSecretsError) Names() []string {
	out := append([]string(nil), e.names...)
	sort.Strings(out)
	return out
}

// RedactedNames returns hashed identifiers safe for logging.
func (e *MissingSecretsError) RedactedNames() []string {
	out := make([]string, 0, len(e.names))
	for _, name := range e.names {
		out = append(out, redactSecretName(name))
	}
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map that takes precedence over the OS environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the OS environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for sm:// and secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// WithRequiredSecrets marks config fields (e.g. "Postgres.DSN") that must resolve to a value.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) {
		o.requiredSecrets = append(o.requiredSecrets, names...)
	}
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

// EnvironmentValues returns the effective environment after applying the Load precedence
// (dotenv < OS env < explicit map). main uses it to build the secret fetcher before Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := newLoaderOptions(opts)

	values, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = make(map[string]string)
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if ok && strings.TrimSpace(key) != "" {
				values[key] = value
			}
		}
	}
	for key, value := range options.envMap {
		values[key] = value
	}
	return values, nil
}

// Load assembles the application configuration from defaults, the .env file,
// environment variables, and Secret Manager references.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)

	env, err := EnvironmentValues(opts...)
	if err != nil {
		return Config{}, err
	}
	lookup := func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:     durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			RequestTimeout:  durationWithDefault(lookup, "API_SERVER_REQUEST_TIMEOUT", defaultRequestTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "API_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "API_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Persistence: PersistenceConfig{
			Backend: strings.ToLower(stringWithDefault(lookup, "API_PERSISTENCE_BACKEND", BackendFirestore)),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Postgres: PostgresConfig{
			DSN:            stringWithDefault(lookup, "API_POSTGRES_DSN", ""),
			MaxConns:       intWithDefault(lookup, "API_POSTGRES_MAX_CONNS", defaultPostgresMaxConns),
			MigrateOnStart: boolWithDefault(lookup, "API_POSTGRES_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL: stringWithDefault(lookup, "API_REDIS_URL", ""),
		},
		Storage: StorageConfig{
			Backend:      strings.ToLower(stringWithDefault(lookup, "API_STORAGE_BACKEND", BackendNone)),
			Bucket:       stringWithDefault(lookup, "API_STORAGE_BUCKET", ""),
			Timeout:      durationWithDefault(lookup, "API_STORAGE_TIMEOUT", defaultStorageTimeout),
			SignedURLTTL: durationWithDefault(lookup, "API_STORAGE_SIGNED_URL_TTL", defaultSignedURLTTL),
			GCS: GCSConfig{
				CredentialsJSON: stringWithDefault(lookup, "API_STORAGE_GCS_CREDENTIALS_JSON", ""),
				CredentialsFile: stringWithDefault(lookup, "API_STORAGE_GCS_CREDENTIALS_FILE", ""),
			},
			S3: S3Config{
				Region:          stringWithDefault(lookup, "API_STORAGE_S3_REGION", ""),
				Endpoint:        stringWithDefault(lookup, "API_STORAGE_S3_ENDPOINT", ""),
				AccessKeyID:     stringWithDefault(lookup, "API_STORAGE_S3_ACCESS_KEY_ID", ""),
				SecretAccessKey: stringWithDefault(lookup, "API_STORAGE_S3_SECRET_ACCESS_KEY", ""),
				UsePathStyle:    boolWithDefault(lookup, "API_STORAGE_S3_PATH_STYLE", false),
			},
		},
		Assets: AssetsConfig{
			TemplateURL:         stringWithDefault(lookup, "API_ASSETS_TEMPLATE_URL", ""),
			TemplateFallbackURL: stringWithDefault(lookup, "API_ASSETS_TEMPLATE_FALLBACK_URL", defaultTemplateFallbackURL),
			LogoURL:             stringWithDefault(lookup, "API_ASSETS_LOGO_URL", ""),
			LogoFallbackURL:     stringWithDefault(lookup, "API_ASSETS_LOGO_FALLBACK_URL", ""),
			FetchTimeout:        durationWithDefault(lookup, "API_ASSETS_FETCH_TIMEOUT", defaultAssetTimeout),
		},
		QR: QRConfig{
			Provider:    strings.ToLower(stringWithDefault(lookup, "API_QR_PROVIDER", QRProviderRemote)),
			Endpoint:    stringWithDefault(lookup, "API_QR_ENDPOINT", defaultQREndpoint),
			Timeout:     durationWithDefault(lookup, "API_QR_TIMEOUT", defaultQRTimeout),
			DefaultSize: intWithDefault(lookup, "API_QR_DEFAULT_SIZE", defaultQRPublicSize),
		},
		PDF: PDFConfig{
			Enabled:    boolWithDefault(lookup, "API_PDF_ENABLED", false),
			ChromePath: stringWithDefault(lookup, "API_PDF_CHROME_PATH", ""),
			Timeout:    durationWithDefault(lookup, "API_PDF_TIMEOUT", defaultPDFTimeout),
		},
		RateLimits: RateLimitConfig{
			Backend:          strings.ToLower(stringWithDefault(lookup, "API_RATELIMIT_BACKEND", "")),
			AllowMemory:      boolWithDefault(lookup, "API_RATELIMIT_ALLOW_MEMORY", false),
			KeyPrefix:        stringWithDefault(lookup, "API_RATELIMIT_KEY_PREFIX", defaultRateLimitPrefix),
			GenerationLimit:  intWithDefault(lookup, "API_RATELIMIT_GENERATION_LIMIT", defaultGenerationLimit),
			GenerationWindow: durationWithDefault(lookup, "API_RATELIMIT_GENERATION_WINDOW", defaultGenerationWindow),
			QRLimit:          intWithDefault(lookup, "API_RATELIMIT_QR_LIMIT", defaultQRLimit),
			QRWindow:         durationWithDefault(lookup, "API_RATELIMIT_QR_WINDOW", defaultQRWindow),
			CleanupInterval:  durationWithDefault(lookup, "API_RATELIMIT_CLEANUP_INTERVAL", defaultRateLimitCleanup),
		},
		Certificates: CertificateConfig{
			PublicOrigin:       strings.TrimRight(stringWithDefault(lookup, "API_CERTIFICATES_PUBLIC_ORIGIN", defaultPublicOrigin), "/"),
			EnforceIssueWindow: boolWithDefault(lookup, "API_CERTIFICATES_ENFORCE_ISSUE_WINDOW", true),
			PersistArtifacts:   boolWithDefault(lookup, "API_ARTIFACTS_PERSIST", true),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(stringWithDefault(lookup, "API_SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
			OIDC: OIDCConfig{
				JWKSURL:   stringWithDefault(lookup, "API_SECURITY_OIDC_JWKS_URL", defaultOIDCJWKSURL),
				Audience:  stringWithDefault(lookup, "API_SECURITY_OIDC_AUDIENCE", ""),
				Audiences: mapWithDefault(lookup, "API_SECURITY_OIDC_AUDIENCES"),
				Issuers:   csvWithDefault(lookup, "API_SECURITY_OIDC_ISSUERS"),
			},
		},
		Idempotency: IdempotencyConfig{
			Backend:          strings.ToLower(stringWithDefault(lookup, "API_IDEMPOTENCY_BACKEND", BackendMemory)),
			Header:           stringWithDefault(lookup, "API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              durationWithDefault(lookup, "API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  durationWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: intWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
		},
		Events: EventsConfig{
			ProjectID: stringWithDefault(lookup, "API_EVENTS_PROJECT_ID", ""),
			Topic:     stringWithDefault(lookup, "API_EVENTS_TOPIC", defaultEventsTopic),
		},
		CORS: CORSConfig{
			AllowedOrigins: csvWithDefault(lookup, "API_CORS_ALLOWED_ORIGINS"),
		},
	}

	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.Events.ProjectID == "" {
		cfg.Events.ProjectID = cfg.Firebase.ProjectID
	}
	if len(cfg.Security.OIDC.Issuers) == 0 {
		cfg.Security.OIDC.Issuers = []string{defaultSecurityIssuer, defaultSecurityIAPIssuer}
	}
	if cfg.Security.OIDC.Audience == "" {
		cfg.Security.OIDC.Audience = cfg.Security.OIDC.Audiences[cfg.Security.Environment]
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"*"}
	}
	if cfg.RateLimits.Backend == "" {
		// redis whenever one is configured, memory otherwise; validation rejects memory outside dev
		cfg.RateLimits.Backend = BackendMemory
		if cfg.Redis.URL != "" {
			cfg.RateLimits.Backend = BackendRedis
		}
	}

	resolver := options.secret
	if resolver == nil {
		resolver = SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
			return "", errSecretResolverNotConfigured
		})
	}
	resolved := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"Postgres.DSN", &cfg.Postgres.DSN},
		{"Redis.URL", &cfg.Redis.URL},
		{"Storage.GCS.CredentialsJSON", &cfg.Storage.GCS.CredentialsJSON},
		{"Storage.S3.AccessKeyID", &cfg.Storage.S3.AccessKeyID},
		{"Storage.S3.SecretAccessKey", &cfg.Storage.S3.SecretAccessKey},
	}
	for _, target := range secretFields {
		value, err := resolveSecret(ctx, *target.field, resolver)
		if err != nil {
			return Config{}, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	if missing := findMissingSecrets(options.requiredSecrets, resolved); missing != nil {
		return Config{}, missing
	}

	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if !isSecretReference(value) {
		return value, nil
	}
	ref := normalizeSecretReference(value)
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string
	add := func(field string) { missing = append(missing, field) }

	if cfg.Server.Port == "" {
		add("Server.Port")
	}
	if cfg.Server.RequestTimeout <= 0 {
		add("Server.RequestTimeout")
	}
	if cfg.Firebase.ProjectID == "" {
		add("Firebase.ProjectID")
	}

	switch cfg.Persistence.Backend {
	case BackendFirestore:
		if cfg.Firestore.ProjectID == "" {
			add("Firestore.ProjectID")
		}
	case BackendPostgres:
		if cfg.Postgres.DSN == "" {
			add("Postgres.DSN")
		}
	case BackendMemory:
	default:
		add("Persistence.Backend")
	}

	switch cfg.Storage.Backend {
	case BackendNone:
	case BackendGCS:
		if cfg.Storage.Bucket == "" {
			add("Storage.Bucket")
		}
	case BackendS3:
		if cfg.Storage.Bucket == "" {
			add("Storage.Bucket")
		}
		if cfg.Storage.S3.Region == "" {
			add("Storage.S3.Region")
		}
	default:
		add("Storage.Backend")
	}

	switch cfg.RateLimits.Backend {
	case BackendMemory:
		if !cfg.AllowsMemoryRateLimit() {
			add("RateLimits.Backend")
		}
	case BackendRedis:
		if cfg.Redis.URL == "" {
			add("Redis.URL")
		}
	default:
		add("RateLimits.Backend")
	}
	if cfg.RateLimits.GenerationLimit <= 0 || cfg.RateLimits.GenerationWindow <= 0 {
		add("RateLimits.Generation")
	}
	if cfg.RateLimits.QRLimit <= 0 || cfg.RateLimits.QRWindow <= 0 {
		add("RateLimits.QR")
	}

	switch cfg.QR.Provider {
	case QRProviderRemote:
		if _, err := url.ParseRequestURI(cfg.QR.Endpoint); err != nil {
			add("QR.Endpoint")
		}
	case QRProviderLocal:
	default:
		add("QR.Provider")
	}

	if origin, err := url.Parse(cfg.Certificates.PublicOrigin); err != nil || origin.Scheme == "" || origin.Host == "" {
		add("Certificates.PublicOrigin")
	}

	switch cfg.Idempotency.Backend {
	case BackendMemory:
	case BackendRedis:
		if cfg.Redis.URL == "" {
			add("Redis.URL")
		}
	default:
		add("Idempotency.Backend")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		add("Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		add("Idempotency.TTL")
	}
	if cfg.Idempotency.CleanupInterval <= 0 {
		add("Idempotency.CleanupInterval")
	}
	if cfg.Idempotency.CleanupBatchSize <= 0 {
		add("Idempotency.CleanupBatchSize")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: dedupe(missing)}
	}
	return nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func findMissingSecrets(required []string, resolved map[string]string) *MissingSecretsError {
	var names []string
	seen := make(map[string]struct{})
	for _, name := range required {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if resolved[name] == "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return &MissingSecretsError{names: names}
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if rest, ok := strings.CutPrefix(trimmed, "sm://"); ok {
		return "secret://" + rest
	}
	return trimmed
}

func redactSecretName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func mapWithDefault(lookup func(string) (string, bool), key string) map[string]string {
	values := make(map[string]string)
	raw, ok := lookup(key)
	if !ok {
		return values
	}
	for _, entry := range strings.Split(raw, ",") {
		name, value, found := strings.Cut(strings.TrimSpace(entry), "=")
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		if !found || name == "" || value == "" {
			continue
		}
		values[name] = value
	}
	return values
}
