package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/handlers"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/auth"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/config"
	pfirestore "github.com/Josebert2001/ibeno-origin-scribe/internal/platform/firestore"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/idempotency"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/jobs"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/observability"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/pdf"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/postgres"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/ratelimit"
	platformredis "github.com/Josebert2001/ibeno-origin-scribe/internal/platform/redis"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/secrets"
	platformstorage "github.com/Josebert2001/ibeno-origin-scribe/internal/platform/storage"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/repositories"
	firestoreRepo "github.com/Josebert2001/ibeno-origin-scribe/internal/repositories/firestore"
	memoryRepo "github.com/Josebert2001/ibeno-origin-scribe/internal/repositories/memory"
	postgresRepo "github.com/Josebert2001/ibeno-origin-scribe/internal/repositories/postgres"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/services"
)

const idempotencyKeyPrefix = "origin:idempotency"

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)
	metrics := observability.NewMetrics()

	store, err := openPersistence(ctx, logger.Named("persistence"), cfg)
	if err != nil {
		logger.Fatal("failed to initialise persistence", zap.String("backend", cfg.Persistence.Backend), zap.Error(err))
	}
	defer store.close()

	var redisClient *goredis.Client
	if strings.TrimSpace(cfg.Redis.URL) != "" {
		redisClient, err = platformredis.Open(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal("failed to initialise redis client", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}()
	}

	limits, err := buildLimiters(cfg, redisClient)
	if err != nil {
		logger.Fatal("failed to initialise rate limiters", zap.Error(err))
	}

	artifactStore, closeArtifacts, err := platformstorage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("failed to initialise artifact storage", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}
	defer func() {
		if err := closeArtifacts(); err != nil {
			logger.Warn("artifact storage close error", zap.Error(err))
		}
	}()
	if artifactStore == nil {
		logger.Info("artifact storage disabled; certificates are returned inline only")
	}

	pdfConverter := pdf.NewChromeConverter(cfg.PDF)
	qrEncoder := services.NewQREncoder(cfg.QR.Provider, cfg.QR.Endpoint, cfg.QR.Timeout, logger.Named("qr"), metrics)

	assetLoader := services.NewAssetLoader(services.AssetLoaderConfig{
		TemplateURLs: uniqueStrings([]string{cfg.Assets.TemplateURL, cfg.Assets.TemplateFallbackURL}),
		LogoURLs:     uniqueStrings([]string{cfg.Assets.LogoURL, cfg.Assets.LogoFallbackURL}),
		Timeout:      cfg.Assets.FetchTimeout,
	}, services.AssetLoaderDeps{
		Logger:  logger.Named("assets"),
		Metrics: metrics,
		Clock:   time.Now,
	})
	if assets, err := assetLoader.Load(ctx); err != nil {
		logger.Warn("certificate assets unavailable at startup; retrying on first generation", zap.Error(err))
	} else {
		logger.Info("certificate assets loaded",
			zap.String("template", assets.TemplateSource),
			zap.String("logo", assets.LogoSource),
		)
	}

	var events services.EventPublisher
	pubsubClient, topic, err := openEventTopic(ctx, cfg)
	if err != nil {
		logger.Warn("certificate events disabled", zap.Error(err))
	} else if topic != nil {
		publisher, err := jobs.NewPubSubEventPublisher(topic)
		if err != nil {
			logger.Fatal("failed to initialise event publisher", zap.Error(err))
		}
		events = publisher
		defer func() {
			topic.Stop()
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
	}

	systemService, err := newSystemService(store.certificates, redisClient, artifactStore, fetcher, buildInfo)
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}

	counterService, err := services.NewCounterService(services.CounterServiceDeps{
		Repository: store.counters,
		Clock:      time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise counter service", zap.Error(err))
	}

	generationDeps := services.GenerationServiceDeps{
		Limiter:    limits.generation,
		QR:         qrEncoder,
		Assets:     assetLoader,
		PDF:        pdfConverter,
		Repository: store.certificates,
		Events:     events,
		Metrics:    metrics,
		Logger:     logger.Named("generation"),
		Clock:      time.Now,
		Persist:    cfg.Certificates.PersistArtifacts,
	}
	if artifactStore != nil {
		generationDeps.Store = artifactStore
	}
	generationService, err := services.NewGenerationService(generationDeps)
	if err != nil {
		logger.Fatal("failed to initialise generation service", zap.Error(err))
	}

	verificationService, err := services.NewVerificationService(services.VerificationServiceDeps{
		Repository: store.certificates,
	})
	if err != nil {
		logger.Fatal("failed to initialise verification service", zap.Error(err))
	}

	certificateDeps := services.CertificateServiceDeps{
		Repository:         store.certificates,
		Counters:           counterService,
		Generation:         generationService,
		Events:             events,
		Logger:             logger.Named("certificates"),
		Clock:              time.Now,
		PublicOrigin:       cfg.Certificates.PublicOrigin,
		EnforceIssueWindow: cfg.Certificates.EnforceIssueWindow,
		SignedURLTTL:       cfg.Storage.SignedURLTTL,
	}
	if artifactStore != nil {
		certificateDeps.Store = artifactStore
	}
	certificateService, err := services.NewCertificateService(certificateDeps)
	if err != nil {
		logger.Fatal("failed to initialise certificate service", zap.Error(err))
	}

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier)
	oidcMiddleware := buildOIDCMiddleware(logger.Named("auth"), cfg)

	idempotencyStore, err := newIdempotencyStore(cfg, redisClient)
	if err != nil {
		logger.Fatal("failed to initialise idempotency store", zap.Error(err))
	}
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(logger.Named("idempotency")),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	startJanitor(cleanupCtx, &cleanupWG, logger.Named("idempotency"), "idempotency cleanup", cfg.Idempotency.CleanupInterval, func(ctx context.Context) (int, error) {
		return idempotencyStore.Prune(ctx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
	})
	if len(limits.prune) > 0 {
		startJanitor(cleanupCtx, &cleanupWG, logger.Named("ratelimit"), "rate limit cleanup", cfg.RateLimits.CleanupInterval, func(context.Context) (int, error) {
			removed := 0
			for _, prune := range limits.prune {
				removed += prune()
			}
			return removed, nil
		})
	}

	adminHandlers := handlers.NewAdminCertificateHandlers(authenticator, certificateService, generationService,
		handlers.WithCreateMiddlewares(idempotencyMiddleware),
	)
	verificationHandlers := handlers.NewVerificationHandlers(verificationService)
	qrHandlers := handlers.NewQRCodeHandlers(qrEncoder,
		handlers.WithQRLimiter(limits.qr),
		handlers.WithQRMetrics(metrics),
		handlers.WithQRDefaultSize(cfg.QR.DefaultSize),
	)
	internalHandlers := handlers.NewInternalHandlers(assetLoader, certificateService)

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(metrics),
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(systemService),
	)

	var opts []handlers.Option
	opts = append(opts, handlers.WithMiddlewares(middlewares...))
	opts = append(opts, handlers.WithRequestTimeout(cfg.Server.RequestTimeout))
	opts = append(opts, handlers.WithCORS(cfg.CORS.AllowedOrigins))
	opts = append(opts, handlers.WithHealthHandlers(healthHandlers))
	opts = append(opts, handlers.WithMetricsHandler(metrics.Handler()))
	opts = append(opts, handlers.WithPublicRoutes(handlers.CombineRoutes(verificationHandlers.Routes, qrHandlers.Routes)))
	opts = append(opts, handlers.WithAdminRoutes(adminHandlers.Routes))
	opts = append(opts, handlers.WithInternalRoutes(internalHandlers.Routes))
	if oidcMiddleware != nil {
		opts = append(opts, handlers.WithInternalMiddlewares(oidcMiddleware))
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("origin certificate api listening",
			zap.String("version", buildInfo.Version),
			zap.String("persistence", cfg.Persistence.Backend),
			zap.String("rateLimits", cfg.RateLimits.Backend),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	cleanupCancel()
	cleanupWG.Wait()

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

type persistence struct {
	certificates repositories.CertificateRepository
	counters     repositories.CounterRepository
	close        func()
}

func openPersistence(ctx context.Context, logger *zap.Logger, cfg config.Config) (persistence, error) {
	switch cfg.Persistence.Backend {
	case config.BackendPostgres:
		pool, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return persistence{}, err
		}
		certificates, err := postgresRepo.NewCertificateRepository(pool)
		if err != nil {
			pool.Close()
			return persistence{}, err
		}
		counters, err := postgresRepo.NewCounterRepository(pool)
		if err != nil {
			pool.Close()
			return persistence{}, err
		}
		return persistence{certificates: certificates, counters: counters, close: pool.Close}, nil
	case config.BackendMemory:
		logger.Warn("in-memory repositories selected; certificates are lost on restart")
		return persistence{
			certificates: memoryRepo.NewCertificateRepository(),
			counters:     memoryRepo.NewCounterRepository(),
			close:        func() {},
		}, nil
	default:
		provider := pfirestore.NewProvider(cfg.Firestore)
		if _, err := provider.Client(ctx); err != nil {
			return persistence{}, err
		}
		closeProvider := func() {
			if err := provider.Close(); err != nil {
				logger.Warn("firestore close error", zap.Error(err))
			}
		}
		certificates, err := firestoreRepo.NewCertificateRepository(provider)
		if err != nil {
			closeProvider()
			return persistence{}, err
		}
		counters, err := firestoreRepo.NewCounterRepository(provider)
		if err != nil {
			closeProvider()
			return persistence{}, err
		}
		return persistence{certificates: certificates, counters: counters, close: closeProvider}, nil
	}
}

type limiterSet struct {
	generation ratelimit.Limiter
	qr         ratelimit.Limiter
	prune      []func() int
}

func buildLimiters(cfg config.Config, client *goredis.Client) (limiterSet, error) {
	generationPolicy := ratelimit.Policy{Limit: cfg.RateLimits.GenerationLimit, Window: cfg.RateLimits.GenerationWindow}
	qrPolicy := ratelimit.Policy{Limit: cfg.RateLimits.QRLimit, Window: cfg.RateLimits.QRWindow}

	switch cfg.RateLimits.Backend {
	case config.BackendRedis:
		if client == nil {
			return limiterSet{}, errors.New("rate limits: redis backend requires API_REDIS_URL")
		}
		generation, err := ratelimit.NewRedisLimiter(client, cfg.RateLimits.KeyPrefix, generationPolicy)
		if err != nil {
			return limiterSet{}, err
		}
		qr, err := ratelimit.NewRedisLimiter(client, cfg.RateLimits.KeyPrefix, qrPolicy)
		if err != nil {
			return limiterSet{}, err
		}
		return limiterSet{generation: ratelimit.Prefixed(generation, "generation"), qr: qr}, nil
	default:
		if !cfg.AllowsMemoryRateLimit() {
			return limiterSet{}, fmt.Errorf("rate limits: in-memory limiter not permitted in %q", cfg.Security.Environment)
		}
		generation, err := ratelimit.NewMemoryLimiter(generationPolicy)
		if err != nil {
			return limiterSet{}, err
		}
		qr, err := ratelimit.NewMemoryLimiter(qrPolicy)
		if err != nil {
			return limiterSet{}, err
		}
		return limiterSet{
			generation: ratelimit.Prefixed(generation, "generation"),
			qr:         qr,
			prune:      []func() int{generation.Prune, qr.Prune},
		}, nil
	}
}

func newIdempotencyStore(cfg config.Config, client *goredis.Client) (idempotency.Store, error) {
	if cfg.Idempotency.Backend == config.BackendRedis {
		if client == nil {
			return nil, errors.New("idempotency: redis backend requires API_REDIS_URL")
		}
		return idempotency.NewRedisStore(client, idempotencyKeyPrefix)
	}
	return idempotency.NewMemoryStore(), nil
}

func openEventTopic(ctx context.Context, cfg config.Config) (*pubsub.Client, *pubsub.Topic, error) {
	topicName := strings.TrimSpace(cfg.Events.Topic)
	if topicName == "" {
		return nil, nil, nil
	}
	projectID := strings.TrimSpace(cfg.Events.ProjectID)
	if projectID == "" {
		projectID = strings.TrimSpace(cfg.Firestore.ProjectID)
	}
	if projectID == "" {
		return nil, nil, errors.New("events: project id not configured")
	}
	var opts []option.ClientOption
	if credentials := strings.TrimSpace(cfg.Firebase.CredentialsFile); credentials != "" {
		opts = append(opts, option.WithCredentialsFile(credentials))
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("events: pubsub client: %w", err)
	}
	return client, client.Topic(topicName), nil
}

func startJanitor(ctx context.Context, wg *sync.WaitGroup, logger *zap.Logger, name string, interval time.Duration, run func(context.Context) (int, error)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				runCtx, cancel := context.WithTimeout(ctx, time.Minute)
				removed, err := run(runCtx)
				cancel()
				if err != nil {
					logger.Error(name+" error", zap.Error(err))
					continue
				}
				if removed > 0 {
					logger.Info(name+" removed records", zap.Int("count", removed))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func newSystemService(certificates repositories.CertificateRepository, redisClient *goredis.Client, artifacts platformstorage.ArtifactStore, fetcher *secrets.Fetcher, build services.BuildInfo) (services.SystemService, error) {
	checks := make([]repositories.DependencyCheck, 0, 4)
	if certificates != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "certificates",
			Timeout: 1500 * time.Millisecond,
			Check:   certificates.Ping,
		})
	}
	if redisClient != nil {
		client := redisClient
		checks = append(checks, repositories.DependencyCheck{
			Name:     "redis",
			Timeout:  time.Second,
			Optional: true,
			Check: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			},
		})
	}
	if artifacts != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:     "storage",
			Timeout:  2 * time.Second,
			Optional: true,
			Check:    artifacts.Check,
		})
	}
	if fetcher != nil {
		const secretHealthReference = "secret://system/healthz?version=latest"
		checks = append(checks, repositories.DependencyCheck{
			Name:     "secretManager",
			Timeout:  time.Second,
			Optional: true,
			Check: func(ctx context.Context) error {
				_, err := fetcher.Resolve(ctx, secretHealthReference)
				if err == nil {
					return nil
				}
				if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
					return nil
				}
				return err
			},
		})
	}
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	repo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: repo,
		Clock:            time.Now,
		Build:            build,
	})
}

func buildOIDCMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	if strings.TrimSpace(cfg.Security.OIDC.JWKSURL) == "" {
		return nil
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	cache := auth.NewJWKSCache(cfg.Security.OIDC.JWKSURL, auth.WithJWKSLogger(logger))
	validator := auth.NewOIDCValidator(cache, auth.WithOIDCLogger(logger))

	audience := strings.TrimSpace(cfg.Security.OIDC.Audience)
	if audience == "" {
		logger.Warn("auth: OIDC audience not configured; internal routes will reject requests")
	}
	issuers := cfg.Security.OIDC.Issuers
	if len(issuers) == 0 {
		logger.Warn("auth: OIDC issuers not configured; internal routes will reject requests")
	}

	return validator.RequireOIDC(audience, issuers)
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		return strings.TrimSpace(env[key])
	}

	defaultProject := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("API_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}
	credentialsFile := lookup("API_FIREBASE_CREDENTIALS_FILE")

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists the secret-backed fields the selected backends cannot run without.
func requiredSecretNames(env map[string]string) []string {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(env[key]))
	}

	var required []string
	if lookup("API_PERSISTENCE_BACKEND") == config.BackendPostgres {
		required = append(required, "Postgres.DSN")
	}
	if lookup("API_RATELIMIT_BACKEND") == config.BackendRedis || lookup("API_IDEMPOTENCY_BACKEND") == config.BackendRedis {
		required = append(required, "Redis.URL")
	}
	if lookup("API_STORAGE_BACKEND") == config.BackendS3 && lookup("API_STORAGE_S3_ACCESS_KEY_ID") != "" {
		required = append(required, "Storage.S3.AccessKeyID", "Storage.S3.SecretAccessKey")
	}
	return uniqueStrings(required)
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
