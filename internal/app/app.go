// Package app assembles repositories, services and background jobs from
// a Config. Both binaries build on it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/reelcast/internal/analytics"
	"github.com/onnwee/reelcast/internal/api"
	"github.com/onnwee/reelcast/internal/auth"
	"github.com/onnwee/reelcast/internal/config"
	"github.com/onnwee/reelcast/internal/db"
	"github.com/onnwee/reelcast/internal/health"
	"github.com/onnwee/reelcast/internal/idempotency"
	"github.com/onnwee/reelcast/internal/jobs"
	"github.com/onnwee/reelcast/internal/middleware"
	"github.com/onnwee/reelcast/internal/notification"
	"github.com/onnwee/reelcast/internal/payment"
	"github.com/onnwee/reelcast/internal/reconcile"
	"github.com/onnwee/reelcast/internal/schedule"
	"github.com/onnwee/reelcast/internal/social"
	"github.com/onnwee/reelcast/internal/sponsorship"
	"github.com/onnwee/reelcast/internal/tip"
	"github.com/onnwee/reelcast/internal/tracing"
	"github.com/onnwee/reelcast/internal/upload"
	"github.com/onnwee/reelcast/internal/user"
	"github.com/onnwee/reelcast/internal/video"
)

// ServiceName identifies the process in traces and logs.
const ServiceName = "reelcast-api"

// Repositories holds one implementation per storage concern.
type Repositories struct {
	Users         user.Repository
	Videos        video.Repository
	Social        social.Repository
	Notifications notification.Repository
	Analytics     analytics.Store
	Schedule      schedule.Repository
	Tips          tip.Repository
	Sponsorship   sponsorship.Repository
	Webhooks      payment.EventLog
}

// Services holds the domain services.
type Services struct {
	Users         *user.Service
	Videos        *video.Service
	Social        *social.Service
	Notifications *notification.Service
	Analytics     *analytics.Service
	Schedule      *schedule.Service
	Tips          *tip.Service
	Sponsorship   *sponsorship.Service
	Uploads       *upload.Service // nil when R2 is not configured
}

// App is a fully wired process. Close releases every connection it opened.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Repos    Repositories
	Services Services
	Jobs     *jobs.Registry
	Registry *prometheus.Registry
	Metrics  *middleware.Metrics
	Checkers map[string]health.Checker
	Tracing  *tracing.Provider

	DB    *sql.DB       // nil in memory mode
	Redis *redis.Client // nil without REDIS_URL

	rateLimits  middleware.RateLimitStore
	idempotency idempotency.Store
	closers     []func(context.Context) error
}

// New builds an App. Storage is PostgreSQL when DatabaseURL is set and
// in-memory otherwise.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (a *App, err error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("analytics timezone: %w", err)
	}

	a = &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		Metrics:  middleware.NewMetrics(),
		Checkers: map[string]health.Checker{},
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	a.Tracing, err = tracing.NewProvider(tracing.Config{
		Enabled:      cfg.TracingEnabled,
		ServiceName:  ServiceName,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		InsecureMode: !cfg.IsProduction(),
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.closers = append(a.closers, a.Tracing.Shutdown)

	if err := a.registerMetrics(); err != nil {
		return nil, err
	}
	if err := a.openStorage(ctx); err != nil {
		return nil, err
	}
	if err := a.openRedis(ctx); err != nil {
		return nil, err
	}
	if err := a.buildServices(loc); err != nil {
		return nil, err
	}
	a.buildJobs(loc)
	return a, nil
}

func (a *App) registerMetrics() error {
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := a.Metrics.Register(a.Registry); err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}
	return nil
}

func (a *App) openStorage(ctx context.Context) error {
	if a.Config.DatabaseURL == "" {
		a.Logger.Warn("DATABASE_URL not set, using in-memory storage")
		a.Repos = Repositories{
			Users:         user.NewInMemoryRepository(),
			Videos:        video.NewInMemoryRepository(),
			Social:        social.NewInMemoryRepository(),
			Notifications: notification.NewInMemoryRepository(),
			Analytics:     analytics.NewInMemoryStore(),
			Schedule:      schedule.NewInMemoryRepository(),
			Tips:          tip.NewInMemoryRepository(),
			Sponsorship:   sponsorship.NewInMemoryRepository(),
			Webhooks:      payment.NewInMemoryEventLog(),
		}
		return nil
	}

	conn, err := db.Open(ctx, a.Config.DatabaseURL, db.DefaultPoolConfig)
	if err != nil {
		return err
	}
	a.DB = conn
	a.closers = append(a.closers, func(context.Context) error { return conn.Close() })

	version, err := db.Migrate(ctx, conn, a.Logger)
	if err != nil {
		return err
	}
	a.Logger.Info("database ready", "schema_version", version)
	a.Checkers["database"] = health.NewDBChecker(conn)

	a.Repos = Repositories{
		Users:         user.NewPostgresRepository(conn),
		Videos:        video.NewPostgresRepository(conn),
		Social:        social.NewPostgresRepository(conn),
		Notifications: notification.NewPostgresRepository(conn),
		Analytics:     analytics.NewPostgresStore(conn),
		Schedule:      schedule.NewPostgresRepository(conn),
		Tips:          tip.NewPostgresRepository(conn),
		Sponsorship:   sponsorship.NewPostgresRepository(conn),
		Webhooks:      payment.NewPostgresEventLog(conn),
	}
	return nil
}

func (a *App) openRedis(ctx context.Context) error {
	if a.Config.RedisURL == "" {
		a.rateLimits = middleware.NewInMemoryRateLimitStore()
		a.idempotency = idempotency.NewInMemoryStore()
		return nil
	}
	opts, err := redis.ParseURL(a.Config.RedisURL)
	if err != nil {
		return fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	a.Redis = client
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	a.rateLimits = middleware.NewRedisRateLimitStore(client)
	a.idempotency = idempotency.NewRedisStore(client)
	a.Checkers["redis"] = health.NewRedisChecker(client)
	return nil
}

func (a *App) buildServices(loc *time.Location) error {
	cfg, logger, r := a.Config, a.Logger, a.Repos

	var payments payment.Client
	if cfg.StripeAPIKey != "" {
		payments = payment.NewStripeClient(cfg.StripeAPIKey)
	}

	notifications := notification.NewService(r.Notifications, logger)
	analyticsSvc := analytics.NewService(r.Analytics, r.Videos, r.Users, analytics.Config{Location: loc, Logger: logger})
	socialSvc := social.NewService(r.Social, r.Users, r.Videos, analyticsSvc, notifications, logger)

	a.Services = Services{
		Users:         user.NewService(r.Users),
		Videos:        video.NewService(r.Videos, r.Users, socialSvc, logger),
		Social:        socialSvc,
		Notifications: notifications,
		Analytics:     analyticsSvc,
		Schedule:      schedule.NewService(r.Schedule, r.Users, r.Videos, notifications, schedule.Config{Location: loc, Logger: logger}),
		Tips:          tip.NewService(r.Tips, r.Users, r.Videos, tip.Config{Payments: payments, Tracker: analyticsSvc, Logger: logger}),
		Sponsorship:   sponsorship.NewService(r.Sponsorship, r.Users, cfg.GuidelinesVersion, logger),
	}

	if cfg.UploadsEnabled() {
		uploads, err := upload.NewService(upload.ServiceConfig{
			BucketName:      cfg.R2BucketName,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			Endpoint:        cfg.R2Endpoint,
			PublicBaseURL:   cfg.R2PublicBaseURL,
			MaxVideoMB:      cfg.R2MaxVideoSizeMB,
			MaxImageMB:      cfg.R2MaxImageSizeMB,
		})
		if err != nil {
			return fmt.Errorf("init uploads: %w", err)
		}
		a.Services.Uploads = uploads
	}
	return nil
}

func (a *App) buildJobs(loc *time.Location) {
	cfg, logger := a.Config, a.Logger
	metrics := jobs.NewMetrics()
	if err := metrics.Register(a.Registry); err != nil {
		logger.Warn("job metrics not registered", "error", err)
	}

	rollup := analytics.NewRollup(a.Repos.Analytics, a.Repos.Users, a.Repos.Social, analytics.Config{Location: loc, Logger: logger})
	reconciler := reconcile.New(a.Repos.Users, a.Repos.Videos, a.Repos.Social, reconcile.Config{Logger: logger})

	periodic := func(name string, interval time.Duration, task jobs.Task) *jobs.Periodic {
		return jobs.NewPeriodic(jobs.Config{Name: name, Interval: interval, Logger: logger, Metrics: metrics}, task)
	}
	a.Jobs = jobs.NewRegistry(
		periodic(jobs.JobTypePublishScheduled, cfg.PublishInterval, jobs.PublishScheduledTask(a.Services.Schedule)),
		periodic(jobs.JobTypeDailyRollup, cfg.RollupInterval, jobs.DailyRollupTask(rollup)),
		periodic(jobs.JobTypeCounterReconcile, cfg.ReconcileInterval, jobs.CounterReconcileTask(reconciler)),
	)
}

// Handler returns the HTTP handler with every route mounted.
func (a *App) Handler() http.Handler {
	cfg, s := a.Config, a.Services
	tokens := auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)

	h := api.Handlers{
		Analytics:     api.NewAnalyticsHandlers(s.Analytics),
		Schedule:      api.NewScheduleHandlers(s.Schedule),
		Tips:          api.NewTipHandlers(s.Tips),
		Sponsorship:   api.NewSponsorshipHandlers(s.Sponsorship),
		Users:         api.NewUserHandlers(s.Users),
		Videos:        api.NewVideoHandlers(s.Videos),
		Social:        api.NewSocialHandlers(s.Social),
		Notifications: api.NewNotificationHandlers(s.Notifications),
		Jobs:          api.NewJobHandlers(a.Jobs),
		Health:        api.NewHealthHandlers(a.Checkers),
	}
	if s.Uploads != nil {
		h.Upload = api.NewUploadHandlers(s.Uploads)
	}
	if cfg.StripeWebhookSecret != "" {
		h.Webhook = api.NewWebhookHandlers(cfg.StripeWebhookSecret, a.Repos.Webhooks, s.Tips, a.Logger)
	}

	return api.NewRouter(api.RouterConfig{
		Handlers:      h,
		Tokens:        tokens,
		InternalToken: cfg.InternalToken,
		CORS: middleware.CORSConfig{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowCredentials: true,
			MaxAge:           600,
		},
		RateLimitStore: a.rateLimits,
		Idempotency:    a.idempotency,
		RateLimits: api.RateLimits{
			Global:   middleware.PerMinute(middleware.PolicyGlobal, cfg.RateLimitGlobal),
			Tracking: middleware.PerMinute(middleware.PolicyTracking, cfg.RateLimitTracking),
			Tip:      middleware.PerMinute(middleware.PolicyTip, cfg.RateLimitTip),
		},
		Metrics:        a.Metrics,
		MetricsHandler: promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{Registry: a.Registry}),
		ServiceName:    ServiceName,
		Tracing:        a.Tracing.IsEnabled(),
		Logger:         a.Logger,
	})
}

// RunCacheCleanup evicts expired in-memory rate limit windows and
// idempotency records until ctx is done. Redis expires its own keys.
func (a *App) RunCacheCleanup(ctx context.Context) error {
	limits, limitsInMemory := a.rateLimits.(*middleware.InMemoryRateLimitStore)
	idem, idemInMemory := a.idempotency.(*idempotency.InMemoryStore)
	if !limitsInMemory && !idemInMemory {
		return nil
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if limitsInMemory {
				limits.Cleanup()
			}
			if idemInMemory {
				if n := idem.DeleteExpired(); n > 0 {
					a.Logger.Debug("expired idempotency records removed", "count", n)
				}
			}
		}
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
