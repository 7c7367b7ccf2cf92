package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	handler "github.com/utafrali/storefront/internal/handler/http"
	"github.com/utafrali/storefront/internal/notify"
	"github.com/utafrali/storefront/internal/repository/kv"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/internal/store"
	pgstore "github.com/utafrali/storefront/internal/store/postgres"
	"github.com/utafrali/storefront/internal/store/postgres/migrations"
	redisstore "github.com/utafrali/storefront/internal/store/redis"
	"github.com/utafrali/storefront/internal/ui"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/tracing"
)

// initTracer is replaced in tests.
var initTracer = tracing.InitTracer

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	store          store.Store
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
	stopWatch      context.CancelFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Every process is one tab on the shared change feed.
	origin := uuid.NewString()
	logger = logger.With(slog.String("tab_id", origin))

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := initTracer(ctx, tracing.Config{
		ServiceName:    handler.ServiceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		InstanceID:     origin,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	st, err := openStore(ctx, cfg, origin, logger)
	if err != nil {
		stopTracer(tracerShutdown, logger)
		return nil, err
	}

	if cfg.SlowOpThreshold > 0 {
		database.SetSlowOpLogging(cfg.SlowOpThreshold, logger)
	}

	// Kafka publishing is optional.
	var (
		producer  *pkgkafka.Producer
		publisher event.Publisher
	)
	if len(cfg.KafkaBrokers) > 0 {
		producer = pkgkafka.NewProducer(
			pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers),
			pkgkafka.NewProducerMetrics(prometheus.DefaultRegisterer),
			logger,
		)
		publisher = producer
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Info("kafka brokers not configured, events disabled")
	}

	// Reset token delivery is optional.
	var (
		delivery service.TokenDeliverer
		breaker  *httpclient.CircuitBreakerClient
	)
	if cfg.ResetWebhookURL != "" {
		breaker = httpclient.NewCircuitBreakerClient(
			httpclient.New(httpclient.DefaultConfig()),
			httpclient.DefaultCircuitBreakerConfig("reset-webhook"),
			logger,
		)
		delivery = notify.NewWebhook(breaker, cfg.ResetWebhookURL)
	}

	// Build the dependency graph.
	opts := []service.Option{
		service.WithSessionMaxAge(cfg.SessionMaxAge),
		service.WithResetTokenTTL(cfg.ResetTokenTTL),
		service.WithFallbackPath(cfg.AuthFallbackPath),
	}
	eventProducer := event.NewProducer(publisher, logger)
	doc := ui.NewStorefrontDocument()
	directory := kv.NewDirectoryRepository(st, logger)

	sessions := service.NewSessionManager(
		kv.NewSessionRepository(st, logger), directory, st, eventProducer,
		ui.NewLogNavigator(logger), logger, opts...,
	)
	accounts := service.NewAccountService(directory, sessions, eventProducer, logger, opts...)
	reset := service.NewResetService(kv.NewResetTokenRepository(st, logger), accounts, delivery, eventProducer, logger, opts...)
	sessions.OnStateChange(func(_ context.Context, s *domain.Session) { ui.RenderNavigation(doc, s) })
	carts := service.NewCartService(kv.NewCartRepository(st, logger), sessions, doc, eventProducer, logger)

	// Restore the session and start listening for logouts in other tabs.
	watchCtx, stopWatch := context.WithCancel(context.Background())
	if err := sessions.Init(watchCtx); err != nil {
		stopWatch()
		if producer != nil {
			_ = producer.Close()
		}
		_ = st.Close()
		stopTracer(tracerShutdown, logger)
		return nil, fmt.Errorf("init session: %w", err)
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("store", st.Ping)
	if producer != nil {
		healthHandler.RegisterNonCritical("kafka", producer.Ping)
	}
	if breaker != nil {
		healthHandler.RegisterNonCritical("reset_webhook", func(context.Context) error {
			if breaker.State() == gobreaker.StateOpen {
				return errors.New("circuit breaker open")
			}
			return nil
		})
	}

	// HTTP router.
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.CORSAllowedOrigins
	router := handler.NewRouter(handler.Services{
		Sessions: sessions,
		Accounts: accounts,
		Reset:    reset,
		Carts:    carts,
		Document: doc,
	}, healthHandler, logger, corsConfig, cfg.AuthRateLimit())

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		store:          st,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
		stopWatch:      stopWatch,
	}, nil
}

// stopTracer flushes and stops a tracer that was started before a later
// initialization step failed.
func stopTracer(shutdown func(context.Context) error, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}
}

// openStore connects the configured key-value backend.
func openStore(ctx context.Context, cfg *config.Config, origin string, logger *slog.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.Int("port", cfg.PostgresPort),
			slog.String("database", cfg.PostgresDB),
		)

		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations completed")

		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, handler.ServiceName); err != nil {
			logger.Warn("failed to register pool metrics", slog.String("error", err.Error()))
		}
		return pgstore.NewStore(pool, pool, cfg.StoreNamespace, origin, logger), nil

	default:
		client, err := database.NewRedisClient(ctx, cfg.Redis(), logger)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("connected to Redis",
			slog.String("addr", cfg.RedisAddr),
			slog.Int("db", cfg.RedisDB),
		)
		return redisstore.NewStore(client, cfg.StoreNamespace, origin, logger), nil
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order:
// 1. HTTP server
// 2. Tracer
// 3. Change feed watcher
// 4. Kafka producer
// 5. Store
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Stop listening for changes from other tabs.
	a.stopWatch()

	// 4. Close Kafka producer.
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 5. Close the store.
	if err := a.store.Close(); err != nil {
		a.logger.Error("store close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
