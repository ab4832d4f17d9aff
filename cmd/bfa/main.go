package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/config"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/handler"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/cache"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/events"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/memstore"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/sqlstore"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/supabase"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/port"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel, cfg.ServiceName)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Bool("tracing_enabled", cfg.TracingEnabled),
		zap.Bool("events_enabled", cfg.AMQPURL != ""),
	)

	ctx := context.Background()

	// --- Tracing ---
	endpoint := ""
	if cfg.TracingEnabled {
		endpoint = cfg.OTLPEndpoint
	}
	shutdownTracer, err := observability.InitTracer(ctx, endpoint, cfg.ServiceName)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Document store ---
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open document store", zap.Error(err))
	}
	defer closeStore()

	// --- Events ---
	var publisher port.EventPublisher
	if cfg.AMQPURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Warn("event publishing disabled", zap.Error(err))
		} else {
			publisher = amqpPub
			defer amqpPub.Close()
		}
	}

	// --- Cache ---
	childCache := cache.New[any](cfg.CacheTTL)
	defer childCache.Stop()

	// --- Services ---
	status := service.NewStatusBoard(logger)
	coord := service.NewCoordinator(store, service.NewStoreGroupOutcomes(store), publisher, metrics, logger)

	deps := handler.Deps{
		Store:          store,
		Periods:        service.NewPeriodService(store, coord, childCache, status, metrics, logger),
		Groups:         service.NewOutcomeGroupService(store, coord, childCache, status, metrics, logger),
		Lookups:        service.NewLookupService(store, status, logger),
		Status:         status,
		Tokens:         service.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		Metrics:        metrics,
		AllowedOrigins: cfg.AllowedOrigins,
	}

	// --- Router ---
	router := handler.NewRouter(deps, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

// openStore builds the document store selected by STORE_BACKEND.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (port.DocumentStore, func(), error) {
	noop := func() {}

	switch cfg.StoreBackend {
	case config.BackendMemory:
		logger.Warn("using in-memory document store, data is lost on restart")
		return memstore.New(), noop, nil

	case config.BackendSQLite, config.BackendPostgres:
		driver, dsn := sqlstore.DriverSQLite, cfg.SQLitePath
		if cfg.StoreBackend == config.BackendPostgres {
			driver, dsn = sqlstore.DriverPostgres, cfg.PostgresDSN
		}
		openCtx, cancel := context.WithTimeout(ctx, cfg.HTTPTimeout)
		defer cancel()
		s, err := sqlstore.Open(openCtx, driver, dsn, logger)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { s.Close() }, nil

	case config.BackendSupabase:
		logger.Info("using Supabase as document store", zap.String("supabase_url", cfg.SupabaseURL))
		resilienceCfg := resilience.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxConcurrency: cfg.MaxConcurrency,
		}
		client := supabase.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase"),
			resilienceCfg,
			logger,
		)
		return client, noop, nil
	}

	return nil, noop, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
