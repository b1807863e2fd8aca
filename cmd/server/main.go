package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/mwilcek/fluentbridge/internal"
	"github.com/mwilcek/fluentbridge/internal/domain"
	"github.com/mwilcek/fluentbridge/internal/handler"
	"github.com/mwilcek/fluentbridge/internal/metrics"
	"github.com/mwilcek/fluentbridge/internal/middleware"
	"github.com/mwilcek/fluentbridge/internal/service"
	"github.com/mwilcek/fluentbridge/internal/storage"
	"github.com/mwilcek/fluentbridge/internal/store"
	"github.com/mwilcek/fluentbridge/internal/translate"
	translatemock "github.com/mwilcek/fluentbridge/internal/translate/mock"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize the usage store backend
	var (
		usageStore store.UsageStore
		resetter   store.PeriodResetter
		tokens     store.TokenVerifier
	)
	switch cfg.UsageBackend {
	case "postgres":
		db, err := sql.Open("pgx", cfg.DatabaseUrl)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer db.Close()

		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}

		// Run migrations
		if err := internal.RunMigrations(db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("Database ready")

		pg := store.NewPostgresStore(db, cfg.StoreTimeout)
		usageStore, resetter, tokens = pg, pg, pg

	case "redis":
		opts, err := goredis.ParseURL(cfg.RedisUrl)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := goredis.NewClient(opts)
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		logger.Info("Redis ready")

		rs := store.NewRedisStore(client, cfg.StoreTimeout)
		usageStore, resetter, tokens = rs, rs, rs
	}

	// Initialize file storage
	var fileStore storage.Storage
	switch cfg.StorageProvider {
	case storage.ProviderR2:
		fileStore, err = storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	default:
		fileStore, err = storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	}
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	// Initialize services
	quotaService := service.NewQuotaService(usageStore, logger)
	callController := service.NewCallController(quotaService, cfg.CallTickInterval, logger)
	resetScheduler := service.NewResetScheduler(resetter, cfg.UsagePeriod, cfg.ResetSweepInterval, logger)
	resetScheduler.Start(ctx)

	var provider translate.Provider = translatemock.New(logger)

	// Initialize middleware
	isSecure := cfg.Env != "development"
	authMw := middleware.NewAuthMiddleware(tokens, logger)
	quotaGuard := middleware.NewQuotaGuard(quotaService, logger)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	apiLimiter := middleware.NewRateLimiter(300, time.Minute, logger)
	rateLimitMw := middleware.NewRateLimitMiddleware(apiLimiter, logger)

	// Initialize handlers
	usageHandler := handler.NewUsageHandler(quotaService, logger)
	translateHandler := handler.NewTranslateHandler(provider, quotaService, logger)
	attachmentHandler := handler.NewAttachmentHandler(fileStore, quotaService, logger)
	callHandler := handler.NewCallHandler(callController, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics, behind basic auth when credentials are set
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	// Middleware stack for authenticated API routes
	requireUser := middleware.Stack(authMw.WithUser, authMw.RequireUser)

	// Quota admission gates. Each sizes the request up front; the true
	// cost is recorded by the handler or the call meter afterwards.
	translateGate := quotaGuard.Require(domain.ActionTranslation, handler.TranslateAmount)
	uploadGate := quotaGuard.Require(domain.ActionStorage, handler.UploadAmount)

	usageHandler.RegisterRoutes(mux, requireUser)
	translateHandler.RegisterRoutes(mux, requireUser, translateGate)
	attachmentHandler.RegisterRoutes(mux, requireUser, uploadGate)
	callHandler.RegisterRoutes(mux, requireUser)

	// Outer middleware applied to every request
	root := middleware.Stack(
		securityMw.Handler,
		loggingMw.Handler,
		metrics.Middleware,
		rateLimitMw.Limit,
	)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env, "usage_backend", cfg.UsageBackend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	// Stop metering loops so no increment lands after shutdown
	callController.Shutdown()
	resetScheduler.Stop()

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
