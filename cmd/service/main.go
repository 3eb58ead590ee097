// Package main is the entry point for the service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minjae-lim/daily-quotes/internal/adapters/clients"
	"github.com/minjae-lim/daily-quotes/internal/adapters/clients/acl"
	"github.com/minjae-lim/daily-quotes/internal/adapters/http"
	"github.com/minjae-lim/daily-quotes/internal/adapters/http/handlers"
	"github.com/minjae-lim/daily-quotes/internal/adapters/storage"
	"github.com/minjae-lim/daily-quotes/internal/app"
	"github.com/minjae-lim/daily-quotes/internal/platform/config"
	"github.com/minjae-lim/daily-quotes/internal/platform/logging"
	"github.com/minjae-lim/daily-quotes/internal/platform/telemetry"
	"github.com/minjae-lim/daily-quotes/internal/ports"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	// Version is the semantic version of the service.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built.
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// 1. Determine profile from environment
	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	// 2. Load and validate configuration (fail fast)
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 3. Initialize logging
	logger := logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
	slog.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
	)

	// 4. Initialize telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(ctx); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	// 5. Create health registry
	healthRegistry := ports.NewHealthRegistry()

	// 6. Open the storage backend for the cache, mapping and history
	kv, history, err := openStorage(cfg, logger, healthRegistry)
	if err != nil {
		return err
	}

	// 7. Create HTTP client for the upstream advice API
	httpClient, err := clients.New(&clients.Config{
		BaseURL:     cfg.Services.Advice.BaseURL,
		ServiceName: cfg.Services.Advice.Name,
		Timeout:     cfg.Client.Timeout,
		Retry:       cfg.Client.Retry,
		Circuit:     cfg.Client.CircuitBreaker,
		RateLimit:   cfg.Client.RateLimit,
		Transport:   cfg.Client.Transport,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("creating HTTP client: %w", err)
	}

	// 8. Create the advice client adapter (ACL pattern)
	adviceClient := acl.NewAdviceClient(acl.AdviceClientConfig{
		Client: httpClient,
		Logger: logger,
	})

	if err := healthRegistry.Register(adviceClient); err != nil {
		return fmt.Errorf("registering advice client health check: %w", err)
	}

	// 9. Create the resolver (application layer)
	resolver := app.NewResolver(app.ResolverConfig{
		Fetcher:       adviceClient,
		Cache:         app.NewQuoteCache(kv, logger),
		Mapping:       app.NewDateMapping(kv, logger),
		History:       history,
		FetchTimeout:  cfg.Resolver.FetchTimeout,
		PrefetchLimit: cfg.Resolver.PrefetchLimit,
		Logger:        logger,
	})

	retry := app.RetryPolicy{
		MaxAttempts: cfg.Resolver.RetryMaxAttempts,
		BaseDelay:   cfg.Resolver.RetryBaseDelay,
		Logger:      logger,
	}

	// 10. Create handlers
	buildInfo := handlers.NewBuildInfo(Version, Commit, BuildTime)
	healthHandler := handlers.NewHealthHandler(healthRegistry, buildInfo)
	quoteHandler := handlers.NewQuoteHandler(resolver, retry, logger)
	cacheHandler := handlers.NewCacheHandler(resolver)

	var historyHandler *handlers.HistoryHandler
	if history != nil {
		historyHandler = handlers.NewHistoryHandler(history, logger)
	}

	// 11. Create HTTP server
	server := http.New(&cfg.Server, logger)

	// 12. Setup router with all middleware and routes
	routerCfg := http.RouterConfig{
		Logger:         logger,
		AuthConfig:     &cfg.Auth,
		AppConfig:      &cfg.App,
		HealthHandler:  healthHandler,
		QuoteHandler:   quoteHandler,
		HistoryHandler: historyHandler,
		CacheHandler:   cacheHandler,
		Timeout:        http.DefaultRequestTimeout,
	}
	http.SetupRouter(server.Engine(), routerCfg)

	// 13. Start server (non-blocking)
	serverErr := server.Start()

	// 14. Wait for shutdown signal
	return waitForShutdown(ctx, logger, server, serverErr, cfg.Server.ShutdownTimeout)
}

// openStorage opens the configured backend and registers its health check.
// With the sqlite backend a single store carries the key/value data and the
// history table; the memory backend has no durable history.
func openStorage(
	cfg *config.Config,
	logger *slog.Logger,
	registry ports.HealthRegistry,
) (ports.KeyValueStore, ports.HistoryStore, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		store, err := storage.NewSQLiteStore(cfg.Storage.Path, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}

		if err := registry.Register(storage.NewHealthCheck("storage", store)); err != nil {
			return nil, nil, fmt.Errorf("registering storage health check: %w", err)
		}

		var history ports.HistoryStore
		if cfg.History.Enabled {
			history = store
		}

		return store, history, nil

	case "memory":
		logger.Warn("using in-memory storage, data does not survive restarts")

		return storage.NewMemoryStore(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// waitForShutdown blocks until a shutdown signal is received or server error occurs.
// It then performs graceful shutdown of the HTTP server.
func waitForShutdown(
	ctx context.Context,
	logger *slog.Logger,
	server *http.Server,
	serverErr <-chan error,
	shutdownTimeout time.Duration,
) error {
	// Listen for OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		// Server error during startup or runtime
		return fmt.Errorf("server error: %w", err)

	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	}

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	// Graceful shutdown sequence
	logger.Info("initiating graceful shutdown",
		slog.Duration("timeout", shutdownTimeout),
	)

	// Stop accepting new requests, drain in-flight
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")

	return nil
}
