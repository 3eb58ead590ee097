package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/minjae-lim/daily-quotes/internal/adapters/http/handlers"
	"github.com/minjae-lim/daily-quotes/internal/adapters/http/middleware"
	"github.com/minjae-lim/daily-quotes/internal/platform/config"
	"github.com/minjae-lim/daily-quotes/internal/platform/telemetry"
)

// DefaultRequestTimeout is the default timeout for API requests.
const DefaultRequestTimeout = 30 * time.Second

// adminRole is required to clear the quote cache.
const adminRole = "admin"

// RouterConfig contains configuration for setting up the router.
type RouterConfig struct {
	// Logger is the structured logger for request logging.
	Logger *slog.Logger

	// AuthConfig contains authentication header configuration.
	AuthConfig *config.AuthConfig

	// AppConfig contains application configuration.
	AppConfig *config.AppConfig

	// HealthHandler handles health check endpoints.
	HealthHandler *handlers.HealthHandler

	// QuoteHandler handles quote resolution endpoints.
	QuoteHandler *handlers.QuoteHandler

	// HistoryHandler handles quote history endpoints. Nil when the durable
	// history store is not configured; the routes are then not registered.
	HistoryHandler *handlers.HistoryHandler

	// CacheHandler handles cache metadata and clearing endpoints.
	CacheHandler *handlers.CacheHandler

	// Timeout is the default request timeout.
	Timeout time.Duration
}

// SetupRouter configures all routes and middleware on the Gin engine.
// Middleware is applied in the following order (first to last):
//  1. Recovery - catch panics first
//  2. Request ID - generate/extract request ID
//  3. Correlation ID - handle distributed tracing correlation
//  4. OpenTelemetry - tracing and metrics
//  5. Logging - request logging (skips health endpoints)
//  6. CORS + Timeout - applied on the API group
//
// Route groups:
//   - /-/ (internal): Health endpoints, no auth required
//   - /api/v1/ (public API): Quote, history and cache endpoints
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	// Apply global middleware in order
	engine.Use(
		middleware.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
		telemetry.TracingMiddleware(cfg.AppConfig.Name),
		telemetry.Middleware(cfg.AppConfig.Name),
		middleware.Logging(cfg.Logger),
	)

	// Register health endpoints (no auth, no timeout for probes)
	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterHealthRoutesOnEngine(engine)
	}

	// Setup API v1 routes with CORS and timeout
	apiV1 := engine.Group("/api/v1")
	apiV1.Use(middleware.CORS())

	if cfg.Timeout > 0 {
		apiV1.Use(middleware.SimpleTimeout(cfg.Timeout))
	}

	setupAPIRoutes(apiV1, cfg)
}

// setupAPIRoutes registers the quote, history and cache endpoints.
func setupAPIRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.QuoteHandler != nil {
		cfg.QuoteHandler.RegisterQuoteRoutes(rg)
	}

	if cfg.HistoryHandler != nil {
		cfg.HistoryHandler.RegisterHistoryRoutes(rg)
	}

	if cfg.CacheHandler != nil {
		cache := rg.Group("/cache")
		cache.GET("", cfg.CacheHandler.GetInfo)

		// Clearing the cache is destructive enough to gate behind the
		// gateway-provided admin role.
		cache.DELETE("", middleware.RequireAuth(cfg.AuthConfig), middleware.RequireRole(cfg.AuthConfig, adminRole), cfg.CacheHandler.Clear)
	}
}

// SetupMinimalRouter sets up a minimal router with just health endpoints.
// Useful for testing or lightweight deployments.
func SetupMinimalRouter(engine *gin.Engine, logger *slog.Logger, healthHandler *handlers.HealthHandler) {
	engine.Use(
		middleware.Recovery(logger),
		middleware.RequestID(),
	)

	if healthHandler != nil {
		healthHandler.RegisterHealthRoutesOnEngine(engine)
	}
}
