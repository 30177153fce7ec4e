// Package httpapi wires the HTTP transport (Gin) to the bot services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, webhook authentication and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/duty-roster-bot/docs" // registers the swagger document
	"github.com/tbourn/duty-roster-bot/internal/config"
	"github.com/tbourn/duty-roster-bot/internal/http/handlers"
	"github.com/tbourn/duty-roster-bot/internal/http/middleware"
	"github.com/tbourn/duty-roster-bot/internal/repo"
)

// Deps carries the services the routes dispatch to.
type Deps struct {
	DB   *gorm.DB
	Bot  handlers.UpdateHandler
	Jobs handlers.JobRunner
}

// dedupe claims update ids in the processed_updates table for ttl.
func dedupe(db *gorm.DB, ttl time.Duration) handlers.ClaimFunc {
	if db == nil {
		return nil
	}
	return func(ctx context.Context, updateID, chatID int64) error {
		return repo.ClaimUpdate(ctx, db, updateID, chatID, ttl, time.Now().UTC())
	}
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. AccessLog: structured logs with secret scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS (only when origins are configured) and security headers
//
// Per route: /webhook checks the Telegram secret before the rate limiter so
// verified deliveries bypass it; the job endpoints are rate limited per IP.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.AccessLog(middleware.RedactOptions{}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit
	r.Use(limitBody(cfg.MaxBodyBytes))

	// 6) Prometheus metrics
	r.Use(middleware.Metrics())

	// 7) CORS for browser access to the ops endpoints; Telegram sends no Origin.
	if len(cfg.CORS.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
		NoStore:    true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Ops: liveness, metrics and docs. Scrapes and the swagger bundle compress well.
	r.GET("/health", handlers.Health)
	ops := r.Group("", gzip.Gzip(gzip.DefaultCompression))
	ops.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.SwaggerEnabled {
		ops.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(deps.Bot, deps.Jobs, dedupe(deps.DB, cfg.UpdateDedupeTTL))

	var limit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if cfg.RateRPS > 0 {
		limit = middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP()).Handler()
	}

	r.POST("/webhook", middleware.WebhookSecret(cfg.Telegram.WebhookSecret), limit, h.Webhook)

	jobs := r.Group("", limit)
	{
		jobs.GET("/refresh", h.Refresh)
		jobs.GET("/reminder", h.Reminder)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error. maxBytes <= 0 disables the cap.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
