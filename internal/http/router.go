// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, authentication, idempotency, and rate limiting.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/brokerage-alerts/internal/config"
	"github.com/tbourn/brokerage-alerts/internal/http/handlers"
	"github.com/tbourn/brokerage-alerts/internal/http/middleware"
	"github.com/tbourn/brokerage-alerts/internal/repo"
)

// Deps are the application services the routes are bound to.
type Deps struct {
	Alerts handlers.AlertService
	// Jobs is optional; admin endpoints answer 503 without it.
	Jobs handlers.JobRunner
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the versioned API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS and security headers
//
// Inside the API group:
//  8. Auth: bearer token (or dev header) → user id and role
//  9. Idempotency validator (before rate limiter to allow bypass on replay)
//  10. Rate limiter (per user, bypass on replay)
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config, deps Deps) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture (allow all if none configured) and security headers
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := handlers.New(deps.Alerts, deps.Jobs, handlers.WithIdempotency(db, cfg.IdempotencyTTL))

	api := groupWithPrefix(r, cfg.APIBasePath)

	// 8) Authentication
	api.Use(middleware.Auth(middleware.AuthOptions{
		Secret:       cfg.Auth.JWTSecret,
		Audience:     cfg.Auth.Audience,
		AllowDevUser: cfg.Auth.AllowDevUser,
	}))

	// 9) Idempotency validation (before rate limiting)
	api.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
			Scope:  func(*gin.Context) string { return handlers.IdempotencyScope },
		},
		func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
			if db == nil {
				return false, nil
			}
			rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 10) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	api.Use(rl.Handler())

	{
		// Alerts
		api.GET("/alertas", h.ListAlerts)
		api.POST("/alertas", h.CreateAlert)
		api.GET("/alertas/resumo", h.Summary)
		api.GET("/alertas/contagem", h.CountByKind)
		api.GET("/alertas/tipos", h.ListKinds)
		api.POST("/alertas/marcar-todos-lidos", h.MarkAllRead)
		api.DELETE("/alertas/lidos/todos", h.DeleteAllRead)
		api.GET("/alertas/:id", h.GetAlert)
		api.PATCH("/alertas/:id/lido", h.MarkRead)
		api.DELETE("/alertas/:id", h.DeleteAlert)

		// Admin
		admin := api.Group("/admin", middleware.RequireRole(cfg.Auth.AdminRoleName))
		admin.GET("/scheduler", h.SchedulerStatus)
		admin.POST("/scheduler/:job/run", h.RunJob)
	}
}

// corsMiddleware returns the CORS stack. Without an allowlist every origin is
// accepted and credentials are disabled.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	allowMethods := []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", "If-None-Match", middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed"}

	if len(origins) == 0 {
		return []gin.HandlerFunc{
			// Force ACAO: * even for requests without an Origin header.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins:  true,
				AllowMethods:     allowMethods,
				AllowHeaders:     allowHeaders,
				ExposeHeaders:    exposeHeaders,
				AllowCredentials: false, // must remain false with AllowAllOrigins
				MaxAge:           12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     allowMethods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}),
	}
}

// limitBody caps the request body size to maxBytes using http.MaxBytesReader.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
