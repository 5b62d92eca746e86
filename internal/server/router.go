package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imuhira/backend/internal/auth"
	"github.com/imuhira/backend/internal/handlers"
	"github.com/imuhira/backend/internal/logger"
	"github.com/imuhira/backend/internal/metrics"
	"github.com/imuhira/backend/internal/middleware"
	"github.com/imuhira/backend/internal/websocket"
)

// RouterConfig holds everything the HTTP surface is built from. Optional
// parts are nil when their feature is switched off.
type RouterConfig struct {
	Debates        *handlers.DebateHandler
	AllowedOrigins []string
	RateLimiter    *middleware.RateLimiter
	Log            *logger.Logger

	// Admin login and route protection; both nil when auth is disabled
	Auth       *handlers.AuthHandler
	JWTService *auth.JWTService

	// Live feed; nil without Redis
	LiveFeed *websocket.Handler

	Metrics        *metrics.Metrics
	MetricsHandler http.Handler

	// Dependency probes reported by /health, keyed by name
	HealthChecks map[string]func(ctx context.Context) error
}

// NewRouter wires middleware and routes
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.NoMethod(handlers.MethodNotAllowed)
	router.NoRoute(func(c *gin.Context) {
		handlers.ErrorResponse(c, http.StatusNotFound, "Not found")
	})

	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(cfg.Log),
		middleware.Metrics(cfg.Metrics),
		middleware.CORS(cfg.AllowedOrigins),
	)

	router.GET("/health", health(cfg.HealthChecks))
	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	if cfg.Auth != nil {
		router.POST("/auth/login", cfg.Auth.Login)
	}
	if cfg.LiveFeed != nil {
		router.GET("/ws/debates", cfg.LiveFeed.HandleWebSocket)
	}

	// Public routes
	public := router.Group("/api/public")
	{
		public.GET("/debates", cfg.Debates.ListPublicDebates)
		public.GET("/debates/:slug", cfg.Debates.GetPublicDebate)
	}

	// Admin routes
	api := router.Group("/api")
	if cfg.JWTService != nil {
		api.Use(middleware.AdminAuth(cfg.JWTService))
	}
	writes := []gin.HandlerFunc{}
	if cfg.RateLimiter != nil {
		writes = append(writes, middleware.RateLimitMiddleware(cfg.RateLimiter))
	}
	{
		api.GET("/slug", handlers.DeriveSlug)

		api.GET("/debates", cfg.Debates.ListDebates)
		api.POST("/debates", append(writes, cfg.Debates.CreateDebate)...)
		api.GET("/debates/:id", cfg.Debates.GetDebate)
		api.PUT("/debates/:id", append(writes, cfg.Debates.UpdateDebate)...)
		api.DELETE("/debates/:id", append(writes, cfg.Debates.DeleteDebate)...)

		if cfg.LiveFeed != nil {
			api.GET("/live/stats", cfg.LiveFeed.Stats)
		}
	}

	return router
}

// health answers 503 when any probe fails
func health(checks map[string]func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		body := gin.H{"status": "ok", "checks": results}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		c.JSON(status, body)
	}
}
