package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/imuhira/backend/config"
	"github.com/imuhira/backend/internal/auth"
	"github.com/imuhira/backend/internal/cache"
	"github.com/imuhira/backend/internal/database"
	"github.com/imuhira/backend/internal/handlers"
	"github.com/imuhira/backend/internal/logger"
	"github.com/imuhira/backend/internal/metrics"
	"github.com/imuhira/backend/internal/middleware"
	"github.com/imuhira/backend/internal/repository"
	"github.com/imuhira/backend/internal/server"
	"github.com/imuhira/backend/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logr, err := logger.New(cfg.Server.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logr.Sync()

	if _, err := maxprocs.Set(maxprocs.Logger(logr.SugaredLogger.Infof)); err != nil {
		logr.Warn("Failed to set GOMAXPROCS", "error", err)
	}

	// Connect to database
	db, err := database.NewPostgresDB(cfg.GetDSN())
	if err != nil {
		logr.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	// Run migrations
	logr.Info("Running database migrations")
	if err := database.RunMigrations(db.DB); err != nil {
		logr.Fatal("Failed to run migrations", "error", err)
	}

	var m *metrics.Metrics
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewDBStatsCollector(db.DB, "imuhira"),
		)
		m = metrics.New(registry)
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthChecks := map[string]func(ctx context.Context) error{
		"database": db.PingContext,
	}

	// Connect to Redis. The cache is assigned only on success so the handler
	// never sees a typed nil.
	var debateCache handlers.DebateCache
	var wsHandler *websocket.Handler
	redis, err := cache.NewRedisClient(cfg.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB, cfg.Cache.DebateTTL)
	if err != nil {
		logr.Warn("Running without Redis: public cache and live feed disabled", "error", err)
	} else {
		defer redis.Close()
		debateCache = redis
		healthChecks["redis"] = redis.Ping

		hub := websocket.NewHub(redis, logr)
		go hub.Run(ctx)
		wsHandler = websocket.NewHandler(hub, cfg.CORS.AllowedOrigins, logr)
	}

	debateRepo := repository.NewDebateRepository(db)
	debateHandler := handlers.NewDebateHandler(debateRepo, debateCache, logr, m, cfg.IsProduction())

	var authHandler *handlers.AuthHandler
	var jwtService *auth.JWTService
	if cfg.Auth.Enabled {
		jwtService = auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiryHours)
		authHandler = handlers.NewAuthHandler(cfg.Auth.Username, cfg.Auth.PasswordHash, jwtService, logr)
	} else {
		logr.Warn("Admin authentication is disabled; /api routes are open")
	}

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.WritesPerSecond)
	rateLimiter.Cleanup(time.Minute, ctx.Done())

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := server.NewRouter(server.RouterConfig{
		Debates:        debateHandler,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RateLimiter:    rateLimiter,
		Log:            logr,
		Auth:           authHandler,
		JWTService:     jwtService,
		LiveFeed:       wsHandler,
		Metrics:        m,
		MetricsHandler: metricsHandler,
		HealthChecks:   healthChecks,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logr.Info("Starting Imuhira server", "addr", srv.Addr, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logr.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logr.Error("Server stopped with error", "error", err)
	}
}
