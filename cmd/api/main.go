package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dafibh/brokewise/brokewise-backend/internal/config"
	"github.com/dafibh/brokewise/brokewise-backend/internal/handler"
	"github.com/dafibh/brokewise/brokewise-backend/internal/metrics"
	"github.com/dafibh/brokewise/brokewise-backend/internal/middleware"
	"github.com/dafibh/brokewise/brokewise-backend/internal/repository/postgres"
	"github.com/dafibh/brokewise/brokewise-backend/internal/repository/ratesapi"
	"github.com/dafibh/brokewise/brokewise-backend/internal/service"
	"github.com/dafibh/brokewise/brokewise-backend/internal/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Initialize zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Apply schema migrations
	if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	log.Info().Msg("Database migrations applied")

	// Connect to database
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	// Verify database connection
	if err := pool.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Connected to database")

	// Metrics registry
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(reg)

	// Initialize repositories
	groupRepo := postgres.NewGroupRepository(pool)
	ratesClient := ratesapi.NewClient(cfg.Rates.APIURL, cfg.Rates.HTTPTimeout)

	// Initialize WebSocket hub
	hub := websocket.NewHub()
	hub.SetMetrics(appMetrics)

	// Initialize services
	rateProvider := service.NewRateProvider(ratesClient, log.Logger, service.RateProviderConfig{TTL: cfg.Rates.CacheTTL})
	rateProvider.SetMetrics(appMetrics)

	settlementService := service.NewSettlementService(rateProvider)
	settlementService.SetMetrics(appMetrics)

	groupService, err := service.NewGroupService(groupRepo)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create group service")
	}
	groupService.SetEventPublisher(hub)

	// Warm the rate cache so the first calculation does not wait on the API
	if cfg.Rates.WarmupBase != "" {
		warmCtx, warmCancel := context.WithTimeout(context.Background(), cfg.Rates.HTTPTimeout)
		if _, err := rateProvider.Refresh(warmCtx, cfg.Rates.WarmupBase); err != nil {
			log.Warn().Err(err).Str("base_currency", cfg.Rates.WarmupBase).Msg("Exchange rate warm-up failed")
		}
		warmCancel()
	}

	// Start background workers
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	cleanupWorker := service.NewCleanupWorker(groupService, log.Logger, service.CleanupWorkerConfig{
		Interval:  cfg.CleanupInterval,
		Retention: cfg.GroupRetention,
	})
	cleanupWorker.SetMetrics(appMetrics)
	cleanupWorker.Start(workerCtx)

	rateLimiter := middleware.NewRateLimiterWithConfig(cfg.RateLimitPerMinute, cfg.RateLimitBurst)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Request ID middleware
	e.Use(echomiddleware.RequestID())

	// CORS middleware
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		MaxAge:       86400,
	}))

	// Security headers middleware (helmet-like)
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	// Request logging middleware with zerolog
	e.Use(zerologMiddleware())

	// Recovery middleware
	e.Use(echomiddleware.Recover())

	// Register routes
	handler.RegisterRoutes(e, rateLimiter, handler.Handlers{
		Group:        handler.NewGroupHandler(groupService),
		Settlement:   handler.NewSettlementHandler(settlementService),
		ExchangeRate: handler.NewExchangeRateHandler(rateProvider),
		Health:       handler.NewHealthHandler(groupRepo),
		WebSocket:    handler.NewWebSocketHandler(hub, cfg.CORSOrigins),
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	cleanupWorker.Stop()
	rateLimiter.Stop()
	rateProvider.Wait()

	log.Info().Msg("Server exited")
}

// zerologMiddleware returns a middleware that logs requests using zerolog
func zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			log.Info().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Msg("request")

			return nil
		}
	}
}
