package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dankozobeats/voicetracker-backend/internal/config"
	"github.com/dankozobeats/voicetracker-backend/internal/handler"
	"github.com/dankozobeats/voicetracker-backend/internal/metrics"
	"github.com/dankozobeats/voicetracker-backend/internal/middleware"
	"github.com/dankozobeats/voicetracker-backend/internal/repository/postgres"
	"github.com/dankozobeats/voicetracker-backend/internal/service"
	"github.com/dankozobeats/voicetracker-backend/internal/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
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
	if err := cfg.RequireAuth(); err != nil {
		log.Fatal().Err(err).Msg("Invalid auth configuration")
	}

	// Connect to database
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	if err := postgres.Migrate(context.Background(), pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database schema")
	}
	log.Info().Msg("Connected to database")

	// Initialize repositories
	txManager := postgres.NewTxManager(pool)
	ruleRepo := postgres.NewRecurringRuleRepository(pool)
	transactionRepo := postgres.NewTransactionRepository(pool)
	envelopeRepo := postgres.NewEnvelopeRepository(pool)
	ownerRepo := postgres.NewOwnerRepository(pool)

	// Initialize services
	recurringService := service.NewRecurringService(ruleRepo)
	envelopeService := service.NewEnvelopeService(envelopeRepo, transactionRepo, txManager)
	settlementService := service.NewSettlementService(transactionRepo, txManager)
	transactionService := service.NewTransactionService(transactionRepo, txManager, envelopeService, settlementService)
	forecastService := service.NewForecastService(ruleRepo, envelopeService)
	forecastService.SetHorizonLimits(cfg.Forecast.DefaultMonths, cfg.Forecast.MaxMonths)
	generationService := service.NewGenerationService(ruleRepo, transactionRepo, ownerRepo, txManager, envelopeService, settlementService)
	generationService.SetConcurrency(cfg.Generation.Concurrency)

	// Real-time events
	hub := websocket.NewHub()
	recurringService.SetEventPublisher(hub)
	envelopeService.SetEventPublisher(hub)
	settlementService.SetEventPublisher(hub)
	transactionService.SetEventPublisher(hub)
	generationService.SetEventPublisher(hub)

	owners, err := middleware.NewAuth0Resolver(cfg.Auth0Domain, cfg.Auth0Audience)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create owner resolver")
	}
	rateLimiter := middleware.NewRateLimiterWithConfig(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
	defer rateLimiter.Stop()

	// Background generation of the current month
	worker, err := service.NewGenerationWorker(generationService, log.Logger, service.GenerationWorkerConfig{
		Schedule:     cfg.Generation.Schedule,
		RunOnStartup: cfg.Generation.OnStartup,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create generation worker")
	}
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	worker.Start(workerCtx)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))
	e.Use(middleware.RequestLogger())
	e.Use(echomiddleware.Recover())

	if cfg.MetricsEnabled {
		if err := metrics.Register(); err != nil {
			log.Fatal().Err(err).Msg("Failed to register metrics")
		}
		defer metrics.Unregister()
		e.Use(metrics.Middleware())
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	wsHandler := handler.NewWebSocketHandler(hub, owners, cfg.CORSOrigins)
	e.GET("/ws", wsHandler.HandleWS)

	handler.RegisterRoutes(e, middleware.Authenticate(owners), rateLimiter, handler.Handlers{
		Rules:        handler.NewRuleHandler(recurringService),
		Forecast:     handler.NewForecastHandler(forecastService),
		Envelopes:    handler.NewEnvelopeHandler(envelopeService),
		Transactions: handler.NewTransactionHandler(transactionService),
		Settlements:  handler.NewSettlementHandler(settlementService),
		Generation:   handler.NewGenerationHandler(generationService),
	})

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	worker.Stop()
	hub.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
