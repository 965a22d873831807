// Package server assembles the full service from configuration: storage,
// the ingestion pipeline, the analytics chain and the HTTP surface.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/meterwise/costops/internal/api"
	"github.com/meterwise/costops/internal/config"
	"github.com/meterwise/costops/internal/services/aggregation"
	"github.com/meterwise/costops/internal/services/analytics"
	"github.com/meterwise/costops/internal/services/costing"
	"github.com/meterwise/costops/internal/services/dedup"
	"github.com/meterwise/costops/internal/services/enrich"
	"github.com/meterwise/costops/internal/services/events"
	"github.com/meterwise/costops/internal/services/normalizer"
	"github.com/meterwise/costops/internal/services/pipeline"
	"github.com/meterwise/costops/internal/services/pricing"
	"github.com/meterwise/costops/internal/services/storage"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Server is one assembled service instance.
type Server struct {
	config *config.Config
	app    *fiber.App
	db     *storage.DB
	worker *pipeline.Worker
}

// New creates a Server from an already-loaded configuration.
func New(cfg *config.Config) *Server {
	if cfg == nil {
		panic("config cannot be nil - use config.LoadFromFile() to create one")
	}
	return &Server{config: cfg}
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	setupLogLevel(s.config)

	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}
	listenAddr := ":" + port

	s.app = createFiberApp(s.config)

	db, err := initializeDatabase(s.config)
	if err != nil {
		return err
	}
	s.db = db
	defer func() {
		if err := s.db.Close(); err != nil {
			fiberlog.Errorf("Failed to close database connection: %v", err)
		}
	}()

	setupMiddleware(s.app, s.config)

	worker, err := s.initializeServices(db)
	if err != nil {
		return err
	}
	s.worker = worker
	defer s.worker.Stop()

	s.app.Get("/", welcomeHandler())

	fmt.Printf("CostOps starting on %s\n", listenAddr)
	fmt.Printf("   Environment: %s\n", s.config.Server.Environment)
	fmt.Printf("   Go version: %s\n", runtime.Version())
	fmt.Printf("   GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(listenAddr); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		fiberlog.Infof("Received signal: %v. Starting graceful shutdown...", sig)
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		fiberlog.Info("Context cancelled, starting shutdown...")
	}

	fiberlog.Info("Server shutting down gracefully...")
	if err := s.app.ShutdownWithTimeout(30 * time.Second); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	fiberlog.Info("Server shutdown completed successfully")
	return nil
}

// initializeServices wires the pipeline and analytics chain and registers
// every route group. The returned worker owns the ingestion pool.
func (s *Server) initializeServices(db *storage.DB) (*pipeline.Worker, error) {
	cfg := s.config

	dedupCache, err := dedup.New(cfg.Ingestion.Dedup)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize dedup cache: %w", err)
	}

	publisher, err := events.New(cfg.Events)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event publisher: %w", err)
	}

	costStore := storage.NewCostStore(db.DB)
	pricingStore := pricing.NewGormStore(db.DB, cfg.Ingestion.DefaultRegion)
	cachedPricing := pricing.NewCachedStore(pricingStore, cfg.PricingCache)

	norm := normalizer.New(cfg.Ingestion.TokenDiscrepancyTolerance)
	enricher := enrich.New(enrich.StaticAttributes(cfg.Enrichment.Projects), cfg.Ingestion.DefaultRegion)
	calculator := costing.New(cachedPricing, costStore, cfg.Analytics.DiscountTieBreak)

	pipe := pipeline.New(norm, dedupCache, enricher, calculator, costStore, publisher)
	worker := pipeline.NewWorker(pipe, cfg.Ingestion.Workers, cfg.Ingestion.QueueSize)

	aggregator := aggregation.New()
	analyticsService := analytics.NewService(costStore, aggregator, cfg.Analytics, publisher)

	api.NewIngestHandler(pipe, worker, costStore).RegisterRoutes(s.app, "/v1/ingest")
	api.NewCostsHandler(costStore, aggregator).RegisterRoutes(s.app, "/v1/costs")
	api.NewAnalyticsHandler(analyticsService).RegisterRoutes(s.app, "/v1/analytics")
	api.NewBudgetsHandler(analyticsService).RegisterRoutes(s.app, "/v1/budgets")
	api.NewPricingHandler(pricingStore).RegisterRoutes(s.app, "/v1/pricing")
	api.NewHealthHandler(db, pipe).RegisterRoutes(s.app)

	return worker, nil
}

func initializeDatabase(cfg *config.Config) (*storage.DB, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("database configuration is required")
	}

	db, err := storage.New(*cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	fiberlog.Infof("Database connected: %s", db.DriverName())
	return db, nil
}

func createFiberApp(cfg *config.Config) *fiber.App {
	isProd := cfg.IsProduction()

	return fiber.New(fiber.Config{
		AppName:           "CostOps v1.0",
		EnablePrintRoutes: !isProd,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		ReadBufferSize:    8192,
		WriteBufferSize:   8192,
		CaseSensitive:     true,
		ServerHeader:      "CostOps",
	})
}

func setupMiddleware(app *fiber.App, cfg *config.Config) {
	isProd := cfg.IsProduction()

	app.Use(recover.New(recover.Config{
		EnableStackTrace: !isProd,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:               1000,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}))

	allowedOrigins := cfg.Server.AllowedOrigins
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	if !isProd {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}
}

func setupLogLevel(cfg *config.Config) {
	switch cfg.GetNormalizedLogLevel() {
	case "debug":
		fiberlog.SetLevel(fiberlog.LevelDebug)
	case "warn":
		fiberlog.SetLevel(fiberlog.LevelWarn)
	case "error":
		fiberlog.SetLevel(fiberlog.LevelError)
	default:
		fiberlog.SetLevel(fiberlog.LevelInfo)
	}
}

func welcomeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "costops",
			"status":  "running",
		})
	}
}
