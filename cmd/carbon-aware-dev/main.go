package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	httpapi "github.com/i474232898/carbon-aware-dev/internal/api/http"
	"github.com/i474232898/carbon-aware-dev/internal/carbon"
	"github.com/i474232898/carbon-aware-dev/internal/carbon/adapters"
	"github.com/i474232898/carbon-aware-dev/internal/commits"
	"github.com/i474232898/carbon-aware-dev/internal/config"
	"github.com/i474232898/carbon-aware-dev/internal/logging"
	"github.com/i474232898/carbon-aware-dev/internal/scheduler"
	"github.com/i474232898/carbon-aware-dev/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(cfg.LogLevel)

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// State: latest reading slot, bounded history, persisted commit stats.
	latest := store.NewLatest()
	history := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
	stats, err := store.NewStatsStore(cfg.StateFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open stats store")
	}

	// Provider adapters behind the location router.
	uk := adapters.NewNationalGridAdapter(httpClient)
	eu := adapters.NewElectricityMapsAdapter(httpClient)
	router := carbon.NewRouter(uk, eu)

	service := carbon.NewService(router, latest, history, cfg.Location, cfg.ElectricityMapsAPIKey)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initial fetch so the status endpoint has data immediately.
	func() {
		fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if _, errDetails := service.Refresh(fetchCtx); errDetails != nil {
			log.Warn().Str("kind", string(errDetails.Kind)).Msg("initial carbon fetch failed")
		}
	}()

	// Periodic refresh.
	sched := scheduler.New(cfg.FetchInterval, service)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	// Commit tracking.
	tracker := commits.NewTracker(latest, stats)
	watcher := commits.NewWatcher(cfg.GitRepoPath, cfg.CommitDebounce, tracker, stats)
	if err := watcher.Start(ctx); err != nil {
		// Run without commit tracking rather than refusing to start.
		log.Warn().Err(err).Msg("commit tracking disabled")
	} else {
		defer watcher.Close()
	}

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "carbon-aware-dev",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "carbon-aware-dev",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service, tracker)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
}
