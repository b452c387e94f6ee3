package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	httpapi "github.com/kalder/weather-staging/internal/api/http"
	"github.com/kalder/weather-staging/internal/config"
	"github.com/kalder/weather-staging/internal/orchestrator"
	"github.com/kalder/weather-staging/internal/registry"
	"github.com/kalder/weather-staging/internal/scheduler"
	"github.com/kalder/weather-staging/internal/staging"
	"github.com/kalder/weather-staging/internal/store"
	"github.com/kalder/weather-staging/internal/wx"
	"github.com/kalder/weather-staging/internal/wx/providers"
)

func main() {
	// Pre-populate credentials from a local .env if present; godotenv.Load
	// never overrides variables already set in the environment.
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	reg, err := registry.Load(registry.Options{
		Path:           cfg.RegistryPath,
		GeocoderAPIKey: cfg.GeocoderAPIKey,
	})
	if err != nil {
		zlog.Fatal("failed to load location registry", zap.Error(err))
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	var clients []wx.Client

	accu, err := providers.NewAccuWeatherClient(httpClient, cfg.AccuWeatherAPIKey)
	if err != nil {
		// A missing credential is a setup problem common to every location;
		// abort rather than fail each location individually.
		zlog.Fatal("failed to build AccuWeather client", zap.Error(err))
	}
	clients = append(clients, accu)
	clients = append(clients, providers.NewOpenMeteoClient(httpClient, nil, cfg.ForecastDays, cfg.CacheTTL))
	clients = append(clients, providers.NewNWSClient(httpClient))

	writer := staging.NewWriter(cfg.OutputDir)
	orch := orchestrator.New(reg, clients, writer, cfg.Exclusions, cfg.Parallelism, zlog)
	runs := store.NewRunStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	// Four outbound calls per location at worst: the two-step geocoded
	// forecast, the batched multi-model call, and the station scrape.
	runBudget := scheduler.RunBudget(cfg.HTTPTimeout, providers.DefaultRetry, 4, reg.Len(), cfg.Parallelism)
	sched := scheduler.New(orch, runs, cfg.FetchInterval, runBudget, zlog)
	if err := sched.Start(); err != nil {
		zlog.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-staging",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
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

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-staging",
		})
	})

	httpapi.RegisterRoutes(app, reg, runs)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			zlog.Error("fiber server stopped", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		zlog.Error("error during shutdown", zap.Error(err))
	}
}
