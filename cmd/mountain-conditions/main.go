package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/mountain-conditions/internal/api/http"
	"github.com/i474232898/mountain-conditions/internal/config"
	"github.com/i474232898/mountain-conditions/internal/observability"
	"github.com/i474232898/mountain-conditions/internal/scheduler"
	"github.com/i474232898/mountain-conditions/internal/store"
	"github.com/i474232898/mountain-conditions/internal/weather"
	"github.com/i474232898/mountain-conditions/internal/weather/providers"
)

func main() {
	// Load configuration (reads .env when present).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	metrics := observability.NewMetrics()

	// Shared HTTP client and retry policy for outbound provider calls.
	clientCfg := providers.HTTPClientConfig{
		Client: &http.Client{Timeout: cfg.HTTPTimeout},
		Backoff: providers.BackoffConfig{
			MaxRetries: cfg.FetchMaxRetries,
			Unit:       cfg.FetchBackoffUnit,
		},
	}

	nws := providers.NewNWSProvider(clientCfg, cfg.NWSBaseURL, cfg.NWSUserAgent, metrics)

	// Current-weather sources in priority order; keyed providers only when configured.
	current := []weather.CurrentWeatherSource{
		nws,
		providers.NewOpenMeteoProvider(clientCfg, cfg.OpenMeteoBaseURL, metrics),
	}
	if cfg.OpenWeatherAPIKey != "" {
		current = append(current, providers.NewOpenWeatherProvider(clientCfg, "", cfg.OpenWeatherAPIKey, metrics))
	}
	if cfg.WeatherAPIKey != "" {
		current = append(current, providers.NewWeatherAPIProvider(clientCfg, "", cfg.WeatherAPIKey, metrics))
	}

	sources := weather.Sources{
		Station:        providers.NewSnotelProvider(clientCfg, cfg.SnotelBaseURL, metrics),
		Forecast:       nws,
		CurrentWeather: current,
		Alerts:         nws,
	}
	if cfg.WSDOTAccessCode != "" {
		sources.Passes = providers.NewWSDOTProvider(clientCfg, cfg.WSDOTBaseURL, metrics)
		sources.PassAccessCode = cfg.WSDOTAccessCode
	} else {
		zl.Info("WSDOT_ACCESS_CODE not set; pass conditions disabled")
	}

	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge, metrics)
	service := weather.NewService(memStore, sources, cfg.Locations, cfg.StaleAfter, zl, metrics)

	sched := scheduler.New(cfg.Locations, cfg.RefreshInterval, cfg.RefreshTimeout, service, zl)
	if err := sched.Start(); err != nil {
		zl.Fatal("failed to start scheduler", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		AppName:               "mountain-conditions",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.RefreshTimeout + 5*time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"service":   "mountain-conditions",
			"locations": len(cfg.Locations),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	httpapi.RegisterRoutes(app, service)

	go func() {
		zl.Info("listening", zap.String("port", cfg.Port), zap.Int("locations", len(cfg.Locations)))
		if err := app.Listen(":" + cfg.Port); err != nil {
			zl.Error("fiber server stopped", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	// Cancel refreshes in flight before draining HTTP connections.
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		zl.Error("error during shutdown", zap.Error(err))
	}
}
