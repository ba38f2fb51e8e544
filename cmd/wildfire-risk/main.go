package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpapi "github.com/i474232898/wildfire-risk-aggregation/internal/api/http"
	"github.com/i474232898/wildfire-risk-aggregation/internal/cache"
	"github.com/i474232898/wildfire-risk-aggregation/internal/config"
	"github.com/i474232898/wildfire-risk-aggregation/internal/engine"
	"github.com/i474232898/wildfire-risk-aggregation/internal/events"
	"github.com/i474232898/wildfire-risk-aggregation/internal/geocode"
	"github.com/i474232898/wildfire-risk-aggregation/internal/imagery"
	"github.com/i474232898/wildfire-risk-aggregation/internal/observability"
	"github.com/i474232898/wildfire-risk-aggregation/internal/prediction"
	"github.com/i474232898/wildfire-risk-aggregation/internal/report"
	"github.com/i474232898/wildfire-risk-aggregation/internal/scheduler"
	"github.com/i474232898/wildfire-risk-aggregation/internal/weather"
	"github.com/i474232898/wildfire-risk-aggregation/internal/weather/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	// Per-call deadlines come from contexts; this client only pools
	// connections.
	httpClient := &http.Client{}

	store := cache.NewMemory(clock, metrics)

	var history weather.HistoryProvider
	switch cfg.HistoricalWeatherProvider {
	case "openmeteo":
		history = providers.NewOpenMeteoProvider(httpClient)
	default:
		history = providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey)
	}
	weatherSvc := weather.NewService(
		providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey),
		history,
		store,
		clock,
		logger,
	)

	var geocoder geocode.Provider
	switch cfg.GeocoderProvider {
	case "google":
		geocoder = geocode.NewGoogleProvider(cfg.GoogleGeocodingAPIKey)
	default:
		geocoder = geocode.NewNominatimProvider(httpClient, cfg.NominatimUserAgent)
	}
	resolver := geocode.NewResolver(geocoder, store, clock, logger, metrics)

	eng := engine.NewClient(engine.Config{
		BaseURL:         cfg.EngineBaseURL,
		CredentialsFile: cfg.EngineCredentialsFile,
	}, httpClient, logger, metrics)

	sched := scheduler.New(logger)
	if err := sched.ScheduleEngineInit(eng, cfg.EngineInitInterval); err != nil {
		log.Fatalf("failed to schedule engine initialization: %v", err)
	}
	if err := sched.ScheduleCacheSweep(store, cfg.CacheSweepInterval); err != nil {
		log.Fatalf("failed to schedule cache sweep: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	sources := report.Sources{
		Index:    imagery.NewCalculator(eng, store, logger),
		Baseline: imagery.NewLocator(eng, clock, logger, metrics, imagery.DefaultStrategies()...),
		Weather:  weatherSvc,
		Location: resolver,
	}
	if cfg.PublishingEnabled() {
		publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaReportTopic, logger, metrics)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("closing report publisher", "error", err)
			}
		}()
		sources.Publisher = publisher
		logger.Info("publishing reports to kafka", "topic", cfg.KafkaReportTopic)
	}
	assembler := report.NewAssembler(sources, clock, logger, metrics)

	predictor := prediction.NewService(
		prediction.NewFeatureBuilder(eng, clock),
		prediction.NewClient(httpClient, clock, cfg.MLServiceURL, cfg.FireTypeServiceURL, metrics),
		logger,
	)

	app := httpapi.NewApp(httpapi.Options{
		CORSOrigin:      cfg.CORSOrigin,
		RateLimitMax:    cfg.RateLimitMax,
		RateLimitWindow: cfg.RateLimitWindow,
		RequestTimeout:  cfg.RequestTimeout,
	}, httpapi.Deps{
		Reports:   assembler,
		Predictor: predictor,
		Readiness: eng.Lifecycle(),
		Logger:    logger,
	})

	go func() {
		logger.Info("http server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "error", err)
		os.Exit(1)
	}
}
