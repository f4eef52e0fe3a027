package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"spatia/internal/archive"
	"spatia/internal/cost"
	"spatia/internal/http/handlers"
	httpapi "spatia/internal/http/httpapi"
	"spatia/internal/infra"
	"spatia/internal/infra/credentials"
	"spatia/internal/infra/geoip"
	"spatia/internal/jobs"
	"spatia/internal/metrics"
	"spatia/internal/middleware"
	"spatia/internal/viewer"
	"spatia/internal/viewer/splat"
	"spatia/internal/worldlabs"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres is optional: credential fallback and the outcome archive.
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	var (
		store    *credentials.Store
		recorder *archive.Recorder
	)
	if dbpool != nil {
		defer dbpool.Close()
		runner := infra.NewSQLRunner(dbpool, &logger)
		store = credentials.NewStore(runner)
		recorder = archive.NewRecorder(runner)
		if err := recorder.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare schema")
		}
	}

	apiKey, err := credentials.ResolveAPIKey(ctx, cfg.WorldLabsAPIKey, store)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to read stored api key")
	}
	if apiKey == "" {
		logger.Warn().Msg("WORLDLABS_API_KEY not configured; generation requests will fail")
	}

	collector := metrics.NewCollector("spatia")
	client := worldlabs.NewClient(worldlabs.Options{
		APIKey:         apiKey,
		BaseURL:        cfg.WorldLabsBaseURL,
		Logger:         &logger,
		RequestTimeout: cfg.UpstreamTimeout,
	})

	jobOpts := jobs.Options{
		Remote:       client,
		PollInterval: cfg.PollInterval,
		Concurrency:  cfg.PollConcurrency,
		Logger:       &logger,
		Events:       jobs.NewEventBus(cfg.EventBufferSize),
		Metrics:      collector,
	}
	if recorder != nil {
		jobOpts.Recorder = recorder
	}
	svc := jobs.NewService(ctx, jobOpts)
	defer svc.Close()

	manager := viewer.NewManager(ctx, viewer.Options{
		NewRenderer: splat.Factory(splat.Options{
			HTTPClient: &http.Client{Timeout: cfg.RelayTimeout},
			MaxBytes:   cfg.RelayMaxBytes,
			Logger:     &logger,
		}),
		RelayBase:     cfg.RelayBaseURL,
		FrameInterval: cfg.FrameInterval,
		Logger:        &logger,
		Metrics:       collector,
	})
	defer manager.Close()

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	var lookup middleware.CountryLookup
	if resolver != nil {
		defer resolver.Close()
		lookup = resolver.CountryCode
	}

	app := &handlers.App{
		WorldLabs:     client,
		Jobs:          svc,
		Viewer:        manager,
		Cost:          cost.NewCalculator(),
		Archive:       recorder,
		Metrics:       collector,
		Logger:        &logger,
		RelayClient:   &http.Client{Timeout: cfg.RelayTimeout},
		RelayMaxBytes: cfg.RelayMaxBytes,
	}
	router := httpapi.NewRouter(ctx, app, httpapi.Options{
		Logger:          &logger,
		Metrics:         collector,
		CORSOrigins:     cfg.CORSAllowedOrigins,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   lookup,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
