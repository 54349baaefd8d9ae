package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"pondops/editor-core/internal/config"
	"pondops/editor-core/internal/db"
	"pondops/editor-core/internal/geocode"
	"pondops/editor-core/internal/httpapi"
	"pondops/editor-core/internal/journal"
	"pondops/editor-core/internal/metrics"
	"pondops/editor-core/internal/persist"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger := httpapi.NewLogger("info")
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	logger := httpapi.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	deps := httpapi.Deps{Metrics: m}

	if cfg.DatabaseURL != "" {
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		j := journal.New(logger, pool)
		if err := j.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare journal schema")
		}
		deps.Pool = pool
		deps.Observer = j
	}

	if cfg.Geocoder.AccessToken != "" {
		deps.Geocoder = geocode.NewClient(logger, cfg.Geocoder.BaseURL, cfg.Geocoder.AccessToken,
			time.Duration(cfg.Geocoder.TimeoutMS)*time.Millisecond)
		deps.Search = geocode.Options{
			Debounce: time.Duration(cfg.Search.DebounceMS) * time.Millisecond,
			Limit:    cfg.Search.Limit,
		}
	} else {
		logger.Warn().Msg("no geocoder token configured, location search disabled")
	}

	if cfg.Persistence.BaseURL != "" {
		clientID := cfg.ClientID
		if clientID == "" {
			clientID = uuid.NewString()
			logger.Warn().Str("client_id", clientID).Msg("no client id configured, generated an ephemeral one")
		}
		deps.Persister = persist.NewClient(logger, cfg.Persistence.BaseURL, clientID,
			time.Duration(cfg.Persistence.TimeoutMS)*time.Millisecond)
	} else {
		logger.Warn().Msg("no persistence backend configured, edits stay in memory")
	}

	h := httpapi.NewHandler(logger, deps)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("editor-core listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	h.CloseAll()
	logger.Info().Msg("shutdown complete")
}
