package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/alerting"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/api"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/catalog"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/config"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/logging"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/notification"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/ratesource"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/refresh"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/simulate"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/storage"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/tariff"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/tariffcache"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server with the embedded refresh worker",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func runServe() {
	cfg := config.FromEnv()
	logger := logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "smartbill",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, storage.Config{Driver: cfg.DBDriver, DSN: dsnFor(cfg)})
	if err != nil {
		logger.Fatal().Err(err).Msg("open storage failed")
	}
	defer store.Close()

	cat := catalog.New(logger)
	cache := tariffcache.New(cfg.CacheCapacity, logger)
	sim := simulate.New(cat, cache, logger)
	notifier := notification.NewService(store, logger)

	if len(cfg.NotifyEmails) > 0 {
		registerRateChangeEmails(cat, notifier, cfg.NotifyEmails, logger)
	}

	sources := buildSources(cfg)
	seedCatalog(ctx, cat, store, sources, logger)

	alerter := alerting.NewAlerter(alerting.NewConfig(cfg.AlertWebhookURL), logger)
	worker := refresh.New(cat, sources, store, alerter, refresh.Config{
		Schedule: cfg.RefreshSchedule,
		Timeout:  cfg.RefreshTimeout,
	}, logger)
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("refresh worker stopped")
		}
	}()

	srv := api.NewServer(cat, cache, sim, store, notifier, worker, logger)

	h := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 15 * time.Second,
		// No WriteTimeout: manual refresh passes and long simulations
		// carry their own deadlines.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}
	}()

	logger.Info().
		Str("addr", h.Addr).
		Str("driver", cfg.DBDriver).
		Int("plans", cat.Len()).
		Msg("smartbill listening")
	if err := h.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server failed")
	}
	logger.Info().Msg("server stopped")
}

// dsnFor picks the connection string matching the configured driver.
func dsnFor(cfg config.Config) string {
	switch cfg.DBDriver {
	case "sqlite":
		return cfg.SQLitePath
	case "postgres", "pgx", "postgrespool":
		return cfg.DatabaseURL
	}
	return ""
}

// buildSources assembles the refresh sources: the plans file (or the
// embedded default set) always, tariff sheet PDFs when a directory is
// configured.
func buildSources(cfg config.Config) []catalog.Source {
	sources := []catalog.Source{ratesource.NewFileSource(cfg.PlansPath)}
	if cfg.TariffSheetDir != "" {
		sources = append(sources, ratesource.NewSheetSource(cfg.TariffSheetDir))
	}
	return sources
}

// seedCatalog loads every source once at boot so the server is ready before
// the first scheduled refresh. A source that fails is replayed from its last
// persisted snapshot, so a dead upstream does not block startup.
func seedCatalog(ctx context.Context, cat *catalog.Catalog, store storage.Storage, sources []catalog.Source, logger zerolog.Logger) {
	for _, src := range sources {
		_, err := cat.Refresh(ctx, src)
		if err == nil {
			continue
		}
		logger.Warn().Err(err).Str("source", src.Name()).Msg("seed fetch failed, replaying snapshot")
		fallback := ratesource.NewStorageSource(store, src.Name())
		if _, err := cat.Refresh(ctx, fallback); err != nil {
			logger.Error().Err(err).Str("source", src.Name()).Msg("snapshot replay failed")
		}
	}
	if cat.Len() == 0 {
		logger.Warn().Msg("catalog empty after seeding, simulations will fail until a refresh succeeds")
	}
}

// registerRateChangeEmails emails the recipients whenever a refresh
// publishes a materially different version of a plan. Catalog seeding and
// no-change republishes stay quiet.
func registerRateChangeEmails(cat *catalog.Catalog, notifier *notification.Service, recipients []string, logger zerolog.Logger) {
	cat.OnPublish(func(rs *tariff.RateStructure) {
		versions, err := cat.Versions(rs.PlanID)
		if err != nil || len(versions) < 2 {
			return
		}
		prev := versions[len(versions)-2]
		if !materialChange(prev, rs) {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := notifier.NotifyRateChange(ctx, rs, recipients); err != nil {
				logger.Error().Err(err).Str("plan", rs.PlanID).Msg("rate change notification failed")
			}
		}()
	})
}

// materialChange compares two plan versions with the publish stamp masked.
// Decimals normalize through their JSON form, so 1.50 and 1.5 compare equal.
func materialChange(prev, next *tariff.RateStructure) bool {
	a, b := *prev, *next
	a.Version, b.Version = 0, 0
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return true
	}
	return !bytes.Equal(ja, jb)
}
