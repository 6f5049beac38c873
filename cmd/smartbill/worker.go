package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/alerting"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/catalog"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/config"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/logging"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/refresh"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/storage"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the catalog refresh worker without the API server",
	Long:  `Runs scheduled refresh passes against the configured rate sources, persisting snapshots and job outcomes to shared storage. API instances pick up the results through their own refresh cycle.`,
	Run: func(cmd *cobra.Command, args []string) {
		runWorker()
	},
}

func runWorker() {
	cfg := config.FromEnv()
	logger := logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "smartbill-worker",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, storage.Config{Driver: cfg.DBDriver, DSN: dsnFor(cfg)})
	if err != nil {
		logger.Fatal().Err(err).Msg("open storage failed")
	}
	defer store.Close()

	cat := catalog.New(logger)
	sources := buildSources(cfg)
	alerter := alerting.NewAlerter(alerting.NewConfig(cfg.AlertWebhookURL), logger)

	worker := refresh.New(cat, sources, store, alerter, refresh.Config{
		Schedule: cfg.RefreshSchedule,
		Timeout:  cfg.RefreshTimeout,
	}, logger)

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("refresh worker failed")
	}
	logger.Info().Msg("worker stopped")
}
