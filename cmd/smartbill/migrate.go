package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/config"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/migrate"
)

var (
	flagMigrateDriver string
	flagMigrateDSN    string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(migrate.Up)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(migrate.Down)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print migration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(migrate.Status)
	},
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&flagMigrateDriver, "driver", "", "Database driver (defaults to DB_DRIVER)")
	migrateCmd.PersistentFlags().StringVar(&flagMigrateDSN, "dsn", "", "Connection string (defaults to DATABASE_URL or SQLITE_PATH)")
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func runMigrate(fn func(ctx context.Context, driver, dsn string) error) error {
	cfg := config.FromEnv()
	if flagMigrateDriver != "" {
		cfg.DBDriver = flagMigrateDriver
	}
	dsn := flagMigrateDSN
	if dsn == "" {
		dsn = dsnFor(cfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return fn(ctx, cfg.DBDriver, dsn)
}
