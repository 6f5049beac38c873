// Package migrate applies the goose schema migrations embedded in the
// binary. The schema carries plan snapshots, simulation runs, settings,
// email configuration and scheduled job state. SQLite and Postgres get
// separate migration sets because their type systems differ.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var embedMigrations embed.FS

// Up applies all pending migrations for the driver.
func Up(ctx context.Context, driver, dsn string) error {
	return run(ctx, driver, dsn, goose.UpContext)
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, driver, dsn string) error {
	return run(ctx, driver, dsn, goose.DownContext)
}

// Status reports the applied and pending state of every known migration.
func Status(ctx context.Context, driver, dsn string) error {
	return run(ctx, driver, dsn, goose.StatusContext)
}

func run(ctx context.Context, driver, dsn string, op func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error) error {
	sqlDriver, dialect, dir, err := resolve(driver)
	if err != nil {
		return err
	}

	goose.SetBaseFS(embedMigrations)
	goose.SetTableName("schema_migrations")
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}

	if dsn == "" {
		dsn = "smartbill.db"
	}
	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	return op(ctx, db, dir)
}

// resolve maps a storage driver name onto the database/sql driver to dial,
// the goose dialect, and the migration directory for that dialect.
func resolve(driver string) (sqlDriver, dialect, dir string, err error) {
	switch driver {
	case "", "sqlite", "sqlite3":
		return "sqlite", "sqlite3", "migrations/sqlite", nil
	case "postgres", "pgx", "postgrespool":
		return "pgx", "postgres", "migrations/postgres", nil
	default:
		return "", "", "", fmt.Errorf("no migrations for driver %q", driver)
	}
}
