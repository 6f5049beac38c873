package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries the process-wide settings shared by the server, the
// worker, and the CLI. All of it comes from the environment so the same
// binary runs unchanged in containers and on bare hosts.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	// DBDriver selects the storage backend: memory, sqlite, postgres or
	// pgx. DatabaseURL is required for the postgres drivers; SQLitePath
	// for sqlite.
	DBDriver    string
	DatabaseURL string
	SQLitePath  string

	// PlansPath optionally points at a plan definition file on disk. When
	// empty the embedded plan set is used.
	PlansPath string

	// TariffSheetDir is scanned for utility tariff sheet PDFs during a
	// refresh. Empty disables PDF ingestion.
	TariffSheetDir string

	CacheCapacity int

	// RefreshSchedule is a cron expression (robfig/cron standard format,
	// @every syntax accepted) driving the catalog refresh job.
	RefreshSchedule string
	RefreshTimeout  time.Duration

	AlertWebhookURL string
	NotifyEmails    []string
}

// FromEnv builds a Config from environment variables, with sane defaults.
func FromEnv() Config {
	return Config{
		Port:            envStr("PORT", "8080"),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		LogFormat:       envStr("LOG_FORMAT", "auto"),
		DBDriver:        envStr("DB_DRIVER", "memory"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		SQLitePath:      envStr("SQLITE_PATH", "/data/smartbill.db"),
		PlansPath:       os.Getenv("PLANS_PATH"),
		TariffSheetDir:  os.Getenv("TARIFF_SHEET_DIR"),
		CacheCapacity:   envInt("TARIFF_CACHE_SIZE", 4096),
		RefreshSchedule: envStr("REFRESH_SCHEDULE", "@every 6h"),
		RefreshTimeout:  envDuration("REFRESH_TIMEOUT", 2*time.Minute),
		AlertWebhookURL: os.Getenv("ALERT_WEBHOOK_URL"),
		NotifyEmails:    envList("NOTIFY_EMAILS"),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
