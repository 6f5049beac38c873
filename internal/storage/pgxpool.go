package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/metrics"
)

const poolStatsInterval = 30 * time.Second

// PgxPoolStorage implements Storage directly on a pgx connection pool. It is
// the preferred backend for multi-instance deployments: advisory locks are
// native and pool health is exported as metrics.
type PgxPoolStorage struct {
	pool *pgxpool.Pool
	stop chan struct{}
}

func OpenPgxPool(ctx context.Context, dsn string) (*PgxPoolStorage, error) {
	if dsn == "" {
		dsn = "postgres://localhost:5432/smartbill?sslmode=disable"
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := &PgxPoolStorage{pool: pool, stop: make(chan struct{})}
	go s.reportPoolStats()
	return s, nil
}

func (s *PgxPoolStorage) reportPoolStats() {
	ticker := time.NewTicker(poolStatsInterval)
	defer ticker.Stop()
	var lastAcquires int64
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			stat := s.pool.Stat()
			// AcquireCount is cumulative; export the delta since the last tick.
			acquires := stat.AcquireCount()
			delta := acquires - lastAcquires
			lastAcquires = acquires
			metrics.UpdateDBPoolMetrics("pgx",
				float64(stat.TotalConns()), float64(stat.IdleConns()), float64(stat.AcquiredConns()),
				uint64(delta))
		}
	}
}

func (s *PgxPoolStorage) Close() error {
	close(s.stop)
	s.pool.Close()
	return nil
}

func (s *PgxPoolStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PgxPoolStorage) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS plan_snapshots (
			id SERIAL PRIMARY KEY,
			source TEXT NOT NULL,
			payload BYTEA NOT NULL,
			fetched_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_plan_snapshots_source ON plan_snapshots(source, fetched_at DESC);`,
		`CREATE TABLE IF NOT EXISTS simulation_runs (
			id TEXT PRIMARY KEY,
			start_month TEXT NOT NULL,
			months INTEGER NOT NULL,
			scenarios INTEGER NOT NULL,
			payload BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS scheduled_jobs (
			name TEXT PRIMARY KEY,
			last_run_at TIMESTAMPTZ,
			last_duration_ms BIGINT,
			last_success INTEGER,
			last_error TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS email_configs (
			id TEXT PRIMARY KEY,
			provider TEXT,
			host TEXT,
			port INTEGER,
			username TEXT,
			password TEXT,
			from_address TEXT,
			from_name TEXT,
			api_key TEXT,
			encryption TEXT,
			enabled BOOLEAN,
			created_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Plan snapshots

func (s *PgxPoolStorage) GetPlanSnapshot(ctx context.Context, source string) (*PlanSnapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, payload, fetched_at
		FROM plan_snapshots
		WHERE source=$1
		ORDER BY fetched_at DESC, id DESC
		LIMIT 1
	`, source)

	snap := PlanSnapshot{Source: source}
	if err := row.Scan(&snap.ID, &snap.Payload, &snap.FetchedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &snap, nil
}

func (s *PgxPoolStorage) SavePlanSnapshot(ctx context.Context, snap PlanSnapshot) error {
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO plan_snapshots (source, payload, fetched_at)
		VALUES ($1,$2,$3)
	`, snap.Source, snap.Payload, snap.FetchedAt)
	return err
}

// Simulation runs

func (s *PgxPoolStorage) SaveSimulationRun(ctx context.Context, run SimulationRun) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO simulation_runs (id, start_month, months, scenarios, payload, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET
			start_month=EXCLUDED.start_month,
			months=EXCLUDED.months,
			scenarios=EXCLUDED.scenarios,
			payload=EXCLUDED.payload
	`, run.ID, run.StartMonth, run.Months, run.Scenarios, run.Payload, run.CreatedAt)
	return err
}

func (s *PgxPoolStorage) GetSimulationRun(ctx context.Context, id string) (*SimulationRun, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, start_month, months, scenarios, payload, created_at
		FROM simulation_runs
		WHERE id=$1
	`, id)

	var run SimulationRun
	if err := row.Scan(&run.ID, &run.StartMonth, &run.Months, &run.Scenarios, &run.Payload, &run.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (s *PgxPoolStorage) ListSimulationRuns(ctx context.Context, limit int) ([]SimulationRun, error) {
	if limit <= 0 {
		limit = DefaultRunListLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, start_month, months, scenarios, payload, created_at
		FROM simulation_runs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SimulationRun
	for rows.Next() {
		var run SimulationRun
		if err := rows.Scan(&run.ID, &run.StartMonth, &run.Months, &run.Scenarios, &run.Payload, &run.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Settings

func (s *PgxPoolStorage) GetSetting(ctx context.Context, key string) (string, error) {
	row := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key=$1`, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

func (s *PgxPoolStorage) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (key) DO UPDATE SET
			value=EXCLUDED.value,
			updated_at=EXCLUDED.updated_at
	`, key, value, time.Now())
	return err
}

// Email config

func (s *PgxPoolStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, provider, host, port, username, password, from_address, from_name, api_key, encryption, enabled, created_at, updated_at
		FROM email_configs
		LIMIT 1
	`)

	var config EmailConfig
	if err := row.Scan(&config.ID, &config.Provider, &config.Host, &config.Port, &config.Username,
		&config.Password, &config.FromAddress, &config.FromName, &config.APIKey,
		&config.Encryption, &config.Enabled, &config.CreatedAt, &config.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &config, nil
}

func (s *PgxPoolStorage) SaveEmailConfig(ctx context.Context, config EmailConfig) error {
	if config.ID == "" {
		config.ID = "default"
	}
	if config.CreatedAt.IsZero() {
		config.CreatedAt = time.Now()
	}
	config.UpdatedAt = time.Now()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO email_configs (id, provider, host, port, username, password, from_address, from_name, api_key, encryption, enabled, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE SET
			provider=EXCLUDED.provider,
			host=EXCLUDED.host,
			port=EXCLUDED.port,
			username=EXCLUDED.username,
			password=EXCLUDED.password,
			from_address=EXCLUDED.from_address,
			from_name=EXCLUDED.from_name,
			api_key=EXCLUDED.api_key,
			encryption=EXCLUDED.encryption,
			enabled=EXCLUDED.enabled,
			updated_at=EXCLUDED.updated_at
	`, config.ID, config.Provider, config.Host, config.Port, config.Username, config.Password,
		config.FromAddress, config.FromName, config.APIKey, config.Encryption, config.Enabled,
		config.CreatedAt, config.UpdatedAt)
	return err
}

// Scheduled jobs and locking

func (s *PgxPoolStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key)
	var ok bool
	err := row.Scan(&ok)
	return ok, err
}

func (s *PgxPoolStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, key)
	var ok bool
	err := row.Scan(&ok)
	return ok, err
}

func (s *PgxPoolStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	status := 0
	if success {
		status = 1
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scheduled_jobs (name, last_run_at, last_duration_ms, last_success, last_error)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (name) DO UPDATE SET
			last_run_at=EXCLUDED.last_run_at,
			last_duration_ms=EXCLUDED.last_duration_ms,
			last_success=EXCLUDED.last_success,
			last_error=EXCLUDED.last_error
	`, name, started, dur.Milliseconds(), status, errMsg)
	return err
}

func (s *PgxPoolStorage) GetScheduledJob(ctx context.Context, name string) (*ScheduledJob, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT name, last_run_at, last_duration_ms, last_success, last_error
		FROM scheduled_jobs
		WHERE name=$1
	`, name)

	var job ScheduledJob
	if err := row.Scan(&job.Name, &job.LastRunAt, &job.LastDurationMs, &job.LastSuccess, &job.LastError); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}
