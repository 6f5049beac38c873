package storage

import (
	"context"
	"time"
)

// DefaultRunListLimit caps ListSimulationRuns when the caller passes a
// non-positive limit.
const DefaultRunListLimit = 50

// Storage abstracts persistence for plan snapshots, simulation runs and
// operational state. Lookups return (nil, nil) when no row exists.
type Storage interface {
	// Plan snapshots
	GetPlanSnapshot(ctx context.Context, source string) (*PlanSnapshot, error)
	SavePlanSnapshot(ctx context.Context, snap PlanSnapshot) error

	// Simulation runs
	SaveSimulationRun(ctx context.Context, run SimulationRun) error
	GetSimulationRun(ctx context.Context, id string) (*SimulationRun, error)
	ListSimulationRuns(ctx context.Context, limit int) ([]SimulationRun, error)

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Email configuration
	GetEmailConfig(ctx context.Context) (*EmailConfig, error)
	SaveEmailConfig(ctx context.Context, config EmailConfig) error

	// Scheduled jobs and cross-instance locking
	AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error)
	ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error)
	UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error
	GetScheduledJob(ctx context.Context, name string) (*ScheduledJob, error)

	Ping(ctx context.Context) error

	// Close releases any resources (no-op for in-memory).
	Close() error
}
