// Package refresh runs the periodic catalog refresh job: every source is
// fetched, published structures are snapshotted to storage, and the run
// outcome is recorded for health checks. An advisory lock keeps the job
// single-flight across instances.
package refresh

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/alerting"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/catalog"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/metrics"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/ratesource"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/storage"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/tariff"
)

const (
	// JobName keys the scheduled_jobs row and the job metrics.
	JobName = "tariff_refresh"

	// ScheduleSettingKey overrides the configured schedule at runtime.
	ScheduleSettingKey = "refresh.schedule"

	// LastSuccessSettingKey holds the RFC3339 timestamp of the last
	// successful pass. Health checks read it.
	LastSuccessSettingKey = "refresh.last_success"

	// lockKey identifies the refresh job in advisory-lock space.
	lockKey int64 = 724001

	pollInterval = 10 * time.Second
)

// Config tunes the worker.
type Config struct {
	// Schedule is either integer seconds or a cron expression in the
	// robfig/cron standard format (@every accepted). The
	// "refresh.schedule" setting in storage takes precedence when set.
	Schedule string
	// Timeout bounds a single source fetch.
	Timeout time.Duration
}

// Worker drives periodic catalog refreshes.
type Worker struct {
	catalog *catalog.Catalog
	sources []catalog.Source
	store   storage.Storage
	alerter *alerting.Alerter
	cfg     Config
	log     zerolog.Logger
}

// New builds a Worker. The alerter may be nil when webhook alerting is not
// configured.
func New(cat *catalog.Catalog, sources []catalog.Source, store storage.Storage, alerter *alerting.Alerter, cfg Config, logger zerolog.Logger) *Worker {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 6h"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Worker{
		catalog: cat,
		sources: sources,
		store:   store,
		alerter: alerter,
		cfg:     cfg,
		log:     logger.With().Str("component", "refresh").Logger(),
	}
}

// Run blocks until ctx is cancelled. The first pass runs on the first poll
// tick; after that the schedule decides. The schedule setting is re-read on
// every tick so operators can change it without a restart.
func (w *Worker) Run(ctx context.Context) error {
	schedule := w.cfg.Schedule
	if val, err := w.store.GetSetting(ctx, ScheduleSettingKey); err == nil && val != "" {
		schedule = val
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	nextRun := time.Now()

	w.log.Info().
		Str("schedule", schedule).
		Int("sources", len(w.sources)).
		Msg("refresh worker starting")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if val, err := w.store.GetSetting(ctx, ScheduleSettingKey); err == nil && val != "" && val != schedule {
				w.log.Info().Str("from", schedule).Str("to", val).Msg("refresh schedule updated")
				schedule = val
				nextRun = nextRunAfter(schedule, time.Now())
			}

			if time.Now().Before(nextRun) {
				continue
			}

			w.RunOnce(ctx)
			nextRun = nextRunAfter(schedule, time.Now())
		}
	}
}

// RunOnce executes a single refresh pass under the advisory lock. When
// another instance holds the lock the pass replays persisted snapshots
// instead of fetching, and returns nil.
func (w *Worker) RunOnce(ctx context.Context) error {
	started := time.Now()

	ok, err := w.store.AcquireAdvisoryLock(ctx, lockKey)
	if err != nil {
		w.log.Error().Err(err).Msg("acquire advisory lock failed")
		metrics.UpdateJobMetrics(JobName, started, err)
		return err
	}
	if !ok {
		w.log.Info().Msg("advisory lock held elsewhere, rehydrating from snapshots")
		w.rehydrate(ctx)
		return nil
	}

	var failures []alerting.SourceFailure
	func() {
		defer func() {
			if _, err := w.store.ReleaseAdvisoryLock(ctx, lockKey); err != nil {
				w.log.Error().Err(err).Msg("release advisory lock failed")
			}
		}()
		failures = w.refreshAll(ctx)
	}()

	var runErr error
	if len(failures) > 0 {
		runErr = fmt.Errorf("%d of %d sources failed: %s", len(failures), len(w.sources), failures[0].Error)
	}

	metrics.UpdateJobMetrics(JobName, started, runErr)
	dur := time.Since(started)
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	if err := w.store.UpdateScheduledJob(ctx, JobName, started, dur, runErr == nil, errMsg); err != nil {
		w.log.Error().Err(err).Msg("record job outcome failed")
	}

	if runErr == nil {
		if err := w.store.SetSetting(ctx, LastSuccessSettingKey, started.UTC().Format(time.RFC3339)); err != nil {
			w.log.Error().Err(err).Msg("record last success failed")
		}
		w.log.Info().Dur("duration", dur).Msg("refresh completed")
		return nil
	}

	w.log.Error().Err(runErr).Dur("duration", dur).Msg("refresh completed with failures")

	if w.alerter != nil {
		alert := alerting.JobAlert{
			JobName:       JobName,
			TotalSources:  len(w.sources),
			SuccessCount:  len(w.sources) - len(failures),
			FailedCount:   len(failures),
			Duration:      dur,
			FailedDetails: failures,
			Timestamp:     started,
		}
		if err := w.alerter.SendJobAlert(ctx, alert); err != nil {
			w.log.Error().Err(err).Msg("send alert failed")
		}
	}
	return runErr
}

// rehydrate replays the latest persisted snapshots into the local catalog
// while another instance runs the upstream refresh, so a lock-skipped
// instance keeps pace without double-fetching.
func (w *Worker) rehydrate(ctx context.Context) {
	for _, src := range w.sources {
		if _, ok := src.(*ratesource.StorageSource); ok {
			continue
		}
		replay := ratesource.NewStorageSource(w.store, src.Name())
		if _, err := w.catalog.Refresh(ctx, replay); err != nil {
			w.log.Debug().Err(err).Str("source", src.Name()).Msg("snapshot replay skipped")
		}
	}
}

func (w *Worker) refreshAll(ctx context.Context) []alerting.SourceFailure {
	var failures []alerting.SourceFailure
	for _, src := range w.sources {
		if err := w.refreshOne(ctx, src); err != nil {
			w.log.Error().Err(err).Str("source", src.Name()).Msg("source refresh failed")
			failures = append(failures, alerting.SourceFailure{Source: src.Name(), Error: err.Error()})
		}
	}
	return failures
}

func (w *Worker) refreshOne(ctx context.Context, src catalog.Source) error {
	fetchCtx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	published, err := w.catalog.Refresh(fetchCtx, src)
	if err != nil {
		return err
	}
	return w.snapshot(ctx, src, published)
}

// snapshot persists the published batch so the catalog can be rehydrated
// when the upstream is unavailable. Storage-backed sources read the very
// snapshot this would write, so they are skipped.
func (w *Worker) snapshot(ctx context.Context, src catalog.Source, published []*tariff.RateStructure) error {
	if _, ok := src.(*ratesource.StorageSource); ok {
		return nil
	}
	if len(published) == 0 {
		return nil
	}

	payload, err := ratesource.EncodePlans(published)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := w.store.SavePlanSnapshot(ctx, storage.PlanSnapshot{
		Source:    src.Name(),
		Payload:   payload,
		FetchedAt: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// nextRunAfter resolves a schedule that is either integer seconds or a cron
// expression. Unparseable schedules fall back to six hours.
func nextRunAfter(schedule string, from time.Time) time.Time {
	if v, err := strconv.Atoi(schedule); err == nil && v > 0 {
		return from.Add(time.Duration(v) * time.Second)
	}
	if sched, err := cron.ParseStandard(schedule); err == nil {
		return sched.Next(from)
	}
	return from.Add(6 * time.Hour)
}
