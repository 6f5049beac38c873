package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage implementation, useful for tests and
// simple single-process deployments.
type MemoryStorage struct {
	mu       sync.RWMutex
	snaps    map[string]PlanSnapshot
	runs     map[string]SimulationRun
	runOrder []string
	settings map[string]string
	jobs     map[string]ScheduledJob
	locks    map[int64]bool
	email    *EmailConfig
}

// NewMemory returns an empty MemoryStorage.
func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		snaps:    make(map[string]PlanSnapshot),
		runs:     make(map[string]SimulationRun),
		settings: make(map[string]string),
		jobs:     make(map[string]ScheduledJob),
		locks:    make(map[int64]bool),
	}
}

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

func (m *MemoryStorage) GetPlanSnapshot(ctx context.Context, source string) (*PlanSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.snaps[source]
	if !ok {
		return nil, nil
	}
	cp := s
	return &cp, nil
}

func (m *MemoryStorage) SavePlanSnapshot(ctx context.Context, snap PlanSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now()
	}
	m.snaps[snap.Source] = snap
	return nil
}

func (m *MemoryStorage) SaveSimulationRun(ctx context.Context, run SimulationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if _, ok := m.runs[run.ID]; !ok {
		m.runOrder = append(m.runOrder, run.ID)
	}
	m.runs[run.ID] = run
	return nil
}

func (m *MemoryStorage) GetSimulationRun(ctx context.Context, id string) (*SimulationRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	cp := r
	return &cp, nil
}

// ListSimulationRuns returns runs newest-first.
func (m *MemoryStorage) ListSimulationRuns(ctx context.Context, limit int) ([]SimulationRun, error) {
	if limit <= 0 {
		limit = DefaultRunListLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SimulationRun, 0, limit)
	for i := len(m.runOrder) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[m.runOrder[i]])
	}
	return out, nil
}

func (m *MemoryStorage) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings[key], nil
}

func (m *MemoryStorage) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *MemoryStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.email == nil {
		return nil, nil
	}
	cfg := *m.email
	return &cfg, nil
}

func (m *MemoryStorage) SaveEmailConfig(ctx context.Context, config EmailConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.email = &config
	return nil
}

// AcquireAdvisoryLock tracks locks in-process so overlapping jobs within a
// single instance still skip each other.
func (m *MemoryStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[key] {
		return false, nil
	}
	m.locks[key] = true
	return true, nil
}

func (m *MemoryStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.locks[key] {
		return false, nil
	}
	delete(m.locks, key)
	return true, nil
}

func (m *MemoryStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	status := 0
	if success {
		status = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[name] = ScheduledJob{
		Name:           name,
		LastRunAt:      started,
		LastDurationMs: dur.Milliseconds(),
		LastSuccess:    status,
		LastError:      errMsg,
	}
	return nil
}

func (m *MemoryStorage) GetScheduledJob(ctx context.Context, name string) (*ScheduledJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[name]
	if !ok {
		return nil, nil
	}
	cp := j
	return &cp, nil
}
