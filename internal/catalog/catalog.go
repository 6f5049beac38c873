package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/metrics"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/tariff"
)

// ErrPlanNotFound matches any PlanNotFoundError via errors.Is.
var ErrPlanNotFound = errors.New("plan not found")

// ErrRefreshTimeout is returned when a catalog refresh is cut short by its
// context deadline.
var ErrRefreshTimeout = errors.New("catalog refresh timed out")

// PlanNotFoundError reports a lookup for a plan the catalog does not carry,
// or one whose versions do not cover the requested date. Lookups never fall
// back to another plan.
type PlanNotFoundError struct {
	PlanID string
	AsOf   time.Time
}

func (e *PlanNotFoundError) Error() string {
	if e.AsOf.IsZero() {
		return fmt.Sprintf("plan %q not found", e.PlanID)
	}
	return fmt.Sprintf("plan %q has no version effective on %s", e.PlanID, e.AsOf.Format("2006-01-02"))
}

func (e *PlanNotFoundError) Is(target error) bool {
	return target == ErrPlanNotFound
}

// Source supplies rate structures for a refresh.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]*tariff.RateStructure, error)
}

// PublishHook observes successful publishes. Hooks run after the catalog
// state is updated and outside its lock, so a hook may call back into the
// catalog.
type PublishHook func(rs *tariff.RateStructure)

// Catalog is the in-memory registry of published rate structures. Versions
// are append-only: a publish never rewrites an earlier version, it stamps a
// fresh monotonically increasing version number and appends. Readers always
// see either the catalog before a publish or after it, never a partial
// state.
type Catalog struct {
	mu    sync.RWMutex
	plans map[string][]*tariff.RateStructure
	// lastVersion is the most recently assigned stamp, shared across all
	// plans so any two publishes are ordered.
	lastVersion uint64
	hooks       []PublishHook

	log zerolog.Logger
}

func New(logger zerolog.Logger) *Catalog {
	return &Catalog{
		plans: make(map[string][]*tariff.RateStructure),
		log:   logger.With().Str("component", "catalog").Logger(),
	}
}

// OnPublish registers a hook invoked for every structure that is published
// from now on. Registration is not safe to interleave with publishes; wire
// hooks at startup.
func (c *Catalog) OnPublish(h PublishHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, h)
}

// Publish validates the structure, stamps it with the next version number
// and appends it to the plan's history. The catalog takes ownership of the
// structure; the caller must not mutate it afterwards.
func (c *Catalog) Publish(rs *tariff.RateStructure) error {
	if err := rs.Validate(); err != nil {
		return fmt.Errorf("publish rejected: %w", err)
	}

	c.mu.Lock()
	c.publishLocked(rs)
	hooks := c.hooks
	c.mu.Unlock()

	c.notify(hooks, rs)
	return nil
}

func (c *Catalog) publishLocked(rs *tariff.RateStructure) {
	c.lastVersion++
	rs.Version = c.lastVersion
	c.plans[rs.PlanID] = append(c.plans[rs.PlanID], rs)

	metrics.CatalogPublishesTotal.WithLabelValues(rs.PlanID).Inc()
	metrics.CatalogPlans.Set(float64(len(c.plans)))
}

func (c *Catalog) notify(hooks []PublishHook, rs *tariff.RateStructure) {
	for _, h := range hooks {
		h(rs)
	}
	c.log.Info().
		Str("plan", rs.PlanID).
		Uint64("version", rs.Version).
		Time("effective_from", rs.EffectiveFrom).
		Msg("published rate structure")
}

// Structure returns the version of the plan effective on asOf. When several
// published versions cover the date, the most recently published one wins.
// A plan with no covering version yields a PlanNotFoundError, never a
// silent fallback to another plan or version.
func (c *Catalog) Structure(planID string, asOf time.Time) (*tariff.RateStructure, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	versions, ok := c.plans[planID]
	if !ok {
		return nil, &PlanNotFoundError{PlanID: planID}
	}
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].CoversDate(asOf) {
			return versions[i], nil
		}
	}
	return nil, &PlanNotFoundError{PlanID: planID, AsOf: asOf}
}

// Latest returns the most recently published version of the plan
// regardless of effective dates.
func (c *Catalog) Latest(planID string) (*tariff.RateStructure, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	versions, ok := c.plans[planID]
	if !ok || len(versions) == 0 {
		return nil, &PlanNotFoundError{PlanID: planID}
	}
	return versions[len(versions)-1], nil
}

// Versions returns the plan's full publish history, oldest first.
func (c *Catalog) Versions(planID string) ([]*tariff.RateStructure, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	versions, ok := c.plans[planID]
	if !ok {
		return nil, &PlanNotFoundError{PlanID: planID}
	}
	out := make([]*tariff.RateStructure, len(versions))
	copy(out, versions)
	return out, nil
}

// Plans returns the known plan IDs in lexical order.
func (c *Catalog) Plans() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.plans))
	for id := range c.plans {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len reports the number of distinct plans.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.plans)
}

// Refresh fetches structures from the source and publishes them as one
// batch, returning the published batch. The batch is all-or-nothing: if any
// structure fails validation nothing is published. A fetch cut short by the
// context deadline yields ErrRefreshTimeout.
func (c *Catalog) Refresh(ctx context.Context, src Source) ([]*tariff.RateStructure, error) {
	start := time.Now()
	structures, err := c.refresh(ctx, src)
	metrics.CatalogRefreshDurationSeconds.WithLabelValues(src.Name()).Observe(time.Since(start).Seconds())

	status := "ok"
	if err != nil {
		status = "error"
		if errors.Is(err, ErrRefreshTimeout) {
			status = "timeout"
		}
	}
	metrics.CatalogRefreshTotal.WithLabelValues(src.Name(), status).Inc()
	return structures, err
}

func (c *Catalog) refresh(ctx context.Context, src Source) ([]*tariff.RateStructure, error) {
	structures, err := src.Fetch(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: source %s: %v", ErrRefreshTimeout, src.Name(), err)
		}
		return nil, fmt.Errorf("fetch from source %s: %w", src.Name(), err)
	}
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: source %s", ErrRefreshTimeout, src.Name())
		}
		return nil, err
	}

	for _, rs := range structures {
		if err := rs.Validate(); err != nil {
			return nil, fmt.Errorf("refresh from source %s aborted: %w", src.Name(), err)
		}
	}

	c.mu.Lock()
	for _, rs := range structures {
		c.publishLocked(rs)
	}
	hooks := c.hooks
	c.mu.Unlock()

	for _, rs := range structures {
		c.notify(hooks, rs)
	}

	c.log.Info().
		Str("source", src.Name()).
		Int("structures", len(structures)).
		Msg("catalog refreshed")
	return structures, nil
}
