package simulate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/catalog"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/metrics"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/profile"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/tariff"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/tariffcache"
)

// ErrScenarioName rejects requests whose scenarios are unnamed or share a
// name.
var ErrScenarioName = errors.New("invalid scenario name")

// Scenario is one what-if to bill: a household (or a pre-built profile)
// priced under a plan, optionally with an efficiency upgrade applied.
type Scenario struct {
	Name           string            `json:"name"`
	PlanID         string            `json:"plan_id"`
	Household      profile.Household `json:"household"`
	EfficiencyGain decimal.Decimal   `json:"efficiency_gain"`

	// Profile overrides Household when set.
	Profile *profile.UsageProfile `json:"-"`
}

// Request describes a full simulation run: one horizon, several scenarios.
type Request struct {
	StartMonth string     `json:"start_month"`
	Months     int        `json:"months"`
	Scenarios  []Scenario `json:"scenarios"`

	// Baseline names the scenario the comparison is anchored to. Empty
	// selects the first scenario.
	Baseline string `json:"baseline,omitempty"`
}

// BillResult is one settled scenario-month. Amounts carry full internal
// precision; rounding to cents happens only at the presentation boundary.
type BillResult struct {
	Month       string `json:"month"`
	PlanID      string `json:"plan_id"`
	PlanVersion uint64 `json:"plan_version"`
	Events      int    `json:"events"`

	UsageKWh       decimal.Decimal `json:"usage_kwh"`
	PeakDemandKW   decimal.Decimal `json:"peak_demand_kw"`
	BilledDemandKW decimal.Decimal `json:"billed_demand_kw"`

	TierCost           decimal.Decimal `json:"tier_cost"`
	TOUAdjustment      decimal.Decimal `json:"tou_adjustment"`
	SeasonalAdjustment decimal.Decimal `json:"seasonal_adjustment"`
	EnergyCost         decimal.Decimal `json:"energy_cost"`
	DemandCharge       decimal.Decimal `json:"demand_charge"`
	FixedFee           decimal.Decimal `json:"fixed_fee"`
	Total              decimal.Decimal `json:"total"`
	Currency           string          `json:"currency"`
}

// ScenarioResult is a fully billed scenario across the horizon.
type ScenarioResult struct {
	Scenario   string          `json:"scenario"`
	PlanID     string          `json:"plan_id"`
	Months     []BillResult    `json:"months"`
	TotalKWh   decimal.Decimal `json:"total_usage_kwh"`
	TotalCost  decimal.Decimal `json:"total_cost"`
	AvgMonthly decimal.Decimal `json:"avg_monthly_cost"`
}

// RunResult bundles every scenario of a run plus the comparison.
type RunResult struct {
	ID         string            `json:"id"`
	StartMonth string            `json:"start_month"`
	Months     int               `json:"months"`
	Scenarios  []*ScenarioResult `json:"scenarios"`
	Comparison *Comparison       `json:"comparison,omitempty"`
	Elapsed    time.Duration     `json:"-"`
}

// Simulator bills usage profiles against the rate catalog. Scenario months
// are billed strictly in order so demand ratchets see a consistent history;
// independent scenarios run in parallel.
type Simulator struct {
	catalog *catalog.Catalog
	cache   *tariffcache.Cache
	log     zerolog.Logger
}

func New(cat *catalog.Catalog, cache *tariffcache.Cache, logger zerolog.Logger) *Simulator {
	return &Simulator{
		catalog: cat,
		cache:   cache,
		log:     logger.With().Str("component", "simulator").Logger(),
	}
}

// Run executes every scenario of the request and compares them. Either the
// whole run succeeds or it returns an error with no partial results.
func (s *Simulator) Run(ctx context.Context, req Request) (*RunResult, error) {
	started := time.Now()

	start, err := profile.ParseMonth(req.StartMonth)
	if err != nil {
		metrics.SimulationsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if len(req.Scenarios) == 0 {
		metrics.SimulationsTotal.WithLabelValues("invalid").Inc()
		return nil, ErrEmptyScenarioSet
	}
	names := make(map[string]bool, len(req.Scenarios))
	for _, sc := range req.Scenarios {
		if sc.Name == "" {
			metrics.SimulationsTotal.WithLabelValues("invalid").Inc()
			return nil, fmt.Errorf("%w: scenario without a name", ErrScenarioName)
		}
		if names[sc.Name] {
			metrics.SimulationsTotal.WithLabelValues("invalid").Inc()
			return nil, fmt.Errorf("%w: duplicate %q", ErrScenarioName, sc.Name)
		}
		names[sc.Name] = true
	}

	results := make([]*ScenarioResult, len(req.Scenarios))
	g, gctx := errgroup.WithContext(ctx)
	for i, sc := range req.Scenarios {
		i, sc := i, sc
		g.Go(func() error {
			res, err := s.Scenario(gctx, sc, start, req.Months)
			if err != nil {
				return fmt.Errorf("scenario %q: %w", sc.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.SimulationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	baseline := req.Baseline
	if baseline == "" {
		baseline = req.Scenarios[0].Name
	}
	cmp, err := Compare(results, baseline)
	if err != nil {
		metrics.SimulationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	elapsed := time.Since(started)
	metrics.SimulationsTotal.WithLabelValues("ok").Inc()
	metrics.SimulationDurationSeconds.Observe(elapsed.Seconds())
	metrics.SimulationMonthsTotal.Add(float64(req.Months * len(req.Scenarios)))

	run := &RunResult{
		ID:         uuid.NewString(),
		StartMonth: req.StartMonth,
		Months:     req.Months,
		Scenarios:  results,
		Comparison: cmp,
		Elapsed:    elapsed,
	}
	s.log.Info().
		Str("run_id", run.ID).
		Int("scenarios", len(results)).
		Int("months", req.Months).
		Dur("elapsed", elapsed).
		Msg("simulation run completed")
	return run, nil
}

// Scenario bills a single scenario month by month. The tier ladder resets
// at every month boundary; the demand ratchet carries peaks forward across
// them. Any failure aborts the scenario with no partial result.
func (s *Simulator) Scenario(ctx context.Context, sc Scenario, start time.Time, months int) (*ScenarioResult, error) {
	if months <= 0 || months > profile.MaxHorizonMonths {
		return nil, &profile.InvalidProfileError{Reason: fmt.Sprintf("horizon of %d months", months)}
	}

	prof, err := s.buildProfile(sc, start, months)
	if err != nil {
		return nil, err
	}

	byMonth, err := groupByMonth(prof.Events, start, months)
	if err != nil {
		return nil, err
	}

	res := &ScenarioResult{
		Scenario: sc.Name,
		PlanID:   sc.PlanID,
		Months:   make([]BillResult, 0, months),
	}

	var peakHistory []decimal.Decimal
	for mi := 0; mi < months; mi++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		monthStart := start.AddDate(0, mi, 0)

		rs, err := s.catalog.Structure(sc.PlanID, monthStart)
		if err != nil {
			return nil, err
		}

		period := openPeriod(monthStart)
		for _, ev := range byMonth[mi] {
			pb, err := s.cache.Price(rs, ev, &period.state)
			if err != nil {
				return nil, err
			}
			if err := period.accumulate(pb); err != nil {
				return nil, err
			}
		}

		window := 0
		if rs.Demand != nil {
			window = rs.Demand.RatchetMonths
		}
		billed := ratchetWindow(period.state.PeakDemandKW, peakHistory, window)

		bill, err := period.close(rs, billed)
		if err != nil {
			return nil, err
		}
		peakHistory = append(peakHistory, period.state.PeakDemandKW)

		res.Months = append(res.Months, bill)
		res.TotalKWh = res.TotalKWh.Add(bill.UsageKWh)
		res.TotalCost = res.TotalCost.Add(bill.Total)
	}
	res.AvgMonthly = res.TotalCost.Div(decimal.NewFromInt(int64(months)))
	return res, nil
}

func (s *Simulator) buildProfile(sc Scenario, start time.Time, months int) (*profile.UsageProfile, error) {
	prof := sc.Profile
	if prof == nil {
		built, err := profile.Build(sc.Household, start, months)
		if err != nil {
			return nil, err
		}
		prof = built
	}
	if !sc.EfficiencyGain.IsZero() {
		scaled, err := prof.WithEfficiency(sc.EfficiencyGain)
		if err != nil {
			return nil, err
		}
		prof = scaled
	}
	return prof, nil
}

// groupByMonth buckets ordered events into horizon months, rejecting any
// event that falls outside the horizon.
func groupByMonth(events []tariff.ConsumptionEvent, start time.Time, months int) ([][]tariff.ConsumptionEvent, error) {
	end := start.AddDate(0, months, 0)
	out := make([][]tariff.ConsumptionEvent, months)
	for _, ev := range events {
		ts := ev.Timestamp
		if ts.Before(start) || !ts.Before(end) {
			return nil, &profile.InvalidProfileError{
				Reason: fmt.Sprintf("event at %s outside horizon %s..%s",
					ts.Format(time.RFC3339), start.Format("2006-01"), end.Format("2006-01")),
			}
		}
		idx := (ts.Year()-start.Year())*12 + int(ts.Month()-start.Month())
		out[idx] = append(out[idx], ev)
	}
	return out, nil
}
