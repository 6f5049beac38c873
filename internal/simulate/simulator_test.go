package simulate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/catalog"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/profile"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/tariff"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/tariffcache"
)

func newSim(t *testing.T) (*Simulator, *catalog.Catalog) {
	t.Helper()
	cat := catalog.New(zerolog.Nop())
	cache := tariffcache.New(512, zerolog.Nop())
	return New(cat, cache, zerolog.Nop()), cat
}

func publish(t *testing.T, cat *catalog.Catalog, rs *tariff.RateStructure) {
	t.Helper()
	if err := cat.Publish(rs); err != nil {
		t.Fatalf("Publish(%s): %v", rs.PlanID, err)
	}
}

func flatPlan(t *testing.T, id, rate string, from time.Time) *tariff.RateStructure {
	t.Helper()
	return &tariff.RateStructure{
		PlanID:         id,
		Currency:       "USD",
		EffectiveFrom:  from,
		BaseRatePerKWh: d(t, rate),
	}
}

func tieredPlan(t *testing.T, id string, from time.Time) *tariff.RateStructure {
	t.Helper()
	upper := d(t, "500")
	return &tariff.RateStructure{
		PlanID:        id,
		Currency:      "USD",
		EffectiveFrom: from,
		Tiers: []tariff.Tier{
			{LowerKWh: decimal.Zero, UpperKWh: &upper, RatePerKWh: d(t, "3.00")},
			{LowerKWh: upper, RatePerKWh: d(t, "5.00")},
		},
	}
}

// monthlyEvents builds a profile with one event per month, starting at
// start, carrying the given kWh quantities (and optional peaks).
func monthlyEvents(t *testing.T, start time.Time, quantities []string, peaks []string) *profile.UsageProfile {
	t.Helper()
	events := make([]tariff.ConsumptionEvent, 0, len(quantities))
	for i, q := range quantities {
		ev := tariff.ConsumptionEvent{
			Timestamp:   start.AddDate(0, i, 0).Add(12 * time.Hour),
			QuantityKWh: d(t, q),
		}
		if peaks != nil {
			ev.PeakDemandKW = d(t, peaks[i])
		}
		events = append(events, ev)
	}
	p, err := profile.FromEvents(events)
	if err != nil {
		t.Fatalf("FromEvents: %v", err)
	}
	return p
}

var jan2025 = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

func TestRunComparesEfficiencyScenario(t *testing.T) {
	sim, cat := newSim(t)
	publish(t, cat, flatPlan(t, "flat-015", "0.15", jan2025))

	// 2000 kWh a month at $0.15 is $300; four months is $1200. The same
	// profile with a 20% efficiency upgrade lands at $960.
	prof := monthlyEvents(t, jan2025, []string{"2000", "2000", "2000", "2000"}, nil)

	req := Request{
		StartMonth: "2025-01",
		Months:     4,
		Baseline:   "current",
		Scenarios: []Scenario{
			{Name: "current", PlanID: "flat-015", Profile: prof},
			{Name: "upgraded", PlanID: "flat-015", Profile: prof, EfficiencyGain: d(t, "0.2")},
		},
	}

	run, err := sim.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.ID == "" {
		t.Errorf("run has no id")
	}
	if len(run.Scenarios) != 2 {
		t.Fatalf("got %d scenario results, want 2", len(run.Scenarios))
	}

	current, upgraded := run.Scenarios[0], run.Scenarios[1]
	if !current.TotalCost.Equal(d(t, "1200")) {
		t.Errorf("baseline total = %s, want 1200", current.TotalCost)
	}
	if !upgraded.TotalCost.Equal(d(t, "960")) {
		t.Errorf("upgraded total = %s, want 960", upgraded.TotalCost)
	}

	cmp := run.Comparison
	if cmp == nil {
		t.Fatal("run has no comparison")
	}
	if cmp.Cheapest != "upgraded" {
		t.Errorf("cheapest = %q, want upgraded", cmp.Cheapest)
	}
	if !cmp.Ranked[0].Savings.Equal(d(t, "240")) {
		t.Errorf("savings = %s, want 240", cmp.Ranked[0].Savings)
	}
	if !cmp.Ranked[0].SavingsPercent.Equal(d(t, "20")) {
		t.Errorf("savings percent = %s, want 20", cmp.Ranked[0].SavingsPercent)
	}
}

func TestScenarioTierLadderResetsMonthly(t *testing.T) {
	sim, cat := newSim(t)
	publish(t, cat, tieredPlan(t, "tiered", jan2025))

	// 600 kWh each month: 500 at 3.00 plus 100 at 5.00 is 2000. Without
	// the monthly reset the second month would bill entirely at 5.00.
	prof := monthlyEvents(t, jan2025, []string{"600", "600"}, nil)

	res, err := sim.Scenario(context.Background(), Scenario{
		Name: "steady", PlanID: "tiered", Profile: prof,
	}, jan2025, 2)
	if err != nil {
		t.Fatalf("Scenario: %v", err)
	}

	for i, bill := range res.Months {
		if !bill.EnergyCost.Equal(d(t, "2000")) {
			t.Errorf("month %d energy cost = %s, want 2000", i, bill.EnergyCost)
		}
		if !bill.UsageKWh.Equal(d(t, "600")) {
			t.Errorf("month %d usage = %s, want 600", i, bill.UsageKWh)
		}
	}
	if !res.TotalCost.Equal(d(t, "4000")) {
		t.Errorf("total = %s, want 4000", res.TotalCost)
	}
}

func TestScenarioZeroUsageMonthBillsFixedFee(t *testing.T) {
	sim, cat := newSim(t)
	plan := flatPlan(t, "flat-fee", "0.10", jan2025)
	plan.FixedMonthlyFee = d(t, "25")
	publish(t, cat, plan)

	// Usage only in January; February is an empty month.
	prof := monthlyEvents(t, jan2025, []string{"100"}, nil)

	res, err := sim.Scenario(context.Background(), Scenario{
		Name: "sparse", PlanID: "flat-fee", Profile: prof,
	}, jan2025, 2)
	if err != nil {
		t.Fatalf("Scenario: %v", err)
	}

	jan, feb := res.Months[0], res.Months[1]
	if !jan.Total.Equal(d(t, "35")) {
		t.Errorf("January total = %s, want 35 (10 energy + 25 fee)", jan.Total)
	}
	if !feb.Total.Equal(d(t, "25")) {
		t.Errorf("February total = %s, want the 25 fixed fee alone", feb.Total)
	}
	if feb.Events != 0 {
		t.Errorf("February billed %d events, want 0", feb.Events)
	}
}

func TestScenarioDemandRatchetCarriesAndExpires(t *testing.T) {
	sim, cat := newSim(t)
	plan := flatPlan(t, "demand", "0", jan2025)
	plan.Demand = &tariff.DemandCharge{RatePerKW: d(t, "10"), RatchetMonths: 2}
	publish(t, cat, plan)

	// Peaks 5, 2, 1, 1. With a two-month ratchet the 5 kW January peak
	// keeps billing through March and falls out of the window in April.
	prof := monthlyEvents(t, jan2025,
		[]string{"10", "10", "10", "10"},
		[]string{"5", "2", "1", "1"})

	res, err := sim.Scenario(context.Background(), Scenario{
		Name: "peaky", PlanID: "demand", Profile: prof,
	}, jan2025, 4)
	if err != nil {
		t.Fatalf("Scenario: %v", err)
	}

	wantBilled := []string{"5", "5", "5", "2"}
	wantCharge := []string{"50", "50", "50", "20"}
	for i, bill := range res.Months {
		if !bill.BilledDemandKW.Equal(d(t, wantBilled[i])) {
			t.Errorf("month %d billed demand = %s, want %s", i, bill.BilledDemandKW, wantBilled[i])
		}
		if !bill.DemandCharge.Equal(d(t, wantCharge[i])) {
			t.Errorf("month %d demand charge = %s, want %s", i, bill.DemandCharge, wantCharge[i])
		}
	}
}

func TestScenarioSelectsVersionPerMonth(t *testing.T) {
	sim, cat := newSim(t)

	v1 := flatPlan(t, "shifting", "0.10", jan2025)
	to := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	v1.EffectiveTo = &to
	v2 := flatPlan(t, "shifting", "0.20", to)
	publish(t, cat, v1)
	publish(t, cat, v2)

	prof := monthlyEvents(t, jan2025, []string{"100", "100", "100", "100"}, nil)
	res, err := sim.Scenario(context.Background(), Scenario{
		Name: "switch", PlanID: "shifting", Profile: prof,
	}, jan2025, 4)
	if err != nil {
		t.Fatalf("Scenario: %v", err)
	}

	wantCost := []string{"10", "10", "20", "20"}
	for i, bill := range res.Months {
		if !bill.EnergyCost.Equal(d(t, wantCost[i])) {
			t.Errorf("month %d energy cost = %s, want %s", i, bill.EnergyCost, wantCost[i])
		}
	}
	if res.Months[0].PlanVersion == res.Months[3].PlanVersion {
		t.Errorf("January and April billed the same version %d", res.Months[0].PlanVersion)
	}
}

func TestScenarioTOUWindowAppliesThroughStack(t *testing.T) {
	sim, cat := newSim(t)
	plan := tieredPlan(t, "tou", jan2025)
	mult := d(t, "2.0")
	plan.TOUWindows = []tariff.TOUWindow{
		{Label: "midday", StartHour: 12, EndHour: 14, Multiplier: &mult, Priority: 1},
	}
	publish(t, cat, plan)

	// The single monthly event is timestamped at 12:00, inside the window.
	prof := monthlyEvents(t, jan2025, []string{"100"}, nil)
	res, err := sim.Scenario(context.Background(), Scenario{
		Name: "tou", PlanID: "tou", Profile: prof,
	}, jan2025, 1)
	if err != nil {
		t.Fatalf("Scenario: %v", err)
	}

	// 100 kWh in the first tier at 3.00, doubled by the window.
	if !res.Months[0].EnergyCost.Equal(d(t, "600")) {
		t.Errorf("energy cost = %s, want 600", res.Months[0].EnergyCost)
	}
	if !res.Months[0].TOUAdjustment.Equal(d(t, "300")) {
		t.Errorf("tou adjustment = %s, want 300", res.Months[0].TOUAdjustment)
	}
}

func TestRunUnknownPlanFailsWholeRun(t *testing.T) {
	sim, cat := newSim(t)
	publish(t, cat, flatPlan(t, "known", "0.15", jan2025))

	req := Request{
		StartMonth: "2025-01",
		Months:     2,
		Scenarios: []Scenario{
			{Name: "ok", PlanID: "known", Profile: monthlyEvents(t, jan2025, []string{"100", "100"}, nil)},
			{Name: "broken", PlanID: "missing", Profile: monthlyEvents(t, jan2025, []string{"100", "100"}, nil)},
		},
	}
	run, err := sim.Run(context.Background(), req)
	if !errors.Is(err, catalog.ErrPlanNotFound) {
		t.Fatalf("err = %v, want ErrPlanNotFound", err)
	}
	if run != nil {
		t.Errorf("failed run returned partial results")
	}
}

func TestRunInvalidHouseholdFailsWholeRun(t *testing.T) {
	sim, cat := newSim(t)
	publish(t, cat, flatPlan(t, "flat", "0.15", jan2025))

	req := Request{
		StartMonth: "2025-01",
		Months:     2,
		Scenarios: []Scenario{
			{Name: "bad", PlanID: "flat", Household: profile.Household{
				Appliances: []profile.Appliance{{Type: "perpetual_motion_machine"}},
			}},
		},
	}
	run, err := sim.Run(context.Background(), req)
	if !errors.Is(err, profile.ErrInvalidProfile) {
		t.Fatalf("err = %v, want ErrInvalidProfile", err)
	}
	if run != nil {
		t.Errorf("failed run returned partial results")
	}
}

func TestRunRejectsDuplicateScenarioNames(t *testing.T) {
	sim, cat := newSim(t)
	publish(t, cat, flatPlan(t, "flat", "0.15", jan2025))
	prof := monthlyEvents(t, jan2025, []string{"100"}, nil)

	req := Request{
		StartMonth: "2025-01",
		Months:     1,
		Scenarios: []Scenario{
			{Name: "dup", PlanID: "flat", Profile: prof},
			{Name: "dup", PlanID: "flat", Profile: prof},
		},
	}
	if _, err := sim.Run(context.Background(), req); err == nil {
		t.Fatal("duplicate scenario names accepted")
	}
}

func TestRunBuildsHouseholdProfiles(t *testing.T) {
	sim, cat := newSim(t)
	publish(t, cat, flatPlan(t, "flat", "0.15", jan2025))

	req := Request{
		StartMonth: "2025-03",
		Months:     2,
		Scenarios: []Scenario{{
			Name:   "household",
			PlanID: "flat",
			Household: profile.Household{Appliances: []profile.Appliance{
				{Type: "refrigerator"},
				{Type: "lighting", Quantity: 4},
			}},
		}},
	}
	run, err := sim.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := run.Scenarios[0]
	if len(res.Months) != 2 {
		t.Fatalf("got %d months, want 2", len(res.Months))
	}
	for i, bill := range res.Months {
		if !bill.UsageKWh.IsPositive() {
			t.Errorf("month %d billed zero usage for a live household", i)
		}
		if !bill.Total.IsPositive() {
			t.Errorf("month %d total is not positive", i)
		}
	}
}

func TestScenarioRejectsEventsOutsideHorizon(t *testing.T) {
	sim, cat := newSim(t)
	publish(t, cat, flatPlan(t, "flat", "0.15", jan2025))

	// Second event lands in March, outside a two-month horizon.
	prof := monthlyEvents(t, jan2025, []string{"100", "100", "100"}, nil)
	_, err := sim.Scenario(context.Background(), Scenario{
		Name: "overflow", PlanID: "flat", Profile: prof,
	}, jan2025, 2)
	if !errors.Is(err, profile.ErrInvalidProfile) {
		t.Fatalf("err = %v, want ErrInvalidProfile", err)
	}
}
