package simulate

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrEmptyScenarioSet is returned when a run or comparison is asked to work
// on zero scenarios.
var ErrEmptyScenarioSet = errors.New("empty scenario set")

// ErrBaselineNotFound is returned when the named baseline is not among the
// compared scenarios.
var ErrBaselineNotFound = errors.New("baseline scenario not found")

// HorizonMismatchError reports scenarios billed over different horizons,
// which makes their totals incomparable.
type HorizonMismatchError struct {
	Baseline       string
	BaselineMonths int
	Scenario       string
	ScenarioMonths int
}

func (e *HorizonMismatchError) Error() string {
	return fmt.Sprintf("scenario %q covers %d months, baseline %q covers %d",
		e.Scenario, e.ScenarioMonths, e.Baseline, e.BaselineMonths)
}

// Delta is one scenario's standing against the baseline. Savings is
// positive when the scenario is cheaper than the baseline.
type Delta struct {
	Scenario       string          `json:"scenario"`
	PlanID         string          `json:"plan_id"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	Savings        decimal.Decimal `json:"savings_vs_baseline"`
	SavingsPercent decimal.Decimal `json:"savings_percent"`
}

// Comparison ranks scenarios against a named baseline.
type Comparison struct {
	Baseline      string          `json:"baseline"`
	BaselineTotal decimal.Decimal `json:"baseline_total"`
	// Ranked is ordered cheapest first; scenarios with equal totals keep
	// their declaration order.
	Ranked   []Delta `json:"ranked"`
	Cheapest string  `json:"cheapest"`
}

// Compare ranks the scenario results against the baseline named by
// baselineName. All results must cover the same number of months.
func Compare(results []*ScenarioResult, baselineName string) (*Comparison, error) {
	if len(results) == 0 {
		return nil, ErrEmptyScenarioSet
	}

	var baseline *ScenarioResult
	for _, r := range results {
		if r.Scenario == baselineName {
			baseline = r
			break
		}
	}
	if baseline == nil {
		return nil, fmt.Errorf("%w: %q", ErrBaselineNotFound, baselineName)
	}

	for _, r := range results {
		if len(r.Months) != len(baseline.Months) {
			return nil, &HorizonMismatchError{
				Baseline:       baseline.Scenario,
				BaselineMonths: len(baseline.Months),
				Scenario:       r.Scenario,
				ScenarioMonths: len(r.Months),
			}
		}
	}

	hundred := decimal.NewFromInt(100)
	deltas := make([]Delta, 0, len(results))
	for _, r := range results {
		savings := baseline.TotalCost.Sub(r.TotalCost)
		var pct decimal.Decimal
		if !baseline.TotalCost.IsZero() {
			pct = savings.Div(baseline.TotalCost).Mul(hundred)
		}
		deltas = append(deltas, Delta{
			Scenario:       r.Scenario,
			PlanID:         r.PlanID,
			TotalCost:      r.TotalCost,
			Savings:        savings,
			SavingsPercent: pct,
		})
	}

	sort.SliceStable(deltas, func(i, j int) bool {
		return deltas[i].TotalCost.LessThan(deltas[j].TotalCost)
	})

	return &Comparison{
		Baseline:      baseline.Scenario,
		BaselineTotal: baseline.TotalCost,
		Ranked:        deltas,
		Cheapest:      deltas[0].Scenario,
	}, nil
}
