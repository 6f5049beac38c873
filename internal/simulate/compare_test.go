package simulate

import (
	"errors"
	"testing"
)

func result(t *testing.T, name, total string, months int) *ScenarioResult {
	t.Helper()
	r := &ScenarioResult{
		Scenario:  name,
		PlanID:    "plan",
		Months:    make([]BillResult, months),
		TotalCost: d(t, total),
	}
	return r
}

func TestCompareRanksCheapestFirst(t *testing.T) {
	results := []*ScenarioResult{
		result(t, "current", "1200", 12),
		result(t, "solar", "1100", 12),
		result(t, "upgraded", "960", 12),
	}

	cmp, err := Compare(results, "current")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}

	wantOrder := []string{"upgraded", "solar", "current"}
	for i, want := range wantOrder {
		if cmp.Ranked[i].Scenario != want {
			t.Errorf("rank %d = %q, want %q", i, cmp.Ranked[i].Scenario, want)
		}
	}
	if cmp.Cheapest != "upgraded" {
		t.Errorf("cheapest = %q, want upgraded", cmp.Cheapest)
	}
	if !cmp.BaselineTotal.Equal(d(t, "1200")) {
		t.Errorf("baseline total = %s, want 1200", cmp.BaselineTotal)
	}
	if !cmp.Ranked[0].Savings.Equal(d(t, "240")) {
		t.Errorf("upgraded savings = %s, want 240", cmp.Ranked[0].Savings)
	}
	if !cmp.Ranked[2].Savings.IsZero() {
		t.Errorf("baseline savings vs itself = %s, want 0", cmp.Ranked[2].Savings)
	}
}

func TestCompareTiesKeepDeclarationOrder(t *testing.T) {
	results := []*ScenarioResult{
		result(t, "first", "1000", 6),
		result(t, "second", "1000", 6),
		result(t, "third", "900", 6),
	}
	cmp, err := Compare(results, "first")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if cmp.Ranked[1].Scenario != "first" || cmp.Ranked[2].Scenario != "second" {
		t.Errorf("tied scenarios reordered: %q then %q", cmp.Ranked[1].Scenario, cmp.Ranked[2].Scenario)
	}
}

func TestCompareEmptySet(t *testing.T) {
	if _, err := Compare(nil, "anything"); !errors.Is(err, ErrEmptyScenarioSet) {
		t.Fatalf("err = %v, want ErrEmptyScenarioSet", err)
	}
}

func TestCompareUnknownBaseline(t *testing.T) {
	results := []*ScenarioResult{result(t, "only", "100", 3)}
	if _, err := Compare(results, "ghost"); !errors.Is(err, ErrBaselineNotFound) {
		t.Fatalf("err = %v, want ErrBaselineNotFound", err)
	}
}

func TestCompareHorizonMismatch(t *testing.T) {
	results := []*ScenarioResult{
		result(t, "year", "1200", 12),
		result(t, "half", "600", 6),
	}
	_, err := Compare(results, "year")
	var hm *HorizonMismatchError
	if !errors.As(err, &hm) {
		t.Fatalf("err = %v, want HorizonMismatchError", err)
	}
	if hm.Scenario != "half" || hm.ScenarioMonths != 6 || hm.BaselineMonths != 12 {
		t.Errorf("mismatch detail = %+v", hm)
	}
}

func TestCompareZeroBaselineTotal(t *testing.T) {
	results := []*ScenarioResult{
		result(t, "free", "0", 1),
		result(t, "paid", "10", 1),
	}
	cmp, err := Compare(results, "free")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if !cmp.Ranked[1].SavingsPercent.IsZero() {
		t.Errorf("percent against a zero baseline = %s, want 0", cmp.Ranked[1].SavingsPercent)
	}
}
