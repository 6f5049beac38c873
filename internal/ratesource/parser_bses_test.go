package ratesource

import (
	"testing"
	"time"
)

func TestParseBSESSheetFromText(t *testing.T) {
	sample := `
BSES RAJDHANI POWER LIMITED
Schedule of Tariff for Domestic Supply w.e.f. 01.04.2025
0 - 200 units : Rs. 0.00 per kWh
201 - 400 units : Rs. 3.00 per kWh
401 - 800 units : Rs. 6.50 per kWh
801 - 1200 units : Rs. 7.00 per kWh
Above 1200 units : Rs. 8.00 per kWh
Fixed Charge : Rs. 20.00 per month
Time of Day surcharge : 20% during peak hours (14:00 - 17:00)
Time of Day rebate : 10% during off peak hours (04:00 - 10:00)
`
	plans, err := ParseBSESSheetFromText(sample)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("expected 1 plan, got %d", len(plans))
	}
	rs := plans[0]
	if rs.PlanID != "bses-domestic" {
		t.Fatalf("plan id mismatch: %s", rs.PlanID)
	}
	if len(rs.Tiers) != 5 {
		t.Fatalf("expected 5 tiers, got %d", len(rs.Tiers))
	}
	if rs.Tiers[4].LowerKWh.String() != "1200" || rs.Tiers[4].RatePerKWh.String() != "8" {
		t.Errorf("top slab wrong: %+v", rs.Tiers[4])
	}

	if len(rs.TOUWindows) != 2 {
		t.Fatalf("expected 2 TOU windows, got %d", len(rs.TOUWindows))
	}
	peak := rs.TOUWindows[0]
	if peak.StartHour != 14 || peak.EndHour != 17 {
		t.Errorf("peak window hours wrong: %d-%d", peak.StartHour, peak.EndHour)
	}
	if peak.Multiplier == nil || peak.Multiplier.String() != "1.2" {
		t.Errorf("peak multiplier wrong: %v", peak.Multiplier)
	}
	rebate := rs.TOUWindows[1]
	if rebate.StartHour != 4 || rebate.EndHour != 10 {
		t.Errorf("rebate window hours wrong: %d-%d", rebate.StartHour, rebate.EndHour)
	}
	if rebate.Multiplier == nil || rebate.Multiplier.String() != "0.9" {
		t.Errorf("rebate multiplier wrong: %v", rebate.Multiplier)
	}
	if peak.Priority >= rebate.Priority {
		t.Errorf("surcharge must outrank rebate: %d vs %d", peak.Priority, rebate.Priority)
	}

	want := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	if !rs.EffectiveFrom.Equal(want) {
		t.Errorf("effective from wrong: %v", rs.EffectiveFrom)
	}
}

func TestParseBSESSheetWithoutTODLines(t *testing.T) {
	sample := `
Schedule of Tariff w.e.f. 01.04.2025
0 - 200 units : Rs. 3.00 per kWh
Above 200 units : Rs. 5.00 per kWh
`
	plans, err := ParseBSESSheetFromText(sample)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plans[0].TOUWindows) != 0 {
		t.Fatalf("expected no TOU windows, got %d", len(plans[0].TOUWindows))
	}
	if !plans[0].FixedMonthlyFee.IsZero() {
		t.Fatalf("expected zero fixed charge, got %s", plans[0].FixedMonthlyFee)
	}
}
