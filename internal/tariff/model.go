package tariff

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tier is one cumulative-usage band of a tiered rate. Bands are closed-open:
// a marginal unit prices into the tier when LowerKWh <= cumulative < UpperKWh.
// A nil UpperKWh means the band is unbounded.
type Tier struct {
	LowerKWh   decimal.Decimal  `json:"lower_kwh"`
	UpperKWh   *decimal.Decimal `json:"upper_kwh,omitempty"`
	RatePerKWh decimal.Decimal  `json:"rate_per_kwh"`
}

// TOUWindow is a time-of-use price adjustment active during specific
// months, weekdays and hours. Either Multiplier scales the tiered energy
// cost, or OverrideRatePerKWh replaces the per-kWh rate outright for the
// window. Empty Months/Weekdays match every month/weekday. The hour range
// is [StartHour, EndHour) and wraps midnight when EndHour < StartHour;
// StartHour == EndHour covers the whole day.
type TOUWindow struct {
	Label              string           `json:"label,omitempty"`
	Months             []time.Month     `json:"months,omitempty"`
	Weekdays           []time.Weekday   `json:"weekdays,omitempty"`
	StartHour          int              `json:"start_hour"`
	EndHour            int              `json:"end_hour"`
	Multiplier         *decimal.Decimal `json:"multiplier,omitempty"`
	OverrideRatePerKWh *decimal.Decimal `json:"override_rate_per_kwh,omitempty"`
	Priority           int              `json:"priority"`
}

// DemandCharge prices the billing period's peak demand. RatchetMonths > 0
// floors the billed peak at the highest peak observed over that many
// trailing periods.
type DemandCharge struct {
	RatePerKW     decimal.Decimal `json:"rate_per_kw"`
	RatchetMonths int             `json:"ratchet_months,omitempty"`
}

// RateStructure is one immutable version of a utility rate plan. Updates
// never mutate a published structure; the catalog publishes a new version
// with a new effective-date range instead.
type RateStructure struct {
	PlanID        string     `json:"plan_id"`
	UtilityID     string     `json:"utility_id"`
	Currency      string     `json:"currency,omitempty"`
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`

	// Version is the catalog's monotonic publish stamp. Zero until published.
	Version uint64 `json:"version,omitempty"`

	// BaseRatePerKWh applies when Tiers is empty (flat-rate plans).
	BaseRatePerKWh      decimal.Decimal                `json:"base_rate_per_kwh"`
	Tiers               []Tier                         `json:"tiers,omitempty"`
	TOUWindows          []TOUWindow                    `json:"tou_windows,omitempty"`
	SeasonalMultipliers map[time.Month]decimal.Decimal `json:"seasonal_multipliers,omitempty"`
	Demand              *DemandCharge                  `json:"demand_charge,omitempty"`
	FixedMonthlyFee     decimal.Decimal                `json:"fixed_monthly_fee"`
}

// CoversDate reports whether the structure's effective-date range contains t.
// The range is closed-open: [EffectiveFrom, EffectiveTo).
func (rs *RateStructure) CoversDate(t time.Time) bool {
	if t.Before(rs.EffectiveFrom) {
		return false
	}
	if rs.EffectiveTo != nil && !t.Before(*rs.EffectiveTo) {
		return false
	}
	return true
}

// Signature fingerprints the pricing-relevant shape of the structure (tier
// boundaries and TOU windows). Cache keys include it alongside the version
// so a republished structure can never be confused with a cached one.
func (rs *RateStructure) Signature() string {
	var sb strings.Builder
	for _, tr := range rs.Tiers {
		sb.WriteString(tr.LowerKWh.String())
		sb.WriteByte(':')
		if tr.UpperKWh != nil {
			sb.WriteString(tr.UpperKWh.String())
		}
		sb.WriteByte(':')
		sb.WriteString(tr.RatePerKWh.String())
		sb.WriteByte('|')
	}
	sb.WriteByte('#')
	for _, w := range rs.TOUWindows {
		fmt.Fprintf(&sb, "%v/%v/%d-%d/%d", w.Months, w.Weekdays, w.StartHour, w.EndHour, w.Priority)
		if w.Multiplier != nil {
			sb.WriteString("*" + w.Multiplier.String())
		}
		if w.OverrideRatePerKWh != nil {
			sb.WriteString("=" + w.OverrideRatePerKWh.String())
		}
		sb.WriteByte('|')
	}
	sb.WriteByte('#')
	sb.WriteString(rs.BaseRatePerKWh.String())
	for m := time.January; m <= time.December; m++ {
		if mult, ok := rs.SeasonalMultipliers[m]; ok {
			fmt.Fprintf(&sb, "%d=%s;", m, mult.String())
		}
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(sb.String()))
	return fmt.Sprintf("%016x", h.Sum64())
}

// ConsumptionEvent is one time-bucketed quantity of consumption to price.
// Events are immutable once produced by the profile builder.
type ConsumptionEvent struct {
	Timestamp    time.Time       `json:"timestamp"`
	QuantityKWh  decimal.Decimal `json:"quantity_kwh"`
	PeakDemandKW decimal.Decimal `json:"peak_demand_kw,omitempty"`
}

// PeriodState is the mutable accumulator for one billing period: cumulative
// usage-to-date (tier resolution) and the running peak demand (demand
// charge). It is owned by a single simulation run and is not safe for
// concurrent use.
type PeriodState struct {
	CumulativeKWh decimal.Decimal
	PeakDemandKW  decimal.Decimal
}

// Reset clears the accumulator at a period boundary.
func (ps *PeriodState) Reset() {
	ps.CumulativeKWh = decimal.Zero
	ps.PeakDemandKW = decimal.Zero
}

// TierPortion is the part of one event's quantity that priced into one tier.
type TierPortion struct {
	TierIndex   int             `json:"tier_index"`
	QuantityKWh decimal.Decimal `json:"quantity_kwh"`
	RatePerKWh  decimal.Decimal `json:"rate_per_kwh"`
	Cost        decimal.Decimal `json:"cost"`
}

// PriceBreakdown decomposes one event's energy cost. TierCost is the
// marginal cost at the plan's tier (or base) rates; TOUAdjustment and
// SeasonalAdjustment are the deltas introduced by the matched window and the
// month multiplier. The three always sum to EnergyCost. Demand charges and
// fixed fees are period-level and never appear here.
type PriceBreakdown struct {
	TierCost           decimal.Decimal `json:"tier_cost"`
	TierPortions       []TierPortion   `json:"tier_portions,omitempty"`
	TOUAdjustment      decimal.Decimal `json:"tou_adjustment"`
	SeasonalAdjustment decimal.Decimal `json:"seasonal_adjustment"`
	EnergyCost         decimal.Decimal `json:"energy_cost"`
	WindowLabel        string          `json:"window_label,omitempty"`
	SeasonalMultiplier decimal.Decimal `json:"seasonal_multiplier"`
}
