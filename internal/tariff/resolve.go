package tariff

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNegativeQuantity is returned when a consumption event carries a
// negative energy quantity. Pricing never silently clamps.
var ErrNegativeQuantity = errors.New("negative consumption quantity")

var decimalOne = decimal.NewFromInt(1)

// BucketRate holds the modifiers that depend only on the time bucket a
// consumption event falls into, never on cumulative usage. Two events in
// the same (month, weekday, hour) bucket under the same structure version
// always resolve to the same BucketRate, which is what makes it safe to
// memoize.
type BucketRate struct {
	// WindowIndex is the index of the matched TOU window in the
	// structure's declaration order, or -1 when no window matched.
	WindowIndex int
	WindowLabel string

	// Exactly one of Multiplier and OverrideRatePerKWh is set when a
	// window matched; both are nil otherwise.
	Multiplier         *decimal.Decimal
	OverrideRatePerKWh *decimal.Decimal

	// SeasonalMultiplier is the month's multiplier, 1 when the structure
	// declares none for this month.
	SeasonalMultiplier decimal.Decimal
}

// ResolveBucket computes the bucket-dependent modifiers for the bucket
// containing ts. It is a pure function of the structure and of
// (month, weekday, hour); resolving the same bucket twice yields equal
// results.
func ResolveBucket(rs *RateStructure, ts time.Time) BucketRate {
	return resolveBucketAt(rs, ts.Month(), ts.Weekday(), ts.Hour())
}

func resolveBucketAt(rs *RateStructure, month time.Month, weekday time.Weekday, hour int) BucketRate {
	br := BucketRate{WindowIndex: -1, SeasonalMultiplier: decimalOne}
	if m, ok := rs.SeasonalMultipliers[month]; ok {
		br.SeasonalMultiplier = m
	}

	// Lowest priority value wins; on a tie the earliest declared window
	// is kept.
	for i, w := range rs.TOUWindows {
		if !windowMatches(w, month, weekday, hour) {
			continue
		}
		if br.WindowIndex >= 0 && rs.TOUWindows[br.WindowIndex].Priority <= w.Priority {
			continue
		}
		br.WindowIndex = i
	}
	if br.WindowIndex >= 0 {
		w := rs.TOUWindows[br.WindowIndex]
		br.WindowLabel = w.Label
		br.Multiplier = w.Multiplier
		br.OverrideRatePerKWh = w.OverrideRatePerKWh
	}
	return br
}

func windowMatches(w TOUWindow, month time.Month, weekday time.Weekday, hour int) bool {
	if len(w.Months) > 0 && !containsMonth(w.Months, month) {
		return false
	}
	if len(w.Weekdays) > 0 && !containsWeekday(w.Weekdays, weekday) {
		return false
	}
	return hourInWindow(hour, w)
}

// hourInWindow reports whether hour falls inside the window's [start, end)
// range. End before start wraps past midnight; start equal to end covers
// the whole day.
func hourInWindow(hour int, w TOUWindow) bool {
	switch {
	case w.StartHour == w.EndHour:
		return true
	case w.StartHour < w.EndHour:
		return hour >= w.StartHour && hour < w.EndHour
	default:
		return hour >= w.StartHour || hour < w.EndHour
	}
}

func containsMonth(ms []time.Month, m time.Month) bool {
	for _, x := range ms {
		if x == m {
			return true
		}
	}
	return false
}

func containsWeekday(ds []time.Weekday, d time.Weekday) bool {
	for _, x := range ds {
		if x == d {
			return true
		}
	}
	return false
}

// Price resolves the event's time bucket against the structure and prices
// the event. See PriceWithBucket for the pricing contract.
func Price(rs *RateStructure, ev ConsumptionEvent, st *PeriodState) (PriceBreakdown, error) {
	return PriceWithBucket(rs, ev, st, ResolveBucket(rs, ev.Timestamp))
}

// PriceWithBucket prices a single consumption event using an already
// resolved bucket rate, walking the tier ladder from the period's
// cumulative usage so far. The quantity is split across every tier it
// straddles and each slice is charged at that tier's marginal rate. On
// success the period state is advanced: cumulative usage grows by the
// event quantity and the peak demand watermark is raised if the event's
// demand reading exceeds it. A zero-quantity event still moves the peak.
//
// The returned breakdown satisfies
// EnergyCost = TierCost + TOUAdjustment + SeasonalAdjustment exactly.
func PriceWithBucket(rs *RateStructure, ev ConsumptionEvent, st *PeriodState, bucket BucketRate) (PriceBreakdown, error) {
	if ev.QuantityKWh.IsNegative() {
		return PriceBreakdown{}, fmt.Errorf("%w: %s at %s",
			ErrNegativeQuantity, ev.QuantityKWh, ev.Timestamp.Format(time.RFC3339))
	}

	tierCost, portions := walkTiers(rs, st.CumulativeKWh, ev.QuantityKWh)

	var touAdj decimal.Decimal
	switch {
	case bucket.OverrideRatePerKWh != nil:
		touAdj = ev.QuantityKWh.Mul(*bucket.OverrideRatePerKWh).Sub(tierCost)
	case bucket.Multiplier != nil:
		touAdj = tierCost.Mul(bucket.Multiplier.Sub(decimalOne))
	}
	preSeasonal := tierCost.Add(touAdj)
	seasonalAdj := preSeasonal.Mul(bucket.SeasonalMultiplier.Sub(decimalOne))

	st.CumulativeKWh = st.CumulativeKWh.Add(ev.QuantityKWh)
	if ev.PeakDemandKW.GreaterThan(st.PeakDemandKW) {
		st.PeakDemandKW = ev.PeakDemandKW
	}

	return PriceBreakdown{
		TierCost:           tierCost,
		TierPortions:       portions,
		TOUAdjustment:      touAdj,
		SeasonalAdjustment: seasonalAdj,
		EnergyCost:         preSeasonal.Add(seasonalAdj),
		WindowLabel:        bucket.WindowLabel,
		SeasonalMultiplier: bucket.SeasonalMultiplier,
	}, nil
}

// walkTiers splits quantity across the tier ladder starting from cumStart
// kWh already consumed this period. A quantity that lands exactly on a
// tier boundary belongs entirely to the lower tier; the next marginal unit
// opens the higher one. Structures without tiers charge the flat base
// rate, reported as a single portion with TierIndex -1.
func walkTiers(rs *RateStructure, cumStart, quantity decimal.Decimal) (decimal.Decimal, []TierPortion) {
	var total decimal.Decimal
	if quantity.IsZero() {
		return total, nil
	}
	if len(rs.Tiers) == 0 {
		cost := quantity.Mul(rs.BaseRatePerKWh)
		return cost, []TierPortion{{
			TierIndex:   -1,
			QuantityKWh: quantity,
			RatePerKWh:  rs.BaseRatePerKWh,
			Cost:        cost,
		}}
	}

	portions := make([]TierPortion, 0, 2)
	cum := cumStart
	remaining := quantity
	for i, tr := range rs.Tiers {
		if !remaining.IsPositive() {
			break
		}
		if tr.UpperKWh != nil && cum.GreaterThanOrEqual(*tr.UpperKWh) {
			continue
		}
		span := remaining
		if tr.UpperKWh != nil {
			if headroom := tr.UpperKWh.Sub(cum); headroom.LessThan(span) {
				span = headroom
			}
		}
		cost := span.Mul(tr.RatePerKWh)
		portions = append(portions, TierPortion{
			TierIndex:   i,
			QuantityKWh: span,
			RatePerKWh:  tr.RatePerKWh,
			Cost:        cost,
		})
		total = total.Add(cost)
		cum = cum.Add(span)
		remaining = remaining.Sub(span)
	}
	return total, portions
}
