package tariff

import (
	"errors"
	"fmt"
	"time"
)

// ErrTierConfiguration matches any TierConfigurationError via errors.Is.
var ErrTierConfiguration = errors.New("tier configuration error")

// TierConfigurationError reports a rate structure that failed publish-time
// validation: a non-contiguous or overlapping tier ladder, a malformed TOU
// window, or a negative charge. A structure that fails validation is never
// published, so the resolver only ever sees well-formed input.
type TierConfigurationError struct {
	PlanID string
	Reason string
}

func (e *TierConfigurationError) Error() string {
	return fmt.Sprintf("plan %q: %s", e.PlanID, e.Reason)
}

func (e *TierConfigurationError) Is(target error) bool {
	return target == ErrTierConfiguration
}

func configErr(planID, format string, args ...any) error {
	return &TierConfigurationError{PlanID: planID, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the structural invariants of a rate structure. It is run
// once when a structure is published to the catalog, not per resolution.
func (rs *RateStructure) Validate() error {
	if rs.PlanID == "" {
		return configErr("", "empty plan id")
	}
	if rs.EffectiveFrom.IsZero() {
		return configErr(rs.PlanID, "missing effective_from date")
	}
	if rs.EffectiveTo != nil && !rs.EffectiveTo.After(rs.EffectiveFrom) {
		return configErr(rs.PlanID, "effective_to %s is not after effective_from %s",
			rs.EffectiveTo.Format("2006-01-02"), rs.EffectiveFrom.Format("2006-01-02"))
	}
	if rs.BaseRatePerKWh.IsNegative() {
		return configErr(rs.PlanID, "negative base rate %s", rs.BaseRatePerKWh)
	}
	if rs.FixedMonthlyFee.IsNegative() {
		return configErr(rs.PlanID, "negative fixed monthly fee %s", rs.FixedMonthlyFee)
	}

	if err := rs.validateTiers(); err != nil {
		return err
	}
	if err := rs.validateTOUWindows(); err != nil {
		return err
	}

	for m, mult := range rs.SeasonalMultipliers {
		if m < time.January || m > time.December {
			return configErr(rs.PlanID, "seasonal multiplier for invalid month %d", m)
		}
		if !mult.IsPositive() {
			return configErr(rs.PlanID, "non-positive seasonal multiplier %s for month %s", mult, m)
		}
	}

	if rs.Demand != nil {
		if rs.Demand.RatePerKW.IsNegative() {
			return configErr(rs.PlanID, "negative demand rate %s", rs.Demand.RatePerKW)
		}
		if rs.Demand.RatchetMonths < 0 {
			return configErr(rs.PlanID, "negative demand ratchet window %d", rs.Demand.RatchetMonths)
		}
	}
	return nil
}

// validateTiers enforces the ladder invariant: ordered ascending, starting
// at zero, contiguous, non-overlapping, last tier unbounded.
func (rs *RateStructure) validateTiers() error {
	if len(rs.Tiers) == 0 {
		return nil
	}

	if !rs.Tiers[0].LowerKWh.IsZero() {
		return configErr(rs.PlanID, "first tier starts at %s, want 0", rs.Tiers[0].LowerKWh)
	}
	for i, tr := range rs.Tiers {
		if tr.RatePerKWh.IsNegative() {
			return configErr(rs.PlanID, "tier %d has negative rate %s", i, tr.RatePerKWh)
		}
		last := i == len(rs.Tiers)-1
		if last {
			if tr.UpperKWh != nil {
				return configErr(rs.PlanID, "last tier must be unbounded, got upper bound %s", tr.UpperKWh)
			}
			continue
		}
		if tr.UpperKWh == nil {
			return configErr(rs.PlanID, "tier %d is unbounded but is not the last tier", i)
		}
		if !tr.UpperKWh.GreaterThan(tr.LowerKWh) {
			return configErr(rs.PlanID, "tier %d upper bound %s does not exceed lower bound %s",
				i, tr.UpperKWh, tr.LowerKWh)
		}
		next := rs.Tiers[i+1]
		if !next.LowerKWh.Equal(*tr.UpperKWh) {
			return configErr(rs.PlanID, "tier %d ends at %s but tier %d starts at %s (gap or overlap)",
				i, tr.UpperKWh, i+1, next.LowerKWh)
		}
	}
	return nil
}

func (rs *RateStructure) validateTOUWindows() error {
	for i, w := range rs.TOUWindows {
		if w.StartHour < 0 || w.StartHour > 23 || w.EndHour < 0 || w.EndHour > 23 {
			return configErr(rs.PlanID, "tou window %d has out-of-range hours %d-%d", i, w.StartHour, w.EndHour)
		}
		for _, m := range w.Months {
			if m < time.January || m > time.December {
				return configErr(rs.PlanID, "tou window %d references invalid month %d", i, m)
			}
		}
		for _, d := range w.Weekdays {
			if d < time.Sunday || d > time.Saturday {
				return configErr(rs.PlanID, "tou window %d references invalid weekday %d", i, d)
			}
		}
		if w.Multiplier == nil && w.OverrideRatePerKWh == nil {
			return configErr(rs.PlanID, "tou window %d carries neither a multiplier nor an override rate", i)
		}
		if w.Multiplier != nil && w.OverrideRatePerKWh != nil {
			return configErr(rs.PlanID, "tou window %d carries both a multiplier and an override rate", i)
		}
		if w.Multiplier != nil && !w.Multiplier.IsPositive() {
			return configErr(rs.PlanID, "tou window %d has non-positive multiplier %s", i, w.Multiplier)
		}
		if w.OverrideRatePerKWh != nil && w.OverrideRatePerKWh.IsNegative() {
			return configErr(rs.PlanID, "tou window %d has negative override rate %s", i, w.OverrideRatePerKWh)
		}
	}

	// Windows may overlap in time but must then differ in priority.
	for i := range rs.TOUWindows {
		for j := i + 1; j < len(rs.TOUWindows); j++ {
			a, b := rs.TOUWindows[i], rs.TOUWindows[j]
			if a.Priority == b.Priority && windowsCanOverlap(a, b) {
				return configErr(rs.PlanID, "tou windows %d and %d overlap in time with equal priority %d",
					i, j, a.Priority)
			}
		}
	}
	return nil
}

func windowsCanOverlap(a, b TOUWindow) bool {
	return monthSetsIntersect(a.Months, b.Months) &&
		weekdaySetsIntersect(a.Weekdays, b.Weekdays) &&
		hourRangesIntersect(a, b)
}

func monthSetsIntersect(a, b []time.Month) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func weekdaySetsIntersect(a, b []time.Weekday) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func hourRangesIntersect(a, b TOUWindow) bool {
	for h := 0; h < 24; h++ {
		if hourInWindow(h, a) && hourInWindow(h, b) {
			return true
		}
	}
	return false
}
