package profile

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/tariff"
)

const (
	HemisphereNorthern = "northern"
	HemisphereSouthern = "southern"
)

// ErrInvalidProfile matches any InvalidProfileError via errors.Is.
var ErrInvalidProfile = errors.New("invalid usage profile")

// InvalidProfileError reports household or event input the builder refuses
// to turn into a usage profile.
type InvalidProfileError struct {
	Reason string
}

func (e *InvalidProfileError) Error() string {
	return "invalid usage profile: " + e.Reason
}

func (e *InvalidProfileError) Is(target error) bool {
	return target == ErrInvalidProfile
}

func invalidf(format string, args ...any) error {
	return &InvalidProfileError{Reason: fmt.Sprintf(format, args...)}
}

// Appliance is one line of a household description. PowerWatts overrides
// the class nameplate rating when positive; Quantity defaults to one.
type Appliance struct {
	Name       string `json:"name,omitempty"`
	Type       string `json:"type"`
	PowerWatts int    `json:"power_watts,omitempty"`
	Quantity   int    `json:"quantity,omitempty"`
}

// Household describes the appliance mix a profile is synthesized from.
type Household struct {
	Appliances []Appliance `json:"appliances"`
	Hemisphere string      `json:"hemisphere,omitempty"`
}

// UsageProfile is an ordered stream of hourly consumption events covering
// a whole simulation horizon. Events are strictly ascending in time.
type UsageProfile struct {
	Events []tariff.ConsumptionEvent
}

// MaxHorizonMonths bounds a simulation horizon.
const MaxHorizonMonths = 60

// ParseMonth parses a calendar month in "YYYY-MM" form into the first
// instant of that month in UTC.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return time.Time{}, invalidf("bad start month %q, want YYYY-MM", s)
	}
	return t.UTC(), nil
}

// FormatMonth renders the month containing t in "YYYY-MM" form.
func FormatMonth(t time.Time) string {
	return t.Format("2006-01")
}

// Build synthesizes an hourly usage profile for the household across a
// horizon of whole calendar months starting at start. Identical input
// always yields an identical event stream; the builder draws no
// randomness.
func Build(h Household, start time.Time, months int) (*UsageProfile, error) {
	if months <= 0 {
		return nil, invalidf("horizon of %d months", months)
	}
	if months > MaxHorizonMonths {
		return nil, invalidf("horizon of %d months exceeds the maximum of %d", months, MaxHorizonMonths)
	}
	if len(h.Appliances) == 0 {
		return nil, invalidf("household has no appliances")
	}

	hemisphere := h.Hemisphere
	if hemisphere == "" {
		hemisphere = HemisphereNorthern
	}
	seasonal, ok := seasonalUsage[hemisphere]
	if !ok {
		return nil, invalidf("unknown hemisphere %q", h.Hemisphere)
	}

	type load struct {
		watts         decimal.Decimal
		tempSensitive bool
		duty          func(int) decimal.Decimal
	}
	loads := make([]load, 0, len(h.Appliances))
	for _, a := range h.Appliances {
		cls, ok := classRegistry[a.Type]
		if !ok {
			return nil, invalidf("unknown appliance type %q", a.Type)
		}
		if a.PowerWatts < 0 {
			return nil, invalidf("appliance %q has negative power rating %d", a.Type, a.PowerWatts)
		}
		if a.Quantity < 0 {
			return nil, invalidf("appliance %q has negative quantity %d", a.Type, a.Quantity)
		}
		watts := cls.powerWatts
		if a.PowerWatts > 0 {
			watts = a.PowerWatts
		}
		qty := a.Quantity
		if qty == 0 {
			qty = 1
		}
		loads = append(loads, load{
			watts:         decimal.NewFromInt(int64(watts * qty)),
			tempSensitive: cls.tempSensitive,
			duty:          cls.duty,
		})
	}

	start = time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	kw := decimal.NewFromInt(1000)

	var events []tariff.ConsumptionEvent
	for mi := 0; mi < months; mi++ {
		monthStart := start.AddDate(0, mi, 0)
		days := daysInMonth(monthStart)
		factor := seasonal[monthStart.Month()]

		for d := 1; d <= days; d++ {
			for hour := 0; hour < 24; hour++ {
				var quantity, demand decimal.Decimal
				for _, l := range loads {
					duty := l.duty(hour)
					if duty.IsZero() {
						continue
					}
					energy := l.watts.Mul(duty).Div(kw)
					if l.tempSensitive {
						energy = energy.Mul(factor)
					}
					quantity = quantity.Add(energy)
					demand = demand.Add(l.watts.Div(kw))
				}
				if quantity.IsZero() && demand.IsZero() {
					continue
				}
				events = append(events, tariff.ConsumptionEvent{
					Timestamp:    time.Date(monthStart.Year(), monthStart.Month(), d, hour, 0, 0, 0, time.UTC),
					QuantityKWh:  quantity,
					PeakDemandKW: demand,
				})
			}
		}
	}
	return &UsageProfile{Events: events}, nil
}

// FromEvents wraps a caller-supplied event stream, enforcing the profile
// invariants: ascending timestamps and non-negative quantities.
func FromEvents(events []tariff.ConsumptionEvent) (*UsageProfile, error) {
	for i, ev := range events {
		if ev.QuantityKWh.IsNegative() {
			return nil, invalidf("event %d at %s has negative quantity %s",
				i, ev.Timestamp.Format(time.RFC3339), ev.QuantityKWh)
		}
		if ev.PeakDemandKW.IsNegative() {
			return nil, invalidf("event %d at %s has negative demand %s",
				i, ev.Timestamp.Format(time.RFC3339), ev.PeakDemandKW)
		}
		if i > 0 && !events[i-1].Timestamp.Before(ev.Timestamp) {
			return nil, invalidf("event %d at %s is not after its predecessor",
				i, ev.Timestamp.Format(time.RFC3339))
		}
	}
	return &UsageProfile{Events: events}, nil
}

// WithEfficiency returns a copy of the profile with every event's energy
// and demand scaled down by the given gain, a fraction in [0, 1). A gain
// of 0.2 models an efficiency upgrade that shaves 20% off consumption.
func (p *UsageProfile) WithEfficiency(gain decimal.Decimal) (*UsageProfile, error) {
	if gain.IsNegative() || gain.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, invalidf("efficiency gain %s outside [0, 1)", gain)
	}
	if gain.IsZero() {
		return p, nil
	}
	keep := decimal.NewFromInt(1).Sub(gain)
	scaled := make([]tariff.ConsumptionEvent, len(p.Events))
	for i, ev := range p.Events {
		scaled[i] = tariff.ConsumptionEvent{
			Timestamp:    ev.Timestamp,
			QuantityKWh:  ev.QuantityKWh.Mul(keep),
			PeakDemandKW: ev.PeakDemandKW.Mul(keep),
		}
	}
	return &UsageProfile{Events: scaled}, nil
}

// TotalKWh sums the profile's energy.
func (p *UsageProfile) TotalKWh() decimal.Decimal {
	var total decimal.Decimal
	for _, ev := range p.Events {
		total = total.Add(ev.QuantityKWh)
	}
	return total
}

func daysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
