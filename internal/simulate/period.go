package simulate

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/tariff"
)

// ErrPeriodClosed is returned when a billing period is asked to accept an
// event or close again after it has already closed.
var ErrPeriodClosed = errors.New("billing period already closed")

type periodPhase int

const (
	periodOpen periodPhase = iota
	periodAccumulating
	periodClosed
)

// billingPeriod tracks one scenario-month through its lifecycle. It opens
// empty, accumulates priced events, and closes exactly once; closing is
// when the demand charge and fixed fee are assessed, so a period can never
// be double-billed.
type billingPeriod struct {
	month time.Time
	phase periodPhase

	state tariff.PeriodState

	energy      decimal.Decimal
	tierCost    decimal.Decimal
	touAdj      decimal.Decimal
	seasonalAdj decimal.Decimal
	events      int
}

func openPeriod(month time.Time) *billingPeriod {
	p := &billingPeriod{month: month}
	p.state.Reset()
	return p
}

// accumulate folds one priced event into the running totals. The tier
// counter reset at open is what gives every month a fresh ladder.
func (p *billingPeriod) accumulate(pb tariff.PriceBreakdown) error {
	if p.phase == periodClosed {
		return fmt.Errorf("%w: event after close of %s", ErrPeriodClosed, p.month.Format("2006-01"))
	}
	p.phase = periodAccumulating
	p.energy = p.energy.Add(pb.EnergyCost)
	p.tierCost = p.tierCost.Add(pb.TierCost)
	p.touAdj = p.touAdj.Add(pb.TOUAdjustment)
	p.seasonalAdj = p.seasonalAdj.Add(pb.SeasonalAdjustment)
	p.events++
	return nil
}

// close settles the period against the structure it was billed under.
// billedDemand carries the ratchet decision made by the caller; pass the
// period's own peak when no ratchet applies.
func (p *billingPeriod) close(rs *tariff.RateStructure, billedDemand decimal.Decimal) (BillResult, error) {
	if p.phase == periodClosed {
		return BillResult{}, fmt.Errorf("%w: %s", ErrPeriodClosed, p.month.Format("2006-01"))
	}
	p.phase = periodClosed

	var demandCharge decimal.Decimal
	if rs.Demand != nil {
		demandCharge = billedDemand.Mul(rs.Demand.RatePerKW)
	}
	fixed := rs.FixedMonthlyFee
	total := p.energy.Add(demandCharge).Add(fixed)

	return BillResult{
		Month:              p.month.Format("2006-01"),
		PlanID:             rs.PlanID,
		PlanVersion:        rs.Version,
		Events:             p.events,
		UsageKWh:           p.state.CumulativeKWh,
		PeakDemandKW:       p.state.PeakDemandKW,
		BilledDemandKW:     billedDemand,
		TierCost:           p.tierCost,
		TOUAdjustment:      p.touAdj,
		SeasonalAdjustment: p.seasonalAdj,
		EnergyCost:         p.energy,
		DemandCharge:       demandCharge,
		FixedFee:           fixed,
		Total:              total,
		Currency:           rs.Currency,
	}, nil
}

// ratchetWindow picks the demand a period is billed at: the greater of its
// own peak and every peak seen in the trailing window of already-closed
// months. A window of zero months disables the memory.
func ratchetWindow(currentPeak decimal.Decimal, history []decimal.Decimal, months int) decimal.Decimal {
	billed := currentPeak
	if months <= 0 {
		return billed
	}
	from := len(history) - months
	if from < 0 {
		from = 0
	}
	for _, peak := range history[from:] {
		if peak.GreaterThan(billed) {
			billed = peak
		}
	}
	return billed
}
