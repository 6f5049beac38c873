package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/catalog"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/profile"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/simulate"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/storage"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/tariff"
)

// BillDTO is one settled scenario-month as presented over the API. All
// amounts are rounded to two decimals here and nowhere deeper in the
// engine.
type BillDTO struct {
	Month          string  `json:"month"`
	PlanID         string  `json:"plan_id"`
	PlanVersion    uint64  `json:"plan_version"`
	Events         int     `json:"events"`
	UsageKWh       float64 `json:"usage_kwh"`
	PeakDemandKW   float64 `json:"peak_demand_kw"`
	BilledDemandKW float64 `json:"billed_demand_kw"`

	TierCost           float64 `json:"tier_cost"`
	TOUAdjustment      float64 `json:"tou_adjustment"`
	SeasonalAdjustment float64 `json:"seasonal_adjustment"`
	EnergyCost         float64 `json:"energy_cost"`
	DemandCharge       float64 `json:"demand_charge"`
	FixedFee           float64 `json:"fixed_fee"`
	Total              float64 `json:"total"`
	Currency           string  `json:"currency,omitempty"`
}

// ScenarioDTO is a billed scenario across the horizon.
type ScenarioDTO struct {
	Scenario   string    `json:"scenario"`
	PlanID     string    `json:"plan_id"`
	Months     []BillDTO `json:"months"`
	TotalKWh   float64   `json:"total_usage_kwh"`
	TotalCost  float64   `json:"total_cost"`
	AvgMonthly float64   `json:"avg_monthly_cost"`
}

// DeltaDTO is one scenario's standing against the comparison baseline.
type DeltaDTO struct {
	Scenario       string  `json:"scenario"`
	PlanID         string  `json:"plan_id"`
	TotalCost      float64 `json:"total_cost"`
	Savings        float64 `json:"savings_vs_baseline"`
	SavingsPercent float64 `json:"savings_percent"`
}

// ComparisonDTO ranks scenarios cheapest-first against the baseline.
type ComparisonDTO struct {
	Baseline      string     `json:"baseline"`
	BaselineTotal float64    `json:"baseline_total"`
	Ranked        []DeltaDTO `json:"ranked"`
	Cheapest      string     `json:"cheapest"`
}

// RunDTO is the full simulation response document. It is also what gets
// persisted for later retrieval, so a stored run replays byte-identically.
type RunDTO struct {
	ID         string         `json:"id"`
	StartMonth string         `json:"start_month"`
	Months     int            `json:"months"`
	ElapsedMs  int64          `json:"elapsed_ms"`
	CreatedAt  time.Time      `json:"created_at"`
	Scenarios  []ScenarioDTO  `json:"scenarios"`
	Comparison *ComparisonDTO `json:"comparison,omitempty"`
}

func money(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func toBillDTO(b simulate.BillResult) BillDTO {
	return BillDTO{
		Month:              b.Month,
		PlanID:             b.PlanID,
		PlanVersion:        b.PlanVersion,
		Events:             b.Events,
		UsageKWh:           money(b.UsageKWh),
		PeakDemandKW:       money(b.PeakDemandKW),
		BilledDemandKW:     money(b.BilledDemandKW),
		TierCost:           money(b.TierCost),
		TOUAdjustment:      money(b.TOUAdjustment),
		SeasonalAdjustment: money(b.SeasonalAdjustment),
		EnergyCost:         money(b.EnergyCost),
		DemandCharge:       money(b.DemandCharge),
		FixedFee:           money(b.FixedFee),
		Total:              money(b.Total),
		Currency:           b.Currency,
	}
}

func toScenarioDTO(r *simulate.ScenarioResult) ScenarioDTO {
	months := make([]BillDTO, 0, len(r.Months))
	for _, m := range r.Months {
		months = append(months, toBillDTO(m))
	}
	return ScenarioDTO{
		Scenario:   r.Scenario,
		PlanID:     r.PlanID,
		Months:     months,
		TotalKWh:   money(r.TotalKWh),
		TotalCost:  money(r.TotalCost),
		AvgMonthly: money(r.AvgMonthly),
	}
}

func toComparisonDTO(c *simulate.Comparison) *ComparisonDTO {
	if c == nil {
		return nil
	}
	ranked := make([]DeltaDTO, 0, len(c.Ranked))
	for _, d := range c.Ranked {
		ranked = append(ranked, DeltaDTO{
			Scenario:       d.Scenario,
			PlanID:         d.PlanID,
			TotalCost:      money(d.TotalCost),
			Savings:        money(d.Savings),
			SavingsPercent: money(d.SavingsPercent),
		})
	}
	return &ComparisonDTO{
		Baseline:      c.Baseline,
		BaselineTotal: money(c.BaselineTotal),
		Ranked:        ranked,
		Cheapest:      c.Cheapest,
	}
}

// ToRunDTO renders a run for presentation. The CLI uses it too, so a run
// printed on a terminal and a run served over HTTP round the same way.
func ToRunDTO(run *simulate.RunResult, createdAt time.Time) RunDTO {
	scenarios := make([]ScenarioDTO, 0, len(run.Scenarios))
	for _, sc := range run.Scenarios {
		scenarios = append(scenarios, toScenarioDTO(sc))
	}
	return RunDTO{
		ID:         run.ID,
		StartMonth: run.StartMonth,
		Months:     run.Months,
		ElapsedMs:  run.Elapsed.Milliseconds(),
		CreatedAt:  createdAt,
		Scenarios:  scenarios,
		Comparison: toComparisonDTO(run.Comparison),
	}
}

// statusForSimError maps engine errors onto HTTP codes: malformed input is
// the caller's fault, unknown plans are 404, the rest is ours.
func statusForSimError(err error) int {
	switch {
	case errors.Is(err, catalog.ErrPlanNotFound):
		return http.StatusNotFound
	case errors.Is(err, profile.ErrInvalidProfile),
		errors.Is(err, tariff.ErrTierConfiguration),
		errors.Is(err, simulate.ErrEmptyScenarioSet),
		errors.Is(err, simulate.ErrBaselineNotFound),
		errors.Is(err, simulate.ErrScenarioName):
		return http.StatusBadRequest
	}
	var hm *simulate.HorizonMismatchError
	if errors.As(err, &hm) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) decodeSimRequest(w http.ResponseWriter, r *http.Request) (simulate.Request, bool) {
	var req simulate.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return req, false
	}
	if req.StartMonth == "" {
		req.StartMonth = profile.FormatMonth(time.Now())
	}
	if req.Months == 0 {
		req.Months = 12
	}
	return req, true
}

// handleSimulate runs the scenarios, persists the run document and returns
// it. Persistence is best-effort: a storage failure is logged, not
// surfaced, because the simulation itself succeeded.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, ok := s.decodeSimRequest(w, r)
	if !ok {
		return
	}

	run, err := s.simulator.Run(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), statusForSimError(err))
		return
	}

	dto := ToRunDTO(run, time.Now().UTC())
	payload, err := json.Marshal(dto)
	if err == nil {
		saveErr := s.store.SaveSimulationRun(r.Context(), storage.SimulationRun{
			ID:         dto.ID,
			StartMonth: dto.StartMonth,
			Months:     dto.Months,
			Scenarios:  len(dto.Scenarios),
			Payload:    payload,
			CreatedAt:  dto.CreatedAt,
		})
		if saveErr != nil {
			s.log.Error().Err(saveErr).Str("run_id", dto.ID).Msg("persist simulation run failed")
		}
	}

	writeJSON(w, http.StatusOK, dto)
}

// handleCompare runs the scenarios and returns only the ranking. Nothing
// is persisted.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, ok := s.decodeSimRequest(w, r)
	if !ok {
		return
	}

	run, err := s.simulator.Run(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), statusForSimError(err))
		return
	}

	writeJSON(w, http.StatusOK, toComparisonDTO(run.Comparison))
}
