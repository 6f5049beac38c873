package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/catalog"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/tariff"
)

// PlanSummaryDTO is the list-view of a catalog plan.
type PlanSummaryDTO struct {
	PlanID          string `json:"plan_id"`
	UtilityID       string `json:"utility_id"`
	Currency        string `json:"currency,omitempty"`
	Version         uint64 `json:"version"`
	EffectiveFrom   string `json:"effective_from"`
	Tiers           int    `json:"tiers"`
	TOUWindows      int    `json:"tou_windows"`
	HasDemandCharge bool   `json:"has_demand_charge"`
	Versions        int    `json:"versions"`
}

func toPlanSummary(latest *tariff.RateStructure, versions int) PlanSummaryDTO {
	return PlanSummaryDTO{
		PlanID:          latest.PlanID,
		UtilityID:       latest.UtilityID,
		Currency:        latest.Currency,
		Version:         latest.Version,
		EffectiveFrom:   latest.EffectiveFrom.Format("2006-01-02"),
		Tiers:           len(latest.Tiers),
		TOUWindows:      len(latest.TOUWindows),
		HasDemandCharge: latest.Demand != nil,
		Versions:        versions,
	}
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ids := s.catalog.Plans()
	summaries := make([]PlanSummaryDTO, 0, len(ids))
	for _, id := range ids {
		latest, err := s.catalog.Latest(id)
		if err != nil {
			continue
		}
		versions, err := s.catalog.Versions(id)
		if err != nil {
			continue
		}
		summaries = append(summaries, toPlanSummary(latest, len(versions)))
	}

	writeJSON(w, http.StatusOK, struct {
		Plans []PlanSummaryDTO `json:"plans"`
	}{Plans: summaries})
}

// handlePlan serves /api/v1/plans/{id} and /api/v1/plans/{id}/versions.
// The detail endpoint accepts ?as_of=YYYY-MM-DD to select by effective
// date; without it the latest version is returned. Rates are served with
// their full declared precision, rounding applies only to computed bills.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1/plans/")
	parts := strings.Split(path, "/")
	if len(parts) < 1 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	planID := parts[0]

	if len(parts) == 2 && parts[1] == "versions" {
		versions, err := s.catalog.Versions(planID)
		if err != nil {
			s.writePlanError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			PlanID   string                  `json:"plan_id"`
			Versions []*tariff.RateStructure `json:"versions"`
		}{PlanID: planID, Versions: versions})
		return
	}
	if len(parts) != 1 {
		http.NotFound(w, r)
		return
	}

	var (
		rs  *tariff.RateStructure
		err error
	)
	if asOf := r.URL.Query().Get("as_of"); asOf != "" {
		var t time.Time
		t, err = time.Parse("2006-01-02", asOf)
		if err != nil {
			http.Error(w, "bad as_of date, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		rs, err = s.catalog.Structure(planID, t.UTC())
	} else {
		rs, err = s.catalog.Latest(planID)
	}
	if err != nil {
		s.writePlanError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rs)
}

func (s *Server) writePlanError(w http.ResponseWriter, err error) {
	if errors.Is(err, catalog.ErrPlanNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
