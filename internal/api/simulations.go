package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RunSummaryDTO is the list-view of a persisted simulation run.
type RunSummaryDTO struct {
	ID         string    `json:"id"`
	StartMonth string    `json:"start_month"`
	Months     int       `json:"months"`
	Scenarios  int       `json:"scenarios"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Server) handleListSimulations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = v
	}

	runs, err := s.store.ListSimulationRuns(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("list simulation runs failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]RunSummaryDTO, 0, len(runs))
	for _, run := range runs {
		out = append(out, RunSummaryDTO{
			ID:         run.ID,
			StartMonth: run.StartMonth,
			Months:     run.Months,
			Scenarios:  run.Scenarios,
			CreatedAt:  run.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, struct {
		Runs []RunSummaryDTO `json:"runs"`
	}{Runs: out})
}

// handleGetSimulation replays a persisted run document exactly as it was
// served when the simulation ran.
func (s *Server) handleGetSimulation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/simulations/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	run, err := s.store.GetSimulationRun(r.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Str("run_id", id).Msg("get simulation run failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(run.Payload)
}
