package api

import (
	"encoding/json"
	"net/http"

	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/storage"
)

// handleEmailSettings serves GET and PUT for the notification email
// configuration.
func (s *Server) handleEmailSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg, err := s.notifier.GetConfig(r.Context())
		if err != nil {
			s.log.Error().Err(err).Msg("get email config failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if cfg == nil {
			cfg = &storage.EmailConfig{}
		}
		writeJSON(w, http.StatusOK, cfg)

	case http.MethodPut:
		var req storage.EmailConfig
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := s.notifier.SaveConfig(r.Context(), req); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleEmailTest sends a test email with a possibly unsaved configuration
// so operators can verify credentials before committing them.
func (s *Server) handleEmailTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Config storage.EmailConfig `json:"config"`
		To     string              `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.To == "" {
		http.Error(w, "missing recipient", http.StatusBadRequest)
		return
	}

	if err := s.notifier.TestConfig(r.Context(), req.Config, req.To); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}
