// Package api exposes the rate catalog and the bill simulator over HTTP:
// simulation and comparison runs, plan lookups, persisted run retrieval,
// email settings, health and metrics endpoints, and the embedded OpenAPI
// docs.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/api/swagger"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/catalog"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/metrics"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/notification"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/refresh"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/simulate"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/storage"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/tariffcache"
)

// Server carries the wired application services for the HTTP handlers.
// Construction is explicit; nothing here reads the environment.
type Server struct {
	catalog   *catalog.Catalog
	cache     *tariffcache.Cache
	simulator *simulate.Simulator
	store     storage.Storage
	notifier  *notification.Service
	refresher *refresh.Worker
	log       zerolog.Logger
}

// NewServer wires the handlers. The refresher may be nil when the process
// runs without a refresh worker; /internal/refresh then returns 503.
func NewServer(cat *catalog.Catalog, cache *tariffcache.Cache, sim *simulate.Simulator, store storage.Storage, notifier *notification.Service, refresher *refresh.Worker, logger zerolog.Logger) *Server {
	return &Server{
		catalog:   cat,
		cache:     cache,
		simulator: sim,
		store:     store,
		notifier:  notifier,
		refresher: refresher,
		log:       logger.With().Str("component", "api").Logger(),
	}
}

// Routes constructs the HTTP mux with all endpoints registered.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Metrics endpoint.
	mux.Handle("/metrics", promhttp.Handler())

	// Health / readiness / liveness.
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := s.store.Ping(r.Context()); err != nil {
			s.log.Error().Err(err).Msg("readyz: storage ping failed")
			http.Error(w, "storage not ready", http.StatusServiceUnavailable)
			return
		}
		if s.catalog.Len() == 0 {
			http.Error(w, "catalog empty", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("live"))
	})

	// Simulation API.
	mux.HandleFunc("/api/v1/simulate", s.instrument("/api/v1/simulate", s.handleSimulate))
	mux.HandleFunc("/api/v1/compare", s.instrument("/api/v1/compare", s.handleCompare))
	mux.HandleFunc("/api/v1/simulations", s.instrument("/api/v1/simulations", s.handleListSimulations))
	mux.HandleFunc("/api/v1/simulations/", s.instrument("/api/v1/simulations/{id}", s.handleGetSimulation))

	// Plan catalog API.
	mux.HandleFunc("/api/v1/plans", s.instrument("/api/v1/plans", s.handleListPlans))
	mux.HandleFunc("/api/v1/plans/", s.instrument("/api/v1/plans/{id}", s.handlePlan))

	// Operational endpoints.
	mux.HandleFunc("/api/v1/status", s.instrument("/api/v1/status", s.handleStatus))
	mux.HandleFunc("/api/v1/settings/email", s.instrument("/api/v1/settings/email", s.handleEmailSettings))
	mux.HandleFunc("/api/v1/settings/email/test", s.instrument("/api/v1/settings/email/test", s.handleEmailTest))
	mux.HandleFunc("/internal/refresh", s.instrument("/internal/refresh", s.handleRefresh))

	// API docs.
	mux.Handle("/swagger/", http.StripPrefix("/swagger", swagger.Handler()))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/swagger/", http.StatusFound)
	})

	return mux
}

// statusWriter records the response code for metrics and request logs.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// instrument wraps a handler with request counting, duration observation
// and a per-request log line. The path label is the route pattern, not the
// raw URL, so cardinality stays bounded.
func (s *Server) instrument(path string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		metrics.RequestsTotal.WithLabelValues(path, r.Method).Inc()
		h(sw, r)

		dur := time.Since(start)
		metrics.RequestDurationSeconds.WithLabelValues(path).Observe(dur.Seconds())
		if sw.status >= 400 {
			metrics.RequestErrorsTotal.WithLabelValues(path, strconv.Itoa(sw.status)).Inc()
		}

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("duration", dur).
			Msg("request")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleStatus reports catalog, cache and refresh-job state in one place.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	stats := s.cache.Stats()

	type jobStatus struct {
		LastRunAt      *time.Time `json:"last_run_at,omitempty"`
		LastDurationMs int64      `json:"last_duration_ms,omitempty"`
		LastSuccess    bool       `json:"last_success"`
		LastError      string     `json:"last_error,omitempty"`
	}

	resp := struct {
		Plans           []string  `json:"plans"`
		CatalogVersions int       `json:"catalog_versions"`
		CacheEntries    int       `json:"cache_entries"`
		CacheHits       uint64    `json:"cache_hits"`
		CacheMisses     uint64    `json:"cache_misses"`
		CacheEvictions  uint64    `json:"cache_evictions"`
		LastRefresh     string    `json:"last_refresh_success,omitempty"`
		RefreshJob      jobStatus `json:"refresh_job"`
	}{
		Plans:           s.catalog.Plans(),
		CatalogVersions: s.catalog.Len(),
		CacheEntries:    s.cache.Len(),
		CacheHits:       stats.Hits,
		CacheMisses:     stats.Misses,
		CacheEvictions:  stats.Evictions,
	}

	if last, err := s.store.GetSetting(ctx, refresh.LastSuccessSettingKey); err == nil {
		resp.LastRefresh = last
	}
	if job, err := s.store.GetScheduledJob(ctx, refresh.JobName); err == nil && job != nil {
		t := job.LastRunAt
		resp.RefreshJob = jobStatus{
			LastRunAt:      &t,
			LastDurationMs: job.LastDurationMs,
			LastSuccess:    job.LastSuccess == 1,
			LastError:      job.LastError,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleRefresh triggers a refresh pass out of schedule. CronJobs and
// operators use it; it is not part of the public surface.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.refresher == nil {
		http.Error(w, "refresh worker not running", http.StatusServiceUnavailable)
		return
	}

	// Bound the pass so a hung upstream cannot pin the request.
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	if err := s.refresher.RunOnce(ctx); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
