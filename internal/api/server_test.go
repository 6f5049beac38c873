package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/catalog"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/notification"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/refresh"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/simulate"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/storage"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/tariff"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/tariffcache"
)

func flatPlan() *tariff.RateStructure {
	return &tariff.RateStructure{
		PlanID:          "flat-basic",
		UtilityID:       "metro-power",
		Currency:        "USD",
		EffectiveFrom:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		BaseRatePerKWh:  decimal.RequireFromString("0.10"),
		FixedMonthlyFee: decimal.RequireFromString("3.50"),
	}
}

func tieredPlan() *tariff.RateStructure {
	upper := decimal.NewFromInt(100)
	return &tariff.RateStructure{
		PlanID:        "tiered-home",
		UtilityID:     "tneb",
		Currency:      "INR",
		EffectiveFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Tiers: []tariff.Tier{
			{LowerKWh: decimal.Zero, UpperKWh: &upper, RatePerKWh: decimal.RequireFromString("2.00")},
			{LowerKWh: upper, RatePerKWh: decimal.RequireFromString("4.50")},
		},
		FixedMonthlyFee: decimal.RequireFromString("50"),
	}
}

func newTestServer(t *testing.T, plans ...*tariff.RateStructure) (*http.ServeMux, storage.Storage) {
	t.Helper()
	logger := zerolog.Nop()

	cat := catalog.New(logger)
	for _, p := range plans {
		if err := cat.Publish(p); err != nil {
			t.Fatalf("publish %s: %v", p.PlanID, err)
		}
	}

	store := storage.NewMemory()
	cache := tariffcache.New(32, logger)
	sim := simulate.New(cat, cache, logger)
	notifier := notification.NewService(store, logger)

	srv := NewServer(cat, cache, sim, store, notifier, nil, logger)
	return srv.Routes(), store
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

const simulateBody = `{
	"start_month": "2025-01",
	"months": 3,
	"scenarios": [
		{
			"name": "current",
			"plan_id": "flat-basic",
			"household": {"appliances": [{"type": "refrigerator"}, {"type": "television"}]}
		},
		{
			"name": "switch",
			"plan_id": "tiered-home",
			"household": {"appliances": [{"type": "refrigerator"}, {"type": "television"}]}
		}
	]
}`

func TestSimulateRoundTrip(t *testing.T) {
	mux, store := newTestServer(t, flatPlan(), tieredPlan())

	rr := doJSON(t, mux, http.MethodPost, "/api/v1/simulate", simulateBody)
	if got, want := rr.Code, http.StatusOK; got != want {
		t.Fatalf("status=%d want %d, body=%s", got, want, rr.Body.String())
	}

	var run RunDTO
	if err := json.Unmarshal(rr.Body.Bytes(), &run); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected a run id")
	}
	if got, want := run.StartMonth, "2025-01"; got != want {
		t.Fatalf("start_month=%q want %q", got, want)
	}
	if got, want := run.Months, 3; got != want {
		t.Fatalf("months=%d want %d", got, want)
	}
	if got, want := len(run.Scenarios), 2; got != want {
		t.Fatalf("scenarios=%d want %d", got, want)
	}

	for _, sc := range run.Scenarios {
		if got, want := len(sc.Months), 3; got != want {
			t.Fatalf("%s: months=%d want %d", sc.Scenario, got, want)
		}
		if sc.TotalCost <= 0 {
			t.Fatalf("%s: total_cost=%v want > 0", sc.Scenario, sc.TotalCost)
		}
		// Per-month amounts are rounded independently of the scenario
		// total, so allow a cent of drift per month.
		var sum float64
		for _, m := range sc.Months {
			sum += m.Total
			if m.Total <= 0 {
				t.Fatalf("%s %s: total=%v want > 0", sc.Scenario, m.Month, m.Total)
			}
		}
		if math.Abs(sum-sc.TotalCost) > 0.03 {
			t.Fatalf("%s: month sum %v vs total %v", sc.Scenario, sum, sc.TotalCost)
		}
	}

	if run.Comparison == nil {
		t.Fatal("expected a comparison")
	}
	if got, want := run.Comparison.Baseline, "current"; got != want {
		t.Fatalf("baseline=%q want %q", got, want)
	}
	if got, want := len(run.Comparison.Ranked), 2; got != want {
		t.Fatalf("ranked=%d want %d", got, want)
	}

	// The run was persisted under its id.
	stored, err := store.GetSimulationRun(context.Background(), run.ID)
	if err != nil || stored == nil {
		t.Fatalf("stored run: %v %v", stored, err)
	}
	if got, want := stored.Scenarios, 2; got != want {
		t.Fatalf("stored scenarios=%d want %d", got, want)
	}
}

func TestSimulateMonthlyBillAddsUp(t *testing.T) {
	mux, _ := newTestServer(t, flatPlan())

	body := `{
		"start_month": "2025-01",
		"months": 1,
		"scenarios": [{"name": "base", "plan_id": "flat-basic",
			"household": {"appliances": [{"type": "refrigerator"}]}}]
	}`
	rr := doJSON(t, mux, http.MethodPost, "/api/v1/simulate", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	var run RunDTO
	if err := json.Unmarshal(rr.Body.Bytes(), &run); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	m := run.Scenarios[0].Months[0]

	if got, want := m.PlanID, "flat-basic"; got != want {
		t.Fatalf("plan_id=%q want %q", got, want)
	}
	if m.PlanVersion == 0 {
		t.Fatal("expected a published plan version")
	}
	if got := m.EnergyCost + m.DemandCharge + m.FixedFee; math.Abs(got-m.Total) > 0.02 {
		t.Fatalf("energy %v + demand %v + fixed %v = %v, total %v",
			m.EnergyCost, m.DemandCharge, m.FixedFee, got, m.Total)
	}
	if got, want := m.FixedFee, 3.5; got != want {
		t.Fatalf("fixed_fee=%v want %v", got, want)
	}
	if got, want := m.Currency, "USD"; got != want {
		t.Fatalf("currency=%q want %q", got, want)
	}
}

func TestSimulateUnknownPlan(t *testing.T) {
	mux, _ := newTestServer(t, flatPlan())

	body := `{"months": 1, "scenarios": [{"name": "x", "plan_id": "no-such-plan",
		"household": {"appliances": [{"type": "refrigerator"}]}}]}`
	rr := doJSON(t, mux, http.MethodPost, "/api/v1/simulate", body)
	if got, want := rr.Code, http.StatusNotFound; got != want {
		t.Fatalf("status=%d want %d, body=%s", got, want, rr.Body.String())
	}
}

func TestSimulateBadRequests(t *testing.T) {
	mux, _ := newTestServer(t, flatPlan())

	cases := []struct {
		name string
		body string
	}{
		{"not json", `{"months": `},
		{"no scenarios", `{"months": 2, "scenarios": []}`},
		{"horizon too long", `{"months": 600, "scenarios": [{"name": "x", "plan_id": "flat-basic",
			"household": {"appliances": [{"type": "refrigerator"}]}}]}`},
		{"empty household", `{"months": 2, "scenarios": [{"name": "x", "plan_id": "flat-basic",
			"household": {"appliances": []}}]}`},
	}
	for _, tc := range cases {
		rr := doJSON(t, mux, http.MethodPost, "/api/v1/simulate", tc.body)
		if got, want := rr.Code, http.StatusBadRequest; got != want {
			t.Fatalf("%s: status=%d want %d, body=%s", tc.name, got, want, rr.Body.String())
		}
	}
}

func TestSimulateMethodNotAllowed(t *testing.T) {
	mux, _ := newTestServer(t, flatPlan())

	rr := doJSON(t, mux, http.MethodGet, "/api/v1/simulate", "")
	if got, want := rr.Code, http.StatusMethodNotAllowed; got != want {
		t.Fatalf("status=%d want %d", got, want)
	}
}

func TestCompareReturnsRankingOnly(t *testing.T) {
	mux, store := newTestServer(t, flatPlan(), tieredPlan())

	rr := doJSON(t, mux, http.MethodPost, "/api/v1/compare", simulateBody)
	if got, want := rr.Code, http.StatusOK; got != want {
		t.Fatalf("status=%d want %d, body=%s", got, want, rr.Body.String())
	}

	var cmp ComparisonDTO
	if err := json.Unmarshal(rr.Body.Bytes(), &cmp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got, want := cmp.Baseline, "current"; got != want {
		t.Fatalf("baseline=%q want %q", got, want)
	}
	if cmp.Cheapest == "" {
		t.Fatal("expected a cheapest scenario")
	}
	if got, want := len(cmp.Ranked), 2; got != want {
		t.Fatalf("ranked=%d want %d", got, want)
	}
	if cmp.Ranked[0].TotalCost > cmp.Ranked[1].TotalCost {
		t.Fatalf("ranking not cheapest-first: %v", cmp.Ranked)
	}

	// Compare never persists.
	runs, err := store.ListSimulationRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("compare persisted %d runs", len(runs))
	}
}

func TestListSimulations(t *testing.T) {
	mux, _ := newTestServer(t, flatPlan(), tieredPlan())

	for i := 0; i < 2; i++ {
		rr := doJSON(t, mux, http.MethodPost, "/api/v1/simulate", simulateBody)
		if rr.Code != http.StatusOK {
			t.Fatalf("simulate %d: status=%d", i, rr.Code)
		}
	}

	rr := doJSON(t, mux, http.MethodGet, "/api/v1/simulations", "")
	if got, want := rr.Code, http.StatusOK; got != want {
		t.Fatalf("status=%d want %d", got, want)
	}
	var resp struct {
		Runs []RunSummaryDTO `json:"runs"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got, want := len(resp.Runs), 2; got != want {
		t.Fatalf("runs=%d want %d", got, want)
	}
	for _, r := range resp.Runs {
		if r.ID == "" || r.Months != 3 || r.Scenarios != 2 {
			t.Fatalf("bad summary: %+v", r)
		}
	}

	rr = doJSON(t, mux, http.MethodGet, "/api/v1/simulations?limit=1", "")
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got, want := len(resp.Runs), 1; got != want {
		t.Fatalf("limited runs=%d want %d", got, want)
	}

	rr = doJSON(t, mux, http.MethodGet, "/api/v1/simulations?limit=abc", "")
	if got, want := rr.Code, http.StatusBadRequest; got != want {
		t.Fatalf("bad limit: status=%d want %d", got, want)
	}
}

func TestGetSimulationReplaysStoredRun(t *testing.T) {
	mux, _ := newTestServer(t, flatPlan(), tieredPlan())

	rr := doJSON(t, mux, http.MethodPost, "/api/v1/simulate", simulateBody)
	var live RunDTO
	if err := json.Unmarshal(rr.Body.Bytes(), &live); err != nil {
		t.Fatalf("unmarshal live: %v", err)
	}

	rr = doJSON(t, mux, http.MethodGet, "/api/v1/simulations/"+live.ID, "")
	if got, want := rr.Code, http.StatusOK; got != want {
		t.Fatalf("status=%d want %d", got, want)
	}
	var replay RunDTO
	if err := json.Unmarshal(rr.Body.Bytes(), &replay); err != nil {
		t.Fatalf("unmarshal replay: %v", err)
	}
	if replay.ID != live.ID || replay.Scenarios[0].TotalCost != live.Scenarios[0].TotalCost {
		t.Fatalf("replay differs from live run")
	}

	rr = doJSON(t, mux, http.MethodGet, "/api/v1/simulations/no-such-run", "")
	if got, want := rr.Code, http.StatusNotFound; got != want {
		t.Fatalf("unknown id: status=%d want %d", got, want)
	}
}

func TestListPlans(t *testing.T) {
	mux, _ := newTestServer(t, flatPlan(), tieredPlan())

	rr := doJSON(t, mux, http.MethodGet, "/api/v1/plans", "")
	if got, want := rr.Code, http.StatusOK; got != want {
		t.Fatalf("status=%d want %d", got, want)
	}
	var resp struct {
		Plans []PlanSummaryDTO `json:"plans"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got, want := len(resp.Plans), 2; got != want {
		t.Fatalf("plans=%d want %d", got, want)
	}

	var tiered *PlanSummaryDTO
	for i := range resp.Plans {
		if resp.Plans[i].PlanID == "tiered-home" {
			tiered = &resp.Plans[i]
		}
	}
	if tiered == nil {
		t.Fatal("tiered-home missing from list")
	}
	if tiered.Tiers != 2 || tiered.Currency != "INR" || tiered.Version == 0 || tiered.Versions != 1 {
		t.Fatalf("bad summary: %+v", tiered)
	}
}

func TestGetPlanServesDeclaredPrecision(t *testing.T) {
	mux, _ := newTestServer(t, flatPlan())

	rr := doJSON(t, mux, http.MethodGet, "/api/v1/plans/flat-basic", "")
	if got, want := rr.Code, http.StatusOK; got != want {
		t.Fatalf("status=%d want %d", got, want)
	}
	var rs tariff.RateStructure
	if err := json.Unmarshal(rr.Body.Bytes(), &rs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got, want := rs.PlanID, "flat-basic"; got != want {
		t.Fatalf("plan_id=%q want %q", got, want)
	}
	if !rs.BaseRatePerKWh.Equal(decimal.RequireFromString("0.10")) {
		t.Fatalf("base rate=%s want 0.10", rs.BaseRatePerKWh)
	}

	rr = doJSON(t, mux, http.MethodGet, "/api/v1/plans/no-such-plan", "")
	if got, want := rr.Code, http.StatusNotFound; got != want {
		t.Fatalf("unknown plan: status=%d want %d", got, want)
	}
}

func TestGetPlanAsOf(t *testing.T) {
	old := flatPlan()
	cutover := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	old.EffectiveTo = &cutover

	current := flatPlan()
	current.EffectiveFrom = cutover
	current.BaseRatePerKWh = decimal.RequireFromString("0.12")

	mux, _ := newTestServer(t, old, current)

	rr := doJSON(t, mux, http.MethodGet, "/api/v1/plans/flat-basic?as_of=2024-06-15", "")
	if got, want := rr.Code, http.StatusOK; got != want {
		t.Fatalf("status=%d want %d, body=%s", got, want, rr.Body.String())
	}
	var rs tariff.RateStructure
	if err := json.Unmarshal(rr.Body.Bytes(), &rs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !rs.BaseRatePerKWh.Equal(decimal.RequireFromString("0.10")) {
		t.Fatalf("as_of 2024 selected rate %s", rs.BaseRatePerKWh)
	}

	rr = doJSON(t, mux, http.MethodGet, "/api/v1/plans/flat-basic", "")
	if err := json.Unmarshal(rr.Body.Bytes(), &rs); err != nil {
		t.Fatalf("unmarshal latest: %v", err)
	}
	if !rs.BaseRatePerKWh.Equal(decimal.RequireFromString("0.12")) {
		t.Fatalf("latest selected rate %s", rs.BaseRatePerKWh)
	}

	rr = doJSON(t, mux, http.MethodGet, "/api/v1/plans/flat-basic?as_of=January", "")
	if got, want := rr.Code, http.StatusBadRequest; got != want {
		t.Fatalf("bad as_of: status=%d want %d", got, want)
	}
}

func TestGetPlanVersions(t *testing.T) {
	old := flatPlan()
	cutover := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	old.EffectiveTo = &cutover
	current := flatPlan()
	current.EffectiveFrom = cutover

	mux, _ := newTestServer(t, old, current)

	rr := doJSON(t, mux, http.MethodGet, "/api/v1/plans/flat-basic/versions", "")
	if got, want := rr.Code, http.StatusOK; got != want {
		t.Fatalf("status=%d want %d", got, want)
	}
	var resp struct {
		PlanID   string                  `json:"plan_id"`
		Versions []*tariff.RateStructure `json:"versions"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got, want := len(resp.Versions), 2; got != want {
		t.Fatalf("versions=%d want %d", got, want)
	}
	if resp.Versions[0].Version >= resp.Versions[1].Version {
		t.Fatalf("versions not ascending: %d then %d", resp.Versions[0].Version, resp.Versions[1].Version)
	}
}

func TestStatusEndpoint(t *testing.T) {
	mux, store := newTestServer(t, flatPlan(), tieredPlan())

	started := time.Date(2025, 8, 1, 6, 0, 0, 0, time.UTC)
	if err := store.UpdateScheduledJob(context.Background(), refresh.JobName, started, 1500*time.Millisecond, true, ""); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	if err := store.SetSetting(context.Background(), refresh.LastSuccessSettingKey, started.Format(time.RFC3339)); err != nil {
		t.Fatalf("seed setting: %v", err)
	}

	rr := doJSON(t, mux, http.MethodGet, "/api/v1/status", "")
	if got, want := rr.Code, http.StatusOK; got != want {
		t.Fatalf("status=%d want %d", got, want)
	}
	var resp struct {
		Plans           []string `json:"plans"`
		CatalogVersions int      `json:"catalog_versions"`
		LastRefresh     string   `json:"last_refresh_success"`
		RefreshJob      struct {
			LastSuccess    bool  `json:"last_success"`
			LastDurationMs int64 `json:"last_duration_ms"`
		} `json:"refresh_job"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got, want := len(resp.Plans), 2; got != want {
		t.Fatalf("plans=%d want %d", got, want)
	}
	if got, want := resp.CatalogVersions, 2; got != want {
		t.Fatalf("catalog_versions=%d want %d", got, want)
	}
	if resp.LastRefresh == "" {
		t.Fatal("expected last_refresh_success")
	}
	if !resp.RefreshJob.LastSuccess || resp.RefreshJob.LastDurationMs != 1500 {
		t.Fatalf("bad refresh_job: %+v", resp.RefreshJob)
	}
}

func TestEmailSettingsRoundTrip(t *testing.T) {
	mux, _ := newTestServer(t, flatPlan())

	rr := doJSON(t, mux, http.MethodGet, "/api/v1/settings/email", "")
	if got, want := rr.Code, http.StatusOK; got != want {
		t.Fatalf("status=%d want %d", got, want)
	}
	var cfg storage.EmailConfig
	if err := json.Unmarshal(rr.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.Provider != "" {
		t.Fatalf("expected empty config, got provider %q", cfg.Provider)
	}

	body := `{"provider": "smtp", "host": "mail.example.com", "port": 465,
		"from_address": "billing@example.com", "encryption": "ssl", "enabled": true}`
	rr = doJSON(t, mux, http.MethodPut, "/api/v1/settings/email", body)
	if got, want := rr.Code, http.StatusOK; got != want {
		t.Fatalf("put: status=%d want %d, body=%s", got, want, rr.Body.String())
	}

	rr = doJSON(t, mux, http.MethodGet, "/api/v1/settings/email", "")
	if err := json.Unmarshal(rr.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("unmarshal saved: %v", err)
	}
	if cfg.Provider != "smtp" || cfg.Host != "mail.example.com" || !cfg.Enabled {
		t.Fatalf("saved config: %+v", cfg)
	}

	rr = doJSON(t, mux, http.MethodDelete, "/api/v1/settings/email", "")
	if got, want := rr.Code, http.StatusMethodNotAllowed; got != want {
		t.Fatalf("delete: status=%d want %d", got, want)
	}
}

func TestEmailTestRequiresRecipient(t *testing.T) {
	mux, _ := newTestServer(t, flatPlan())

	body := `{"config": {"provider": "smtp", "host": "localhost", "enabled": true}}`
	rr := doJSON(t, mux, http.MethodPost, "/api/v1/settings/email/test", body)
	if got, want := rr.Code, http.StatusBadRequest; got != want {
		t.Fatalf("status=%d want %d, body=%s", got, want, rr.Body.String())
	}
}

func TestRefreshWithoutWorker(t *testing.T) {
	mux, _ := newTestServer(t, flatPlan())

	rr := doJSON(t, mux, http.MethodPost, "/internal/refresh", "")
	if got, want := rr.Code, http.StatusServiceUnavailable; got != want {
		t.Fatalf("status=%d want %d", got, want)
	}
}

type stubSource struct {
	plans []*tariff.RateStructure
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Fetch(ctx context.Context) ([]*tariff.RateStructure, error) {
	return s.plans, nil
}

func TestRefreshTrigger(t *testing.T) {
	logger := zerolog.Nop()
	cat := catalog.New(logger)
	store := storage.NewMemory()
	cache := tariffcache.New(32, logger)
	sim := simulate.New(cat, cache, logger)
	notifier := notification.NewService(store, logger)

	src := &stubSource{plans: []*tariff.RateStructure{flatPlan()}}
	worker := refresh.New(cat, []catalog.Source{src}, store, nil, refresh.Config{}, logger)

	srv := NewServer(cat, cache, sim, store, notifier, worker, logger)
	mux := srv.Routes()

	// Catalog starts empty, so the service is not ready yet.
	rr := doJSON(t, mux, http.MethodGet, "/readyz", "")
	if got, want := rr.Code, http.StatusServiceUnavailable; got != want {
		t.Fatalf("readyz before refresh: status=%d want %d", got, want)
	}

	rr = doJSON(t, mux, http.MethodPost, "/internal/refresh", "")
	if got, want := rr.Code, http.StatusOK; got != want {
		t.Fatalf("refresh: status=%d want %d, body=%s", got, want, rr.Body.String())
	}

	if got, want := cat.Len(), 1; got != want {
		t.Fatalf("catalog len=%d want %d", got, want)
	}
	rr = doJSON(t, mux, http.MethodGet, "/readyz", "")
	if got, want := rr.Code, http.StatusOK; got != want {
		t.Fatalf("readyz after refresh: status=%d want %d", got, want)
	}
}

func TestHealthEndpoints(t *testing.T) {
	mux, _ := newTestServer(t, flatPlan())

	for _, path := range []string{"/healthz", "/livez", "/readyz"} {
		rr := doJSON(t, mux, http.MethodGet, path, "")
		if got, want := rr.Code, http.StatusOK; got != want {
			t.Fatalf("%s: status=%d want %d", path, got, want)
		}
	}

	rr := doJSON(t, mux, http.MethodGet, "/metrics", "")
	if got, want := rr.Code, http.StatusOK; got != want {
		t.Fatalf("/metrics: status=%d want %d", got, want)
	}
}

func TestRootRedirectsToDocs(t *testing.T) {
	mux, _ := newTestServer(t, flatPlan())

	rr := doJSON(t, mux, http.MethodGet, "/", "")
	if got, want := rr.Code, http.StatusFound; got != want {
		t.Fatalf("status=%d want %d", got, want)
	}
	if got, want := rr.Header().Get("Location"), "/swagger/"; got != want {
		t.Fatalf("location=%q want %q", got, want)
	}

	rr = doJSON(t, mux, http.MethodGet, "/nope", "")
	if got, want := rr.Code, http.StatusNotFound; got != want {
		t.Fatalf("unknown path: status=%d want %d", got, want)
	}

	rr = doJSON(t, mux, http.MethodGet, "/swagger/openapi.yaml", "")
	if got, want := rr.Code, http.StatusOK; got != want {
		t.Fatalf("openapi: status=%d want %d", got, want)
	}
	if !strings.Contains(rr.Body.String(), "Smart Bill Predictor") {
		t.Fatal("openapi document missing title")
	}
}
