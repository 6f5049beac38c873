package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartbill_requests_total",
			Help: "Total number of HTTP requests per path",
		},
		[]string{"path", "method"},
	)

	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartbill_request_duration_seconds",
			Help:    "HTTP request duration in seconds per path",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	RequestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartbill_request_errors_total",
			Help: "Total number of error responses per path and status code",
		},
		[]string{"path", "code"},
	)
)

var (
	CatalogPublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartbill_catalog_publishes_total",
			Help: "Total number of rate structure versions published per plan",
		},
		[]string{"plan"},
	)

	CatalogPlans = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartbill_catalog_plans",
			Help: "Number of distinct plans currently in the catalog",
		},
	)

	CatalogRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartbill_catalog_refresh_total",
			Help: "Total number of catalog refreshes per source and outcome",
		},
		[]string{"source", "status"},
	)

	CatalogRefreshDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartbill_catalog_refresh_duration_seconds",
			Help:    "Catalog refresh duration in seconds per source",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
)

var (
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartbill_tariff_cache_lookups_total",
			Help: "Total number of tariff cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)

	CacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartbill_tariff_cache_evictions_total",
			Help: "Total number of tariff cache entries evicted by the LRU policy",
		},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartbill_tariff_cache_entries",
			Help: "Number of entries currently held by the tariff cache",
		},
	)

	CacheSharedResolvesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartbill_tariff_cache_shared_resolves_total",
			Help: "Total number of lookups that piggybacked on an in-flight resolution",
		},
	)
)

var (
	SimulationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartbill_simulations_total",
			Help: "Total number of bill simulations per outcome",
		},
		[]string{"status"},
	)

	SimulationDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smartbill_simulation_duration_seconds",
			Help:    "End-to-end duration of a multi-month simulation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SimulationMonthsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartbill_simulation_months_total",
			Help: "Total number of scenario-months billed across all simulations",
		},
	)
)

var (
	DBPoolTotalConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smartbill_db_pool_total_conns",
			Help: "Total number of connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBPoolIdleConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smartbill_db_pool_idle_conns",
			Help: "Idle connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBPoolAcquiredConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smartbill_db_pool_acquired_conns",
			Help: "Currently acquired (in-use) connections per driver",
		},
		[]string{"driver"},
	)

	DBPoolAcquiresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartbill_db_pool_acquires_total",
			Help: "Total number of connection acquires per driver",
		},
		[]string{"driver"},
	)
)

func UpdateDBPoolMetrics(driver string, total, idle, acquired float64, acquires uint64) {
	DBPoolTotalConns.WithLabelValues(driver).Set(total)
	DBPoolIdleConns.WithLabelValues(driver).Set(idle)
	DBPoolAcquiredConns.WithLabelValues(driver).Set(acquired)
	DBPoolAcquiresTotal.WithLabelValues(driver).Add(float64(acquires))
}

var (
	ScheduledJobLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smartbill_job_last_run_timestamp",
			Help: "Unix timestamp of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobLastDurationSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smartbill_job_last_duration_seconds",
			Help: "Duration of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartbill_job_failures_total",
			Help: "Total number of failed executions per job",
		},
		[]string{"job"},
	)
)

func UpdateJobMetrics(job string, startedAt time.Time, err error) {
	dur := time.Since(startedAt).Seconds()
	ScheduledJobLastDurationSeconds.WithLabelValues(job).Set(dur)
	ScheduledJobLastRun.WithLabelValues(job).Set(float64(time.Now().Unix()))
	if err != nil {
		ScheduledJobFailuresTotal.WithLabelValues(job).Inc()
	}
}

var (
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartbill_notifications_total",
			Help: "Total number of notification deliveries per channel and outcome",
		},
		[]string{"channel", "status"},
	)

	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartbill_alerts_total",
			Help: "Total number of webhook alerts per outcome",
		},
		[]string{"status"},
	)
)
