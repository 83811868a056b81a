package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pool ledger.
type Metrics struct {
	// Settlement
	SettleRuns      *prometheus.CounterVec
	SettleRecords   prometheus.Counter
	SettleForwarded prometheus.Counter
	SettleDuration  prometheus.Histogram

	// Keep
	KeepRuns     *prometheus.CounterVec
	KeepRecords  prometheus.Counter
	KeepRetained prometheus.Counter
	KeepDuration prometheus.Histogram

	// Cap resolution
	CapRecomputes        *prometheus.CounterVec
	CapRecomputeDuration *prometheus.HistogramVec
	CapThreshold         *prometheus.GaugeVec

	// Aggregation
	AggregationDuration prometheus.Histogram
	AggregationNumbers  prometheus.Histogram

	// Jobs (NATS)
	JobsHandled *prometheus.CounterVec

	// HTTP API
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Data erase
	PurgeRuns        prometheus.Counter
	PurgeRowsDeleted *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	runBuckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0}

	return &Metrics{
		SettleRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_settle_runs_total",
			Help: "Settlement runs by outcome (created/replayed/empty/error)",
		}, []string{"outcome"}),

		SettleRecords: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_settle_records_created_total",
			Help: "Excess records created by settlement runs",
		}),

		SettleForwarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_settle_forwarded_amount_total",
			Help: "Total stake amount forwarded to the layoff counterparty",
		}),

		SettleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pool_settle_duration_seconds",
			Help:    "End-to-end settlement run duration",
			Buckets: runBuckets,
		}),

		KeepRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_keep_runs_total",
			Help: "Keep runs by outcome (created/empty/error)",
		}, []string{"outcome"}),

		KeepRecords: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_keep_records_created_total",
			Help: "Accept-self records created by keep runs",
		}),

		KeepRetained: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_keep_retained_amount_total",
			Help: "Total stake amount retained in-house",
		}),

		KeepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pool_keep_duration_seconds",
			Help:    "End-to-end keep run duration",
			Buckets: runBuckets,
		}),

		CapRecomputes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_cap_recomputes_total",
			Help: "AUTO threshold recomputes",
		}, []string{"category", "outcome"}),

		CapRecomputeDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pool_cap_recompute_duration_seconds",
			Help:    "Per-category recompute duration",
			Buckets: runBuckets,
		}, []string{"category"}),

		CapThreshold: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pool_cap_threshold",
			Help: "Currently effective cap threshold per category",
		}, []string{"category"}),

		AggregationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pool_aggregation_duration_seconds",
			Help:    "Grouped stake aggregation query duration",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),

		AggregationNumbers: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pool_aggregation_numbers",
			Help:    "Distinct numbers seen per aggregation pass",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000},
		}),

		JobsHandled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_jobs_handled_total",
			Help: "NATS job commands handled",
		}, []string{"subject", "status"}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_http_requests_total",
			Help: "HTTP API requests",
		}, []string{"route", "status"}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pool_http_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"route"}),

		PurgeRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_purge_runs_total",
			Help: "Bulk data erase runs",
		}),

		PurgeRowsDeleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_purge_rows_deleted_total",
			Help: "Rows deleted by bulk erase, per table",
		}, []string{"table"}),
	}
}
