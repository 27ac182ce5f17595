// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Simulation metrics
	TradesSimulated    *prometheus.CounterVec
	SimulationDuration prometheus.Histogram

	// Walk-forward metrics
	FoldsProcessed    prometheus.Counter
	FoldsSkipped      *prometheus.CounterVec
	LeakageViolations prometheus.Counter
	RunDuration       prometheus.Histogram

	// Monte Carlo metrics
	PathsGenerated   prometheus.Counter
	CandidatesScored prometheus.Counter
	ScoringDuration  prometheus.Histogram

	// Gate metrics
	GateRebalances prometheus.Counter
	GateActiveSize prometheus.Gauge
	GateRotations  *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "tradesim_lab"
	}

	return &Metrics{
		// Simulation metrics
		TradesSimulated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sim",
			Name:      "trades_simulated_total",
			Help:      "Total number of trades resolved by exit reason",
		}, []string{"exit_reason"}),
		SimulationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sim",
			Name:      "resolve_duration_seconds",
			Help:      "Trade resolution latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Walk-forward metrics
		FoldsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "walkforward",
			Name:      "folds_processed_total",
			Help:      "Total number of folds evaluated",
		}),
		FoldsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "walkforward",
			Name:      "folds_skipped_total",
			Help:      "Total number of folds skipped by reason",
		}, []string{"reason"}),
		LeakageViolations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "walkforward",
			Name:      "leakage_violations_total",
			Help:      "Total number of train/test leakage rejections",
		}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "walkforward",
			Name:      "run_duration_seconds",
			Help:      "Walk-forward run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),

		// Monte Carlo metrics
		PathsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "montecarlo",
			Name:      "paths_generated_total",
			Help:      "Total number of bootstrap paths simulated",
		}),
		CandidatesScored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "montecarlo",
			Name:      "candidates_scored_total",
			Help:      "Total number of candidate instruments scored",
		}),
		ScoringDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "montecarlo",
			Name:      "scoring_duration_seconds",
			Help:      "Per-candidate scoring duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Gate metrics
		GateRebalances: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "rebalances_total",
			Help:      "Total number of gate rebalance cycles",
		}),
		GateActiveSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "active_set_size",
			Help:      "Current number of instruments in the active set",
		}),
		GateRotations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "rotations_total",
			Help:      "Total instruments added or dropped across rebalances",
		}, []string{"direction"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Pipeline metrics
		PipelineRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by phase and status",
		}, []string{"phase", "status"}),
		PipelineDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "phase_duration_seconds",
			Help:      "Pipeline phase duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"phase"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTradeSimulated increments the trades simulated counter.
func RecordTradeSimulated(exitReason string) {
	DefaultMetrics.TradesSimulated.WithLabelValues(exitReason).Inc()
}

// RecordFoldProcessed increments the folds processed counter.
func RecordFoldProcessed() {
	DefaultMetrics.FoldsProcessed.Inc()
}

// RecordFoldSkipped increments the folds skipped counter for a reason.
func RecordFoldSkipped(reason string) {
	DefaultMetrics.FoldsSkipped.WithLabelValues(reason).Inc()
}

// RecordLeakageViolation increments the leakage violations counter.
func RecordLeakageViolation() {
	DefaultMetrics.LeakageViolations.Inc()
}

// RecordCandidateScored records one scored candidate and its path count.
func RecordCandidateScored(paths int) {
	DefaultMetrics.CandidatesScored.Inc()
	DefaultMetrics.PathsGenerated.Add(float64(paths))
}

// RecordGateRebalance records a rebalance cycle and the resulting set churn.
func RecordGateRebalance(activeSize, added, dropped int) {
	DefaultMetrics.GateRebalances.Inc()
	DefaultMetrics.GateActiveSize.Set(float64(activeSize))
	DefaultMetrics.GateRotations.WithLabelValues("added").Add(float64(added))
	DefaultMetrics.GateRotations.WithLabelValues("dropped").Add(float64(dropped))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordPipelineRun records a pipeline phase run.
func RecordPipelineRun(phase, status string, durationSeconds float64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(phase, status).Inc()
	DefaultMetrics.PipelineDuration.WithLabelValues(phase).Observe(durationSeconds)
}
