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
	// Search metrics
	TrialsTotal    *prometheus.CounterVec
	TrialFailures  *prometheus.CounterVec
	BestScore      *prometheus.GaugeVec
	PhaseDuration  *prometheus.HistogramVec
	PhaseRunsTotal *prometheus.CounterVec

	// Evaluator metrics
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter
	CacheSize      prometheus.Gauge

	// Validator metrics
	ValidatorTrades     *prometheus.CounterVec
	ValidatorRejections *prometheus.CounterVec
	ValidatorCapital    prometheus.Gauge

	// Health metrics
	LastSuccessfulSearch prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "formula_lab"
	}

	return &Metrics{
		// Search metrics
		TrialsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "trials_total",
			Help:      "Total number of trials evaluated by phase and status",
		}, []string{"phase", "status"}),
		TrialFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "trial_failures_total",
			Help:      "Total number of failed trials by failure kind",
		}, []string{"kind"}),
		BestScore: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "best_score",
			Help:      "Best score seen in the latest run of each phase",
		}, []string{"phase"}),
		PhaseDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "phase_duration_seconds",
			Help:      "Search phase execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"phase"}),
		PhaseRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "phase_runs_total",
			Help:      "Total number of phase runs by status",
		}, []string{"phase", "status"}),

		// Evaluator metrics
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "cache_hits_total",
			Help:      "Total number of evaluator cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "cache_misses_total",
			Help:      "Total number of evaluator cache misses",
		}),
		CacheEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "cache_evictions_total",
			Help:      "Total number of entries evicted from the evaluator cache",
		}),
		CacheSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "cache_entries",
			Help:      "Current number of evaluator cache entries",
		}),

		// Validator metrics
		ValidatorTrades: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validator",
			Name:      "trades_total",
			Help:      "Total number of validator trades closed by exit reason",
		}, []string{"exit_reason"}),
		ValidatorRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validator",
			Name:      "rejections_total",
			Help:      "Total number of signals rejected by risk filter",
		}, []string{"filter"}),
		ValidatorCapital: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "validator",
			Name:      "capital",
			Help:      "Capital at the end of the latest validator run",
		}),

		// Health metrics
		LastSuccessfulSearch: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_search_timestamp",
			Help:      "Unix timestamp of last successful search run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTrial records a single trial outcome.
func RecordTrial(phase, status string) {
	DefaultMetrics.TrialsTotal.WithLabelValues(phase, status).Inc()
}

// RecordTrialFailure records a failed trial by kind.
func RecordTrialFailure(kind string) {
	DefaultMetrics.TrialFailures.WithLabelValues(kind).Inc()
}

// RecordCacheHit increments the evaluator cache hit counter.
func RecordCacheHit() {
	DefaultMetrics.CacheHits.Inc()
}

// RecordCacheMiss increments the evaluator cache miss counter.
func RecordCacheMiss() {
	DefaultMetrics.CacheMisses.Inc()
}

// RecordCacheEviction records evicted entries and the resulting cache size.
func RecordCacheEviction(evicted, size int) {
	DefaultMetrics.CacheEvictions.Add(float64(evicted))
	DefaultMetrics.CacheSize.Set(float64(size))
}

// UpdateCacheSize updates the cache size gauge.
func UpdateCacheSize(size int) {
	DefaultMetrics.CacheSize.Set(float64(size))
}

// RecordPhaseRun records a search phase run.
func RecordPhaseRun(phase, status string, durationSeconds float64) {
	DefaultMetrics.PhaseRunsTotal.WithLabelValues(phase, status).Inc()
	DefaultMetrics.PhaseDuration.WithLabelValues(phase).Observe(durationSeconds)
}

// UpdateBestScore sets the best score gauge for a phase.
func UpdateBestScore(phase string, score float64) {
	DefaultMetrics.BestScore.WithLabelValues(phase).Set(score)
}

// RecordValidatorTrade records a closed validator trade.
func RecordValidatorTrade(exitReason string) {
	DefaultMetrics.ValidatorTrades.WithLabelValues(exitReason).Inc()
}

// RecordValidatorRejection records a signal rejected by a risk filter.
func RecordValidatorRejection(filter string) {
	DefaultMetrics.ValidatorRejections.WithLabelValues(filter).Inc()
}

// UpdateValidatorCapital sets the validator capital gauge.
func UpdateValidatorCapital(capital float64) {
	DefaultMetrics.ValidatorCapital.Set(capital)
}

// MarkSearchSuccess records the time of a successful search run.
func MarkSearchSuccess(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulSearch.Set(float64(unixSeconds))
}
