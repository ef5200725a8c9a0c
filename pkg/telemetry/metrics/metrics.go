package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config contains configuration for metrics collection.
type Config struct {
	// Enabled controls whether metrics are collected and exposed.
	Enabled bool `yaml:"enabled"`

	// Namespace is the prefix for all metric names.
	// Default: "cellar"
	Namespace string `yaml:"namespace"`
}

// RunMetrics tracks recommendation run activity.
//
// Metrics:
//   - cellar_runs_total: completed recommendation runs
//   - cellar_run_duration_seconds: run duration histogram
//   - cellar_run_items: items processed per run
//   - cellar_recommendations_total: recommendations by reason code
//   - cellar_run_spend_dollars: recommended spend of the latest run
type RunMetrics struct {
	registry *prometheus.Registry

	runsTotal            prometheus.Counter
	runDuration          prometheus.Histogram
	runItems             prometheus.Histogram
	recommendationsTotal *prometheus.CounterVec
	runSpend             prometheus.Gauge
}

// NewRunMetrics creates and registers run metrics on a fresh registry.
func NewRunMetrics(cfg Config) *RunMetrics {
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "cellar"
	}

	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of completed recommendation runs",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of recommendation runs in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		runItems: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_items",
			Help:      "Number of items processed per run",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000},
		}),
		recommendationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_total",
			Help:      "Recommendations produced, by reason code",
		}, []string{"reason"}),
		runSpend: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_spend_dollars",
			Help:      "Total recommended spend of the most recent run",
		}),
	}

	m.registry.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.runItems,
		m.recommendationsTotal,
		m.runSpend,
	)
	return m
}

// ObserveRun records one completed run.
func (m *RunMetrics) ObserveRun(duration time.Duration, itemCount int) {
	m.runsTotal.Inc()
	m.runDuration.Observe(duration.Seconds())
	m.runItems.Observe(float64(itemCount))
}

// ObserveRecommendation counts one recommendation by reason code.
func (m *RunMetrics) ObserveRecommendation(reason string) {
	m.recommendationsTotal.WithLabelValues(reason).Inc()
}

// SetRunSpend records the recommended spend of the latest run.
func (m *RunMetrics) SetRunSpend(spend float64) {
	m.runSpend.Set(spend)
}

// Handler returns an HTTP handler serving the metrics in Prometheus
// exposition format.
func (m *RunMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
