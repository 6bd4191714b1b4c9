package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fire_risk"

// Metrics holds the Prometheus counters, histograms, and gauges for the prediction service.
type Metrics struct {
	Requests           *prometheus.CounterVec // labels: stage={completed,rejected,failed}
	PredictionDuration prometheus.Histogram
	ImputedFields      *prometheus.CounterVec // labels: column
	ModelLoaded        prometheus.Gauge

	// Reference dataset metrics.
	ReferenceLoads        *prometheus.CounterVec // labels: result={success,error}
	ReferenceLoadDuration prometheus.Histogram

	// Audit trail metrics.
	AuditPublished     prometheus.Counter
	AuditDropped       prometheus.Counter
	AuditPublishErrors prometheus.Counter
	AuditBatchSize     prometheus.Histogram
	AuditRunning       prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Requests,
		m.PredictionDuration,
		m.ImputedFields,
		m.ModelLoaded,
		m.ReferenceLoads,
		m.ReferenceLoadDuration,
		m.AuditPublished,
		m.AuditDropped,
		m.AuditPublishErrors,
		m.AuditBatchSize,
		m.AuditRunning,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Prediction requests by terminal stage.",
		}, []string{"stage"}),
		PredictionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Time from validated request to completed prediction.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		ImputedFields: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imputed_fields_total",
			Help:      "Optional fields filled from reference means, by feature column.",
		}, []string{"column"}),
		ModelLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_loaded",
			Help:      "1 once the model artifact is loaded, 0 otherwise.",
		}),
		ReferenceLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reference_loads_total",
			Help:      "Reference dataset reads by result.",
		}, []string{"result"}),
		ReferenceLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reference_load_duration_seconds",
			Help:      "Duration of a full reference dataset read.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}),
		AuditPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_published_total",
			Help:      "Prediction audit events written to the audit topic.",
		}),
		AuditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_dropped_total",
			Help:      "Prediction audit events dropped because the buffer was full or publishing gave up.",
		}),
		AuditPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_publish_errors_total",
			Help:      "Failed audit batch publish attempts.",
		}),
		AuditBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "audit_batch_size",
			Help:      "Number of audit events per published batch.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		AuditRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "audit_running",
			Help:      "1 when the audit publisher is active, 0 when shut down.",
		}),
	}
}
