package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	anomalies *prometheus.CounterVec
	trainings *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		anomalies: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgercast_anomalies_total",
				Help: "Flagged spending anomalies by detector and severity",
			},
			[]string{"org_id", "detector", "severity"},
		),
		trainings: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgercast_model_trainings_total",
				Help: "Forecast model training runs by outcome",
			},
			[]string{"org_id", "outcome"},
		),
		errors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgercast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledgercast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordAnomaly records one flagged anomaly.
func (r *Recorder) RecordAnomaly(orgID, detector, severity string) {
	r.anomalies.WithLabelValues(orgID, detector, severity).Inc()
}

// RecordTraining records one training run.
func (r *Recorder) RecordTraining(orgID string, success bool) {
	outcome := "success"
	if !success {
		outcome = "skipped"
	}
	r.trainings.WithLabelValues(orgID, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
