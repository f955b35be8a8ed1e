// Package metrics provides Prometheus metrics collection for the loan-risk
// service. It defines the serving and training collectors exposed on the
// /metrics endpoint or written to a textfile after an offline training run.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the loan-risk service.
type Metrics struct {
	// Serving metrics
	Predictions       prometheus.Counter   // Total number of scored applications
	Failures          prometheus.Counter   // Total number of failed prediction requests
	Latency           prometheus.Histogram // End-to-end prediction latency in seconds
	Scores            prometheus.Histogram // Distribution of default probabilities
	ModelAge          prometheus.Gauge     // Age of the loaded model in seconds
	StreamConnections prometheus.Gauge     // Open /predict/stream websocket connections

	// Training metrics
	TrainingRuns     *prometheus.CounterVec // Training runs by outcome
	TrainingDuration prometheus.Histogram   // Wall time of a training run
	TrainingRows     *prometheus.GaugeVec   // Row counts per pipeline stage
	TrainingEval     *prometheus.GaugeVec   // Held-out evaluation of the last run

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "loan_risk_predictions_total",
			Help: "Total number of scored loan applications",
		}),
		Failures: factory.NewCounter(prometheus.CounterOpts{
			Name: "loan_risk_prediction_failures_total",
			Help: "Total number of failed prediction requests",
		}),
		Latency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "loan_risk_prediction_latency_seconds",
			Help:    "Prediction latency in seconds (transform, score and attribution)",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		Scores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "loan_risk_default_probability",
			Help:    "Distribution of predicted default probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "loan_risk_model_age_seconds",
			Help: "Age of the loaded model in seconds",
		}),
		StreamConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "loan_risk_stream_connections",
			Help: "Open prediction stream connections",
		}),
		TrainingRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_risk_training_runs_total",
			Help: "Training runs by outcome",
		}, []string{"status"}),
		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "loan_risk_training_duration_seconds",
			Help:    "Wall time of a training run in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 15),
		}),
		TrainingRows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "loan_risk_training_rows",
			Help: "Rows per training stage of the last run",
		}, []string{"stage"}),
		TrainingEval: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "loan_risk_training_evaluation",
			Help: "Held-out evaluation metrics of the last run",
		}, []string{"metric"}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "loan_risk_errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}

// GetErrorRate returns failures over total requests, or 0 before the first
// request.
func (m *Metrics) GetErrorRate(g prometheus.Gatherer) float64 {
	var ok, failed float64

	families, err := g.Gather()
	if err != nil {
		return 0
	}
	for _, mf := range families {
		switch mf.GetName() {
		case "loan_risk_predictions_total":
			for _, metric := range mf.Metric {
				ok = metric.GetCounter().GetValue()
			}
		case "loan_risk_prediction_failures_total":
			for _, metric := range mf.Metric {
				failed = metric.GetCounter().GetValue()
			}
		}
	}

	if ok+failed == 0 {
		return 0
	}
	return failed / (ok + failed)
}
