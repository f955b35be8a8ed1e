package metrics

// MetricsWrapper adapts Metrics to the narrow interfaces the inference
// engine and the trainer depend on, so neither imports Prometheus.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) MLPredictionsInc() {
	w.m.Predictions.Inc()
}

func (w *MetricsWrapper) MLFailuresInc() {
	w.m.Failures.Inc()
	w.m.ErrorsTotal.Inc()
}

func (w *MetricsWrapper) MLLatencyObserve(seconds float64) {
	w.m.Latency.Observe(seconds)
}

func (w *MetricsWrapper) MLModelAgeSet(seconds float64) {
	w.m.ModelAge.Set(seconds)
}

func (w *MetricsWrapper) MLPredictionScoresObserve(p float64) {
	w.m.Scores.Observe(p)
}

func (w *MetricsWrapper) MLStreamConnectionsAdd(delta float64) {
	w.m.StreamConnections.Add(delta)
}

func (w *MetricsWrapper) TrainingRunsInc(status string) {
	w.m.TrainingRuns.WithLabelValues(status).Inc()
	if status != "succeeded" {
		w.m.ErrorsTotal.Inc()
	}
}

func (w *MetricsWrapper) TrainingDurationObserve(seconds float64) {
	w.m.TrainingDuration.Observe(seconds)
}

func (w *MetricsWrapper) TrainingRowsSet(stage string, n float64) {
	w.m.TrainingRows.WithLabelValues(stage).Set(n)
}

func (w *MetricsWrapper) TrainingEvalSet(metric string, v float64) {
	w.m.TrainingEval.WithLabelValues(metric).Set(v)
}
