package metrics

import (
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWrapper(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	if wrapper == nil {
		t.Fatal("NewWrapper returned nil")
	}
	if wrapper.m != metrics {
		t.Error("Wrapper does not contain correct metrics instance")
	}
}

func TestMetricsWrapper_ServingCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	if v := testutil.ToFloat64(metrics.Predictions); v != 0 {
		t.Errorf("Expected initial predictions 0, got %f", v)
	}

	wrapper.MLPredictionsInc()
	wrapper.MLPredictionsInc()
	if v := testutil.ToFloat64(metrics.Predictions); v != 2 {
		t.Errorf("Expected predictions 2, got %f", v)
	}

	wrapper.MLFailuresInc()
	if v := testutil.ToFloat64(metrics.Failures); v != 1 {
		t.Errorf("Expected failures 1, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.ErrorsTotal); v != 1 {
		t.Errorf("Expected errors_total 1, got %f", v)
	}
}

func TestMetricsWrapper_Gauges(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	wrapper.MLModelAgeSet(3600)
	if v := testutil.ToFloat64(metrics.ModelAge); v != 3600 {
		t.Errorf("Expected model age 3600, got %f", v)
	}

	wrapper.MLStreamConnectionsAdd(1)
	wrapper.MLStreamConnectionsAdd(1)
	wrapper.MLStreamConnectionsAdd(-1)
	if v := testutil.ToFloat64(metrics.StreamConnections); v != 1 {
		t.Errorf("Expected 1 open stream, got %f", v)
	}
}

func TestMetricsWrapper_Histograms(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	wrapper.MLLatencyObserve(0.002)
	wrapper.MLPredictionScoresObserve(0.15)
	wrapper.MLPredictionScoresObserve(0.85)

	if n := testutil.CollectAndCount(metrics.Scores); n != 1 {
		t.Errorf("Expected one score series, got %d", n)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var found bool
	for _, mf := range families {
		if mf.GetName() != "loan_risk_default_probability" {
			continue
		}
		found = true
		h := mf.Metric[0].GetHistogram()
		if h.GetSampleCount() != 2 {
			t.Errorf("Expected 2 scores, got %d", h.GetSampleCount())
		}
		if math.Abs(h.GetSampleSum()-1) > 1e-12 {
			t.Errorf("Expected score sum 1, got %f", h.GetSampleSum())
		}
	}
	if !found {
		t.Error("score histogram not registered")
	}
}

func TestMetricsWrapper_Training(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	wrapper.TrainingRunsInc("succeeded")
	wrapper.TrainingRunsInc("failed")
	wrapper.TrainingRunsInc("failed")
	wrapper.TrainingDurationObserve(12.5)
	wrapper.TrainingRowsSet("train", 800)
	wrapper.TrainingRowsSet("test", 200)
	wrapper.TrainingEvalSet("roc_auc", 0.71)

	tests := []struct {
		name     string
		got      float64
		expected float64
	}{
		{"succeeded runs", testutil.ToFloat64(metrics.TrainingRuns.WithLabelValues("succeeded")), 1},
		{"failed runs", testutil.ToFloat64(metrics.TrainingRuns.WithLabelValues("failed")), 2},
		{"failed runs count as errors", testutil.ToFloat64(metrics.ErrorsTotal), 2},
		{"train rows", testutil.ToFloat64(metrics.TrainingRows.WithLabelValues("train")), 800},
		{"test rows", testutil.ToFloat64(metrics.TrainingRows.WithLabelValues("test")), 200},
		{"auc", testutil.ToFloat64(metrics.TrainingEval.WithLabelValues("roc_auc")), 0.71},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Expected %f, got %f", tt.expected, tt.got)
			}
		})
	}
}

func TestGetErrorRate(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	if rate := metrics.GetErrorRate(registry); rate != 0 {
		t.Errorf("Expected 0 before any request, got %f", rate)
	}

	for i := 0; i < 3; i++ {
		wrapper.MLPredictionsInc()
	}
	wrapper.MLFailuresInc()

	if rate := metrics.GetErrorRate(registry); rate != 0.25 {
		t.Errorf("Expected error rate 0.25, got %f", rate)
	}
}

func TestNewWithRegistry_DuplicateRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewWithRegistry(registry)

	defer func() {
		if recover() == nil {
			t.Error("Expected panic on duplicate registration")
		}
	}()
	NewWithRegistry(registry)
}
