package ml

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-risk/internal/artifact"
	"loan-risk/internal/features"
)

func TestEngine_PredictReturnsFullExplanation(t *testing.T) {
	paths := writeBundle(t)
	metrics := &MockMetrics{}
	engine := NewEngine(paths, WithMetrics(metrics))

	preds, err := engine.Predict(context.Background(), []features.Record{applicant()})
	require.NoError(t, err)
	require.Len(t, preds, 1)

	info, err := engine.Info()
	require.NoError(t, err)

	p := preds[0]
	assert.GreaterOrEqual(t, p.DefaultProbability, 0.0)
	assert.LessOrEqual(t, p.DefaultProbability, 1.0)
	assert.Len(t, p.Explanation, info.ColumnCount)
	for _, col := range info.Columns {
		assert.Contains(t, p.Explanation, col)
	}

	// attributions plus the expected value reconstruct the log-odds
	var sum float64
	for _, v := range p.Explanation {
		sum += v
	}
	margin := math.Log(p.DefaultProbability / (1 - p.DefaultProbability))
	assert.InDelta(t, margin, sum+info.ExpectedValue, 1e-6)

	n, failures, latencies := metrics.Snapshot()
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, failures)
	assert.Equal(t, 1, latencies)
	assert.Equal(t, []float64{p.DefaultProbability}, metrics.Scores())
}

func TestEngine_Deterministic(t *testing.T) {
	engine := NewEngine(writeBundle(t))

	a, err := engine.Predict(context.Background(), []features.Record{applicant()})
	require.NoError(t, err)
	b, err := engine.Predict(context.Background(), []features.Record{applicant()})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEngine_BatchKeepsInputOrder(t *testing.T) {
	engine := NewEngine(writeBundle(t))
	safe := features.Record{"int_rate": "6.1%", "grade": "A", "term": "36 months"}
	risky := applicant()

	batch, err := engine.Predict(context.Background(), []features.Record{safe, risky, safe})
	require.NoError(t, err)
	require.Len(t, batch, 3)

	single, err := engine.Predict(context.Background(), []features.Record{risky})
	require.NoError(t, err)
	assert.InDelta(t, single[0].DefaultProbability, batch[1].DefaultProbability, 1e-12)
	assert.Equal(t, batch[0], batch[2])
	assert.Less(t, batch[0].DefaultProbability, batch[1].DefaultProbability)
}

func TestEngine_InputNormalisation(t *testing.T) {
	engine := NewEngine(writeBundle(t))

	tests := []struct {
		name   string
		record features.Record
	}{
		{"json number", features.Record{"loan_amnt": json.Number("12000"), "int_rate": "17.5%", "term": "60 months", "grade": "C"}},
		{"numeric string", features.Record{"loan_amnt": "12000", "int_rate": "17.5%", "term": "60 months", "grade": "C"}},
		{"int", features.Record{"loan_amnt": 12000, "int_rate": "17.5%", "term": "60 months", "grade": "C"}},
		{"unknown fields ignored", features.Record{"loan_amnt": 12000.0, "int_rate": "17.5%", "term": "60 months", "grade": "C", "nickname": "x"}},
	}

	want, err := engine.Predict(context.Background(), []features.Record{applicant()})
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Predict(context.Background(), []features.Record{tt.record})
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestEngine_UnseenCategoryAndEmptyRecord(t *testing.T) {
	engine := NewEngine(writeBundle(t))

	preds, err := engine.Predict(context.Background(), []features.Record{
		{"grade": "Z", "term": "forever"},
		{},
	})
	require.NoError(t, err)
	for _, p := range preds {
		assert.False(t, math.IsNaN(p.DefaultProbability))
		for _, v := range p.Explanation {
			assert.False(t, math.IsNaN(v))
		}
	}
	// neither record sets any schema column
	assert.Equal(t, preds[0], preds[1])
}

func TestEngine_InvalidInput(t *testing.T) {
	metrics := &MockMetrics{}
	engine := NewEngine(writeBundle(t), WithMetrics(metrics))

	_, err := engine.Predict(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = engine.Predict(context.Background(), []features.Record{nil})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, failures, _ := metrics.Snapshot()
	assert.Equal(t, 2, failures)
}

func TestEngine_LoadErrorIsSticky(t *testing.T) {
	paths := artifact.PathsIn(filepath.Join(t.TempDir(), "missing"))
	engine := NewEngine(paths)

	_, err := engine.Predict(context.Background(), []features.Record{applicant()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, artifact.ErrArtifactMissing))
	assert.False(t, engine.Loaded())
	assert.Equal(t, "", engine.SchemaVersion())

	// artifacts appearing later do not revive this instance
	good := writeBundle(t)
	engine.paths = good
	assert.Error(t, engine.Load())

	_, err = engine.Info()
	assert.Error(t, err)
}

func TestEngine_ContextCancelled(t *testing.T) {
	engine := NewEngine(writeBundle(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Predict(ctx, []features.Record{applicant()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_ConcurrentPredict(t *testing.T) {
	engine := NewEngine(writeBundle(t), WithTracker(NewAttributionTracker("")))
	want, err := engine.Predict(context.Background(), []features.Record{applicant()})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := engine.Predict(context.Background(), []features.Record{applicant()})
			if err != nil {
				errs <- err
				return
			}
			if got[0].DefaultProbability != want[0].DefaultProbability {
				errs <- errors.New("concurrent prediction differs")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestEngine_Info(t *testing.T) {
	engine := NewEngine(writeBundle(t), WithTracker(NewAttributionTracker("")))
	require.NoError(t, engine.Load())

	_, err := engine.Predict(context.Background(), []features.Record{applicant()})
	require.NoError(t, err)

	info, err := engine.Info()
	require.NoError(t, err)
	assert.Equal(t, engine.SchemaVersion(), info.SchemaVersion)
	assert.NotEmpty(t, info.ModelDigest)
	assert.Equal(t, 10, info.Trees)
	assert.Contains(t, info.Columns, "int_rate")
	assert.NotEmpty(t, info.TopFeatures)
	assert.NotEmpty(t, info.ServedAttribution)
	assert.JSONEq(t, `{"evaluation":{"roc_auc":0.9}}`, string(info.Report))
	assert.False(t, info.LoadedAt.IsZero())
}
