// Package ml serves the trained default-risk model: it loads the artifact
// bundle, scores loan applications with TreeSHAP attributions and exposes
// them over HTTP.
package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"loan-risk/internal/artifact"
	"loan-risk/internal/boost"
	"loan-risk/internal/features"
	"loan-risk/internal/schema"
)

// ErrInvalidInput is returned for requests that cannot be scored.
var ErrInvalidInput = errors.New("ml: invalid input")

// MetricsInterface defines metrics methods needed by the engine and server
type MetricsInterface interface {
	MLPredictionsInc()
	MLFailuresInc()
	MLLatencyObserve(float64)
	MLModelAgeSet(float64)
	MLPredictionScoresObserve(float64)
	MLStreamConnectionsAdd(float64)
}

// Prediction is the score of one application.
type Prediction struct {
	DefaultProbability float64            `json:"default_probability"`
	Explanation        map[string]float64 `json:"explanation"`
}

// Info describes the loaded model.
type Info struct {
	SchemaVersion     string             `json:"schema_version"`
	ModelDigest       string             `json:"model_digest"`
	Columns           []string           `json:"columns"`
	ColumnCount       int                `json:"column_count"`
	Trees             int                `json:"trees"`
	ExpectedValue     float64            `json:"expected_value"`
	TrainedAt         time.Time          `json:"trained_at"`
	LoadedAt          time.Time          `json:"loaded_at"`
	TopFeatures       []boost.Importance `json:"top_features"`
	ServedAttribution []AttributionStats `json:"served_attribution,omitempty"`
	Report            json.RawMessage    `json:"report,omitempty"`
}

// Engine scores applications against one artifact bundle. The bundle is
// loaded at most once; after that it is read-only and shared by all callers.
type Engine struct {
	paths   artifact.Paths
	metrics MetricsInterface
	tracker *AttributionTracker

	once     sync.Once
	bundle   *artifact.Bundle
	loadErr  error
	loadedAt time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMetrics reports predictions and failures.
func WithMetrics(m MetricsInterface) EngineOption { return func(e *Engine) { e.metrics = m } }

// WithTracker accumulates served attributions.
func WithTracker(t *AttributionTracker) EngineOption { return func(e *Engine) { e.tracker = t } }

// NewEngine creates an engine reading artifacts from paths. Nothing is read
// until Load or the first Predict.
func NewEngine(paths artifact.Paths, opts ...EngineOption) *Engine {
	e := &Engine{paths: paths}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Load reads and cross-checks the artifact bundle. A failure is sticky.
func (e *Engine) Load() error {
	e.once.Do(func() {
		start := time.Now()
		b, err := artifact.LoadAll(e.paths)
		if err != nil {
			e.loadErr = fmt.Errorf("load model bundle: %w", err)
			log.Error().Err(err).Str("model", e.paths.Model).Msg("Failed to load model bundle")
			return
		}
		e.bundle = b
		e.loadedAt = time.Now().UTC()
		log.Info().
			Str("schema_version", b.Schema.Version).
			Int("columns", len(b.Schema.Columns)).
			Int("trees", len(b.Model.Trees)).
			Dur("took", time.Since(start)).
			Msg("Model bundle loaded")
	})
	return e.loadErr
}

// Loaded reports whether the bundle is available.
func (e *Engine) Loaded() bool {
	return e.Load() == nil
}

// SchemaVersion returns the loaded schema version, or "" before a
// successful load.
func (e *Engine) SchemaVersion() string {
	if e.Load() != nil {
		return ""
	}
	return e.bundle.Schema.Version
}

// Predict scores records and returns one prediction per record in input
// order.
func (e *Engine) Predict(ctx context.Context, records []features.Record) ([]Prediction, error) {
	start := time.Now()
	preds, err := e.predict(ctx, records)
	if e.metrics != nil {
		e.metrics.MLLatencyObserve(time.Since(start).Seconds())
		if err != nil {
			e.metrics.MLFailuresInc()
		} else {
			for _, p := range preds {
				e.metrics.MLPredictionsInc()
				e.metrics.MLPredictionScoresObserve(p.DefaultProbability)
			}
			e.metrics.MLModelAgeSet(time.Since(e.bundle.Model.TrainedAt).Seconds())
		}
	}
	return preds, err
}

func (e *Engine) predict(ctx context.Context, records []features.Record) ([]Prediction, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no records", ErrInvalidInput)
	}
	for i, r := range records {
		if r == nil {
			return nil, fmt.Errorf("%w: record %d is null", ErrInvalidInput, i)
		}
	}
	if err := e.Load(); err != nil {
		return nil, err
	}

	table, err := features.Transform(records, features.ModeInference)
	if err != nil {
		return nil, fmt.Errorf("transform request: %w", err)
	}
	sch := e.bundle.Schema
	x := schema.Align(table, sch)

	probs, err := e.bundle.Model.PredictProba(x)
	if err != nil {
		return nil, fmt.Errorf("score request: %w", err)
	}

	out := make([]Prediction, len(records))
	for i, p := range probs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if math.IsNaN(p) || p < 0 || p > 1 {
			return nil, fmt.Errorf("model produced invalid probability %v for record %d", p, i)
		}
		phi := e.bundle.Explainer.ShapRow(x.RawRowView(i))
		explanation := make(map[string]float64, len(sch.Columns))
		for j, col := range sch.Columns {
			explanation[col] = phi[j]
		}
		out[i] = Prediction{DefaultProbability: p, Explanation: explanation}
		if e.tracker != nil {
			e.tracker.Observe(explanation)
		}
	}
	return out, nil
}

// Info describes the loaded bundle.
func (e *Engine) Info() (Info, error) {
	if err := e.Load(); err != nil {
		return Info{}, err
	}
	b := e.bundle
	info := Info{
		SchemaVersion: b.Schema.Version,
		ModelDigest:   b.Explainer.ModelDigest,
		Columns:       append([]string(nil), b.Schema.Columns...),
		ColumnCount:   len(b.Schema.Columns),
		Trees:         len(b.Model.Trees),
		ExpectedValue: b.Explainer.ExpectedValue,
		TrainedAt:     b.Model.TrainedAt,
		LoadedAt:      e.loadedAt,
		TopFeatures:   b.Model.FeatureImportance(),
		Report:        b.Report,
	}
	if e.tracker != nil {
		info.ServedAttribution = e.tracker.Top(10)
	}
	return info, nil
}
