// Package train builds the default-risk model from historical loan records:
// sampling, feature engineering, rebalancing, fitting, evaluation and
// persistence of the artifact bundle.
package train

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	"loan-risk/internal/artifact"
	"loan-risk/internal/boost"
	"loan-risk/internal/cfg"
	"loan-risk/internal/features"
	"loan-risk/internal/schema"
	"loan-risk/internal/storage"
)

// MetricsInterface receives training outcomes. Implementations must be safe
// for concurrent use.
type MetricsInterface interface {
	TrainingRunsInc(status string)
	TrainingDurationObserve(seconds float64)
	TrainingRowsSet(stage string, n float64)
	TrainingEvalSet(metric string, v float64)
}

// Result is the output of a successful run.
type Result struct {
	Bundle *artifact.Bundle
	Report *Report
}

// Trainer runs the offline training pipeline. A Trainer is not meant to run
// concurrently with itself.
type Trainer struct {
	settings cfg.TrainingSettings
	paths    artifact.Paths
	store    *storage.Store
	metrics  MetricsInterface
	out      io.Writer
	topN     int
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithStore records each finished run in the history store.
func WithStore(s *storage.Store) Option { return func(t *Trainer) { t.store = s } }

// WithMetrics reports run outcomes.
func WithMetrics(m MetricsInterface) Option { return func(t *Trainer) { t.metrics = m } }

// WithSummary prints the classification report to w.
func WithSummary(w io.Writer) Option { return func(t *Trainer) { t.out = w } }

// New creates a trainer writing artifacts to paths.
func New(settings cfg.TrainingSettings, paths artifact.Paths, opts ...Option) *Trainer {
	t := &Trainer{settings: settings, paths: paths, topN: 10}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Params converts training settings into booster parameters.
func Params(s cfg.TrainingSettings) boost.Params {
	return boost.Params{
		NEstimators:    s.NEstimators,
		MaxDepth:       s.MaxDepth,
		LearningRate:   s.LearningRate,
		Lambda:         s.Lambda,
		MinChildWeight: s.MinChildWeight,
	}
}

// Run trains on the file at dataPath and persists the bundle. Nothing is
// written unless every step succeeds.
func (t *Trainer) Run(ctx context.Context, dataPath string) (*Result, error) {
	start := time.Now()
	res, err := t.run(ctx, dataPath)
	if t.metrics != nil {
		t.metrics.TrainingDurationObserve(time.Since(start).Seconds())
		if err != nil {
			t.metrics.TrainingRunsInc("failed")
		} else {
			t.metrics.TrainingRunsInc("succeeded")
		}
	}
	return res, err
}

func (t *Trainer) run(ctx context.Context, dataPath string) (*Result, error) {
	if err := cfg.ValidateTraining(t.settings); err != nil {
		return nil, err
	}

	report := &Report{
		StartedAt: time.Now().UTC(),
		DataPath:  dataPath,
		Params:    Params(t.settings),
		Stages:    map[string]string{},
	}
	stage := func(name string, began time.Time) {
		d := time.Since(began)
		report.Stages[name] = d.String()
		log.Debug().Str("stage", name).Dur("took", d).Msg("Training stage finished")
	}

	began := time.Now()
	loader := &Loader{
		ChunkSize:      t.settings.ChunkSize,
		SampleFraction: t.settings.SampleFraction,
		Seed:           t.settings.Seed,
	}
	records, stats, err := loader.Load(ctx, dataPath)
	if err != nil {
		return nil, fmt.Errorf("load training data: %w", err)
	}
	report.Load = stats
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s yielded no rows", ErrEmptyDataset, dataPath)
	}
	stage("load", began)

	began = time.Now()
	table, err := features.Transform(records, features.ModeTraining)
	if err != nil {
		return nil, fmt.Errorf("transform training data: %w", err)
	}
	if table.NumRows() == 0 || len(table.Columns) == 0 {
		return nil, ErrEmptyDataset
	}
	report.LabelledRows = table.NumRows()
	report.ExcludedFields = table.Excluded

	report.DroppedColumns = schema.PruneMissing(table, t.settings.MissingThreshold)
	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("%w: every column exceeded the missing threshold", ErrEmptyDataset)
	}
	medians := schema.ImputeMedian(table)
	sch := schema.Fit(table, medians)
	report.FeatureCount = len(sch.Columns)
	report.SchemaVersion = sch.Version
	stage("features", began)

	log.Info().
		Int("rows", table.NumRows()).
		Int("features", len(sch.Columns)).
		Strs("excluded", report.ExcludedFields).
		Strs("dropped", report.DroppedColumns).
		Msg("Feature table prepared")

	began = time.Now()
	trainSet, testSet, err := StratifiedSplit(table, t.settings.TestFraction, t.settings.Seed)
	if err != nil {
		return nil, err
	}
	report.TrainRows = trainSet.NumRows()
	report.TestRows = testSet.NumRows()

	smote := SMOTE{K: t.settings.SMOTENeighbors, Seed: t.settings.Seed}
	Xs, ys, err := smote.Resample(ctx, trainSet.Rows, trainSet.Labels)
	if err != nil {
		return nil, fmt.Errorf("resample training split: %w", err)
	}
	report.SyntheticRows = len(ys) - trainSet.NumRows()
	stage("split", began)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	began = time.Now()
	model, err := boost.Fit(denseOf(Xs), ys, sch.Columns, Params(t.settings))
	if err != nil {
		return nil, fmt.Errorf("fit model: %w", err)
	}
	model.SchemaVersion = sch.Version
	stage("fit", began)

	began = time.Now()
	probs, err := model.PredictProba(denseOf(testSet.Rows))
	if err != nil {
		return nil, fmt.Errorf("score test split: %w", err)
	}
	report.Evaluation = Evaluate(testSet.Labels, probs)
	top := model.FeatureImportance()
	if len(top) > t.topN {
		top = top[:t.topN]
	}
	report.TopFeatures = top
	stage("evaluate", began)

	explainer, err := boost.NewExplainer(model)
	if err != nil {
		return nil, fmt.Errorf("build explainer: %w", err)
	}
	report.ModelDigest = explainer.ModelDigest
	report.FinishedAt = time.Now().UTC()

	reporter := NewReporter(report)
	reporter.Log()
	if t.out != nil {
		reporter.PrintSummary(t.out)
	}
	reportJSON, err := reporter.JSON()
	if err != nil {
		return nil, err
	}

	bundle := &artifact.Bundle{Model: model, Explainer: explainer, Schema: sch, Report: reportJSON}
	if err := artifact.SaveAll(t.paths, bundle); err != nil {
		return nil, fmt.Errorf("persist artifacts: %w", err)
	}

	t.record(report, reportJSON)

	log.Info().
		Str("model", t.paths.Model).
		Str("explainer", t.paths.Explainer).
		Str("schema", t.paths.Schema).
		Msg("Artifacts saved")

	return &Result{Bundle: bundle, Report: report}, nil
}

// record publishes the run to metrics and history. Failures here do not undo
// a successful run.
func (t *Trainer) record(report *Report, reportJSON []byte) {
	if t.metrics != nil {
		t.metrics.TrainingRowsSet("labelled", float64(report.LabelledRows))
		t.metrics.TrainingRowsSet("train", float64(report.TrainRows))
		t.metrics.TrainingRowsSet("synthetic", float64(report.SyntheticRows))
		t.metrics.TrainingRowsSet("test", float64(report.TestRows))
		t.metrics.TrainingEvalSet("accuracy", report.Evaluation.Accuracy)
		t.metrics.TrainingEvalSet("roc_auc", report.Evaluation.ROCAUC)
	}
	if t.store != nil {
		run := storage.TrainingRun{
			StartedAt:     report.StartedAt,
			FinishedAt:    report.FinishedAt,
			DataPath:      report.DataPath,
			SchemaVersion: report.SchemaVersion,
			ModelDigest:   report.ModelDigest,
			ArtifactDir:   filepath.Dir(t.paths.Model),
			Report:        reportJSON,
		}
		if err := t.store.StoreTrainingRun(run); err != nil {
			log.Warn().Err(err).Msg("Failed to record training run")
		}
	}
}

func denseOf(rows [][]float64) *mat.Dense {
	if len(rows) == 0 {
		return &mat.Dense{}
	}
	m := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		m.SetRow(i, row)
	}
	return m
}
