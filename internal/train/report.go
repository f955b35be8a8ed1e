package train

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"loan-risk/internal/boost"
	"loan-risk/internal/common"
)

// Report is the diagnostic record of one training run.
type Report struct {
	StartedAt      time.Time          `json:"started_at"`
	FinishedAt     time.Time          `json:"finished_at"`
	DataPath       string             `json:"data_path"`
	Load           LoadStats          `json:"load"`
	LabelledRows   int                `json:"labelled_rows"`
	TrainRows      int                `json:"train_rows"`
	SyntheticRows  int                `json:"synthetic_rows"`
	TestRows       int                `json:"test_rows"`
	FeatureCount   int                `json:"feature_count"`
	ExcludedFields []string           `json:"excluded_fields"`
	DroppedColumns []string           `json:"dropped_columns"`
	SchemaVersion  string             `json:"schema_version"`
	ModelDigest    string             `json:"model_digest"`
	Params         boost.Params       `json:"params"`
	Evaluation     Evaluation         `json:"evaluation"`
	TopFeatures    []boost.Importance `json:"top_features"`
	Stages         map[string]string  `json:"stages"`
}

// Reporter renders a Report for people and machines.
type Reporter struct {
	report *Report
}

// NewReporter creates a new reporter
func NewReporter(report *Report) *Reporter {
	return &Reporter{report: report}
}

// JSON returns the indented JSON form persisted next to the model.
func (r *Reporter) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r.report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return data, nil
}

// Log emits the headline numbers as one structured event.
func (r *Reporter) Log() {
	ev := r.report.Evaluation
	log.Info().
		Int("labelled_rows", r.report.LabelledRows).
		Int("train_rows", r.report.TrainRows).
		Int("synthetic_rows", r.report.SyntheticRows).
		Int("test_rows", r.report.TestRows).
		Int("features", r.report.FeatureCount).
		Float64("accuracy", ev.Accuracy).
		Float64("roc_auc", ev.ROCAUC).
		Float64("default_recall", ev.Classes[common.ClassDefault].Recall).
		Str("schema_version", r.report.SchemaVersion).
		Msg("Model evaluated on held-out split")
}

// PrintSummary writes a classification report table.
func (r *Reporter) PrintSummary(w io.Writer) {
	ev := r.report.Evaluation

	fmt.Fprintln(w, "\n=== TRAINING RESULTS ===")
	fmt.Fprintf(w, "Data: %s (%d rows read, %d sampled, %d labelled)\n",
		r.report.DataPath, r.report.Load.RowsRead, r.report.Load.RowsSampled, r.report.LabelledRows)
	fmt.Fprintf(w, "Split: %d train (+%d synthetic), %d test\n",
		r.report.TrainRows, r.report.SyntheticRows, r.report.TestRows)
	fmt.Fprintf(w, "Features: %d (%d dropped for missing values)\n\n",
		r.report.FeatureCount, len(r.report.DroppedColumns))

	fmt.Fprintf(w, "%12s %10s %10s %10s %10s\n", "", "precision", "recall", "f1-score", "support")
	total := 0
	for _, name := range []string{common.ClassGoodLoan, common.ClassDefault} {
		m := ev.Classes[name]
		total += m.Support
		fmt.Fprintf(w, "%12s %10.2f %10.2f %10.2f %10d\n", name, m.Precision, m.Recall, m.F1, m.Support)
	}
	fmt.Fprintf(w, "\n%12s %10s %10s %10.2f %10d\n", "accuracy", "", "", ev.Accuracy, total)
	fmt.Fprintf(w, "%12s %10s %10s %10.4f\n", "roc auc", "", "", ev.ROCAUC)

	if len(r.report.TopFeatures) > 0 {
		fmt.Fprintln(w, "\nTop features by gain:")
		for _, fi := range r.report.TopFeatures {
			fmt.Fprintf(w, "  %-32s %.4f\n", fi.Feature, fi.Gain)
		}
	}
	fmt.Fprintln(w, "========================")
}
