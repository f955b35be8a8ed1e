package ml

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"loan-risk/internal/artifact"
	"loan-risk/internal/boost"
	"loan-risk/internal/features"
	"loan-risk/internal/schema"
)

// writeBundle trains a small model on synthetic applications and persists
// it, returning the artifact paths.
func writeBundle(t *testing.T) artifact.Paths {
	t.Helper()

	rng := rand.New(rand.NewSource(7))
	grades := []string{"A", "B", "C"}
	records := make([]features.Record, 0, 300)
	for i := 0; i < 300; i++ {
		g := rng.Intn(len(grades))
		rate := 6 + 6*float64(g) + 2*rng.Float64()
		status := "Fully Paid"
		if rate+4*rng.NormFloat64() > 14 {
			status = "Charged Off"
		}
		records = append(records, features.Record{
			"loan_amnt":   float64(1000 + rng.Intn(20000)),
			"int_rate":    fmt.Sprintf("%.2f%%", rate),
			"term":        []string{"36 months", "60 months"}[rng.Intn(2)],
			"grade":       grades[g],
			"loan_status": status,
		})
	}

	table, err := features.Transform(records, features.ModeTraining)
	require.NoError(t, err)
	medians := schema.ImputeMedian(table)
	sch := schema.Fit(table, medians)

	params := boost.DefaultParams()
	params.NEstimators = 10
	params.MaxDepth = 3
	model, err := boost.Fit(schema.Align(table, sch), table.Labels, sch.Columns, params)
	require.NoError(t, err)
	model.SchemaVersion = sch.Version

	explainer, err := boost.NewExplainer(model)
	require.NoError(t, err)

	paths := artifact.PathsIn(filepath.Join(t.TempDir(), "artifacts"))
	require.NoError(t, artifact.SaveAll(paths, &artifact.Bundle{
		Model:     model,
		Explainer: explainer,
		Schema:    sch,
		Report:    []byte(`{"evaluation":{"roc_auc":0.9}}`),
	}))
	return paths
}

func applicant() features.Record {
	return features.Record{
		"loan_amnt": 12000.0,
		"int_rate":  "17.5%",
		"term":      "60 months",
		"grade":     "C",
	}
}
