package boost

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Model is a trained booster. Margins are in log-odds.
type Model struct {
	Trees         []Tree
	BaseMargin    float64
	NumFeatures   int
	FeatureNames  []string
	Params        Params
	SchemaVersion string
	TrainedAt     time.Time
}

// Importance is the share of total split gain attributed to one feature.
type Importance struct {
	Feature string  `json:"feature"`
	Gain    float64 `json:"gain"`
}

// MarginRow returns the raw log-odds score of one feature vector.
func (m *Model) MarginRow(x []float64) float64 {
	s := m.BaseMargin
	for i := range m.Trees {
		s += m.Trees[i].Predict(x)
	}
	return s
}

// PredictMargin scores every row of X.
func (m *Model) PredictMargin(X mat.Matrix) ([]float64, error) {
	rows, cols := X.Dims()
	if cols != m.NumFeatures {
		return nil, fmt.Errorf("boost: model expects %d features, got %d", m.NumFeatures, cols)
	}
	out := make([]float64, rows)
	buf := make([]float64, cols)
	for i := range out {
		out[i] = m.MarginRow(mat.Row(buf, i, X))
	}
	return out, nil
}

// PredictProba returns the positive-class probability of every row of X.
func (m *Model) PredictProba(X mat.Matrix) ([]float64, error) {
	margins, err := m.PredictMargin(X)
	if err != nil {
		return nil, err
	}
	for i, v := range margins {
		margins[i] = sigmoid(v)
	}
	return margins, nil
}

// FeatureImportance returns normalised total gain per feature, highest first.
// Features never used for a split are omitted.
func (m *Model) FeatureImportance() []Importance {
	totals := make([]float64, m.NumFeatures)
	var sum float64
	for _, t := range m.Trees {
		for _, n := range t.Nodes {
			if !n.Leaf {
				totals[n.Feature] += n.Gain
				sum += n.Gain
			}
		}
	}
	var out []Importance
	if sum == 0 {
		return out
	}
	for j, g := range totals {
		if g > 0 {
			out = append(out, Importance{Feature: m.FeatureNames[j], Gain: g / sum})
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Gain > out[b].Gain })
	return out
}

// Encode writes the model with encoding/gob.
func (m *Model) Encode(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	return nil
}

// DecodeModel reads a gob-encoded model.
func DecodeModel(r io.Reader) (*Model, error) {
	var m Model
	if err := gob.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if len(m.Trees) == 0 || m.NumFeatures == 0 || len(m.FeatureNames) != m.NumFeatures {
		return nil, fmt.Errorf("decode model: incomplete model")
	}
	return &m, nil
}

// Digest is the hex SHA-256 of the gob encoding.
func Digest(m *Model) (string, error) {
	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		return "", err
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}
