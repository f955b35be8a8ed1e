// Package schema persists the ordered feature columns a model was trained on
// and aligns inference tables to them.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"loan-risk/internal/features"
)

// ErrVersionMismatch is returned by Verify when the stored version does not
// match the schema contents.
var ErrVersionMismatch = errors.New("schema: version does not match contents")

// Schema is the training-time column layout. It is immutable once fitted.
type Schema struct {
	Version    string              `json:"version"`
	Columns    []string            `json:"columns"`
	Categories map[string][]string `json:"categories"`
	Medians    map[string]float64  `json:"medians"`
	CreatedAt  time.Time           `json:"created_at"`
}

// MissingFractions returns the share of NaN values per column.
func MissingFractions(t *features.Table) map[string]float64 {
	out := make(map[string]float64, len(t.Columns))
	n := float64(t.NumRows())
	for j, c := range t.Columns {
		if n == 0 {
			out[c] = 0
			continue
		}
		missing := 0
		for _, row := range t.Rows {
			if math.IsNaN(row[j]) {
				missing++
			}
		}
		out[c] = float64(missing) / n
	}
	return out
}

// PruneMissing drops every column whose missing share exceeds threshold and
// returns the dropped names in table order.
func PruneMissing(t *features.Table, threshold float64) []string {
	fractions := MissingFractions(t)
	drop := make(map[string]bool)
	var dropped []string
	for _, c := range t.Columns {
		if fractions[c] > threshold {
			drop[c] = true
			dropped = append(dropped, c)
		}
	}
	t.DropColumns(drop)
	return dropped
}

// ImputeMedian fills NaN cells with the column median and returns the medians.
// A column with no observed value is filled with 0.
func ImputeMedian(t *features.Table) map[string]float64 {
	medians := make(map[string]float64, len(t.Columns))
	for j, c := range t.Columns {
		m := features.Median(t.Column(j))
		if math.IsNaN(m) {
			m = 0
		}
		medians[c] = m
		for _, row := range t.Rows {
			if math.IsNaN(row[j]) {
				row[j] = m
			}
		}
	}
	return medians
}

// Fit captures the final column order of a cleaned training table.
func Fit(t *features.Table, medians map[string]float64) *Schema {
	s := &Schema{
		Columns:    append([]string(nil), t.Columns...),
		Categories: make(map[string][]string, len(t.Levels)),
		Medians:    make(map[string]float64, len(t.Columns)),
		CreatedAt:  time.Now().UTC(),
	}
	for f, levels := range t.Levels {
		s.Categories[f] = append([]string(nil), levels...)
	}
	for _, c := range s.Columns {
		if m, ok := medians[c]; ok {
			s.Medians[c] = m
		}
	}
	s.Version = s.Hash()
	return s
}

// Hash fingerprints the columns and category levels.
func (s *Schema) Hash() string {
	h := sha256.New()
	for _, c := range s.Columns {
		h.Write([]byte(c))
		h.Write([]byte{0})
	}
	fields := make([]string, 0, len(s.Categories))
	for f := range s.Categories {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		h.Write([]byte{1})
		h.Write([]byte(f + "=" + strings.Join(s.Categories[f], "\x1f")))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks Version against the contents.
func (s *Schema) Verify() error {
	if len(s.Columns) == 0 {
		return errors.New("schema: no columns")
	}
	if s.Version != s.Hash() {
		return ErrVersionMismatch
	}
	return nil
}

// Align reindexes t to exactly the schema columns. Columns the table lacks
// and any remaining NaN read as 0; columns the schema lacks are discarded.
func Align(t *features.Table, s *Schema) *mat.Dense {
	rows := t.NumRows()
	if rows == 0 || len(s.Columns) == 0 {
		return &mat.Dense{}
	}
	index := make(map[string]int, len(t.Columns))
	for j, c := range t.Columns {
		index[c] = j
	}
	out := mat.NewDense(rows, len(s.Columns), nil)
	for k, c := range s.Columns {
		j, ok := index[c]
		if !ok {
			continue
		}
		for i, row := range t.Rows {
			if v := row[j]; !math.IsNaN(v) {
				out.Set(i, k, v)
			}
		}
	}
	return out
}

// Marshal encodes the schema as indented JSON.
func (s *Schema) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}

// Unmarshal decodes and verifies a schema.
func Unmarshal(data []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if err := s.Verify(); err != nil {
		return nil, err
	}
	return &s, nil
}
