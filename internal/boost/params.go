// Package boost implements binary gradient-boosted decision trees with a
// logistic objective and exact path-dependent TreeSHAP attributions.
package boost

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when Fit receives no rows or no columns.
	ErrEmptyInput = errors.New("boost: empty training matrix")
	// ErrSingleClass is returned when the labels contain only one class.
	ErrSingleClass = errors.New("boost: labels contain a single class")
)

// Params are the booster hyper-parameters.
type Params struct {
	NEstimators    int
	MaxDepth       int
	LearningRate   float64
	Lambda         float64
	MinChildWeight float64
	Gamma          float64
}

// DefaultParams mirrors the usual gbtree defaults for binary:logistic.
func DefaultParams() Params {
	return Params{
		NEstimators:    100,
		MaxDepth:       6,
		LearningRate:   0.3,
		Lambda:         1,
		MinChildWeight: 1,
		Gamma:          0,
	}
}

// Validate rejects parameter sets Fit cannot honour.
func (p Params) Validate() error {
	if p.NEstimators < 1 {
		return fmt.Errorf("boost: n_estimators must be positive, got %d", p.NEstimators)
	}
	if p.MaxDepth < 1 {
		return fmt.Errorf("boost: max_depth must be positive, got %d", p.MaxDepth)
	}
	if p.LearningRate <= 0 || p.LearningRate > 1 {
		return fmt.Errorf("boost: learning_rate must be in (0, 1], got %f", p.LearningRate)
	}
	if p.Lambda < 0 {
		return fmt.Errorf("boost: lambda must be non-negative, got %f", p.Lambda)
	}
	if p.MinChildWeight < 0 {
		return fmt.Errorf("boost: min_child_weight must be non-negative, got %f", p.MinChildWeight)
	}
	if p.Gamma < 0 {
		return fmt.Errorf("boost: gamma must be non-negative, got %f", p.Gamma)
	}
	return nil
}
