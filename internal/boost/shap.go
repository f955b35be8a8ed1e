package boost

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"
)

// ErrExplainerMismatch is returned when an explainer was not built from the
// given model.
var ErrExplainerMismatch = errors.New("boost: explainer does not belong to model")

// Explainer computes exact path-dependent TreeSHAP values for a model.
// Attributions are in log-odds and every row satisfies
// sum(phi) + ExpectedValue == margin(x).
type Explainer struct {
	Trees         []Tree
	NumFeatures   int
	FeatureNames  []string
	ExpectedValue float64
	ModelDigest   string
	SchemaVersion string
}

// NewExplainer captures the tree structure and covers of m.
func NewExplainer(m *Model) (*Explainer, error) {
	digest, err := Digest(m)
	if err != nil {
		return nil, err
	}
	e := &Explainer{
		Trees:         make([]Tree, len(m.Trees)),
		NumFeatures:   m.NumFeatures,
		FeatureNames:  append([]string(nil), m.FeatureNames...),
		ExpectedValue: m.BaseMargin,
		ModelDigest:   digest,
		SchemaVersion: m.SchemaVersion,
	}
	for i, t := range m.Trees {
		e.Trees[i] = Tree{Nodes: append([]Node(nil), t.Nodes...)}
		e.ExpectedValue += t.ExpectedValue()
	}
	return e, nil
}

// Matches verifies that e was built from m.
func (e *Explainer) Matches(m *Model) error {
	digest, err := Digest(m)
	if err != nil {
		return err
	}
	if digest != e.ModelDigest || e.SchemaVersion != m.SchemaVersion {
		return ErrExplainerMismatch
	}
	return nil
}

// Shap returns one row of attributions per row of X.
func (e *Explainer) Shap(X mat.Matrix) (*mat.Dense, error) {
	rows, cols := X.Dims()
	if cols != e.NumFeatures {
		return nil, fmt.Errorf("boost: explainer expects %d features, got %d", e.NumFeatures, cols)
	}
	out := mat.NewDense(rows, cols, nil)
	buf := make([]float64, cols)
	for i := 0; i < rows; i++ {
		out.SetRow(i, e.ShapRow(mat.Row(buf, i, X)))
	}
	return out, nil
}

// ShapRow attributes a single feature vector.
func (e *Explainer) ShapRow(x []float64) []float64 {
	phi := make([]float64, e.NumFeatures)
	for i := range e.Trees {
		t := &e.Trees[i]
		treeShap(t, x, phi, 0, nil, 0, 1, 1, -1)
	}
	return phi
}

type pathElement struct {
	feature int
	zero    float64
	one     float64
	weight  float64
}

func treeShap(t *Tree, x, phi []float64, node int, parent []pathElement, depth int, pz, po float64, pi int) {
	path := make([]pathElement, depth+1)
	copy(path, parent[:depth])
	extendPath(path, depth, pz, po, pi)

	n := &t.Nodes[node]
	if n.Leaf {
		for i := 1; i <= depth; i++ {
			w := unwoundPathSum(path, depth, i)
			el := path[i]
			phi[el.feature] += w * (el.one - el.zero) * n.Value
		}
		return
	}

	hot, cold := n.Right, n.Left
	if n.goesLeft(x) {
		hot, cold = n.Left, n.Right
	}
	hotZero := t.Nodes[hot].Cover / n.Cover
	coldZero := t.Nodes[cold].Cover / n.Cover

	inZero, inOne := 1.0, 1.0
	k := 0
	for ; k <= depth; k++ {
		if path[k].feature == n.Feature {
			break
		}
	}
	if k <= depth {
		inZero, inOne = path[k].zero, path[k].one
		unwindPath(path, depth, k)
		depth--
	}

	treeShap(t, x, phi, hot, path, depth+1, hotZero*inZero, inOne, n.Feature)
	treeShap(t, x, phi, cold, path, depth+1, coldZero*inZero, 0, n.Feature)
}

func extendPath(path []pathElement, depth int, pz, po float64, pi int) {
	path[depth] = pathElement{feature: pi, zero: pz, one: po}
	if depth == 0 {
		path[depth].weight = 1
	}
	d := float64(depth + 1)
	for i := depth - 1; i >= 0; i-- {
		path[i+1].weight += po * path[i].weight * float64(i+1) / d
		path[i].weight = pz * path[i].weight * float64(depth-i) / d
	}
}

func unwindPath(path []pathElement, depth, k int) {
	one, zero := path[k].one, path[k].zero
	next := path[depth].weight
	d := float64(depth + 1)
	for i := depth - 1; i >= 0; i-- {
		if one != 0 {
			tmp := path[i].weight
			path[i].weight = next * d / (float64(i+1) * one)
			next = tmp - path[i].weight*zero*float64(depth-i)/d
		} else {
			path[i].weight = path[i].weight * d / (zero * float64(depth-i))
		}
	}
	for i := k; i < depth; i++ {
		path[i].feature = path[i+1].feature
		path[i].zero = path[i+1].zero
		path[i].one = path[i+1].one
	}
}

func unwoundPathSum(path []pathElement, depth, k int) float64 {
	one, zero := path[k].one, path[k].zero
	next := path[depth].weight
	d := float64(depth + 1)
	var total float64
	for i := depth - 1; i >= 0; i-- {
		if one != 0 {
			tmp := next * d / (float64(i+1) * one)
			total += tmp
			next = path[i].weight - tmp*zero*float64(depth-i)/d
		} else if zero != 0 {
			total += path[i].weight / zero / (float64(depth-i) / d)
		}
	}
	return total
}

// Encode writes the explainer with encoding/gob.
func (e *Explainer) Encode(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(e); err != nil {
		return fmt.Errorf("encode explainer: %w", err)
	}
	return nil
}

// DecodeExplainer reads a gob-encoded explainer.
func DecodeExplainer(r io.Reader) (*Explainer, error) {
	var e Explainer
	if err := gob.NewDecoder(r).Decode(&e); err != nil {
		return nil, fmt.Errorf("decode explainer: %w", err)
	}
	if len(e.Trees) == 0 || e.NumFeatures == 0 {
		return nil, fmt.Errorf("decode explainer: incomplete explainer")
	}
	return &e, nil
}
