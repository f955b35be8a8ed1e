package boost

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
)

const minHessian = 1e-16

// Fit trains a booster on X (rows are samples) and binary labels y.
// names labels the columns; nil yields f0, f1, ...
func Fit(X mat.Matrix, y []int, names []string, p Params) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n, m := X.Dims()
	if n == 0 || m == 0 {
		return nil, ErrEmptyInput
	}
	if len(y) != n {
		return nil, fmt.Errorf("boost: %d labels for %d rows", len(y), n)
	}
	if names != nil && len(names) != m {
		return nil, fmt.Errorf("boost: %d feature names for %d columns", len(names), m)
	}
	positives := 0
	for i, v := range y {
		if v != 0 && v != 1 {
			return nil, fmt.Errorf("boost: label %d at row %d is not binary", v, i)
		}
		positives += v
	}
	if positives == 0 || positives == n {
		return nil, ErrSingleClass
	}

	cols := make([][]float64, m)
	for j := range cols {
		col := make([]float64, n)
		for i := range col {
			col[i] = X.At(i, j)
		}
		cols[j] = col
	}

	if names == nil {
		names = make([]string, m)
		for j := range names {
			names[j] = fmt.Sprintf("f%d", j)
		}
	}

	model := &Model{
		NumFeatures:  m,
		FeatureNames: append([]string(nil), names...),
		Params:       p,
		TrainedAt:    time.Now().UTC(),
	}

	g := &grower{
		cols:    cols,
		sorted:  presort(cols),
		p:       p,
		rowNode: make([]int, n),
	}

	margin := make([]float64, n)
	for i := range margin {
		margin[i] = model.BaseMargin
	}
	grad := make([]float64, n)
	hess := make([]float64, n)

	for round := 0; round < p.NEstimators; round++ {
		for i := range margin {
			pr := sigmoid(margin[i])
			grad[i] = pr - float64(y[i])
			hess[i] = math.Max(pr*(1-pr), minHessian)
		}
		tree := g.grow(grad, hess)
		for i := range margin {
			margin[i] += tree.Nodes[g.rowNode[i]].Value
		}
		model.Trees = append(model.Trees, tree)
	}

	return model, nil
}

// presort returns, per column, the row indices with a non-missing value
// ordered by that value.
func presort(cols [][]float64) [][]int {
	out := make([][]int, len(cols))
	for j, col := range cols {
		idx := make([]int, 0, len(col))
		for i, v := range col {
			if !math.IsNaN(v) {
				idx = append(idx, i)
			}
		}
		sort.SliceStable(idx, func(a, b int) bool { return col[idx[a]] < col[idx[b]] })
		out[j] = idx
	}
	return out
}

type grower struct {
	cols    [][]float64
	sorted  [][]int
	p       Params
	rowNode []int
}

type splitCandidate struct {
	ok        bool
	gain      float64
	feature   int
	threshold float64
	gl, hl    float64
}

type scanState struct {
	totalG, totalH float64
	accG, accH     float64
	last           float64
	seen           bool
}

// grow builds one tree level by level. On return rowNode holds the leaf
// every training row landed in.
func (g *grower) grow(grad, hess []float64) Tree {
	var G, H float64
	for i := range g.rowNode {
		g.rowNode[i] = 0
		G += grad[i]
		H += hess[i]
	}

	nodes := []Node{{Left: -1, Right: -1, Cover: H}}
	sumG := []float64{G}
	active := []int{0}

	for depth := 0; depth < g.p.MaxDepth && len(active) > 0; depth++ {
		best := g.findSplits(active, nodes, sumG, grad, hess)

		var next []int
		for s, nd := range active {
			b := best[s]
			if !b.ok || b.gain <= g.p.Gamma {
				g.makeLeaf(nodes, sumG, nd)
				continue
			}
			l := len(nodes)
			nodes = append(nodes,
				Node{Left: -1, Right: -1, Cover: b.hl},
				Node{Left: -1, Right: -1, Cover: nodes[nd].Cover - b.hl},
			)
			sumG = append(sumG, b.gl, sumG[nd]-b.gl)
			nodes[nd].Left = l
			nodes[nd].Right = l + 1
			nodes[nd].Feature = b.feature
			nodes[nd].Threshold = b.threshold
			nodes[nd].Gain = b.gain
			next = append(next, l, l+1)
		}

		if len(next) > 0 {
			for i, nd := range g.rowNode {
				n := &nodes[nd]
				if n.Leaf || n.Left < 0 {
					continue
				}
				if v := g.cols[n.Feature][i]; math.IsNaN(v) || v < n.Threshold {
					g.rowNode[i] = n.Left
				} else {
					g.rowNode[i] = n.Right
				}
			}
		}
		active = next
	}

	for _, nd := range active {
		g.makeLeaf(nodes, sumG, nd)
	}
	return Tree{Nodes: nodes}
}

func (g *grower) makeLeaf(nodes []Node, sumG []float64, nd int) {
	nodes[nd].Leaf = true
	nodes[nd].Value = -sumG[nd] / (nodes[nd].Cover + g.p.Lambda) * g.p.LearningRate
}

// findSplits runs one exact greedy scan per column over every active node at
// once. Missing values always join the left child.
func (g *grower) findSplits(active []int, nodes []Node, sumG, grad, hess []float64) []splitCandidate {
	slotOf := make([]int, len(nodes))
	for i := range slotOf {
		slotOf[i] = -1
	}
	for s, nd := range active {
		slotOf[nd] = s
	}

	best := make([]splitCandidate, len(active))
	states := make([]scanState, len(active))
	lambda, mcw := g.p.Lambda, g.p.MinChildWeight

	for j, order := range g.sorted {
		for s := range states {
			states[s] = scanState{}
		}
		for _, r := range order {
			if s := slotOf[g.rowNode[r]]; s >= 0 {
				states[s].totalG += grad[r]
				states[s].totalH += hess[r]
			}
		}

		col := g.cols[j]
		for _, r := range order {
			s := slotOf[g.rowNode[r]]
			if s < 0 {
				continue
			}
			st := &states[s]
			v := col[r]
			if st.seen && v > st.last {
				nd := active[s]
				G, H := sumG[nd], nodes[nd].Cover
				gl := G - st.totalG + st.accG
				hl := H - st.totalH + st.accH
				gr, hr := G-gl, H-hl
				if hl >= mcw && hr >= mcw {
					gain := 0.5 * (gl*gl/(hl+lambda) + gr*gr/(hr+lambda) - G*G/(H+lambda))
					if gain > best[s].gain {
						thr := st.last + (v-st.last)/2
						if thr <= st.last {
							thr = v
						}
						best[s] = splitCandidate{ok: true, gain: gain, feature: j, threshold: thr, gl: gl, hl: hl}
					}
				}
			}
			st.accG += grad[r]
			st.accH += hess[r]
			st.last = v
			st.seen = true
		}
	}
	return best
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
