package boost

import "math"

// Node is one tree node. Rows with x[Feature] < Threshold, or a missing value,
// go Left. Cover is the hessian mass that reached the node during training.
type Node struct {
	Left      int
	Right     int
	Feature   int
	Threshold float64
	Value     float64
	Cover     float64
	Gain      float64
	Leaf      bool
}

// Tree is a flat node array rooted at index 0.
type Tree struct {
	Nodes []Node
}

func (n *Node) goesLeft(x []float64) bool {
	v := x[n.Feature]
	return math.IsNaN(v) || v < n.Threshold
}

// Leaf returns the index of the leaf x falls into.
func (t *Tree) Leaf(x []float64) int {
	i := 0
	for !t.Nodes[i].Leaf {
		n := &t.Nodes[i]
		if n.goesLeft(x) {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return i
}

// Predict returns the leaf value for x.
func (t *Tree) Predict(x []float64) float64 {
	return t.Nodes[t.Leaf(x)].Value
}

// ExpectedValue is the cover-weighted mean leaf value.
func (t *Tree) ExpectedValue() float64 {
	return t.expected(0)
}

func (t *Tree) expected(i int) float64 {
	n := &t.Nodes[i]
	if n.Leaf {
		return n.Value
	}
	l, r := &t.Nodes[n.Left], &t.Nodes[n.Right]
	if n.Cover <= 0 {
		return 0
	}
	return (l.Cover*t.expected(n.Left) + r.Cover*t.expected(n.Right)) / n.Cover
}
