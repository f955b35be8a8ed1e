package train

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"loan-risk/internal/features"
)

var (
	// ErrEmptyDataset means no labelled rows survived loading and transformation.
	ErrEmptyDataset = errors.New("train: no labelled rows to train on")
	// ErrDegenerateClasses means a class is missing or too small to stratify.
	ErrDegenerateClasses = errors.New("train: degenerate class distribution")
)

// StratifiedSplit holds out testFraction of every class. Each class keeps at
// least one row on both sides.
func StratifiedSplit(t *features.Table, testFraction float64, seed int64) (trainSet, testSet *features.Table, err error) {
	byClass := map[int][]int{}
	for i, y := range t.Labels {
		byClass[y] = append(byClass[y], i)
	}
	if len(byClass[0]) < 2 || len(byClass[1]) < 2 {
		return nil, nil, fmt.Errorf("%w: %d good, %d default rows", ErrDegenerateClasses, len(byClass[0]), len(byClass[1]))
	}

	rng := rand.New(rand.NewSource(seed))
	var trainIdx, testIdx []int
	for _, class := range []int{0, 1} {
		idx := append([]int(nil), byClass[class]...)
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		n := len(idx)
		nTest := int(math.Round(testFraction * float64(n)))
		nTest = max(1, min(nTest, n-1))
		testIdx = append(testIdx, idx[:nTest]...)
		trainIdx = append(trainIdx, idx[nTest:]...)
	}
	sort.Ints(trainIdx)
	sort.Ints(testIdx)

	return subset(t, trainIdx), subset(t, testIdx), nil
}

func subset(t *features.Table, idx []int) *features.Table {
	out := &features.Table{
		Columns: t.Columns,
		Rows:    make([][]float64, len(idx)),
		Labels:  make([]int, len(idx)),
		Levels:  t.Levels,
	}
	for k, i := range idx {
		out.Rows[k] = t.Rows[i]
		out.Labels[k] = t.Labels[i]
	}
	return out
}

// ClassCounts returns the number of good and default rows.
func ClassCounts(labels []int) (good, bad int) {
	for _, y := range labels {
		if y == 1 {
			bad++
		} else {
			good++
		}
	}
	return good, bad
}
