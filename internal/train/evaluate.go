package train

import (
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"loan-risk/internal/common"
)

// ClassMetrics are the per-class scores of a classification report.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Evaluation summarises held-out performance at a 0.5 threshold.
type Evaluation struct {
	Classes   map[string]ClassMetrics `json:"classes"`
	Accuracy  float64                 `json:"accuracy"`
	ROCAUC    float64                 `json:"roc_auc"`
	Confusion [2][2]int               `json:"confusion"`
}

// Evaluate scores probabilities of the default class against true labels.
// Confusion is indexed [actual][predicted].
func Evaluate(labels []int, probs []float64) Evaluation {
	var cm [2][2]int
	for i, y := range labels {
		pred := 0
		if probs[i] >= 0.5 {
			pred = 1
		}
		cm[y][pred]++
	}

	ev := Evaluation{
		Classes: map[string]ClassMetrics{
			common.ClassGoodLoan: classMetrics(cm, 0),
			common.ClassDefault:  classMetrics(cm, 1),
		},
		Confusion: cm,
		ROCAUC:    rocAUC(labels, probs),
	}
	if n := len(labels); n > 0 {
		ev.Accuracy = float64(cm[0][0]+cm[1][1]) / float64(n)
	}
	return ev
}

func classMetrics(cm [2][2]int, c int) ClassMetrics {
	other := 1 - c
	tp := float64(cm[c][c])
	fp := float64(cm[other][c])
	fn := float64(cm[c][other])

	m := ClassMetrics{Support: cm[c][c] + cm[c][other]}
	if tp+fp > 0 {
		m.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		m.Recall = tp / (tp + fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

// rocAUC integrates the ROC curve. Without both classes the curve is
// undefined and 0.5 is reported.
func rocAUC(labels []int, probs []float64) float64 {
	y := append([]float64(nil), probs...)
	classes := make([]bool, len(labels))
	pos := 0
	for i, l := range labels {
		classes[i] = l == 1
		pos += l
	}
	if pos == 0 || pos == len(labels) {
		return 0.5
	}
	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	auc := integrate.Trapezoidal(fpr, tpr)
	if math.IsNaN(auc) {
		return 0.5
	}
	return auc
}
