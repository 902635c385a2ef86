package metrics

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// ROCCurve holds false and true positive rates for descending thresholds.
// A sample is predicted positive when its score is >= the threshold; the
// first threshold is +Inf, where both rates are 0.
type ROCCurve struct {
	FPR        []float64
	TPR        []float64
	Thresholds []float64
}

// PRCurve holds precision and recall for descending thresholds, starting
// at the highest score.
type PRCurve struct {
	Precision  []float64
	Recall     []float64
	Thresholds []float64
}

// ROC computes the receiver operating characteristic of binary scores.
func ROC(scores []float64, target []bool) (ROCCurve, error) {
	if len(scores) != len(target) {
		return ROCCurve{}, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(scores), len(target))
	}
	if len(scores) == 0 {
		return ROCCurve{}, ErrEmpty
	}
	for i, v := range scores {
		if math.IsNaN(v) {
			return ROCCurve{}, fmt.Errorf("score %d is NaN", i)
		}
	}
	if !slices.Contains(target, true) || !slices.Contains(target, false) {
		return ROCCurve{}, ErrSingleClass
	}

	y := slices.Clone(scores)
	classes := slices.Clone(target)
	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, thresh := stat.ROC(nil, y, classes, nil)
	return ROCCurve{FPR: fpr, TPR: tpr, Thresholds: thresh}, nil
}

// AUROC returns the area under the ROC curve.
func AUROC(scores []float64, target []bool) (float64, error) {
	roc, err := ROC(scores, target)
	if err != nil {
		return 0, err
	}
	return AUC(roc.FPR, roc.TPR)
}

// AUC integrates y over x with the trapezoidal rule. x must be monotonic,
// either non-decreasing or non-increasing; repeated x values form vertical
// steps.
func AUC(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(x), len(y))
	}
	if len(x) < 2 {
		return 0, fmt.Errorf("auc needs at least 2 points, got %d", len(x))
	}
	if !sort.Float64sAreSorted(x) {
		x, y = slices.Clone(x), slices.Clone(y)
		slices.Reverse(x)
		slices.Reverse(y)
		if !sort.Float64sAreSorted(x) {
			return 0, fmt.Errorf("auc: x is not monotonic")
		}
	}

	// integrate.Trapezoidal needs strictly increasing x, so integrate each
	// run between repeated values separately.
	var area float64
	start := 0
	for i := 1; i <= len(x); i++ {
		if i < len(x) && x[i] != x[i-1] {
			continue
		}
		if i-start >= 2 {
			area += integrate.Trapezoidal(x[start:i], y[start:i])
		}
		start = i
	}
	return area, nil
}

// PrecisionRecallCurve computes precision and recall at every distinct score.
func PrecisionRecallCurve(scores []float64, target []bool) (PRCurve, error) {
	roc, err := ROC(scores, target)
	if err != nil {
		return PRCurve{}, err
	}
	var pos, neg float64
	for _, t := range target {
		if t {
			pos++
		} else {
			neg++
		}
	}

	// Skip the +Inf threshold, where nothing is predicted positive.
	n := len(roc.Thresholds) - 1
	curve := PRCurve{
		Precision:  make([]float64, n),
		Recall:     make([]float64, n),
		Thresholds: slices.Clone(roc.Thresholds[1:]),
	}
	for i := range n {
		tp := roc.TPR[i+1] * pos
		fp := roc.FPR[i+1] * neg
		curve.Precision[i] = safeDiv(tp, tp+fp)
		curve.Recall[i] = roc.TPR[i+1]
	}
	return curve, nil
}

// AveragePrecision summarizes the precision-recall curve as the mean of
// precisions weighted by the recall gained at each threshold.
func AveragePrecision(scores []float64, target []bool) (float64, error) {
	pr, err := PrecisionRecallCurve(scores, target)
	if err != nil {
		return 0, err
	}
	var ap, prev float64
	for i, r := range pr.Recall {
		ap += (r - prev) * pr.Precision[i]
		prev = r
	}
	return ap, nil
}

// MulticlassROC computes one-vs-rest ROC curves. scores[i][c] is the score of
// sample i for class c.
func MulticlassROC(scores [][]float64, target []int, numClasses int) ([]ROCCurve, error) {
	return oneVsRest(scores, target, numClasses, ROC)
}

// MulticlassPrecisionRecallCurve computes one-vs-rest precision-recall curves.
func MulticlassPrecisionRecallCurve(scores [][]float64, target []int, numClasses int) ([]PRCurve, error) {
	return oneVsRest(scores, target, numClasses, PrecisionRecallCurve)
}

func oneVsRest[C any](scores [][]float64, target []int, numClasses int, curve func([]float64, []bool) (C, error)) ([]C, error) {
	if len(scores) != len(target) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(scores), len(target))
	}
	if numClasses < 2 {
		return nil, fmt.Errorf("numClasses must be >= 2, got %d", numClasses)
	}
	for i, row := range scores {
		if len(row) != numClasses {
			return nil, fmt.Errorf("sample %d has %d scores, want %d", i, len(row), numClasses)
		}
		if target[i] < 0 || target[i] >= numClasses {
			return nil, fmt.Errorf("label out of range at %d: %d", i, target[i])
		}
	}

	curves := make([]C, numClasses)
	col := make([]float64, len(scores))
	bin := make([]bool, len(scores))
	for c := range numClasses {
		for i, row := range scores {
			col[i] = row[c]
			bin[i] = target[i] == c
		}
		cv, err := curve(col, bin)
		if err != nil {
			return nil, fmt.Errorf("class %d: %w", c, err)
		}
		curves[c] = cv
	}
	return curves, nil
}
