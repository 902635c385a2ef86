package metrics

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Average selects how per-class scores are combined.
type Average int

const (
	// Macro averages per-class scores with equal weight.
	Macro Average = iota
	// Micro pools true/false positives across classes.
	Micro
)

// ConfusionMatrix counts target (row) versus predicted (column) labels.
//
// Labels must lie in [0, numClasses).
func ConfusionMatrix(pred, target []int, numClasses int) (*mat.Dense, error) {
	if len(pred) != len(target) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(pred), len(target))
	}
	if len(pred) == 0 {
		return nil, ErrEmpty
	}
	if numClasses < 1 {
		return nil, fmt.Errorf("numClasses must be >= 1, got %d", numClasses)
	}
	cm := mat.NewDense(numClasses, numClasses, nil)
	for i := range pred {
		p, t := pred[i], target[i]
		if p < 0 || p >= numClasses || t < 0 || t >= numClasses {
			return nil, fmt.Errorf("label out of range at %d: pred=%d target=%d", i, p, t)
		}
		cm.Set(t, p, cm.At(t, p)+1)
	}
	return cm, nil
}

// Accuracy returns the fraction of exact label matches.
func Accuracy(pred, target []int) (float64, error) {
	if len(pred) != len(target) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(pred), len(target))
	}
	if len(pred) == 0 {
		return 0, ErrEmpty
	}
	correct := 0
	for i := range pred {
		if pred[i] == target[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(pred)), nil
}

// Precision returns TP / (TP + FP).
func Precision(pred, target []int, numClasses int, avg Average) (float64, error) {
	return score(pred, target, numClasses, avg, func(tp, fp, _ float64) float64 {
		return safeDiv(tp, tp+fp)
	})
}

// Recall returns TP / (TP + FN).
func Recall(pred, target []int, numClasses int, avg Average) (float64, error) {
	return score(pred, target, numClasses, avg, func(tp, _, fn float64) float64 {
		return safeDiv(tp, tp+fn)
	})
}

// F1 returns the harmonic mean of precision and recall.
func F1(pred, target []int, numClasses int, avg Average) (float64, error) {
	return FBeta(pred, target, numClasses, 1, avg)
}

// FBeta returns the weighted harmonic mean of precision and recall.
func FBeta(pred, target []int, numClasses int, beta float64, avg Average) (float64, error) {
	if beta <= 0 {
		return 0, fmt.Errorf("beta must be > 0, got %v", beta)
	}
	b2 := beta * beta
	return score(pred, target, numClasses, avg, func(tp, fp, fn float64) float64 {
		return safeDiv((1+b2)*tp, (1+b2)*tp+b2*fn+fp)
	})
}

func score(pred, target []int, numClasses int, avg Average, f func(tp, fp, fn float64) float64) (float64, error) {
	cm, err := ConfusionMatrix(pred, target, numClasses)
	if err != nil {
		return 0, err
	}

	var sumTP, sumFP, sumFN, macro float64
	for c := 0; c < numClasses; c++ {
		tp, fp, fn := classCounts(cm, c)
		sumTP += tp
		sumFP += fp
		sumFN += fn
		macro += f(tp, fp, fn)
	}

	if avg == Micro {
		return f(sumTP, sumFP, sumFN), nil
	}
	return macro / float64(numClasses), nil
}

// classCounts returns the true positives, false positives and false negatives
// of class c in a confusion matrix.
func classCounts(cm *mat.Dense, c int) (tp, fp, fn float64) {
	tp = cm.At(c, c)
	fp = mat.Sum(cm.ColView(c)) - tp
	fn = mat.Sum(cm.RowView(c)) - tp
	return tp, fp, fn
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
