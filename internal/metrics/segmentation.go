package metrics

import "fmt"

// DiceCoefficient returns the mean Dice score 2TP / (2TP + FP + FN) over
// classes, computed from per-element labels. A class absent from target
// scores 0. With ignoreBackground, class 0 is left out.
func DiceCoefficient(pred, target []int, numClasses int, ignoreBackground bool) (float64, error) {
	return perClassMean(pred, target, numClasses, ignoreBackground, func(tp, fp, fn float64) (float64, bool) {
		if tp+fn == 0 {
			return 0, true
		}
		return 2 * tp / (2*tp + fp + fn), true
	})
}

// IoU returns the mean intersection over union TP / (TP + FP + FN) over
// classes. Classes absent from both pred and target are left out of the mean.
// With ignoreBackground, class 0 is left out.
func IoU(pred, target []int, numClasses int, ignoreBackground bool) (float64, error) {
	return perClassMean(pred, target, numClasses, ignoreBackground, func(tp, fp, fn float64) (float64, bool) {
		union := tp + fp + fn
		if union == 0 {
			return 0, false
		}
		return tp / union, true
	})
}

func perClassMean(pred, target []int, numClasses int, ignoreBackground bool, f func(tp, fp, fn float64) (float64, bool)) (float64, error) {
	cm, err := ConfusionMatrix(pred, target, numClasses)
	if err != nil {
		return 0, err
	}
	first := 0
	if ignoreBackground {
		first = 1
	}
	if first >= numClasses {
		return 0, fmt.Errorf("no classes left after ignoring background (numClasses=%d)", numClasses)
	}

	var sum float64
	n := 0
	for c := first; c < numClasses; c++ {
		v, ok := f(classCounts(cm, c))
		if !ok {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, ErrEmpty
	}
	return sum / float64(n), nil
}
