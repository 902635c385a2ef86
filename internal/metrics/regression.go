// Package metrics computes evaluation metrics and aggregates step results.
//
// Regression: MSE, RMSE, MAE, RMSLE.
// Classification: Accuracy, Precision, Recall, F1, FBeta, ConfusionMatrix.
// Ranking: ROC, AUROC, AUC, PrecisionRecallCurve, AveragePrecision and their
// one-vs-rest multiclass forms.
// Segmentation: DiceCoefficient, IoU.
package metrics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrLengthMismatch is returned when predictions and targets differ in length.
	ErrLengthMismatch = errors.New("predictions and targets have different lengths")

	// ErrEmpty is returned when a metric is requested over no samples.
	ErrEmpty = errors.New("no samples")

	// ErrSingleClass is returned by ranking metrics when the targets hold
	// only positives or only negatives.
	ErrSingleClass = errors.New("targets contain a single class")
)

func checkPair(pred, target []float64) error {
	if len(pred) != len(target) {
		return fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(pred), len(target))
	}
	if len(pred) == 0 {
		return ErrEmpty
	}
	return nil
}

// MSE returns the mean squared error.
func MSE(pred, target []float64) (float64, error) {
	if err := checkPair(pred, target); err != nil {
		return 0, err
	}
	d := floats.Distance(pred, target, 2)
	return d * d / float64(len(pred)), nil
}

// RMSE returns the root mean squared error.
func RMSE(pred, target []float64) (float64, error) {
	mse, err := MSE(pred, target)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE returns the mean absolute error.
func MAE(pred, target []float64) (float64, error) {
	if err := checkPair(pred, target); err != nil {
		return 0, err
	}
	return floats.Distance(pred, target, 1) / float64(len(pred)), nil
}

// RMSLE returns the root mean squared logarithmic error.
//
// Values must be greater than -1.
func RMSLE(pred, target []float64) (float64, error) {
	if err := checkPair(pred, target); err != nil {
		return 0, err
	}
	lp := make([]float64, len(pred))
	lt := make([]float64, len(target))
	for i := range pred {
		if pred[i] <= -1 || target[i] <= -1 {
			return 0, fmt.Errorf("rmsle: value at %d is <= -1", i)
		}
		lp[i] = math.Log1p(pred[i])
		lt[i] = math.Log1p(target[i])
	}
	return RMSE(lp, lt)
}

// Float64s widens a float32 slice for metric computation.
func Float64s(xs []float32) []float64 {
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[i] = float64(v)
	}
	return out
}
