package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestROC(t *testing.T) {
	roc, err := ROC([]float64{0.1, 0.4, 0.35, 0.8}, []bool{false, false, true, true})
	require.NoError(t, err)

	assert.Equal(t, []float64{math.Inf(1), 0.8, 0.4, 0.35, 0.1}, roc.Thresholds)
	assert.InDeltaSlice(t, []float64{0, 0, 0.5, 0.5, 1}, roc.FPR, 1e-12)
	assert.InDeltaSlice(t, []float64{0, 0.5, 0.5, 1, 1}, roc.TPR, 1e-12)
}

func TestAUROCAndAveragePrecision(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		target []bool
		auroc  float64
		ap     float64
	}{
		{"partial", []float64{0.1, 0.4, 0.35, 0.8}, []bool{false, false, true, true}, 0.75, 5.0 / 6},
		{"perfect", []float64{0.1, 0.2, 0.8, 0.9}, []bool{false, false, true, true}, 1, 1},
		{"inverted", []float64{0.9, 0.8, 0.2, 0.1}, []bool{false, false, true, true}, 0, 5.0 / 12},
		{"all tied", []float64{0.5, 0.5, 0.5, 0.5}, []bool{true, false, true, false}, 0.5, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auroc, err := AUROC(tt.scores, tt.target)
			require.NoError(t, err)
			assert.InDelta(t, tt.auroc, auroc, 1e-12)

			ap, err := AveragePrecision(tt.scores, tt.target)
			require.NoError(t, err)
			assert.InDelta(t, tt.ap, ap, 1e-12)
		})
	}
}

func TestROC_Errors(t *testing.T) {
	_, err := ROC([]float64{0.1, 0.2}, []bool{true, true})
	assert.ErrorIs(t, err, ErrSingleClass)

	_, err = ROC(nil, nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = ROC([]float64{0.1}, []bool{true, false})
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = ROC([]float64{math.NaN(), 0.2}, []bool{true, false})
	assert.Error(t, err)
}

func TestAUC(t *testing.T) {
	tests := []struct {
		name string
		x, y []float64
		want float64
	}{
		{"ascending", []float64{0, 1, 2}, []float64{0, 1, 0}, 1},
		{"descending", []float64{2, 1, 0}, []float64{0, 1, 0}, 1},
		{"vertical step", []float64{0, 0, 1}, []float64{0, 1, 1}, 1},
		{"step in the middle", []float64{0, 0.5, 0.5, 1}, []float64{0, 0, 1, 1}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AUC(tt.x, tt.y)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}

	_, err := AUC([]float64{0, 2, 1}, []float64{0, 0, 0})
	assert.Error(t, err)
	_, err = AUC([]float64{0}, []float64{0})
	assert.Error(t, err)
}

func TestPrecisionRecallCurve(t *testing.T) {
	pr, err := PrecisionRecallCurve([]float64{0.1, 0.4, 0.35, 0.8}, []bool{false, false, true, true})
	require.NoError(t, err)

	assert.Equal(t, []float64{0.8, 0.4, 0.35, 0.1}, pr.Thresholds)
	assert.InDeltaSlice(t, []float64{1, 0.5, 2.0 / 3, 0.5}, pr.Precision, 1e-12)
	assert.InDeltaSlice(t, []float64{0.5, 0.5, 1, 1}, pr.Recall, 1e-12)
}

func TestMulticlassCurves(t *testing.T) {
	scores := [][]float64{
		{0.8, 0.1, 0.1},
		{0.2, 0.7, 0.1},
		{0.1, 0.2, 0.7},
		{0.6, 0.3, 0.1},
	}
	target := []int{0, 1, 2, 0}

	rocs, err := MulticlassROC(scores, target, 3)
	require.NoError(t, err)
	require.Len(t, rocs, 3)
	for c, roc := range rocs {
		auc, err := AUC(roc.FPR, roc.TPR)
		require.NoError(t, err)
		assert.InDelta(t, 1, auc, 1e-12, "class %d", c)
	}

	prs, err := MulticlassPrecisionRecallCurve(scores, target, 3)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 1, 1, 1}, prs[0].Recall, 1e-12)

	_, err = MulticlassROC(scores, []int{0, 1, 1, 0}, 3)
	assert.ErrorIs(t, err, ErrSingleClass)

	_, err = MulticlassROC([][]float64{{0.1}}, []int{0}, 3)
	assert.Error(t, err)
}

func TestSegmentation(t *testing.T) {
	pred := []int{0, 1, 1, 2}
	target := []int{0, 1, 2, 2}

	tests := []struct {
		name       string
		numClasses int
		ignoreBg   bool
		dice, iou  float64
	}{
		{"all classes", 3, false, 7.0 / 9, 2.0 / 3},
		{"ignore background", 3, true, 2.0 / 3, 0.5},
		{"absent class", 4, false, 7.0 / 12, 2.0 / 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dice, err := DiceCoefficient(pred, target, tt.numClasses, tt.ignoreBg)
			require.NoError(t, err)
			assert.InDelta(t, tt.dice, dice, 1e-12)

			iou, err := IoU(pred, target, tt.numClasses, tt.ignoreBg)
			require.NoError(t, err)
			assert.InDelta(t, tt.iou, iou, 1e-12)
		})
	}

	_, err := IoU([]int{0}, []int{0}, 1, true)
	assert.Error(t, err)
	_, err = DiceCoefficient(pred, target[:2], 3, false)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}
