package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegression(t *testing.T) {
	pred := []float64{1, 2, 3, 4}
	target := []float64{1, 3, 2, 6}

	mse, err := MSE(pred, target)
	require.NoError(t, err)
	assert.InDelta(t, (0.0+1+1+4)/4, mse, 1e-12)

	rmse, err := RMSE(pred, target)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(1.5), rmse, 1e-12)

	mae, err := MAE(pred, target)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, mae, 1e-12)

	rmsle, err := RMSLE([]float64{math.E - 1}, []float64{0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rmsle, 1e-12)
}

func TestRegression_Errors(t *testing.T) {
	_, err := MSE([]float64{1}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = MAE(nil, nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = RMSLE([]float64{-2}, []float64{0})
	assert.Error(t, err)
}

func TestConfusionMatrix(t *testing.T) {
	cm, err := ConfusionMatrix([]int{0, 1, 1, 2}, []int{0, 1, 2, 2}, 3)
	require.NoError(t, err)

	assert.Equal(t, 1.0, cm.At(0, 0))
	assert.Equal(t, 1.0, cm.At(1, 1))
	assert.Equal(t, 1.0, cm.At(2, 1))
	assert.Equal(t, 1.0, cm.At(2, 2))
	assert.Equal(t, 0.0, cm.At(1, 2))

	_, err = ConfusionMatrix([]int{3}, []int{0}, 3)
	assert.Error(t, err)
}

func TestClassification(t *testing.T) {
	pred := []int{1, 1, 0, 1, 0, 0}
	target := []int{1, 0, 0, 1, 1, 0}

	acc, err := Accuracy(pred, target)
	require.NoError(t, err)
	assert.InDelta(t, 4.0/6, acc, 1e-12)

	// class 1: tp=2 fp=1 fn=1; class 0: tp=2 fp=1 fn=1
	p, err := Precision(pred, target, 2, Macro)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3, p, 1e-12)

	r, err := Recall(pred, target, 2, Micro)
	require.NoError(t, err)
	assert.InDelta(t, 4.0/6, r, 1e-12)

	f1, err := F1(pred, target, 2, Macro)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3, f1, 1e-12)

	_, err = FBeta(pred, target, 2, 0, Macro)
	assert.Error(t, err)
}

func TestFBeta_WeightsRecall(t *testing.T) {
	// class 0: tp=0 fp=2 fn=0; classes 1 and 2: tp=1 fp=0 fn=1
	pred := []int{1, 0, 0, 2}
	target := []int{1, 1, 2, 2}

	f2, err := FBeta(pred, target, 3, 2, Macro)
	require.NoError(t, err)
	assert.InDelta(t, 10.0/27, f2, 1e-12)

	f05, err := FBeta(pred, target, 3, 0.5, Macro)
	require.NoError(t, err)
	assert.InDelta(t, 5.0/9, f05, 1e-12)

	// Micro pooling makes precision equal recall.
	m2, err := FBeta(pred, target, 3, 2, Micro)
	require.NoError(t, err)
	m05, err := FBeta(pred, target, 3, 0.5, Micro)
	require.NoError(t, err)
	assert.InDelta(t, m2, m05, 1e-12)
}

func TestAggregator(t *testing.T) {
	agg := NewAggregator()
	assert.Zero(t, agg.Summary().Batches)

	agg.Add(1.0, map[string]float64{"mae": 0.5}, 3)
	agg.Add(3.0, map[string]float64{"mae": 1.5, "rmse": 2}, 1)
	agg.Add(2.0, nil, 0)

	s := agg.Summary()
	assert.Equal(t, 3, s.Batches)
	assert.InDelta(t, 5.0, s.Samples, 1e-12)
	assert.InDelta(t, (3.0+3+2)/5, s.Loss, 1e-12)
	assert.InDelta(t, (1.5+1.5)/4, s.Metrics["mae"], 1e-12)
	assert.InDelta(t, 2.0, s.Metrics["rmse"], 1e-12)

	v, ok := s.Value("loss")
	assert.True(t, ok)
	assert.InDelta(t, s.Loss, v, 1e-12)
	_, ok = s.Value("missing")
	assert.False(t, ok)
}
