package main

import (
	"context"
	"math/rand/v2"

	"github.com/born-ml/born-train/internal/data"
	"github.com/born-ml/born-train/internal/metrics"
	"github.com/born-ml/born-train/internal/nn"
	"github.com/born-ml/born-train/internal/trainer"
)

// Regressor is a two-layer perceptron predicting one value per sample.
//
// Architecture:
//   - Linear (features → hidden)
//   - ReLU
//   - Dropout
//   - Linear (hidden → 1)
type Regressor struct {
	*nn.Sequential
	loss *nn.MSELoss
}

var _ trainer.Callbacks[[]data.Sample] = (*Regressor)(nil)

// NewRegressor creates the network with Xavier-initialized weights drawn from rng.
func NewRegressor(features, hidden int, dropout float32, rng *rand.Rand) *Regressor {
	return &Regressor{
		Sequential: nn.NewSequential(
			nn.NewLinear(features, hidden, rng),
			nn.NewReLU(),
			nn.NewDropout(dropout, rng),
			nn.NewLinear(hidden, 1, rng),
		),
		loss: nn.NewMSELoss(),
	}
}

// TrainStep runs forward and backward for one micro-batch. Gradients are
// left on the parameters for the accumulator.
func (m *Regressor) TrainStep(_ context.Context, batch []data.Sample) (trainer.StepResult, error) {
	x, y, err := data.Tensors(batch)
	if err != nil {
		return trainer.StepResult{}, err
	}
	pred := m.Forward(x)
	l, err := m.loss.Forward(pred, y)
	if err != nil {
		return trainer.StepResult{}, err
	}
	grad, err := m.loss.Backward(pred, y)
	if err != nil {
		return trainer.StepResult{}, err
	}
	if _, err := m.Backward(grad); err != nil {
		return trainer.StepResult{}, err
	}
	return trainer.StepResult{Loss: float64(l), Size: len(batch)}, nil
}

// EvalStep computes loss, MAE and RMSE for one batch.
func (m *Regressor) EvalStep(_ context.Context, batch []data.Sample) (trainer.StepResult, error) {
	x, y, err := data.Tensors(batch)
	if err != nil {
		return trainer.StepResult{}, err
	}
	pred := m.Forward(x)
	l, err := m.loss.Forward(pred, y)
	if err != nil {
		return trainer.StepResult{}, err
	}

	p, t := metrics.Float64s(pred.Data), metrics.Float64s(y.Data)
	mae, err := metrics.MAE(p, t)
	if err != nil {
		return trainer.StepResult{}, err
	}
	rmse, err := metrics.RMSE(p, t)
	if err != nil {
		return trainer.StepResult{}, err
	}
	return trainer.StepResult{
		Loss:    float64(l),
		Metrics: map[string]float64{"mae": mae, "rmse": rmse},
		Size:    len(batch),
	}, nil
}
