// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package trainer_test

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/born-train/nn"
	"github.com/born-ml/born-train/optim"
	"github.com/born-ml/born-train/trainer"
)

type batch struct {
	x, y *nn.Tensor
}

// y = 2a - b
func linearBatches(n int, rng *rand.Rand) trainer.Slice[batch] {
	out := make(trainer.Slice[batch], n)
	for i := range out {
		rows := make([][]float32, 4)
		targets := make([][]float32, 4)
		for r := range rows {
			a, b := rng.Float32()*2-1, rng.Float32()*2-1
			rows[r] = []float32{a, b}
			targets[r] = []float32{2*a - b}
		}
		out[i] = batch{x: nn.FromRows(rows), y: nn.FromRows(targets)}
	}
	return out
}

func TestRun_LearnsLinearFunction(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	model := nn.NewSequential(nn.NewLinear(2, 1, rng))
	opt := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.05})
	loss := nn.NewMSELoss()

	steps := trainer.CallbackFuncs[batch]{
		Train: func(_ context.Context, b batch) (trainer.StepResult, error) {
			pred := model.Forward(b.x)
			l, err := loss.Forward(pred, b.y)
			if err != nil {
				return trainer.StepResult{}, err
			}
			g, err := loss.Backward(pred, b.y)
			if err != nil {
				return trainer.StepResult{}, err
			}
			_, err = model.Backward(g)
			return trainer.StepResult{Loss: float64(l), Size: b.x.Rows()}, err
		},
		Eval: func(_ context.Context, b batch) (trainer.StepResult, error) {
			l, err := loss.Forward(model.Forward(b.x), b.y)
			return trainer.StepResult{Loss: float64(l), Size: b.x.Rows()}, err
		},
	}

	var evalLosses []float64
	cfg := trainer.DefaultConfig()
	cfg.AccumulateGradBatches = 2
	cfg.GradReduction = trainer.ReductionMean
	cfg.MaxEpochs = 40

	sess := trainer.NewSession(model, opt)
	final, err := trainer.New[batch](steps, trainer.OnEpochEnd(func(_ context.Context, s trainer.EpochSummary) error {
		evalLosses = append(evalLosses, s.Eval.Loss)
		return nil
	})).Run(context.Background(), sess, linearBatches(8, rng), linearBatches(2, rng), cfg)
	require.NoError(t, err)

	assert.Equal(t, trainer.PhaseFinished, final.Phase)
	assert.Equal(t, int64(40*4), final.Step)
	require.Len(t, evalLosses, 40)
	assert.Less(t, evalLosses[39], evalLosses[0]/10)
	assert.Equal(t, trainer.Evaluating, sess.Mode)
}
