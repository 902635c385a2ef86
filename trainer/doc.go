// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package trainer runs training loops with automatic mode switching and
// gradient accumulation.
//
// # Overview
//
// The orchestrator owns the loop; user code supplies one train step and one
// eval step per batch:
//   - Before every train step the model is in Training mode; before every
//     eval step it is in Evaluating mode (gradient tracking off, Dropout off).
//   - Gradients from K = AccumulateGradBatches train steps are applied with a
//     single optimizer step. A partial window is flushed at the end of every
//     epoch.
//   - Checkpoints are written after each epoch's evaluation, never in the
//     middle of an accumulation window.
//
// # Basic Usage
//
//	model := nn.NewSequential(nn.NewLinear(8, 16, rng), nn.NewReLU(), nn.NewLinear(16, 1, rng))
//	opt := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.01, Momentum: 0.9})
//	loss := nn.NewMSELoss()
//
//	steps := trainer.CallbackFuncs[Batch]{
//	    Train: func(ctx context.Context, b Batch) (trainer.StepResult, error) {
//	        pred := model.Forward(b.X)
//	        l, _ := loss.Forward(pred, b.Y)
//	        g, _ := loss.Backward(pred, b.Y)
//	        _, err := model.Backward(g)
//	        return trainer.StepResult{Loss: float64(l), Size: b.X.Rows()}, err
//	    },
//	    Eval: func(ctx context.Context, b Batch) (trainer.StepResult, error) {
//	        l, err := loss.Forward(model.Forward(b.X), b.Y)
//	        return trainer.StepResult{Loss: float64(l), Size: b.X.Rows()}, err
//	    },
//	}
//
//	cfg := trainer.DefaultConfig()
//	cfg.AccumulateGradBatches = 4
//	cfg.MaxEpochs = 10
//
//	sess := trainer.NewSession(model, opt)
//	final, err := trainer.New[Batch](steps).Run(ctx, sess, trainBatches, evalBatches, cfg)
//
// # Errors
//
// Run returns *RunError on failure. It wraps one of *ModeTransitionError,
// *CallbackError, *ConfigurationError, *AccumulationInvariantViolation, a
// checkpoint error, or the context error, and carries the session snapshot
// and last checkpoint path.
package trainer
