// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimization algorithms for training neural networks.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation with bias correction
//   - Optimizer interface for custom optimizers
//   - ScaleGrads and ClipGradNorm helpers used by gradient accumulation
//
// # Basic Usage
//
//	model := nn.NewSequential(
//	    nn.NewLinear(784, 128, rng),
//	    nn.NewReLU(),
//	    nn.NewLinear(128, 10, rng),
//	)
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.001})
//
//	// forward, loss, model.Backward(...)
//	if err := optimizer.Step(); err != nil {
//	    return err
//	}
//	optimizer.ZeroGrad()
//
// Gradients on parameters are summed across Backward calls until ZeroGrad,
// so calling Step once after several micro-batches applies their sum.
// Use ScaleGrads(1/n) first to apply the mean instead.
package optim
