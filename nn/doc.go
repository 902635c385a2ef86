// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides host-memory neural network layers for born-train.
//
// # Overview
//
// This package contains:
//   - Layers: Linear, ReLU, Dropout
//   - Containers: Sequential
//   - Loss functions: MSELoss
//   - Utilities: Tensor, Parameter, Module interface, state dicts
//
// # Basic Usage
//
//	rng := rand.New(rand.NewPCG(1, 2))
//	model := nn.NewSequential(
//	    nn.NewLinear(16, 32, rng),
//	    nn.NewReLU(),
//	    nn.NewDropout(0.1, rng),
//	    nn.NewLinear(32, 1, rng),
//	)
//
//	pred := model.Forward(x)
//	grad, _ := nn.NewMSELoss().Backward(pred, y)
//	_, _ = model.Backward(grad) // gradients accumulate on the parameters
//
// # Modes
//
// Every module starts in training mode. SetTraining(false) switches to
// evaluation: Dropout becomes the identity and Backward returns
// ErrNoGradTracking. Gradients from successive Backward calls are summed
// until ZeroGrad, which is what gradient accumulation relies on.
package nn
