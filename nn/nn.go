// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand/v2"

	"github.com/born-ml/born-train/internal/nn"
)

// Tensor is a dense row-major float32 array.
type Tensor = nn.Tensor

// NewTensor creates a tensor, checking that data matches shape.
func NewTensor(shape []int, data []float32) (*Tensor, error) {
	return nn.NewTensor(shape, data)
}

// Zeros returns a zero-filled tensor.
func Zeros(shape ...int) *Tensor {
	return nn.Zeros(shape...)
}

// FromRows builds a [len(rows), len(rows[0])] tensor.
func FromRows(rows [][]float32) *Tensor {
	return nn.FromRows(rows)
}

// Module interface defines the common interface for all neural network modules.
type Module = nn.Module

// Parameter represents a trainable parameter in a neural network.
type Parameter = nn.Parameter

// NewParameter creates a new parameter with the given name and tensor.
func NewParameter(name string, t *Tensor) *Parameter {
	return nn.NewParameter(name, t)
}

// Errors returned by Backward.
var (
	ErrNoGradTracking = nn.ErrNoGradTracking
	ErrNoForward      = nn.ErrNoForward
)

// Layers

// Linear represents a fully connected (dense) layer.
type Linear = nn.Linear

// NewLinear creates a new linear layer with Xavier initialization.
//
// Example:
//
//	layer := nn.NewLinear(784, 128, rand.New(rand.NewPCG(1, 2)))
func NewLinear(inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	return nn.NewLinear(inFeatures, outFeatures, rng)
}

// ReLU represents the Rectified Linear Unit activation function.
type ReLU = nn.ReLU

// NewReLU creates a new ReLU activation layer.
func NewReLU() *ReLU {
	return nn.NewReLU()
}

// Dropout zeroes inputs with probability p in training mode.
type Dropout = nn.Dropout

// NewDropout creates a dropout layer. Panics unless 0 <= p < 1.
func NewDropout(p float32, rng *rand.Rand) *Dropout {
	return nn.NewDropout(p, rng)
}

// Sequential chains modules.
type Sequential = nn.Sequential

// NewSequential creates a container from the given modules.
func NewSequential(modules ...Module) *Sequential {
	return nn.NewSequential(modules...)
}

// Loss functions

// MSELoss is the mean squared error.
type MSELoss = nn.MSELoss

// NewMSELoss creates a new MSE loss function.
func NewMSELoss() *MSELoss {
	return nn.NewMSELoss()
}
