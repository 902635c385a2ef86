// Package nn implements host-memory neural network modules for the training loop.
//
// This package provides:
//   - Module interface: Forward, Backward, Parameters and train/eval mode
//   - Parameter: trainable tensor with a summed gradient buffer
//   - Linear, ReLU, Dropout, Sequential
//   - MSELoss
//
// Gradient tracking follows the module mode. In training mode Forward caches
// what Backward needs; in evaluation mode nothing is cached and Backward
// returns ErrNoGradTracking.
package nn

import "errors"

var (
	// ErrNoGradTracking is returned by Backward when the module is in evaluation mode.
	ErrNoGradTracking = errors.New("gradient tracking is disabled in evaluation mode")

	// ErrNoForward is returned by Backward when no forward pass was recorded.
	ErrNoForward = errors.New("backward called without a recorded forward pass")
)

// Module is the base interface for all neural network components.
//
// Modules can be composed to build complex architectures:
//
//	model := nn.NewSequential(
//	    nn.NewLinear(16, 32, rng),
//	    nn.NewReLU(),
//	    nn.NewLinear(32, 1, rng),
//	)
type Module interface {
	// Forward computes the output of the module for a [batch, features] input.
	Forward(input *Tensor) *Tensor

	// Backward propagates gradOut through the module, accumulating
	// parameter gradients, and returns the gradient w.r.t. the input.
	Backward(gradOut *Tensor) (*Tensor, error)

	// Parameters returns all trainable parameters of this module.
	Parameters() []*Parameter

	// SetTraining switches between training and evaluation behavior.
	SetTraining(training bool) error

	// Training reports whether the module is in training mode.
	Training() bool
}

// StateDict collects parameter values keyed by parameter name.
//
// The returned tensors alias the live parameters.
func StateDict(params []*Parameter) map[string]*Tensor {
	state := make(map[string]*Tensor, len(params))
	for _, p := range params {
		state[p.Name()] = p.Tensor()
	}
	return state
}

// LoadStateDict copies values from state into params by name.
func LoadStateDict(params []*Parameter, state map[string]*Tensor) error {
	for _, p := range params {
		src, ok := state[p.Name()]
		if !ok {
			return &StateError{Name: p.Name(), Reason: "missing"}
		}
		if src == nil {
			return &StateError{Name: p.Name(), Reason: "nil tensor"}
		}
		if !src.SameShape(p.Tensor()) || len(src.Data) != len(p.Data()) {
			return &StateError{Name: p.Name(), Reason: "shape mismatch"}
		}
		copy(p.Data(), src.Data)
	}
	return nil
}

// StateError reports a parameter that could not be restored.
type StateError struct {
	Name   string
	Reason string
}

// Error implements the error interface.
func (e *StateError) Error() string {
	return "load state: parameter " + e.Name + ": " + e.Reason
}
