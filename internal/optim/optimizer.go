// Package optim implements optimization algorithms over nn.Parameter gradients.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//   - ScaleGrads and ClipGradNorm helpers used before a step
//
// Optimizers read the gradient summed into each parameter since the last
// ZeroGrad, so a step may cover any number of backward passes.
//
// Example usage:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.001})
//
//	for _, batch := range window {
//	    pred := model.Forward(batch.X)
//	    grad, _ := loss.Backward(pred, batch.Y)
//	    model.Backward(grad) // sums into parameter gradients
//	}
//	_ = optimizer.Step()
//	optimizer.ZeroGrad()
package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/born-train/internal/nn"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies the accumulated gradients to all parameters.
	//
	// Parameters without a gradient are skipped.
	Step() error

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32

	// SetLR updates the learning rate.
	SetLR(lr float32)

	// StateDict returns the optimizer buffers for checkpointing.
	StateDict() map[string]*nn.Tensor

	// LoadStateDict restores buffers produced by StateDict.
	LoadStateDict(state map[string]*nn.Tensor) error
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float32 // Learning rate
}

// gradOf returns the gradient of param, validating its length.
func gradOf(i int, param *nn.Parameter) ([]float32, error) {
	g := param.Grad()
	if g == nil {
		return nil, nil
	}
	if len(g) != len(param.Data()) {
		return nil, fmt.Errorf("parameter %d (%s): gradient has %d elements, want %d",
			i, param.Name(), len(g), len(param.Data()))
	}
	return g, nil
}

// ScaleGrads multiplies every parameter gradient by factor.
//
// Used to turn a summed gradient into a mean over the accumulation window.
func ScaleGrads(params []*nn.Parameter, factor float32) {
	for _, p := range params {
		p.ScaleGrad(factor)
	}
}

// ClipGradNorm rescales gradients so that their global L2 norm is at most maxNorm.
//
// Returns the total norm before clipping.
func ClipGradNorm(params []*nn.Parameter, maxNorm float64) float64 {
	var sq float64
	for _, p := range params {
		for _, g := range p.Grad() {
			sq += float64(g) * float64(g)
		}
	}
	total := math.Sqrt(sq)
	if maxNorm <= 0 || total <= maxNorm {
		return total
	}
	ScaleGrads(params, float32(maxNorm/(total+1e-6)))
	return total
}

func zeroGrads(params []*nn.Parameter) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

func loadBuffer(state map[string]*nn.Tensor, key string, param *nn.Parameter) ([]float32, bool, error) {
	t, ok := state[key]
	if !ok {
		return nil, false, nil
	}
	if t == nil {
		return nil, false, fmt.Errorf("%s: nil tensor", key)
	}
	if !t.SameShape(param.Tensor()) {
		return nil, false, fmt.Errorf("%s shape mismatch: expected %v, got %v", key, param.Tensor().Shape, t.Shape)
	}
	buf := make([]float32, len(t.Data))
	copy(buf, t.Data)
	return buf, true, nil
}

var (
	_ Optimizer = (*SGD)(nil)
	_ Optimizer = (*Adam)(nil)
)
