package nn

import (
	"fmt"
	"slices"
)

// Parameter represents a trainable parameter in a neural network.
//
// Gradients are summed into Grad by every backward pass until ZeroGrad is
// called, so several micro-batches can contribute to one optimizer step.
//
// Example:
//
//	weight := nn.NewParameter("weight", nn.Zeros(4, 3))
//	weight.AccumulateGrad(g1)
//	weight.AccumulateGrad(g2) // Grad now holds g1+g2
//	weight.ZeroGrad()
type Parameter struct {
	name  string
	value *Tensor
	grad  []float32 // Allocated on first accumulation
}

// NewParameter creates a new trainable parameter.
func NewParameter(name string, t *Tensor) *Parameter {
	return &Parameter{name: name, value: t}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *Tensor {
	return p.value
}

// Data returns the parameter values.
func (p *Parameter) Data() []float32 {
	return p.value.Data
}

// Grad returns the accumulated gradient.
//
// Returns nil if no gradient has been accumulated since the last ZeroGrad.
func (p *Parameter) Grad() []float32 {
	return p.grad
}

// AccumulateGrad adds g element-wise into the gradient buffer.
//
// Panics if len(g) differs from the parameter size.
func (p *Parameter) AccumulateGrad(g []float32) {
	if len(g) != len(p.value.Data) {
		panic(fmt.Sprintf("nn.Parameter %q: gradient has %d elements, want %d", p.name, len(g), len(p.value.Data)))
	}
	if p.grad == nil {
		p.grad = slices.Clone(g)
		return
	}
	for i, v := range g {
		p.grad[i] += v
	}
}

// ScaleGrad multiplies the accumulated gradient by factor.
func (p *Parameter) ScaleGrad(factor float32) {
	for i := range p.grad {
		p.grad[i] *= factor
	}
}

// ZeroGrad clears the gradient.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}
