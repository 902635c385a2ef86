package nn

import (
	"fmt"
	"math/rand/v2"
)

// Dropout zeroes each element with probability p during training and scales
// the survivors by 1/(1-p). In evaluation mode it is the identity.
type Dropout struct {
	p        float32
	rng      *rand.Rand
	training bool
	scale    []float32 // per-element multiplier from the last training forward
}

// NewDropout creates a Dropout layer in training mode.
//
// Panics if p is outside [0, 1).
func NewDropout(p float32, rng *rand.Rand) *Dropout {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("nn.NewDropout: p must be in [0, 1), got %v", p))
	}
	return &Dropout{p: p, rng: rng, training: true}
}

// Forward applies the dropout mask in training mode.
func (d *Dropout) Forward(input *Tensor) *Tensor {
	out := input.Clone()
	if !d.training || d.p == 0 {
		d.scale = nil
		return out
	}
	keep := 1 / (1 - d.p)
	scale := make([]float32, len(out.Data))
	for i := range out.Data {
		if d.rng.Float32() >= d.p {
			scale[i] = keep
		}
		out.Data[i] *= scale[i]
	}
	d.scale = scale
	return out
}

// Backward applies the same mask to the incoming gradient.
func (d *Dropout) Backward(gradOut *Tensor) (*Tensor, error) {
	if !d.training {
		return nil, ErrNoGradTracking
	}
	dx := gradOut.Clone()
	if d.p == 0 {
		return dx, nil
	}
	if len(d.scale) != len(dx.Data) {
		return nil, ErrNoForward
	}
	for i := range dx.Data {
		dx.Data[i] *= d.scale[i]
	}
	d.scale = nil
	return dx, nil
}

// Parameters returns nil; Dropout has no trainable parameters.
func (d *Dropout) Parameters() []*Parameter { return nil }

// SetTraining switches between stochastic and identity behavior.
func (d *Dropout) SetTraining(training bool) error {
	d.training = training
	if !training {
		d.scale = nil
	}
	return nil
}

// Training reports whether dropout is active.
func (d *Dropout) Training() bool { return d.training }
