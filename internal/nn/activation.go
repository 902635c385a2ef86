package nn

// ReLU applies f(x) = max(0, x) element-wise.
type ReLU struct {
	training bool
	mask     []bool
}

// NewReLU creates a ReLU activation in training mode.
func NewReLU() *ReLU {
	return &ReLU{training: true}
}

// Forward applies the activation.
func (r *ReLU) Forward(input *Tensor) *Tensor {
	out := input.Clone()
	var mask []bool
	if r.training {
		mask = make([]bool, len(out.Data))
	}
	for i, v := range out.Data {
		if v > 0 {
			if mask != nil {
				mask[i] = true
			}
			continue
		}
		out.Data[i] = 0
	}
	r.mask = mask
	return out
}

// Backward passes gradient through positive inputs only.
func (r *ReLU) Backward(gradOut *Tensor) (*Tensor, error) {
	if !r.training {
		return nil, ErrNoGradTracking
	}
	if r.mask == nil || len(r.mask) != len(gradOut.Data) {
		return nil, ErrNoForward
	}
	dx := gradOut.Clone()
	for i, keep := range r.mask {
		if !keep {
			dx.Data[i] = 0
		}
	}
	r.mask = nil
	return dx, nil
}

// Parameters returns nil; ReLU has no trainable parameters.
func (r *ReLU) Parameters() []*Parameter { return nil }

// SetTraining switches the activation mode.
func (r *ReLU) SetTraining(training bool) error {
	r.training = training
	if !training {
		r.mask = nil
	}
	return nil
}

// Training reports whether the activation is in training mode.
func (r *ReLU) Training() bool { return r.training }
