package optim

import (
	"fmt"

	"github.com/born-ml/born-train/internal/nn"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
type SGD struct {
	params     []*nn.Parameter
	lr         float32
	momentum   float32
	velocities map[*nn.Parameter][]float32
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float32 // Learning rate (default: 0.01)
	Momentum float32 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}

	return &SGD{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter][]float32),
	}
}

// Step performs a single optimization step.
func (s *SGD) Step() error {
	for i, param := range s.params {
		grad, err := gradOf(i, param)
		if err != nil {
			return err
		}
		if grad == nil {
			continue
		}

		data := param.Data()
		if s.momentum == 0 {
			for k, g := range grad {
				data[k] -= s.lr * g
			}
			continue
		}

		velocity, ok := s.velocities[param]
		if !ok {
			velocity = make([]float32, len(data))
			s.velocities[param] = velocity
		}
		for k, g := range grad {
			velocity[k] = s.momentum*velocity[k] + g
			data[k] -= s.lr * velocity[k]
		}
	}
	return nil
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD) ZeroGrad() {
	zeroGrads(s.params)
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float32 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD) SetLR(lr float32) {
	s.lr = lr
}

// ScaleGrads multiplies all gradients by factor.
func (s *SGD) ScaleGrads(factor float32) {
	ScaleGrads(s.params, factor)
}

// ClipGradNorm clips the global gradient norm and returns the norm before clipping.
func (s *SGD) ClipGradNorm(maxNorm float64) float64 {
	return ClipGradNorm(s.params, maxNorm)
}

// StateDict exports velocity buffers as "velocity.{param_index}".
//
// Without momentum, returns an empty map.
func (s *SGD) StateDict() map[string]*nn.Tensor {
	state := make(map[string]*nn.Tensor)
	if s.momentum == 0 {
		return state
	}
	for i, param := range s.params {
		velocity, ok := s.velocities[param]
		if !ok {
			continue
		}
		state[fmt.Sprintf("velocity.%d", i)] = &nn.Tensor{Shape: param.Tensor().Shape, Data: velocity}
	}
	return state
}

// LoadStateDict restores velocity buffers.
//
// Returns an error if a velocity shape doesn't match its parameter.
func (s *SGD) LoadStateDict(state map[string]*nn.Tensor) error {
	if s.momentum == 0 {
		return nil
	}
	velocities := make(map[*nn.Parameter][]float32)
	for i, param := range s.params {
		buf, ok, err := loadBuffer(state, fmt.Sprintf("velocity.%d", i), param)
		if err != nil {
			return err
		}
		if ok {
			velocities[param] = buf
		}
	}
	s.velocities = velocities
	return nil
}
