package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/born-train/internal/nn"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²
//	m_hat = m_t / (1 - beta1^t)
//	v_hat = v_t / (1 - beta2^t)
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	params []*nn.Parameter
	lr     float32
	beta1  float32
	beta2  float32
	eps    float32
	t      int // Timestep for bias correction
	m      map[*nn.Parameter][]float32
	v      map[*nn.Parameter][]float32
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float32    // Learning rate (default: 0.001)
	Betas [2]float32 // Coefficients for running averages (default: [0.9, 0.999])
	Eps   float32    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer, filling unset hyperparameters with defaults.
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam{
		params: params,
		lr:     config.LR,
		beta1:  config.Betas[0],
		beta2:  config.Betas[1],
		eps:    config.Eps,
		m:      make(map[*nn.Parameter][]float32),
		v:      make(map[*nn.Parameter][]float32),
	}
}

// Step performs a single optimization step using Adam algorithm.
func (a *Adam) Step() error {
	grads := make([][]float32, len(a.params))
	for i, param := range a.params {
		g, err := gradOf(i, param)
		if err != nil {
			return err
		}
		grads[i] = g
	}

	a.t++
	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for i, param := range a.params {
		grad := grads[i]
		if grad == nil {
			continue
		}
		data := param.Data()

		m, ok := a.m[param]
		if !ok {
			m = make([]float32, len(data))
			a.m[param] = m
		}
		v, ok := a.v[param]
		if !ok {
			v = make([]float32, len(data))
			a.v[param] = v
		}

		for k, g := range grad {
			m[k] = a.beta1*m[k] + (1.0-a.beta1)*g
			v[k] = a.beta2*v[k] + (1.0-a.beta2)*g*g
			mHat := m[k] / biasCorrection1
			vHat := v[k] / biasCorrection2
			data[k] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
		}
	}
	return nil
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam) ZeroGrad() {
	zeroGrads(a.params)
}

// GetLR returns the current learning rate.
func (a *Adam) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam) SetLR(lr float32) {
	a.lr = lr
}

// ScaleGrads multiplies all gradients by factor.
func (a *Adam) ScaleGrads(factor float32) {
	ScaleGrads(a.params, factor)
}

// ClipGradNorm clips the global gradient norm and returns the norm before clipping.
func (a *Adam) ClipGradNorm(maxNorm float64) float64 {
	return ClipGradNorm(a.params, maxNorm)
}

// StateDict exports the timestep and both moment buffers.
//
// State keys: "t" -> [1] timestep, "m.{i}" and "v.{i}" -> moment estimates.
func (a *Adam) StateDict() map[string]*nn.Tensor {
	state := map[string]*nn.Tensor{
		"t": {Shape: []int{1}, Data: []float32{float32(a.t)}},
	}
	for i, param := range a.params {
		if m, ok := a.m[param]; ok {
			state[fmt.Sprintf("m.%d", i)] = &nn.Tensor{Shape: param.Tensor().Shape, Data: m}
		}
		if v, ok := a.v[param]; ok {
			state[fmt.Sprintf("v.%d", i)] = &nn.Tensor{Shape: param.Tensor().Shape, Data: v}
		}
	}
	return state
}

// LoadStateDict restores the timestep and moment buffers.
func (a *Adam) LoadStateDict(state map[string]*nn.Tensor) error {
	t := 0
	if ts, ok := state["t"]; ok {
		if ts == nil {
			return fmt.Errorf("adam state: timestep is nil")
		}
		if len(ts.Data) != 1 {
			return fmt.Errorf("adam state: timestep has %d elements, want 1", len(ts.Data))
		}
		t = int(ts.Data[0])
	}

	m := make(map[*nn.Parameter][]float32)
	v := make(map[*nn.Parameter][]float32)
	for i, param := range a.params {
		buf, ok, err := loadBuffer(state, fmt.Sprintf("m.%d", i), param)
		if err != nil {
			return err
		}
		if ok {
			m[param] = buf
		}
		buf, ok, err = loadBuffer(state, fmt.Sprintf("v.%d", i), param)
		if err != nil {
			return err
		}
		if ok {
			v[param] = buf
		}
	}

	a.t, a.m, a.v = t, m, v
	return nil
}
