package nn

import (
	"fmt"
	"strings"
)

// Sequential chains modules; Forward runs them in order and Backward in reverse.
//
// Example:
//
//	model := nn.NewSequential(
//	    nn.NewLinear(16, 32, rng),
//	    nn.NewReLU(),
//	    nn.NewDropout(0.1, rng),
//	    nn.NewLinear(32, 1, rng),
//	)
type Sequential struct {
	modules []Module
}

// NewSequential creates a container from the given modules.
func NewSequential(modules ...Module) *Sequential {
	return &Sequential{modules: modules}
}

// Forward passes input through every module in order.
func (s *Sequential) Forward(input *Tensor) *Tensor {
	x := input
	for _, m := range s.modules {
		x = m.Forward(x)
	}
	return x
}

// Backward propagates gradOut through the modules in reverse order.
func (s *Sequential) Backward(gradOut *Tensor) (*Tensor, error) {
	g := gradOut
	for i := len(s.modules) - 1; i >= 0; i-- {
		var err error
		g, err = s.modules[i].Backward(g)
		if err != nil {
			return nil, fmt.Errorf("module %d: %w", i, err)
		}
	}
	return g, nil
}

// Parameters returns the parameters of all modules in order.
func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for _, m := range s.modules {
		params = append(params, m.Parameters()...)
	}
	return params
}

// SetTraining switches every module. If a module refuses, the modules
// already switched are restored and the error is returned.
func (s *Sequential) SetTraining(training bool) error {
	prev := make([]bool, len(s.modules))
	for i, m := range s.modules {
		prev[i] = m.Training()
	}
	for i, m := range s.modules {
		if err := m.SetTraining(training); err != nil {
			for j := i; j >= 0; j-- {
				_ = s.modules[j].SetTraining(prev[j]) //nolint:errcheck // best-effort rollback
			}
			return fmt.Errorf("module %d: %w", i, err)
		}
	}
	return nil
}

// Training reports whether the container is in training mode.
//
// An empty container reports true.
func (s *Sequential) Training() bool {
	for _, m := range s.modules {
		if !m.Training() {
			return false
		}
	}
	return true
}

// Len returns the number of modules.
func (s *Sequential) Len() int {
	return len(s.modules)
}

// Module returns the module at index.
func (s *Sequential) Module(index int) Module {
	return s.modules[index]
}

// StateDict returns parameters prefixed with their module index
// (e.g., "0.weight", "0.bias", "3.weight").
func (s *Sequential) StateDict() map[string]*Tensor {
	state := make(map[string]*Tensor)
	for i, m := range s.modules {
		for _, p := range m.Parameters() {
			state[fmt.Sprintf("%d.%s", i, p.Name())] = p.Tensor()
		}
	}
	return state
}

// LoadStateDict restores parameters saved by StateDict.
func (s *Sequential) LoadStateDict(state map[string]*Tensor) error {
	for i, m := range s.modules {
		params := m.Parameters()
		if len(params) == 0 {
			continue
		}
		prefix := fmt.Sprintf("%d.", i)
		sub := make(map[string]*Tensor, len(params))
		for key, t := range state {
			if name, ok := strings.CutPrefix(key, prefix); ok {
				sub[name] = t
			}
		}
		if err := LoadStateDict(params, sub); err != nil {
			return fmt.Errorf("module %d: %w", i, err)
		}
	}
	return nil
}
