package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/born-train/internal/parallel"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input with shape [batch_size, in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//
// Weights are initialized using Xavier/Glorot initialization.
// Biases are initialized to zeros.
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter
	bias        *Parameter
	training    bool
	input       *Tensor // cached by Forward in training mode
	par         parallel.Config
}

// NewLinear creates a new Linear layer in training mode.
func NewLinear(inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", Xavier(inFeatures, outFeatures, rng, outFeatures, inFeatures)),
		bias:        NewParameter("bias", Zeros(outFeatures)),
		training:    true,
		par:         parallel.DefaultConfig(),
	}
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter { return l.weight }

// Bias returns the bias parameter.
func (l *Linear) Bias() *Parameter { return l.bias }

// Forward computes y = x @ W.T + b. Rows are processed in parallel.
func (l *Linear) Forward(input *Tensor) *Tensor {
	mustBe2D("Linear.Forward", input)
	if input.Cols() != l.inFeatures {
		panic(fmt.Sprintf("nn.Linear.Forward: input has %d features, want %d", input.Cols(), l.inFeatures))
	}

	n := input.Rows()
	out := Zeros(n, l.outFeatures)
	w := l.weight.Data()
	b := l.bias.Data()

	parallel.For(n, func(i int) {
		x := input.Row(i)
		y := out.Row(i)
		for j := 0; j < l.outFeatures; j++ {
			wj := w[j*l.inFeatures : (j+1)*l.inFeatures]
			sum := b[j]
			for k, xv := range x {
				sum += xv * wj[k]
			}
			y[j] = sum
		}
	}, l.par)

	if l.training {
		l.input = input
	}
	return out
}

// Backward accumulates dW = gradOut.T @ x and db = sum(gradOut) and
// returns dx = gradOut @ W.
func (l *Linear) Backward(gradOut *Tensor) (*Tensor, error) {
	if !l.training {
		return nil, ErrNoGradTracking
	}
	if l.input == nil {
		return nil, ErrNoForward
	}
	mustBe2D("Linear.Backward", gradOut)
	x := l.input
	n := x.Rows()
	if gradOut.Rows() != n || gradOut.Cols() != l.outFeatures {
		return nil, fmt.Errorf("linear backward: gradient shape %v, want [%d %d]", gradOut.Shape, n, l.outFeatures)
	}

	w := l.weight.Data()
	dW := make([]float32, len(w))
	dB := make([]float32, l.outFeatures)

	// Each output unit owns one row of dW, so rows can be filled concurrently.
	parallel.For(l.outFeatures, func(j int) {
		row := dW[j*l.inFeatures : (j+1)*l.inFeatures]
		for i := 0; i < n; i++ {
			g := gradOut.Data[i*l.outFeatures+j]
			if g == 0 {
				continue
			}
			dB[j] += g
			for k, xv := range x.Row(i) {
				row[k] += g * xv
			}
		}
	}, l.par)

	dx := Zeros(n, l.inFeatures)
	parallel.For(n, func(i int) {
		gi := gradOut.Row(i)
		dxi := dx.Row(i)
		for j, g := range gi {
			wj := w[j*l.inFeatures : (j+1)*l.inFeatures]
			for k := range dxi {
				dxi[k] += g * wj[k]
			}
		}
	}, l.par)

	l.weight.AccumulateGrad(dW)
	l.bias.AccumulateGrad(dB)
	l.input = nil
	return dx, nil
}

// Parameters returns weight and bias.
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// SetTraining switches the layer mode. Leaving training mode drops the cached input.
func (l *Linear) SetTraining(training bool) error {
	l.training = training
	if !training {
		l.input = nil
	}
	return nil
}

// Training reports whether the layer is in training mode.
func (l *Linear) Training() bool { return l.training }

// StateDict returns weight and bias keyed "weight" and "bias".
func (l *Linear) StateDict() map[string]*Tensor {
	return StateDict(l.Parameters())
}

// LoadStateDict restores weight and bias.
func (l *Linear) LoadStateDict(state map[string]*Tensor) error {
	return LoadStateDict(l.Parameters(), state)
}
