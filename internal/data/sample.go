package data

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/born-train/internal/nn"
)

// Sample is one regression example.
type Sample struct {
	Features []float32
	Target   float32
}

// Synthetic generates n samples of a noisy linear target over dim uniform features.
// The same seed yields the same data.
func Synthetic(n, dim int, seed uint64) []Sample {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // G404: synthetic data
	w := make([]float32, dim)
	for i := range w {
		w[i] = rng.Float32()*2 - 1
	}

	out := make([]Sample, n)
	for i := range out {
		x := make([]float32, dim)
		var y float32
		for j := range x {
			x[j] = rng.Float32()*2 - 1
			y += w[j] * x[j]
		}
		out[i] = Sample{Features: x, Target: y + float32(rng.NormFloat64()*0.01)}
	}
	return out
}

// Split divides samples into a training and a validation part.
// frac is the share kept for training, in [0, 1].
func Split(samples []Sample, frac float64) (train, val []Sample) {
	frac = max(0, min(1, frac))
	n := int(float64(len(samples)) * frac)
	return samples[:n], samples[n:]
}

// Tensors stacks a batch into a [n, dim] feature tensor and a [n, 1] target tensor.
func Tensors(batch []Sample) (x, y *nn.Tensor, err error) {
	if len(batch) == 0 {
		return nil, nil, fmt.Errorf("empty batch")
	}
	dim := len(batch[0].Features)
	x = nn.Zeros(len(batch), dim)
	y = nn.Zeros(len(batch), 1)
	for i, s := range batch {
		if len(s.Features) != dim {
			return nil, nil, fmt.Errorf("sample %d has %d features, want %d", i, len(s.Features), dim)
		}
		copy(x.Data[i*dim:(i+1)*dim], s.Features)
		y.Data[i] = s.Target
	}
	return x, y, nil
}
