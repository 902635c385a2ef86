package nn

import (
	"math"
	"math/rand/v2"
)

// Xavier (Glorot) initialization for weights.
//
// Draws from U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out))).
func Xavier(fanIn, fanOut int, rng *rand.Rand, shape ...int) *Tensor {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	t := Zeros(shape...)
	for i := range t.Data {
		//nolint:gosec // Weight initialization is not security-critical
		t.Data[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}
	return t
}
