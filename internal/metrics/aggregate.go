package metrics

import (
	"maps"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Summary is the weighted mean of losses and named metrics over an epoch phase.
type Summary struct {
	Loss    float64
	Metrics map[string]float64
	Batches int
	Samples float64
}

// Value returns the loss for key "loss" and the named metric otherwise.
func (s Summary) Value(key string) (float64, bool) {
	if key == "loss" {
		return s.Loss, s.Batches > 0
	}
	v, ok := s.Metrics[key]
	return v, ok
}

// Aggregator accumulates per-batch results and averages them weighted by batch size.
//
// A metric missing from some batches is averaged over the batches that reported it.
type Aggregator struct {
	losses      []float64
	lossWeights []float64
	values      map[string][]float64
	weights     map[string][]float64
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		values:  make(map[string][]float64),
		weights: make(map[string][]float64),
	}
}

// Add records one batch. A non-positive weight counts as 1.
func (a *Aggregator) Add(loss float64, named map[string]float64, weight float64) {
	if weight <= 0 {
		weight = 1
	}
	a.losses = append(a.losses, loss)
	a.lossWeights = append(a.lossWeights, weight)
	for k, v := range named {
		a.values[k] = append(a.values[k], v)
		a.weights[k] = append(a.weights[k], weight)
	}
}

// Len returns the number of batches recorded.
func (a *Aggregator) Len() int {
	return len(a.losses)
}

// Summary computes the weighted means.
func (a *Aggregator) Summary() Summary {
	s := Summary{
		Metrics: make(map[string]float64, len(a.values)),
		Batches: len(a.losses),
	}
	if len(a.losses) == 0 {
		return s
	}
	s.Loss = stat.Mean(a.losses, a.lossWeights)
	for _, w := range a.lossWeights {
		s.Samples += w
	}
	for _, k := range slices.Sorted(maps.Keys(a.values)) {
		s.Metrics[k] = stat.Mean(a.values[k], a.weights[k])
	}
	return s
}
