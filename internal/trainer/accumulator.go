package trainer

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"

	"github.com/born-ml/born-train/internal/telemetry"
)

// Reduction selects how gradients from a window of micro-batches are combined.
type Reduction int

const (
	// ReductionSum applies the sum of the window's gradients.
	ReductionSum Reduction = iota
	// ReductionMean divides the summed gradients by the number of micro-batches in the window.
	ReductionMean
)

func (r Reduction) String() string {
	switch r {
	case ReductionSum:
		return "sum"
	case ReductionMean:
		return "mean"
	default:
		return fmt.Sprintf("Reduction(%d)", int(r))
	}
}

// ParseReduction parses "sum" or "mean".
func ParseReduction(s string) (Reduction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sum":
		return ReductionSum, nil
	case "mean":
		return ReductionMean, nil
	default:
		return 0, &ConfigurationError{Field: "grad_reduction", Value: s, Reason: "must be sum or mean"}
	}
}

// GradientAccumulator flushes the optimizer every Threshold micro-batches.
//
// A flush reduces the window (mean only), clips by global norm when ClipVal > 0,
// steps the optimizer, zeroes gradients, resets the counter and increments
// Session.Step. The accumulator keeps no per-session state.
type GradientAccumulator struct {
	Reduction Reduction
	ClipVal   float64
	Recorder  telemetry.Recorder
	Log       logr.Logger
}

// Configure fixes the threshold of s to k.
//
// A session without a threshold adopts k. A session that already has a
// different threshold is rejected: K cannot change during a run.
func (a *GradientAccumulator) Configure(s *Session, k int) error {
	if k < 1 {
		return &ConfigurationError{Field: "accumulate_grad_batches", Value: k, Reason: "must be >= 1"}
	}
	if s.Accum.Threshold != 0 && s.Accum.Threshold != k {
		return &ConfigurationError{
			Field:  "accumulate_grad_batches",
			Value:  k,
			Reason: fmt.Sprintf("cannot change during a run (was %d)", s.Accum.Threshold),
		}
	}
	if s.Accum.Counter < 0 || s.Accum.Counter >= k {
		return &AccumulationInvariantViolation{Counter: s.Accum.Counter, Threshold: k}
	}
	if a.Reduction == ReductionMean {
		if _, ok := s.Optimizer.(GradScaler); !ok {
			return &ConfigurationError{Field: "grad_reduction", Value: a.Reduction, Reason: fmt.Sprintf("optimizer %T cannot scale gradients", s.Optimizer)}
		}
	}
	if a.ClipVal < 0 {
		return &ConfigurationError{Field: "gradient_clip_val", Value: a.ClipVal, Reason: "must be >= 0"}
	}
	if a.ClipVal > 0 {
		if _, ok := s.Optimizer.(GradClipper); !ok {
			return &ConfigurationError{Field: "gradient_clip_val", Value: a.ClipVal, Reason: fmt.Sprintf("optimizer %T cannot clip gradients", s.Optimizer)}
		}
	}
	s.Accum.Threshold = k
	return nil
}

// Accept records one completed micro-batch and flushes when the window is full.
// It reports whether an optimizer step was applied.
func (a *GradientAccumulator) Accept(s *Session, _ StepResult) (bool, error) {
	k := s.Accum.Threshold
	if k < 1 {
		return false, &ConfigurationError{Field: "accumulate_grad_batches", Value: k, Reason: "must be >= 1"}
	}
	if s.Accum.Counter < 0 || s.Accum.Counter >= k {
		return false, &AccumulationInvariantViolation{Counter: s.Accum.Counter, Threshold: k}
	}

	s.Accum.Counter++
	if s.Accum.Counter < k {
		return false, nil
	}
	if err := a.flush(s, false); err != nil {
		return false, err
	}
	return true, nil
}

// ForceFlush applies a partial window. With an empty window it does nothing
// and reports false.
func (a *GradientAccumulator) ForceFlush(s *Session) (bool, error) {
	if s.Accum.Counter == 0 {
		return false, nil
	}
	if s.Accum.Counter < 0 || s.Accum.Counter > s.Accum.Threshold {
		return false, &AccumulationInvariantViolation{Counter: s.Accum.Counter, Threshold: s.Accum.Threshold}
	}
	if err := a.flush(s, true); err != nil {
		return false, err
	}
	return true, nil
}

// flush applies the window. If the update cannot be applied, the window is
// dropped: gradients are zeroed, the counter returns to 0 and Step is
// unchanged, so the session is left fully unflushed.
func (a *GradientAccumulator) flush(s *Session, forced bool) error {
	n := s.Accum.Counter
	if err := a.apply(s, n); err != nil {
		s.Optimizer.ZeroGrad()
		s.Accum.Counter = 0
		a.Log.Info("accumulation window dropped", "step", s.Step, "microBatches", n, "error", err.Error())
		return err
	}
	s.Optimizer.ZeroGrad()
	s.Accum.Counter = 0
	s.Step++

	if a.Recorder != nil {
		a.Recorder.OptimizerStep(forced)
	}
	a.Log.V(1).Info("optimizer step", "step", s.Step, "microBatches", n, "forced", forced)
	return nil
}

func (a *GradientAccumulator) apply(s *Session, n int) error {
	if a.Reduction == ReductionMean && n > 1 {
		scaler, ok := s.Optimizer.(GradScaler)
		if !ok {
			return &ConfigurationError{Field: "grad_reduction", Value: a.Reduction, Reason: fmt.Sprintf("optimizer %T cannot scale gradients", s.Optimizer)}
		}
		scaler.ScaleGrads(1 / float32(n))
	}
	if a.ClipVal > 0 {
		clipper, ok := s.Optimizer.(GradClipper)
		if !ok {
			return &ConfigurationError{Field: "gradient_clip_val", Value: a.ClipVal, Reason: fmt.Sprintf("optimizer %T cannot clip gradients", s.Optimizer)}
		}
		norm := clipper.ClipGradNorm(a.ClipVal)
		a.Log.V(2).Info("gradients clipped", "norm", norm, "max", a.ClipVal)
	}
	if err := s.Optimizer.Step(); err != nil {
		return fmt.Errorf("optimizer step: %w", err)
	}
	return nil
}
