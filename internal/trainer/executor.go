package trainer

import (
	"context"
	"iter"
)

// StepResult is what a user step returns for one batch.
//
// Size is the number of samples in the batch and weights the epoch averages;
// zero counts as one.
type StepResult struct {
	Loss    float64
	Metrics map[string]float64
	Size    int
}

// Callbacks are the user steps. TrainStep runs forward and backward for one
// micro-batch and leaves the gradients on the parameters; the accumulator
// decides when they are applied. EvalStep runs forward only.
//
// Callbacks must not switch the model mode or touch the optimizer.
type Callbacks[B any] interface {
	TrainStep(ctx context.Context, batch B) (StepResult, error)
	EvalStep(ctx context.Context, batch B) (StepResult, error)
}

// CallbackFuncs adapts plain functions to Callbacks.
type CallbackFuncs[B any] struct {
	Train func(ctx context.Context, batch B) (StepResult, error)
	Eval  func(ctx context.Context, batch B) (StepResult, error)
}

func (f CallbackFuncs[B]) TrainStep(ctx context.Context, batch B) (StepResult, error) {
	if f.Train == nil {
		return StepResult{}, ErrNoCallback
	}
	return f.Train(ctx, batch)
}

func (f CallbackFuncs[B]) EvalStep(ctx context.Context, batch B) (StepResult, error) {
	if f.Eval == nil {
		return StepResult{}, ErrNoCallback
	}
	return f.Eval(ctx, batch)
}

// Loader yields the batches of one epoch. A non-nil error ends the run.
type Loader[B any] interface {
	Epoch(epoch int) iter.Seq2[B, error]
}

// Slice is a Loader that yields the same batches every epoch.
type Slice[B any] []B

func (s Slice[B]) Epoch(int) iter.Seq2[B, error] {
	return func(yield func(B, error) bool) {
		for _, b := range s {
			if !yield(b, nil) {
				return
			}
		}
	}
}

// StepExecutor runs one user step under the mode of its phase.
type StepExecutor[B any] struct {
	Modes     ModeController
	Callbacks Callbacks[B]
}

// Run sets s to phase and invokes the matching callback once.
//
// A mode failure is returned as *ModeTransitionError without calling the
// callback. A callback failure is returned as *CallbackError; the session
// stays in phase.
func (e *StepExecutor[B]) Run(ctx context.Context, s *Session, batch B, phase Mode) (StepResult, error) {
	if err := e.Modes.SetMode(s, phase); err != nil {
		return StepResult{}, err
	}

	var (
		res StepResult
		err error
	)
	switch phase {
	case Training:
		res, err = e.Callbacks.TrainStep(ctx, batch)
	case Evaluating:
		res, err = e.Callbacks.EvalStep(ctx, batch)
	}
	if err != nil {
		return StepResult{}, &CallbackError{Phase: phase, Err: err}
	}
	return res, nil
}
