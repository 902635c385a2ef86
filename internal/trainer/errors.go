package trainer

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when the run state machine is asked to
	// move between phases that are not connected.
	ErrInvalidTransition = errors.New("invalid phase transition")

	// ErrInvalidMode is returned when a mode other than Training or Evaluating is requested.
	ErrInvalidMode = errors.New("invalid mode")

	// ErrNoCallback is returned by CallbackFuncs when the callback for a phase is nil.
	ErrNoCallback = errors.New("no callback for phase")
)

// ModeTransitionError reports a mode switch rejected by the model.
// Session.Mode is left at From.
type ModeTransitionError struct {
	From Mode
	To   Mode
	Err  error
}

func (e *ModeTransitionError) Error() string {
	return fmt.Sprintf("mode transition %s -> %s: %v", e.From, e.To, e.Err)
}

func (e *ModeTransitionError) Unwrap() error {
	return e.Err
}

// CallbackError wraps a failure returned by a user step.
type CallbackError struct {
	Phase Mode
	Err   error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("%s step: %v", e.Phase, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports an invalid option, a missing capability, or an
// accumulation threshold changed during a run.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("configuration: %s=%v: %s", e.Field, e.Value, e.Reason)
}

// AccumulationInvariantViolation reports an accumulation counter outside [0, Threshold).
type AccumulationInvariantViolation struct {
	Counter   int
	Threshold int
}

func (e *AccumulationInvariantViolation) Error() string {
	return fmt.Sprintf("accumulation counter %d out of range for threshold %d", e.Counter, e.Threshold)
}

// RunError is returned by Orchestrator.Run when the run ends in Failed.
//
// Phase is where the failure happened, Snapshot the session state at that
// point, and LastCheckpoint the path of the last checkpoint written ("" if none).
type RunError struct {
	Phase          Phase
	Snapshot       SessionSnapshot
	LastCheckpoint string
	Err            error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s failed in %s (epoch %d, step %d): %v",
		e.Snapshot.RunID, e.Phase, e.Snapshot.Epoch, e.Snapshot.Step, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
