// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package trainer

import (
	"context"

	"github.com/born-ml/born-train/internal/trainer"
)

// Session and modes

// Session is the mutable state of one training run.
type Session = trainer.Session

// SessionSnapshot is a copy of the scalar session state.
type SessionSnapshot = trainer.SessionSnapshot

// AccumulationState counts micro-batches since the last optimizer step.
type AccumulationState = trainer.AccumulationState

// NewSession creates a session at epoch 0, step 0 with a fresh run ID.
func NewSession(model Model, optimizer Optimizer) *Session {
	return trainer.NewSession(model, optimizer)
}

// Model is the mode-switch capability the trainer drives.
type Model = trainer.Model

// Optimizer applies and clears accumulated gradients.
type Optimizer = trainer.Optimizer

// StateDicter exposes named tensors for checkpointing and resume.
type StateDicter = trainer.StateDicter

// Mode is the model's operating mode.
type Mode = trainer.Mode

// Modes.
const (
	ModeUnset  = trainer.ModeUnset
	Training   = trainer.Training
	Evaluating = trainer.Evaluating
)

// Components

// ModeController switches a session's model between modes.
type ModeController = trainer.ModeController

// GradientAccumulator flushes the optimizer every K micro-batches.
type GradientAccumulator = trainer.GradientAccumulator

// StepExecutor runs one user step under the mode of its phase.
type StepExecutor[B any] = trainer.StepExecutor[B]

// Orchestrator sequences epochs and batches.
type Orchestrator[B any] = trainer.Orchestrator[B]

// New creates an Orchestrator around the user callbacks.
func New[B any](callbacks Callbacks[B], opts ...Option) *Orchestrator[B] {
	return trainer.New(callbacks, opts...)
}

// Callbacks, loaders and results

// Callbacks are the user train and eval steps.
type Callbacks[B any] = trainer.Callbacks[B]

// CallbackFuncs adapts plain functions to Callbacks.
type CallbackFuncs[B any] = trainer.CallbackFuncs[B]

// StepResult is what a user step returns for one batch.
type StepResult = trainer.StepResult

// Loader yields the batches of one epoch.
type Loader[B any] = trainer.Loader[B]

// Slice is a Loader that yields the same batches every epoch.
type Slice[B any] = trainer.Slice[B]

// EpochSummary describes a completed epoch.
type EpochSummary = trainer.EpochSummary

// FinalState describes a finished run.
type FinalState = trainer.FinalState

// Phase is the state of a run.
type Phase = trainer.Phase

// Phases.
const (
	PhaseIdle       = trainer.PhaseIdle
	PhaseTraining   = trainer.PhaseTraining
	PhaseEvaluating = trainer.PhaseEvaluating
	PhaseFinished   = trainer.PhaseFinished
	PhaseFailed     = trainer.PhaseFailed
)

// Configuration

// Config holds the options of a run.
type Config = trainer.Config

// DefaultConfig returns K=1, one epoch, checkpoints every epoch, summed gradients.
func DefaultConfig() Config {
	return trainer.DefaultConfig()
}

// Reduction selects sum or mean over an accumulation window.
type Reduction = trainer.Reduction

// Reductions.
const (
	ReductionSum  = trainer.ReductionSum
	ReductionMean = trainer.ReductionMean
)

// Option configures an Orchestrator.
type Option = trainer.Option

// Checkpointer persists snapshots.
type Checkpointer = trainer.Checkpointer

// StopCondition ends a run early after an epoch.
type StopCondition = trainer.StopCondition

// EarlyStopping stops when a monitored value stops improving.
type EarlyStopping = trainer.EarlyStopping

// NewEarlyStopping returns a condition monitoring val_loss in min mode.
func NewEarlyStopping(patience int) *EarlyStopping {
	return trainer.NewEarlyStopping(patience)
}

// Options.
var (
	WithLogger        = trainer.WithLogger
	WithRecorder      = trainer.WithRecorder
	WithCheckpointer  = trainer.WithCheckpointer
	WithStopCondition = trainer.WithStopCondition
	WithMetadata      = trainer.WithMetadata
	OnEpochEnd        = trainer.OnEpochEnd
)

// Resume restores s from the newest checkpoint in store.
func Resume(ctx context.Context, s *Session, store Checkpointer) (string, error) {
	return trainer.Resume(ctx, s, store)
}

// Job is one independent run for RunAll.
type Job[B any] = trainer.Job[B]

// RunAll runs independent jobs concurrently.
func RunAll[B any](ctx context.Context, jobs ...Job[B]) ([]FinalState, error) {
	return trainer.RunAll(ctx, jobs...)
}

// Errors

// ModeTransitionError reports a mode switch rejected by the model.
type ModeTransitionError = trainer.ModeTransitionError

// CallbackError wraps a failure returned by a user step.
type CallbackError = trainer.CallbackError

// ConfigurationError reports an invalid or changed option.
type ConfigurationError = trainer.ConfigurationError

// AccumulationInvariantViolation reports a counter outside [0, K).
type AccumulationInvariantViolation = trainer.AccumulationInvariantViolation

// RunError is returned when a run ends in Failed.
type RunError = trainer.RunError

// Sentinel errors.
var (
	ErrInvalidTransition = trainer.ErrInvalidTransition
	ErrInvalidMode       = trainer.ErrInvalidMode
	ErrNoCallback        = trainer.ErrNoCallback
)
