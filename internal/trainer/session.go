package trainer

import (
	"github.com/google/uuid"

	"github.com/born-ml/born-train/internal/nn"
)

// Model is the capability the trainer needs from a model: a mode switch.
// Forward passes and parameter access happen inside the user callbacks.
type Model interface {
	SetTraining(training bool) error
}

// Optimizer applies and clears accumulated gradients.
type Optimizer interface {
	Step() error
	ZeroGrad()
}

// GradScaler is implemented by optimizers that can rescale pending gradients.
// Required for ReductionMean.
type GradScaler interface {
	ScaleGrads(factor float32)
}

// GradClipper is implemented by optimizers that can clip pending gradients by
// global norm. Required when Config.GradientClipVal > 0.
type GradClipper interface {
	ClipGradNorm(maxNorm float64) float64
}

// StateDicter exposes named tensors for checkpointing and resume.
// Both the model and the optimizer must implement it when checkpoints are written.
type StateDicter interface {
	StateDict() map[string]*nn.Tensor
	LoadStateDict(state map[string]*nn.Tensor) error
}

// AccumulationState counts micro-batches since the last optimizer step.
type AccumulationState struct {
	Counter   int
	Threshold int
}

// Session is the mutable state of one training run.
//
// Only the Orchestrator mutates a session during Run; callers may read it
// after Run returns.
type Session struct {
	RunID     string
	Model     Model
	Optimizer Optimizer

	Epoch int
	Step  int64
	Mode  Mode
	Accum AccumulationState

	// StopState holds stop-condition progress restored by Resume. The next
	// Run hands it to its stop conditions and clears it.
	StopState map[string]string
}

// NewSession creates a session at epoch 0, step 0 with a fresh run ID.
func NewSession(model Model, optimizer Optimizer) *Session {
	return &Session{
		RunID:     uuid.NewString(),
		Model:     model,
		Optimizer: optimizer,
	}
}

// SessionSnapshot is a copy of the scalar session state.
type SessionSnapshot struct {
	RunID string
	Epoch int
	Step  int64
	Mode  Mode
	Accum AccumulationState
}

// Snapshot returns a copy of the session's scalar state.
func (s *Session) Snapshot() SessionSnapshot {
	return SessionSnapshot{
		RunID: s.RunID,
		Epoch: s.Epoch,
		Step:  s.Step,
		Mode:  s.Mode,
		Accum: s.Accum,
	}
}
