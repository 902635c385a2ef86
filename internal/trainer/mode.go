package trainer

import (
	"strconv"

	"github.com/go-logr/logr"

	"github.com/born-ml/born-train/internal/telemetry"
)

// Mode is the model's operating mode.
type Mode int

const (
	// ModeUnset is the mode of a session that has not run a step yet.
	ModeUnset Mode = iota
	// Training enables gradient tracking and stochastic layers.
	Training
	// Evaluating disables gradient tracking; layers are deterministic.
	Evaluating
)

func (m Mode) String() string {
	switch m {
	case ModeUnset:
		return "unset"
	case Training:
		return "training"
	case Evaluating:
		return "evaluating"
	default:
		return "Mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// ModeController switches a session's model between modes.
//
// It keeps no state of its own; the current mode lives in Session.Mode.
type ModeController struct {
	Recorder telemetry.Recorder
	Log      logr.Logger
}

// SetMode makes target the active mode of s.
//
// If s is already in target, nothing happens. Otherwise the model's
// SetTraining switch is called and Session.Mode updated. If the model
// rejects the switch, its previous setting is restored on a best-effort
// basis and a *ModeTransitionError is returned with Session.Mode unchanged.
func (c ModeController) SetMode(s *Session, target Mode) error {
	if target != Training && target != Evaluating {
		return &ModeTransitionError{From: s.Mode, To: target, Err: ErrInvalidMode}
	}
	if s.Mode == target {
		return nil
	}

	from := s.Mode
	if err := s.Model.SetTraining(target == Training); err != nil {
		if from != ModeUnset {
			_ = s.Model.SetTraining(from == Training) //nolint:errcheck // best-effort restore
		}
		return &ModeTransitionError{From: from, To: target, Err: err}
	}
	s.Mode = target

	if c.Recorder != nil {
		c.Recorder.ModeTransition(from.String(), target.String())
	}
	c.Log.V(2).Info("mode changed", "from", from, "to", target)
	return nil
}
