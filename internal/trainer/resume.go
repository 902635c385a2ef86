package trainer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/born-ml/born-train/internal/checkpoint"
)

// Resume restores s from the newest checkpoint in store and returns its path.
//
// Model and optimizer state are loaded, Step is restored, and Epoch is set to
// the epoch after the checkpointed one. The accumulation threshold recorded in
// the checkpoint is kept on the session, so a run resumed with a different K
// fails with *ConfigurationError. Stop-condition progress, such as the best
// value and wait count of EarlyStopping, is kept in s.StopState and restored
// by the next Run. With no checkpoint, s is unchanged and the path is empty.
func Resume(ctx context.Context, s *Session, store Checkpointer) (string, error) {
	snap, path, err := store.Latest(ctx)
	if errors.Is(err, checkpoint.ErrNoCheckpoint) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resume: %w", err)
	}

	model, ok := s.Model.(StateDicter)
	if !ok {
		return "", &ConfigurationError{Field: "session.model", Reason: fmt.Sprintf("%T has no state dict", s.Model)}
	}
	opt, ok := s.Optimizer.(StateDicter)
	if !ok {
		return "", &ConfigurationError{Field: "session.optimizer", Reason: fmt.Sprintf("%T has no state dict", s.Optimizer)}
	}

	threshold := 0
	if v, ok := snap.Metadata["accumulate_grad_batches"]; ok {
		threshold, err = strconv.Atoi(v)
		if err != nil || threshold < 1 {
			return "", fmt.Errorf("resume %s: invalid accumulate_grad_batches %q", path, v)
		}
	}

	if err := model.LoadStateDict(snap.Model); err != nil {
		return "", fmt.Errorf("resume %s: model: %w", path, err)
	}
	if err := opt.LoadStateDict(snap.Optimizer); err != nil {
		return "", fmt.Errorf("resume %s: optimizer: %w", path, err)
	}

	if snap.RunID != "" {
		s.RunID = snap.RunID
	}
	s.Epoch = snap.Epoch + 1
	s.Step = snap.Step
	s.Accum = AccumulationState{Threshold: threshold}
	s.StopState = nil
	for k, v := range snap.Metadata {
		if strings.HasPrefix(k, stopStatePrefix) {
			if s.StopState == nil {
				s.StopState = make(map[string]string)
			}
			s.StopState[k] = v
		}
	}
	return path, nil
}
