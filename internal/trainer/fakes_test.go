package trainer

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/born-ml/born-train/internal/checkpoint"
	"github.com/born-ml/born-train/internal/nn"
)

var errSwitch = errors.New("mode switch rejected")

type fakeModel struct {
	training bool
	calls    int
	// failOn rejects SetTraining(v) for the given v after applying it,
	// simulating a half-done switch.
	failOn *bool
	state  map[string]*nn.Tensor
}

func newFakeModel() *fakeModel {
	return &fakeModel{training: true, state: map[string]*nn.Tensor{"w": {Shape: []int{1}, Data: []float32{1}}}}
}

func (m *fakeModel) SetTraining(training bool) error {
	m.calls++
	m.training = training
	if m.failOn != nil && *m.failOn == training {
		return errSwitch
	}
	return nil
}

func (m *fakeModel) StateDict() map[string]*nn.Tensor { return m.state }

func (m *fakeModel) LoadStateDict(state map[string]*nn.Tensor) error {
	m.state = state
	return nil
}

type fakeOptimizer struct {
	steps     int
	zeroGrads int
	scales    []float32
	clips     int
	stepErr   error
}

func (o *fakeOptimizer) Step() error {
	if o.stepErr != nil {
		return o.stepErr
	}
	o.steps++
	return nil
}

func (o *fakeOptimizer) ZeroGrad() { o.zeroGrads++ }

func (o *fakeOptimizer) ScaleGrads(f float32) { o.scales = append(o.scales, f) }

func (o *fakeOptimizer) ClipGradNorm(float64) float64 {
	o.clips++
	return 1
}

func (o *fakeOptimizer) StateDict() map[string]*nn.Tensor {
	return map[string]*nn.Tensor{"steps": {Shape: []int{1}, Data: []float32{float32(o.steps)}}}
}

func (o *fakeOptimizer) LoadStateDict(map[string]*nn.Tensor) error { return nil }

// bareOptimizer has no optional capabilities.
type bareOptimizer struct{ steps int }

func (o *bareOptimizer) Step() error {
	o.steps++
	return nil
}

func (o *bareOptimizer) ZeroGrad() {}

// eventRecorder keeps optimizer step and checkpoint events in order.
type eventRecorder struct {
	mu     sync.Mutex
	events []string
	modes  []string
}

func (r *eventRecorder) ModeTransition(from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modes = append(r.modes, from+"->"+to)
}

func (r *eventRecorder) OptimizerStep(forced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if forced {
		r.events = append(r.events, "forced-step")
		return
	}
	r.events = append(r.events, "step")
}

func (r *eventRecorder) ObserveLoss(string, float64) {}

func (r *eventRecorder) EpochCompleted(int) {}

func (r *eventRecorder) CheckpointWritten() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "checkpoint")
}

type memStore struct {
	snaps   []checkpoint.Snapshot
	saveErr error
}

func (m *memStore) Save(_ context.Context, snap checkpoint.Snapshot) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.snaps = append(m.snaps, snap)
	return fmt.Sprintf("mem://%d", len(m.snaps)-1), nil
}

func (m *memStore) Latest(context.Context) (checkpoint.Snapshot, string, error) {
	if len(m.snaps) == 0 {
		return checkpoint.Snapshot{}, "", checkpoint.ErrNoCheckpoint
	}
	return m.snaps[len(m.snaps)-1], fmt.Sprintf("mem://%d", len(m.snaps)-1), nil
}

// failingLoader yields n batches and then an error.
type failingLoader struct {
	n   int
	err error
}

func (l failingLoader) Epoch(int) iter.Seq2[int, error] {
	return func(yield func(int, error) bool) {
		for i := range l.n {
			if !yield(i, nil) {
				return
			}
		}
		yield(0, l.err)
	}
}

func batches(n int) Slice[int] {
	s := make(Slice[int], n)
	for i := range s {
		s[i] = i
	}
	return s
}

func constCallbacks(loss float64) CallbackFuncs[int] {
	step := func(context.Context, int) (StepResult, error) {
		return StepResult{Loss: loss, Size: 1}, nil
	}
	return CallbackFuncs[int]{Train: step, Eval: step}
}
