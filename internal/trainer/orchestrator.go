package trainer

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/go-logr/logr"

	"github.com/born-ml/born-train/internal/checkpoint"
	"github.com/born-ml/born-train/internal/metrics"
	"github.com/born-ml/born-train/internal/telemetry"
)

// Phase is the state of a run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseTraining
	PhaseEvaluating
	PhaseFinished
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseTraining:
		return "training"
	case PhaseEvaluating:
		return "evaluating"
	case PhaseFinished:
		return "finished"
	case PhaseFailed:
		return "failed"
	default:
		return "Phase(" + strconv.Itoa(int(p)) + ")"
	}
}

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool {
	return p == PhaseFinished || p == PhaseFailed
}

var phaseTransitions = map[Phase][]Phase{
	PhaseIdle:       {PhaseTraining, PhaseFinished, PhaseFailed},
	PhaseTraining:   {PhaseEvaluating, PhaseFailed},
	PhaseEvaluating: {PhaseTraining, PhaseFinished, PhaseFailed},
}

// Checkpointer persists snapshots. checkpoint.FileStore implements it.
type Checkpointer interface {
	Save(ctx context.Context, snap checkpoint.Snapshot) (string, error)
	Latest(ctx context.Context) (checkpoint.Snapshot, string, error)
}

// EpochSummary describes a completed epoch.
type EpochSummary struct {
	Epoch      int
	Step       int64
	Train      metrics.Summary
	Eval       metrics.Summary
	Checkpoint string
}

// Value looks up a monitored value: "train_loss", "val_loss", "train_<metric>",
// "val_<metric>", or a bare metric name (evaluation first, then training).
func (s EpochSummary) Value(key string) (float64, bool) {
	switch key {
	case "train_loss":
		return s.Train.Value("loss")
	case "val_loss":
		return s.Eval.Value("loss")
	}
	if name, ok := strings.CutPrefix(key, "val_"); ok && name != "" {
		return s.Eval.Value(name)
	}
	if name, ok := strings.CutPrefix(key, "train_"); ok && name != "" {
		return s.Train.Value(name)
	}
	if v, ok := s.Eval.Value(key); ok {
		return v, true
	}
	return s.Train.Value(key)
}

// EpochHook is called after each epoch, after the checkpoint. An error fails the run.
type EpochHook func(ctx context.Context, summary EpochSummary) error

// FinalState describes a run that reached Finished.
type FinalState struct {
	Phase          Phase
	Epoch          int
	Step           int64
	StoppedEarly   bool
	StopReason     string
	LastCheckpoint string
	Train          metrics.Summary
	Eval           metrics.Summary
}

// Option configures an Orchestrator.
type Option func(*options)

type options struct {
	log      logr.Logger
	recorder telemetry.Recorder
	store    Checkpointer
	stops    []StopCondition
	hooks    []EpochHook
	metadata map[string]string
}

// WithLogger sets the logger. The default discards.
func WithLogger(l logr.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithRecorder sets the telemetry recorder.
func WithRecorder(r telemetry.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithCheckpointer enables checkpoints at epoch boundaries.
func WithCheckpointer(c Checkpointer) Option {
	return func(o *options) { o.store = c }
}

// WithStopCondition adds a condition checked after every epoch.
func WithStopCondition(c StopCondition) Option {
	return func(o *options) { o.stops = append(o.stops, c) }
}

// OnEpochEnd adds a hook called after every epoch.
func OnEpochEnd(h EpochHook) Option {
	return func(o *options) { o.hooks = append(o.hooks, h) }
}

// WithMetadata adds string metadata to every checkpoint.
func WithMetadata(md map[string]string) Option {
	return func(o *options) {
		if o.metadata == nil {
			o.metadata = make(map[string]string, len(md))
		}
		maps.Copy(o.metadata, md)
	}
}

// Orchestrator sequences epochs and batches for sessions.
//
// Stop conditions may be stateful; use one Orchestrator per concurrent run.
type Orchestrator[B any] struct {
	callbacks Callbacks[B]
	opts      options
}

// New creates an Orchestrator around the user callbacks.
func New[B any](callbacks Callbacks[B], opts ...Option) *Orchestrator[B] {
	o := options{
		log:      logr.Discard(),
		recorder: telemetry.NopRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Orchestrator[B]{callbacks: callbacks, opts: o}
}

// run is the per-call state of Orchestrator.Run.
type run[B any] struct {
	*Orchestrator[B]
	s     *Session
	cfg   Config
	phase Phase
	exec  StepExecutor[B]
	acc   GradientAccumulator

	lastCheckpoint string
}

// Run trains s from s.Epoch until cfg.MaxEpochs or a stop condition.
//
// Configuration is checked before any batch is consumed. Each epoch trains on
// train, force-flushes a partial accumulation window, evaluates on eval (may
// be nil), then writes a checkpoint if enabled. Any failure ends the run in
// PhaseFailed and is returned as *RunError.
func (o *Orchestrator[B]) Run(ctx context.Context, s *Session, train, eval Loader[B], cfg Config) (FinalState, error) {
	if s == nil {
		return FinalState{Phase: PhaseFailed}, &RunError{Phase: PhaseIdle, Err: &ConfigurationError{Field: "session", Reason: "is nil"}}
	}
	r := &run[B]{
		Orchestrator: o,
		s:            s,
		cfg:          cfg,
		phase:        PhaseIdle,
	}
	modes := ModeController{Recorder: o.opts.recorder, Log: o.opts.log}
	r.exec = StepExecutor[B]{Modes: modes, Callbacks: o.callbacks}
	r.acc = GradientAccumulator{
		Reduction: cfg.GradReduction,
		ClipVal:   cfg.GradientClipVal,
		Recorder:  o.opts.recorder,
		Log:       o.opts.log,
	}

	if err := r.validate(train); err != nil {
		return r.fail(err)
	}
	if err := r.prepareStops(); err != nil {
		return r.fail(err)
	}

	log := o.opts.log.WithValues("run", s.RunID)
	log.Info("run started", "startEpoch", s.Epoch, "maxEpochs", cfg.MaxEpochs,
		"accumulateGradBatches", cfg.AccumulateGradBatches, "gradReduction", cfg.GradReduction)

	final := FinalState{}
	for s.Epoch < cfg.MaxEpochs {
		epoch := s.Epoch
		elog := log.WithValues("epoch", epoch)

		if err := r.transition(PhaseTraining); err != nil {
			return r.fail(err)
		}
		trainSum, err := r.trainEpoch(ctx, train, epoch, elog)
		if err != nil {
			return r.fail(err)
		}

		if err := r.transition(PhaseEvaluating); err != nil {
			return r.fail(err)
		}
		evalSum, err := r.evalEpoch(ctx, eval, epoch)
		if err != nil {
			return r.fail(err)
		}

		// Stop conditions observe the epoch before the checkpoint so their
		// saved state includes it.
		summary := EpochSummary{Epoch: epoch, Step: s.Step, Train: trainSum, Eval: evalSum}
		stop, reason, err := r.shouldStop(summary)
		if err != nil {
			return r.fail(err)
		}

		path, err := r.checkpoint(ctx, epoch, trainSum, evalSum, elog)
		if err != nil {
			return r.fail(err)
		}
		summary.Checkpoint = path

		s.Epoch = epoch + 1
		o.opts.recorder.EpochCompleted(epoch)
		elog.Info("epoch completed", "step", s.Step, "trainLoss", trainSum.Loss,
			"valLoss", evalSum.Loss, "valBatches", evalSum.Batches)
		final.Train, final.Eval = trainSum, evalSum

		for _, h := range o.opts.hooks {
			if err := h(ctx, summary); err != nil {
				return r.fail(fmt.Errorf("epoch hook: %w", err))
			}
		}
		if stop {
			final.StoppedEarly, final.StopReason = true, reason
			log.Info("stopping early", "epoch", epoch, "reason", reason)
			break
		}
	}

	if err := r.transition(PhaseFinished); err != nil {
		return r.fail(err)
	}
	final.Phase = r.phase
	final.Epoch = s.Epoch
	final.Step = s.Step
	final.LastCheckpoint = r.lastCheckpoint
	log.Info("run finished", "epochs", s.Epoch, "steps", s.Step, "stoppedEarly", final.StoppedEarly)
	return final, nil
}

func (r *run[B]) validate(train Loader[B]) error {
	if err := r.cfg.Validate(); err != nil {
		return err
	}
	if r.s.Model == nil {
		return &ConfigurationError{Field: "session.model", Reason: "is nil"}
	}
	if r.s.Optimizer == nil {
		return &ConfigurationError{Field: "session.optimizer", Reason: "is nil"}
	}
	if r.callbacks == nil {
		return &ConfigurationError{Field: "callbacks", Reason: "is nil"}
	}
	if train == nil && r.s.Epoch < r.cfg.MaxEpochs {
		return &ConfigurationError{Field: "train", Reason: "loader is nil"}
	}
	if r.s.Epoch < 0 || r.s.Step < 0 {
		return &ConfigurationError{Field: "session", Reason: fmt.Sprintf("negative progress (epoch %d, step %d)", r.s.Epoch, r.s.Step)}
	}
	if r.cfg.CheckpointEveryEpoch && r.opts.store != nil {
		if _, ok := r.s.Model.(StateDicter); !ok {
			return &ConfigurationError{Field: "checkpoint_every_epoch", Reason: fmt.Sprintf("model %T has no state dict", r.s.Model)}
		}
		if _, ok := r.s.Optimizer.(StateDicter); !ok {
			return &ConfigurationError{Field: "checkpoint_every_epoch", Reason: fmt.Sprintf("optimizer %T has no state dict", r.s.Optimizer)}
		}
	}
	for _, c := range r.opts.stops {
		if v, ok := c.(interface{ Validate() error }); ok {
			if err := v.Validate(); err != nil {
				return err
			}
		}
	}
	return r.acc.Configure(r.s, r.cfg.AccumulateGradBatches)
}

func (r *run[B]) transition(to Phase) error {
	if !slices.Contains(phaseTransitions[r.phase], to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.phase, to)
	}
	r.phase = to
	return nil
}

func (r *run[B]) fail(err error) (FinalState, error) {
	at := r.phase
	r.phase = PhaseFailed
	r.opts.log.Error(err, "run failed", "run", r.s.RunID, "phase", at, "epoch", r.s.Epoch, "step", r.s.Step)

	final := FinalState{
		Phase:          PhaseFailed,
		Epoch:          r.s.Epoch,
		Step:           r.s.Step,
		LastCheckpoint: r.lastCheckpoint,
	}
	return final, &RunError{
		Phase:          at,
		Snapshot:       r.s.Snapshot(),
		LastCheckpoint: r.lastCheckpoint,
		Err:            err,
	}
}

func (r *run[B]) trainEpoch(ctx context.Context, train Loader[B], epoch int, log logr.Logger) (metrics.Summary, error) {
	agg := metrics.NewAggregator()
	batch := 0
	for b, err := range train.Epoch(epoch) {
		if err != nil {
			return metrics.Summary{}, fmt.Errorf("load training batch %d: %w", batch, err)
		}
		if err := ctx.Err(); err != nil {
			return metrics.Summary{}, err
		}

		res, err := r.exec.Run(ctx, r.s, b, Training)
		if err != nil {
			return metrics.Summary{}, fmt.Errorf("training batch %d: %w", batch, err)
		}
		flushed, err := r.acc.Accept(r.s, res)
		if err != nil {
			return metrics.Summary{}, err
		}
		agg.Add(res.Loss, res.Metrics, float64(res.Size))
		r.opts.recorder.ObserveLoss("train", res.Loss)
		log.V(2).Info("train batch", "batch", batch, "loss", res.Loss, "flushed", flushed)

		if flushed && r.cfg.LogEveryNSteps > 0 && r.s.Step%int64(r.cfg.LogEveryNSteps) == 0 {
			log.Info("training", "step", r.s.Step, "loss", res.Loss)
		}
		batch++
	}

	if _, err := r.acc.ForceFlush(r.s); err != nil {
		return metrics.Summary{}, fmt.Errorf("epoch-end flush: %w", err)
	}
	return agg.Summary(), nil
}

func (r *run[B]) evalEpoch(ctx context.Context, eval Loader[B], epoch int) (metrics.Summary, error) {
	agg := metrics.NewAggregator()
	if eval == nil {
		return agg.Summary(), nil
	}
	batch := 0
	for b, err := range eval.Epoch(epoch) {
		if err != nil {
			return metrics.Summary{}, fmt.Errorf("load evaluation batch %d: %w", batch, err)
		}
		if err := ctx.Err(); err != nil {
			return metrics.Summary{}, err
		}
		res, err := r.exec.Run(ctx, r.s, b, Evaluating)
		if err != nil {
			return metrics.Summary{}, fmt.Errorf("evaluation batch %d: %w", batch, err)
		}
		agg.Add(res.Loss, res.Metrics, float64(res.Size))
		batch++
	}
	sum := agg.Summary()
	if sum.Batches > 0 {
		r.opts.recorder.ObserveLoss("val", sum.Loss)
	}
	return sum, nil
}

// checkpoint runs after the epoch-end flush, so the captured state never
// holds a partial accumulation window.
func (r *run[B]) checkpoint(ctx context.Context, epoch int, train, eval metrics.Summary, log logr.Logger) (string, error) {
	if !r.cfg.CheckpointEveryEpoch || r.opts.store == nil {
		return "", nil
	}
	if r.s.Accum.Counter != 0 {
		return "", &AccumulationInvariantViolation{Counter: r.s.Accum.Counter, Threshold: r.s.Accum.Threshold}
	}

	loss := train.Loss
	if eval.Batches > 0 {
		loss = eval.Loss
	}
	md := map[string]string{
		"accumulate_grad_batches": strconv.Itoa(r.s.Accum.Threshold),
		"grad_reduction":          r.cfg.GradReduction.String(),
	}
	for i, c := range r.opts.stops {
		if st, ok := c.(stopStater); ok {
			for k, v := range st.StopState() {
				md[stopStateKey(i, k)] = v
			}
		}
	}
	maps.Copy(md, r.opts.metadata)
	snap := checkpoint.Snapshot{
		RunID:     r.s.RunID,
		Epoch:     epoch,
		Step:      r.s.Step,
		Loss:      loss,
		Model:     r.s.Model.(StateDicter).StateDict(),
		Optimizer: r.s.Optimizer.(StateDicter).StateDict(),
		Metadata:  md,
	}
	path, err := r.opts.store.Save(ctx, snap)
	if err != nil {
		return "", fmt.Errorf("checkpoint: %w", err)
	}
	r.lastCheckpoint = path
	r.opts.recorder.CheckpointWritten()
	log.V(1).Info("checkpoint written", "path", path, "step", r.s.Step)
	return path, nil
}

// prepareStops restores stop conditions from the session's resumed state and
// resets the rest.
func (r *run[B]) prepareStops() error {
	restored := r.s.StopState
	r.s.StopState = nil
	for i, c := range r.opts.stops {
		if st, ok := c.(stopStater); ok && restored != nil {
			applied, err := st.RestoreStopState(stopStateFor(restored, i))
			if err != nil {
				return &ConfigurationError{Field: "stop_state", Reason: err.Error()}
			}
			if applied {
				continue
			}
		}
		if rs, ok := c.(resetter); ok {
			rs.Reset()
		}
	}
	return nil
}

func (r *run[B]) shouldStop(summary EpochSummary) (bool, string, error) {
	for _, c := range r.opts.stops {
		stop, err := c.ShouldStop(summary)
		if err != nil {
			return false, "", err
		}
		if stop {
			if str, ok := c.(fmt.Stringer); ok {
				return true, str.String(), nil
			}
			return true, fmt.Sprintf("%T", c), nil
		}
	}
	return false, "", nil
}
