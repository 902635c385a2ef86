package trainer

// Config holds the options of a run.
type Config struct {
	// AccumulateGradBatches is K, the number of micro-batches per optimizer step.
	AccumulateGradBatches int

	// MaxEpochs is the epoch budget. Zero runs no epochs.
	MaxEpochs int

	// CheckpointEveryEpoch writes a checkpoint after each epoch's evaluation
	// when a Checkpointer is configured.
	CheckpointEveryEpoch bool

	// GradReduction is fixed for the whole run.
	GradReduction Reduction

	// GradientClipVal clips gradients by global norm before each step. Zero disables.
	GradientClipVal float64

	// LogEveryNSteps logs training progress every N optimizer steps. Zero disables.
	LogEveryNSteps int
}

// DefaultConfig returns K=1, one epoch, checkpoints every epoch, summed gradients.
func DefaultConfig() Config {
	return Config{
		AccumulateGradBatches: 1,
		MaxEpochs:             1,
		CheckpointEveryEpoch:  true,
		GradReduction:         ReductionSum,
		LogEveryNSteps:        50,
	}
}

// Validate checks the options independent of any session.
func (c Config) Validate() error {
	if c.AccumulateGradBatches < 1 {
		return &ConfigurationError{Field: "accumulate_grad_batches", Value: c.AccumulateGradBatches, Reason: "must be >= 1"}
	}
	if c.MaxEpochs < 0 {
		return &ConfigurationError{Field: "max_epochs", Value: c.MaxEpochs, Reason: "must be >= 0"}
	}
	if c.GradReduction != ReductionSum && c.GradReduction != ReductionMean {
		return &ConfigurationError{Field: "grad_reduction", Value: c.GradReduction, Reason: "must be sum or mean"}
	}
	if c.GradientClipVal < 0 {
		return &ConfigurationError{Field: "gradient_clip_val", Value: c.GradientClipVal, Reason: "must be >= 0"}
	}
	if c.LogEveryNSteps < 0 {
		return &ConfigurationError{Field: "log_every_n_steps", Value: c.LogEveryNSteps, Reason: "must be >= 0"}
	}
	return nil
}
