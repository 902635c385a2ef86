// Package trainer drives training runs: it switches the model between
// training and evaluation mode around user steps, accumulates gradients over
// micro-batches before each optimizer step, and sequences epochs with
// checkpoints at epoch boundaries.
//
// # Components
//
//   - ModeController sets Session.Mode through the model's SetTraining switch.
//     Transitions are idempotent and all-or-nothing.
//   - GradientAccumulator counts micro-batches and flushes the optimizer every
//     K of them. ForceFlush applies a partial window at epoch end.
//   - StepExecutor establishes the mode for a phase and invokes exactly one
//     user callback.
//   - Orchestrator runs the epoch state machine:
//
//	Idle → Training(e) → Evaluating(e) → Training(e+1) → … → Finished
//
//     Any failure moves the run to Failed and is returned as *RunError.
//
// # Usage
//
//	sess := trainer.NewSession(model, optimizer)
//	orch := trainer.New[Batch](callbacks,
//	    trainer.WithLogger(log),
//	    trainer.WithCheckpointer(store),
//	)
//	final, err := orch.Run(ctx, sess, trainLoader, evalLoader, cfg)
//
// # Concurrency
//
// A Session is driven by a single goroutine and has no internal locking.
// Independent sessions may run concurrently, see RunAll. Cancellation is
// checked between batches only, so an accumulation window is never half
// applied.
package trainer
