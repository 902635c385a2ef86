package trainer

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Job is one independent run for RunAll.
type Job[B any] struct {
	Orchestrator *Orchestrator[B]
	Session      *Session
	Train        Loader[B]
	Eval         Loader[B]
	Config       Config
}

// RunAll runs independent jobs concurrently, one goroutine per job.
//
// Each job needs its own Session and Orchestrator. The first failure cancels
// the context of the others; states holds each job's result in order.
func RunAll[B any](ctx context.Context, jobs ...Job[B]) ([]FinalState, error) {
	states := make([]FinalState, len(jobs))
	seen := make(map[*Session]int, len(jobs))
	for i, j := range jobs {
		if j.Orchestrator == nil {
			return nil, &ConfigurationError{Field: fmt.Sprintf("jobs[%d].orchestrator", i), Reason: "is nil"}
		}
		if prev, ok := seen[j.Session]; ok && j.Session != nil {
			return nil, &ConfigurationError{Field: fmt.Sprintf("jobs[%d].session", i), Reason: fmt.Sprintf("shared with jobs[%d]", prev)}
		}
		seen[j.Session] = i
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, j := range jobs {
		g.Go(func() error {
			final, err := j.Orchestrator.Run(gctx, j.Session, j.Train, j.Eval, j.Config)
			states[i] = final
			if err != nil {
				return fmt.Errorf("job %d: %w", i, err)
			}
			return nil
		})
	}
	err := g.Wait()
	return states, err
}
