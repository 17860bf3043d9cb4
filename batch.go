package dobss

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Job is a single game submitted to SolveAll.
type Job struct {
	// ID identifies the job in logs and outcomes. A random ID is assigned
	// if it is empty.
	ID   string
	Game *Game
}

// Outcome is the result of solving one Job. Exactly one of Equilibrium
// and Err is set.
type Outcome struct {
	ID          string
	Equilibrium *Equilibrium
	Err         error
	Elapsed     time.Duration
}

// SolveAll solves independent games concurrently with at most parallelism
// solves in flight (unbounded if parallelism <= 0). Failures are reported
// per job in the returned outcomes, which are in the same order as jobs.
// The returned error is non-nil only if ctx was cancelled.
func (s *Solver) SolveAll(ctx context.Context, jobs []Job, parallelism int) ([]Outcome, error) {
	outcomes := make([]Outcome, len(jobs))
	group, groupCtx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		group.SetLimit(parallelism)
	}

	for k := range jobs {
		k := k
		id := jobs[k].ID
		if id == "" {
			id = uuid.NewString()
		}
		outcomes[k].ID = id

		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				outcomes[k].Err = err
				return err
			}

			start := time.Now()
			eq, err := s.Solve(groupCtx, jobs[k].Game)
			outcomes[k].Equilibrium = eq
			outcomes[k].Err = err
			outcomes[k].Elapsed = time.Since(start)
			if err != nil {
				glog.Warningf("[%s] solve failed: %v", id, err)
			} else {
				glog.V(1).Infof("[%s] solved in %v: %v", id, outcomes[k].Elapsed, eq)
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, ctx.Err()
}
