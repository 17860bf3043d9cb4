package dobss

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/timpalpant/dobss/milp"
)

// Solver computes Bayesian Stackelberg equilibria with the DOBSS MILP.
// It holds no per-solve state and may be used concurrently.
type Solver struct {
	engine    milp.Solver
	bigM      float64
	timeLimit time.Duration
	cache     *lru.Cache
}

// Option configures a Solver.
type Option func(*Solver)

// WithBigM fixes the big-M constant instead of deriving it from the
// payoffs of each game.
func WithBigM(m float64) Option {
	return func(s *Solver) { s.bigM = m }
}

// WithTimeLimit bounds the time spent in the MILP engine per solve.
// Exceeding it fails with a retryable *SolverError.
func WithTimeLimit(d time.Duration) Option {
	return func(s *Solver) { s.timeLimit = d }
}

// NewSolver returns a Solver that delegates to the given MILP engine.
func NewSolver(engine milp.Solver, opts ...Option) *Solver {
	s := &Solver{engine: engine}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Solve builds the DOBSS MILP for g, solves it, and extracts the
// equilibrium.
func (s *Solver) Solve(ctx context.Context, g *Game) (*Equilibrium, error) {
	var key string
	if s.cache != nil {
		if err := checkGame(g); err != nil {
			return nil, err
		}
		bigM := s.bigM
		if bigM <= 0 {
			var err error
			if bigM, err = DefaultBigM(g); err != nil {
				return nil, err
			}
		}

		key = cacheKey(g, bigM)
		if eq, ok := s.cached(key); ok {
			glog.V(1).Infof("Reusing cached equilibrium: %v", eq)
			return eq, nil
		}
	}

	f, err := Build(g, s.bigM)
	if err != nil {
		return nil, err
	}

	if s.timeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeLimit)
		defer cancel()
	}

	start := time.Now()
	sol, err := s.engine.Solve(ctx, f.Problem)
	if err != nil {
		return nil, errors.Wrap(err, "MILP engine failed")
	}
	glog.V(1).Infof("MILP solver finished with status %v after %d nodes (took %v)",
		sol.Status, sol.Nodes, time.Since(start))

	switch sol.Status {
	case milp.Optimal:
	case milp.TimedOut:
		return nil, errors.WithStack(&SolverError{Status: sol.Status})
	default:
		// Every validated game admits a feasible, bounded assignment.
		return nil, errors.Wrapf(&SolverError{Status: sol.Status},
			"DOBSS formulation reported %v for a validated game", sol.Status)
	}

	eq, err := f.Extract(sol)
	if err != nil {
		return nil, err
	}

	s.store(key, eq)
	return eq, nil
}
