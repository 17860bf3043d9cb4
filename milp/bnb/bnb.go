// Package bnb implements milp.Solver with depth-first branch-and-bound
// over the binary variables. Each node is an LP relaxation solved with
// gonum's simplex implementation.
package bnb

import (
	"context"
	"math"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/timpalpant/dobss/milp"
)

// Options control the search.
type Options struct {
	// Tolerance passed to the simplex method.
	Tolerance float64
	// IntegralityTolerance is how far a binary variable may be from 0 or 1
	// and still be considered integral.
	IntegralityTolerance float64
	// MaxNodes bounds the number of LP relaxations solved. Zero means
	// no limit. Exceeding it is reported as milp.TimedOut.
	MaxNodes int
	// TimeLimit bounds the wall-clock time of a single Solve. Zero means
	// no limit beyond the caller's context.
	TimeLimit time.Duration
}

// DefaultOptions are suitable for the small, well-scaled problems
// produced by the DOBSS formulation.
var DefaultOptions = Options{
	Tolerance:            1e-10,
	IntegralityTolerance: 1e-6,
}

// Solver is a branch-and-bound MILP engine.
type Solver struct {
	opts Options
}

// Verify that we implement the interface.
var _ milp.Solver = &Solver{}

// New returns a Solver with the given options. Zero tolerances are
// replaced by their defaults.
func New(opts Options) *Solver {
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultOptions.Tolerance
	}
	if opts.IntegralityTolerance <= 0 {
		opts.IntegralityTolerance = DefaultOptions.IntegralityTolerance
	}
	return &Solver{opts: opts}
}

// node is a subproblem: the original problem with tightened bounds.
type node struct {
	lower, upper []float64
	depth        int
}

// Solve implements milp.Solver.
func (s *Solver) Solve(ctx context.Context, p *milp.Problem) (*milp.Solution, error) {
	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid problem")
	}

	if s.opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.TimeLimit)
		defer cancel()
	}

	root := node{
		lower: make([]float64, len(p.Variables)),
		upper: make([]float64, len(p.Variables)),
	}
	for i, v := range p.Variables {
		root.lower[i], root.upper[i] = v.Bounds()
	}

	start := time.Now()
	var incumbent []float64
	incumbentValue := math.Inf(-1)
	nodes := 0
	stack := []node{root}
	for len(stack) > 0 {
		if ctx.Err() != nil || (s.opts.MaxNodes > 0 && nodes >= s.opts.MaxNodes) {
			glog.V(1).Infof("[bnb] %s: stopped after %d nodes (%v), incumbent %v",
				p.Name, nodes, time.Since(start), incumbentValue)
			return &milp.Solution{Status: milp.TimedOut, Values: incumbent, Nodes: nodes}, nil
		}

		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++

		relaxed, err := solveRelaxation(p, current.lower, current.upper, s.opts.Tolerance)
		if err != nil {
			return nil, errors.Wrapf(err, "solving relaxation at node %d", nodes)
		}

		switch relaxed.status {
		case milp.Infeasible:
			glog.V(2).Infof("[bnb] node %d (depth %d) infeasible", nodes, current.depth)
			continue
		case milp.Unbounded:
			glog.V(1).Infof("[bnb] %s: relaxation unbounded at node %d", p.Name, nodes)
			return &milp.Solution{Status: milp.Unbounded, Nodes: nodes}, nil
		}

		if relaxed.objective <= incumbentValue+boundSlack(incumbentValue) {
			glog.V(2).Infof("[bnb] node %d (depth %d) pruned by bound %v <= %v",
				nodes, current.depth, relaxed.objective, incumbentValue)
			continue
		}

		branchVar := s.selectBranchVariable(p, relaxed.values)
		if branchVar < 0 {
			glog.V(2).Infof("[bnb] node %d (depth %d) new incumbent %v",
				nodes, current.depth, relaxed.objective)
			incumbent = relaxed.values
			incumbentValue = relaxed.objective
			continue
		}

		down, up := current.branch(branchVar)
		// Explore the child closest to the relaxed value first.
		if relaxed.values[branchVar] >= 0.5 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}

	if incumbent == nil {
		glog.V(1).Infof("[bnb] %s: infeasible after %d nodes", p.Name, nodes)
		return &milp.Solution{Status: milp.Infeasible, Nodes: nodes}, nil
	}

	glog.V(1).Infof("[bnb] %s: optimal %v after %d nodes (%v)",
		p.Name, incumbentValue, nodes, time.Since(start))
	return &milp.Solution{
		Status:    milp.Optimal,
		Values:    incumbent,
		Objective: p.Evaluate(incumbent),
		Nodes:     nodes,
	}, nil
}

// selectBranchVariable returns the most fractional binary variable,
// or -1 if all binaries are integral.
func (s *Solver) selectBranchVariable(p *milp.Problem, values []float64) int {
	best := -1
	bestFrac := s.opts.IntegralityTolerance
	for i, v := range p.Variables {
		if v.Domain != milp.Binary {
			continue
		}
		frac := math.Abs(values[i] - math.Round(values[i]))
		if frac > bestFrac {
			best = i
			bestFrac = frac
		}
	}
	return best
}

func (n node) branch(v int) (down, up node) {
	down = n.clone()
	down.upper[v] = 0
	up = n.clone()
	up.lower[v] = 1
	return down, up
}

func (n node) clone() node {
	result := node{
		lower: make([]float64, len(n.lower)),
		upper: make([]float64, len(n.upper)),
		depth: n.depth + 1,
	}
	copy(result.lower, n.lower)
	copy(result.upper, n.upper)
	return result
}

// boundSlack is the minimum improvement over the incumbent required
// to keep exploring a node.
func boundSlack(incumbent float64) float64 {
	if math.IsInf(incumbent, -1) {
		return 0
	}
	return 1e-9 * math.Max(1, math.Abs(incumbent))
}
