package dobss

import (
	"context"
	"fmt"
	"math"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/timpalpant/dobss/milp"
)

// MaxEnumerationProfiles bounds the number of LPs SolveByEnumeration
// will solve.
const MaxEnumerationProfiles = 100000

// SolveByEnumeration computes the equilibrium with the multiple-LPs
// method: for every profile assigning one pure response to each type it
// solves the LP that maximizes the leader's utility subject to every
// type's response being a best response, and keeps the best profile.
// With a single type this is the classical method of Conitzer and
// Sandholm (2006); with several it solves the Harsanyi-transformed game.
//
// The number of profiles grows exponentially with the number of types;
// it is intended for small games and for cross-checking Solve.
func SolveByEnumeration(ctx context.Context, engine milp.Solver, g *Game) (*Equilibrium, error) {
	if err := checkGame(g); err != nil {
		return nil, err
	}

	nProfiles := 1
	for l := 0; l < g.NumTypes(); l++ {
		nProfiles *= g.NumFollowerActions(l)
		if nProfiles > MaxEnumerationProfiles {
			return nil, validationErrorf("more than %d response profiles to enumerate", MaxEnumerationProfiles)
		}
	}

	var best *Equilibrium
	var bestValue float64
	profile := make([]int, g.NumTypes())
	for k := 0; k < nProfiles; k++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithStack(&SolverError{Status: milp.TimedOut})
		}

		p, x := profileLP(g, profile)
		sol, err := engine.Solve(ctx, p)
		if err != nil {
			return nil, errors.Wrapf(err, "solving LP for profile %v", profile)
		}

		switch sol.Status {
		case milp.Optimal:
			if best == nil || sol.Objective > bestValue+1e-9*math.Max(1, math.Abs(bestValue)) {
				eq, err := profileEquilibrium(g, profile, x, sol)
				if err != nil {
					return nil, err
				}
				best, bestValue = eq, sol.Objective
			}
		case milp.Infeasible:
			glog.V(2).Infof("Profile %v cannot be induced", profile)
		case milp.TimedOut:
			return nil, errors.WithStack(&SolverError{Status: sol.Status})
		default:
			return nil, errors.Wrapf(&SolverError{Status: sol.Status}, "LP for profile %v", profile)
		}

		nextProfile(g, profile)
	}

	if best == nil {
		// The best responses to any fixed strategy form a feasible profile.
		return nil, errors.Wrap(&SolverError{Status: milp.Infeasible}, "no inducible response profile")
	}
	glog.V(1).Infof("Enumerated %d profiles, best: %v", nProfiles, best)
	return best, nil
}

// profileLP returns the LP over the leader strategy inducing the given
// response profile, and the indices of the x variables.
func profileLP(g *Game, profile []int) (*milp.Problem, []int) {
	p := milp.NewProblem(fmt.Sprintf("profile_%v", profile))
	n := g.NumLeaderActions()
	x := make([]int, n)
	sum := make([]milp.Term, n)
	for i := range x {
		x[i] = p.AddVariable(milp.Variable{Name: fmt.Sprintf("x_%d", i), Domain: milp.Continuous, Lower: 0, Upper: 1})
		sum[i] = milp.Term{Var: x[i], Coef: 1}
	}
	p.AddConstraint("leader_distribution", sum, milp.Equal, 1)

	objective := make([]float64, n)
	for l, jl := range profile {
		for i := range x {
			objective[i] += g.Probability(l) * g.LeaderPayoff(l, i, jl)
		}
		for j := 0; j < g.NumFollowerActions(l); j++ {
			if j == jl {
				continue
			}
			var terms []milp.Term
			for i := range x {
				if d := g.FollowerPayoff(l, i, jl) - g.FollowerPayoff(l, i, j); d != 0 {
					terms = append(terms, milp.Term{Var: x[i], Coef: d})
				}
			}
			p.AddConstraint(fmt.Sprintf("induce_%d_%d_over_%d", l, jl, j), terms, milp.GreaterEq, 0)
		}
	}
	for i, c := range objective {
		if c != 0 {
			p.AddObjective(x[i], c)
		}
	}

	return p, x
}

func profileEquilibrium(g *Game, profile []int, xIdx []int, sol *milp.Solution) (*Equilibrium, error) {
	x := make([]float64, len(xIdx))
	var total float64
	for i, idx := range xIdx {
		x[i] = math.Max(0, sol.Values[idx])
		total += x[i]
	}
	if total <= 0 {
		return nil, extractionErrorf(-1, "leader strategy for profile %v sums to %v", profile, total)
	}
	for i := range x {
		x[i] /= total
	}

	responses := append([]int(nil), profile...)
	followerUtilities := make([]float64, len(responses))
	for l, j := range responses {
		followerUtilities[l] = g.FollowerUtilities(x, l)[j]
	}
	return &Equilibrium{
		strategy:          MixedStrategy{p: x},
		responses:         responses,
		leaderUtility:     g.ExpectedLeaderUtility(x, responses),
		followerUtilities: followerUtilities,
		followerValues:    append([]float64(nil), followerUtilities...),
		solverObjective:   sol.Objective,
		nodes:             sol.Nodes,
	}, nil
}

// nextProfile advances profile to the next element of the cartesian
// product of the follower action sets.
func nextProfile(g *Game, profile []int) {
	for l := range profile {
		profile[l]++
		if profile[l] < g.NumFollowerActions(l) {
			return
		}
		profile[l] = 0
	}
}
