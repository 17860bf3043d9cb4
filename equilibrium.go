package dobss

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/timpalpant/go-cfr/sampling"
)

// MixedStrategy is a probability distribution over the leader's pure
// actions. It is immutable.
type MixedStrategy struct {
	p []float64
}

// NewMixedStrategy returns a MixedStrategy with a copy of p.
func NewMixedStrategy(p []float64) MixedStrategy {
	return MixedStrategy{p: append([]float64(nil), p...)}
}

// Len returns the number of leader actions.
func (s MixedStrategy) Len() int {
	return len(s.p)
}

// Probability returns the probability of leader action i.
func (s MixedStrategy) Probability(i int) float64 {
	return s.p[i]
}

// Values returns a copy of the probabilities.
func (s MixedStrategy) Values() []float64 {
	return append([]float64(nil), s.p...)
}

// Support returns the actions played with probability greater than tol.
func (s MixedStrategy) Support(tol float64) []int {
	var result []int
	for i, p := range s.p {
		if p > tol {
			result = append(result, i)
		}
	}
	return result
}

// Sample draws a pure leader action to deploy according to the strategy.
func (s MixedStrategy) Sample(rng *rand.Rand) int {
	pv := make([]float32, len(s.p))
	for i, p := range s.p {
		pv[i] = float32(p)
	}
	return sampling.SampleOne(pv, rng.Float32())
}

func (s MixedStrategy) String() string {
	parts := make([]string, len(s.p))
	for i, p := range s.p {
		parts[i] = fmt.Sprintf("%.4f", p)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Equilibrium is a Bayesian Stackelberg equilibrium: the leader's optimal
// commitment together with the pure best response of each follower type.
// It is immutable.
type Equilibrium struct {
	strategy          MixedStrategy
	responses         []int
	leaderUtility     float64
	followerUtilities []float64
	followerValues    []float64
	solverObjective   float64
	nodes             int
}

// Strategy returns the leader's mixed strategy.
func (e *Equilibrium) Strategy() MixedStrategy {
	return e.strategy
}

// Response returns the pure strategy chosen by follower type l.
func (e *Equilibrium) Response(l int) int {
	return e.responses[l]
}

// Responses returns a copy of the response of every follower type.
func (e *Equilibrium) Responses() []int {
	return append([]int(nil), e.responses...)
}

// LeaderUtility returns the leader's expected payoff, recomputed from
// the strategy and responses.
func (e *Equilibrium) LeaderUtility() float64 {
	return e.leaderUtility
}

// FollowerUtility returns the expected payoff of follower type l.
func (e *Equilibrium) FollowerUtility(l int) float64 {
	return e.followerUtilities[l]
}

// FollowerUtilities returns a copy of the expected payoff of every type.
func (e *Equilibrium) FollowerUtilities() []float64 {
	return append([]float64(nil), e.followerUtilities...)
}

// FollowerValue returns the best-response value a_l reported by the
// solver for type l, or the recomputed utility if the equilibrium did
// not come from the DOBSS MILP.
func (e *Equilibrium) FollowerValue(l int) float64 {
	return e.followerValues[l]
}

// SolverObjective returns the objective value reported by the solver.
func (e *Equilibrium) SolverObjective() float64 {
	return e.solverObjective
}

// Nodes returns the number of subproblems explored by the solver.
func (e *Equilibrium) Nodes() int {
	return e.nodes
}

func (e *Equilibrium) String() string {
	return fmt.Sprintf("Equilibrium{strategy: %v, responses: %v, leader utility: %.6f}",
		e.strategy, e.responses, e.leaderUtility)
}
