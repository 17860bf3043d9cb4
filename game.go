// Package dobss computes optimal leader commitments in Bayesian Stackelberg
// games using the Decomposed Optimal Bayesian Stackelberg Solver (DOBSS)
// mixed-integer linear program.
package dobss

import (
	"math"

	"github.com/timpalpant/dobss/matrixgame"
)

// ProbabilityTolerance is how far the follower type probabilities may sum
// from 1 and still be accepted.
const ProbabilityTolerance = 1e-6

// Game is a Bayesian Stackelberg game: a leader with n pure actions facing
// one of L follower types, each with its own prior probability, action set
// and payoffs. A Game is read-only once constructed.
type Game struct {
	numLeaderActions int
	probabilities    []float64
	// Payoff matrices for each type, indexed [type][leader action][follower action].
	leaderPayoffs   [][][]float64
	followerPayoffs [][][]float64
}

// NewGame validates and returns a new Game with n leader actions and
// len(probabilities) follower types. Type l has numFollowerActions[l]
// actions and payoff matrices leaderPayoffs[l] (R) and followerPayoffs[l] (C),
// each with n rows and numFollowerActions[l] columns.
//
// The inputs are copied. The probabilities are normalized to sum to 1.
func NewGame(n int, numFollowerActions []int, probabilities []float64,
	leaderPayoffs, followerPayoffs [][][]float64) (*Game, error) {
	nTypes := len(probabilities)
	if n < 1 {
		return nil, validationErrorf("leader must have at least one action, got %d", n)
	}
	if nTypes == 0 {
		return nil, validationErrorf("game must have at least one follower type")
	}
	if len(numFollowerActions) != nTypes {
		return nil, validationErrorf("%d follower action counts for %d types", len(numFollowerActions), nTypes)
	}
	if len(leaderPayoffs) != nTypes || len(followerPayoffs) != nTypes {
		return nil, validationErrorf("payoffs given for %d/%d types, expected %d",
			len(leaderPayoffs), len(followerPayoffs), nTypes)
	}

	g := &Game{
		numLeaderActions: n,
		probabilities:    make([]float64, nTypes),
		leaderPayoffs:    make([][][]float64, nTypes),
		followerPayoffs:  make([][][]float64, nTypes),
	}
	for l := 0; l < nTypes; l++ {
		p := probabilities[l]
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return nil, validationErrorf("type %d has invalid probability %v", l, p)
		}
		g.probabilities[l] = p

		m := numFollowerActions[l]
		if m < 1 {
			return nil, validationErrorf("type %d must have at least one action, got %d", l, m)
		}

		var err error
		if g.leaderPayoffs[l], err = copyPayoffs(leaderPayoffs[l], n, m, l, "leader"); err != nil {
			return nil, err
		}
		if g.followerPayoffs[l], err = copyPayoffs(followerPayoffs[l], n, m, l, "follower"); err != nil {
			return nil, err
		}
	}

	if err := g.Normalize(); err != nil {
		return nil, err
	}

	return g, nil
}

func copyPayoffs(payoffs [][]float64, n, m, l int, player string) ([][]float64, error) {
	if len(payoffs) != n {
		return nil, validationErrorf("type %d %s payoffs have %d rows, expected %d", l, player, len(payoffs), n)
	}

	result := make([][]float64, n)
	for i, row := range payoffs {
		if len(row) != m {
			return nil, validationErrorf("type %d %s payoffs row %d has %d columns, expected %d",
				l, player, i, len(row), m)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, validationErrorf("type %d %s payoff [%d][%d] is not finite: %v", l, player, i, j, v)
			}
		}
		result[i] = append([]float64(nil), row...)
	}
	return result, nil
}

// Normalize rescales the type probabilities to sum to exactly 1. It fails
// if they are not already within ProbabilityTolerance of 1.
func (g *Game) Normalize() error {
	var total float64
	for _, p := range g.probabilities {
		total += p
	}
	if math.Abs(total-1) > ProbabilityTolerance {
		return validationErrorf("type probabilities sum to %v", total)
	}

	for l := range g.probabilities {
		g.probabilities[l] /= total
	}
	return nil
}

// NumLeaderActions returns n, the number of leader pure strategies.
func (g *Game) NumLeaderActions() int {
	return g.numLeaderActions
}

// NumTypes returns L, the number of follower types.
func (g *Game) NumTypes() int {
	return len(g.probabilities)
}

// NumFollowerActions returns the number of pure strategies of type l.
func (g *Game) NumFollowerActions(l int) int {
	return len(g.followerPayoffs[l][0])
}

// Probability returns the prior probability of follower type l.
func (g *Game) Probability(l int) float64 {
	return g.probabilities[l]
}

// LeaderPayoff returns R_l[i][j].
func (g *Game) LeaderPayoff(l, i, j int) float64 {
	return g.leaderPayoffs[l][i][j]
}

// FollowerPayoff returns C_l[i][j].
func (g *Game) FollowerPayoff(l, i, j int) float64 {
	return g.followerPayoffs[l][i][j]
}

// FollowerPayoffRange returns the smallest and largest follower payoff
// over all types and joint actions.
func (g *Game) FollowerPayoffRange() (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, payoffs := range g.followerPayoffs {
		for _, row := range payoffs {
			for _, v := range row {
				lo = math.Min(lo, v)
				hi = math.Max(hi, v)
			}
		}
	}
	return lo, hi
}

// LeaderUtility returns the leader's expected payoff against type l
// playing action j when the leader mixes according to x.
func (g *Game) LeaderUtility(x []float64, l, j int) float64 {
	return matrixgame.ExpectedPayoff(x, g.leaderPayoffs[l], j)
}

// FollowerUtilities returns the expected payoff of each action of type l
// when the leader mixes according to x.
func (g *Game) FollowerUtilities(x []float64, l int) []float64 {
	return matrixgame.ExpectedPayoffs(x, g.followerPayoffs[l])
}

// BestResponses returns the actions of type l within tol of its best
// expected payoff against x.
func (g *Game) BestResponses(x []float64, l int, tol float64) []int {
	return matrixgame.BestResponses(x, g.followerPayoffs[l], tol)
}

// ExpectedLeaderUtility returns the leader's expected payoff, weighted over
// the type distribution, when it mixes according to x and each type l
// plays responses[l].
func (g *Game) ExpectedLeaderUtility(x []float64, responses []int) float64 {
	var total float64
	for l, j := range responses {
		total += g.probabilities[l] * g.LeaderUtility(x, l, j)
	}
	return total
}

// LeaderOptimalResponse returns, among the best responses of type l to x
// (within tol), the one that maximizes the leader's payoff.
func (g *Game) LeaderOptimalResponse(x []float64, l int, tol float64) int {
	candidates := g.BestResponses(x, l, tol)
	best := candidates[0]
	bestValue := g.LeaderUtility(x, l, best)
	for _, j := range candidates[1:] {
		if v := g.LeaderUtility(x, l, j); v > bestValue {
			best, bestValue = j, v
		}
	}
	return best
}
