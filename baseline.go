package dobss

import (
	"math/rand"

	"github.com/timpalpant/dobss/matrixgame"
)

// Baseline is an approximate equilibrium of the simultaneous-move game,
// in which the leader cannot commit. Comparing its LeaderUtility to the
// Stackelberg equilibrium measures the value of commitment.
type Baseline struct {
	Leader        MixedStrategy
	Followers     [][]float64
	LeaderUtility float64
}

// FictitiousPlayBaseline runs nIter iterations of fictitious play on g.
func FictitiousPlayBaseline(g *Game, nIter int, mixingLambda float64, rng *rand.Rand) Baseline {
	leader, followers := matrixgame.FictitiousPlay(g.probabilities, g.leaderPayoffs, g.followerPayoffs,
		nIter, mixingLambda, rng)

	var utility float64
	for l, y := range followers {
		for j, q := range y {
			if q > 0 {
				utility += g.Probability(l) * q * g.LeaderUtility(leader, l, j)
			}
		}
	}

	return Baseline{
		Leader:        NewMixedStrategy(leader),
		Followers:     followers,
		LeaderUtility: utility,
	}
}
