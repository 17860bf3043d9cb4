package matrixgame

import (
	"math/rand"

	"github.com/golang/glog"
)

// FictitiousPlay approximates an equilibrium of the simultaneous-move
// Bayesian game in which neither player can commit. In each iteration the
// leader best responds to the type-weighted empirical play of the followers
// and each follower type best responds to the empirical play of the leader.
// With probability mixingLambda a player instead selects uniformly at random.
//
// Returns the empirical leader strategy and the empirical strategy of each
// follower type.
func FictitiousPlay(probabilities []float64, leader, follower [][][]float64,
	nIter int, mixingLambda float64, rng *rand.Rand) ([]float64, [][]float64) {
	nLeader := len(leader[0])
	leaderPlayCounts := make([]int, nLeader)
	followerPlayCounts := make([][]int, len(follower))
	for l := range follower {
		followerPlayCounts[l] = make([]int, len(follower[l][0]))
	}

	for i := 1; i <= nIter; i++ {
		var leaderSelected int
		if rng.Float64() < mixingLambda {
			leaderSelected = rng.Intn(nLeader)
		} else {
			leaderSelected = getLeaderBestResponse(probabilities, leader, followerPlayCounts, rng)
		}

		for l, counts := range followerPlayCounts {
			var selected int
			if rng.Float64() < mixingLambda {
				selected = rng.Intn(len(counts))
			} else {
				selected = getFollowerBestResponse(follower[l], leaderPlayCounts, rng)
			}
			counts[selected]++
		}
		leaderPlayCounts[leaderSelected]++

		if nIter >= 10 && i%(nIter/10) == 0 {
			glog.V(1).Infof("After %d iterations, leader weights: %v", i, normalize(leaderPlayCounts))
			for l, counts := range followerPlayCounts {
				glog.V(2).Infof("After %d iterations, follower type %d weights: %v", i, l, normalize(counts))
			}
		}
	}

	followerStrategies := make([][]float64, len(followerPlayCounts))
	for l, counts := range followerPlayCounts {
		followerStrategies[l] = normalize(counts)
	}
	return normalize(leaderPlayCounts), followerStrategies
}

func getLeaderBestResponse(probabilities []float64, leader [][][]float64, followerPlayCounts [][]int, rng *rand.Rand) int {
	utilities := make([]float64, len(leader[0]))
	for l, counts := range followerPlayCounts {
		for j, c := range counts {
			for i := range utilities {
				utilities[i] += probabilities[l] * float64(c) * leader[l][i][j]
			}
		}
	}

	_, br := argMaxRandomTies(utilities, rng)
	return br
}

func getFollowerBestResponse(payoffs [][]float64, leaderPlayCounts []int, rng *rand.Rand) int {
	utilities := make([]float64, len(payoffs[0]))
	for i, c := range leaderPlayCounts {
		for j := range utilities {
			utilities[j] += float64(c) * payoffs[i][j]
		}
	}

	_, br := argMaxRandomTies(utilities, rng)
	return br
}

func normalize(counts []int) []float64 {
	total := 0
	for _, v := range counts {
		total += v
	}

	result := make([]float64, len(counts))
	if total == 0 {
		return result
	}
	for i, v := range counts {
		result[i] = float64(v) / float64(total)
	}
	return result
}

func argMaxRandomTies(vs []float64, rng *rand.Rand) (float64, int) {
	best, bestIdx := vs[0], 0
	for i := 1; i < len(vs); i++ {
		v := vs[i]
		if v > best {
			best = v
			bestIdx = i
		} else if v == best && rng.Intn(2) == 1 {
			bestIdx = i
		}
	}

	return best, bestIdx
}
