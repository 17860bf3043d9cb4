// Package matrixgame contains utilities for normal-form games given as
// payoff matrices indexed by [row player action][column player action].
package matrixgame

import (
	"math"
)

// ExpectedPayoffs returns the column player's expected payoff for each of
// its actions when the row player mixes according to strategy.
func ExpectedPayoffs(strategy []float64, payoffs [][]float64) []float64 {
	utilities := make([]float64, len(payoffs[0]))
	for i, p := range strategy {
		if p == 0 {
			continue
		}
		for j := range utilities {
			utilities[j] += p * payoffs[i][j]
		}
	}
	return utilities
}

// ExpectedPayoff returns the expected payoff of column action j when the
// row player mixes according to strategy.
func ExpectedPayoff(strategy []float64, payoffs [][]float64, j int) float64 {
	var total float64
	for i, p := range strategy {
		total += p * payoffs[i][j]
	}
	return total
}

// BestResponses returns the column actions whose expected payoff against
// strategy is within tol of the maximum, in increasing order.
func BestResponses(strategy []float64, payoffs [][]float64, tol float64) []int {
	utilities := ExpectedPayoffs(strategy, payoffs)
	best, _ := ArgMax(utilities)
	var result []int
	for j, u := range utilities {
		if u >= best-tol {
			result = append(result, j)
		}
	}
	return result
}

// ArgMax returns the maximum of vs and the lowest index attaining it.
func ArgMax(vs []float64) (float64, int) {
	best := math.Inf(-1)
	bestIdx := 0
	for i, v := range vs {
		if v > best {
			best = v
			bestIdx = i
		}
	}

	return best, bestIdx
}
