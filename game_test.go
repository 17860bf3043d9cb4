package dobss

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGame(t *testing.T) {
	g, err := NewGame(2, []int{2, 3}, []float64{0.25, 0.75},
		[][][]float64{
			{{1, 2}, {3, 4}},
			{{1, 2, 3}, {4, 5, 6}},
		},
		[][][]float64{
			{{-1, -2}, {-3, -4}},
			{{0, 0, 1}, {1, 0, 0}},
		})
	require.NoError(t, err)

	assert.Equal(t, 2, g.NumLeaderActions())
	assert.Equal(t, 2, g.NumTypes())
	assert.Equal(t, 2, g.NumFollowerActions(0))
	assert.Equal(t, 3, g.NumFollowerActions(1))
	assert.Equal(t, 0.75, g.Probability(1))
	assert.Equal(t, 6.0, g.LeaderPayoff(1, 1, 2))
	assert.Equal(t, -3.0, g.FollowerPayoff(0, 1, 0))

	lo, hi := g.FollowerPayoffRange()
	assert.Equal(t, -4.0, lo)
	assert.Equal(t, 1.0, hi)
}

func TestNewGame_CopiesInputs(t *testing.T) {
	leader := [][][]float64{{{1, 2}}}
	follower := [][][]float64{{{3, 4}}}
	g, err := NewGame(1, []int{2}, []float64{1}, leader, follower)
	require.NoError(t, err)

	leader[0][0][0] = 100
	follower[0][0][1] = 100
	assert.Equal(t, 1.0, g.LeaderPayoff(0, 0, 0))
	assert.Equal(t, 4.0, g.FollowerPayoff(0, 0, 1))
}

func TestNewGame_Invalid(t *testing.T) {
	square := [][]float64{{1, 2}, {3, 4}}
	testCases := []struct {
		name          string
		n             int
		actions       []int
		probabilities []float64
		leader        [][][]float64
		follower      [][][]float64
	}{
		{"no types", 2, []int{}, []float64{}, nil, nil},
		{"no leader actions", 0, []int{2}, []float64{1}, [][][]float64{{}}, [][][]float64{{}}},
		{"action count mismatch", 2, []int{2, 2}, []float64{1},
			[][][]float64{square}, [][][]float64{square}},
		{"missing payoffs", 2, []int{2}, []float64{1}, [][][]float64{}, [][][]float64{square}},
		{"too many rows", 1, []int{2}, []float64{1}, [][][]float64{square}, [][][]float64{square}},
		{"too few columns", 2, []int{3}, []float64{1}, [][][]float64{square}, [][][]float64{square}},
		{"ragged follower payoffs", 2, []int{2}, []float64{1},
			[][][]float64{square}, [][][]float64{{{1, 2}, {3}}}},
		{"no follower actions", 1, []int{0}, []float64{1}, [][][]float64{{{}}}, [][][]float64{{{}}}},
		{"negative probability", 2, []int{2, 2}, []float64{1.5, -0.5},
			[][][]float64{square, square}, [][][]float64{square, square}},
		{"probabilities do not sum to 1", 2, []int{2, 2}, []float64{0.5, 0.4},
			[][][]float64{square, square}, [][][]float64{square, square}},
		{"NaN probability", 2, []int{2}, []float64{math.NaN()},
			[][][]float64{square}, [][][]float64{square}},
		{"infinite payoff", 2, []int{2}, []float64{1},
			[][][]float64{{{1, 2}, {math.Inf(1), 4}}}, [][][]float64{square}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewGame(tc.n, tc.actions, tc.probabilities, tc.leader, tc.follower)
			require.Error(t, err)
			assert.True(t, IsValidation(err), "expected ValidationError, got %v", err)
			assert.False(t, IsBuild(err))
			assert.False(t, IsSolver(err))
		})
	}
}

func TestNormalize(t *testing.T) {
	square := [][]float64{{1, 2}, {3, 4}}
	g, err := NewGame(2, []int{2, 2, 2}, []float64{1.0 / 3, 1.0 / 3, 1.0/3 + 5e-7},
		[][][]float64{square, square, square}, [][][]float64{square, square, square})
	require.NoError(t, err)

	var total float64
	for l := 0; l < g.NumTypes(); l++ {
		total += g.Probability(l)
	}
	assert.InDelta(t, 1.0, total, 1e-15)

	// Idempotent.
	require.NoError(t, g.Normalize())
	assert.InDelta(t, 1.0/3, g.Probability(0), 1e-6)

	g.probabilities[0] = 0.9
	err = g.Normalize()
	assert.True(t, IsValidation(err))
}

func TestUtilities(t *testing.T) {
	g := mustGame(t, 2, []float64{0.5, 0.5},
		[][][]float64{
			{{2, 1}, {0, 3}},
			{{1, 0}, {0, 1}},
		},
		[][][]float64{
			{{1, 0}, {0, 1}},
			{{0, 1}, {1, 0}},
		})

	x := []float64{0.25, 0.75}
	assert.InDeltaSlice(t, []float64{0.25, 0.75}, g.FollowerUtilities(x, 0), 1e-12)
	assert.InDeltaSlice(t, []float64{0.75, 0.25}, g.FollowerUtilities(x, 1), 1e-12)
	assert.InDelta(t, 0.5, g.LeaderUtility(x, 0, 0), 1e-12)
	assert.InDelta(t, 2.5, g.LeaderUtility(x, 0, 1), 1e-12)
	assert.InDelta(t, 0.5*2.5+0.5*0.25, g.ExpectedLeaderUtility(x, []int{1, 0}), 1e-12)
	assert.Equal(t, []int{1}, g.BestResponses(x, 0, 1e-9))

	// At indifference the leader-optimal response is the one paying the leader most.
	half := []float64{0.5, 0.5}
	assert.Equal(t, []int{0, 1}, g.BestResponses(half, 0, 1e-9))
	assert.Equal(t, 1, g.LeaderOptimalResponse(half, 0, 1e-9))
}

// mustGame builds a game in which every type has the same number of
// actions as the width of its payoff matrices.
func mustGame(t *testing.T, n int, probabilities []float64, leader, follower [][][]float64) *Game {
	t.Helper()
	actions := make([]int, len(leader))
	for l := range leader {
		actions[l] = len(leader[l][0])
	}
	g, err := NewGame(n, actions, probabilities, leader, follower)
	require.NoError(t, err)
	return g
}
