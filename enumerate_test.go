package dobss

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timpalpant/dobss/milp/bnb"
)

func TestSolveByEnumeration(t *testing.T) {
	testCases := []struct {
		name      string
		leader    [][]float64
		follower  [][]float64
		strategy  []float64
		response  int
		leaderVal float64
	}{
		{"pure commitment", [][]float64{{2, 1}, {0, 3}}, [][]float64{{1, 0}, {0, 1}}, []float64{0, 1}, 1, 3},
		{"indifference", [][]float64{{2, 4}, {1, 3}}, [][]float64{{1, 0}, {0, 1}}, []float64{0.5, 0.5}, 1, 3.5},
		// Follower action 1 is strictly dominated, so its profile is infeasible.
		{"dominated response", [][]float64{{0, 5}, {1, 5}}, [][]float64{{1, 0}, {1, 0}}, []float64{0, 1}, 0, 1},
	}

	engine := bnb.New(bnb.DefaultOptions)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := mustGame(t, 2, []float64{1}, [][][]float64{tc.leader}, [][][]float64{tc.follower})

			eq, err := SolveByEnumeration(context.Background(), engine, g)
			require.NoError(t, err)
			checkEquilibrium(t, g, eq)
			assert.InDeltaSlice(t, tc.strategy, eq.Strategy().Values(), 1e-6)
			assert.Equal(t, tc.response, eq.Response(0))
			assert.InDelta(t, tc.leaderVal, eq.LeaderUtility(), 1e-6)
			assert.InDelta(t, eq.FollowerUtility(0), eq.FollowerValue(0), 1e-12)
		})
	}
}

func TestSolveByEnumeration_TwoTypes(t *testing.T) {
	g := mustGame(t, 2, []float64{0.5, 0.5},
		[][][]float64{
			{{2, 4}, {1, 3}},
			{{0, 0}, {4, 4}},
		},
		[][][]float64{
			{{1, 0}, {0, 1}},
			{{1, 0}, {1, 0}},
		})

	eq, err := SolveByEnumeration(context.Background(), bnb.New(bnb.DefaultOptions), g)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 1}, eq.Strategy().Values(), 1e-6)
	assert.Equal(t, []int{1, 0}, eq.Responses())
	assert.InDelta(t, 3.5, eq.LeaderUtility(), 1e-6)
}

func TestSolveByEnumeration_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := SolveByEnumeration(ctx, bnb.New(bnb.DefaultOptions), twoTypeGame(t))
	assert.True(t, IsRetryable(err))
}
