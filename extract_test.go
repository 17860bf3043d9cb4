package dobss

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timpalpant/dobss/milp"
)

func optimalSolution(f *Formulation, values []float64) *milp.Solution {
	return &milp.Solution{
		Status:    milp.Optimal,
		Values:    values,
		Objective: f.Problem.Evaluate(values),
		Nodes:     1,
	}
}

func TestExtract(t *testing.T) {
	g := twoTypeGame(t)
	f, err := Build(g, 0)
	require.NoError(t, err)

	x := []float64{0.3, 0.7}
	values := integralAssignment(f, x, []int{0, 0})
	eq, err := f.Extract(optimalSolution(f, values))
	require.NoError(t, err)

	assert.InDeltaSlice(t, x, eq.Strategy().Values(), 1e-12)
	assert.Equal(t, []int{0, 0}, eq.Responses())
	assert.InDelta(t, g.ExpectedLeaderUtility(x, []int{0, 0}), eq.LeaderUtility(), 1e-12)
	assert.InDelta(t, eq.LeaderUtility(), eq.SolverObjective(), 1e-12)
	assert.InDelta(t, -0.3, eq.FollowerUtility(0), 1e-12)
	assert.InDelta(t, -0.3, eq.FollowerValue(0), 1e-12)
	assert.InDelta(t, 1.4, eq.FollowerUtility(1), 1e-12)
	assert.Equal(t, 1, eq.Nodes())
}

func TestExtract_ClampsNoise(t *testing.T) {
	g := twoTypeGame(t)
	f, err := Build(g, 0)
	require.NoError(t, err)

	values := integralAssignment(f, []float64{0, 1}, []int{0, 0})
	values[f.X(0)] = -1e-7
	values[f.X(1)] = 1 + 2e-7
	values[f.Q(0, 0)] = 1 - 1e-8
	eq, err := f.Extract(optimalSolution(f, values))
	require.NoError(t, err)

	s := eq.Strategy()
	assert.Equal(t, 0.0, s.Probability(0))
	assert.Equal(t, 1.0, s.Probability(1))
}

func TestExtract_Errors(t *testing.T) {
	g := twoTypeGame(t)
	f, err := Build(g, 0)
	require.NoError(t, err)
	x := []float64{0.3, 0.7}

	testCases := []struct {
		name   string
		mutate func(sol *milp.Solution)
		typ    int
	}{
		{"two responses", func(sol *milp.Solution) {
			sol.Values[f.Q(1, 2)] = 1
		}, 1},
		{"no response", func(sol *milp.Solution) {
			sol.Values[f.Q(0, 0)] = 0
		}, 0},
		{"fractional response", func(sol *milp.Solution) {
			sol.Values[f.Q(0, 0)] = 0.5
			sol.Values[f.Q(0, 1)] = 0.5
		}, 0},
		{"not a best response", func(sol *milp.Solution) {
			sol.Values[f.Q(0, 0)] = 0
			sol.Values[f.Q(0, 1)] = 1
		}, 0},
		{"negative probability", func(sol *milp.Solution) {
			sol.Values[f.X(0)] = -0.1
		}, -1},
		{"strategy does not sum to one", func(sol *milp.Solution) {
			sol.Values[f.X(0)] = 0.5
		}, -1},
		{"objective mismatch", func(sol *milp.Solution) {
			sol.Objective += 1
		}, -1},
		{"truncated assignment", func(sol *milp.Solution) {
			sol.Values = sol.Values[:3]
		}, -1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sol := optimalSolution(f, integralAssignment(f, x, []int{0, 0}))
			tc.mutate(sol)

			_, err := f.Extract(sol)
			require.Error(t, err)
			var extractionErr *ExtractionError
			require.True(t, errors.As(err, &extractionErr), "expected ExtractionError, got %v", err)
			assert.Equal(t, tc.typ, extractionErr.Type)
		})
	}
}

func TestExtract_SolverStatus(t *testing.T) {
	g := twoTypeGame(t)
	f, err := Build(g, 0)
	require.NoError(t, err)

	for _, status := range []milp.Status{milp.Infeasible, milp.Unbounded, milp.TimedOut} {
		_, err := f.Extract(&milp.Solution{Status: status})
		assert.True(t, IsSolver(err), "status %v", status)
		assert.Equal(t, status == milp.TimedOut, IsRetryable(err), "status %v", status)
		assert.False(t, IsExtraction(err))
	}

	_, err = f.Extract(nil)
	assert.True(t, IsExtraction(err))
}
