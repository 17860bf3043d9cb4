package dobss

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolve_Cache(t *testing.T) {
	solver := newTestSolver(WithCache(2))
	g := twoTypeGame(t)

	eq, err := solver.Solve(context.Background(), g)
	require.NoError(t, err)
	hits := cacheHits.Value()

	again, err := solver.Solve(context.Background(), twoTypeGame(t))
	require.NoError(t, err)
	assert.Same(t, eq, again)
	assert.Equal(t, hits+1, cacheHits.Value())

	other := mustGame(t, 2, []float64{1},
		[][][]float64{{{2, 4}, {1, 3}}},
		[][][]float64{{{1, 0}, {0, 1}}})
	eq2, err := solver.Solve(context.Background(), other)
	require.NoError(t, err)
	assert.NotSame(t, eq, eq2)
	assert.InDelta(t, 3.5, eq2.LeaderUtility(), 1e-6)
}

func TestSolve_CacheFailuresNotStored(t *testing.T) {
	solver := newTestSolver(WithCache(2))
	g := twoTypeGame(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := solver.Solve(ctx, g)
	require.True(t, IsRetryable(err))

	eq, err := solver.Solve(context.Background(), g)
	require.NoError(t, err)
	checkEquilibrium(t, g, eq)
}

func TestCacheKey(t *testing.T) {
	g := twoTypeGame(t)
	assert.Equal(t, cacheKey(g, 6), cacheKey(twoTypeGame(t), 6))
	assert.NotEqual(t, cacheKey(g, 6), cacheKey(g, 7))

	h := twoTypeGame(t)
	h.leaderPayoffs[1][0][2] = 0.5
	assert.NotEqual(t, cacheKey(g, 6), cacheKey(h, 6))
}

func TestSolve_CacheLookupPrecedesBuild(t *testing.T) {
	g := twoTypeGame(t)
	m, err := DefaultBigM(g)
	require.NoError(t, err)

	solver := newTestSolver(WithCache(2))
	eq, err := solver.Solve(context.Background(), g)
	require.NoError(t, err)
	assert.True(t, solver.cache.Contains(cacheKey(g, m)))

	// An explicit big-M equal to the derived one shares the entry.
	explicit := newTestSolver(WithCache(2), WithBigM(m))
	explicit.store(cacheKey(g, m), eq)
	again, err := explicit.Solve(context.Background(), twoTypeGame(t))
	require.NoError(t, err)
	assert.Same(t, eq, again)

	// A hit is served even when the solve would be cancelled.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	again, err = solver.Solve(ctx, g)
	require.NoError(t, err)
	assert.Same(t, eq, again)
}

func TestSolve_CacheInvalidGame(t *testing.T) {
	solver := newTestSolver(WithCache(2))
	_, err := solver.Solve(context.Background(), nil)
	assert.True(t, IsBuild(err))

	_, err = newTestSolver(WithCache(2), WithBigM(0.5)).Solve(context.Background(), twoTypeGame(t))
	assert.True(t, IsBuild(err))
}
