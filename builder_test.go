package dobss

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timpalpant/dobss/matrixgame"
	"github.com/timpalpant/dobss/milp"
	"github.com/timpalpant/dobss/milp/bnb"
)

func twoTypeGame(t *testing.T) *Game {
	t.Helper()
	return mustGame(t, 2, []float64{0.4, 0.6},
		[][][]float64{
			{{1, 2}, {3, 4}},
			{{5, 1, 0}, {0, 1, 5}},
		},
		[][][]float64{
			{{-1, 2}, {0, -3}},
			{{0, 1, 2}, {2, 1, 0}},
		})
}

func TestBuild_Dimensions(t *testing.T) {
	g := twoTypeGame(t)
	f, err := Build(g, 0)
	require.NoError(t, err)

	p := f.Problem
	// x: 2, type 0: a + 2 q + 4 z, type 1: a + 3 q + 6 z.
	assert.Len(t, p.Variables, 2+7+10)
	assert.Equal(t, 5, p.NumBinary())
	// Distribution + per type (response + 2 per action + 3 per z + row sums).
	assert.Len(t, p.Constraints, 1+(1+4+12+2)+(1+6+18+2))
	require.NoError(t, p.Validate())

	assert.Equal(t, milp.Continuous, p.Variables[f.X(1)].Domain)
	assert.Equal(t, milp.Free, p.Variables[f.A(1)].Domain)
	assert.Equal(t, milp.Binary, p.Variables[f.Q(1, 2)].Domain)
	assert.Equal(t, "z_1_1_2", p.Variables[f.Z(1, 1, 2)].Name)
	assert.Same(t, g, f.Game())
}

func TestBuild_BigM(t *testing.T) {
	g := twoTypeGame(t)
	// Follower payoffs span [-3, 2].
	m, err := DefaultBigM(g)
	require.NoError(t, err)
	assert.Equal(t, 5+BigMMargin, m)

	f, err := Build(g, 0)
	require.NoError(t, err)
	assert.Equal(t, m, f.BigM)

	f, err = Build(g, 100)
	require.NoError(t, err)
	assert.Equal(t, 100.0, f.BigM)

	_, err = Build(g, 5)
	require.Error(t, err)
	assert.True(t, IsBuild(err), "expected BuildError, got %v", err)
}

func TestBuild_Invalid(t *testing.T) {
	_, err := Build(nil, 0)
	assert.True(t, IsBuild(err))

	g := twoTypeGame(t)
	g.probabilities[0] = 0.9
	_, err = Build(g, 0)
	assert.True(t, IsBuild(err))

	_, err = DefaultBigM(&Game{})
	assert.True(t, IsBuild(err))
}

// integralAssignment returns the values of every variable when the leader
// plays x and each type plays responses[l].
func integralAssignment(f *Formulation, x []float64, responses []int) []float64 {
	g := f.Game()
	values := make([]float64, len(f.Problem.Variables))
	for i, v := range x {
		values[f.X(i)] = v
	}
	for l, jl := range responses {
		values[f.Q(l, jl)] = 1
		best, _ := matrixgame.ArgMax(g.FollowerUtilities(x, l))
		values[f.A(l)] = best
		for i, v := range x {
			values[f.Z(l, i, jl)] = v
		}
	}
	return values
}

func TestBuild_ObjectiveMatchesExpectedUtility(t *testing.T) {
	g := twoTypeGame(t)
	f, err := Build(g, 0)
	require.NoError(t, err)

	for _, x := range [][]float64{{1, 0}, {0, 1}, {0.3, 0.7}} {
		responses := make([]int, g.NumTypes())
		for l := range responses {
			responses[l] = g.LeaderOptimalResponse(x, l, 1e-12)
		}

		values := integralAssignment(f, x, responses)
		assert.NoError(t, f.Problem.Check(values, 1e-9), "x = %v", x)
		assert.InDelta(t, g.ExpectedLeaderUtility(x, responses), f.Problem.Evaluate(values), 1e-12)
	}
}

func TestBuild_RejectsNonBestResponse(t *testing.T) {
	g := twoTypeGame(t)
	f, err := Build(g, 0)
	require.NoError(t, err)

	// Against x = (1, 0) type 0 strictly prefers action 1.
	x := []float64{1, 0}
	values := integralAssignment(f, x, []int{0, 2})
	assert.Error(t, f.Problem.Check(values, 1e-9))
}

func TestProductLink(t *testing.T) {
	solver := bnb.New(bnb.DefaultOptions)
	for _, xv := range []float64{0, 0.3, 1} {
		for _, qv := range []float64{0, 1} {
			for _, sign := range []float64{1, -1} {
				name := fmt.Sprintf("x=%v,q=%v,sign=%v", xv, qv, sign)
				t.Run(name, func(t *testing.T) {
					p := milp.NewProblem("link")
					x := p.AddVariable(milp.Variable{Name: "x", Domain: milp.Continuous, Lower: xv, Upper: xv})
					q := p.AddVariable(milp.Variable{Name: "q", Domain: milp.Binary})
					z := p.AddVariable(milp.Variable{Name: "z", Domain: milp.Continuous, Lower: 0, Upper: 1})
					p.AddConstraint("fix_q", []milp.Term{{Var: q, Coef: 1}}, milp.Equal, qv)
					addProductLink(p, "test", z, x, q)
					p.AddObjective(z, sign)

					sol, err := solver.Solve(context.Background(), p)
					require.NoError(t, err)
					require.Equal(t, milp.Optimal, sol.Status)
					assert.InDelta(t, xv*qv, sol.Values[z], 1e-9)
				})
			}
		}
	}
}

func TestFormulation_WriteLP(t *testing.T) {
	g := twoTypeGame(t)
	f, err := Build(g, 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Problem.WriteLP(&buf))
	out := buf.String()
	assert.Contains(t, out, "Maximize")
	assert.Contains(t, out, "leader_distribution: 1 x_0 + 1 x_1 = 1")
	assert.Contains(t, out, " a_0 free")
	assert.Contains(t, out, "Binaries\n q_0_0\n")
	assert.Contains(t, out, " 0 <= z_1_1_2 <= 1")
}

func TestFormulation_WriteLPNamed(t *testing.T) {
	f, err := Build(twoTypeGame(t), 0)
	require.NoError(t, err)
	name := f.Problem.Name

	var buf bytes.Buffer
	require.NoError(t, f.WriteLP(&buf, "airport"))
	assert.True(t, strings.HasPrefix(buf.String(), "\\ airport\n"))
	assert.Equal(t, name, f.Problem.Name)

	var again bytes.Buffer
	require.NoError(t, f.Problem.WriteLP(&again))
	assert.NotContains(t, again.String(), "airport")
}
