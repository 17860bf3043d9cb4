package dobss

import (
	"fmt"
	"io"
	"math"

	"github.com/golang/glog"

	"github.com/timpalpant/dobss/milp"
)

// BigMMargin is added to the follower payoff spread to obtain the
// default big-M constant.
const BigMMargin = 1.0

// Formulation is the DOBSS MILP for a Game together with the index of
// each of its variables. It is immutable once built.
//
// Variables:
//
//	x_i      leader plays action i, continuous in [0, 1]
//	q_l_j    type l responds with action j, binary
//	a_l      best achievable payoff of type l, free
//	z_l_i_j  x_i * q_l_j, continuous in [0, 1]
//
// The bilinear objective sum_l p_l sum_ij R_l[i][j] x_i q_l_j is
// linearized by substituting z_l_i_j, which is pinned to the product
// x_i * q_l_j by McCormick constraints:
//
//	z <= x_i,  z <= q_l_j,  z >= x_i + q_l_j - 1,  z >= 0
//
// These are exact when q_l_j is binary. The rows sum_j z_l_i_j = x_i
// are implied by them at integral q and tighten the LP relaxation.
type Formulation struct {
	Problem *milp.Problem
	// BigM is the constant used to relax the best-response constraints
	// of the actions a type does not play.
	BigM float64

	game *Game
	x    []int
	q    [][]int
	a    []int
	z    [][][]int
}

// DefaultBigM returns the spread of the follower payoffs plus BigMMargin.
// It is the smallest constant, up to the margin, that never cuts off a
// true best response.
func DefaultBigM(g *Game) (float64, error) {
	spread, err := followerPayoffSpread(g)
	if err != nil {
		return 0, err
	}
	return spread + BigMMargin, nil
}

func followerPayoffSpread(g *Game) (float64, error) {
	if g == nil || g.NumTypes() == 0 || g.NumLeaderActions() == 0 {
		return 0, buildErrorf(-1, -1, "cannot compute big-M of an empty game")
	}
	lo, hi := g.FollowerPayoffRange()
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return 0, buildErrorf(-1, -1, "cannot compute big-M: follower payoffs are empty")
	}
	return hi - lo, nil
}

// Build constructs the DOBSS MILP for g. If bigM is not positive it is
// computed with DefaultBigM; otherwise it must strictly exceed the spread
// of the follower payoffs.
func Build(g *Game, bigM float64) (*Formulation, error) {
	if err := checkGame(g); err != nil {
		return nil, err
	}

	spread, err := followerPayoffSpread(g)
	if err != nil {
		return nil, err
	}
	if bigM <= 0 {
		bigM = spread + BigMMargin
	} else if bigM <= spread {
		return nil, buildErrorf(-1, -1,
			"big-M %v does not exceed follower payoff spread %v and may exclude true best responses",
			bigM, spread)
	}

	n, nTypes := g.NumLeaderActions(), g.NumTypes()
	f := &Formulation{
		Problem: milp.NewProblem("dobss"),
		BigM:    bigM,
		game:    g,
		x:       make([]int, n),
		q:       make([][]int, nTypes),
		a:       make([]int, nTypes),
		z:       make([][][]int, nTypes),
	}
	p := f.Problem

	for i := range f.x {
		f.x[i] = p.AddVariable(milp.Variable{
			Name:   fmt.Sprintf("x_%d", i),
			Domain: milp.Continuous,
			Lower:  0,
			Upper:  1,
		})
	}

	for l := 0; l < nTypes; l++ {
		m := g.NumFollowerActions(l)
		f.a[l] = p.AddVariable(milp.Variable{Name: fmt.Sprintf("a_%d", l), Domain: milp.Free})
		f.q[l] = make([]int, m)
		for j := range f.q[l] {
			f.q[l][j] = p.AddVariable(milp.Variable{Name: fmt.Sprintf("q_%d_%d", l, j), Domain: milp.Binary})
		}
		f.z[l] = make([][]int, n)
		for i := range f.z[l] {
			f.z[l][i] = make([]int, m)
			for j := range f.z[l][i] {
				f.z[l][i][j] = p.AddVariable(milp.Variable{
					Name:   fmt.Sprintf("z_%d_%d_%d", l, i, j),
					Domain: milp.Continuous,
					Lower:  0,
					Upper:  1,
				})
			}
		}
	}

	f.addObjective()
	f.addLeaderDistribution()
	for l := 0; l < nTypes; l++ {
		f.addTypeConstraints(l)
	}

	glog.V(1).Infof("Built DOBSS MILP: %d leader actions, %d types, %d variables (%d binary), %d constraints, M = %v",
		n, nTypes, len(p.Variables), p.NumBinary(), len(p.Constraints), bigM)
	return f, nil
}

// checkGame re-validates g. Games constructed by NewGame always pass.
func checkGame(g *Game) error {
	if g == nil {
		return buildErrorf(-1, -1, "nil game")
	}
	if g.NumLeaderActions() < 1 || g.NumTypes() < 1 {
		return buildErrorf(-1, -1, "game has %d leader actions and %d types", g.NumLeaderActions(), g.NumTypes())
	}

	var total float64
	for l := 0; l < g.NumTypes(); l++ {
		total += g.Probability(l)
		if len(g.leaderPayoffs[l]) != g.NumLeaderActions() || len(g.followerPayoffs[l]) != g.NumLeaderActions() {
			return buildErrorf(l, -1, "payoff matrices do not have %d rows", g.NumLeaderActions())
		}
		m := len(g.followerPayoffs[l][0])
		if m == 0 {
			return buildErrorf(l, -1, "type has no actions")
		}
		for i := 0; i < g.NumLeaderActions(); i++ {
			if len(g.leaderPayoffs[l][i]) != m || len(g.followerPayoffs[l][i]) != m {
				return buildErrorf(l, -1, "payoff row %d does not have %d columns", i, m)
			}
		}
	}
	if math.Abs(total-1) > ProbabilityTolerance {
		return buildErrorf(-1, -1, "type probabilities sum to %v", total)
	}
	return nil
}

// addObjective sets sum_l p_l sum_ij R_l[i][j] z_l_i_j.
func (f *Formulation) addObjective() {
	g := f.game
	for l := range f.z {
		p := g.Probability(l)
		if p == 0 {
			continue
		}
		for i, row := range f.z[l] {
			for j, z := range row {
				if r := g.LeaderPayoff(l, i, j); r != 0 {
					f.Problem.AddObjective(z, p*r)
				}
			}
		}
	}
}

// addLeaderDistribution adds sum_i x_i = 1.
func (f *Formulation) addLeaderDistribution() {
	terms := make([]milp.Term, len(f.x))
	for i, x := range f.x {
		terms[i] = milp.Term{Var: x, Coef: 1}
	}
	f.Problem.AddConstraint("leader_distribution", terms, milp.Equal, 1)
}

func (f *Formulation) addTypeConstraints(l int) {
	g, p := f.game, f.Problem

	// Exactly one pure response.
	terms := make([]milp.Term, len(f.q[l]))
	for j, q := range f.q[l] {
		terms[j] = milp.Term{Var: q, Coef: 1}
	}
	p.AddConstraint(fmt.Sprintf("response_%d", l), terms, milp.Equal, 1)

	// 0 <= a_l - sum_i C_l[i][j] x_i <= (1 - q_l_j) M.
	for j, q := range f.q[l] {
		gap := []milp.Term{{Var: f.a[l], Coef: 1}}
		for i, x := range f.x {
			if c := g.FollowerPayoff(l, i, j); c != 0 {
				gap = append(gap, milp.Term{Var: x, Coef: -c})
			}
		}
		p.AddConstraint(fmt.Sprintf("best_response_lb_%d_%d", l, j), gap, milp.GreaterEq, 0)

		withIndicator := append(append([]milp.Term(nil), gap...), milp.Term{Var: q, Coef: f.BigM})
		p.AddConstraint(fmt.Sprintf("best_response_ub_%d_%d", l, j), withIndicator, milp.LessEq, f.BigM)
	}

	for i, x := range f.x {
		rowSum := make([]milp.Term, 0, len(f.z[l][i])+1)
		for j, z := range f.z[l][i] {
			addProductLink(p, fmt.Sprintf("%d_%d_%d", l, i, j), z, x, f.q[l][j])
			rowSum = append(rowSum, milp.Term{Var: z, Coef: 1})
		}
		rowSum = append(rowSum, milp.Term{Var: x, Coef: -1})
		p.AddConstraint(fmt.Sprintf("row_sum_%d_%d", l, i), rowSum, milp.Equal, 0)
	}
}

// addProductLink constrains z = x * q for x in [0, 1] and binary q.
// The lower bound z >= 0 is carried by the domain of z.
func addProductLink(p *milp.Problem, suffix string, z, x, q int) {
	p.AddConstraint("link_x_"+suffix, []milp.Term{{Var: z, Coef: 1}, {Var: x, Coef: -1}}, milp.LessEq, 0)
	p.AddConstraint("link_q_"+suffix, []milp.Term{{Var: z, Coef: 1}, {Var: q, Coef: -1}}, milp.LessEq, 0)
	p.AddConstraint("link_xq_"+suffix, []milp.Term{
		{Var: z, Coef: 1},
		{Var: x, Coef: -1},
		{Var: q, Coef: -1},
	}, milp.GreaterEq, -1)
}

// Game returns the game this formulation was built from.
func (f *Formulation) Game() *Game {
	return f.game
}

// WriteLP writes the formulation in CPLEX LP format under the given
// problem name, leaving f.Problem unchanged.
func (f *Formulation) WriteLP(w io.Writer, name string) error {
	p := *f.Problem
	p.Name = name
	return p.WriteLP(w)
}

// X returns the index of x_i.
func (f *Formulation) X(i int) int { return f.x[i] }

// Q returns the index of q_l_j.
func (f *Formulation) Q(l, j int) int { return f.q[l][j] }

// A returns the index of a_l.
func (f *Formulation) A(l int) int { return f.a[l] }

// Z returns the index of z_l_i_j.
func (f *Formulation) Z(l, i, j int) int { return f.z[l][i][j] }
