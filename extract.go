package dobss

import (
	"math"

	"github.com/golang/glog"

	"github.com/timpalpant/dobss/matrixgame"
	"github.com/timpalpant/dobss/milp"
)

const (
	// ExtractionTolerance is the numerical noise accepted on solver values
	// of the leader strategy and the response indicators.
	ExtractionTolerance = 1e-5
	// ObjectiveTolerance is the relative error accepted between the
	// recomputed leader utility and the solver objective.
	ObjectiveTolerance = 1e-4
)

// Extract decodes a solver assignment into an Equilibrium and verifies it
// against the game independently of the solver.
func (f *Formulation) Extract(sol *milp.Solution) (*Equilibrium, error) {
	if sol == nil {
		return nil, extractionErrorf(-1, "nil solution")
	}
	if sol.Status != milp.Optimal {
		return nil, &SolverError{Status: sol.Status}
	}
	if len(sol.Values) != len(f.Problem.Variables) {
		return nil, extractionErrorf(-1, "assignment has %d values, formulation has %d variables",
			len(sol.Values), len(f.Problem.Variables))
	}

	x, err := f.extractStrategy(sol.Values)
	if err != nil {
		return nil, err
	}

	g := f.game
	responses := make([]int, g.NumTypes())
	for l := range responses {
		if responses[l], err = f.extractResponse(sol.Values, l); err != nil {
			return nil, err
		}
	}

	if err := f.checkBestResponses(x, responses); err != nil {
		return nil, err
	}

	leaderUtility := g.ExpectedLeaderUtility(x, responses)
	relErr := math.Abs(leaderUtility-sol.Objective) / math.Max(1, math.Abs(sol.Objective))
	if relErr > ObjectiveTolerance {
		return nil, extractionErrorf(-1, "recomputed leader utility %v differs from solver objective %v",
			leaderUtility, sol.Objective)
	}

	followerUtilities := make([]float64, g.NumTypes())
	followerValues := make([]float64, g.NumTypes())
	for l, j := range responses {
		followerUtilities[l] = g.FollowerUtilities(x, l)[j]
		followerValues[l] = sol.Values[f.a[l]]
	}

	glog.V(1).Infof("Extracted leader strategy %v, responses %v, leader utility %v (solver objective %v)",
		x, responses, leaderUtility, sol.Objective)
	return &Equilibrium{
		strategy:          MixedStrategy{p: x},
		responses:         responses,
		leaderUtility:     leaderUtility,
		followerUtilities: followerUtilities,
		followerValues:    followerValues,
		solverObjective:   sol.Objective,
		nodes:             sol.Nodes,
	}, nil
}

// extractStrategy reads x, clamping small negative noise to zero and
// renormalizing to sum to 1.
func (f *Formulation) extractStrategy(values []float64) ([]float64, error) {
	x := make([]float64, len(f.x))
	var total float64
	for i, idx := range f.x {
		v := values[idx]
		if math.IsNaN(v) || v < -ExtractionTolerance || v > 1+ExtractionTolerance {
			return nil, extractionErrorf(-1, "leader probability x_%d = %v outside [0, 1]", i, v)
		}
		x[i] = math.Max(0, v)
		total += x[i]
	}

	if math.Abs(total-1) > ExtractionTolerance*float64(len(x)) {
		return nil, extractionErrorf(-1, "leader strategy sums to %v", total)
	}
	for i := range x {
		x[i] /= total
	}
	return x, nil
}

// extractResponse returns the unique j with q_l_j = 1.
func (f *Formulation) extractResponse(values []float64, l int) (int, error) {
	selected := -1
	for j, idx := range f.q[l] {
		v := values[idx]
		switch {
		case math.Abs(v-1) <= ExtractionTolerance:
			if selected >= 0 {
				return -1, extractionErrorf(l, "both actions %d and %d selected", selected, j)
			}
			selected = j
		case math.Abs(v) <= ExtractionTolerance:
		default:
			return -1, extractionErrorf(l, "response indicator q_%d_%d = %v is not binary", l, j, v)
		}
	}

	if selected < 0 {
		return -1, extractionErrorf(l, "no action selected")
	}
	return selected, nil
}

// checkBestResponses verifies that each response is a best response to x.
// An indicator within ExtractionTolerance of 1 relaxes the big-M row by up
// to ExtractionTolerance * M, which bounds the slack accepted here.
func (f *Formulation) checkBestResponses(x []float64, responses []int) error {
	slack := ExtractionTolerance * math.Max(1, f.BigM)
	for l, j := range responses {
		utilities := f.game.FollowerUtilities(x, l)
		best, bestIdx := matrixgame.ArgMax(utilities)
		if utilities[j] < best-slack {
			return extractionErrorf(l, "action %d (payoff %v) is not a best response: action %d has payoff %v",
				j, utilities[j], bestIdx, best)
		}
	}
	return nil
}
