package bnb

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/timpalpant/dobss/milp"
)

// feasibilityTolerance is used when a constraint loses all of its
// variables after fixing and must be checked directly.
const feasibilityTolerance = 1e-9

type relaxation struct {
	status    milp.Status
	values    []float64
	objective float64
}

// solveRelaxation solves the LP relaxation of p with variable bounds
// replaced by lower and upper.
func solveRelaxation(p *milp.Problem, lower, upper []float64, tol float64) (relaxation, error) {
	lr, err := newLinearization(p, lower, upper)
	if err != nil {
		return relaxation{}, err
	}
	if lr.status != milp.Optimal {
		return relaxation{status: lr.status}, nil
	}

	status, x, err := lr.solve(tol, false)
	if err == lp.ErrSingular {
		// Dependent equality rows: retry with each equality as a pair of
		// inequalities, which keeps the constraint matrix full rank.
		status, x, err = lr.solve(tol, true)
	}
	if err != nil {
		return relaxation{}, err
	}
	if status != milp.Optimal {
		return relaxation{status: status}, nil
	}

	values := lr.expand(x)
	return relaxation{
		status:    milp.Optimal,
		values:    values,
		objective: p.Evaluate(values),
	}, nil
}

// linearization is a Problem rewritten over its non-fixed variables in
// the general form accepted by lp.Convert:
//
//	minimize  c^T x
//	s.t.      G x <= h
//	          A x  = b
type linearization struct {
	status milp.Status
	nVars  int
	// active maps LP column to problem variable.
	active []int
	// fixed holds the value of every variable not in active.
	fixed        []float64
	lower, upper []float64

	c []float64
	g [][]float64
	h []float64
	a [][]float64
	b []float64
}

func newLinearization(p *milp.Problem, lower, upper []float64) (*linearization, error) {
	nVars := len(p.Variables)
	lr := &linearization{
		status: milp.Optimal,
		nVars:  nVars,
		fixed:  make([]float64, nVars),
		lower:  lower,
		upper:  upper,
	}

	inConstraint := make([]bool, nVars)
	for _, c := range p.Constraints {
		for _, t := range c.Terms {
			if t.Coef != 0 {
				inConstraint[t.Var] = true
			}
		}
	}
	objCoef := make([]float64, nVars)
	for _, t := range p.Objective {
		objCoef[t.Var] += t.Coef
	}

	column := make([]int, nVars)
	for i := 0; i < nVars; i++ {
		column[i] = -1
		lo, hi := lower[i], upper[i]
		switch {
		case lo > hi:
			lr.status = milp.Infeasible
			return lr, nil
		case lo == hi:
			lr.fixed[i] = lo
		case !inConstraint[i] && math.IsInf(lo, -1) && math.IsInf(hi, 1):
			if objCoef[i] != 0 {
				lr.status = milp.Unbounded
				return lr, nil
			}
		case !inConstraint[i] && objCoef[i] > 0 && !math.IsInf(hi, 1):
			lr.fixed[i] = hi
		case !inConstraint[i] && objCoef[i] < 0 && !math.IsInf(lo, -1):
			lr.fixed[i] = lo
		case !inConstraint[i] && (math.IsInf(hi, 1) && objCoef[i] > 0 || math.IsInf(lo, -1) && objCoef[i] < 0):
			lr.status = milp.Unbounded
			return lr, nil
		case !inConstraint[i] && objCoef[i] == 0:
			lr.fixed[i] = clamp(0, lo, hi)
		default:
			column[i] = len(lr.active)
			lr.active = append(lr.active, i)
		}
	}

	nCols := len(lr.active)
	// The LP minimizes, the problem maximizes.
	lr.c = make([]float64, nCols)
	for k, v := range lr.active {
		lr.c[k] = -objCoef[v]
	}

	for _, c := range p.Constraints {
		row := make([]float64, nCols)
		rhs := c.RHS
		nonZero := false
		for _, t := range c.Terms {
			if col := column[t.Var]; col >= 0 {
				row[col] += t.Coef
			} else {
				rhs -= t.Coef * lr.fixed[t.Var]
			}
		}
		for _, v := range row {
			if v != 0 {
				nonZero = true
				break
			}
		}

		if !nonZero {
			if !satisfied(0, c.Sense, rhs) {
				lr.status = milp.Infeasible
				return lr, nil
			}
			continue
		}

		switch c.Sense {
		case milp.LessEq:
			lr.g = append(lr.g, row)
			lr.h = append(lr.h, rhs)
		case milp.GreaterEq:
			for k := range row {
				row[k] = -row[k]
			}
			lr.g = append(lr.g, row)
			lr.h = append(lr.h, -rhs)
		case milp.Equal:
			lr.a = append(lr.a, row)
			lr.b = append(lr.b, rhs)
		default:
			return nil, errors.Errorf("constraint %s has unknown sense %v", c.Name, c.Sense)
		}
	}

	for k, v := range lr.active {
		if lo := lower[v]; !math.IsInf(lo, -1) {
			row := make([]float64, nCols)
			row[k] = -1
			lr.g = append(lr.g, row)
			lr.h = append(lr.h, -lo)
		}
		if hi := upper[v]; !math.IsInf(hi, 1) {
			row := make([]float64, nCols)
			row[k] = 1
			lr.g = append(lr.g, row)
			lr.h = append(lr.h, hi)
		}
	}

	return lr, nil
}

// solve runs the simplex method and returns the optimal values of the
// active columns.
func (lr *linearization) solve(tol float64, splitEqualities bool) (milp.Status, []float64, error) {
	nCols := len(lr.active)
	if nCols == 0 {
		return milp.Optimal, nil, nil
	}

	gRows, h := lr.g, lr.h
	aRows, b := lr.a, lr.b
	if splitEqualities {
		gRows = append([][]float64(nil), gRows...)
		h = append([]float64(nil), h...)
		for i, row := range aRows {
			neg := make([]float64, len(row))
			for k, v := range row {
				neg[k] = -v
			}
			gRows = append(gRows, row, neg)
			h = append(h, b[i], -b[i])
		}
		aRows, b = nil, nil
	}

	var g, a mat.Matrix
	if len(gRows) > 0 {
		g = denseFromRows(gRows, nCols)
	}
	if len(aRows) > 0 {
		a = denseFromRows(aRows, nCols)
	}

	cNew, aNew, bNew := lp.Convert(lr.c, g, h, a, b)
	_, xNew, err := lp.Simplex(cNew, aNew, bNew, tol, nil)
	switch err {
	case nil:
	case lp.ErrInfeasible:
		return milp.Infeasible, nil, nil
	case lp.ErrUnbounded:
		return milp.Unbounded, nil, nil
	case lp.ErrSingular:
		return 0, nil, err
	default:
		return 0, nil, errors.Wrap(err, "simplex")
	}

	// lp.Convert splits every variable into positive and negative parts:
	// x = xNew[:n] - xNew[n:2n].
	x := make([]float64, nCols)
	for k := range x {
		x[k] = xNew[k] - xNew[nCols+k]
	}
	return milp.Optimal, x, nil
}

// expand maps the LP solution back onto every problem variable,
// snapping simplex noise back inside the variable bounds.
func (lr *linearization) expand(x []float64) []float64 {
	values := make([]float64, lr.nVars)
	copy(values, lr.fixed)
	for k, v := range lr.active {
		values[v] = clamp(x[k], lr.lower[v], lr.upper[v])
	}
	return values
}

func denseFromRows(rows [][]float64, nCols int) *mat.Dense {
	data := make([]float64, 0, len(rows)*nCols)
	for _, row := range rows {
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), nCols, data)
}

func satisfied(lhs float64, sense milp.Sense, rhs float64) bool {
	switch sense {
	case milp.LessEq:
		return lhs <= rhs+feasibilityTolerance
	case milp.GreaterEq:
		return lhs >= rhs-feasibilityTolerance
	default:
		return math.Abs(lhs-rhs) <= feasibilityTolerance
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
