// Package milp describes mixed-integer linear programs independently of
// the engine used to solve them.
package milp

import (
	"context"
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// Domain is the set of values a Variable may take.
type Domain uint8

const (
	// Continuous variables are real-valued within [Lower, Upper].
	Continuous Domain = iota
	// Free variables are real-valued and unbounded in both directions.
	Free
	// Binary variables take the value 0 or 1.
	Binary
)

var domainStr = [...]string{
	"continuous",
	"free",
	"binary",
}

func (d Domain) String() string {
	if int(d) >= len(domainStr) {
		return fmt.Sprintf("Domain(%d)", d)
	}
	return domainStr[d]
}

// Variable is a single decision variable of a Problem.
type Variable struct {
	Name   string
	Domain Domain
	// Lower and Upper bound Continuous variables. They are ignored for
	// Free and Binary variables.
	Lower, Upper float64
}

// Bounds returns the effective bounds of the variable.
func (v Variable) Bounds() (float64, float64) {
	switch v.Domain {
	case Free:
		return math.Inf(-1), math.Inf(1)
	case Binary:
		return 0, 1
	default:
		return v.Lower, v.Upper
	}
}

// Sense is the relational operator of a Constraint.
type Sense uint8

const (
	LessEq Sense = iota
	Equal
	GreaterEq
)

var senseStr = [...]string{"<=", "=", ">="}

func (s Sense) String() string {
	if int(s) >= len(senseStr) {
		return fmt.Sprintf("Sense(%d)", s)
	}
	return senseStr[s]
}

// Term is a coefficient applied to the variable with index Var.
type Term struct {
	Var  int
	Coef float64
}

// Constraint is the linear relation: sum(Terms) Sense RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Problem is a linear objective to be maximized over a set of
// variables subject to linear constraints.
type Problem struct {
	Name        string
	Variables   []Variable
	Objective   []Term
	Constraints []Constraint
}

// NewProblem returns an empty maximization problem.
func NewProblem(name string) *Problem {
	return &Problem{Name: name}
}

// AddVariable declares a new variable and returns its index.
func (p *Problem) AddVariable(v Variable) int {
	p.Variables = append(p.Variables, v)
	return len(p.Variables) - 1
}

// AddConstraint appends a constraint to the problem.
func (p *Problem) AddConstraint(name string, terms []Term, sense Sense, rhs float64) {
	p.Constraints = append(p.Constraints, Constraint{
		Name:  name,
		Terms: terms,
		Sense: sense,
		RHS:   rhs,
	})
}

// AddObjective adds coef * x[v] to the objective.
func (p *Problem) AddObjective(v int, coef float64) {
	p.Objective = append(p.Objective, Term{Var: v, Coef: coef})
}

// NumBinary returns the number of Binary variables.
func (p *Problem) NumBinary() int {
	n := 0
	for _, v := range p.Variables {
		if v.Domain == Binary {
			n++
		}
	}
	return n
}

// Validate checks that every term references a declared variable and that
// all coefficients and bounds are well formed.
func (p *Problem) Validate() error {
	nVars := len(p.Variables)
	for i, v := range p.Variables {
		if v.Domain == Continuous {
			if math.IsNaN(v.Lower) || math.IsNaN(v.Upper) || v.Lower > v.Upper {
				return errors.Errorf("variable %d (%s) has invalid bounds [%v, %v]",
					i, v.Name, v.Lower, v.Upper)
			}
		}
	}
	if err := validateTerms(p.Objective, nVars); err != nil {
		return errors.Wrap(err, "objective")
	}
	for _, c := range p.Constraints {
		if err := validateTerms(c.Terms, nVars); err != nil {
			return errors.Wrapf(err, "constraint %s", c.Name)
		}
		if math.IsNaN(c.RHS) || math.IsInf(c.RHS, 0) {
			return errors.Errorf("constraint %s has invalid right-hand side %v", c.Name, c.RHS)
		}
	}
	return nil
}

func validateTerms(terms []Term, nVars int) error {
	for _, t := range terms {
		if t.Var < 0 || t.Var >= nVars {
			return errors.Errorf("term references unknown variable %d", t.Var)
		}
		if math.IsNaN(t.Coef) || math.IsInf(t.Coef, 0) {
			return errors.Errorf("term on variable %d has invalid coefficient %v", t.Var, t.Coef)
		}
	}
	return nil
}

// Evaluate returns the objective value of the given assignment.
func (p *Problem) Evaluate(values []float64) float64 {
	return dot(p.Objective, values)
}

// Check returns an error describing the first bound, integrality or
// constraint violated by values by more than tol.
func (p *Problem) Check(values []float64, tol float64) error {
	if len(values) != len(p.Variables) {
		return errors.Errorf("assignment has %d values, problem has %d variables",
			len(values), len(p.Variables))
	}
	for i, v := range p.Variables {
		lo, hi := v.Bounds()
		if values[i] < lo-tol || values[i] > hi+tol {
			return errors.Errorf("variable %s = %v outside [%v, %v]", v.Name, values[i], lo, hi)
		}
		if v.Domain == Binary && math.Abs(values[i]-math.Round(values[i])) > tol {
			return errors.Errorf("binary variable %s = %v is fractional", v.Name, values[i])
		}
	}
	for _, c := range p.Constraints {
		lhs := dot(c.Terms, values)
		var violated bool
		switch c.Sense {
		case LessEq:
			violated = lhs > c.RHS+tol
		case GreaterEq:
			violated = lhs < c.RHS-tol
		case Equal:
			violated = math.Abs(lhs-c.RHS) > tol
		}
		if violated {
			return errors.Errorf("constraint %s violated: %v %v %v", c.Name, lhs, c.Sense, c.RHS)
		}
	}
	return nil
}

func dot(terms []Term, values []float64) float64 {
	var total float64
	for _, t := range terms {
		total += t.Coef * values[t.Var]
	}
	return total
}

// Status is the outcome reported by a Solver.
type Status uint8

const (
	Optimal Status = iota
	Infeasible
	Unbounded
	TimedOut
)

var statusStr = [...]string{
	"optimal",
	"infeasible",
	"unbounded",
	"timed out",
}

func (s Status) String() string {
	if int(s) >= len(statusStr) {
		return fmt.Sprintf("Status(%d)", s)
	}
	return statusStr[s]
}

// Solution is the result of solving a Problem. Values and Objective
// are only meaningful when Status is Optimal.
type Solution struct {
	Status    Status
	Values    []float64
	Objective float64
	// Nodes is the number of subproblems the engine explored.
	Nodes int
}

// Solver is implemented by MILP engines.
//
// Solve blocks until the problem is solved, proven infeasible or
// unbounded, or ctx expires (reported as TimedOut). A non-nil error
// indicates a failure of the engine itself.
type Solver interface {
	Solve(ctx context.Context, p *Problem) (*Solution, error)
}
