package dobss

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/timpalpant/dobss/milp"
)

// ValidationError reports a malformed or inconsistent Game. It is fixed
// by correcting the input and never retried.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return "invalid game: " + e.msg
}

func validationErrorf(format string, args ...interface{}) error {
	return errors.WithStack(&ValidationError{msg: fmt.Sprintf(format, args...)})
}

// BuildError reports a defect while constructing the MILP. Type and
// Action identify the offending follower type and action, or are -1
// when not applicable.
type BuildError struct {
	Type, Action int
	msg          string
}

func (e *BuildError) Error() string {
	switch {
	case e.Type >= 0 && e.Action >= 0:
		return fmt.Sprintf("building MILP (type %d, action %d): %s", e.Type, e.Action, e.msg)
	case e.Type >= 0:
		return fmt.Sprintf("building MILP (type %d): %s", e.Type, e.msg)
	default:
		return "building MILP: " + e.msg
	}
}

func buildErrorf(l, j int, format string, args ...interface{}) error {
	return errors.WithStack(&BuildError{Type: l, Action: j, msg: fmt.Sprintf(format, args...)})
}

// SolverError reports that the MILP engine did not find an optimum.
// Infeasible and Unbounded indicate a defect in the formulation;
// TimedOut may be retried with a larger budget.
type SolverError struct {
	Status milp.Status
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("MILP solver: %v", e.Status)
}

// Retryable returns true if resubmitting with a larger time budget
// may succeed.
func (e *SolverError) Retryable() bool {
	return e.Status == milp.TimedOut
}

// ExtractionError reports a solver assignment that violates a property
// the formulation guarantees. Type is the offending follower type, or -1.
type ExtractionError struct {
	Type int
	msg  string
}

func (e *ExtractionError) Error() string {
	if e.Type >= 0 {
		return fmt.Sprintf("extracting equilibrium (type %d): %s", e.Type, e.msg)
	}
	return "extracting equilibrium: " + e.msg
}

func extractionErrorf(l int, format string, args ...interface{}) error {
	return errors.WithStack(&ExtractionError{Type: l, msg: fmt.Sprintf(format, args...)})
}

// IsValidation returns true if err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsBuild returns true if err is, or wraps, a *BuildError.
func IsBuild(err error) bool {
	var target *BuildError
	return errors.As(err, &target)
}

// IsSolver returns true if err is, or wraps, a *SolverError.
func IsSolver(err error) bool {
	var target *SolverError
	return errors.As(err, &target)
}

// IsExtraction returns true if err is, or wraps, an *ExtractionError.
func IsExtraction(err error) bool {
	var target *ExtractionError
	return errors.As(err, &target)
}

// IsRetryable returns true if err is a SolverError that may succeed
// when retried with a larger time budget.
func IsRetryable(err error) bool {
	var target *SolverError
	return errors.As(err, &target) && target.Retryable()
}
