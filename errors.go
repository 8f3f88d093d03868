package specrun

import (
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/op-specrun/runner"
	"github.com/ethereum-optimism/infra/op-specrun/types"
)

// RuntimeError represents an operational error that should lead to exit code 2.
// Examples include configuration errors, an unreadable run plan or an
// unguarded assertion panic.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError creates a new RuntimeError
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// SpecFailureError reports a completed run in which specifications did not
// pass (exit code 1). Stability analysis sets Unstable instead of Failed.
type SpecFailureError struct {
	RunID    string
	Status   types.Status
	Total    int
	Failed   int
	Errored  int
	Unstable int
}

func (e *SpecFailureError) Error() string {
	if e.Unstable > 0 {
		return fmt.Sprintf("specification failure: %d of %d specifications are unstable", e.Unstable, e.Total)
	}
	return fmt.Sprintf("specification failure: run %s %s, %d failed and %d errored of %d",
		e.RunID, e.Status, e.Failed, e.Errored, e.Total)
}

// NewSpecFailureError summarises a run that did not pass
func NewSpecFailureError(result *runner.RunnerResult) *SpecFailureError {
	return &SpecFailureError{
		RunID:   result.RunID,
		Status:  result.Status,
		Total:   result.Stats.Total,
		Failed:  result.Stats.Failed,
		Errored: result.Stats.Errored,
	}
}

// NewStabilityFailureError summarises a stability report with unstable specifications
func NewStabilityFailureError(report *runner.StabilityReport) *SpecFailureError {
	return &SpecFailureError{
		Status:   types.StatusFail,
		Total:    len(report.Specifications),
		Unstable: len(report.Unstable()),
	}
}

// IsSpecFailureError checks if the error is or wraps a SpecFailureError
func IsSpecFailureError(err error) bool {
	var specErr *SpecFailureError
	return err != nil && errors.As(err, &specErr)
}
