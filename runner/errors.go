package runner

import (
	"errors"
	"fmt"
)

// ErrNoSpecifications is returned when the run plan selects nothing to run
var ErrNoSpecifications = errors.New("no specifications found")

// UnguardedAssertionError reports a panic raised while evaluating the
// assertions of a specification when assertions are not guarded. It aborts
// the run it occurred in.
type UnguardedAssertionError struct {
	Name   string
	Origin string
	Cause  error
}

func (e *UnguardedAssertionError) Error() string {
	return fmt.Sprintf("assertion evaluation of %s (%s) panicked: %v", e.Name, e.Origin, e.Cause)
}

func (e *UnguardedAssertionError) Unwrap() error {
	return e.Cause
}
