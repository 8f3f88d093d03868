// Package spec contains the data contracts for behaviour specifications:
// what a specification is, how its When action is shaped, and how assertions
// report expectations.
package spec

import (
	"errors"
	"fmt"
	"iter"
)

// ErrMissingOn is the cause recorded when a specification has no On factory.
var ErrMissingOn = errors.New("specification has no On factory")

// Action is a zero-argument lifecycle procedure (Before and Finally).
type Action func() error

// Factory produces the subject under test.
type Factory func() (any, error)

// Specification is one behaviour test case structured as
// Before/On/When/Assertions/Finally.
type Specification struct {
	Name       string              // Optional, falls back to the origin member name
	Before     Action              // Optional
	On         Factory             // Required
	When       *When               // Optional, a missing When always fails the run
	Assertions iter.Seq[Assertion] // Lazy, may be nil
	Finally    Action              // Optional
}

// Given returns a Factory that always yields v.
func Given[T any](v T) Factory {
	return func() (any, error) {
		return v, nil
	}
}

// OnFunc adapts a typed constructor into a Factory.
func OnFunc[T any](fn func() (T, error)) Factory {
	return func() (any, error) {
		return fn()
	}
}

// SubjectTypeError is returned when a typed callable receives a value of an
// unexpected dynamic type.
type SubjectTypeError struct {
	Want string
	Got  any
}

func (e *SubjectTypeError) Error() string {
	return fmt.Sprintf("subject has type %T, expected %s", e.Got, e.Want)
}

// as converts a dynamic value to T. A nil value converts to T's zero value.
func as[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, &SubjectTypeError{Want: fmt.Sprintf("%T", zero), Got: v}
	}
	return t, nil
}
