package spec

import (
	"iter"
	"slices"
)

// ExpectationResult is the outcome of one atomic assertion check.
type ExpectationResult struct {
	Passed     bool   `json:"passed"`
	Text       string `json:"text"`
	Err        error  `json:"-"`
	Expression string `json:"expression,omitempty"` // Symbolic reference to the checked expression
}

// Assertion evaluates against the post-action context and yields expectations.
type Assertion interface {
	Assert(context any) iter.Seq[ExpectationResult]
}

// AssertionFunc adapts a function to the Assertion interface.
type AssertionFunc func(context any) iter.Seq[ExpectationResult]

// Assert implements Assertion.
func (f AssertionFunc) Assert(context any) iter.Seq[ExpectationResult] {
	if f == nil {
		return nil
	}
	return f(context)
}

// All returns the given assertions as an ordered sequence.
func All(assertions ...Assertion) iter.Seq[Assertion] {
	return slices.Values(assertions)
}

// That yields a single expectation that passes when check returns true.
func That[T any](text string, check func(T) bool) Assertion {
	return AssertionFunc(func(context any) iter.Seq[ExpectationResult] {
		return func(yield func(ExpectationResult) bool) {
			v, err := as[T](context)
			if err != nil {
				yield(ExpectationResult{Text: text, Err: err, Expression: text})
				return
			}
			yield(ExpectationResult{Passed: check(v), Text: text, Expression: text})
		}
	})
}

// Check yields a single expectation that passes when check returns nil. The
// returned error is attached to the expectation.
func Check[T any](text string, check func(T) error) Assertion {
	return AssertionFunc(func(context any) iter.Seq[ExpectationResult] {
		return func(yield func(ExpectationResult) bool) {
			v, err := as[T](context)
			if err == nil {
				err = check(v)
			}
			yield(ExpectationResult{Passed: err == nil, Text: text, Err: err, Expression: text})
		}
	})
}
