// Package types contains shared types used across the specification engine
package types

import (
	"errors"
	"time"

	"github.com/ethereum-optimism/infra/op-specrun/spec"
)

// Failure messages recorded on a RunResult, one per lifecycle stage.
const (
	MessageBeforeFailed     = "Before Failed"
	MessageOnFailed         = "On Failed"
	MessageNoWhen           = "No when on specification"
	MessageWhenFailed       = "When Failed"
	MessageAssertionsFailed = "Assertions Failed"
	MessageFinallyFailed    = "Finally failed"
)

// ErrNoOnRecorded is returned by RunResult.OnResult when the On stage never ran.
var ErrNoOnRecorded = errors.New("no On factory recorded on result")

// Status represents the possible outcomes of a specification run
type Status string

const (
	StatusPass  Status = "pass"
	StatusFail  Status = "fail"
	StatusError Status = "error"
)

// Stage identifies the lifecycle stage a failure is attributed to.
type Stage string

const (
	StageNone       Stage = ""
	StageDiscovery  Stage = "discovery"
	StageBefore     Stage = "before"
	StageOn         Stage = "on"
	StageWhen       Stage = "when"
	StageAssertions Stage = "assertions"
	StageFinally    Stage = "finally"
)

// String implements the Stringer interface for Stage
func (s Stage) String() string {
	if s == StageNone {
		return "none"
	}
	return string(s)
}

// RunResult captures the outcome of running a single specification
type RunResult struct {
	SpecificationName string
	Origin            Origin
	Passed            bool
	Message           string
	Thrown            error                    // Unwrapped cause of the failing stage
	Expectations      []spec.ExpectationResult // Declared assertion order, then yield order
	On                spec.Factory             // The On factory that produced the subject
	Result            any                      // Value produced by When, or the subject
	Stage             Stage                    // Stage the failure is attributed to
	Duration          time.Duration

	// Plan placement
	Gate  string
	Suite string
}

// Name returns the specification name, falling back to the origin member.
func (r *RunResult) Name() string {
	if r.SpecificationName != "" {
		return r.SpecificationName
	}
	return r.Origin.Identifier()
}

// OnResult invokes the recorded On factory again and returns a fresh subject.
func (r *RunResult) OnResult() (any, error) {
	if r.On == nil {
		return nil, ErrNoOnRecorded
	}
	return r.On()
}

// MarkFailure records a failed stage.
func (r *RunResult) MarkFailure(stage Stage, message string, thrown error) {
	r.Passed = false
	r.Stage = stage
	r.Message = message
	r.Thrown = thrown
}

// Status derives the run status. Discovery failures are errors: the
// specification could not be attempted at all.
func (r *RunResult) Status() Status {
	switch {
	case r.Passed:
		return StatusPass
	case r.Stage == StageDiscovery:
		return StatusError
	default:
		return StatusFail
	}
}

// FailedExpectations returns the expectations that did not pass.
func (r *RunResult) FailedExpectations() []spec.ExpectationResult {
	var failed []spec.ExpectationResult
	for _, e := range r.Expectations {
		if !e.Passed {
			failed = append(failed, e)
		}
	}
	return failed
}
