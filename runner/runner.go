package runner

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/ethereum-optimism/infra/op-specrun/metrics"
	"github.com/ethereum-optimism/infra/op-specrun/spec"
	"github.com/ethereum-optimism/infra/op-specrun/types"
	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Runner executes one specification at a time through its lifecycle
type Runner struct {
	log             log.Logger
	tracer          trace.Tracer
	guardAssertions bool
}

// Options configures a Runner
type Options struct {
	Log log.Logger

	// GuardAssertions captures a panic raised while evaluating assertions into
	// the result. Without it the panic propagates out of Run.
	GuardAssertions bool
}

// New creates a runner
func New(opts Options) *Runner {
	if opts.Log == nil {
		opts.Log = log.New()
		opts.Log.Error("No logger provided, using default")
	}
	return &Runner{
		log:             opts.Log,
		tracer:          otel.Tracer("specification runner"),
		guardAssertions: opts.GuardAssertions,
	}
}

// stageOutcome is threaded from one lifecycle stage to the next
type stageOutcome struct {
	stage   types.Stage
	message string
	err     error
}

func (o *stageOutcome) failed() bool {
	return o != nil
}

// Run executes the specification and returns its result. Failures in every
// stage are captured into the result; only an unguarded assertion panic
// escapes.
func (r *Runner) Run(ctx context.Context, item types.SpecificationToRun) *types.RunResult {
	_, span := r.tracer.Start(ctx, fmt.Sprintf("specification %s", item.Name()))
	defer span.End()

	start := time.Now()
	result := &types.RunResult{
		SpecificationName: item.Name(),
		Origin:            item.Origin,
	}

	if !item.Runnable {
		result.MarkFailure(types.StageDiscovery, item.Reason, item.Err)
	} else {
		r.execute(item.Specification, result)
	}

	result.Duration = time.Since(start)
	r.record(span, result)
	return result
}

// execute runs the lifecycle stages in order, stopping at the first failure
// before the assertions. Finally runs whenever the assertions were reached.
func (r *Runner) execute(s *spec.Specification, result *types.RunResult) {
	if out := before(s); out.failed() {
		result.MarkFailure(out.stage, out.message, out.err)
		return
	}

	subject, out := on(s)
	if out.failed() {
		result.MarkFailure(out.stage, out.message, out.err)
		return
	}
	result.On = s.On

	if s.When == nil {
		// A missing When is a definitional failure, not an error
		result.On = nil
		result.MarkFailure(types.StageWhen, types.MessageNoWhen, nil)
		return
	}

	post, out := when(s.When, subject)
	if out.failed() {
		result.MarkFailure(out.stage, out.message, out.err)
		return
	}
	result.Result = post

	passed, out := r.assert(s.Assertions, post, result)
	result.Passed = passed
	if out.failed() {
		result.MarkFailure(out.stage, out.message, out.err)
	}

	if out := finally(s); out.failed() {
		result.MarkFailure(out.stage, out.message, out.err)
	}
}

func before(s *spec.Specification) *stageOutcome {
	if s.Before == nil {
		return nil
	}
	if err := guard(func() error { return s.Before() }); err != nil {
		return &stageOutcome{stage: types.StageBefore, message: types.MessageBeforeFailed, err: err}
	}
	return nil
}

func on(s *spec.Specification) (any, *stageOutcome) {
	if s.On == nil {
		return nil, &stageOutcome{stage: types.StageOn, message: types.MessageOnFailed, err: spec.ErrMissingOn}
	}
	var subject any
	err := guard(func() error {
		var err error
		subject, err = s.On()
		return err
	})
	if err != nil {
		return nil, &stageOutcome{stage: types.StageOn, message: types.MessageOnFailed, err: err}
	}
	return subject, nil
}

// when invokes the action and returns the context for the assertions: the
// produced value, or the subject when the action produces nothing.
func when(w *spec.When, subject any) (any, *stageOutcome) {
	var produced any
	err := guard(func() error {
		var err error
		produced, err = w.Invoke(subject)
		return err
	})
	if err != nil {
		return nil, &stageOutcome{stage: types.StageWhen, message: types.MessageWhenFailed, err: err}
	}
	if w.ProducesValue() {
		return produced, nil
	}
	return subject, nil
}

// assert evaluates every assertion in declared order and appends each yielded
// expectation to the result. Nil assertions and nil expectation sequences
// yield nothing.
func (r *Runner) assert(assertions iter.Seq[spec.Assertion], post any, result *types.RunResult) (passed bool, out *stageOutcome) {
	if r.guardAssertions {
		defer func() {
			if rec := recover(); rec != nil {
				passed = false
				out = &stageOutcome{stage: types.StageAssertions, message: types.MessageAssertionsFailed, err: types.CauseFromPanic(rec)}
			}
		}()
	}

	passed = true
	if assertions == nil {
		return passed, nil
	}
	for assertion := range assertions {
		if assertion == nil {
			continue
		}
		expectations := assertion.Assert(post)
		if expectations == nil {
			continue
		}
		for expectation := range expectations {
			result.Expectations = append(result.Expectations, expectation)
			if !expectation.Passed {
				passed = false
			}
		}
	}
	return passed, nil
}

func finally(s *spec.Specification) *stageOutcome {
	if s.Finally == nil {
		return nil
	}
	if err := guard(func() error { return s.Finally() }); err != nil {
		return &stageOutcome{stage: types.StageFinally, message: types.MessageFinallyFailed, err: err}
	}
	return nil
}

// guard calls fn and converts a panic into its cause
func guard(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = types.CauseFromPanic(rec)
		}
	}()
	return fn()
}

func (r *Runner) record(span trace.Span, result *types.RunResult) {
	span.SetAttributes(
		attribute.String("specification.origin", result.Origin.ID()),
		attribute.String("specification.status", string(result.Status())),
		attribute.Int("specification.expectations", len(result.Expectations)),
	)

	var failedExpectations int
	for _, e := range result.Expectations {
		if !e.Passed {
			failedExpectations++
		}
	}
	metrics.RecordExpectations(len(result.Expectations)-failedExpectations, failedExpectations)

	if result.Passed {
		r.log.Debug("Specification passed", "name", result.Name(), "origin", result.Origin.ID(), "duration", result.Duration)
		return
	}

	if result.Thrown != nil {
		span.RecordError(result.Thrown)
	}
	span.SetStatus(codes.Error, result.Message)
	if result.Stage != types.StageNone {
		metrics.RecordStageFailure(result.Stage)
	}
	r.log.Debug("Specification failed", "name", result.Name(), "origin", result.Origin.ID(),
		"stage", result.Stage, "message", result.Message, "err", result.Thrown,
		"failedExpectations", failedExpectations)
}
