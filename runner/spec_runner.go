package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum-optimism/infra/op-specrun/logging"
	"github.com/ethereum-optimism/infra/op-specrun/metrics"
	"github.com/ethereum-optimism/infra/op-specrun/registry"
	"github.com/ethereum-optimism/infra/op-specrun/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// SpecRunner runs every specification of a run plan
type SpecRunner interface {
	RunAll(ctx context.Context) (*RunnerResult, error)
}

// SpecRunnerWithFileLogger extends SpecRunner with a method to set the file
// logger after creation
type SpecRunnerWithFileLogger interface {
	SpecRunner
	SetFileLogger(logger *logging.FileLogger)
}

// Config holds configuration for creating a new spec runner
type Config struct {
	Registry         *registry.Registry
	TargetGate       string // Runs every gate when empty
	Log              log.Logger
	FileLogger       *logging.FileLogger
	GuardAssertions  bool
	ShowProgress     bool
	ProgressInterval time.Duration
}

type specRunner struct {
	registry         *registry.Registry
	targetGate       string
	log              log.Logger
	runner           *Runner
	collector        ResultCollector
	fileLogger       *logging.FileLogger
	showProgress     bool
	progressInterval time.Duration
	tracer           trace.Tracer
}

var _ SpecRunnerWithFileLogger = (*specRunner)(nil)

// NewSpecRunner creates a new spec runner instance
func NewSpecRunner(cfg Config) (SpecRunnerWithFileLogger, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	if cfg.TargetGate != "" {
		found := false
		for _, gate := range cfg.Registry.Gates() {
			if gate.ID == cfg.TargetGate {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("gate %s not found in plan", cfg.TargetGate)
		}
	}

	cfg.Log.Debug("NewSpecRunner()", "targetGate", cfg.TargetGate, "guardAssertions", cfg.GuardAssertions,
		"showProgress", cfg.ShowProgress)

	return &specRunner{
		registry:         cfg.Registry,
		targetGate:       cfg.TargetGate,
		log:              cfg.Log,
		runner:           New(Options{Log: cfg.Log, GuardAssertions: cfg.GuardAssertions}),
		collector:        NewResultCollector(),
		fileLogger:       cfg.FileLogger,
		showProgress:     cfg.ShowProgress,
		progressInterval: cfg.ProgressInterval,
		tracer:           otel.Tracer("spec runner"),
	}, nil
}

// SetFileLogger sets the file logger for the runner
func (r *specRunner) SetFileLogger(logger *logging.FileLogger) {
	r.fileLogger = logger
}

// gatePlan is the planned work of one gate, suites first
type gatePlan struct {
	id         string
	suiteOrder []string
	suites     map[string][]types.PlannedSpecification
	direct     []types.PlannedSpecification
}

func (g *gatePlan) total() int {
	n := len(g.direct)
	for _, s := range g.suites {
		n += len(s)
	}
	return n
}

func groupByGate(planned []types.PlannedSpecification) []*gatePlan {
	var gates []*gatePlan
	byID := make(map[string]*gatePlan)
	for _, p := range planned {
		g, ok := byID[p.Gate]
		if !ok {
			g = &gatePlan{id: p.Gate, suites: make(map[string][]types.PlannedSpecification)}
			byID[p.Gate] = g
			gates = append(gates, g)
		}
		if p.Suite == "" {
			g.direct = append(g.direct, p)
			continue
		}
		if _, ok := g.suites[p.Suite]; !ok {
			g.suiteOrder = append(g.suiteOrder, p.Suite)
		}
		g.suites[p.Suite] = append(g.suites[p.Suite], p)
	}
	return gates
}

// RunAll discovers and runs every planned specification. Discovery happens
// afresh on every call.
func (r *specRunner) RunAll(ctx context.Context) (*RunnerResult, error) {
	var runID string
	if r.fileLogger != nil {
		runID = r.fileLogger.GetRunID()
	} else {
		runID = uuid.New().String()
	}
	r.log.Debug("Running all specifications", "run_id", runID)

	var planned []types.PlannedSpecification
	if r.targetGate != "" {
		planned = r.registry.PlanGate(r.targetGate)
	} else {
		planned = r.registry.Plan()
	}
	if len(planned) == 0 {
		return nil, ErrNoSpecifications
	}

	progress := NewNoOpProgressIndicator()
	if r.showProgress {
		progress = NewConsoleProgressIndicator(r.log, r.progressInterval)
	}
	defer progress.Stop()

	result := r.collector.NewRunResult(runID)
	for _, gate := range groupByGate(planned) {
		if err := r.processGate(ctx, gate, result, progress); err != nil {
			return nil, fmt.Errorf("processing gate %s: %w", gate.id, err)
		}
	}

	r.collector.FinalizeResults(result)
	r.describeGates(result)

	return result, nil
}

// processGate runs the suites of a gate and then its direct specifications
func (r *specRunner) processGate(ctx context.Context, gate *gatePlan, result *RunnerResult, progress ProgressIndicator) error {
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("gate %s", gate.id))
	defer span.End()

	progress.StartGate(gate.id, gate.total())
	defer progress.CompleteGate(gate.id)

	for _, suiteID := range gate.suiteOrder {
		if err := r.processSuite(ctx, suiteID, gate.suites[suiteID], result, progress); err != nil {
			return fmt.Errorf("processing suite %s: %w", suiteID, err)
		}
	}

	for _, p := range gate.direct {
		if err := r.processSpecification(ctx, p, result, progress); err != nil {
			return err
		}
	}
	return nil
}

func (r *specRunner) processSuite(ctx context.Context, suiteID string, planned []types.PlannedSpecification, result *RunnerResult, progress ProgressIndicator) error {
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("suite %s", suiteID))
	defer span.End()

	progress.StartSuite(suiteID, len(planned))
	defer progress.CompleteSuite(suiteID)

	for _, p := range planned {
		if err := r.processSpecification(ctx, p, result, progress); err != nil {
			return err
		}
	}
	return nil
}

// processSpecification runs one specification and adds its result to the run
func (r *specRunner) processSpecification(ctx context.Context, p types.PlannedSpecification, result *RunnerResult, progress ProgressIndicator) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted before %s: %w", p.Name(), err)
	}

	progress.StartSpecification(p.Name())
	res, err := r.runSpecification(ctx, p)
	if err != nil {
		return err
	}
	progress.CompleteSpecification(res.Name(), res.Status())

	r.collector.AddResult(result, res)
	metrics.RecordSpecification(result.RunID, res.Gate, res.Origin.ID(), res.Status(), res.Duration)

	if r.fileLogger != nil {
		if err := r.fileLogger.LogResult(res, result.RunID); err != nil {
			r.log.Error("Failed to log specification result", "name", res.Name(), "error", err)
		}
	}
	return nil
}

// runSpecification turns a panic escaping Run into an UnguardedAssertionError
func (r *specRunner) runSpecification(ctx context.Context, p types.PlannedSpecification) (res *types.RunResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			cause := types.CauseFromPanic(rec)
			metrics.RecordErrorDetails("assertions", cause)
			r.log.Error("Assertion evaluation panicked", "name", p.Name(), "origin", p.Origin.ID(), "error", cause)
			err = &UnguardedAssertionError{Name: p.Name(), Origin: p.Origin.ID(), Cause: cause}
		}
	}()

	res = r.runner.Run(ctx, p.SpecificationToRun)
	res.Gate = p.Gate
	res.Suite = p.Suite
	return res, nil
}

// describeGates copies gate and suite descriptions from the plan
func (r *specRunner) describeGates(result *RunnerResult) {
	for _, cfg := range r.registry.Gates() {
		gate, ok := result.Gates[cfg.ID]
		if !ok {
			continue
		}
		if cfg.Description != "" {
			gate.Description = cfg.Description
		}
		gate.Inherited = cfg.Inherits
		for id, suiteCfg := range cfg.Suites {
			if suite, ok := gate.Suites[id]; ok && suiteCfg.Description != "" {
				suite.Description = suiteCfg.Description
			}
		}
	}
}
