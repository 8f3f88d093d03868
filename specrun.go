package specrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/ethereum-optimism/infra/op-specrun/discovery"
	"github.com/ethereum-optimism/infra/op-specrun/logging"
	"github.com/ethereum-optimism/infra/op-specrun/registry"
	"github.com/ethereum-optimism/infra/op-specrun/runner"
	"github.com/ethereum-optimism/infra/op-specrun/service"
	"github.com/ethereum-optimism/infra/op-specrun/types"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

var _ cliapp.Lifecycle = (*Specrun)(nil)

// Specrun discovers and runs specifications, once or periodically.
type Specrun struct {
	ctx       context.Context
	config    *Config
	version   string
	registry  *registry.Registry
	runner    runner.SpecRunnerWithFileLogger
	scheduler RunScheduler
	formatter ResultFormatter
	reporter  MetricsReporter
	service   *service.Service

	mu        sync.Mutex
	result    *runner.RunnerResult
	stability *runner.StabilityReport

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New creates the service. discoverer may be nil to use discovery.Default.
func New(ctx context.Context, config *Config, version string, discoverer *discovery.Discoverer, shutdownCallback func(error)) (*Specrun, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.Out == nil {
		config.Out = os.Stdout
	}

	config.Log.Debug("Creating specrun with config",
		"plan", config.PlanFile,
		"gate", config.TargetGate,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce,
		"guardAssertions", config.GuardAssertions,
		"stability", config.Stability)

	if discoverer == nil {
		discoverer = discovery.Default
		discoverer.SetLogger(config.Log)
	}

	reg, err := registry.NewRegistry(registry.Config{
		Log:        config.Log,
		PlanFile:   config.PlanFile,
		Discoverer: discoverer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	specRunner, err := runner.NewSpecRunner(runner.Config{
		Registry:         reg,
		TargetGate:       config.TargetGate,
		Log:              config.Log,
		GuardAssertions:  config.GuardAssertions,
		ShowProgress:     config.ShowProgress,
		ProgressInterval: config.ProgressInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create spec runner: %w", err)
	}
	config.Log.Info("specrun.New: created registry and spec runner", "sources", discoverer.Len())

	return &Specrun{
		ctx:       ctx,
		config:    config,
		version:   version,
		registry:  reg,
		runner:    specRunner,
		scheduler: NewDefaultRunScheduler(config.RunInterval, config.RunOnce, config.Log),
		formatter: NewConsoleResultFormatter(config.Log, config.Out),
		reporter:  NewDefaultMetricsReporter(),
		service: service.New(config.Log, service.Config{
			HealthzAddr: config.HealthzAddr,
			Metrics:     config.Metrics,
		}),
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start runs the specifications immediately and, in continuous mode, keeps
// running them every interval.
// Start implements the cliapp.Lifecycle interface.
func (s *Specrun) Start(ctx context.Context) error {
	s.ctx = ctx

	if err := s.service.Start(ctx); err != nil {
		return NewRuntimeError(err)
	}

	if s.config.RunOnce {
		s.config.Log.Info("Starting op-specrun in run-once mode", "version", s.version)
	} else {
		s.config.Log.Info("Starting op-specrun in continuous mode", "version", s.version, "interval", s.config.RunInterval)
	}

	s.scheduler.RegisterCallback(s.runSpecifications)
	if err := s.scheduler.Start(ctx); err != nil {
		s.config.Log.Error("Runtime error running specifications", "error", err)
		return err
	}

	if !s.config.RunOnce {
		s.config.Log.Debug("op-specrun started successfully")
		return nil
	}

	if err := s.outcome(); err != nil {
		s.config.Log.Warn("Run-once run completed with failures", "exitCode", ExitCode(err), "error", err)
		return err
	}

	s.config.Log.Info("Specifications completed, exiting (run-once mode)")
	go func() {
		s.shutdownCallback(nil)
	}()
	return nil
}

// outcome converts the latest run into an error when anything did not pass.
// Stability iterations that could not complete are runtime errors.
func (s *Specrun) outcome() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if report := s.stability; report != nil {
		if err := report.Err(); err != nil {
			return NewRuntimeError(fmt.Errorf("%d of %d stability iterations failed: %w",
				report.FailedRuns, report.Iterations, err))
		}
		if len(report.Specifications) == 0 {
			return NewRuntimeError(runner.ErrNoSpecifications)
		}
		if len(report.Unstable()) > 0 {
			return NewStabilityFailureError(report)
		}
		return nil
	}
	if s.result != nil && s.result.Status != types.StatusPass {
		return NewSpecFailureError(s.result)
	}
	return nil
}

// runSpecifications performs one run and reports its results
func (s *Specrun) runSpecifications() error {
	runID := uuid.New().String()

	if s.config.Stability {
		return s.runStability(runID)
	}

	fileLogger, err := logging.NewFileLogger(s.config.LogDir, runID)
	if err != nil {
		return NewRuntimeError(fmt.Errorf("failed to create file logger: %w", err))
	}
	s.runner.SetFileLogger(fileLogger)

	s.config.Log.Info("Running all specifications...", "run_id", runID)
	result, err := s.runner.RunAll(s.ctx)
	if err != nil {
		if cerr := fileLogger.Complete(runID); cerr != nil {
			s.config.Log.Error("Failed to complete file logger", "error", cerr)
		}
		s.config.Log.Error("Runtime error running specifications", "error", err)
		return NewRuntimeError(err)
	}

	rendered, err := s.formatter.FormatResults(result)
	if err != nil {
		s.config.Log.Error("Failed to format results", "error", err)
	} else if err := fileLogger.LogTable(rendered, runID); err != nil {
		s.config.Log.Error("Failed to write results table", "error", err)
	}
	if err := fileLogger.Complete(runID); err != nil {
		s.config.Log.Error("Failed to complete file logger", "error", err)
	}
	s.reporter.ReportResults(runID, result)

	s.mu.Lock()
	s.result = result
	s.mu.Unlock()

	s.config.Log.Info("Specification run completed", "run_id", runID, "status", result.Status,
		"logs", fileLogger.GetBaseDir())
	return nil
}

// runStability repeats the run and saves the stability report
func (s *Specrun) runStability(runID string) error {
	s.runner.SetFileLogger(nil)

	stability := runner.NewStabilityRunner(s.runner, s.config.StabilityIterations, s.config.Log)
	report, err := stability.Run(s.ctx, s.config.TargetGate)
	if err != nil {
		return NewRuntimeError(err)
	}

	dir := filepath.Join(s.config.LogDir, logging.RunDirectoryPrefix+runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return NewRuntimeError(fmt.Errorf("failed to create report directory: %w", err))
	}
	saved, err := runner.SaveStabilityReport(report, dir)
	if err != nil {
		s.config.Log.Error("Failed to save stability report", "error", err)
	}

	s.mu.Lock()
	s.stability = report
	s.mu.Unlock()

	s.config.Log.Info("Stability analysis completed", "specifications", len(report.Specifications),
		"unstable", len(report.Unstable()), "failedRuns", report.FailedRuns, "reports", saved)
	return nil
}

// Result returns the most recent run result, or nil before the first run.
func (s *Specrun) Result() *runner.RunnerResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// LastRun returns the scheduler's record of the most recent run.
func (s *Specrun) LastRun() RunRecord {
	return s.scheduler.LastRun()
}

// StabilityReport returns the stability report when running in stability mode.
func (s *Specrun) StabilityReport() *runner.StabilityReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stability
}

// Stop stops the op-specrun service.
// Stop implements the cliapp.Lifecycle interface.
func (s *Specrun) Stop(ctx context.Context) error {
	s.config.Log.Info("Stopping op-specrun")

	var result error
	if err := s.scheduler.Stop(); err != nil {
		result = errors.Join(result, fmt.Errorf("failed to stop scheduler: %w", err))
	}
	if err := s.service.Shutdown(ctx); err != nil {
		result = errors.Join(result, fmt.Errorf("failed to stop service: %w", err))
	}

	s.config.Log.Info("op-specrun stopped")
	return result
}

// Stopped returns true if the op-specrun service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (s *Specrun) Stopped() bool {
	return s.scheduler.Stopped()
}

// WaitForShutdown blocks until all goroutines have terminated.
func (s *Specrun) WaitForShutdown(ctx context.Context) error {
	return s.scheduler.WaitForShutdown(ctx)
}
