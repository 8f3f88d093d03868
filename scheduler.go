package specrun

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-specrun/metrics"
)

// RunScheduler decides when specification runs happen.
type RunScheduler interface {
	Start(ctx context.Context) error
	Stop() error
	RegisterCallback(func() error)
	WaitForShutdown(ctx context.Context) error
	Stopped() bool
	LastRun() RunRecord
}

// RunRecord describes the most recent scheduled run.
type RunRecord struct {
	Runs     int // Runs started since Start
	Skipped  int // Ticks dropped because a run overran the interval
	Started  time.Time
	Duration time.Duration
	Err      error
}

// DefaultRunScheduler runs the callback once on start and then, unless in
// run-once mode, every interval until stopped. Runs never overlap: a run that
// takes longer than the interval drops the ticks it missed and the next run
// starts a full interval after it finished.
type DefaultRunScheduler struct {
	interval time.Duration
	runOnce  bool
	logger   log.Logger
	callback func() error

	mu   sync.Mutex
	last RunRecord

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

var _ RunScheduler = (*DefaultRunScheduler)(nil)

// NewDefaultRunScheduler creates a new DefaultRunScheduler.
func NewDefaultRunScheduler(interval time.Duration, runOnce bool, logger log.Logger) *DefaultRunScheduler {
	return &DefaultRunScheduler{
		interval: interval,
		runOnce:  runOnce,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// RegisterCallback registers the callback to be called when specifications should run.
func (s *DefaultRunScheduler) RegisterCallback(callback func() error) {
	s.callback = callback
}

// Start runs the callback immediately. In continuous mode it then keeps
// running it every interval in the background; errors from those later runs
// are logged and counted in the error metrics.
func (s *DefaultRunScheduler) Start(ctx context.Context) error {
	if s.callback == nil {
		return errors.New("callback must be registered before starting scheduler")
	}

	s.done = make(chan struct{})
	s.running.Store(true)
	s.mu.Lock()
	s.last = RunRecord{}
	s.mu.Unlock()

	if s.runOnce {
		s.logger.Info("Starting scheduler in run-once mode")
		return s.run()
	}

	s.logger.Info("Starting scheduler in continuous mode", "interval", s.interval)

	if err := s.run(); err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Debug("Starting periodic run goroutine", "interval", s.interval)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if !s.running.Load() {
					s.logger.Debug("Scheduler stopped, exiting periodic runs")
					return
				}

				s.logger.Info("Running periodic specifications")
				if err := s.run(); err != nil {
					s.logger.Error("Error running periodic specifications", "error", err)
					metrics.RecordErrorDetails("scheduled_run", err)
				}

				if last := s.LastRun(); last.Duration > s.interval {
					s.skip()
					s.logger.Warn("Specification run overran the interval, skipping missed runs",
						"duration", last.Duration, "interval", s.interval)
					ticker.Reset(s.interval)
				}

			case <-s.done:
				s.logger.Debug("Done signal received, stopping periodic runs")
				return

			case <-ctx.Done():
				s.logger.Debug("Context canceled, stopping periodic runs")
				s.running.Store(false)
				return
			}
		}
	}()

	return nil
}

// run invokes the callback and records its outcome
func (s *DefaultRunScheduler) run() error {
	started := time.Now()
	err := s.callback()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last.Runs++
	s.last.Started = started
	s.last.Duration = time.Since(started)
	s.last.Err = err
	return err
}

func (s *DefaultRunScheduler) skip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last.Skipped++
}

// LastRun returns the record of the most recent run. Runs is zero before the
// first run.
func (s *DefaultRunScheduler) LastRun() RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Stop stops the scheduler. Calling it on a stopped scheduler is a no-op.
func (s *DefaultRunScheduler) Stop() error {
	if !s.running.Swap(false) {
		s.logger.Debug("Scheduler already stopped, nothing to do")
		return nil
	}

	s.logger.Debug("Sending done signal to goroutines")
	close(s.done)
	return nil
}

// Stopped returns true if the scheduler is stopped.
func (s *DefaultRunScheduler) Stopped() bool {
	return !s.running.Load()
}

// WaitForShutdown blocks until the periodic goroutine has terminated.
func (s *DefaultRunScheduler) WaitForShutdown(ctx context.Context) error {
	s.logger.Debug("Waiting for all goroutines to terminate")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Debug("All goroutines terminated successfully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Timed out waiting for goroutines to terminate", "error", ctx.Err())
		return ctx.Err()
	}
}
