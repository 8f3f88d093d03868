package runner

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-specrun/types"
	"github.com/ethereum/go-ethereum/log"
)

// ProgressIndicator receives progress updates while a run executes
type ProgressIndicator interface {
	StartGate(gateName string, total int)
	StartSuite(suiteName string, total int)
	StartSpecification(name string)
	CompleteSpecification(name string, status types.Status)
	CompleteSuite(suiteName string)
	CompleteGate(gateName string)
	Stop()
}

type noOpProgressIndicator struct{}

// NewNoOpProgressIndicator creates a progress indicator that does nothing
func NewNoOpProgressIndicator() ProgressIndicator {
	return &noOpProgressIndicator{}
}

func (n *noOpProgressIndicator) StartGate(gateName string, total int)                   {}
func (n *noOpProgressIndicator) StartSuite(suiteName string, total int)                 {}
func (n *noOpProgressIndicator) StartSpecification(name string)                         {}
func (n *noOpProgressIndicator) CompleteSpecification(name string, status types.Status) {}
func (n *noOpProgressIndicator) CompleteSuite(suiteName string)                         {}
func (n *noOpProgressIndicator) CompleteGate(gateName string)                           {}
func (n *noOpProgressIndicator) Stop()                                                  {}

// consoleProgressIndicator logs gate and suite transitions and a periodic
// progress line while specifications run
type consoleProgressIndicator struct {
	logger   log.Logger
	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
	mu       sync.RWMutex

	currentGate    string
	currentSuite   string
	currentSpec    string
	specStartTime  time.Time
	completed      int
	failed         int
	total          int
	gateStartTime  time.Time
	suiteStartTime time.Time
}

// NewConsoleProgressIndicator creates a progress indicator that logs updates every updateInterval
func NewConsoleProgressIndicator(logger log.Logger, updateInterval time.Duration) ProgressIndicator {
	if updateInterval == 0 {
		updateInterval = 30 * time.Second
	}

	indicator := &consoleProgressIndicator{
		logger: logger,
		ticker: time.NewTicker(updateInterval),
		stopCh: make(chan struct{}),
	}

	go indicator.progressReporter()

	return indicator
}

func (c *consoleProgressIndicator) StartGate(gateName string, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.currentGate = gateName
	c.currentSuite = ""
	c.total = total
	c.completed = 0
	c.failed = 0
	c.gateStartTime = time.Now()

	c.logger.Info("Starting gate", "gate", gateName, "specifications", total)
}

func (c *consoleProgressIndicator) StartSuite(suiteName string, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.currentSuite = suiteName
	c.suiteStartTime = time.Now()

	c.logger.Info("Starting suite", "gate", c.currentGate, "suite", suiteName, "specifications", total)
}

func (c *consoleProgressIndicator) StartSpecification(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.currentSpec = name
	c.specStartTime = time.Now()
}

func (c *consoleProgressIndicator) CompleteSpecification(name string, status types.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.currentSpec = ""
	c.completed++
	if status != types.StatusPass {
		c.failed++
	}

	c.logger.Debug("Specification completed", "name", name, "status", status, "completed", c.completed, "total", c.total)
}

func (c *consoleProgressIndicator) CompleteSuite(suiteName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	duration := time.Since(c.suiteStartTime).Truncate(time.Millisecond)
	c.logger.Info("Completed suite", "gate", c.currentGate, "suite", suiteName, "duration", duration)
	c.currentSuite = ""
}

func (c *consoleProgressIndicator) CompleteGate(gateName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	duration := time.Since(c.gateStartTime).Truncate(time.Millisecond)
	c.logger.Info("Completed gate", "gate", gateName, "specifications", c.total, "completed", c.completed, "notPassed", c.failed, "duration", duration)
	c.currentGate = ""
	c.currentSuite = ""
}

func (c *consoleProgressIndicator) progressReporter() {
	for {
		select {
		case <-c.ticker.C:
			c.reportProgress()
		case <-c.stopCh:
			return
		}
	}
}

func (c *consoleProgressIndicator) reportProgress() {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.currentGate == "" {
		return
	}

	var percentComplete float64
	if c.total > 0 {
		percentComplete = float64(c.completed) * 100.0 / float64(c.total)
	}

	running := ""
	if c.currentSpec != "" {
		running = fmt.Sprintf("%s (%v)", c.currentSpec, time.Since(c.specStartTime).Truncate(time.Second))
	}

	c.logger.Info("Progress update",
		"gate", c.currentGate,
		"suite", c.currentSuite,
		"completed", c.completed,
		"total", c.total,
		"percent", fmt.Sprintf("%.1f%%", percentComplete),
		"running", running,
	)
}

// Stop stops the periodic reporting. It is safe to call more than once.
func (c *consoleProgressIndicator) Stop() {
	c.stopOnce.Do(func() {
		c.ticker.Stop()
		close(c.stopCh)
	})
}
