package runner

import (
	"fmt"
	"time"

	"github.com/ethereum-optimism/infra/op-specrun/types"
)

var _ ResultCollector = (*resultCollector)(nil)

// ResultStats tracks specification statistics at each level
type ResultStats struct {
	Total     int
	Passed    int
	Failed    int
	Errored   int
	StartTime time.Time
	EndTime   time.Time
}

// SuiteResult captures aggregated results for a suite
type SuiteResult struct {
	ID             string
	Description    string
	Specifications []*types.RunResult
	Status         types.Status
	Duration       time.Duration
	Stats          ResultStats
}

// GateResult captures aggregated results for a gate
type GateResult struct {
	ID             string
	Description    string
	Specifications []*types.RunResult
	Suites         map[string]*SuiteResult
	SuiteOrder     []string
	Status         types.Status
	Duration       time.Duration
	Stats          ResultStats
	Inherited      []string
}

// RunnerResult captures the complete run results
type RunnerResult struct {
	RunID         string
	Gates         map[string]*GateResult
	GateOrder     []string
	Status        types.Status
	Duration      time.Duration // Sum of specification durations
	WallClockTime time.Duration
	Stats         ResultStats
}

// ResultCollector handles aggregation of specification results
type ResultCollector interface {
	// Initialize a new run result
	NewRunResult(runID string) *RunnerResult

	// Add a result to its gate and suite
	AddResult(result *RunnerResult, spec *types.RunResult)

	// Finalize results and calculate statuses
	FinalizeResults(result *RunnerResult)
}

type resultCollector struct{}

// NewResultCollector creates a new result collector
func NewResultCollector() ResultCollector {
	return &resultCollector{}
}

// NewRunResult initializes a new run result
func (c *resultCollector) NewRunResult(runID string) *RunnerResult {
	return &RunnerResult{
		RunID:  runID,
		Gates:  make(map[string]*GateResult),
		Status: types.StatusFail,
		Stats: ResultStats{
			StartTime: time.Now(),
		},
	}
}

// AddResult adds a specification result to the appropriate gate and suite
func (c *resultCollector) AddResult(result *RunnerResult, spec *types.RunResult) {
	if result == nil {
		panic("result cannot be nil")
	}
	if spec == nil {
		panic("specification result cannot be nil")
	}

	gateName := spec.Gate
	if gateName == "" {
		gateName = "default"
	}
	gate, exists := result.Gates[gateName]
	if !exists {
		gate = &GateResult{
			ID:          gateName,
			Description: gateName,
			Suites:      make(map[string]*SuiteResult),
			Status:      types.StatusFail,
			Stats:       ResultStats{StartTime: time.Now()},
		}
		result.Gates[gateName] = gate
		result.GateOrder = append(result.GateOrder, gateName)
	}

	var suite *SuiteResult
	if spec.Suite != "" {
		suite, exists = gate.Suites[spec.Suite]
		if !exists {
			suite = &SuiteResult{
				ID:          spec.Suite,
				Description: spec.Suite,
				Status:      types.StatusFail,
				Stats:       ResultStats{StartTime: time.Now()},
			}
			gate.Suites[spec.Suite] = suite
			gate.SuiteOrder = append(gate.SuiteOrder, spec.Suite)
		}
		suite.Specifications = append(suite.Specifications, spec)
		updateStats(&suite.Stats, &suite.Duration, spec)
	} else {
		gate.Specifications = append(gate.Specifications, spec)
	}

	updateStats(&gate.Stats, &gate.Duration, spec)
	updateStats(&result.Stats, &result.Duration, spec)
}

// FinalizeResults calculates final statuses and wall clock times
func (c *resultCollector) FinalizeResults(result *RunnerResult) {
	now := time.Now()
	for _, gate := range result.Gates {
		for _, suite := range gate.Suites {
			suite.Stats.EndTime = now
			suite.Status = statusFromStats(suite.Stats)
		}
		gate.Stats.EndTime = now
		gate.Status = statusFromStats(gate.Stats)
	}

	result.Stats.EndTime = now
	result.WallClockTime = now.Sub(result.Stats.StartTime)
	result.Status = statusFromStats(result.Stats)
}

func updateStats(stats *ResultStats, duration *time.Duration, spec *types.RunResult) {
	*duration += spec.Duration
	stats.Total++
	switch spec.Status() {
	case types.StatusPass:
		stats.Passed++
	case types.StatusFail:
		stats.Failed++
	case types.StatusError:
		stats.Errored++
	}
}

// statusFromStats prioritizes errors over failures: a specification that could
// not be attempted is worse than one that failed.
func statusFromStats(stats ResultStats) types.Status {
	switch {
	case stats.Errored > 0:
		return types.StatusError
	case stats.Failed > 0:
		return types.StatusFail
	default:
		return types.StatusPass
	}
}

// AllResults returns every specification result in gate, suite, then direct order
func (r *RunnerResult) AllResults() []*types.RunResult {
	var all []*types.RunResult
	for _, gateID := range r.GateOrder {
		gate := r.Gates[gateID]
		for _, suiteID := range gate.SuiteOrder {
			all = append(all, gate.Suites[suiteID].Specifications...)
		}
		all = append(all, gate.Specifications...)
	}
	return all
}

// String returns a one-line summary of the run
func (r *RunnerResult) String() string {
	return fmt.Sprintf("Run %s %s: %d specifications, %d passed, %d failed, %d errored (%s)",
		r.RunID, r.Status, r.Stats.Total, r.Stats.Passed, r.Stats.Failed, r.Stats.Errored,
		r.WallClockTime.Truncate(time.Millisecond))
}
