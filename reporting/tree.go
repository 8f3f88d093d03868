package reporting

import (
	"time"

	"github.com/ethereum-optimism/infra/op-specrun/types"
)

// Stats counts specification outcomes
type Stats struct {
	Total    int
	Passed   int
	Failed   int
	Errored  int
	Duration time.Duration
}

func (s *Stats) add(result *types.RunResult) {
	s.Total++
	s.Duration += result.Duration
	switch result.Status() {
	case types.StatusPass:
		s.Passed++
	case types.StatusFail:
		s.Failed++
	case types.StatusError:
		s.Errored++
	}
}

// Status derives the aggregate status: any error wins over failures
func (s Stats) Status() types.Status {
	switch {
	case s.Errored > 0:
		return types.StatusError
	case s.Failed > 0:
		return types.StatusFail
	default:
		return types.StatusPass
	}
}

// SuiteNode groups the results of one suite
type SuiteNode struct {
	ID      string
	Results []*types.RunResult
	Stats   Stats
}

// GateNode groups the results of one gate. Suites come before direct results.
type GateNode struct {
	ID      string
	Suites  []*SuiteNode
	Results []*types.RunResult
	Stats   Stats
}

// ResultTree is the gate/suite hierarchy of a run, in first-seen order
type ResultTree struct {
	RunID string
	Gates []*GateNode
	Stats Stats
}

// BuildTree groups results by gate and suite, keeping the order they were produced in
func BuildTree(runID string, results []*types.RunResult) *ResultTree {
	tree := &ResultTree{RunID: runID}
	gates := make(map[string]*GateNode)
	suites := make(map[string]*SuiteNode)

	for _, result := range results {
		gateID := result.Gate
		if gateID == "" {
			gateID = "default"
		}

		gate, ok := gates[gateID]
		if !ok {
			gate = &GateNode{ID: gateID}
			gates[gateID] = gate
			tree.Gates = append(tree.Gates, gate)
		}
		gate.Stats.add(result)
		tree.Stats.add(result)

		if result.Suite == "" {
			gate.Results = append(gate.Results, result)
			continue
		}

		key := gateID + "/" + result.Suite
		suite, ok := suites[key]
		if !ok {
			suite = &SuiteNode{ID: result.Suite}
			suites[key] = suite
			gate.Suites = append(gate.Suites, suite)
		}
		suite.Results = append(suite.Results, result)
		suite.Stats.add(result)
	}

	return tree
}
