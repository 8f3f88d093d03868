package runner

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum-optimism/infra/op-specrun/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDiscardLogger() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

// scriptedRunner returns one prepared outcome per RunAll call
type scriptedRunner struct {
	runs []func() (*RunnerResult, error)
	call int
}

func (s *scriptedRunner) RunAll(ctx context.Context) (*RunnerResult, error) {
	run := s.runs[s.call%len(s.runs)]
	s.call++
	return run()
}

func runWith(results ...*types.RunResult) func() (*RunnerResult, error) {
	return func() (*RunnerResult, error) {
		collector := NewResultCollector()
		result := collector.NewRunResult("run")
		for _, r := range results {
			collector.AddResult(result, r)
		}
		collector.FinalizeResults(result)
		return result, nil
	}
}

func specResult(name string, passed bool, d time.Duration) *types.RunResult {
	res := &types.RunResult{
		SpecificationName: name,
		Origin:            types.Origin{Member: "ledger.deposits", Kind: types.MemberFactory},
		Gate:              "ledger",
		Passed:            passed,
		Duration:          d,
	}
	if !passed {
		res.Stage = types.StageWhen
		res.Message = types.MessageWhenFailed
		res.Thrown = errors.New("timeout")
	}
	return res
}

func TestStabilityRunnerClassifies(t *testing.T) {
	base := &scriptedRunner{runs: []func() (*RunnerResult, error){
		runWith(specResult("steady", true, 10*time.Millisecond), specResult("flaky", true, 10*time.Millisecond)),
		runWith(specResult("steady", true, 30*time.Millisecond), specResult("flaky", false, 20*time.Millisecond)),
		func() (*RunnerResult, error) { return nil, errors.New("unguarded assertion") },
	}}

	report, err := NewStabilityRunner(base, 3, newDiscardLogger()).Run(context.Background(), "ledger")
	require.NoError(t, err)

	assert.Equal(t, 3, base.call)
	assert.Equal(t, 1, report.FailedRuns)
	assert.Equal(t, []string{"iteration 3: unguarded assertion"}, report.RunErrors)
	assert.EqualError(t, report.Err(), "iteration 3: unguarded assertion")
	assert.Equal(t, 4, report.TotalRuns)
	require.Len(t, report.Specifications, 2)

	byName := map[string]StabilityResult{}
	for _, s := range report.Specifications {
		byName[s.Name] = s
	}

	steady := byName["steady"]
	assert.Equal(t, Stable, steady.Recommendation)
	assert.Equal(t, 100.0, steady.PassRate)
	assert.Equal(t, 20*time.Millisecond, steady.AvgDuration)
	assert.Equal(t, 10*time.Millisecond, steady.MinDuration)
	assert.Equal(t, 30*time.Millisecond, steady.MaxDuration)

	flaky := byName["flaky"]
	assert.Equal(t, Unstable, flaky.Recommendation)
	assert.Equal(t, 50.0, flaky.PassRate)
	assert.Equal(t, []string{"When Failed: timeout"}, flaky.FailureReasons)

	require.Len(t, report.Unstable(), 1)
	assert.Equal(t, "flaky", report.Unstable()[0].Name)
}

func TestStabilityRunnerKeepsFirstRunError(t *testing.T) {
	first := &UnguardedAssertionError{Name: "boom", Origin: "ledger.Boom", Cause: errors.New("kaboom")}
	base := &scriptedRunner{runs: []func() (*RunnerResult, error){
		func() (*RunnerResult, error) { return nil, first },
		func() (*RunnerResult, error) { return nil, ErrNoSpecifications },
	}}

	report, err := NewStabilityRunner(base, 2, newDiscardLogger()).Run(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 2, report.FailedRuns)
	assert.Empty(t, report.Specifications)
	require.Len(t, report.RunErrors, 2)

	var unguarded *UnguardedAssertionError
	require.ErrorAs(t, report.Err(), &unguarded)
	assert.Same(t, first, unguarded)
}

func TestStabilityRunnerRejectsZeroIterations(t *testing.T) {
	_, err := NewStabilityRunner(&scriptedRunner{}, 0, newDiscardLogger()).Run(context.Background(), "")
	assert.Error(t, err)
}

func TestSaveStabilityReport(t *testing.T) {
	dir := t.TempDir()
	report := &StabilityReport{
		Gate:       "ledger",
		Iterations: 2,
		Specifications: []StabilityResult{
			{Name: "flaky", Origin: "ledger.deposits", TotalRuns: 2, Passes: 1, PassRate: 50, Recommendation: Unstable},
		},
		FailedRuns: 1,
		RunErrors:  []string{"iteration 2: no specifications found"},
	}

	saved, err := SaveStabilityReport(report, dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, StabilityReportJSON),
		filepath.Join(dir, StabilityReportHTML),
	}, saved)

	data, err := os.ReadFile(filepath.Join(dir, StabilityReportJSON))
	require.NoError(t, err)
	var decoded StabilityReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, Unstable, decoded.Specifications[0].Recommendation)
	assert.Equal(t, report.RunErrors, decoded.RunErrors)

	html, err := os.ReadFile(filepath.Join(dir, StabilityReportHTML))
	require.NoError(t, err)
	assert.Contains(t, string(html), "flaky")
	assert.Contains(t, string(html), "iteration 2: no specifications found")
}
