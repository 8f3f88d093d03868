package logging

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum-optimism/infra/op-specrun/spec"
	"github.com/ethereum-optimism/infra/op-specrun/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passingResult() *types.RunResult {
	return &types.RunResult{
		SpecificationName: "DepositIncreasesBalance",
		Origin:            types.Origin{Type: "ledger.AccountSpecs", Member: "Deposit", Kind: types.MemberMethod},
		Passed:            true,
		Gate:              "ledger",
		Suite:             "deposits",
		Result:            15,
		Duration:          50 * time.Millisecond,
		Expectations:      []spec.ExpectationResult{{Passed: true, Text: "balance == 15", Expression: "balance == 15"}},
	}
}

func failingResult() *types.RunResult {
	return &types.RunResult{
		SpecificationName: "overdraft is rejected",
		Origin:            types.Origin{Member: "ledger.withdrawals", Kind: types.MemberFactory},
		Gate:              "ledger",
		Stage:             types.StageFinally,
		Message:           types.MessageFinallyFailed,
		Thrown:            errors.New("\x1b[31mcleanup failed\x1b[0m"),
		Expectations: []spec.ExpectationResult{
			{Passed: false, Text: "balance unchanged", Err: errors.New("balance was -5")},
		},
	}
}

func TestNewFileLogger(t *testing.T) {
	_, err := NewFileLogger("", "run")
	assert.Error(t, err)
	_, err = NewFileLogger(t.TempDir(), "")
	assert.Error(t, err)

	dir := t.TempDir()
	logger, err := NewFileLogger(dir, "run-1")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "testrun-run-1"), logger.GetBaseDir())
	assert.DirExists(t, logger.GetPassedDir())
	assert.DirExists(t, logger.GetFailedDir())
	assert.Equal(t, "run-1", logger.GetRunID())

	other, err := logger.GetDirectoryForRunID("run-2")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "testrun-run-2"), other)

	_, ok := logger.GetSinkByType("ResultsJSONSink")
	assert.True(t, ok)
	_, ok = logger.GetSinkByType("Missing")
	assert.False(t, ok)
}

func TestFileLoggerWritesRun(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFileLogger(dir, "run-1")
	require.NoError(t, err)

	require.NoError(t, logger.LogResult(passingResult(), "run-1"))
	require.NoError(t, logger.LogResult(failingResult(), "run-1"))
	require.NoError(t, logger.LogTable("\x1b[32mPASS\x1b[0m table", "run-1"))
	require.NoError(t, logger.Complete("run-1"))

	passed, err := os.ReadFile(filepath.Join(logger.GetPassedDir(), "ledger-deposits-Deposit_Increases_Balance.log"))
	require.NoError(t, err)
	assert.Contains(t, string(passed), "SPECIFICATION: DepositIncreasesBalance")
	assert.Contains(t, string(passed), "✓ balance == 15")
	assert.Contains(t, string(passed), "15")

	failed, err := os.ReadFile(filepath.Join(logger.GetFailedDir(), "ledger-overdraft_is_rejected.log"))
	require.NoError(t, err)
	assert.Contains(t, string(failed), "Finally failed")
	assert.Contains(t, string(failed), "cleanup failed")
	assert.NotContains(t, string(failed), "\x1b[31m")
	assert.Contains(t, string(failed), "balance was -5")

	all, err := os.ReadFile(logger.GetAllLogsFile())
	require.NoError(t, err)
	assert.Contains(t, string(all), "DepositIncreasesBalance")
	assert.Contains(t, string(all), "overdraft is rejected")

	table, err := os.ReadFile(filepath.Join(logger.GetBaseDir(), TableFilename))
	require.NoError(t, err)
	assert.Equal(t, "PASS table", string(table))

	assert.FileExists(t, logger.GetSummaryFile())

	data, err := os.ReadFile(filepath.Join(logger.GetBaseDir(), ResultsJSONFilename))
	require.NoError(t, err)
	var doc ResultsDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "run-1", doc.RunID)
	require.Len(t, doc.Results, 2)
	assert.Equal(t, types.StatusPass, doc.Results[0].Status)
	assert.Equal(t, "ledger.AccountSpecs.Deposit", doc.Results[0].Origin)
	assert.Equal(t, "finally", doc.Results[1].Stage)
	assert.Equal(t, "balance was -5", doc.Results[1].Expectations[0].Error)
}

func TestPerSpecFileSinkDisambiguatesNames(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFileLogger(dir, "run-1")
	require.NoError(t, err)

	require.NoError(t, logger.LogResult(passingResult(), "run-1"))
	require.NoError(t, logger.LogResult(passingResult(), "run-1"))
	require.NoError(t, logger.Complete("run-1"))

	assert.FileExists(t, filepath.Join(logger.GetPassedDir(), "ledger-deposits-Deposit_Increases_Balance.log"))
	assert.FileExists(t, filepath.Join(logger.GetPassedDir(), "ledger-deposits-Deposit_Increases_Balance-2.log"))
}

func TestLogResultRequiresRunID(t *testing.T) {
	logger, err := NewFileLogger(t.TempDir(), "run-1")
	require.NoError(t, err)
	assert.Error(t, logger.LogResult(passingResult(), ""))
	assert.Error(t, logger.Complete(""))
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c_d", safeFilename("a/b:c d"))
	assert.Equal(t, "name", safeFilename("name..."))
}
