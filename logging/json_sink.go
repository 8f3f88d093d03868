package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-specrun/spec"
	"github.com/ethereum-optimism/infra/op-specrun/types"
)

const ResultsJSONFilename = "results.json"

// ResultRecord is the JSON form of a RunResult
type ResultRecord struct {
	Name         string              `json:"name"`
	Origin       string              `json:"origin"`
	Kind         string              `json:"kind,omitempty"`
	Gate         string              `json:"gate,omitempty"`
	Suite        string              `json:"suite,omitempty"`
	Status       types.Status        `json:"status"`
	Passed       bool                `json:"passed"`
	Stage        string              `json:"stage,omitempty"`
	Message      string              `json:"message,omitempty"`
	Error        string              `json:"error,omitempty"`
	Expectations []ExpectationRecord `json:"expectations"`
	Duration     time.Duration       `json:"duration"`
}

// ExpectationRecord is the JSON form of an ExpectationResult
type ExpectationRecord struct {
	spec.ExpectationResult
	Error string `json:"error,omitempty"`
}

// ResultsDocument is the content of results.json
type ResultsDocument struct {
	RunID     string         `json:"runId"`
	Timestamp time.Time      `json:"timestamp"`
	Results   []ResultRecord `json:"results"`
}

// NewResultRecord converts a result
func NewResultRecord(result *types.RunResult) ResultRecord {
	record := ResultRecord{
		Name:         result.Name(),
		Origin:       result.Origin.ID(),
		Kind:         result.Origin.Kind.String(),
		Gate:         result.Gate,
		Suite:        result.Suite,
		Status:       result.Status(),
		Passed:       result.Passed,
		Message:      result.Message,
		Expectations: make([]ExpectationRecord, 0, len(result.Expectations)),
		Duration:     result.Duration,
	}
	if result.Stage != types.StageNone {
		record.Stage = result.Stage.String()
	}
	if result.Thrown != nil {
		record.Error = result.Thrown.Error()
	}
	for _, e := range result.Expectations {
		er := ExpectationRecord{ExpectationResult: e}
		if e.Err != nil {
			er.Error = e.Err.Error()
		}
		record.Expectations = append(record.Expectations, er)
	}
	return record
}

// ResultsJSONSink writes every result of a run to results.json when the run completes
type ResultsJSONSink struct {
	logger  *FileLogger
	mu      sync.Mutex
	records map[string][]ResultRecord
}

// NewResultsJSONSink creates a JSON results sink
func NewResultsJSONSink(logger *FileLogger) *ResultsJSONSink {
	return &ResultsJSONSink{
		logger:  logger,
		records: make(map[string][]ResultRecord),
	}
}

// Consume records a result
func (s *ResultsJSONSink) Consume(result *types.RunResult, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[runID] = append(s.records[runID], NewResultRecord(result))
	return nil
}

// Complete writes results.json
func (s *ResultsJSONSink) Complete(runID string) error {
	s.mu.Lock()
	records := s.records[runID]
	delete(s.records, runID)
	s.mu.Unlock()

	if records == nil {
		records = []ResultRecord{}
	}

	dir, err := s.logger.GetDirectoryForRunID(runID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(ResultsDocument{
		RunID:     runID,
		Timestamp: time.Now(),
		Results:   records,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	path := filepath.Join(dir, ResultsJSONFilename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
