package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum-optimism/infra/op-specrun/types"
	"github.com/jedib0t/go-pretty/v6/table"
)

const (
	RunDirectoryPrefix = "testrun-"
	SummaryFilename    = "summary.log"
)

// TextSummarySink collects results and writes the run summary when the run completes
type TextSummarySink struct {
	formatter *TreeTextFormatter
	table     *TableFormatter
	baseDir   string
	results   map[string][]*types.RunResult
	mu        sync.Mutex
}

// NewTextSummarySink creates a summary sink writing below baseDir
func NewTextSummarySink(baseDir string, includeExpectations bool) *TextSummarySink {
	return &TextSummarySink{
		formatter: NewTreeTextFormatter(includeExpectations),
		table:     NewTableFormatter("Specification Results", table.StyleLight),
		baseDir:   baseDir,
		results:   make(map[string][]*types.RunResult),
	}
}

// Consume collects a result for later summary generation
func (s *TextSummarySink) Consume(result *types.RunResult, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[runID] = append(s.results[runID], result)
	return nil
}

// Complete writes summary.log for the run
func (s *TextSummarySink) Complete(runID string) error {
	s.mu.Lock()
	results := s.results[runID]
	delete(s.results, runID)
	s.mu.Unlock()

	outputDir := filepath.Join(s.baseDir, RunDirectoryPrefix+runID)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	tree := BuildTree(runID, results)
	content := s.formatter.Format(tree) + "\n" + s.table.Format(tree)

	summaryFile := filepath.Join(outputDir, SummaryFilename)
	if err := os.WriteFile(summaryFile, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write summary file: %w", err)
	}

	return nil
}
