package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum-optimism/infra/op-specrun/types"
	"github.com/ethereum-optimism/infra/op-specrun/ui"
)

// AllLogsFileSink writes every result of a run to a single all.log file
type AllLogsFileSink struct {
	logger *FileLogger
}

// Consume appends a result block to all.log
func (s *AllLogsFileSink) Consume(result *types.RunResult, runID string) error {
	dir, err := s.logger.GetDirectoryForRunID(runID)
	if err != nil {
		return err
	}

	writer, err := s.logger.getAsyncWriter(filepath.Join(dir, AllLogsFilename))
	if err != nil {
		return err
	}

	return writer.Write([]byte("\n" + formatResult(result) + "\n"))
}

// Complete is a no-op for AllLogsFileSink
func (s *AllLogsFileSink) Complete(runID string) error {
	return nil
}

// PerSpecFileSink writes one log file per specification into the passed or failed directory
type PerSpecFileSink struct {
	logger  *FileLogger
	written map[string]int // Files written per path, used to disambiguate duplicate names
	mu      sync.Mutex
}

// Consume writes the result to its own file
func (s *PerSpecFileSink) Consume(result *types.RunResult, runID string) error {
	dir, err := s.logger.GetDirectoryForRunID(runID)
	if err != nil {
		return err
	}

	targetDir := filepath.Join(dir, "passed")
	if !result.Passed {
		targetDir = filepath.Join(dir, "failed")
	}
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", targetDir, err)
	}

	path := s.uniquePath(filepath.Join(targetDir, readableFilename(result)))
	if err := os.WriteFile(path, []byte(formatResult(result)), 0644); err != nil {
		return fmt.Errorf("failed to write specification log %s: %w", path, err)
	}
	return nil
}

// uniquePath appends a counter when two specifications share a filename
func (s *PerSpecFileSink) uniquePath(base string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.written[base]
	s.written[base] = n + 1
	if n == 0 {
		return base + ".log"
	}
	return fmt.Sprintf("%s-%d.log", base, n+1)
}

// Complete is a no-op for PerSpecFileSink
func (s *PerSpecFileSink) Complete(runID string) error {
	return nil
}

// formatResult renders a result as a boxed header followed by its details
func formatResult(result *types.RunResult) string {
	var content strings.Builder

	content.WriteString(ui.Box("SPECIFICATION: "+result.Name(), 72,
		"Status:   "+string(result.Status()),
		"Origin:   "+result.Origin.ID(),
		"Gate:     "+result.Gate,
		"Suite:    "+result.Suite,
		"Stage:    "+result.Stage.String(),
		"Duration: "+formatDuration(result.Duration),
		"Time:     "+time.Now().Format(time.RFC3339),
	))
	content.WriteString("\n")

	if result.Message != "" {
		fmt.Fprintf(&content, "MESSAGE:\n~~~~~~~~\n%s\n\n", result.Message)
	}

	if result.Thrown != nil {
		fmt.Fprintf(&content, "ERROR:\n~~~~~~\n%s\n\n", stripansi.Strip(result.Thrown.Error()))
		var panicErr *types.PanicError
		if errors.As(result.Thrown, &panicErr) && len(panicErr.Stack) > 0 {
			fmt.Fprintf(&content, "STACK:\n~~~~~~\n%s\n\n", indentText(string(panicErr.Stack), "  "))
		}
	}

	if len(result.Expectations) > 0 {
		content.WriteString("EXPECTATIONS:\n~~~~~~~~~~~~~\n")
		for _, e := range result.Expectations {
			fmt.Fprintf(&content, "  %s %s\n", ui.Mark(e.Passed), stripansi.Strip(e.Text))
			if e.Err != nil {
				fmt.Fprintf(&content, "      %s\n", stripansi.Strip(e.Err.Error()))
			}
		}
		content.WriteString("\n")
	}

	if result.Result != nil {
		fmt.Fprintf(&content, "RESULT:\n~~~~~~~\n%s\n", indentText(stripansi.Strip(fmt.Sprintf("%+v", result.Result)), "  "))
	}

	return content.String()
}

// indentText adds indentation to each non-empty line
func indentText(text, indent string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = indent + line
		}
	}
	return strings.Join(lines, "\n")
}
