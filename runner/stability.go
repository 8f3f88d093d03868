package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ethereum-optimism/infra/op-specrun/types"
	"github.com/ethereum/go-ethereum/log"
)

// Stability classifications
const (
	Stable   = "STABLE"
	Unstable = "UNSTABLE"
)

// Stability report filenames
const (
	StabilityReportJSON = "stability-report.json"
	StabilityReportHTML = "stability-report.html"
)

const maxFailureMessages = 5

// StabilityResult aggregates one specification across repeated runs
type StabilityResult struct {
	Name           string        `json:"name"`
	Origin         string        `json:"origin"`
	TotalRuns      int           `json:"total_runs"`
	Passes         int           `json:"passes"`
	Failures       int           `json:"failures"`
	Errors         int           `json:"errors"`
	PassRate       float64       `json:"pass_rate"`
	AvgDuration    time.Duration `json:"avg_duration"`
	MinDuration    time.Duration `json:"min_duration"`
	MaxDuration    time.Duration `json:"max_duration"`
	FailureReasons []string      `json:"failure_reasons,omitempty"`
	Recommendation string        `json:"recommendation"`
}

// StabilityReport is the result of a stability analysis
type StabilityReport struct {
	Date           string            `json:"date"`
	Gate           string            `json:"gate"`
	Iterations     int               `json:"iterations"`
	FailedRuns     int               `json:"failed_runs"`
	TotalRuns      int               `json:"total_runs"`
	Specifications []StabilityResult `json:"specifications"`
	RunErrors      []string          `json:"run_errors,omitempty"`
	GeneratedAt    time.Time         `json:"generated_at"`

	firstErr error
}

// Err returns the error of the first iteration that could not complete, or nil
func (r *StabilityReport) Err() error {
	return r.firstErr
}

// Unstable returns the specifications that did not pass every run
func (r *StabilityReport) Unstable() []StabilityResult {
	var unstable []StabilityResult
	for _, s := range r.Specifications {
		if s.Recommendation == Unstable {
			unstable = append(unstable, s)
		}
	}
	return unstable
}

// StabilityRunner repeats whole runs to find specifications that do not
// pass consistently
type StabilityRunner struct {
	baseRunner SpecRunner
	iterations int
	log        log.Logger
}

// NewStabilityRunner creates a new stability runner
func NewStabilityRunner(baseRunner SpecRunner, iterations int, log log.Logger) *StabilityRunner {
	return &StabilityRunner{
		baseRunner: baseRunner,
		iterations: iterations,
		log:        log,
	}
}

// Run runs every planned specification iterations times and classifies each.
// A failed iteration is logged and skipped; an interrupted context stops the
// analysis.
func (s *StabilityRunner) Run(ctx context.Context, gate string) (*StabilityReport, error) {
	if s.iterations < 1 {
		return nil, fmt.Errorf("iterations must be at least 1, got %d", s.iterations)
	}
	s.log.Info("Starting stability analysis", "gate", gate, "iterations", s.iterations)

	results := make(map[string][]*types.RunResult)
	var runErrs []error

	for i := 1; i <= s.iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("stability analysis interrupted: %w", err)
		}
		s.log.Info("Running iteration", "iteration", i, "total", s.iterations)

		runResult, err := s.baseRunner.RunAll(ctx)
		if err != nil {
			s.log.Error("Failed to run specifications", "iteration", i, "error", err)
			runErrs = append(runErrs, fmt.Errorf("iteration %d: %w", i, err))
			continue
		}

		for _, res := range runResult.AllResults() {
			key := stabilityKey(res)
			results[key] = append(results[key], res)
		}
	}

	report := s.generateReport(results, gate)
	report.FailedRuns = len(runErrs)
	for _, err := range runErrs {
		report.RunErrors = append(report.RunErrors, err.Error())
	}
	if len(runErrs) > 0 {
		report.firstErr = runErrs[0]
	}
	return report, nil
}

func stabilityKey(res *types.RunResult) string {
	return fmt.Sprintf("%s::%s::%s", res.Gate, res.Origin.ID(), res.Name())
}

// generateReport classifies each specification by its pass rate
func (s *StabilityRunner) generateReport(results map[string][]*types.RunResult, gate string) *StabilityReport {
	now := time.Now()
	report := &StabilityReport{
		Date:        now.Format("2006-01-02"),
		Gate:        gate,
		Iterations:  s.iterations,
		GeneratedAt: now,
	}

	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		runs := results[key]
		result := StabilityResult{
			Name:        runs[0].Name(),
			Origin:      runs[0].Origin.ID(),
			TotalRuns:   len(runs),
			MinDuration: runs[0].Duration,
		}

		var total time.Duration
		for _, res := range runs {
			switch res.Status() {
			case types.StatusPass:
				result.Passes++
			case types.StatusFail:
				result.Failures++
			case types.StatusError:
				result.Errors++
			}
			if !res.Passed && len(result.FailureReasons) < maxFailureMessages {
				result.FailureReasons = append(result.FailureReasons, failureReason(res))
			}

			total += res.Duration
			result.MinDuration = min(result.MinDuration, res.Duration)
			result.MaxDuration = max(result.MaxDuration, res.Duration)
		}

		result.AvgDuration = total / time.Duration(result.TotalRuns)
		result.PassRate = float64(result.Passes) / float64(result.TotalRuns) * 100

		if result.Passes == result.TotalRuns {
			result.Recommendation = Stable
		} else {
			result.Recommendation = Unstable
		}

		report.Specifications = append(report.Specifications, result)
		report.TotalRuns += result.TotalRuns
	}

	return report
}

func failureReason(res *types.RunResult) string {
	reason := res.Message
	if reason == "" {
		reason = fmt.Sprintf("%d failed expectations", len(res.FailedExpectations()))
	}
	if res.Thrown != nil {
		reason = fmt.Sprintf("%s: %v", reason, res.Thrown)
	}
	return reason
}

// SaveStabilityReport saves the report in both JSON and HTML formats
func SaveStabilityReport(report *StabilityReport, outputDir string) ([]string, error) {
	var saved []string
	var errs []error

	jsonFilename := filepath.Join(outputDir, StabilityReportJSON)
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to marshal JSON: %w", err))
	} else if err := os.WriteFile(jsonFilename, data, 0644); err != nil {
		errs = append(errs, fmt.Errorf("failed to write JSON file: %w", err))
	} else {
		saved = append(saved, jsonFilename)
	}

	htmlFilename := filepath.Join(outputDir, StabilityReportHTML)
	if err := saveStabilityHTML(report, htmlFilename); err != nil {
		errs = append(errs, fmt.Errorf("failed to save HTML report: %w", err))
	} else {
		saved = append(saved, htmlFilename)
	}

	return saved, errors.Join(errs...)
}

var stabilityTemplate = template.Must(template.New("stability").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Stability Report - {{.Date}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        table { border-collapse: collapse; width: 100%; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background: #4CAF50; color: white; }
        .STABLE { color: #4CAF50; font-weight: bold; }
        .UNSTABLE { color: #f44336; font-weight: bold; }
        .reason { background: #ffebee; padding: 6px; margin: 4px 0; font-family: monospace; white-space: pre-wrap; }
    </style>
</head>
<body>
    <h1>Stability Report</h1>
    <p><strong>Gate:</strong> {{if .Gate}}{{.Gate}}{{else}}all{{end}}</p>
    <p><strong>Iterations:</strong> {{.Iterations}} ({{.FailedRuns}} aborted)</p>
    {{range .RunErrors}}<div class="reason">{{.}}</div>{{end}}
    <table>
        <tr><th>Specification</th><th>Origin</th><th>Runs</th><th>Pass Rate</th><th>Avg Duration</th><th>Recommendation</th><th>Failures</th></tr>
        {{range .Specifications}}
        <tr>
            <td>{{.Name}}</td>
            <td>{{.Origin}}</td>
            <td>{{.TotalRuns}}</td>
            <td>{{printf "%.1f" .PassRate}}%</td>
            <td>{{.AvgDuration}}</td>
            <td class="{{.Recommendation}}">{{.Recommendation}}</td>
            <td>{{range .FailureReasons}}<div class="reason">{{.}}</div>{{end}}</td>
        </tr>
        {{end}}
    </table>
</body>
</html>`))

func saveStabilityHTML(report *StabilityReport, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return stabilityTemplate.Execute(file, report)
}
