package specrun

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-specrun/reporting"
	"github.com/ethereum-optimism/infra/op-specrun/runner"
	"github.com/ethereum-optimism/infra/op-specrun/types"
)

// ResultFormatter is responsible for formatting and displaying run results.
type ResultFormatter interface {
	FormatResults(result *runner.RunnerResult) (string, error)
}

// ConsoleResultFormatter renders results as a table and writes it to out.
type ConsoleResultFormatter struct {
	logger log.Logger
	out    io.Writer
}

var _ ResultFormatter = (*ConsoleResultFormatter)(nil)

// NewConsoleResultFormatter creates a new ConsoleResultFormatter.
func NewConsoleResultFormatter(logger log.Logger, out io.Writer) *ConsoleResultFormatter {
	return &ConsoleResultFormatter{
		logger: logger,
		out:    out,
	}
}

// FormatResults writes the results table followed by a one-line summary and
// returns the rendered table.
func (f *ConsoleResultFormatter) FormatResults(result *runner.RunnerResult) (string, error) {
	f.logger.Info("Printing results...")
	rendered := renderResultsTable(result)
	if _, err := fmt.Fprintf(f.out, "%s\n%s\n", rendered, result.String()); err != nil {
		return "", fmt.Errorf("failed to write results: %w", err)
	}
	return rendered, nil
}

func renderResultsTable(result *runner.RunnerResult) string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("Specification Results (%s)", formatDuration(result.WallClockTime)))

	t.AppendHeader(table.Row{
		"Type", "ID", "Duration", "Specs", "Passed", "Failed", "Errored", "Status", "Message",
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "ID", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Specs", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Errored", Align: text.AlignRight},
		{Name: "Message", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, gateID := range result.GateOrder {
		gate := result.Gates[gateID]
		t.AppendRow(table.Row{
			"Gate",
			gate.ID,
			formatDuration(gate.Duration),
			"-",
			gate.Stats.Passed,
			gate.Stats.Failed,
			gate.Stats.Errored,
			getResultString(gate.Status),
			"",
		})

		for i, suiteID := range gate.SuiteOrder {
			suite := gate.Suites[suiteID]
			prefix := "├─"
			if i == len(gate.SuiteOrder)-1 && len(gate.Specifications) == 0 {
				prefix = "└─"
			}
			t.AppendRow(table.Row{
				"Suite",
				fmt.Sprintf("%s %s", prefix, suiteID),
				formatDuration(suite.Duration),
				"-",
				suite.Stats.Passed,
				suite.Stats.Failed,
				suite.Stats.Errored,
				getResultString(suite.Status),
				"",
			})
			appendSpecificationRows(t, suite.Specifications, "│  ")
		}

		appendSpecificationRows(t, gate.Specifications, "")
		t.AppendSeparator()
	}

	switch result.Status {
	case types.StatusPass:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	case types.StatusError:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		formatDuration(result.Duration),
		result.Stats.Total,
		result.Stats.Passed,
		result.Stats.Failed,
		result.Stats.Errored,
		getResultString(result.Status),
		"",
	})

	return t.Render()
}

func appendSpecificationRows(t table.Writer, results []*types.RunResult, indent string) {
	for i, res := range results {
		prefix := indent + "├─"
		if i == len(results)-1 {
			prefix = indent + "└─"
		}
		t.AppendRow(table.Row{
			"Spec",
			fmt.Sprintf("%s %s", prefix, reporting.CleanupName(res.Name())),
			formatDuration(res.Duration),
			"1",
			boolToInt(res.Status() == types.StatusPass),
			boolToInt(res.Status() == types.StatusFail),
			boolToInt(res.Status() == types.StatusError),
			getResultString(res.Status()),
			keyMessage(res),
		})
	}
}

// keyMessage returns the most pertinent part of a failure for display
func keyMessage(res *types.RunResult) string {
	if res.Passed {
		return ""
	}
	if res.Message == "" {
		failed := res.FailedExpectations()
		if len(failed) == 0 {
			return ""
		}
		return fmt.Sprintf("%d failed expectations, first: %s", len(failed), failed[0].Text)
	}
	if res.Thrown == nil {
		return res.Message
	}

	thrown := res.Thrown.Error()
	if idx := strings.Index(thrown, "\n"); idx != -1 {
		thrown = thrown[:idx]
	}
	if len(thrown) > 80 {
		thrown = thrown[:70] + "..."
	}
	return fmt.Sprintf("%s: %s", res.Message, thrown)
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
