package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-specrun/types"
	"github.com/ethereum-optimism/infra/op-specrun/ui"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// TreeTextFormatter renders a ResultTree as an indented text tree
type TreeTextFormatter struct {
	includeExpectations bool
}

// NewTreeTextFormatter creates a text formatter. With includeExpectations every
// expectation is listed under its specification, otherwise only failed ones.
func NewTreeTextFormatter(includeExpectations bool) *TreeTextFormatter {
	return &TreeTextFormatter{includeExpectations: includeExpectations}
}

// Format renders the tree
func (f *TreeTextFormatter) Format(tree *ResultTree) string {
	var b strings.Builder

	b.WriteString(ui.Box(fmt.Sprintf("Specification run %s", tree.RunID), 72,
		fmt.Sprintf("Status:   %s", statusLabel(tree.Stats.Status())),
		fmt.Sprintf("Total:    %d", tree.Stats.Total),
		fmt.Sprintf("Passed:   %d", tree.Stats.Passed),
		fmt.Sprintf("Failed:   %d", tree.Stats.Failed),
		fmt.Sprintf("Errored:  %d", tree.Stats.Errored),
		fmt.Sprintf("Duration: %s", formatDuration(tree.Stats.Duration)),
	))

	for _, gate := range tree.Gates {
		fmt.Fprintf(&b, "\nGate: %s [%s] (%s)\n", gate.ID, statusLabel(gate.Stats.Status()), formatDuration(gate.Stats.Duration))

		for i, suite := range gate.Suites {
			suiteIsLast := i == len(gate.Suites)-1 && len(gate.Results) == 0
			fmt.Fprintf(&b, "%sSuite: %s [%s] (%d/%d passed)\n",
				ui.BuildTreePrefix(1, suiteIsLast, nil), suite.ID, statusLabel(suite.Stats.Status()),
				suite.Stats.Passed, suite.Stats.Total)
			f.writeResults(&b, suite.Results, 2, []bool{suiteIsLast})
		}
		f.writeResults(&b, gate.Results, 1, nil)
	}

	return b.String()
}

func (f *TreeTextFormatter) writeResults(b *strings.Builder, results []*types.RunResult, depth int, parentIsLast []bool) {
	for i, result := range results {
		isLast := i == len(results)-1
		fmt.Fprintf(b, "%s%s [%s] (%s)\n", ui.BuildTreePrefix(depth, isLast, parentIsLast),
			CleanupName(result.Name()), statusLabel(result.Status()), formatDuration(result.Duration))

		var details []string
		if !result.Passed && result.Message != "" {
			detail := result.Message
			if result.Thrown != nil {
				detail += ": " + result.Thrown.Error()
			}
			details = append(details, detail)
		}
		for _, e := range result.Expectations {
			if f.includeExpectations || !e.Passed {
				details = append(details, fmt.Sprintf("%s %s", ui.Mark(e.Passed), e.Text))
			}
		}

		childParents := append(append([]bool{}, parentIsLast...), isLast)
		for j, detail := range details {
			fmt.Fprintf(b, "%s%s\n", ui.BuildTreePrefix(depth+1, j == len(details)-1, childParents), detail)
		}
	}
}

// TableFormatter renders results as a table with one row per specification
type TableFormatter struct {
	title string
	style table.Style
}

// NewTableFormatter creates a table formatter using the given go-pretty style
func NewTableFormatter(title string, style table.Style) *TableFormatter {
	return &TableFormatter{title: title, style: style}
}

// Format renders the tree as a table
func (f *TableFormatter) Format(tree *ResultTree) string {
	t := table.NewWriter()
	t.SetTitle(f.title)
	t.SetStyle(f.style)

	t.AppendHeader(table.Row{"Gate", "Suite", "Specification", "Duration", "Expectations", "Status", "Message"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Gate", AutoMerge: true},
		{Name: "Suite", AutoMerge: true},
		{Name: "Specification", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Expectations", Align: text.AlignRight},
		{Name: "Message", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	addRows := func(gate, suite string, results []*types.RunResult) {
		for _, r := range results {
			passed := len(r.Expectations) - len(r.FailedExpectations())
			t.AppendRow(table.Row{
				gate,
				suite,
				CleanupName(r.Name()),
				formatDuration(r.Duration),
				fmt.Sprintf("%d/%d", passed, len(r.Expectations)),
				statusLabel(r.Status()),
				r.Message,
			})
		}
	}

	for _, gate := range tree.Gates {
		for _, suite := range gate.Suites {
			addRows(gate.ID, suite.ID, suite.Results)
		}
		addRows(gate.ID, "", gate.Results)
		t.AppendSeparator()
	}

	t.AppendFooter(table.Row{
		"", "", fmt.Sprintf("TOTAL %d", tree.Stats.Total), formatDuration(tree.Stats.Duration),
		"", statusLabel(tree.Stats.Status()),
		fmt.Sprintf("%d passed, %d failed, %d errored", tree.Stats.Passed, tree.Stats.Failed, tree.Stats.Errored),
	})

	return t.Render() + "\n"
}

func statusLabel(status types.Status) string {
	switch status {
	case types.StatusPass:
		return "PASS"
	case types.StatusFail:
		return "FAIL"
	case types.StatusError:
		return "ERROR"
	default:
		return strings.ToUpper(string(status))
	}
}

// formatDuration formats the duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
