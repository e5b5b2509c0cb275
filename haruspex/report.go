package haruspex

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

const noValidPortfolio = "no valid portfolio values"

type searchReport struct {
	runID string
	created time.Time
	settings ObjectiveSettings
	baselineWeights []float64
	baselineGain float64
	baselineOK bool
	result SearchResult
	maxDrawdown float64
	cacheEntries int
}

func newSearchReport(settings ObjectiveSettings, baseline LabeledWeights, baselineGain float64, baselineOK bool, result SearchResult) searchReport {
	return searchReport{
		runID: uuid.New().String(),
		created: time.Now().UTC(),
		settings: settings,
		baselineWeights: baseline.Weights,
		baselineGain: baselineGain,
		baselineOK: baselineOK,
		result: result,
	}
}

func (r searchReport) String() string {
	output := fmt.Sprintf("Best weights: %s\n", formatWeights(r.result.Weights))
	output += fmt.Sprintf("Actual total gain: %s\n", formatGain(r.result.Gain, r.result.GainOK))
	output += fmt.Sprintf("Features: %s\n", strings.Join(getFeatureNames(), ", "))
	output += fmt.Sprintf("Run ID: %s\n", r.runID)
	output += fmt.Sprintf("Created: %s\n", r.created.Format(time.RFC3339))
	output += fmt.Sprintf("Window: %s to %s\n", getDateString(r.settings.DateMin), getDateString(r.settings.DateMax))
	output += fmt.Sprintf("Top N: %d (%s)\n", r.settings.TopN, r.settings.Allocation)
	output += fmt.Sprintf("Baseline gain: %s\n", formatGain(r.baselineGain, r.baselineOK))
	output += fmt.Sprintf("Generations: %d (%s)\n", r.result.Generations, r.result.StopReason)
	output += fmt.Sprintf("Evaluations: %d\n", r.result.Evaluations)
	output += fmt.Sprintf("Distinct backtests: %d\n", r.cacheEntries)
	output += fmt.Sprintf("Polished: %t\n", r.result.Polished)
	output += fmt.Sprintf("Max drawdown: %s\n", formatPercentage(r.maxDrawdown))
	return output
}

func (r searchReport) rows() [][]string {
	return [][]string{
		{"Baseline", formatWeights(r.baselineWeights), formatGain(r.baselineGain, r.baselineOK)},
		{"Search", formatWeights(r.result.Weights), formatGain(r.result.Gain, r.result.GainOK)},
	}
}

func formatGain(gain float64, ok bool) string {
	if !ok {
		return noValidPortfolio
	}
	return fmt.Sprintf("%.2f%%", gain)
}

// formatPercentage formats a fraction such as 0.1234 as "12.34%".
func formatPercentage(value float64) string {
	return fmt.Sprintf("%.2f%%", value * 100.0)
}

// renderTable left-aligns the first column and right-aligns the rest.
func renderTable(writer io.Writer, header []string, rows [][]string) {
	alignments := []tw.Align{
		tw.AlignDefault,
	}
	for len(alignments) < len(header) {
		alignments = append(alignments, tw.AlignRight)
	}
	tableConfig := tablewriter.WithConfig(tablewriter.Config{
		Header: tw.CellConfig{
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		}},
	)
	alignmentConfig := tablewriter.WithAlignment(alignments)
	table := tablewriter.NewTable(writer, tableConfig, alignmentConfig)
	table.Header(header)
	table.Bulk(rows)
	table.Render()
}

func formatDrawdownLines(series []comparisonSeries) string {
	var builder strings.Builder
	for _, s := range series {
		fmt.Fprintf(&builder, "%s: %.2f%%\n", s.label, s.maxDrawdown * 100.0)
	}
	return builder.String()
}
