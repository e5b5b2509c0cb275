package haruspex

import (
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/rs/zerolog"
)

const (
	portfolioGainPlot = "portfolio_gain.png"
	dailyGainPlot = "daily_gain.png"
	drawdownPlot = "drawdown.png"
	maxDrawdownPlot = "max_drawdown.png"
	maxDrawdownText = "max_drawdown.txt"
)

var benchmarkColumns = []string{
	"Date",
	"Close",
}

type comparisonSeries struct {
	label string
	dates []time.Time
	values []float64
	drawdowns []float64
	maxDrawdown float64
	stats returnStats
}

type drawdownTask struct {
	topN int
	policy AllocationPolicy
}

func newComparisonSeries(label string, dates []time.Time, values []float64) comparisonSeries {
	drawdowns := drawdownSeries(values)
	return comparisonSeries{
		label: label,
		dates: dates,
		values: values,
		drawdowns: drawdowns,
		maxDrawdown: maxDrawdown(values),
		stats: getReturnStats(values),
	}
}

func (s comparisonSeries) gain() float64 {
	if len(s.values) == 0 {
		return 0
	}
	return (s.values[len(s.values) - 1] - 1.0) * 100.0
}

func (s comparisonSeries) row() []string {
	return []string{
		s.label,
		fmt.Sprintf("%.2f%%", s.gain()),
		formatPercentage(s.maxDrawdown),
		fmt.Sprintf("%.2f", s.stats.sharpe),
	}
}

// loadBenchmark reads an index price history and normalizes it to 1.0 at the
// first close within the window.
func loadBenchmark(path, label string, dateMin, dateMax time.Time, log zerolog.Logger) (comparisonSeries, error) {
	type benchmarkRecord struct {
		date time.Time
		close float64
	}
	records := []benchmarkRecord{}
	invalidRows := 0
	err := readCsv(path, benchmarkColumns, func (values []string) {
		date, err := getDate(values[0])
		if err != nil {
			invalidRows++
			return
		}
		price, valid := parsePrice(values[1])
		if !valid || !price.IsPositive() {
			invalidRows++
			return
		}
		if date.Before(dateMin) || date.After(dateMax) {
			return
		}
		records = append(records, benchmarkRecord{
			date: date,
			close: price.InexactFloat64(),
		})
	})
	if err != nil {
		return comparisonSeries{}, err
	}
	if invalidRows > 0 {
		log.Warn().Int("rows", invalidRows).Str("path", path).Msg("Skipped invalid benchmark rows")
	}
	if len(records) == 0 {
		return comparisonSeries{}, fmt.Errorf("%w: benchmark %s has no prices within the window", ErrNoData, path)
	}
	slices.SortStableFunc(records, func (a, b benchmarkRecord) int {
		return a.date.Compare(b.date)
	})
	base := records[0].close
	dates := make([]time.Time, len(records))
	values := make([]float64, len(records))
	for i, record := range records {
		dates[i] = record.date
		values[i] = record.close / base
	}
	return newComparisonSeries(label, dates, values), nil
}

func simulateVectors(events []EventRecord, vectors []LabeledWeights, settings ObjectiveSettings, workers int, log zerolog.Logger) ([]comparisonSeries, error) {
	type vectorResult struct {
		series comparisonSeries
		valid bool
		err error
	}
	results := parallelMap(workers, vectors, func (vector LabeledWeights) vectorResult {
		trajectory, err := backtestWeights(events, vector.Weights, settings)
		if err != nil {
			return vectorResult{err: fmt.Errorf("%s: %w", vector.Label, err)}
		}
		if len(trajectory) == 0 {
			return vectorResult{}
		}
		series := newComparisonSeries(vector.Label, trajectory.dates(), trajectory.values())
		return vectorResult{
			series: series,
			valid: true,
		}
	})
	output := []comparisonSeries{}
	for i, result := range results {
		if result.err != nil {
			return nil, result.err
		}
		if !result.valid {
			log.Warn().Str("label", vectors[i].Label).Msg("Weight vector produced no valid portfolio values")
			continue
		}
		output = append(output, result.series)
	}
	return output, nil
}

// getDrawdownBars returns the max drawdown of weights for every top-N value,
// once with equal and once with proportional allocation.
func getDrawdownBars(events []EventRecord, weights []float64, settings ObjectiveSettings, topNs []int, workers int) ([]float64, []float64, error) {
	tasks := []drawdownTask{}
	for _, topN := range topNs {
		for _, policy := range []AllocationPolicy{AllocationEqual, AllocationProportional} {
			tasks = append(tasks, drawdownTask{
				topN: topN,
				policy: policy,
			})
		}
	}
	type drawdownResult struct {
		drawdown float64
		err error
	}
	results := parallelMap(workers, tasks, func (task drawdownTask) drawdownResult {
		taskSettings := settings
		taskSettings.TopN = task.topN
		taskSettings.Allocation = task.policy
		trajectory, err := backtestWeights(events, weights, taskSettings)
		if err != nil {
			return drawdownResult{err: err}
		}
		return drawdownResult{drawdown: maxDrawdown(trajectory.values())}
	})
	equal := make([]float64, len(topNs))
	proportional := make([]float64, len(topNs))
	for i, result := range results {
		if result.err != nil {
			return nil, nil, result.err
		}
		if tasks[i].policy == AllocationEqual {
			equal[i / 2] = result.drawdown
		} else {
			proportional[i / 2] = result.drawdown
		}
	}
	return equal, proportional, nil
}

func plotComparison(series []comparisonSeries, directory string) error {
	gains := make([]chartSeries, len(series))
	daily := make([]chartSeries, len(series))
	drawdowns := make([]chartSeries, len(series))
	for i, s := range series {
		gainValues := make([]float64, len(s.values))
		for j, value := range s.values {
			gainValues[j] = (value - 1.0) * 100.0
		}
		gains[i] = chartSeries{
			label: s.label,
			dates: s.dates,
			values: gainValues,
		}
		changes := dailyChange(s.values)
		dailyValues := []float64{}
		for _, change := range changes[min(1, len(changes)):] {
			dailyValues = append(dailyValues, change * 100.0)
		}
		daily[i] = chartSeries{
			label: s.label,
			dates: s.dates[min(1, len(s.dates)):],
			values: dailyValues,
		}
		drawdownValues := make([]float64, len(s.drawdowns))
		for j, drawdown := range s.drawdowns {
			drawdownValues[j] = drawdown * 100.0
		}
		drawdowns[i] = chartSeries{
			label: s.label,
			dates: s.dates,
			values: drawdownValues,
		}
	}
	plots := []struct {
		title string
		yLabel string
		series []chartSeries
		fileName string
	}{
		{"Portfolio Gain Over Time (%)", "Gain (%)", gains, portfolioGainPlot},
		{"Daily Gain Over Time (%)", "Daily Gain (%)", daily, dailyGainPlot},
		{"Drawdown Over Time (%)", "Drawdown (%)", drawdowns, drawdownPlot},
	}
	for _, p := range plots {
		err := plotSeries(p.title, p.yLabel, p.series, filepath.Join(directory, p.fileName))
		if err != nil {
			return err
		}
	}
	return nil
}
