package haruspex

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

type baselineResult struct {
	gain float64
	ok bool
}

func Baseline(configuration *Configuration, log zerolog.Logger) error {
	events, err := loadEvents(configuration, log)
	if err != nil {
		return err
	}
	baseline, err := runBaseline(events, configuration, log)
	if err != nil {
		return err
	}
	weights := formatWeights(configuration.Backtest.BaselineWeights)
	fmt.Printf("Baseline weights: %s, total gain: %s\n", weights, formatGain(baseline.gain, baseline.ok))
	return nil
}

func runBaseline(events []EventRecord, configuration *Configuration, log zerolog.Logger) (baselineResult, error) {
	weights := configuration.Backtest.BaselineWeights
	trajectory, err := backtestWeights(events, weights, configuration.objectiveSettings())
	if err != nil {
		return baselineResult{}, err
	}
	gain, ok := totalGain(trajectory)
	if ok {
		log.Info().
			Str("weights", formatWeights(weights)).
			Int("days", len(trajectory)).
			Str("gain", formatGain(gain, ok)).
			Str("maxDrawdown", formatPercentage(maxDrawdown(trajectory.values()))).
			Msg("Baseline simulation complete")
	} else {
		log.Warn().Str("weights", formatWeights(weights)).Msg("Baseline produced " + noValidPortfolio)
	}
	result := baselineResult{
		gain: gain,
		ok: ok,
	}
	return result, nil
}

// OptimizeWeights runs the baseline followed by the weight search and writes
// the best vector to the report file.
func OptimizeWeights(configuration *Configuration, log zerolog.Logger) error {
	events, err := loadEvents(configuration, log)
	if err != nil {
		return err
	}
	baseline, err := runBaseline(events, configuration, log)
	if err != nil {
		return err
	}
	settings := configuration.objectiveSettings()
	cache := NewGainCache(events, settings, log)
	result, err := searchWeights(cache, configuration.Search.Bounds, configuration.Search.SearchSettings, log)
	if err != nil {
		return err
	}
	baselineWeights := LabeledWeights{
		Label: "Baseline",
		Weights: configuration.Backtest.BaselineWeights,
	}
	report := newSearchReport(settings, baselineWeights, baseline.gain, baseline.ok, result)
	report.cacheEntries = cache.Len()
	trajectory, err := backtestWeights(events, result.Weights, settings)
	if err != nil {
		return err
	}
	report.maxDrawdown = maxDrawdown(trajectory.values())
	err = writeFile(configuration.ReportPath, report.String())
	if err != nil {
		return err
	}
	log.Info().
		Str("runID", report.runID).
		Str("path", configuration.ReportPath).
		Int64("backtests", cache.Evaluations()).
		Msg("Wrote search report")
	fmt.Printf("\n")
	renderTable(os.Stdout, []string{"Vector", "Weights", "Total Gain"}, report.rows())
	fmt.Printf("\n")
	return nil
}

func Compare(configuration *Configuration, log zerolog.Logger) error {
	err := loadFont(configuration.FontPath, configuration.FontName)
	if err != nil {
		return err
	}
	events, err := loadEvents(configuration, log)
	if err != nil {
		return err
	}
	settings := configuration.objectiveSettings()
	compare := configuration.Compare
	workers := configuration.Search.Workers
	series, err := simulateVectors(events, compare.Vectors, settings, workers, log)
	if err != nil {
		return err
	}
	if compare.BenchmarkPath != "" {
		benchmark, err := loadBenchmark(compare.BenchmarkPath, compare.BenchmarkLabel, settings.DateMin, settings.DateMax, log)
		if err != nil {
			return err
		}
		series = append(series, benchmark)
	}
	if len(series) == 0 {
		return fmt.Errorf("%w: none of the weight vectors produced portfolio values", ErrNoData)
	}
	err = os.MkdirAll(configuration.OutputPath, 0755)
	if err != nil {
		return fmt.Errorf("failed to create output directory (%s): %w", configuration.OutputPath, err)
	}
	err = plotComparison(series, configuration.OutputPath)
	if err != nil {
		return err
	}
	equal, proportional, err := getDrawdownBars(events, compare.Vectors[0].Weights, settings, compare.DrawdownTopN, workers)
	if err != nil {
		return err
	}
	err = plotDrawdownBars(compare.DrawdownTopN, equal, proportional, filepath.Join(configuration.OutputPath, maxDrawdownPlot))
	if err != nil {
		return err
	}
	err = writeFile(filepath.Join(configuration.OutputPath, maxDrawdownText), formatDrawdownLines(series))
	if err != nil {
		return err
	}
	rows := [][]string{}
	for _, s := range series {
		rows = append(rows, s.row())
	}
	log.Info().Str("path", configuration.OutputPath).Int("series", len(series)).Msg("Wrote comparison charts")
	fmt.Printf("\n")
	renderTable(os.Stdout, []string{"Series", "Total Gain", "Max Drawdown", "Sharpe"}, rows)
	fmt.Printf("\n")
	return nil
}

func SpreadSentiments(configuration *Configuration, log zerolog.Logger) error {
	spread := configuration.Spread
	if spread.InputPath == "" || spread.OutputPath == "" {
		return fmt.Errorf("%w: spread requires inputPath and outputPath", ErrInvalidConfiguration)
	}
	location, err := time.LoadLocation(marketTimezone)
	if err != nil {
		return fmt.Errorf("failed to load time zone %s: %w", marketTimezone, err)
	}
	endDate := getDateFromTime(time.Now())
	if spread.EndDate != nil {
		endDate = spread.EndDate.Time
	}
	sentiments, err := readRawSentiments(spread.InputPath, location, log)
	if err != nil {
		return err
	}
	rows := spreadSentiments(sentiments, endDate)
	err = writeCsv(spread.OutputPath, sentimentColumns, rows)
	if err != nil {
		return err
	}
	stats := getSpreadStats(rows)
	log.Info().
		Str("path", spread.OutputPath).
		Int("rows", stats.rows).
		Int("users", stats.users).
		Int("symbols", stats.symbols).
		Msg("Wrote spread sentiments")
	if spread.StatsPath != "" {
		return writeFile(spread.StatsPath, stats.String())
	}
	return nil
}

func CalculateGains(configuration *Configuration, log zerolog.Logger) error {
	gains := configuration.Gains
	if gains.TickersPath == "" || gains.PricesDirectory == "" || gains.OutputPath == "" {
		return fmt.Errorf("%w: gains requires tickersPath, pricesDirectory and outputPath", ErrInvalidConfiguration)
	}
	tickers, err := readTickers(gains.TickersPath)
	if err != nil {
		return err
	}
	results := parallelMap(configuration.Search.Workers, tickers, func (symbol string) symbolGains {
		return calculateSymbolGains(symbol, gains.PricesDirectory)
	})
	for _, result := range results {
		if result.warning != "" {
			log.Warn().Str("symbol", result.symbol).Msg(result.warning)
		}
	}
	rows := getPriceRows(results)
	if len(rows) == 0 {
		return fmt.Errorf("%w: no daily gains could be calculated", ErrNoData)
	}
	err = writeCsv(gains.OutputPath, priceColumns, rows)
	if err != nil {
		return err
	}
	stats := getGainsStats(results)
	log.Info().
		Str("path", gains.OutputPath).
		Int("rows", stats.rows).
		Int("symbols", stats.symbols).
		Msg("Wrote daily gains")
	if gains.StatsPath != "" {
		return writeFile(gains.StatsPath, stats.String())
	}
	return nil
}

func loadEvents(configuration *Configuration, log zerolog.Logger) ([]EventRecord, error) {
	if configuration.SentimentsPath == "" || configuration.PricesPath == "" {
		return nil, fmt.Errorf("%w: sentimentsPath and pricesPath are required", ErrInvalidConfiguration)
	}
	events, err := loadDataset(configuration.SentimentsPath, configuration.PricesPath, log)
	if err != nil {
		return nil, err
	}
	err = requireEvents(events)
	if err != nil {
		return nil, err
	}
	return events, nil
}
