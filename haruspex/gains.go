package haruspex

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const historicalSuffix = "_historical.csv"
const commentPrefix = "//"

var historicalColumns = []string{
	"date",
	"open",
	"close",
}

var hundred = decimal.NewFromInt(100)

type symbolGains struct {
	symbol string
	records []PriceRecord
	warning string
}

func readTickers(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ticker list (%s): %w", path, err)
	}
	tickers := []string{}
	lines := strings.Split(strings.ReplaceAll(string(content), "\r", ""), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}
		tickers = append(tickers, line)
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("%w: no tickers found in %s", ErrNoData, path)
	}
	return tickers, nil
}

func getHistoricalPath(directory, symbol string) string {
	fileSymbol := strings.ReplaceAll(symbol, ".", "_")
	return filepath.Join(directory, fileSymbol + historicalSuffix)
}

// parsePrice accepts thousands separators, which some quote exports contain.
func parsePrice(value string) (decimal.Decimal, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	if cleaned == "" {
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return price, true
}

// getDailyGain returns (close - open) / open * 100.
func getDailyGain(open, close decimal.Decimal) (float64, bool) {
	if open.IsZero() {
		return 0, false
	}
	gain := close.Sub(open).Div(open).Mul(hundred)
	return gain.InexactFloat64(), true
}

func calculateSymbolGains(symbol, directory string) symbolGains {
	path := getHistoricalPath(directory, symbol)
	output := symbolGains{
		symbol: symbol,
	}
	if _, err := os.Stat(path); err != nil {
		output.warning = fmt.Sprintf("price data for %s not found at %s", symbol, path)
		return output
	}
	invalidRows := 0
	err := readCsv(path, historicalColumns, func (values []string) {
		date, err := getDate(values[0])
		if err != nil {
			invalidRows++
			return
		}
		open, openValid := parsePrice(values[1])
		close, closeValid := parsePrice(values[2])
		if !openValid || !closeValid {
			invalidRows++
			return
		}
		gain, valid := getDailyGain(open, close)
		if !valid {
			invalidRows++
			return
		}
		record := PriceRecord{
			Date: date,
			Symbol: symbol,
			DailyGain: &gain,
		}
		output.records = append(output.records, record)
	})
	if err != nil {
		output.records = nil
		output.warning = err.Error()
		return output
	}
	if invalidRows > 0 {
		output.warning = fmt.Sprintf("%s contains %d rows with missing or non-numeric values", symbol, invalidRows)
	}
	slices.SortStableFunc(output.records, func (a, b PriceRecord) int {
		return a.Date.Compare(b.Date)
	})
	return output
}

func getPriceRows(results []symbolGains) [][]string {
	rows := [][]string{}
	for _, result := range results {
		for _, record := range result.records {
			row := []string{
				getDateString(record.Date),
				record.Symbol,
				formatOptionalFloat(record.DailyGain),
			}
			rows = append(rows, row)
		}
	}
	return rows
}

type gainsStats struct {
	symbols int
	rows int
	dateMin time.Time
	dateMax time.Time
}

func getGainsStats(results []symbolGains) gainsStats {
	stats := gainsStats{}
	for _, result := range results {
		if len(result.records) == 0 {
			continue
		}
		stats.symbols++
		stats.rows += len(result.records)
		first := result.records[0].Date
		last := result.records[len(result.records) - 1].Date
		if stats.dateMin.IsZero() || first.Before(stats.dateMin) {
			stats.dateMin = first
		}
		if last.After(stats.dateMax) {
			stats.dateMax = last
		}
	}
	return stats
}

func (s gainsStats) String() string {
	output := fmt.Sprintf("min_date: %s\n", getDateString(s.dateMin))
	output += fmt.Sprintf("max_date: %s\n", getDateString(s.dateMax))
	output += fmt.Sprintf("num_symbols: %d\n", s.symbols)
	output += fmt.Sprintf("num_rows: %d\n", s.rows)
	return output
}
