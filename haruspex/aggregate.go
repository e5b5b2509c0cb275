package haruspex

import (
	"slices"
	"strings"
	"time"
)

type AggregateRecord struct {
	Date time.Time
	Symbol string
	Score float64
	DailyGain *float64
}

type aggregateKey struct {
	date time.Time
	symbol string
}

// aggregateScores sums scores per (date, symbol). Missing scores count as zero.
// The daily gain of the first contributor is carried through, never summed.
func aggregateScores(events []ScoredEvent) []AggregateRecord {
	indexMap := map[aggregateKey]int{}
	output := []AggregateRecord{}
	for _, event := range events {
		key := aggregateKey{
			date: event.Date,
			symbol: event.Symbol,
		}
		index, exists := indexMap[key]
		if !exists {
			index = len(output)
			indexMap[key] = index
			record := AggregateRecord{
				Date: event.Date,
				Symbol: event.Symbol,
				DailyGain: event.DailyGain,
			}
			output = append(output, record)
		}
		if event.Score != nil {
			output[index].Score += *event.Score
		}
	}
	slices.SortFunc(output, func (a, b AggregateRecord) int {
		dateComparison := a.Date.Compare(b.Date)
		if dateComparison != 0 {
			return dateComparison
		}
		return strings.Compare(a.Symbol, b.Symbol)
	})
	return output
}

// Both ends are inclusive.
func filterDateRange(rows []AggregateRecord, dateMin, dateMax time.Time) []AggregateRecord {
	output := []AggregateRecord{}
	for _, row := range rows {
		if row.Date.Before(dateMin) || row.Date.After(dateMax) {
			continue
		}
		output = append(output, row)
	}
	slices.SortStableFunc(output, func (a, b AggregateRecord) int {
		return a.Date.Compare(b.Date)
	})
	return output
}
