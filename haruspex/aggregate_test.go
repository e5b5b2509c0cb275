package haruspex

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreEvents(t *testing.T) {
	events := []EventRecord{
		newTestEvent(day(time.June, 3), "AAA", [featureCount]float64{2, 10, 4, 300}, 1),
		{
			Date: day(time.June, 3),
			Symbol: "BBB",
			PlayerLevel: floatPointer(3),
			TwoYearGain: nil,
			MonthsActive: floatPointer(1),
			DaysSincePost: floatPointer(0),
		},
		{
			Date: day(time.June, 3),
			Symbol: "CCC",
			PlayerLevel: floatPointer(1),
			TwoYearGain: floatPointer(1),
			MonthsActive: floatPointer(1),
			DaysSincePost: floatPointer(400),
		},
	}
	scored := scoreEvents(events, []float64{1, 0.5, 0.25, 0.01})
	require.Len(t, scored, 3)
	require.NotNil(t, scored[0].Score)
	assert.InDelta(t, 2 + 5 + 1 + 3, *scored[0].Score, 1e-12)
	assert.Equal(t, 1.0, *scored[0].DailyGain)
	assert.Nil(t, scored[1].Score)
	require.NotNil(t, scored[2].Score)
	assert.InDelta(t, 1.75, *scored[2].Score, 1e-12)
}

func TestAggregateScores(t *testing.T) {
	scored := []ScoredEvent{
		{Date: day(time.June, 4), Symbol: "BBB", Score: floatPointer(1), DailyGain: floatPointer(3)},
		{Date: day(time.June, 3), Symbol: "AAA", Score: floatPointer(2), DailyGain: floatPointer(1)},
		{Date: day(time.June, 3), Symbol: "AAA", Score: floatPointer(5), DailyGain: floatPointer(1)},
		{Date: day(time.June, 3), Symbol: "AAA", Score: nil, DailyGain: floatPointer(1)},
		{Date: day(time.June, 3), Symbol: "BBB", Score: nil},
	}
	aggregated := aggregateScores(scored)
	require.Len(t, aggregated, 3)
	assert.Equal(t, "AAA", aggregated[0].Symbol)
	assert.Equal(t, 7.0, aggregated[0].Score)
	assert.Equal(t, 1.0, *aggregated[0].DailyGain)
	assert.Equal(t, "BBB", aggregated[1].Symbol)
	assert.Equal(t, day(time.June, 3), aggregated[1].Date)
	assert.Zero(t, aggregated[1].Score)
	assert.Nil(t, aggregated[1].DailyGain)
	assert.Equal(t, day(time.June, 4), aggregated[2].Date)
}

func TestFilterDateRangeInclusive(t *testing.T) {
	rows := []AggregateRecord{
		{Date: day(time.June, 5), Symbol: "C"},
		{Date: day(time.June, 1), Symbol: "A"},
		{Date: day(time.May, 31), Symbol: "X"},
		{Date: day(time.June, 30), Symbol: "B"},
		{Date: day(time.July, 1), Symbol: "Y"},
	}
	filtered := filterDateRange(rows, day(time.June, 1), day(time.June, 30))
	require.Len(t, filtered, 3)
	assert.Equal(t, "A", filtered[0].Symbol)
	assert.Equal(t, "C", filtered[1].Symbol)
	assert.Equal(t, "B", filtered[2].Symbol)
}
