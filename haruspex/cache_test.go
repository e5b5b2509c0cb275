package haruspex

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEvent(date time.Time, symbol string, features [featureCount]float64, gain float64) EventRecord {
	daysSincePost := recencyHorizonDays - features[3]
	return EventRecord{
		Date: date,
		Symbol: symbol,
		OwnerID: "1",
		PlayerLevel: floatPointer(features[0]),
		TwoYearGain: floatPointer(features[1]),
		MonthsActive: floatPointer(features[2]),
		DaysSincePost: &daysSincePost,
		DailyGain: floatPointer(gain),
	}
}

func getTestEvents() []EventRecord {
	return []EventRecord{
		newTestEvent(day(time.June, 3), "AAA", [featureCount]float64{1, 10, 2, 365}, 2),
		newTestEvent(day(time.June, 3), "BBB", [featureCount]float64{6, 0, 1, 365}, -1),
		newTestEvent(day(time.May, 31), "AAA", [featureCount]float64{1, 10, 2, 365}, 50),
	}
}

func getTestSettings() ObjectiveSettings {
	return ObjectiveSettings{
		DateMin: day(time.June, 1),
		DateMax: day(time.June, 30),
		TopN: 1,
		Allocation: AllocationEqual,
	}
}

func TestGainCacheEvaluate(t *testing.T) {
	cache := NewGainCache(getTestEvents(), getTestSettings(), zerolog.Nop())
	gain, ok := cache.Evaluate([]float64{1, 0, 0, 0})
	require.True(t, ok)
	assert.InDelta(t, -1.0, gain, 1e-9)
	gain, ok = cache.Evaluate([]float64{0, 1, 0, 0})
	require.True(t, ok)
	assert.InDelta(t, 2.0, gain, 1e-9)
	assert.Equal(t, int64(2), cache.Evaluations())
	assert.Equal(t, 2, cache.Len())
}

func TestGainCacheIdempotent(t *testing.T) {
	cache := NewGainCache(getTestEvents(), getTestSettings(), zerolog.Nop())
	weights := []float64{0.3, 0.4, 0.5, 0.6}
	first, ok := cache.Evaluate(weights)
	require.True(t, ok)
	noisy := []float64{0.3 + 1e-10, 0.4 - 1e-10, 0.5 + 3e-11, 0.6}
	second, ok := cache.Evaluate(noisy)
	require.True(t, ok)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), cache.Evaluations())

	_, _ = cache.Evaluate([]float64{0.3 + 1e-7, 0.4, 0.5, 0.6})
	assert.Equal(t, int64(2), cache.Evaluations())
}

func TestGainCacheNoResult(t *testing.T) {
	settings := getTestSettings()
	settings.DateMin = time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)
	settings.DateMax = time.Date(2030, time.December, 31, 0, 0, 0, 0, time.UTC)
	cache := NewGainCache(getTestEvents(), settings, zerolog.Nop())
	_, ok := cache.Evaluate([]float64{1, 1, 1, 1})
	assert.False(t, ok)
	_, ok = cache.Evaluate([]float64{1, 1, 1, 1})
	assert.False(t, ok)
	assert.Equal(t, int64(1), cache.Evaluations())
}

func TestGainCacheRejectsWrongLength(t *testing.T) {
	cache := NewGainCache(getTestEvents(), getTestSettings(), zerolog.Nop())
	_, ok := cache.Evaluate([]float64{1, 1})
	assert.False(t, ok)
	assert.Zero(t, cache.Evaluations())
	_, err := newCacheKey([]float64{1})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestGainCacheConcurrent(t *testing.T) {
	events := getTestEvents()
	cache := NewGainCache(events, getTestSettings(), zerolog.Nop())
	var wg sync.WaitGroup
	gains := make([]float64, 32)
	for i := range gains {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gains[i], _ = cache.Evaluate([]float64{0, 1, 0, 0})
		}()
	}
	wg.Wait()
	for _, gain := range gains {
		assert.InDelta(t, 2.0, gain, 1e-9)
	}
	assert.Equal(t, int64(1), cache.Evaluations())
	assert.Equal(t, 2.0, *events[0].DailyGain)
}

func TestBacktestWeightsLeavesEventsUntouched(t *testing.T) {
	events := getTestEvents()
	before := *events[1].PlayerLevel
	_, err := backtestWeights(events, []float64{2, 2, 2, 2}, getTestSettings())
	require.NoError(t, err)
	assert.Equal(t, before, *events[1].PlayerLevel)
}
