package haruspex

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(month time.Month, dayOfMonth int) time.Time {
	return time.Date(2024, month, dayOfMonth, 0, 0, 0, 0, time.UTC)
}

func floatPointer(value float64) *float64 {
	return &value
}

func TestSimulateTwoDayScenario(t *testing.T) {
	rows := []AggregateRecord{
		{Date: day(time.June, 3), Symbol: "AAA", Score: 10, DailyGain: floatPointer(2)},
		{Date: day(time.June, 3), Symbol: "BBB", Score: 5, DailyGain: floatPointer(-1)},
		{Date: day(time.June, 4), Symbol: "AAA", Score: 5, DailyGain: floatPointer(1)},
		{Date: day(time.June, 4), Symbol: "BBB", Score: 10, DailyGain: floatPointer(3)},
	}
	trajectory, err := SimulateByName(rows, 1, "equal")
	require.NoError(t, err)
	require.Len(t, trajectory, 2)
	assert.Equal(t, day(time.June, 3), trajectory[0].Date)
	assert.InDelta(t, 1.02, trajectory[0].Value, 1e-12)
	assert.InDelta(t, 1.0506, trajectory[1].Value, 1e-12)
	gain, ok := totalGain(trajectory)
	assert.True(t, ok)
	assert.InDelta(t, 5.06, gain, 1e-9)
}

func TestSimulateUnknownAllocation(t *testing.T) {
	rows := []AggregateRecord{
		{Date: day(time.June, 3), Symbol: "AAA", Score: 1, DailyGain: floatPointer(2)},
	}
	trajectory, err := SimulateByName(rows, 10, "bogus")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
	assert.Nil(t, trajectory)

	_, err = simulate(rows, 10, AllocationPolicy(7))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestSimulateInvalidTopN(t *testing.T) {
	_, err := simulate(nil, 0, AllocationEqual)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestSimulateNoTradeDays(t *testing.T) {
	rows := []AggregateRecord{
		{Date: day(time.June, 3), Symbol: "AAA", Score: 3},
		{Date: day(time.June, 5), Symbol: "BBB", Score: 2},
		{Date: day(time.June, 10), Symbol: "CCC", Score: 1},
	}
	trajectory, err := simulate(rows, 10, AllocationEqual)
	require.NoError(t, err)
	require.Len(t, trajectory, 3)
	for _, sample := range trajectory {
		assert.Equal(t, 1.0, sample.Value)
	}
	gain, ok := totalGain(trajectory)
	assert.True(t, ok)
	assert.Equal(t, 0.0, gain)
}

func TestSimulateMissingGainDoesNotBackfill(t *testing.T) {
	// The top-ranked symbol has no return, so only the second one trades.
	rows := []AggregateRecord{
		{Date: day(time.June, 3), Symbol: "AAA", Score: 9},
		{Date: day(time.June, 3), Symbol: "BBB", Score: 8, DailyGain: floatPointer(4)},
		{Date: day(time.June, 3), Symbol: "CCC", Score: 7, DailyGain: floatPointer(100)},
	}
	trajectory, err := simulate(rows, 2, AllocationEqual)
	require.NoError(t, err)
	require.Len(t, trajectory, 1)
	assert.InDelta(t, 1.04, trajectory[0].Value, 1e-12)
}

func TestSimulateUnsortedInput(t *testing.T) {
	rows := []AggregateRecord{
		{Date: day(time.June, 4), Symbol: "AAA", Score: 1, DailyGain: floatPointer(10)},
		{Date: day(time.June, 3), Symbol: "AAA", Score: 1, DailyGain: floatPointer(-10)},
	}
	trajectory, err := simulate(rows, 1, AllocationEqual)
	require.NoError(t, err)
	require.Len(t, trajectory, 2)
	assert.Equal(t, day(time.June, 3), trajectory[0].Date)
	assert.InDelta(t, 0.9, trajectory[0].Value, 1e-12)
	assert.InDelta(t, 0.99, trajectory[1].Value, 1e-12)
}

func TestSimulateTieBreakBySymbol(t *testing.T) {
	rows := []AggregateRecord{
		{Date: day(time.June, 3), Symbol: "ZZZ", Score: 5, DailyGain: floatPointer(-5)},
		{Date: day(time.June, 3), Symbol: "MMM", Score: 5, DailyGain: floatPointer(3)},
		{Date: day(time.June, 3), Symbol: "AAA", Score: 5, DailyGain: floatPointer(1)},
	}
	trajectory, err := simulate(rows, 1, AllocationEqual)
	require.NoError(t, err)
	assert.InDelta(t, 1.01, trajectory[0].Value, 1e-12)
}

func TestSimulateProportional(t *testing.T) {
	rows := []AggregateRecord{
		{Date: day(time.June, 3), Symbol: "AAA", Score: 3, DailyGain: floatPointer(4)},
		{Date: day(time.June, 3), Symbol: "BBB", Score: 1, DailyGain: floatPointer(-4)},
	}
	trajectory, err := SimulateByName(rows, 10, "proportional")
	require.NoError(t, err)
	assert.InDelta(t, 1.02, trajectory[0].Value, 1e-12)
}

func TestAllocationWeights(t *testing.T) {
	tests := []struct {
		name string
		policy AllocationPolicy
		scores []float64
		want []float64
	}{
		{
			name: "equal",
			policy: AllocationEqual,
			scores: []float64{9, 3, 1},
			want: []float64{1.0 / 3, 1.0 / 3, 1.0 / 3},
		},
		{
			name: "proportional positive",
			policy: AllocationProportional,
			scores: []float64{3, 1},
			want: []float64{0.75, 0.25},
		},
		{
			name: "proportional zero sum falls back to equal",
			policy: AllocationProportional,
			scores: []float64{2, -2},
			want: []float64{0.5, 0.5},
		},
		{
			name: "proportional negative sum falls back to equal",
			policy: AllocationProportional,
			scores: []float64{-1, -3, -4, 0},
			want: []float64{0.25, 0.25, 0.25, 0.25},
		},
		{
			name: "empty",
			policy: AllocationEqual,
			scores: []float64{},
			want: []float64{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			weights := allocationWeights(tt.policy, tt.scores)
			require.Len(t, weights, len(tt.want))
			sum := 0.0
			for i := range weights {
				assert.InDelta(t, tt.want[i], weights[i], 1e-12)
				sum += weights[i]
			}
			if len(weights) > 0 {
				assert.InDelta(t, 1.0, sum, 1e-12)
			}
		})
	}
}

func TestParseAllocationPolicy(t *testing.T) {
	policy, err := parseAllocationPolicy(" Proportional ")
	require.NoError(t, err)
	assert.Equal(t, AllocationProportional, policy)
	assert.Equal(t, "proportional", policy.String())

	_, err = parseAllocationPolicy("momentum")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}
