package haruspex

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigurationDefaults(t *testing.T) {
	configuration, err := parseConfiguration([]byte("sentimentsPath: s.csv\npricesPath: p.csv\n"))
	require.NoError(t, err)
	assert.Equal(t, "info", configuration.LogLevel)
	assert.Equal(t, defaultReportPath, configuration.ReportPath)
	settings := configuration.objectiveSettings()
	assert.Equal(t, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), settings.DateMin)
	assert.Equal(t, time.Date(2025, time.May, 31, 0, 0, 0, 0, time.UTC), settings.DateMax)
	assert.Equal(t, 10, settings.TopN)
	assert.Equal(t, AllocationEqual, settings.Allocation)
	assert.Equal(t, []float64{1, 1, 1, 1}, configuration.Backtest.BaselineWeights)
	assert.Equal(t, defaultBounds(), configuration.Search.Bounds)
	assert.Equal(t, 15, configuration.Search.PopulationSize)
	assert.True(t, *configuration.Search.Polish)
	require.Len(t, configuration.Compare.Vectors, 1)
	assert.Equal(t, []int{5, 10, 20}, configuration.Compare.DrawdownTopN)
}

func TestParseConfiguration(t *testing.T) {
	yamlData := `
backtest:
  dateMin: 2024-07-01
  dateMax: 2024-12-31
  topN: 5
  allocation: proportional
search:
  bounds: [[0, 2], [0, 1], [0.5, 1], [0, 1]]
  maxGenerations: 20
  polish: false
  seed: 9
compare:
  vectors:
    - label: A
      weights: [0.1, 0.2, 0.3, 0.4]
`
	configuration, err := parseConfiguration([]byte(yamlData))
	require.NoError(t, err)
	assert.Equal(t, 5, configuration.Backtest.TopN)
	assert.Equal(t, AllocationProportional, configuration.Backtest.Allocation.AllocationPolicy)
	assert.Equal(t, Bound{Min: 0, Max: 2}, configuration.Search.Bounds[0])
	assert.Equal(t, Bound{Min: 0.5, Max: 1}, configuration.Search.Bounds[2])
	assert.Equal(t, 20, configuration.Search.MaxGenerations)
	assert.Equal(t, int64(9), configuration.Search.Seed)
	assert.False(t, *configuration.Search.Polish)
	assert.Equal(t, "A", configuration.Compare.Vectors[0].Label)
}

func TestParseConfigurationInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown allocation", "backtest:\n  allocation: bogus\n"},
		{"reversed window", "backtest:\n  dateMin: 2025-01-01\n  dateMax: 2024-01-01\n"},
		{"negative topN", "backtest:\n  topN: -1\n"},
		{"bad bound", "search:\n  bounds: [[1, 0], [0, 1], [0, 1], [0, 1]]\n"},
		{"wrong bound count", "search:\n  bounds: [[0, 1]]\n"},
		{"short vector", "compare:\n  vectors:\n    - label: A\n      weights: [1]\n"},
		{"bad date", "backtest:\n  dateMin: someday\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseConfiguration([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}
