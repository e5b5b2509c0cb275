package haruspex

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDailyGain(t *testing.T) {
	gain, ok := getDailyGain(decimal.RequireFromString("200"), decimal.RequireFromString("203"))
	require.True(t, ok)
	assert.InDelta(t, 1.5, gain, 1e-12)

	gain, ok = getDailyGain(decimal.RequireFromString("50"), decimal.RequireFromString("49"))
	require.True(t, ok)
	assert.InDelta(t, -2.0, gain, 1e-12)

	_, ok = getDailyGain(decimal.Zero, decimal.RequireFromString("1"))
	assert.False(t, ok)
}

func TestParsePrice(t *testing.T) {
	price, ok := parsePrice(" 1,234.50 ")
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.RequireFromString("1234.5")))
	_, ok = parsePrice("")
	assert.False(t, ok)
	_, ok = parsePrice("n/a")
	assert.False(t, ok)
}

func TestReadTickers(t *testing.T) {
	path := writeTestFile(t, "tickers.txt", "AAPL\r\n\r\n// removed\nBRK.B\n  MSFT  \n")
	tickers, err := readTickers(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "BRK.B", "MSFT"}, tickers)

	empty := writeTestFile(t, "empty.txt", "// nothing\n")
	_, err = readTickers(empty)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestCalculateSymbolGains(t *testing.T) {
	directory := t.TempDir()
	content := `date,open,close,volume
2024-06-04,"1,000.00","1,010.00",5
2024-06-03,100,99,5
2024-06-05,0,10,5
2024-06-06,abc,10,5
`
	path := filepath.Join(directory, "BRK_B_historical.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	result := calculateSymbolGains("BRK.B", directory)
	require.Len(t, result.records, 2)
	assert.Equal(t, day(time.June, 3), result.records[0].Date)
	assert.InDelta(t, -1.0, *result.records[0].DailyGain, 1e-12)
	assert.InDelta(t, 1.0, *result.records[1].DailyGain, 1e-12)
	assert.Equal(t, "BRK.B", result.records[1].Symbol)
	assert.Contains(t, result.warning, "2 rows")

	missing := calculateSymbolGains("NOPE", directory)
	assert.Empty(t, missing.records)
	assert.Contains(t, missing.warning, "not found")

	rows := getPriceRows([]symbolGains{result, missing})
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2024-06-03", "BRK.B", "-1"}, rows[0])

	stats := getGainsStats([]symbolGains{result, missing})
	assert.Equal(t, 1, stats.symbols)
	assert.Equal(t, 2, stats.rows)
	assert.Equal(t, day(time.June, 4), stats.dateMax)
}
