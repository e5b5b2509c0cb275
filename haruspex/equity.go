package haruspex

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const tradingDaysPerYear = 252

type returnStats struct {
	mean float64
	stdDev float64
	sharpe float64
}

func dailyChange(values []float64) []float64 {
	output := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		output[i] = values[i] - values[i - 1]
	}
	return output
}

func drawdownSeries(values []float64) []float64 {
	output := make([]float64, len(values))
	maxValue := math.Inf(-1)
	for i, value := range values {
		maxValue = max(maxValue, value)
		if maxValue > 0 {
			output[i] = (maxValue - value) / maxValue
		}
	}
	return output
}

func maxDrawdown(values []float64) float64 {
	maxDrawdown := 0.0
	for _, drawdown := range drawdownSeries(values) {
		maxDrawdown = max(maxDrawdown, drawdown)
	}
	return maxDrawdown
}

func totalGain(trajectory Trajectory) (float64, bool) {
	if len(trajectory) == 0 {
		return 0, false
	}
	last := trajectory[len(trajectory) - 1].Value
	return (last - 1.0) * 100.0, true
}

// The basis 1.0 is prepended so the first day's return is included.
func getReturnStats(values []float64) returnStats {
	returns := []float64{}
	previous := 1.0
	for _, value := range values {
		r, valid := getRateOfChange(value, previous)
		if valid {
			returns = append(returns, r * 100.0)
		}
		previous = value
	}
	if len(returns) < 2 {
		return returnStats{}
	}
	mean, stdDev := stat.MeanStdDev(returns, nil)
	sharpe := 0.0
	if stdDev > 0 {
		sharpe = math.Sqrt(tradingDaysPerYear) * mean / stdDev
	}
	return returnStats{
		mean: mean,
		stdDev: stdDev,
		sharpe: sharpe,
	}
}
