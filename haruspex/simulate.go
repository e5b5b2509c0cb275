package haruspex

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
)

type AllocationPolicy int

const (
	AllocationEqual AllocationPolicy = iota
	AllocationProportional
)

type TrajectorySample struct {
	Date time.Time
	Value float64
}

type Trajectory []TrajectorySample

func parseAllocationPolicy(name string) (AllocationPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "equal":
		return AllocationEqual, nil
	case "proportional":
		return AllocationProportional, nil
	default:
		return AllocationEqual, fmt.Errorf("%w: unknown allocation policy \"%s\"", ErrInvalidConfiguration, name)
	}
}

func (p AllocationPolicy) String() string {
	switch p {
	case AllocationEqual:
		return "equal"
	case AllocationProportional:
		return "proportional"
	default:
		return fmt.Sprintf("AllocationPolicy(%d)", int(p))
	}
}

func (p AllocationPolicy) valid() bool {
	return p == AllocationEqual || p == AllocationProportional
}

// SimulateByName resolves the policy before touching the rows.
func SimulateByName(rows []AggregateRecord, topN int, allocation string) (Trajectory, error) {
	policy, err := parseAllocationPolicy(allocation)
	if err != nil {
		return nil, err
	}
	return simulate(rows, topN, policy)
}

// simulate compounds a portfolio starting at 1.0. Rows need not be sorted.
// Symbols with equal scores are ranked by symbol name.
func simulate(rows []AggregateRecord, topN int, policy AllocationPolicy) (Trajectory, error) {
	if !policy.valid() {
		return nil, fmt.Errorf("%w: unknown allocation policy %d", ErrInvalidConfiguration, int(policy))
	}
	if topN < 1 {
		return nil, fmt.Errorf("%w: topN must be positive, got %d", ErrInvalidConfiguration, topN)
	}
	sorted := make([]AggregateRecord, len(rows))
	copy(sorted, rows)
	slices.SortStableFunc(sorted, compareForSelection)
	trajectory := Trajectory{}
	value := 1.0
	for start := 0; start < len(sorted); {
		date := sorted[start].Date
		end := start + 1
		for end < len(sorted) && sorted[end].Date.Equal(date) {
			end++
		}
		day := sorted[start:end]
		if len(day) > topN {
			day = day[:topN]
		}
		scores := []float64{}
		gains := []float64{}
		for _, row := range day {
			if row.DailyGain == nil {
				continue
			}
			scores = append(scores, row.Score)
			gains = append(gains, *row.DailyGain)
		}
		if len(gains) > 0 {
			weights := allocationWeights(policy, scores)
			weightedGain := floats.Dot(weights, gains)
			value *= 1.0 + weightedGain / 100.0
		}
		sample := TrajectorySample{
			Date: date,
			Value: value,
		}
		trajectory = append(trajectory, sample)
		start = end
	}
	return trajectory, nil
}

func compareForSelection(a, b AggregateRecord) int {
	dateComparison := a.Date.Compare(b.Date)
	if dateComparison != 0 {
		return dateComparison
	}
	scoreComparison := cmp.Compare(b.Score, a.Score)
	if scoreComparison != 0 {
		return scoreComparison
	}
	return strings.Compare(a.Symbol, b.Symbol)
}

func allocationWeights(policy AllocationPolicy, scores []float64) []float64 {
	count := len(scores)
	weights := make([]float64, count)
	if count == 0 {
		return weights
	}
	if policy == AllocationProportional {
		sum := floats.Sum(scores)
		if sum > 0 {
			for i, score := range scores {
				weights[i] = score / sum
			}
			return weights
		}
	}
	for i := range weights {
		weights[i] = 1.0 / float64(count)
	}
	return weights
}

func (t Trajectory) values() []float64 {
	values := make([]float64, len(t))
	for i, sample := range t {
		values[i] = sample.Value
	}
	return values
}

func (t Trajectory) dates() []time.Time {
	dates := make([]time.Time, len(t))
	for i, sample := range t {
		dates[i] = sample.Date
	}
	return dates
}
