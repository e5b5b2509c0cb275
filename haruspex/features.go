package haruspex

import "time"

const featureCount = 4
const recencyHorizonDays = 365.0

type featureAccessor struct {
	name string
	get func (*EventRecord) *float64
}

type ScoredEvent struct {
	Date time.Time
	Symbol string
	Score *float64
	DailyGain *float64
}

func getFeatureAccessors() []featureAccessor {
	return []featureAccessor{
		{
			name: "playerLevel",
			get: func (r *EventRecord) *float64 {
				return r.PlayerLevel
			},
		},
		{
			name: "twoYearGain",
			get: func (r *EventRecord) *float64 {
				return r.TwoYearGain
			},
		},
		{
			name: "monthsActive",
			get: func (r *EventRecord) *float64 {
				return r.MonthsActive
			},
		},
		{
			name: "recency",
			get: func (r *EventRecord) *float64 {
				if r.DaysSincePost == nil {
					return nil
				}
				recency := max(0.0, recencyHorizonDays - *r.DaysSincePost)
				return &recency
			},
		},
	}
}

// scoreEvents never modifies events, so concurrent evaluations may share them.
func scoreEvents(events []EventRecord, weights []float64) []ScoredEvent {
	accessors := getFeatureAccessors()
	output := make([]ScoredEvent, len(events))
	for i := range events {
		event := &events[i]
		output[i] = ScoredEvent{
			Date: event.Date,
			Symbol: event.Symbol,
			DailyGain: event.DailyGain,
		}
		score := 0.0
		complete := true
		for j, accessor := range accessors {
			value := accessor.get(event)
			if value == nil {
				complete = false
				break
			}
			score += weights[j] * *value
		}
		if complete {
			output[i].Score = &score
		}
	}
	return output
}

func getFeatureNames() []string {
	accessors := getFeatureAccessors()
	names := make([]string, len(accessors))
	for i, accessor := range accessors {
		names[i] = accessor.name
	}
	return names
}
