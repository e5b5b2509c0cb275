package haruspex

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
)

const marketTimezone = "America/New_York"
const marketOpenHour = 9
const marketOpenMinute = 30
const internalLevel = "internal"

var rawSentimentColumns = []string{
	"OwnerID",
	"CreateTime",
	"PlayerLevel",
	"TwoYearGain",
	"MonthsActive",
	"Symbol",
	"SentimentScore",
}

var playerLevels = map[string]float64{
	"bronze": 1,
	"silver": 2,
	"gold": 3,
	"platinum": 4,
	"platinum plus": 5,
	"diamond": 6,
}

type rawSentiment struct {
	ownerID string
	createTime time.Time
	playerLevel *float64
	twoYearGain string
	monthsActive string
	symbol string
	sentimentScore string
	date time.Time
}

type spreadGroupKey struct {
	ownerID string
	symbol string
}

type spreadStats struct {
	users int
	symbols int
	rows int
	dateMin time.Time
	dateMax time.Time
}

func mapPlayerLevel(level string) *float64 {
	normalized := strings.Join(strings.Fields(strings.ToLower(level)), " ")
	value, exists := playerLevels[normalized]
	if !exists {
		return nil
	}
	return &value
}

// getEffectiveDate assigns posts made after the 09:30 New York open to the
// following trading date.
func getEffectiveDate(createTime time.Time, location *time.Location) time.Time {
	local := createTime.In(location)
	date := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	if local.Hour() < marketOpenHour || (local.Hour() == marketOpenHour && local.Minute() < marketOpenMinute) {
		return date
	}
	return date.AddDate(0, 0, 1)
}

func readRawSentiments(path string, location *time.Location, log zerolog.Logger) ([]rawSentiment, error) {
	sentiments := []rawSentiment{}
	invalidTimes := 0
	unmappedLevels := 0
	internalRows := 0
	err := readCsv(path, rawSentimentColumns, func (values []string) {
		level := values[2]
		if strings.EqualFold(strings.TrimSpace(level), internalLevel) {
			internalRows++
			return
		}
		createTime, err := getTimestamp(values[1])
		if err != nil {
			invalidTimes++
			return
		}
		playerLevel := mapPlayerLevel(level)
		if playerLevel == nil {
			unmappedLevels++
		}
		sentiment := rawSentiment{
			ownerID: strings.TrimSpace(values[0]),
			createTime: createTime,
			playerLevel: playerLevel,
			twoYearGain: strings.TrimSpace(values[3]),
			monthsActive: strings.TrimSpace(values[4]),
			symbol: strings.TrimSpace(values[5]),
			sentimentScore: strings.TrimSpace(values[6]),
			date: getEffectiveDate(createTime, location),
		}
		sentiments = append(sentiments, sentiment)
	})
	if err != nil {
		return nil, err
	}
	log.Info().
		Int("rows", len(sentiments)).
		Int("internal", internalRows).
		Msg("Read raw sentiments")
	if unmappedLevels > 0 {
		log.Warn().Int("rows", unmappedLevels).Msg("Some PlayerLevel values could not be mapped to IDs")
	}
	if invalidTimes > 0 {
		log.Warn().Int("rows", invalidTimes).Msg("Skipped rows with invalid CreateTime")
	}
	return sentiments, nil
}

// spreadSentiments repeats every post on each day until the next post by the
// same owner on the same symbol, or until endDate for the latest one.
// daysSincePost counts the days since the post was made.
func spreadSentiments(sentiments []rawSentiment, endDate time.Time) [][]string {
	groups := map[spreadGroupKey][]rawSentiment{}
	keys := []spreadGroupKey{}
	for _, sentiment := range sentiments {
		key := spreadGroupKey{
			ownerID: sentiment.ownerID,
			symbol: sentiment.symbol,
		}
		if _, exists := groups[key]; !exists {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], sentiment)
	}
	slices.SortFunc(keys, func (a, b spreadGroupKey) int {
		return cmp.Or(compareOwners(a.ownerID, b.ownerID), strings.Compare(a.symbol, b.symbol))
	})
	rows := [][]string{}
	for _, key := range keys {
		group := groups[key]
		slices.SortStableFunc(group, func (a, b rawSentiment) int {
			return cmp.Or(a.date.Compare(b.date), a.createTime.Compare(b.createTime))
		})
		for i, sentiment := range group {
			lastDate := endDate
			if i < len(group) - 1 {
				lastDate = group[i + 1].date.AddDate(0, 0, -1)
			}
			for day, date := 0, sentiment.date; !date.After(lastDate); day, date = day + 1, date.AddDate(0, 0, 1) {
				row := []string{
					sentiment.ownerID,
					sentiment.createTime.Format(time.RFC3339),
					formatOptionalFloat(sentiment.playerLevel),
					sentiment.twoYearGain,
					sentiment.monthsActive,
					sentiment.symbol,
					sentiment.sentimentScore,
					getDateString(date),
					strconv.Itoa(day),
				}
				rows = append(rows, row)
			}
		}
	}
	return rows
}

// Numeric owner IDs are ordered numerically, everything else lexically.
func compareOwners(a, b string) int {
	aNumber, aErr := strconv.ParseFloat(a, 64)
	bNumber, bErr := strconv.ParseFloat(b, 64)
	if aErr == nil && bErr == nil {
		return cmp.Compare(aNumber, bNumber)
	}
	return strings.Compare(a, b)
}

func getSpreadStats(rows [][]string) spreadStats {
	users := map[string]struct{}{}
	symbols := map[string]struct{}{}
	stats := spreadStats{
		rows: len(rows),
	}
	for _, row := range rows {
		users[row[0]] = struct{}{}
		symbols[row[5]] = struct{}{}
		date, err := getDate(row[7])
		if err != nil {
			continue
		}
		if stats.dateMin.IsZero() || date.Before(stats.dateMin) {
			stats.dateMin = date
		}
		if date.After(stats.dateMax) {
			stats.dateMax = date
		}
	}
	stats.users = len(users)
	stats.symbols = len(symbols)
	return stats
}

func (s spreadStats) String() string {
	output := fmt.Sprintf("num_users: %d\n", s.users)
	output += fmt.Sprintf("min_date: %s\n", getDateString(s.dateMin))
	output += fmt.Sprintf("max_date: %s\n", getDateString(s.dateMax))
	output += fmt.Sprintf("num_symbols: %d\n", s.symbols)
	output += fmt.Sprintf("num_rows: %d\n", s.rows)
	return output
}
