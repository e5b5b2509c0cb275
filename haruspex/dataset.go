package haruspex

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var sentimentColumns = []string{
	"OwnerID",
	"CreateTime",
	"PlayerLevel",
	"TwoYearGain",
	"MonthsActive",
	"Symbol",
	"SentimentScore",
	"date",
	"daysSincePost",
}

var priceColumns = []string{
	"date",
	"symbol",
	"daily_gain",
}

type EventRecord struct {
	Date time.Time
	Symbol string
	OwnerID string
	CreateTime time.Time
	PlayerLevel *float64
	TwoYearGain *float64
	MonthsActive *float64
	SentimentScore *float64
	DaysSincePost *float64
	DailyGain *float64
}

type PriceRecord struct {
	Date time.Time
	Symbol string
	DailyGain *float64
}

type priceKey = aggregateKey

func loadDataset(sentimentsPath, pricesPath string, log zerolog.Logger) ([]EventRecord, error) {
	var events []EventRecord
	var prices []PriceRecord
	var group errgroup.Group
	group.Go(func () error {
		var err error
		events, err = loadSentiments(sentimentsPath, log)
		return err
	})
	group.Go(func () error {
		var err error
		prices, err = loadPrices(pricesPath, log)
		return err
	})
	err := group.Wait()
	if err != nil {
		return nil, err
	}
	mergePrices(events, prices)
	log.Info().
		Int("events", len(events)).
		Int("prices", len(prices)).
		Msg("Loaded dataset")
	return events, nil
}

func loadSentiments(path string, log zerolog.Logger) ([]EventRecord, error) {
	events := []EventRecord{}
	invalidDates := 0
	err := readCsv(path, sentimentColumns, func (values []string) {
		date, err := getDate(values[7])
		if err != nil {
			invalidDates++
			return
		}
		createTime, _ := getTimestamp(values[1])
		event := EventRecord{
			OwnerID: strings.TrimSpace(values[0]),
			CreateTime: createTime,
			PlayerLevel: parseOptionalFloat(values[2]),
			TwoYearGain: parseOptionalFloat(values[3]),
			MonthsActive: parseOptionalFloat(values[4]),
			Symbol: strings.TrimSpace(values[5]),
			SentimentScore: parseOptionalFloat(values[6]),
			Date: date,
			DaysSincePost: parseOptionalFloat(values[8]),
		}
		events = append(events, event)
	})
	if err != nil {
		return nil, err
	}
	if invalidDates > 0 {
		log.Warn().
			Str("path", path).
			Int("rows", invalidDates).
			Msg("Skipped sentiment rows with invalid dates")
	}
	return events, nil
}

func loadPrices(path string, log zerolog.Logger) ([]PriceRecord, error) {
	prices := []PriceRecord{}
	invalidDates := 0
	missingGains := 0
	err := readCsv(path, priceColumns, func (values []string) {
		date, err := getDate(values[0])
		if err != nil {
			invalidDates++
			return
		}
		gain := parseOptionalFloat(values[2])
		if gain == nil {
			missingGains++
		}
		price := PriceRecord{
			Date: date,
			Symbol: strings.TrimSpace(values[1]),
			DailyGain: gain,
		}
		prices = append(prices, price)
	})
	if err != nil {
		return nil, err
	}
	if invalidDates > 0 || missingGains > 0 {
		log.Warn().
			Str("path", path).
			Int("invalidDates", invalidDates).
			Int("missingGains", missingGains).
			Msg("Prices contain incomplete rows")
	}
	return prices, nil
}

// mergePrices is a left join on (date, symbol); the first price row wins.
func mergePrices(events []EventRecord, prices []PriceRecord) {
	priceMap := map[priceKey]*float64{}
	for _, price := range prices {
		key := priceKey{
			date: price.Date,
			symbol: price.Symbol,
		}
		if _, exists := priceMap[key]; !exists {
			priceMap[key] = price.DailyGain
		}
	}
	for i := range events {
		key := priceKey{
			date: events[i].Date,
			symbol: events[i].Symbol,
		}
		events[i].DailyGain = priceMap[key]
	}
}

func requireEvents(events []EventRecord) error {
	if len(events) == 0 {
		return fmt.Errorf("%w: dataset contains no events", ErrNoData)
	}
	return nil
}
