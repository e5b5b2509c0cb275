package haruspex

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const cacheKeyScale = 1e8

type ObjectiveSettings struct {
	DateMin time.Time
	DateMax time.Time
	TopN int
	Allocation AllocationPolicy
}

type cacheKey [featureCount]int64

type cacheEntry struct {
	gain float64
	ok bool
}

// GainCache memoizes the total gain of a weight vector for the lifetime of a
// search. Entries are never invalidated. Keys are rounded to 8 decimals.
type GainCache struct {
	events []EventRecord
	settings ObjectiveSettings
	log zerolog.Logger
	mutex sync.RWMutex
	entries map[cacheKey]cacheEntry
	group singleflight.Group
	evaluations atomic.Int64
}

func NewGainCache(events []EventRecord, settings ObjectiveSettings, log zerolog.Logger) *GainCache {
	return &GainCache{
		events: events,
		settings: settings,
		log: log,
		entries: map[cacheKey]cacheEntry{},
	}
}

func newCacheKey(weights []float64) (cacheKey, error) {
	var key cacheKey
	if len(weights) != featureCount {
		return key, fmt.Errorf("%w: expected %d weights, got %d", ErrInvalidConfiguration, featureCount, len(weights))
	}
	for i, weight := range weights {
		key[i] = int64(math.Round(weight * cacheKeyScale))
	}
	return key, nil
}

func (k cacheKey) String() string {
	return fmt.Sprint([featureCount]int64(k))
}

// Evaluate returns the total percentage gain for weights and false when the
// weights yield no trajectory.
func (c *GainCache) Evaluate(weights []float64) (float64, bool) {
	key, err := newCacheKey(weights)
	if err != nil {
		c.log.Error().Err(err).Msg("Rejected weights")
		return 0, false
	}
	entry, exists := c.lookup(key)
	if exists {
		c.log.Debug().
			Str("weights", formatWeights(weights)).
			Float64("gain", entry.gain).
			Bool("ok", entry.ok).
			Msg("Cache hit")
		return entry.gain, entry.ok
	}
	weightsCopy := make([]float64, len(weights))
	copy(weightsCopy, weights)
	result, _, _ := c.group.Do(key.String(), func () (interface{}, error) {
		entry, exists := c.lookup(key)
		if exists {
			return entry, nil
		}
		entry = c.compute(weightsCopy)
		c.mutex.Lock()
		c.entries[key] = entry
		c.mutex.Unlock()
		return entry, nil
	})
	entry = result.(cacheEntry)
	return entry.gain, entry.ok
}

func (c *GainCache) Evaluations() int64 {
	return c.evaluations.Load()
}

func (c *GainCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

func (c *GainCache) lookup(key cacheKey) (cacheEntry, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	entry, exists := c.entries[key]
	return entry, exists
}

func (c *GainCache) compute(weights []float64) cacheEntry {
	c.evaluations.Add(1)
	trajectory, err := backtestWeights(c.events, weights, c.settings)
	if err != nil {
		c.log.Error().
			Err(err).
			Str("weights", formatWeights(weights)).
			Msg("Backtest failed")
		return cacheEntry{}
	}
	gain, ok := totalGain(trajectory)
	c.log.Debug().
		Str("weights", formatWeights(weights)).
		Float64("gain", gain).
		Bool("ok", ok).
		Msg("Objective evaluated")
	return cacheEntry{
		gain: gain,
		ok: ok,
	}
}

func backtestWeights(events []EventRecord, weights []float64, settings ObjectiveSettings) (Trajectory, error) {
	if len(weights) != featureCount {
		return nil, fmt.Errorf("%w: expected %d weights, got %d", ErrInvalidConfiguration, featureCount, len(weights))
	}
	scored := scoreEvents(events, weights)
	aggregated := aggregateScores(scored)
	filtered := filterDateRange(aggregated, settings.DateMin, settings.DateMax)
	return simulate(filtered, settings.TopN, settings.Allocation)
}
