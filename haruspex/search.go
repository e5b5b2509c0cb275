package haruspex

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/cheggaaa/pb"
	"github.com/gammazero/deque"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// Cost assigned to weights without a trajectory.
const noResultPenalty = 1e6
const minimumPopulation = 5

type Objective interface {
	Evaluate(weights []float64) (float64, bool)
}

type Bound struct {
	Min float64
	Max float64
}

type SearchSettings struct {
	PopulationSize int `yaml:"populationSize"`
	MaxGenerations int `yaml:"maxGenerations"`
	MutationMin float64 `yaml:"mutationMin"`
	MutationMax float64 `yaml:"mutationMax"`
	Recombination float64 `yaml:"recombination"`
	Tolerance float64 `yaml:"tolerance"`
	AbsoluteTolerance float64 `yaml:"absoluteTolerance"`
	StallGenerations int `yaml:"stallGenerations"`
	StallTolerance float64 `yaml:"stallTolerance"`
	Polish *bool `yaml:"polish"`
	PolishEvaluations int `yaml:"polishEvaluations"`
	Workers int `yaml:"workers"`
	Seed int64 `yaml:"seed"`
	Progress bool `yaml:"progress"`
}

type StopReason string

const (
	StopMaxGenerations StopReason = "max_generations"
	StopConverged StopReason = "converged"
	StopStalled StopReason = "stalled"
)

type SearchResult struct {
	Weights []float64
	Gain float64
	GainOK bool
	Cost float64
	Generations int
	Evaluations int
	Polished bool
	StopReason StopReason
}

type weightSearch struct {
	objective Objective
	bounds []Bound
	settings SearchSettings
	log zerolog.Logger
	rng *rand.Rand
	evaluations int
}

func defaultBounds() []Bound {
	bounds := make([]Bound, featureCount)
	for i := range bounds {
		bounds[i] = Bound{Min: 0, Max: 1}
	}
	return bounds
}

// Zero values select the defaults. A negative tolerance disables the
// convergence check.
func (s SearchSettings) withDefaults() SearchSettings {
	if s.PopulationSize == 0 {
		s.PopulationSize = 15
	}
	if s.MaxGenerations == 0 {
		s.MaxGenerations = 100
	}
	if s.MutationMin == 0 && s.MutationMax == 0 {
		s.MutationMin = 0.5
		s.MutationMax = 1.0
	}
	if s.Recombination == 0 {
		s.Recombination = 0.7
	}
	if s.Tolerance == 0 {
		s.Tolerance = 0.01
	}
	if s.Polish == nil {
		polish := true
		s.Polish = &polish
	}
	if s.PolishEvaluations == 0 {
		s.PolishEvaluations = 200
	}
	return s
}

func validateSearch(bounds []Bound, settings SearchSettings) error {
	if len(bounds) == 0 {
		return fmt.Errorf("%w: no bounds specified", ErrInvalidConfiguration)
	}
	for i, bound := range bounds {
		if math.IsNaN(bound.Min) || math.IsNaN(bound.Max) || bound.Min > bound.Max {
			return fmt.Errorf("%w: invalid bound %d: %s", ErrInvalidConfiguration, i, bound)
		}
	}
	if settings.PopulationSize < 1 {
		return fmt.Errorf("%w: populationSize must be positive, got %d", ErrInvalidConfiguration, settings.PopulationSize)
	}
	if settings.MaxGenerations < 1 {
		return fmt.Errorf("%w: maxGenerations must be positive, got %d", ErrInvalidConfiguration, settings.MaxGenerations)
	}
	if settings.MutationMin < 0 || settings.MutationMax > 2 || settings.MutationMin > settings.MutationMax {
		format := "%w: invalid mutation range [%g, %g]"
		return fmt.Errorf(format, ErrInvalidConfiguration, settings.MutationMin, settings.MutationMax)
	}
	if settings.Recombination < 0 || settings.Recombination > 1 {
		return fmt.Errorf("%w: recombination must be within [0, 1], got %g", ErrInvalidConfiguration, settings.Recombination)
	}
	if settings.StallGenerations < 0 {
		return fmt.Errorf("%w: stallGenerations must not be negative", ErrInvalidConfiguration)
	}
	return nil
}

// searchWeights maximizes the objective with differential evolution
// (best/1/bin). Every generation is evaluated as one parallel batch and the
// population is only updated after the whole batch has finished.
func searchWeights(objective Objective, bounds []Bound, settings SearchSettings, log zerolog.Logger) (SearchResult, error) {
	settings = settings.withDefaults()
	err := validateSearch(bounds, settings)
	if err != nil {
		return SearchResult{}, err
	}
	seed := settings.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	search := &weightSearch{
		objective: objective,
		bounds: bounds,
		settings: settings,
		log: log,
		rng: rand.New(rand.NewSource(seed)),
	}
	return search.run(), nil
}

func (s *weightSearch) run() SearchResult {
	dimensions := len(s.bounds)
	size := max(minimumPopulation, s.settings.PopulationSize * dimensions)
	s.log.Info().
		Int("population", size).
		Int("generations", s.settings.MaxGenerations).
		Int("workers", getWorkers(s.settings.Workers)).
		Msg("Starting differential evolution")
	population := s.latinHypercube(size)
	costs := s.evaluateBatch(population)
	bestIndex := argMin(costs)
	var bar *pb.ProgressBar
	if s.settings.Progress {
		bar = pb.StartNew(s.settings.MaxGenerations)
	}
	var history deque.Deque[float64]
	history.PushBack(costs[bestIndex])
	reason := StopMaxGenerations
	generations := 0
	for generation := 1; generation <= s.settings.MaxGenerations; generation++ {
		mutation := s.settings.MutationMin + s.rng.Float64() * (s.settings.MutationMax - s.settings.MutationMin)
		trials := make([][]float64, size)
		for i := range trials {
			trials[i] = s.getTrial(i, bestIndex, population, mutation)
		}
		trialCosts := s.evaluateBatch(trials)
		for i, trialCost := range trialCosts {
			if trialCost <= costs[i] {
				population[i] = trials[i]
				costs[i] = trialCost
			}
		}
		bestIndex = argMin(costs)
		generations = generation
		if bar != nil {
			bar.Increment()
		}
		mean, stdDev := stat.MeanStdDev(costs, nil)
		s.log.Debug().
			Int("generation", generation).
			Float64("bestCost", costs[bestIndex]).
			Float64("meanCost", mean).
			Str("best", formatWeights(population[bestIndex])).
			Msg("Generation complete")
		if s.settings.Tolerance >= 0 && stdDev <= s.settings.AbsoluteTolerance + s.settings.Tolerance * math.Abs(mean) {
			reason = StopConverged
			break
		}
		if s.stalled(&history, costs[bestIndex]) {
			reason = StopStalled
			break
		}
	}
	if bar != nil {
		bar.Finish()
	}
	best := population[bestIndex]
	bestCost := costs[bestIndex]
	polished := false
	if *s.settings.Polish {
		best, bestCost, polished = s.polish(best, bestCost)
	}
	gain, ok := s.objective.Evaluate(cloneWeights(best))
	s.evaluations++
	result := SearchResult{
		Weights: best,
		Gain: gain,
		GainOK: ok,
		Cost: bestCost,
		Generations: generations,
		Evaluations: s.evaluations,
		Polished: polished,
		StopReason: reason,
	}
	s.log.Info().
		Str("weights", formatWeights(best)).
		Float64("gain", gain).
		Bool("gainOK", ok).
		Int("generations", generations).
		Int("evaluations", s.evaluations).
		Str("reason", string(reason)).
		Msg("Differential evolution finished")
	return result
}

func (s *weightSearch) cost(weights []float64) float64 {
	gain, ok := s.objective.Evaluate(cloneWeights(weights))
	if !ok {
		return noResultPenalty
	}
	return -gain
}

// evaluateBatch blocks until every candidate has been evaluated.
func (s *weightSearch) evaluateBatch(candidates [][]float64) []float64 {
	s.evaluations += len(candidates)
	return parallelMap(s.settings.Workers, candidates, s.cost)
}

func (s *weightSearch) latinHypercube(size int) [][]float64 {
	dimensions := len(s.bounds)
	population := make([][]float64, size)
	for i := range population {
		population[i] = make([]float64, dimensions)
	}
	segment := 1.0 / float64(size)
	for j, bound := range s.bounds {
		order := s.rng.Perm(size)
		for i, stratum := range order {
			position := (float64(stratum) + s.rng.Float64()) * segment
			population[i][j] = bound.Min + position * (bound.Max - bound.Min)
		}
	}
	return population
}

func (s *weightSearch) getTrial(index, bestIndex int, population [][]float64, mutation float64) []float64 {
	size := len(population)
	r1 := s.pickOther(size, index, -1)
	r2 := s.pickOther(size, index, r1)
	best := population[bestIndex]
	trial := cloneWeights(population[index])
	dimensions := len(trial)
	fillPoint := s.rng.Intn(dimensions)
	for j := range dimensions {
		if j != fillPoint && s.rng.Float64() >= s.settings.Recombination {
			continue
		}
		value := best[j] + mutation * (population[r1][j] - population[r2][j])
		bound := s.bounds[j]
		if value < bound.Min || value > bound.Max {
			value = bound.Min + s.rng.Float64() * (bound.Max - bound.Min)
		}
		trial[j] = value
	}
	return trial
}

func (s *weightSearch) pickOther(size, exclude1, exclude2 int) int {
	for {
		index := s.rng.Intn(size)
		if index != exclude1 && index != exclude2 {
			return index
		}
	}
}

func (s *weightSearch) stalled(history *deque.Deque[float64], bestCost float64) bool {
	if s.settings.StallGenerations == 0 {
		return false
	}
	history.PushBack(bestCost)
	for history.Len() > s.settings.StallGenerations + 1 {
		history.PopFront()
	}
	if history.Len() <= s.settings.StallGenerations {
		return false
	}
	improvement := history.Front() - history.Back()
	return improvement < s.settings.StallTolerance
}

// polish runs Nelder-Mead from the best member. Candidates are projected onto
// the bounds before evaluation and the result is only kept if it is better.
func (s *weightSearch) polish(start []float64, startCost float64) ([]float64, float64, bool) {
	problem := optimize.Problem{
		Func: func (x []float64) float64 {
			s.evaluations++
			return s.cost(projectToBounds(x, s.bounds))
		},
	}
	settings := &optimize.Settings{
		FuncEvaluations: s.settings.PolishEvaluations,
		Concurrent: 1,
	}
	result, err := optimize.Minimize(problem, cloneWeights(start), settings, &optimize.NelderMead{})
	if err != nil {
		s.log.Warn().Err(err).Msg("Polish did not finish cleanly")
	}
	if result == nil {
		return start, startCost, false
	}
	projected := projectToBounds(result.X, s.bounds)
	projectedCost := s.cost(projected)
	s.evaluations++
	s.log.Debug().
		Str("status", result.Status.String()).
		Float64("cost", projectedCost).
		Float64("startCost", startCost).
		Msg("Polish complete")
	if projectedCost < startCost {
		return projected, projectedCost, true
	}
	return start, startCost, false
}

func projectToBounds(x []float64, bounds []Bound) []float64 {
	output := make([]float64, len(x))
	for i, value := range x {
		output[i] = math.Min(math.Max(value, bounds[i].Min), bounds[i].Max)
	}
	return output
}

func cloneWeights(weights []float64) []float64 {
	output := make([]float64, len(weights))
	copy(output, weights)
	return output
}

func argMin(values []float64) int {
	index := 0
	for i, value := range values {
		if value < values[index] {
			index = i
		}
	}
	return index
}
