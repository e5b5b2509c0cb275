package haruspex

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultConfigurationPath = "configuration/configuration.yaml"

const defaultTopN = 10
const defaultReportPath = "best_weights.txt"
const defaultOutputPath = "."

type Configuration struct {
	LogLevel string `yaml:"logLevel"`
	SentimentsPath string `yaml:"sentimentsPath"`
	PricesPath string `yaml:"pricesPath"`
	OutputPath string `yaml:"outputPath"`
	ReportPath string `yaml:"reportPath"`
	FontPath string `yaml:"fontPath"`
	FontName string `yaml:"fontName"`
	Backtest BacktestConfiguration `yaml:"backtest"`
	Search SearchConfiguration `yaml:"search"`
	Spread SpreadConfiguration `yaml:"spread"`
	Gains GainsConfiguration `yaml:"gains"`
	Compare CompareConfiguration `yaml:"compare"`
}

type BacktestConfiguration struct {
	DateMin SerializableDate `yaml:"dateMin"`
	DateMax SerializableDate `yaml:"dateMax"`
	TopN int `yaml:"topN"`
	Allocation *SerializableAllocation `yaml:"allocation"`
	BaselineWeights []float64 `yaml:"baselineWeights"`
}

type SearchConfiguration struct {
	Bounds []Bound `yaml:"bounds"`
	SearchSettings `yaml:",inline"`
}

type SpreadConfiguration struct {
	InputPath string `yaml:"inputPath"`
	OutputPath string `yaml:"outputPath"`
	EndDate *SerializableDate `yaml:"endDate"`
	StatsPath string `yaml:"statsPath"`
}

type GainsConfiguration struct {
	TickersPath string `yaml:"tickersPath"`
	PricesDirectory string `yaml:"pricesDirectory"`
	OutputPath string `yaml:"outputPath"`
	StatsPath string `yaml:"statsPath"`
}

type CompareConfiguration struct {
	Vectors []LabeledWeights `yaml:"vectors"`
	BenchmarkPath string `yaml:"benchmarkPath"`
	BenchmarkLabel string `yaml:"benchmarkLabel"`
	DrawdownTopN []int `yaml:"drawdownTopN"`
}

type LabeledWeights struct {
	Label string `yaml:"label"`
	Weights []float64 `yaml:"weights"`
}

func LoadConfiguration(path string) (*Configuration, error) {
	yamlData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration (%s): %w", path, err)
	}
	configuration, err := parseConfiguration(yamlData)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return configuration, nil
}

func parseConfiguration(yamlData []byte) (*Configuration, error) {
	configuration := new(Configuration)
	err := yaml.Unmarshal(yamlData, configuration)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal YAML: %v", ErrInvalidConfiguration, err)
	}
	configuration.applyDefaults()
	err = configuration.validate()
	if err != nil {
		return nil, err
	}
	return configuration, nil
}

func (c *Configuration) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.OutputPath == "" {
		c.OutputPath = defaultOutputPath
	}
	if c.ReportPath == "" {
		c.ReportPath = defaultReportPath
	}
	backtest := &c.Backtest
	if backtest.DateMin.IsZero() {
		backtest.DateMin.Time = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	}
	if backtest.DateMax.IsZero() {
		backtest.DateMax.Time = time.Date(2025, time.May, 31, 0, 0, 0, 0, time.UTC)
	}
	if backtest.TopN == 0 {
		backtest.TopN = defaultTopN
	}
	if backtest.Allocation == nil {
		backtest.Allocation = &SerializableAllocation{AllocationEqual}
	}
	if backtest.BaselineWeights == nil {
		backtest.BaselineWeights = []float64{1, 1, 1, 1}
	}
	if c.Search.Bounds == nil {
		c.Search.Bounds = defaultBounds()
	}
	c.Search.SearchSettings = c.Search.SearchSettings.withDefaults()
	if len(c.Compare.Vectors) == 0 {
		c.Compare.Vectors = []LabeledWeights{
			{
				Label: "Baseline",
				Weights: backtest.BaselineWeights,
			},
		}
	}
	if c.Compare.BenchmarkLabel == "" {
		c.Compare.BenchmarkLabel = "Index"
	}
	if len(c.Compare.DrawdownTopN) == 0 {
		c.Compare.DrawdownTopN = []int{5, 10, 20}
	}
}

func (c *Configuration) validate() error {
	backtest := c.Backtest
	if backtest.DateMax.Before(backtest.DateMin.Time) {
		format := "%w: dateMax (%s) precedes dateMin (%s)"
		return fmt.Errorf(format, ErrInvalidConfiguration, getDateString(backtest.DateMax.Time), getDateString(backtest.DateMin.Time))
	}
	if backtest.TopN < 1 {
		return fmt.Errorf("%w: topN must be positive, got %d", ErrInvalidConfiguration, backtest.TopN)
	}
	if len(backtest.BaselineWeights) != featureCount {
		return fmt.Errorf("%w: baselineWeights must have %d elements", ErrInvalidConfiguration, featureCount)
	}
	if len(c.Search.Bounds) != featureCount {
		return fmt.Errorf("%w: bounds must have %d elements, got %d", ErrInvalidConfiguration, featureCount, len(c.Search.Bounds))
	}
	err := validateSearch(c.Search.Bounds, c.Search.SearchSettings)
	if err != nil {
		return err
	}
	for _, vector := range c.Compare.Vectors {
		if len(vector.Weights) != featureCount {
			return fmt.Errorf("%w: vector \"%s\" must have %d weights", ErrInvalidConfiguration, vector.Label, featureCount)
		}
	}
	for _, topN := range c.Compare.DrawdownTopN {
		if topN < 1 {
			return fmt.Errorf("%w: drawdownTopN values must be positive, got %d", ErrInvalidConfiguration, topN)
		}
	}
	return nil
}

func (c *Configuration) objectiveSettings() ObjectiveSettings {
	return ObjectiveSettings{
		DateMin: c.Backtest.DateMin.Time,
		DateMax: c.Backtest.DateMax.Time,
		TopN: c.Backtest.TopN,
		Allocation: c.Backtest.Allocation.AllocationPolicy,
	}
}
