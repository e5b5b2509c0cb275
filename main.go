package main

import (
	"flag"
	"os"

	"haruspex/haruspex"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration file")
	spread := flag.Bool("spread", false, "Spread raw sentiments across the days they remain in effect")
	gains := flag.Bool("gains", false, "Calculate daily gains from historical price files")
	baseline := flag.Bool("baseline", false, "Simulate the portfolio with the baseline weights")
	search := flag.Bool("search", false, "Search for the feature weights with the highest total gain")
	compare := flag.Bool("compare", false, "Compare weight vectors and an index benchmark in charts")
	flag.Parse()
	_ = godotenv.Load()
	logger := haruspex.NewLogger(os.Getenv("HARUSPEX_LOG_LEVEL"), true)
	path := *configPath
	if path == "" {
		path = os.Getenv("HARUSPEX_CONFIG")
	}
	if path == "" {
		path = haruspex.DefaultConfigurationPath
	}
	configuration, err := haruspex.LoadConfiguration(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if os.Getenv("HARUSPEX_LOG_LEVEL") == "" {
		logger = haruspex.NewLogger(configuration.LogLevel, true)
	}
	var command func(*haruspex.Configuration, zerolog.Logger) error
	switch {
	case *spread:
		command = haruspex.SpreadSentiments
	case *gains:
		command = haruspex.CalculateGains
	case *baseline:
		command = haruspex.Baseline
	case *search:
		command = haruspex.OptimizeWeights
	case *compare:
		command = haruspex.Compare
	default:
		flag.Usage()
		return
	}
	err = command(configuration, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}
