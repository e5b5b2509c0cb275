package haruspex

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLogger builds the console logger and installs it as the global one.
func NewLogger(level string, pretty bool) zerolog.Logger {
	zerologLevel := zerolog.InfoLevel
	switch strings.ToLower(level) {
	case "debug":
		zerologLevel = zerolog.DebugLevel
	case "warn":
		zerologLevel = zerolog.WarnLevel
	case "error":
		zerologLevel = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(zerologLevel)
	zerolog.TimeFieldFormat = time.RFC3339
	var output io.Writer = os.Stdout
	if pretty {
		output = zerolog.ConsoleWriter{
			Out: os.Stdout,
			TimeFormat: "15:04:05",
		}
	}
	logger := zerolog.New(output).
		With().
		Timestamp().
		Logger()
	log.Logger = logger
	return logger
}
