// Package logging provides structured logging for statedict using zerolog.
//
// Library code takes a zerolog.Logger through options and falls back to
// Default. The CLI configures Default once at startup from flags, config
// file and environment.
//
// Example usage:
//
//	log := logging.Default()
//	log.Warn().Int("match", 10).Int("name_not_same", 2).Msg("state dict diff")
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var defaultLogger = createDefaultLogger()

// Nop discards everything.
var Nop = zerolog.Nop()

// createDefaultLogger builds the logger used before any configuration runs.
func createDefaultLogger() zerolog.Logger {
	var writer io.Writer = os.Stderr
	if isTerminal(os.Stderr) && os.Getenv("LOG_FORMAT") != "json" {
		writer = consoleWriter(os.Stderr, os.Getenv("NO_COLOR") != "")
	}

	return zerolog.New(writer).
		Level(ParseLevel(os.Getenv("LOG_LEVEL"))).
		With().
		Timestamp().
		Logger()
}

// Default returns the process-wide logger.
func Default() *zerolog.Logger {
	return &defaultLogger
}

// SetDefault replaces the process-wide logger.
func SetDefault(logger zerolog.Logger) {
	defaultLogger = logger
}

// New creates a JSON logger writing to w at info level.
func New(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(w).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Logger()
}

func consoleWriter(out io.Writer, noColor bool) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.Kitchen,
		NoColor:    noColor,
	}
}

// isTerminal reports whether f is a character device.
func isTerminal(f *os.File) bool {
	fileInfo, err := f.Stat()
	if err != nil {
		return false
	}
	return fileInfo.Mode()&os.ModeCharDevice != 0
}
