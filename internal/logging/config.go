package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Config holds logger configuration options.
type Config struct {
	// Level is the minimum log level to output.
	Level string

	// Format is the output format: auto, json, console.
	Format string

	// Output is stderr, stdout, discard, or a file path.
	Output string

	// NoColor disables color output in console mode.
	NoColor bool
}

// DefaultConfig returns a configuration with the CLI defaults.
func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Format:  "auto",
		Output:  "stderr",
		NoColor: os.Getenv("NO_COLOR") != "",
	}
}

// NewFromConfig creates a logger from cfg. A file output that cannot be
// opened falls back to stderr. The returned closer releases the log file;
// for the standard streams it does nothing.
func NewFromConfig(cfg Config) (zerolog.Logger, io.Closer) {
	level := ParseLevel(cfg.Level)
	w, closer := writerFor(cfg)

	logger := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()

	if level <= zerolog.DebugLevel {
		logger = logger.With().Caller().Logger()
	}
	return logger, closer
}

// Configure installs a logger built from cfg as the default. The caller
// closes the returned closer once logging is done.
func Configure(cfg Config) io.Closer {
	logger, closer := NewFromConfig(cfg)
	SetDefault(logger)
	return closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func writerFor(cfg Config) (io.Writer, io.Closer) {
	var output io.Writer
	var closer io.Closer = nopCloser{}
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	case "discard", "none":
		output = io.Discard
	default:
		//nolint:gosec // G304: log path is operator supplied
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			output = os.Stderr
		} else {
			output, closer = file, file
		}
	}

	format := strings.ToLower(cfg.Format)
	if format == "" || format == "auto" {
		format = "json"
		if f, ok := output.(*os.File); ok && f == os.Stderr && isTerminal(f) {
			format = "console"
		}
	}

	switch format {
	case "console", "pretty", "text":
		return consoleWriter(output, cfg.NoColor), closer
	default:
		return output, closer
	}
}

// ParseLevel parses a level name, defaulting to info. "warning" is accepted
// for warn, and "none" or "off" disable logging.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "":
		return zerolog.InfoLevel
	case "warning":
		return zerolog.WarnLevel
	case "none", "off":
		return zerolog.Disabled
	}
	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}
