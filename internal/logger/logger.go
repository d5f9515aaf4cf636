package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// TimeFormat is the timestamp layout used in log lines and in API payloads.
// Milliseconds are kept because skew correction on the candidate display is
// computed from these values.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Setup initializes the zerolog logger based on environment configuration.
//   - level: log level string (trace, debug, info, warn, error, fatal, panic)
//   - format: "json" for production, "pretty" for human-readable dev output
//
// Returns the configured logger instance.
func Setup(level, format string) zerolog.Logger {
	return New(os.Stdout, level, format)
}

// New builds a logger writing to w. Tests pass a buffer.
func New(w io.Writer, level, format string) zerolog.Logger {
	if format == "pretty" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: TimeFormat,
		}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(lvl)

	return zerolog.New(w).
		With().
		Timestamp().
		Caller().
		Str("app", "queryproctor").
		Logger()
}
