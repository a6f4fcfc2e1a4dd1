package framed

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

type (
	// Logger is the interface that wraps logging operations.
	Logger interface {
		// Errorf logs error information.
		// Arguments are handled in the manner of fmt.Printf.
		Errorf(format string, args ...interface{})
		// Debugf logs debug information, emitted only when the underlying
		// level allows it.
		Debugf(format string, args ...interface{})
	}

	// ZeroLogger implements Logger on top of a zerolog.Logger.
	ZeroLogger struct {
		L zerolog.Logger
	}
)

var (
	// DefaultLogger is the default Logger, writing console-formatted output
	// to stderr at the global zerolog level.
	DefaultLogger Logger = ZeroLogger{L: newConsoleLogger(os.Stderr)}
)

func newConsoleLogger(out *os.File) zerolog.Logger {
	w := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(w).With().Timestamp().Str("app", "framed").Logger()
}

func (z ZeroLogger) Errorf(format string, args ...interface{}) {
	z.L.Error().Msgf(format, args...)
}

func (z ZeroLogger) Debugf(format string, args ...interface{}) {
	z.L.Debug().Msgf(format, args...)
}
