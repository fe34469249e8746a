// Package debug provides fluxemu's structured, component-scoped logging.
// It wraps zerolog rather than rolling another ad-hoc ring-buffer logger:
// every component gets a sub-logger tagged with its name, and virtual time
// is attached to log lines that care about it.
package debug

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is fluxemu's logging handle. The zero value is not usable; build
// one with New or NewWithWriter.
type Logger struct {
	base zerolog.Logger
}

// New builds a Logger that writes human-readable, colourised output to
// stderr — the default for interactive use from cmd/fluxemu.
func New(level zerolog.Level) *Logger {
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	return NewWithWriter(writer, level)
}

// NewWithWriter builds a Logger against an arbitrary io.Writer (tests
// typically pass a bytes.Buffer).
func NewWithWriter(w io.Writer, level zerolog.Level) *Logger {
	return &Logger{base: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// For returns a sub-logger tagged with the given component name, e.g.
// logger.For("cpu0") produces lines prefixed with component=cpu0.
func (l *Logger) For(component string) *Logger {
	return &Logger{base: l.base.With().Str("component", component).Logger()}
}

// WithTime returns a derived Logger that attaches a virtual-time field (in
// whole ticks) to every line it writes, for call sites that want to
// correlate a message with the scheduler's notion of now.
func (l *Logger) WithTime(ticks uint64) *Logger {
	return &Logger{base: l.base.With().Uint64("vt", ticks).Logger()}
}

func (l *Logger) Debugf(format string, args ...any) { l.base.Debug().Msgf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.base.Info().Msgf(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.base.Warn().Msgf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.base.Error().Msgf(format, args...) }

// Nop returns a Logger that discards everything, for call sites (like most
// unit tests) that don't want log noise but still need to pass a *Logger.
func Nop() *Logger {
	return NewWithWriter(io.Discard, zerolog.Disabled)
}
