// Package logger reports orchestration events: state transitions, transfer
// attempts and validation outcomes.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger receives orchestration events.
type Logger interface {
	Transition(from, to string)
	Transfer(src, dest string, attempt int)
	Validated(src, dest string)
	Invalid(src, dest, path, reason string)
	Error(operation, path string, err error)
}

// VerboseLogger writes every event to a zerolog logger.
type VerboseLogger struct {
	log zerolog.Logger
}

func NewVerboseLogger(log zerolog.Logger) *VerboseLogger {
	return &VerboseLogger{log: log}
}

func (l *VerboseLogger) Transition(from, to string) {
	l.log.Debug().Str("from", from).Str("to", to).Msg("State changed")
}

func (l *VerboseLogger) Transfer(src, dest string, attempt int) {
	l.log.Info().Str("source", src).Str("destination", dest).Int("attempt", attempt).Msg("Transferring")
}

func (l *VerboseLogger) Validated(src, dest string) {
	l.log.Info().Str("source", src).Str("destination", dest).Msg("Copy is valid")
}

func (l *VerboseLogger) Invalid(src, dest, path, reason string) {
	l.log.Warn().
		Str("source", src).
		Str("destination", dest).
		Str("path", path).
		Str("reason", reason).
		Msg("Copy is not valid")
}

func (l *VerboseLogger) Error(operation, path string, err error) {
	l.log.Error().Err(err).Str("operation", operation).Str("path", path).Msg("Operation failed")
}

// NullLogger discards every event.
type NullLogger struct{}

func (l *NullLogger) Transition(from, to string) {}

func (l *NullLogger) Transfer(src, dest string, attempt int) {}

func (l *NullLogger) Validated(src, dest string) {}

func (l *NullLogger) Invalid(src, dest, path, reason string) {}

func (l *NullLogger) Error(operation, path string, err error) {}

// QuietLogger prints failures only.
type QuietLogger struct {
	out io.Writer
}

// NewQuietLogger prints to out, or stderr when out is nil.
func NewQuietLogger(out io.Writer) *QuietLogger {
	if out == nil {
		out = os.Stderr
	}
	return &QuietLogger{out: out}
}

func (l *QuietLogger) Transition(from, to string) {}

func (l *QuietLogger) Transfer(src, dest string, attempt int) {}

func (l *QuietLogger) Validated(src, dest string) {}

func (l *QuietLogger) Invalid(src, dest, path, reason string) {
	if reason == "missing" {
		fmt.Fprintf(l.out, "%s does not exist\n", path)
		return
	}
	fmt.Fprintf(l.out, "%s is not a valid copy of %s\n", path, src)
}

func (l *QuietLogger) Error(operation, path string, err error) {
	fmt.Fprintf(l.out, "%s %s: %v\n", operation, path, err)
}
