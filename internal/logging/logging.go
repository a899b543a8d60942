// Package logging configures the process-wide zerolog logger and prints the
// end-of-run summary.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogger configures the global logger. Verbosity 0 logs warnings, 1
// info, 2 debug and 3 or more trace. Quiet limits output to errors
// regardless of verbosity.
func SetupLogger(verbosity int, quiet bool) {
	setup(os.Stderr, verbosity, quiet)
}

func setup(out io.Writer, verbosity int, quiet bool) {
	switch {
	case quiet:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case verbosity <= 0:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case verbosity == 1:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case verbosity == 2:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.Kitchen,
	}
	log.Logger = zerolog.New(consoleWriter).With().Timestamp().Logger()

	// Add caller information for debug and trace levels
	if verbosity >= 2 && !quiet {
		log.Logger = log.Logger.With().Caller().Logger()
	}

	log.Debug().Int("verbosity", verbosity).Msg("Logger initialized")
}

// GetLogger returns a contextualized logger with the given name
func GetLogger(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// LogDuration logs the duration of an operation
func LogDuration(start time.Time, operation string) {
	log.Debug().
		Str("operation", operation).
		Dur("duration", time.Since(start)).
		Msg("Operation completed")
}

// Summary is what a run reports when it ends.
type Summary struct {
	Attempts       int
	TransferErrors int
	BytesValidated int64
	Valid          bool
	Duration       time.Duration
}

// PrintSummary writes s to out. Quiet runs print nothing unless the copy
// failed.
func PrintSummary(out io.Writer, s Summary, quiet bool) {
	if quiet && s.Valid {
		return
	}

	status := "valid"
	if !s.Valid {
		status = "NOT valid"
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "=== Summary ===")
	fmt.Fprintf(out, "Copy: %s\n", status)
	fmt.Fprintf(out, "Transfers: %d\n", s.Attempts)
	if s.TransferErrors > 0 {
		fmt.Fprintf(out, "Transfer errors: %d\n", s.TransferErrors)
	}
	if s.BytesValidated > 0 {
		fmt.Fprintf(out, "Validated: %s\n", formatBytes(s.BytesValidated))
	}
	fmt.Fprintf(out, "Duration: %s\n", s.Duration.Round(time.Millisecond))
}

// formatBytes formats bytes in human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
