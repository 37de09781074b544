// Package logging configures testsmith's charmbracelet/log loggers.
//
// All log output goes to stderr. Stdout carries command results only (test
// code, reports, JSON), so commands can be piped safely.
//
// Usage:
//
//	// Once, from the root command's PersistentPreRunE:
//	logging.Setup(verbose, quiet, jsonFormat)
//
//	// In each component:
//	logger := logging.New("runner")
//	logger.Info("test run finished", "file", path, "passed", 3)
//
// Child loggers copy the default logger's settings when they are created, so
// Setup has to run before New.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Level aliases so callers do not need to import charmbracelet/log.
const (
	LevelDebug = log.DebugLevel
	LevelInfo  = log.InfoLevel
	LevelWarn  = log.WarnLevel
	LevelError = log.ErrorLevel
)

// Setup configures the default logger. Quiet wins over verbose.
func Setup(verbose, quiet, jsonFormat bool) {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	if quiet {
		level = log.ErrorLevel
	}

	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(jsonFormat)

	if jsonFormat {
		log.SetFormatter(log.JSONFormatter)
	} else {
		log.SetFormatter(log.TextFormatter)
	}
}

// New returns a logger prefixed with component. An empty component yields a
// logger without a prefix.
func New(component string) *log.Logger {
	return log.WithPrefix(component)
}

// Discard returns a logger that drops everything. Components use it when
// their caller passes a nil logger.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// SetOutput redirects the default logger. Tests use it to capture output.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}
