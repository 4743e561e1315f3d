// Package logging builds the structured loggers shared by every component.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// New creates a [log.Logger] writing to w with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]. Unknown level names fall back to info.
func New(w io.Writer, level string) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	l := log.NewWithOptions(w, log.Options{ReportTimestamp: true, ReportCaller: true})
	l.SetLevel(ParseLevel(level))
	return l
}

// ParseLevel maps a level name to a [log.Level].
func ParseLevel(level string) log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// Component returns a child logger tagged with the component name.
func Component(l *log.Logger, name string) *log.Logger {
	if l == nil {
		l = New(nil, "info")
	}
	return l.With("component", name)
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
