// Package logging builds the structured console logger shared by the service
// and the CLI.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// New returns a timestamped logger writing to w (stderr when nil). Unknown
// level names fall back to info.
func New(level string, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := log.ParseLevel(level)
	if err != nil || level == "" {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           lvl,
	})
}

// NewNop discards everything.
func NewNop() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}
