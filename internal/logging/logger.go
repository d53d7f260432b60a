// Package logging provides Watchpost's structured logger. It keeps the
// teacher's "New(component) *Logger" shape, swapping the plain stdlib
// logger for a zerolog logger so background components can attach
// structured fields (monitor_id, incident_id, ...) instead of formatting
// them into message strings.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New returns a logger tagged with a "component" field so log lines from the
// scheduler, incident manager, notification engine, etc. can be told apart.
func New(component string) zerolog.Logger {
	w := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05.000"}
	l := zerolog.New(w).With().Timestamp().Logger()
	if component != "" {
		l = l.With().Str("component", component).Logger()
	}
	return l
}
