package logger

import corelogger "github.com/kilianp07/chargesim/core/logger"

type Logger = corelogger.Logger

// NopLogger discards every entry.
type NopLogger = corelogger.Nop

// New returns a zerolog backed Logger tagged with component. It writes to the
// output installed by Configure.
func New(component string) Logger {
	return NewZerologLogger(component)
}
