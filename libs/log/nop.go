package log

import (
	"github.com/rs/zerolog"
)

// NewNopLogger returns a Logger that discards everything. Used by tests and
// by components constructed without a logger.
func NewNopLogger() Logger {
	return &defaultLogger{Logger: zerolog.Nop()}
}
