//go:build test

package testutil

import (
	"github.com/rs/zerolog"

	"github.com/dropstream/drops-miner/logging"
)

// NewTestLogger returns a disabled logger for tests.
func NewTestLogger() logging.Logger {
	return zerolog.Nop()
}
