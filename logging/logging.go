// Copyright (C) 2025, Strand Protocol Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package logging adapts github.com/luxfi/log's Logger interface for the
// fabric's components, so routing table, forwarding, and gossip code never
// reaches for fmt.Println or the stdlib log package directly.
package logging

import (
	"github.com/luxfi/log"
)

// Logger is the logging surface every component depends on.
type Logger = log.Logger

// NewNoOp returns a Logger that discards everything, used in tests and as
// the zero value default.
func NewNoOp() Logger {
	return log.NewNoOpLogger()
}

// New returns a named production Logger for the given component
// ("routetable", "gossip", "forward", ...), so every log line is
// attributable to its subsystem.
func New(component string) Logger {
	return log.NewLogger(component)
}
