// Package logging configures the process logger and the development-only
// escalation path used for startup misconfiguration.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

const rootName = "linkcore"

// Options controls logger construction.
type Options struct {
	Level  string
	JSON   bool
	Output io.Writer
}

// New creates the root logger. Every entry carries the process session id.
func New(opts Options) hclog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:       rootName,
		Level:      ParseLevel(opts.Level),
		Output:     out,
		JSONFormat: opts.JSON,
	})
	return logger.With("session", uuid.NewString())
}

// ParseLevel maps a config string onto an hclog level, defaulting to info.
func ParseLevel(level string) hclog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "warning":
		return hclog.Warn
	case "":
		return hclog.Info
	}
	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		return hclog.Info
	}
	return lvl
}

// Named returns a child logger for a component, tolerating a nil parent.
func Named(parent hclog.Logger, name string) hclog.Logger {
	if parent == nil {
		return hclog.NewNullLogger()
	}
	return parent.Named(name)
}
