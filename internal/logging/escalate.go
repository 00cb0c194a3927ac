package logging

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
)

// FatalError is returned by DevFatal in development builds. Callers treat it
// as unrecoverable.
type FatalError struct {
	Context string
	Message string
}

func (e *FatalError) Error() string {
	if e.Context == "" {
		return "[dev] " + e.Message
	}
	return fmt.Sprintf("[dev] %s: %s", e.Context, e.Message)
}

// Escalator raises configuration problems hard in development and degrades
// them to warnings in production.
type Escalator struct {
	Development bool
	Logger      hclog.Logger
}

// DevFatal returns a *FatalError in development mode. In production it logs
// prodMessage as a warning and returns nil.
func (e Escalator) DevFatal(devMessage, prodMessage, context string) error {
	if e.Development {
		return &FatalError{Context: context, Message: devMessage}
	}
	logger := e.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	msg := prodMessage
	if context != "" {
		msg = context + ": " + prodMessage
	}
	logger.Warn(msg)
	return nil
}
