package ingest

import (
	"fmt"
)

// Failure kinds carried by SourceUnavailableError, used to build the
// human-readable diagnostic when a fetch gives up.
const (
	FailureNetwork   = "network"
	FailureTimeout   = "timeout"
	FailureExhausted = "exhausted"
	FailureStatus    = "status"
)

// SourceUnavailableError marks a transport-level fetch failure. It is the
// only error kind allowed to mark a category run as failed; everything else
// degrades per item.
type SourceUnavailableError struct {
	Source string
	Kind   string
	Detail string
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable (%s): %s", e.Source, e.Kind, e.Detail)
}

// ParseError marks a malformed payload for a single item. The batch
// continues; the item is skipped.
type ParseError struct {
	Source string
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("source %s returned malformed payload: %s", e.Source, e.Detail)
}
