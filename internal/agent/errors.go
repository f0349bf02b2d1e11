package agent

import (
	"errors"
	"fmt"
)

// ErrMaxTurnsExceeded is returned when the tool-calling loop reaches
// its turn limit without the model producing a final text reply.
var ErrMaxTurnsExceeded = errors.New("agent exceeded maximum turns")

// ErrNoChoices is returned when a completion response carries no choices.
var ErrNoChoices = errors.New("no choices in response")

// UpstreamError wraps a failure from the completion API so callers can
// distinguish oracle outages from local failures.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream completion failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
