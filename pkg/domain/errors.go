package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrNotFound is returned by blob stores for missing keys.
var ErrNotFound = errors.New("not found")

// ErrSubmissionInProgress is returned when a session is mutated while its
// submitting latch is held.
var ErrSubmissionInProgress = errors.New("submission in progress")

// ErrNoPreviousStep is returned by Back at the entry step.
var ErrNoPreviousStep = errors.New("no previous step")

// UnknownStepError is returned when a step id is not part of the graph.
type UnknownStepError struct {
	StepID int
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("unknown step %d", e.StepID)
}

// InvalidChoiceError is returned when an answer matches no choice of a choice step.
type InvalidChoiceError struct {
	StepID  int
	Answer  any
	Choices []string
}

func (e *InvalidChoiceError) Error() string {
	return fmt.Sprintf("invalid choice %v for step %d (expected one of: %s)",
		e.Answer, e.StepID, strings.Join(e.Choices, ", "))
}

// Validation bounds reported by ValidationError.
const (
	BoundMin      = "min"
	BoundMax      = "max"
	BoundType     = "type"
	BoundRequired = "required"
)

// ValidationError is returned when a free-input answer violates its constraints.
type ValidationError struct {
	StepID int
	Key    string
	// Bound names the violated constraint: min, max, type or required.
	Bound string
	// Limit is the offending bound value for min and max violations.
	Limit *float64
	Value any
}

func (e *ValidationError) Error() string {
	switch e.Bound {
	case BoundMin, BoundMax:
		limit := 0.0
		if e.Limit != nil {
			limit = *e.Limit
		}
		return fmt.Sprintf("validation failed for %q: %v violates %s %g", e.Key, e.Value, e.Bound, limit)
	case BoundRequired:
		return fmt.Sprintf("validation failed for %q: answer is required", e.Key)
	default:
		return fmt.Sprintf("validation failed for %q: %v is not a valid %s", e.Key, e.Value, e.Bound)
	}
}

// SessionTerminatedError is returned when a completed session is advanced.
type SessionTerminatedError struct {
	SessionID string
	StepID    int
}

func (e *SessionTerminatedError) Error() string {
	return fmt.Sprintf("session %s is terminated at step %d", e.SessionID, e.StepID)
}

// TransportError wraps a failure talking to the remote service.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
