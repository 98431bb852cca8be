package interview

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionExpired is returned when a response arrives after the inactivity timeout.
	ErrSessionExpired = errors.New("session expired due to inactivity")
	// ErrSessionClosed is returned when the session no longer accepts input.
	ErrSessionClosed = errors.New("session is closed")
	// ErrTurnInProgress is returned when a second turn is submitted while one is in flight.
	ErrTurnInProgress = errors.New("a turn is already in progress")
	// ErrTurnCancelled is returned when an in-flight turn is discarded by end().
	ErrTurnCancelled = errors.New("turn cancelled")
	// ErrNoOutstandingQuestion is returned when a response has no question to answer.
	ErrNoOutstandingQuestion = errors.New("no outstanding question")
	// ErrQuestionOutstanding is returned when a question is recorded before the previous one was answered.
	ErrQuestionOutstanding = errors.New("previous question is still unanswered")
	// ErrCheckpointNotFound is returned by checkpoint stores for unknown session ids.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	// ErrNoTopicsRemaining is returned when the scheduler has nothing left to ask about.
	ErrNoTopicsRemaining = errors.New("no topics remaining")
)

// ValidationError reports malformed profiles. It is fatal to session creation.
type ValidationError struct {
	Subject string
	Fields  []string
	Cause   error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid %s: %v", e.Subject, e.Cause)
	}
	return fmt.Sprintf("invalid %s: %s", e.Subject, strings.Join(e.Fields, "; "))
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// GenerationFailure reports that the external generation capability could not
// produce a result after the configured attempts.
type GenerationFailure struct {
	Op       string
	Attempts int
	Cause    error
}

func (e *GenerationFailure) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Cause)
}

func (e *GenerationFailure) Unwrap() error { return e.Cause }

// CorruptCheckpoint reports a checkpoint that cannot be resumed. It is never repaired.
type CorruptCheckpoint struct {
	SessionID string
	Reason    string
	Cause     error
}

func (e *CorruptCheckpoint) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("corrupt checkpoint %q: %s: %v", e.SessionID, e.Reason, e.Cause)
	}
	return fmt.Sprintf("corrupt checkpoint %q: %s", e.SessionID, e.Reason)
}

func (e *CorruptCheckpoint) Unwrap() error { return e.Cause }

// InvariantViolation signals a programming defect: session state that must never exist.
type InvariantViolation struct {
	Rule   string
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation (%s): %s", e.Rule, e.Detail)
}
