// Package session owns the canonical mutable state of one interview.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/spigell/interview-conductor/internal/interview"
)

// Store is the single writer of a Session. Every mutation is applied to a
// copy, validated, and only then swapped in with the version incremented, so
// readers never observe a half-applied change.
type Store struct {
	mu      sync.RWMutex
	current *interview.Session
}

// NewStore takes ownership of s. The session must already satisfy its invariants.
func NewStore(s *interview.Session) (*Store, error) {
	if s == nil {
		return nil, fmt.Errorf("session is required")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Store{current: s.Clone()}, nil
}

// ID returns the session id.
func (st *Store) ID() string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current.ID
}

// Version returns the mutation counter.
func (st *Store) Version() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current.Version
}

// LastActivity returns the time of the last candidate activity.
func (st *Store) LastActivity() time.Time {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current.LastActivityAt
}

// Phase returns the current phase.
func (st *Store) Phase() interview.Phase {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current.Phase
}

// Snapshot returns a deep copy of the session.
func (st *Store) Snapshot() *interview.Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current.Clone()
}

// Mutate applies fn to a copy of the session. If fn fails or the result breaks
// an invariant, nothing is committed and the error is returned.
func (st *Store) Mutate(fn func(s *interview.Session) error) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	next := st.current.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	if err := checkDepthMonotonic(st.current, next); err != nil {
		return err
	}

	next.Version = st.current.Version + 1
	st.current = next
	return nil
}

// AppendQuestion records a question. It fails if the previous one is unanswered.
func (st *Store) AppendQuestion(q interview.Question) error {
	return st.Mutate(func(s *interview.Session) error {
		if s.Outstanding() {
			return interview.ErrQuestionOutstanding
		}
		s.Questions = append(s.Questions, q)
		return nil
	})
}

// AppendResponse records an answer to the outstanding question and counts as activity.
func (st *Store) AppendResponse(r interview.Response) error {
	return st.Mutate(func(s *interview.Session) error {
		if !s.Outstanding() {
			return interview.ErrNoOutstandingQuestion
		}
		s.Responses = append(s.Responses, r)
		s.LastActivityAt = r.At
		return nil
	})
}

// Touch marks activity without changing the transcript.
func (st *Store) Touch(at time.Time) error {
	return st.Mutate(func(s *interview.Session) error {
		s.LastActivityAt = at
		return nil
	})
}

// SetPhase moves the session to the given phase.
func (st *Store) SetPhase(p interview.Phase) error {
	return st.Mutate(func(s *interview.Session) error {
		s.Phase = p
		return nil
	})
}

func checkDepthMonotonic(prev, next *interview.Session) error {
	before := make(map[string]interview.Depth, len(prev.Topics))
	for _, t := range prev.Topics {
		before[t.ID] = t.Depth
	}
	for _, t := range next.Topics {
		if old, ok := before[t.ID]; ok && t.Depth.Level() < old.Level() {
			return &interview.InvariantViolation{
				Rule:   "depth-monotonic",
				Detail: fmt.Sprintf("topic %q regressed from %s to %s", t.ID, old, t.Depth),
			}
		}
	}
	return nil
}
