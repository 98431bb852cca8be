package workflow

import (
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/interview-conductor/internal/logger"
)

// EventKind names a workflow event.
type EventKind string

const (
	EventSessionStarted   EventKind = "session_started"
	EventSessionResumed   EventKind = "session_resumed"
	EventResponseRecorded EventKind = "response_recorded"
	EventResponseScored   EventKind = "response_scored"
	EventTopicCompleted   EventKind = "topic_completed"
	EventQuestionAsked    EventKind = "question_asked"
	EventFallbackQuestion EventKind = "fallback_question"
	EventWrappingUp       EventKind = "wrapping_up"
	EventTurnCancelled    EventKind = "turn_cancelled"
	EventTurnRecovered    EventKind = "turn_recovered"
	EventSessionSuspended EventKind = "session_suspended"
	EventCheckpointSaved  EventKind = "checkpoint_saved"
	EventLifecycleSignal  EventKind = "lifecycle_signal"
	EventSessionEnded     EventKind = "session_ended"
)

// Event is one entry of the in-memory workflow log.
type Event struct {
	At      time.Time
	Kind    EventKind
	TopicID string
	Detail  string
}

func (c *Coordinator) record(kind EventKind, topicID, detail string) {
	ev := Event{At: c.now(), Kind: kind, TopicID: topicID, Detail: detail}

	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()

	c.logger.Info("workflow event",
		zap.String("event", string(kind)),
		logger.Topic(topicID),
		zap.String("detail", detail),
	)
}

// Events returns a copy of the event log.
func (c *Coordinator) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.events)
}
