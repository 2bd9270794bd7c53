package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the attempt lifecycle events the engine emits
type EventType string

const (
	EventAttemptStarted   EventType = "attempt.started"
	EventAttemptResumed   EventType = "attempt.resumed"
	EventAttemptExpired   EventType = "attempt.expired"
	EventAttemptSubmitted EventType = "attempt.submitted"
)

// AttemptEvent is the base event structure published on attempt transitions
type AttemptEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`

	AttemptID string `json:"attempt_id"`
	QuizID    string `json:"quiz_id"`
	LearnerID string `json:"learner_id"`

	Data map[string]interface{} `json:"data,omitempty"`
}

// NewAttemptEvent fills the envelope for one attempt transition.
func NewAttemptEvent(eventType EventType, attemptID, quizID, learnerID string, data map[string]interface{}) *AttemptEvent {
	return &AttemptEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    "attempt-engine",
		Version:   "1.0",
		AttemptID: attemptID,
		QuizID:    quizID,
		LearnerID: learnerID,
		Data:      data,
	}
}
