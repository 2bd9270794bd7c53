package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SessionState string

const (
	SessionNotStarted SessionState = "NotStarted"
	SessionActive     SessionState = "Active"
	SessionExpired    SessionState = "Expired"
	SessionSubmitted  SessionState = "Submitted"
)

// Terminal reports whether the session can no longer change state, with one
// exception handled by the controller: an Expired session is force-submitted
// exactly once.
func (s SessionState) Terminal() bool {
	return s == SessionSubmitted
}

// AttemptSession is the client-observable state of one timed quiz run.
type AttemptSession struct {
	QuizID           string       `json:"quiz_id"`
	AttemptID        string       `json:"attempt_id"`
	State            SessionState `json:"state"`
	RemainingSeconds int          `json:"remaining_seconds"`
	StartedAt        time.Time    `json:"started_at"`
}

type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "InProgress"
	AttemptStatusSubmitted  AttemptStatus = "Submitted"
	AttemptStatusTimedOut   AttemptStatus = "TimedOut"
)

type AttemptEndReason string

const (
	AttemptEndReasonSubmit  AttemptEndReason = "submit"
	AttemptEndReasonTimeout AttemptEndReason = "timeout"
)

// AttemptRecord is the server-held attempt ledger row: the authority for
// elapsed time and retry-limit enforcement. It survives client teardown so a
// learner can resume.
type AttemptRecord struct {
	ID        string        `json:"id" gorm:"primaryKey;size:36"`
	QuizID    string        `json:"quiz_id" gorm:"not null;size:64;index:idx_attempts_quiz_learner"`
	LearnerID string        `json:"learner_id" gorm:"not null;size:64;index:idx_attempts_quiz_learner"`
	Status    AttemptStatus `json:"status" gorm:"not null;default:InProgress;index"`

	StartedAt   time.Time  `json:"started_at" gorm:"not null"`
	EndTime     *time.Time `json:"end_time"` // Nil for untimed quizzes
	SubmittedAt *time.Time `json:"submitted_at"`
	TimeLimit   int        `json:"time_limit"` // Seconds

	FinalScore *float64          `json:"final_score"`
	EndReason  *AttemptEndReason `json:"end_reason"`

	// Last answer snapshot, []AnswerRecord as JSONB
	Answers datatypes.JSON `json:"answers" gorm:"type:jsonb"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (AttemptRecord) TableName() string {
	return "attempt_records"
}

// RemainingSeconds computes the authoritative remaining time at the given
// instant. Untimed attempts report -1.
func (a *AttemptRecord) RemainingSeconds(now time.Time) int {
	if a.EndTime == nil {
		return -1
	}
	remaining := int(a.EndTime.Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether the attempt's time window has closed.
func (a *AttemptRecord) Expired(now time.Time) bool {
	return a.EndTime != nil && now.After(*a.EndTime)
}
