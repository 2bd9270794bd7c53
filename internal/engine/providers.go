// Package engine defines the external collaborators the attempt engine
// consumes: the question bank, the server-side attempt ledger, and the
// authoritative scorer.
package engine

import (
	"context"

	"github.com/quizforge/attempt-engine/internal/models"
)

// QuestionBankProvider hands back a quiz's questions, already shuffled, plus
// metadata. Questions include their shuffle maps where applicable.
type QuestionBankProvider interface {
	GetQuestions(ctx context.Context, quizID string) ([]models.Question, error)
	GetMetadata(ctx context.Context, quizID string) (*models.QuizMetadata, error)
}

// LedgerState is the ledger's authoritative view of one attempt.
type LedgerState struct {
	AttemptID        string `json:"attempt_id"`
	RemainingSeconds int    `json:"remaining_seconds"` // -1 for untimed
	IsExpired        bool   `json:"is_expired"`
}

// AttemptLedger is the server-side authority for elapsed time and
// max-attempt enforcement. The attempt record survives client teardown,
// which is what makes resume possible.
type AttemptLedger interface {
	// StartAttempt opens a new attempt, or returns the learner's active one
	// when it already exists. Fails with ErrMaxAttemptsExceeded.
	StartAttempt(ctx context.Context, quizID, learnerID string) (*LedgerState, error)

	// GetAttempt returns the learner's active attempt. Fails with
	// ErrAttemptNotFound when none exists.
	GetAttempt(ctx context.Context, quizID, learnerID string) (*LedgerState, error)

	// RecordSubmission persists the terminal state of an attempt, with the
	// frozen answers and the score the orchestrator settled on.
	RecordSubmission(ctx context.Context, attemptID string, answers []models.AnswerRecord, result *models.ScoreResult, reason models.AttemptEndReason) error
}

// AuthoritativeScorer is the remote scorer that owns the unshuffled answer
// keys. Submit receives the frozen answers together with the shuffle maps so
// the server can translate between spaces.
type AuthoritativeScorer interface {
	Submit(ctx context.Context, quizID string, answers []models.AnswerRecord, shuffleMaps map[string][]int) (*models.ScoreResult, error)
}
