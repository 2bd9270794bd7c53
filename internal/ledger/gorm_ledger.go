// Package ledger is a gorm-backed reference implementation of the attempt
// ledger: the server-side authority for elapsed time, attempt counting and
// terminal attempt records. Deployments with an external ledger service can
// swap this out behind the same interface.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quizforge/attempt-engine/internal/engine"
	"github.com/quizforge/attempt-engine/internal/models"
	"github.com/quizforge/attempt-engine/internal/utils"
)

// GormLedger implements engine.AttemptLedger over a relational attempt_records
// table. Quiz metadata (time limit, attempt cap) comes from the question bank.
type GormLedger struct {
	db     *gorm.DB
	bank   engine.QuestionBankProvider
	logger utils.Logger
}

func NewGormLedger(db *gorm.DB, bank engine.QuestionBankProvider, logger utils.Logger) *GormLedger {
	return &GormLedger{
		db:     db,
		bank:   bank,
		logger: logger.With("component", "attempt_ledger"),
	}
}

// ===== LEDGER INTERFACE =====

// StartAttempt opens a new attempt for the learner, or hands back their
// still-running one. The attempt cap counts every attempt ever opened for
// this quiz, including timed-out ones.
func (l *GormLedger) StartAttempt(ctx context.Context, quizID, learnerID string) (*engine.LedgerState, error) {
	now := time.Now()

	active, err := l.activeRecord(ctx, quizID, learnerID)
	if err != nil && !errors.Is(err, engine.ErrAttemptNotFound) {
		return nil, err
	}
	if active != nil {
		if !active.Expired(now) {
			return stateOf(active, now), nil
		}
		if err := l.closeTimedOut(ctx, active, now); err != nil {
			return nil, err
		}
	}

	meta, err := l.bank.GetMetadata(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz metadata: %w", err)
	}

	if meta.MaxAttempts > 0 {
		var count int64
		err := l.db.WithContext(ctx).
			Model(&models.AttemptRecord{}).
			Where("quiz_id = ? AND learner_id = ?", quizID, learnerID).
			Count(&count).Error
		if err != nil {
			return nil, fmt.Errorf("%w: counting attempts: %v", engine.ErrLedgerUnavailable, err)
		}
		if count >= int64(meta.MaxAttempts) {
			return nil, fmt.Errorf("quiz %s: %w", quizID, engine.ErrMaxAttemptsExceeded)
		}
	}

	record := &models.AttemptRecord{
		ID:        uuid.NewString(),
		QuizID:    quizID,
		LearnerID: learnerID,
		Status:    models.AttemptStatusInProgress,
		StartedAt: now,
		TimeLimit: meta.TimeLimit * 60,
	}
	if record.TimeLimit > 0 {
		end := now.Add(time.Duration(record.TimeLimit) * time.Second)
		record.EndTime = &end
	}

	if err := l.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, fmt.Errorf("%w: creating attempt record: %v", engine.ErrLedgerUnavailable, err)
	}

	l.logger.Info("Attempt opened",
		"attempt_id", record.ID,
		"quiz_id", quizID,
		"learner_id", learnerID,
		"time_limit_seconds", record.TimeLimit)
	return stateOf(record, now), nil
}

// GetAttempt returns the learner's running attempt with the remaining time
// computed against the wall clock here, never trusting the client's.
func (l *GormLedger) GetAttempt(ctx context.Context, quizID, learnerID string) (*engine.LedgerState, error) {
	record, err := l.activeRecord(ctx, quizID, learnerID)
	if err != nil {
		return nil, err
	}
	return stateOf(record, time.Now()), nil
}

// RecordSubmission persists the terminal state of an attempt: the frozen
// answers as JSONB, the settled score, and how the attempt ended.
func (l *GormLedger) RecordSubmission(ctx context.Context, attemptID string, answers []models.AnswerRecord, result *models.ScoreResult, reason models.AttemptEndReason) error {
	record, err := l.recordByID(ctx, attemptID)
	if err != nil {
		return err
	}
	if record.Status != models.AttemptStatusInProgress {
		return fmt.Errorf("attempt %s: %w", attemptID, engine.ErrSessionAlreadySubmitted)
	}

	raw, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("failed to marshal answers: %w", err)
	}

	now := time.Now()
	status := models.AttemptStatusSubmitted
	if reason == models.AttemptEndReasonTimeout {
		status = models.AttemptStatusTimedOut
	}
	score := result.Score

	record.Status = status
	record.SubmittedAt = &now
	record.FinalScore = &score
	record.EndReason = &reason
	record.Answers = raw

	if err := l.db.WithContext(ctx).Save(record).Error; err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}

	l.logger.Info("Submission recorded",
		"attempt_id", attemptID,
		"status", status,
		"score", score,
		"end_reason", reason)
	return nil
}

// ===== QUERIES FOR THE API SURFACE =====

// GetRecord fetches one attempt row by ID, for score reports and export.
func (l *GormLedger) GetRecord(ctx context.Context, attemptID string) (*models.AttemptRecord, error) {
	return l.recordByID(ctx, attemptID)
}

// ListByLearner returns a learner's attempts for a quiz, newest first.
func (l *GormLedger) ListByLearner(ctx context.Context, quizID, learnerID string) ([]models.AttemptRecord, error) {
	var records []models.AttemptRecord
	err := l.db.WithContext(ctx).
		Where("quiz_id = ? AND learner_id = ?", quizID, learnerID).
		Order("started_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return records, nil
}

// ListByQuiz returns every attempt of a quiz, newest first, for results
// export.
func (l *GormLedger) ListByQuiz(ctx context.Context, quizID string) ([]models.AttemptRecord, error) {
	var records []models.AttemptRecord
	err := l.db.WithContext(ctx).
		Where("quiz_id = ?", quizID).
		Order("started_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list quiz attempts: %w", err)
	}
	return records, nil
}

// CloseExpiredAttempts sweeps InProgress rows whose time window closed and
// marks them TimedOut. Returns how many rows were closed. Run periodically;
// attempts also get closed lazily when the learner comes back.
func (l *GormLedger) CloseExpiredAttempts(ctx context.Context) (int64, error) {
	reason := models.AttemptEndReasonTimeout
	res := l.db.WithContext(ctx).
		Model(&models.AttemptRecord{}).
		Where("status = ? AND end_time IS NOT NULL AND end_time < ?", models.AttemptStatusInProgress, time.Now()).
		Updates(map[string]interface{}{
			"status":     models.AttemptStatusTimedOut,
			"end_reason": reason,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to close expired attempts: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		l.logger.Info("Closed expired attempts", "count", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

// ===== HELPERS =====

func (l *GormLedger) activeRecord(ctx context.Context, quizID, learnerID string) (*models.AttemptRecord, error) {
	var record models.AttemptRecord
	err := l.db.WithContext(ctx).
		Where("quiz_id = ? AND learner_id = ? AND status = ?", quizID, learnerID, models.AttemptStatusInProgress).
		Order("started_at DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("quiz %s learner %s: %w", quizID, learnerID, engine.ErrAttemptNotFound)
		}
		return nil, fmt.Errorf("%w: %v", engine.ErrLedgerUnavailable, err)
	}
	return &record, nil
}

func (l *GormLedger) recordByID(ctx context.Context, attemptID string) (*models.AttemptRecord, error) {
	var record models.AttemptRecord
	err := l.db.WithContext(ctx).First(&record, "id = ?", attemptID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("attempt %s: %w", attemptID, engine.ErrAttemptNotFound)
		}
		return nil, fmt.Errorf("%w: %v", engine.ErrLedgerUnavailable, err)
	}
	return &record, nil
}

func (l *GormLedger) closeTimedOut(ctx context.Context, record *models.AttemptRecord, now time.Time) error {
	reason := models.AttemptEndReasonTimeout
	record.Status = models.AttemptStatusTimedOut
	record.EndReason = &reason
	if err := l.db.WithContext(ctx).Save(record).Error; err != nil {
		return fmt.Errorf("%w: closing timed-out attempt: %v", engine.ErrLedgerUnavailable, err)
	}
	l.logger.Info("Closed timed-out attempt", "attempt_id", record.ID)
	return nil
}

func stateOf(record *models.AttemptRecord, now time.Time) *engine.LedgerState {
	return &engine.LedgerState{
		AttemptID:        record.ID,
		RemainingSeconds: record.RemainingSeconds(now),
		IsExpired:        record.Expired(now),
	}
}
