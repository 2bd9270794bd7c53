package session

import (
	"context"
	"fmt"

	"github.com/quizforge/attempt-engine/internal/engine"
	"github.com/quizforge/attempt-engine/internal/events"
	"github.com/quizforge/attempt-engine/internal/models"
)

// ===== SCORING ORCHESTRATION =====

// Submit finalizes the attempt: freezes the answers, stops the timer, sends
// everything to the authoritative scorer and reconciles the result back into
// observable state. A failing remote call falls back to the local validators
// with the result flagged non-authoritative.
//
// confirmed acknowledges unanswered questions on a user-triggered submit;
// timer-triggered submission never requires it. Submitting an already
// submitted session is a no-op returning the cached result, with no second
// network call.
func (c *Controller) Submit(ctx context.Context, confirmed bool) (*models.ScoreResult, error) {
	c.mu.Lock()

	switch c.session.State {
	case models.SessionNotStarted:
		c.mu.Unlock()
		return nil, engine.ErrSessionNotActive
	case models.SessionSubmitted:
		result := c.result
		c.mu.Unlock()
		return result, nil
	}
	if c.submitting {
		c.mu.Unlock()
		return nil, engine.ErrSubmitInProgress
	}

	forced := c.session.State == models.SessionExpired
	if !forced && !confirmed && c.answers.AnsweredCount() < len(c.quiz.Questions) {
		c.mu.Unlock()
		return nil, engine.ErrSubmitConfirmationRequired
	}

	// Submission is mutually exclusive with reconciliation: stopping the
	// timer cancels the tick loop and any in-flight reconciliation response
	// is discarded when it lands.
	c.submitting = true
	clock := c.clock
	quiz := c.quiz
	attemptID := c.session.AttemptID
	c.mu.Unlock()

	c.answers.Freeze()
	if clock != nil {
		clock.Stop()
	}

	endReason := models.AttemptEndReasonSubmit
	if forced {
		endReason = models.AttemptEndReasonTimeout
	}

	snapshot := c.answers.Snapshot()
	result := c.scoreAnswers(ctx, quiz, snapshot)

	c.answers.MergeScores(result.PerQuestion)
	c.persistSubmission(ctx, attemptID, result, endReason)

	c.mu.Lock()
	c.result = result
	c.submitting = false
	c.session.State = models.SessionSubmitted
	c.session.RemainingSeconds = 0
	if clock != nil {
		c.session.RemainingSeconds = clock.Remaining()
	}
	c.mu.Unlock()

	c.publish(ctx, events.EventAttemptSubmitted, map[string]interface{}{
		"score":         result.Score,
		"total_score":   result.TotalScore,
		"authoritative": result.Authoritative,
		"end_reason":    string(endReason),
	})

	c.logger.Info("Attempt submitted",
		"attempt_id", attemptID,
		"score", result.Score,
		"total_score", result.TotalScore,
		"authoritative", result.Authoritative,
		"end_reason", endReason)
	return result, nil
}

// scoreAnswers tries the authoritative scorer first and runs the local
// validators when the remote call fails.
func (c *Controller) scoreAnswers(ctx context.Context, quiz *models.QuizDefinition, answers []models.AnswerRecord) *models.ScoreResult {
	result, err := c.scorer.Submit(ctx, quiz.ID, answers, c.codec.ShuffleMaps())
	if err == nil {
		result.Authoritative = true
		return result
	}

	c.logger.Warn("Authoritative scorer unreachable, falling back to local scoring",
		"quiz_id", quiz.ID, "error", err)
	return c.local.ScoreAttempt(quiz, answers)
}

// persistSubmission records the terminal attempt state in the ledger and
// drops the autosave snapshot. Both are best-effort: the score was already
// settled above.
func (c *Controller) persistSubmission(ctx context.Context, attemptID string, result *models.ScoreResult, reason models.AttemptEndReason) {
	if !c.degraded {
		if err := c.ledger.RecordSubmission(ctx, attemptID, c.answers.Snapshot(), result, reason); err != nil {
			c.logger.Warn("Failed to record submission in ledger", "attempt_id", attemptID, "error", err)
		}
	}
	if c.snapshots != nil {
		if err := c.snapshots.Clear(context.WithoutCancel(ctx), attemptID); err != nil {
			c.logger.Debug("Failed to clear answer snapshot", "attempt_id", attemptID, "error", err)
		}
	}
}

// Result returns the attempt's score report once submission has completed.
func (c *Controller) Result() (*models.ScoreResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.result == nil {
		return nil, fmt.Errorf("attempt not yet scored: %w", engine.ErrSessionNotActive)
	}
	return c.result, nil
}

// handleExpiry is the timer's expiry callback. The timer guarantees it runs
// at most once; the session transitions to Expired and the submit path runs
// automatically, with no confirmation gate.
func (c *Controller) handleExpiry() {
	c.mu.Lock()
	if c.session.State != models.SessionActive {
		c.mu.Unlock()
		return
	}
	c.session.State = models.SessionExpired
	attemptID := c.session.AttemptID
	c.mu.Unlock()

	ctx := context.Background()
	c.publish(ctx, events.EventAttemptExpired, nil)
	c.logger.Info("Attempt expired, auto-submitting", "attempt_id", attemptID)

	if _, err := c.Submit(ctx, true); err != nil {
		c.logger.LogError(err, "Auto-submit after expiry failed", "attempt_id", attemptID)
	}
}
