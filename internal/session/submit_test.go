package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizforge/attempt-engine/internal/engine"
	"github.com/quizforge/attempt-engine/internal/events"
	"github.com/quizforge/attempt-engine/internal/models"
)

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("fully answered attempt submits without confirmation", func(t *testing.T) {
		rig := newTestRig()
		rig.start(t)
		defer rig.ctrl.Close()
		rig.answerAll(t)

		result, err := rig.ctrl.Submit(ctx, false)
		require.NoError(t, err)
		assert.True(t, result.Authoritative)
		assert.Equal(t, 6.0, result.Score)
		assert.Equal(t, models.SessionSubmitted, rig.ctrl.Session().State)
	})

	t.Run("incomplete attempt requires confirmation", func(t *testing.T) {
		rig := newTestRig()
		rig.start(t)
		defer rig.ctrl.Close()
		require.NoError(t, rig.ctrl.AnswerBoolean(ctx, "q2", true))

		_, err := rig.ctrl.Submit(ctx, false)
		require.ErrorIs(t, err, engine.ErrSubmitConfirmationRequired)
		assert.Equal(t, models.SessionActive, rig.ctrl.Session().State)
		assert.Equal(t, 0, rig.scorer.calls)

		result, err := rig.ctrl.Submit(ctx, true)
		require.NoError(t, err)
		assert.True(t, result.Authoritative)
	})

	t.Run("before start there is nothing to submit", func(t *testing.T) {
		rig := newTestRig()
		_, err := rig.ctrl.Submit(ctx, true)
		assert.ErrorIs(t, err, engine.ErrSessionNotActive)
	})

	t.Run("repeated submit returns the cached result without another network call", func(t *testing.T) {
		rig := newTestRig()
		rig.start(t)
		defer rig.ctrl.Close()
		rig.answerAll(t)

		first, err := rig.ctrl.Submit(ctx, false)
		require.NoError(t, err)
		second, err := rig.ctrl.Submit(ctx, false)
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, 1, rig.scorer.calls)
		assert.Equal(t, 1, rig.ledger.recordCalls)
	})

	t.Run("answers are frozen after submission", func(t *testing.T) {
		rig := newTestRig()
		rig.start(t)
		defer rig.ctrl.Close()
		rig.answerAll(t)

		_, err := rig.ctrl.Submit(ctx, false)
		require.NoError(t, err)

		err = rig.ctrl.AnswerBoolean(ctx, "q2", false)
		assert.ErrorIs(t, err, engine.ErrSessionNotActive)
	})

	t.Run("sends shuffle maps and frozen answers to the scorer", func(t *testing.T) {
		rig := newTestRig()
		rig.start(t)
		defer rig.ctrl.Close()
		rig.answerAll(t)

		_, err := rig.ctrl.Submit(ctx, false)
		require.NoError(t, err)

		assert.Len(t, rig.scorer.lastAnswers, 3)
		assert.Contains(t, rig.scorer.lastMaps, "q1")
		assert.Contains(t, rig.scorer.lastMaps, "q3")
	})

	t.Run("records the terminal attempt in the ledger and clears the snapshot", func(t *testing.T) {
		rig := newTestRig()
		rig.start(t)
		defer rig.ctrl.Close()
		rig.answerAll(t)

		_, err := rig.ctrl.Submit(ctx, false)
		require.NoError(t, err)

		require.NotNil(t, rig.ledger.recorded)
		assert.Equal(t, "attempt-1", rig.ledger.recorded.attemptID)
		assert.Equal(t, models.AttemptEndReasonSubmit, rig.ledger.recorded.reason)
		assert.Len(t, rig.ledger.recorded.answers, 3)

		saved, err := rig.snapshots.Load(ctx, "attempt-1")
		require.NoError(t, err)
		assert.Empty(t, saved)
	})

	t.Run("publishes the submitted event", func(t *testing.T) {
		rig := newTestRig()
		rig.start(t)
		defer rig.ctrl.Close()
		rig.answerAll(t)

		_, err := rig.ctrl.Submit(ctx, false)
		require.NoError(t, err)

		types := rig.eventTypes()
		assert.Contains(t, types, events.EventAttemptSubmitted)
	})
}

func TestSubmitLocalFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("scorer outage falls back to local scoring flagged non-authoritative", func(t *testing.T) {
		rig := newTestRig()
		rig.scorer.err = engine.ErrScorerUnavailable
		rig.start(t)
		defer rig.ctrl.Close()
		rig.answerAll(t)

		result, err := rig.ctrl.Submit(ctx, false)
		require.NoError(t, err)
		assert.False(t, result.Authoritative)
		assert.Equal(t, 6.0, result.Score)
		assert.Equal(t, 6.0, result.TotalScore)
		assert.Equal(t, models.SessionSubmitted, rig.ctrl.Session().State)
	})

	t.Run("local fallback scores wrong answers as zero", func(t *testing.T) {
		rig := newTestRig()
		rig.scorer.err = engine.ErrScorerUnavailable
		rig.start(t)
		defer rig.ctrl.Close()
		require.NoError(t, rig.ctrl.AnswerChoice(ctx, "q1", 0))
		require.NoError(t, rig.ctrl.AnswerBoolean(ctx, "q2", true))

		result, err := rig.ctrl.Submit(ctx, true)
		require.NoError(t, err)
		assert.False(t, result.Authoritative)
		assert.Equal(t, 2.0, result.Score)
	})

	t.Run("ledger write failure does not lose the score", func(t *testing.T) {
		rig := newTestRig()
		rig.ledger.recordErr = engine.ErrLedgerUnavailable
		rig.start(t)
		defer rig.ctrl.Close()
		rig.answerAll(t)

		result, err := rig.ctrl.Submit(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 6.0, result.Score)

		cached, err := rig.ctrl.Result()
		require.NoError(t, err)
		assert.Same(t, result, cached)
	})
}

func TestExpiryAutoSubmit(t *testing.T) {
	t.Run("expiry forces submission with the timeout end reason", func(t *testing.T) {
		rig := newTestRig()
		rig.start(t)
		defer rig.ctrl.Close()
		require.NoError(t, rig.ctrl.AnswerBoolean(context.Background(), "q2", true))

		rig.ctrl.handleExpiry()

		assert.Equal(t, models.SessionSubmitted, rig.ctrl.Session().State)
		require.NotNil(t, rig.ledger.recorded)
		assert.Equal(t, models.AttemptEndReasonTimeout, rig.ledger.recorded.reason)

		types := rig.eventTypes()
		assert.Contains(t, types, events.EventAttemptExpired)
		assert.Contains(t, types, events.EventAttemptSubmitted)
	})

	t.Run("expiry after submission is a no-op", func(t *testing.T) {
		rig := newTestRig()
		rig.start(t)
		defer rig.ctrl.Close()
		rig.answerAll(t)

		_, err := rig.ctrl.Submit(context.Background(), false)
		require.NoError(t, err)

		rig.ctrl.handleExpiry()
		assert.Equal(t, 1, rig.scorer.calls)
		assert.Equal(t, models.AttemptEndReasonSubmit, rig.ledger.recorded.reason)
	})
}

func TestResultBeforeSubmission(t *testing.T) {
	rig := newTestRig()
	rig.start(t)
	defer rig.ctrl.Close()

	_, err := rig.ctrl.Result()
	assert.Error(t, err)
}
