package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizforge/attempt-engine/internal/cache"
	"github.com/quizforge/attempt-engine/internal/engine"
	"github.com/quizforge/attempt-engine/internal/events"
	"github.com/quizforge/attempt-engine/internal/models"
	"github.com/quizforge/attempt-engine/internal/timer"
)

// ===== STUB COLLABORATORS =====

type stubBank struct {
	questions []models.Question
	meta      *models.QuizMetadata
	metaErr   error

	// Widens the race window when several goroutines open at once.
	delay time.Duration
}

func (b *stubBank) GetQuestions(ctx context.Context, quizID string) ([]models.Question, error) {
	out := make([]models.Question, len(b.questions))
	copy(out, b.questions)
	return out, nil
}

func (b *stubBank) GetMetadata(ctx context.Context, quizID string) (*models.QuizMetadata, error) {
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	if b.metaErr != nil {
		return nil, b.metaErr
	}
	return b.meta, nil
}

type recordedSubmission struct {
	attemptID string
	answers   []models.AnswerRecord
	result    *models.ScoreResult
	reason    models.AttemptEndReason
}

type stubLedger struct {
	getState   *engine.LedgerState
	getErr     error
	startState *engine.LedgerState
	startErr   error

	startCalls  int
	recordCalls int
	recorded    *recordedSubmission
	recordErr   error
}

func (l *stubLedger) StartAttempt(ctx context.Context, quizID, learnerID string) (*engine.LedgerState, error) {
	l.startCalls++
	if l.startErr != nil {
		return nil, l.startErr
	}
	return l.startState, nil
}

func (l *stubLedger) GetAttempt(ctx context.Context, quizID, learnerID string) (*engine.LedgerState, error) {
	if l.getErr != nil {
		return nil, l.getErr
	}
	return l.getState, nil
}

func (l *stubLedger) RecordSubmission(ctx context.Context, attemptID string, answers []models.AnswerRecord, result *models.ScoreResult, reason models.AttemptEndReason) error {
	l.recordCalls++
	l.recorded = &recordedSubmission{attemptID: attemptID, answers: answers, result: result, reason: reason}
	return l.recordErr
}

type stubScorer struct {
	result *models.ScoreResult
	err    error

	calls       int
	lastAnswers []models.AnswerRecord
	lastMaps    map[string][]int
}

func (s *stubScorer) Submit(ctx context.Context, quizID string, answers []models.AnswerRecord, shuffleMaps map[string][]int) (*models.ScoreResult, error) {
	s.calls++
	s.lastAnswers = answers
	s.lastMaps = shuffleMaps
	if s.err != nil {
		return nil, s.err
	}
	cp := *s.result
	return &cp, nil
}

// ===== FIXTURES =====

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

// Three scorable questions, 2 points each. q1's answer key is pre-shuffled
// so the correct presented choice is index 1; q3's canonical order is the
// default identity and decodes from arrangement [1,2,0] under map [2,0,1].
func testQuestions() []models.Question {
	return []models.Question{
		{
			ID:           "q1",
			Type:         models.SingleChoice,
			Prompt:       "Which gas do plants absorb?",
			Points:       2,
			Choices:      []string{"Oxygen", "Carbon dioxide", "Nitrogen"},
			CorrectIndex: intPtr(1),
			ShuffleMap:   []int{1, 2, 0},
		},
		{
			ID:            "q2",
			Type:          models.Boolean,
			Prompt:        "Water boils at 100C at sea level.",
			Points:        2,
			CorrectAnswer: boolPtr(true),
		},
		{
			ID:         "q3",
			Type:       models.Ordering,
			Prompt:     "Order the phases of mitosis.",
			Points:     2,
			Items:      []string{"Prophase", "Metaphase", "Anaphase"},
			ShuffleMap: []int{2, 0, 1},
		},
	}
}

func testMetadata() *models.QuizMetadata {
	return &models.QuizMetadata{Title: "Biology Basics", FullScore: 6, TimeLimit: 30, MaxAttempts: 3}
}

type testRig struct {
	bank      *stubBank
	ledger    *stubLedger
	scorer    *stubScorer
	snapshots *cache.MemorySnapshotStore
	publisher *events.MockEventPublisher
	ctrl      *Controller
}

func newTestRig() *testRig {
	rig := &testRig{
		bank:      &stubBank{questions: testQuestions(), meta: testMetadata()},
		ledger:    &stubLedger{startState: &engine.LedgerState{AttemptID: "attempt-1", RemainingSeconds: 1800}, getErr: engine.ErrAttemptNotFound},
		scorer:    &stubScorer{result: &models.ScoreResult{Score: 6, TotalScore: 6}},
		snapshots: cache.NewMemorySnapshotStore(),
		publisher: events.NewMockEventPublisher(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	rig.ctrl = NewController(Config{
		Bank:      rig.bank,
		Ledger:    rig.ledger,
		Scorer:    rig.scorer,
		Snapshots: rig.snapshots,
		Publisher: rig.publisher,
		// A huge interval keeps the tick loop quiet during tests.
		Timer: timer.Options{Interval: time.Hour},
	})
	return rig
}

func (r *testRig) start(t *testing.T) {
	t.Helper()
	require.NoError(t, r.ctrl.Start(context.Background(), "quiz-1", "learner-1"))
}

func (r *testRig) answerAll(t *testing.T) {
	t.Helper()
	r.answerAllOn(t, r.ctrl)
}

func (r *testRig) answerAllOn(t *testing.T, ctrl *Controller) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, ctrl.AnswerChoice(ctx, "q1", 1))
	require.NoError(t, ctrl.AnswerBoolean(ctx, "q2", true))
	require.NoError(t, ctrl.AnswerOrdering(ctx, "q3", []int{1, 2, 0}))
}

func (r *testRig) eventTypes() []events.EventType {
	types := make([]events.EventType, 0, len(r.publisher.Events))
	for _, e := range r.publisher.Events {
		types = append(types, e.Type)
	}
	return types
}

// ===== START / RESUME =====

func TestControllerStart(t *testing.T) {
	t.Run("opens a new attempt", func(t *testing.T) {
		rig := newTestRig()
		rig.start(t)
		defer rig.ctrl.Close()

		s := rig.ctrl.Session()
		assert.Equal(t, models.SessionActive, s.State)
		assert.Equal(t, "attempt-1", s.AttemptID)
		assert.Equal(t, "quiz-1", s.QuizID)
		assert.False(t, rig.ctrl.Degraded())
		assert.Equal(t, 1, rig.ledger.startCalls)
		assert.Equal(t, []events.EventType{events.EventAttemptStarted}, rig.eventTypes())
	})

	t.Run("rejects a second start", func(t *testing.T) {
		rig := newTestRig()
		rig.start(t)
		defer rig.ctrl.Close()

		err := rig.ctrl.Start(context.Background(), "quiz-1", "learner-1")
		assert.ErrorIs(t, err, engine.ErrSessionAlreadyStarted)
	})

	t.Run("max attempts exceeded is fatal", func(t *testing.T) {
		rig := newTestRig()
		rig.ledger.startErr = engine.ErrMaxAttemptsExceeded

		err := rig.ctrl.Start(context.Background(), "quiz-1", "learner-1")
		require.ErrorIs(t, err, engine.ErrMaxAttemptsExceeded)
		assert.Equal(t, models.SessionNotStarted, rig.ctrl.Session().State)
	})

	t.Run("unreachable ledger degrades to local timer", func(t *testing.T) {
		rig := newTestRig()
		rig.ledger.getErr = fmt.Errorf("dial tcp: %w", engine.ErrLedgerUnavailable)
		rig.ledger.startErr = rig.ledger.getErr
		rig.start(t)
		defer rig.ctrl.Close()

		assert.True(t, rig.ctrl.Degraded())
		assert.Contains(t, rig.ctrl.Session().AttemptID, "local-")
		// 30 minutes seeded locally from the quiz time limit.
		assert.InDelta(t, 1800, rig.ctrl.RemainingSeconds(), 2)
	})

	t.Run("non-outage ledger failure propagates instead of degrading", func(t *testing.T) {
		rig := newTestRig()
		rig.ledger.startErr = fmt.Errorf("quiz metadata: %w", engine.ErrQuizNotFound)

		err := rig.ctrl.Start(context.Background(), "quiz-1", "learner-1")
		require.ErrorIs(t, err, engine.ErrQuizNotFound)
		assert.False(t, rig.ctrl.Degraded())
		assert.Equal(t, models.SessionNotStarted, rig.ctrl.Session().State)
	})

	t.Run("resumes an active attempt with ledger time and saved answers", func(t *testing.T) {
		rig := newTestRig()
		rig.ledger.getErr = nil
		rig.ledger.getState = &engine.LedgerState{AttemptID: "attempt-1", RemainingSeconds: 45}
		require.NoError(t, rig.snapshots.Save(context.Background(), "attempt-1", []models.AnswerRecord{
			{QuestionID: "q2", Value: models.BooleanAnswer{Value: true}},
			{QuestionID: "gone", Value: models.BooleanAnswer{Value: false}},
		}))
		rig.start(t)
		defer rig.ctrl.Close()

		assert.Equal(t, 1, rig.ctrl.AnsweredCount(), "stale question dropped, saved answer restored")
		assert.InDelta(t, 45, rig.ctrl.RemainingSeconds(), 2)
		assert.Equal(t, 0, rig.ledger.startCalls)
		assert.Equal(t, []events.EventType{events.EventAttemptResumed}, rig.eventTypes())
	})

	t.Run("expired previous attempt opens a fresh one", func(t *testing.T) {
		rig := newTestRig()
		rig.ledger.getErr = nil
		rig.ledger.getState = &engine.LedgerState{AttemptID: "attempt-0", RemainingSeconds: 0, IsExpired: true}
		rig.start(t)
		defer rig.ctrl.Close()

		assert.Equal(t, "attempt-1", rig.ctrl.Session().AttemptID)
		assert.Equal(t, 1, rig.ledger.startCalls)
	})
}

// ===== ANSWER INPUT =====

func TestControllerAnswers(t *testing.T) {
	rig := newTestRig()
	rig.start(t)
	defer rig.ctrl.Close()
	ctx := context.Background()

	t.Run("records each supported type", func(t *testing.T) {
		rig.answerAll(t)
		assert.Equal(t, 3, rig.ctrl.AnsweredCount())
	})

	t.Run("matching against a non-matching question fails", func(t *testing.T) {
		err := rig.ctrl.AnswerMatching(ctx, "q1", []models.MatchPair{{Left: 0, Right: 0}})
		assert.ErrorIs(t, err, engine.ErrAnswerTypeMismatch)
	})

	t.Run("ordering is stored canonically and decodes back", func(t *testing.T) {
		require.NoError(t, rig.ctrl.AnswerOrdering(ctx, "q3", []int{1, 2, 0}))
		arrangement, err := rig.ctrl.OrderingArrangement("q3")
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 0}, arrangement)
	})

	t.Run("rejects type mismatch", func(t *testing.T) {
		err := rig.ctrl.AnswerBoolean(ctx, "q1", true)
		assert.ErrorIs(t, err, engine.ErrAnswerTypeMismatch)
	})

	t.Run("rejects unknown question", func(t *testing.T) {
		err := rig.ctrl.AnswerBoolean(ctx, "nope", true)
		assert.ErrorIs(t, err, engine.ErrQuestionNotFound)
	})

	t.Run("rejects out of range choice", func(t *testing.T) {
		assert.Error(t, rig.ctrl.AnswerChoice(ctx, "q1", 3))
		assert.Error(t, rig.ctrl.AnswerChoice(ctx, "q1", -1))
	})
}

func TestControllerAnswerChoiceRequiresShuffleMap(t *testing.T) {
	rig := newTestRig()
	rig.bank.questions[0].ShuffleMap = nil
	rig.start(t)
	defer rig.ctrl.Close()

	err := rig.ctrl.AnswerChoice(context.Background(), "q1", 1)
	assert.ErrorIs(t, err, engine.ErrShuffleMapMissing)
}

// ===== NAVIGATION =====

func TestControllerNavigation(t *testing.T) {
	rig := newTestRig()
	rig.start(t)
	defer rig.ctrl.Close()

	assert.Equal(t, 0, rig.ctrl.CurrentIndex())
	require.NoError(t, rig.ctrl.Next())
	assert.Equal(t, 1, rig.ctrl.CurrentIndex())
	require.NoError(t, rig.ctrl.Previous())
	assert.Equal(t, 0, rig.ctrl.CurrentIndex())
	require.NoError(t, rig.ctrl.GoTo(2))

	q, err := rig.ctrl.CurrentQuestion()
	require.NoError(t, err)
	assert.Equal(t, "q3", q.ID)

	assert.ErrorIs(t, rig.ctrl.GoTo(3), engine.ErrQuestionIndexOutOfRange)
	assert.ErrorIs(t, rig.ctrl.GoTo(-1), engine.ErrQuestionIndexOutOfRange)
	assert.Equal(t, 2, rig.ctrl.CurrentIndex(), "failed moves leave the cursor in place")

	assert.InDelta(t, 100, rig.ctrl.Progress(), 0.01)
}

// ===== TIMER SURFACE =====

func TestControllerTimeWarning(t *testing.T) {
	rig := newTestRig()
	rig.ledger.startState.RemainingSeconds = 120
	rig.start(t)
	defer rig.ctrl.Close()

	assert.True(t, rig.ctrl.IsTimeWarning())
	assert.NotEmpty(t, rig.ctrl.RemainingSecondsFormatted())
}

func TestControllerUntimedQuiz(t *testing.T) {
	rig := newTestRig()
	rig.bank.meta.TimeLimit = 0
	rig.start(t)
	defer rig.ctrl.Close()

	assert.Equal(t, -1, rig.ctrl.RemainingSeconds())
	assert.Empty(t, rig.ctrl.RemainingSecondsFormatted())
	assert.False(t, rig.ctrl.IsTimeWarning())
}
