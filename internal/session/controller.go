// Package session orchestrates one quiz attempt: it fetches the quiz from
// the question bank, drives the attempt state machine, routes interaction
// into the answer store through the type-aware input adapters, and owns the
// submit path.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quizforge/attempt-engine/internal/cache"
	"github.com/quizforge/attempt-engine/internal/engine"
	"github.com/quizforge/attempt-engine/internal/events"
	"github.com/quizforge/attempt-engine/internal/models"
	"github.com/quizforge/attempt-engine/internal/scoring"
	"github.com/quizforge/attempt-engine/internal/shuffle"
	"github.com/quizforge/attempt-engine/internal/store"
	"github.com/quizforge/attempt-engine/internal/timer"
	"github.com/quizforge/attempt-engine/internal/utils"
)

// TimeWarningSeconds is the threshold below which the UI shows the countdown
// in a warning state.
const TimeWarningSeconds = 300

// Config wires a controller's collaborators. Snapshots and Publisher are
// optional; Timer options default to one real second per tick.
type Config struct {
	Bank      engine.QuestionBankProvider
	Ledger    engine.AttemptLedger
	Scorer    engine.AuthoritativeScorer
	Snapshots cache.SnapshotStore
	Publisher events.EventPublisher
	Logger    utils.Logger
	Timer     timer.Options
}

// Controller owns exactly one attempt session. The answer store and session
// state have no concurrent writers besides the timer-driven expiry path,
// which takes the same lock.
type Controller struct {
	logger    utils.Logger
	bank      engine.QuestionBankProvider
	ledger    engine.AttemptLedger
	scorer    engine.AuthoritativeScorer
	snapshots cache.SnapshotStore
	publisher events.EventPublisher
	timerOpts timer.Options
	local     *scoring.LocalScorer

	mu        sync.Mutex
	quiz      *models.QuizDefinition
	codec     *shuffle.Codec
	answers   *store.AnswerStore
	clock     *timer.Timer
	session   models.AttemptSession
	learnerID string

	// degraded means the ledger was unreachable at start and the countdown
	// runs on a local-only seed; documented as less trustworthy.
	degraded bool

	current int
	visited []bool

	submitting bool
	result     *models.ScoreResult
}

func NewController(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = utils.NewNopLogger()
	}
	return &Controller{
		logger:    cfg.Logger.With("component", "attempt_session"),
		bank:      cfg.Bank,
		ledger:    cfg.Ledger,
		scorer:    cfg.Scorer,
		snapshots: cfg.Snapshots,
		publisher: cfg.Publisher,
		timerOpts: cfg.Timer,
		local:     scoring.NewLocalScorer(),
		session:   models.AttemptSession{State: models.SessionNotStarted},
	}
}

// ===== START / RESUME =====

// Start opens or resumes the learner's attempt for a quiz. Max-attempt
// rejection from the ledger is fatal and aborts entry; an unreachable ledger
// degrades to a local-only timer seeded from the quiz time limit.
func (c *Controller) Start(ctx context.Context, quizID, learnerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.State != models.SessionNotStarted {
		return engine.ErrSessionAlreadyStarted
	}

	meta, err := c.bank.GetMetadata(ctx, quizID)
	if err != nil {
		return fmt.Errorf("failed to get quiz metadata: %w", err)
	}
	questions, err := c.bank.GetQuestions(ctx, quizID)
	if err != nil {
		return fmt.Errorf("failed to get questions: %w", err)
	}

	quiz := &models.QuizDefinition{
		ID:        quizID,
		Title:     meta.Title,
		Questions: questions,
		FullScore: meta.FullScore,
		TimeLimit: meta.TimeLimit,
	}
	if quiz.FullScore == 0 {
		for _, q := range questions {
			quiz.FullScore += q.Points
		}
	}

	codec := shuffle.NewCodec()
	for i := range questions {
		q := &questions[i]
		if !q.Type.RequiresShuffleMap() {
			continue
		}
		if len(q.ShuffleMap) == 0 {
			// Fail closed: the question stays unscored, the session warns
			// instead of assuming an identity mapping.
			c.logger.Warn("Question is missing its shuffle map and will not be scored",
				"quiz_id", quizID, "question_id", q.ID)
			continue
		}
		if err := codec.Register(q.ID, shuffle.Map(q.ShuffleMap)); err != nil {
			c.logger.Warn("Question has an invalid shuffle map and will not be scored",
				"quiz_id", quizID, "question_id", q.ID, "error", err)
		}
	}

	ledgerState, resumed, err := c.openAttempt(ctx, quizID, learnerID, meta)
	if err != nil {
		return err
	}

	c.quiz = quiz
	c.codec = codec
	c.answers = store.NewAnswerStore()
	c.learnerID = learnerID
	c.current = 0
	c.visited = make([]bool, len(questions))
	if len(c.visited) > 0 {
		c.visited[0] = true
	}
	c.session = models.AttemptSession{
		QuizID:           quizID,
		AttemptID:        ledgerState.AttemptID,
		State:            models.SessionActive,
		RemainingSeconds: ledgerState.RemainingSeconds,
		StartedAt:        time.Now(),
	}

	if resumed {
		c.restoreSnapshot(ctx)
	}

	if err := c.startTimer(ledgerState); err != nil {
		return err
	}

	eventType := events.EventAttemptStarted
	if resumed {
		eventType = events.EventAttemptResumed
	}
	c.publish(ctx, eventType, nil)

	c.logger.Info("Attempt session started",
		"quiz_id", quizID,
		"attempt_id", ledgerState.AttemptID,
		"learner_id", learnerID,
		"resumed", resumed,
		"degraded", c.degraded,
		"remaining_seconds", ledgerState.RemainingSeconds)
	return nil
}

// openAttempt resumes the learner's existing ledger record or opens a new
// one, falling back to a local-only attempt when the ledger is unreachable.
func (c *Controller) openAttempt(ctx context.Context, quizID, learnerID string, meta *models.QuizMetadata) (*engine.LedgerState, bool, error) {
	state, err := c.ledger.GetAttempt(ctx, quizID, learnerID)
	if err == nil && !state.IsExpired {
		return state, true, nil
	}

	if err == nil && state.IsExpired {
		// The previous attempt ran out; ask the ledger for a fresh one.
		// Max-attempt enforcement happens there.
		state, err = c.ledger.StartAttempt(ctx, quizID, learnerID)
	} else if errors.Is(err, engine.ErrAttemptNotFound) {
		state, err = c.ledger.StartAttempt(ctx, quizID, learnerID)
	}

	if err == nil {
		return state, false, nil
	}
	if !engine.IsOutage(err) {
		// Anything other than an outage is a real answer, not a reason
		// to run blind on a local timer.
		return nil, false, fmt.Errorf("cannot enter quiz: %w", err)
	}

	// Degraded mode: ledger unreachable. Seed the countdown locally from
	// the quiz time limit; explicitly less trustworthy than the ledger.
	c.degraded = true
	c.logger.Warn("Attempt ledger unreachable, running on local-only timer",
		"quiz_id", quizID, "error", err)
	return &engine.LedgerState{
		AttemptID:        "local-" + uuid.NewString(),
		RemainingSeconds: meta.TimeLimit * 60,
	}, false, nil
}

func (c *Controller) restoreSnapshot(ctx context.Context) {
	if c.snapshots == nil {
		return
	}
	records, err := c.snapshots.Load(ctx, c.session.AttemptID)
	if err != nil {
		c.logger.Warn("Failed to load answer snapshot", "attempt_id", c.session.AttemptID, "error", err)
		return
	}
	if len(records) == 0 {
		return
	}

	// Drop records for questions this quiz no longer has.
	known := make(map[string]bool, len(c.quiz.Questions))
	for _, q := range c.quiz.Questions {
		known[q.ID] = true
	}
	kept := records[:0]
	for _, rec := range records {
		if known[rec.QuestionID] {
			kept = append(kept, rec)
		}
	}

	if err := c.answers.Restore(kept); err != nil {
		c.logger.Warn("Failed to restore answer snapshot", "attempt_id", c.session.AttemptID, "error", err)
		return
	}
	c.logger.Info("Restored answer snapshot", "attempt_id", c.session.AttemptID, "answers", len(kept))
}

func (c *Controller) startTimer(state *engine.LedgerState) error {
	if c.quiz.TimeLimit <= 0 {
		return nil // Untimed quiz
	}

	var reconcile timer.ReconcileFunc
	if !c.degraded {
		quizID, learnerID := c.session.QuizID, c.learnerID
		reconcile = func(ctx context.Context) (int, bool, error) {
			ls, err := c.ledger.GetAttempt(ctx, quizID, learnerID)
			if err != nil {
				return 0, false, err
			}
			return ls.RemainingSeconds, ls.IsExpired, nil
		}
	}

	opts := c.timerOpts
	opts.Logger = c.logger
	c.clock = timer.New(reconcile, c.handleExpiry, opts)
	return c.clock.Start(state.RemainingSeconds)
}

// ===== ANSWER INPUT ADAPTERS =====

// AnswerChoice records a single-choice selection in presented space. The
// answer key for this type ships pre-shuffled, so the value is stored as-is;
// the shuffle map must still exist or the question cannot be scored at all.
func (c *Controller) AnswerChoice(ctx context.Context, questionID string, presentedIndex int) error {
	q, err := c.interactable(questionID, models.SingleChoice)
	if err != nil {
		return err
	}
	if !c.codec.Has(questionID) {
		return fmt.Errorf("question %s: %w", questionID, engine.ErrShuffleMapMissing)
	}
	if presentedIndex < 0 || presentedIndex >= len(q.Choices) {
		return fmt.Errorf("choice index %d out of range [0,%d)", presentedIndex, len(q.Choices))
	}
	return c.record(ctx, questionID, models.ChoiceAnswer{Selected: presentedIndex})
}

func (c *Controller) AnswerBoolean(ctx context.Context, questionID string, value bool) error {
	if _, err := c.interactable(questionID, models.Boolean); err != nil {
		return err
	}
	return c.record(ctx, questionID, models.BooleanAnswer{Value: value})
}

// AnswerMatching records the learner's left-to-right pairings against the
// shuffled right-hand list.
func (c *Controller) AnswerMatching(ctx context.Context, questionID string, pairs []models.MatchPair) error {
	q, err := c.interactable(questionID, models.Matching)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		if p.Left < 0 || p.Left >= len(q.LeftItems) || p.Right < 0 || p.Right >= len(q.RightItems) {
			return fmt.Errorf("pairing %d->%d out of range", p.Left, p.Right)
		}
	}
	return c.record(ctx, questionID, models.MatchingAnswer{Pairs: pairs})
}

// AnswerOrdering records a reorder. The arrangement lists the presented
// slots in their new on-screen order; it is composed with the question's
// shuffle map so the stored value is always the canonical index sequence,
// never presentation-dependent.
func (c *Controller) AnswerOrdering(ctx context.Context, questionID string, arrangement []int) error {
	if _, err := c.interactable(questionID, models.Ordering); err != nil {
		return err
	}
	canonical, err := c.codec.CanonicalOrder(questionID, arrangement)
	if err != nil {
		return err
	}
	return c.record(ctx, questionID, models.OrderingAnswer{Order: canonical})
}

// OrderingArrangement decodes a stored ordering answer back into presented
// slots for redisplay on resume.
func (c *Controller) OrderingArrangement(questionID string) ([]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.answers.Get(questionID)
	if !ok {
		return nil, fmt.Errorf("question %s: %w", questionID, engine.ErrAttemptNotFound)
	}
	ordering, ok := rec.Value.(models.OrderingAnswer)
	if !ok {
		return nil, fmt.Errorf("question %s: %w", questionID, engine.ErrAnswerTypeMismatch)
	}
	return c.codec.PresentedOrder(questionID, ordering.Order)
}

func (c *Controller) interactable(questionID string, wantType models.QuestionType) (*models.Question, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.State != models.SessionActive {
		return nil, engine.ErrSessionNotActive
	}
	q := c.findQuestion(questionID)
	if q == nil {
		return nil, fmt.Errorf("question %s: %w", questionID, engine.ErrQuestionNotFound)
	}
	if q.Type != wantType {
		return nil, fmt.Errorf("question %s is %s: %w", questionID, q.Type, engine.ErrAnswerTypeMismatch)
	}
	return q, nil
}

func (c *Controller) record(ctx context.Context, questionID string, value models.AnswerValue) error {
	if err := c.answers.Put(questionID, value); err != nil {
		return err
	}
	c.autosave(ctx)
	return nil
}

// autosave pushes the current answers to the snapshot store without blocking
// interaction handling. Failures are absorbed; the snapshot is convenience,
// not the record of truth.
func (c *Controller) autosave(ctx context.Context) {
	if c.snapshots == nil {
		return
	}
	attemptID := c.session.AttemptID
	snapshot := c.answers.Snapshot()
	go func() {
		if err := c.snapshots.Save(context.WithoutCancel(ctx), attemptID, snapshot); err != nil {
			c.logger.Debug("Answer autosave failed", "attempt_id", attemptID, "error", err)
		}
	}()
}

func (c *Controller) findQuestion(questionID string) *models.Question {
	for i := range c.quiz.Questions {
		if c.quiz.Questions[i].ID == questionID {
			return &c.quiz.Questions[i]
		}
	}
	return nil
}

// ===== NAVIGATION =====

// Next moves to the following question. Pure index move: answer contents
// are untouched.
func (c *Controller) Next() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.goTo(c.current + 1)
}

func (c *Controller) Previous() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.goTo(c.current - 1)
}

func (c *Controller) GoTo(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.goTo(index)
}

func (c *Controller) goTo(index int) error {
	if c.quiz == nil {
		return engine.ErrSessionNotActive
	}
	if index < 0 || index >= len(c.quiz.Questions) {
		return fmt.Errorf("index %d: %w", index, engine.ErrQuestionIndexOutOfRange)
	}
	c.current = index
	c.visited[index] = true
	return nil
}

// ===== UI-OBSERVABLE STATE =====

// CurrentQuestion returns the question at the navigation cursor.
func (c *Controller) CurrentQuestion() (models.Question, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.quiz == nil || len(c.quiz.Questions) == 0 {
		return models.Question{}, engine.ErrSessionNotActive
	}
	return c.quiz.Questions[c.current], nil
}

// CurrentIndex returns the navigation cursor.
func (c *Controller) CurrentIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Progress returns the percentage of questions visited so far.
func (c *Controller) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.visited) == 0 {
		return 0
	}
	visited := 0
	for _, v := range c.visited {
		if v {
			visited++
		}
	}
	return float64(visited) / float64(len(c.visited)) * 100
}

// AnsweredCount returns how many questions currently have answers.
func (c *Controller) AnsweredCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.answers == nil {
		return 0
	}
	return c.answers.AnsweredCount()
}

// RemainingSeconds returns the live countdown, or -1 for untimed quizzes.
func (c *Controller) RemainingSeconds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingLocked()
}

func (c *Controller) remainingLocked() int {
	if c.clock == nil {
		return -1
	}
	return c.clock.Remaining()
}

// RemainingSecondsFormatted renders the countdown as MM:SS for display.
// Untimed quizzes render empty.
func (c *Controller) RemainingSecondsFormatted() string {
	remaining := c.RemainingSeconds()
	if remaining < 0 {
		return ""
	}
	return timer.FormatSeconds(remaining)
}

// IsTimeWarning reports whether 300 seconds or less remain.
func (c *Controller) IsTimeWarning() bool {
	remaining := c.RemainingSeconds()
	return remaining >= 0 && remaining <= TimeWarningSeconds
}

// Session returns a copy of the attempt session with the live countdown.
func (c *Controller) Session() models.AttemptSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if remaining := c.remainingLocked(); remaining >= 0 {
		s.RemainingSeconds = remaining
	}
	return s
}

// Quiz returns the immutable quiz definition for this attempt.
func (c *Controller) Quiz() *models.QuizDefinition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quiz
}

// Degraded reports whether the session runs on a local-only timer because
// the ledger was unreachable at start.
func (c *Controller) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}

// Close tears the session down: the tick loop stops and any in-flight call
// is abandoned. The server-side attempt record survives, enabling resume.
func (c *Controller) Close() {
	c.mu.Lock()
	clock := c.clock
	attemptID := c.session.AttemptID
	c.mu.Unlock()

	if clock != nil {
		clock.Stop()
	}
	c.logger.Info("Attempt session closed", "attempt_id", attemptID)
}

func (c *Controller) publish(ctx context.Context, eventType events.EventType, data map[string]interface{}) {
	if c.publisher == nil {
		return
	}
	event := events.NewAttemptEvent(eventType, c.session.AttemptID, c.session.QuizID, c.learnerID, data)
	if err := c.publisher.PublishAttemptEvent(context.WithoutCancel(ctx), event); err != nil {
		c.logger.Warn("Failed to publish attempt event", "event_type", eventType, "error", err)
	}
}
