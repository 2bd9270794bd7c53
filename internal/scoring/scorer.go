// Package scoring implements the per-question-type validation rules and the
// local fallback scorer used when the authoritative remote scorer is
// unreachable.
package scoring

import (
	"errors"
	"fmt"

	"github.com/quizforge/attempt-engine/internal/models"
)

// ErrUnscorable marks a question that cannot be scored locally, e.g. a
// required shuffle map or answer key is missing. Scoring fails closed: the
// question is counted unscored, never guessed.
var ErrUnscorable = errors.New("question cannot be scored locally")

// Outcome is the result of scoring a single question.
type Outcome struct {
	IsCorrect bool
	Points    float64
	// Authoritative is false when only the server retains the data needed
	// for an exact verdict (matching questions: the unshuffled pairing).
	Authoritative bool
}

// Strategy scores one question variant.
type Strategy interface {
	Score(q *models.Question, answer models.AnswerValue) (Outcome, error)
}

// Scorer routes a question to the strategy for its type.
type Scorer struct {
	strategies map[models.QuestionType]Strategy
}

// NewScorer installs the built-in strategies, one per question variant.
func NewScorer() *Scorer {
	return &Scorer{
		strategies: map[models.QuestionType]Strategy{
			models.SingleChoice: singleChoiceStrategy{},
			models.Boolean:      booleanStrategy{},
			models.Matching:     matchingStrategy{},
			models.Ordering:     orderingStrategy{},
		},
	}
}

// Score validates an answer against its question. Points are all-or-nothing:
// the question's full point value on correct, zero otherwise.
func (s *Scorer) Score(q *models.Question, answer models.AnswerValue) (Outcome, error) {
	strategy, ok := s.strategies[q.Type]
	if !ok {
		return Outcome{}, fmt.Errorf("question %s: no strategy for type %q: %w", q.ID, q.Type, ErrUnscorable)
	}
	if answer != nil && answer.Kind() != q.Type {
		return Outcome{}, fmt.Errorf("question %s: answer type %q does not match question type %q", q.ID, answer.Kind(), q.Type)
	}
	return strategy.Score(q, answer)
}

// ===== STRATEGIES =====

type singleChoiceStrategy struct{}

// Score compares directly in presented space: the bank shuffles the answer
// key together with the choices, so no re-canonicalization happens here.
func (singleChoiceStrategy) Score(q *models.Question, answer models.AnswerValue) (Outcome, error) {
	if len(q.ShuffleMap) == 0 {
		return Outcome{}, fmt.Errorf("question %s: missing shuffle map: %w", q.ID, ErrUnscorable)
	}
	if q.CorrectIndex == nil {
		return Outcome{}, fmt.Errorf("question %s: missing correct index: %w", q.ID, ErrUnscorable)
	}

	a, ok := answer.(models.ChoiceAnswer)
	if !ok {
		return Outcome{Authoritative: true}, nil // Unanswered
	}

	out := Outcome{Authoritative: true}
	if a.Selected == *q.CorrectIndex {
		out.IsCorrect = true
		out.Points = q.Points
	}
	return out, nil
}

type booleanStrategy struct{}

func (booleanStrategy) Score(q *models.Question, answer models.AnswerValue) (Outcome, error) {
	if q.CorrectAnswer == nil {
		return Outcome{}, fmt.Errorf("question %s: missing correct answer: %w", q.ID, ErrUnscorable)
	}

	a, ok := answer.(models.BooleanAnswer)
	if !ok {
		return Outcome{Authoritative: true}, nil
	}

	out := Outcome{Authoritative: true}
	if a.Value == *q.CorrectAnswer {
		out.IsCorrect = true
		out.Points = q.Points
	}
	return out, nil
}

type matchingStrategy struct{}

// Score recomputes a best-effort match against whatever pairing data the
// bank shipped. Only the server retains the unshuffled original pairs, so
// the outcome is always flagged non-authoritative.
func (matchingStrategy) Score(q *models.Question, answer models.AnswerValue) (Outcome, error) {
	if len(q.Pairs) == 0 {
		return Outcome{}, fmt.Errorf("question %s: no pairing key available locally: %w", q.ID, ErrUnscorable)
	}

	a, ok := answer.(models.MatchingAnswer)
	if !ok {
		return Outcome{}, nil
	}

	// Last pairing per left item wins, mirroring the interaction model.
	chosen := make(map[int]int, len(a.Pairs))
	for _, p := range a.Pairs {
		chosen[p.Left] = p.Right
	}

	if len(chosen) != len(q.Pairs) {
		return Outcome{}, nil
	}
	for _, want := range q.Pairs {
		got, ok := chosen[want.Left]
		if !ok || got != want.Right {
			return Outcome{}, nil
		}
	}
	return Outcome{IsCorrect: true, Points: q.Points}, nil
}

type orderingStrategy struct{}

// Score compares the canonical-space order array, element by element. The
// stored answer is already canonical; the strategy never touches presented
// indices. Partial credit is not supported.
func (orderingStrategy) Score(q *models.Question, answer models.AnswerValue) (Outcome, error) {
	if len(q.ShuffleMap) == 0 {
		return Outcome{}, fmt.Errorf("question %s: missing shuffle map: %w", q.ID, ErrUnscorable)
	}

	a, ok := answer.(models.OrderingAnswer)
	if !ok {
		return Outcome{Authoritative: true}, nil
	}

	correct := q.CanonicalCorrectOrder()
	out := Outcome{Authoritative: true}
	if len(a.Order) != len(correct) {
		return out, nil
	}
	for i := range correct {
		if a.Order[i] != correct[i] {
			return out, nil
		}
	}
	out.IsCorrect = true
	out.Points = q.Points
	return out, nil
}
