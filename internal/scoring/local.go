package scoring

import (
	"github.com/quizforge/attempt-engine/internal/models"
)

// LocalScorer runs every question validator over an attempt's answers. It is
// the degraded path used when the remote scorer is unreachable, so the
// produced ScoreResult is always flagged non-authoritative.
type LocalScorer struct {
	scorer *Scorer
}

func NewLocalScorer() *LocalScorer {
	return &LocalScorer{scorer: NewScorer()}
}

// ScoreAttempt scores all questions of a quiz against the given answer
// records. Unanswered questions score zero; unscorable questions (missing
// shuffle map or answer key) fail closed and also score zero rather than
// assuming an identity mapping.
func (l *LocalScorer) ScoreAttempt(quiz *models.QuizDefinition, answers []models.AnswerRecord) *models.ScoreResult {
	byQuestion := make(map[string]models.AnswerValue, len(answers))
	for _, rec := range answers {
		byQuestion[rec.QuestionID] = rec.Value
	}

	result := &models.ScoreResult{
		TotalScore:    quiz.FullScore,
		PerQuestion:   make([]models.QuestionScore, 0, len(quiz.Questions)),
		Authoritative: false,
	}

	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		outcome, err := l.scorer.Score(q, byQuestion[q.ID])
		if err != nil {
			// Fail closed: unscorable or malformed questions earn nothing.
			outcome = Outcome{}
		}

		result.Score += outcome.Points
		result.PerQuestion = append(result.PerQuestion, models.QuestionScore{
			QuestionID:    q.ID,
			IsCorrect:     outcome.IsCorrect,
			Points:        outcome.Points,
			Authoritative: outcome.Authoritative,
		})
	}

	return result
}
