package models

import "math"

// QuestionScore is the per-question line of a score report. Authoritative is
// false when the verdict is an approximation, e.g. a matching question scored
// locally without the unshuffled pairing only the server retains.
type QuestionScore struct {
	QuestionID    string  `json:"question_id"`
	IsCorrect     bool    `json:"is_correct"`
	Points        float64 `json:"points"`
	Authoritative bool    `json:"authoritative"`
}

// ScoreResult is produced once per attempt and never mutated afterward.
// Authoritative is false when the remote scorer was unreachable and the
// result came from the local fallback validators.
type ScoreResult struct {
	Score         float64         `json:"score"`
	TotalScore    float64         `json:"total_score"`
	PerQuestion   []QuestionScore `json:"per_question"`
	Authoritative bool            `json:"authoritative"`
}

// RoundedScore rounds to 2 decimal places for display. Intermediate sums are
// never rounded.
func (r *ScoreResult) RoundedScore() float64 {
	return math.Round(r.Score*100) / 100
}

// CorrectCount returns how many questions scored correct.
func (r *ScoreResult) CorrectCount() int {
	n := 0
	for _, q := range r.PerQuestion {
		if q.IsCorrect {
			n++
		}
	}
	return n
}
