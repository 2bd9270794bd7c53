package models

type QuestionType string

const (
	SingleChoice QuestionType = "single_choice"
	Boolean      QuestionType = "boolean"
	Matching     QuestionType = "matching"
	Ordering     QuestionType = "ordering"
)

// RequiresShuffleMap reports whether a question type ships a presentation
// permutation from the question bank.
func (t QuestionType) RequiresShuffleMap() bool {
	return t == SingleChoice || t == Ordering
}

// QuizDefinition is the immutable description of a quiz once an attempt has
// started. Questions arrive from the question bank already shuffled.
type QuizDefinition struct {
	ID        string     `json:"id" validate:"required"`
	Title     string     `json:"title" validate:"required,min=1,max=200"`
	Questions []Question `json:"questions" validate:"required,min=1,dive"`
	FullScore float64    `json:"full_score" validate:"min=0"`
	TimeLimit int        `json:"time_limit"` // Minutes, 0 means untimed
}

// QuizMetadata is the lightweight quiz header returned by the question bank
// without the question payloads.
type QuizMetadata struct {
	Title       string  `json:"title"`
	FullScore   float64 `json:"full_score"`
	TimeLimit   int     `json:"time_limit"` // Minutes
	MaxAttempts int     `json:"max_attempts"`
}

// MatchPair is one left->right pairing of a matching question. Indices are in
// the spaces the learner sees: Left into the left-hand list, Right into the
// shuffled right-hand list.
type MatchPair struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

// Question is owned by the question bank and read-only to this engine.
//
// ShuffleMap is the presentation permutation for single_choice and ordering
// questions: ShuffleMap[presentedIndex] = canonicalIndex. CorrectIndex for
// single_choice is already in presented space (the bank shuffles the answer
// key together with the choices). CorrectOrder for ordering is in canonical
// space; when nil the items are authored in correct order, i.e. [0..n-1].
type Question struct {
	ID     string       `json:"id" validate:"required"`
	Type   QuestionType `json:"type" validate:"required,question_type"`
	Prompt string       `json:"prompt" validate:"required"`
	Points float64      `json:"points" validate:"min=0"`

	// single_choice
	Choices      []string `json:"choices,omitempty"`
	CorrectIndex *int     `json:"correct_index,omitempty"` // Presented space

	// boolean
	CorrectAnswer *bool `json:"correct_answer,omitempty"`

	// matching
	LeftItems  []string    `json:"left_items,omitempty"`
	RightItems []string    `json:"right_items,omitempty"` // Shuffled presentation
	Pairs      []MatchPair `json:"pairs,omitempty"`        // Original counterparts, server-side only

	// ordering
	Items        []string `json:"items,omitempty"` // Presented order
	CorrectOrder []int    `json:"correct_order,omitempty"`

	ShuffleMap []int `json:"shuffle_map,omitempty"`
}

// CanonicalCorrectOrder resolves the answer key of an ordering question,
// defaulting to the identity order when the bank ships items already sorted.
func (q *Question) CanonicalCorrectOrder() []int {
	if len(q.CorrectOrder) > 0 {
		return q.CorrectOrder
	}
	order := make([]int, len(q.Items))
	for i := range order {
		order[i] = i
	}
	return order
}
