package models

import (
	"encoding/json"
	"fmt"
)

// AnswerValue is the tagged union of learner answer payloads, one variant per
// question type. Exhaustive switches over the concrete types keep the scorer
// from silently mishandling a shape.
type AnswerValue interface {
	Kind() QuestionType
}

// ChoiceAnswer holds the selected choice index in presented space.
type ChoiceAnswer struct {
	Selected int `json:"selected"`
}

func (ChoiceAnswer) Kind() QuestionType { return SingleChoice }

type BooleanAnswer struct {
	Value bool `json:"value"`
}

func (BooleanAnswer) Kind() QuestionType { return Boolean }

// MatchingAnswer holds the learner's left->right pairings.
type MatchingAnswer struct {
	Pairs []MatchPair `json:"pairs"`
}

func (MatchingAnswer) Kind() QuestionType { return Matching }

// OrderingAnswer holds the learner's final order as canonical indices. The
// session controller composes the presented arrangement with the question's
// shuffle map before the value ever reaches the store, so this is never
// presentation-dependent.
type OrderingAnswer struct {
	Order []int `json:"order"`
}

func (OrderingAnswer) Kind() QuestionType { return Ordering }

// AnswerRecord is the learner's current answer for one question. IsCorrect is
// populated only after scoring returns.
type AnswerRecord struct {
	QuestionID string      `json:"question_id"`
	Value      AnswerValue `json:"value"`
	IsCorrect  *bool       `json:"is_correct,omitempty"`
}

// answerEnvelope is the wire shape of an AnswerRecord: the value is wrapped
// with its type tag so the union survives JSON round trips (snapshot cache,
// ledger JSONB, HTTP API).
type answerEnvelope struct {
	QuestionID string          `json:"question_id"`
	Type       QuestionType    `json:"type"`
	Value      json.RawMessage `json:"value"`
	IsCorrect  *bool           `json:"is_correct,omitempty"`
}

func (r AnswerRecord) MarshalJSON() ([]byte, error) {
	if r.Value == nil {
		return nil, fmt.Errorf("answer record %s has no value", r.QuestionID)
	}
	raw, err := json.Marshal(r.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal answer value: %w", err)
	}
	return json.Marshal(answerEnvelope{
		QuestionID: r.QuestionID,
		Type:       r.Value.Kind(),
		Value:      raw,
		IsCorrect:  r.IsCorrect,
	})
}

func (r *AnswerRecord) UnmarshalJSON(data []byte) error {
	var env answerEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	var value AnswerValue
	switch env.Type {
	case SingleChoice:
		var v ChoiceAnswer
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return err
		}
		value = v
	case Boolean:
		var v BooleanAnswer
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return err
		}
		value = v
	case Matching:
		var v MatchingAnswer
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return err
		}
		value = v
	case Ordering:
		var v OrderingAnswer
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return err
		}
		value = v
	default:
		return fmt.Errorf("unknown answer type %q", env.Type)
	}

	r.QuestionID = env.QuestionID
	r.Value = value
	r.IsCorrect = env.IsCorrect
	return nil
}
