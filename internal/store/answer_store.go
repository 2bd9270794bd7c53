// Package store holds in-progress answers for one attempt, keyed by question
// ID, independent of question type.
package store

import (
	"errors"
	"sync"

	"github.com/quizforge/attempt-engine/internal/models"
)

var ErrFrozen = errors.New("answer store is frozen")

// AnswerStore maps question IDs to the learner's current answer. Last write
// wins; records are created on first interaction and mutated on every
// subsequent one. A single session controller owns the store, but the timer
// goroutine reads counts concurrently, so access is guarded.
type AnswerStore struct {
	mu      sync.RWMutex
	records map[string]*models.AnswerRecord
	order   []string // Question IDs in insertion order, for stable snapshots
	frozen  bool
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{
		records: make(map[string]*models.AnswerRecord),
	}
}

// Put records the learner's answer for a question, replacing any previous
// value. Fails once the store is frozen for submission.
func (s *AnswerStore) Put(questionID string, value models.AnswerValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return ErrFrozen
	}

	if rec, ok := s.records[questionID]; ok {
		rec.Value = value
		rec.IsCorrect = nil
		return nil
	}

	s.records[questionID] = &models.AnswerRecord{
		QuestionID: questionID,
		Value:      value,
	}
	s.order = append(s.order, questionID)
	return nil
}

// Get returns a copy of the record for the question, if any.
func (s *AnswerStore) Get(questionID string) (models.AnswerRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[questionID]
	if !ok {
		return models.AnswerRecord{}, false
	}
	return *rec, true
}

// AnsweredCount returns how many questions currently have an answer.
func (s *AnswerStore) AnsweredCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Snapshot returns the current records in insertion order.
func (s *AnswerStore) Snapshot() []models.AnswerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.AnswerRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.records[id])
	}
	return out
}

// Restore loads previously saved records, e.g. from the autosave snapshot
// when a session resumes. Existing entries for the same question are
// replaced.
func (s *AnswerStore) Restore(records []models.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return ErrFrozen
	}

	for i := range records {
		rec := records[i]
		if _, ok := s.records[rec.QuestionID]; !ok {
			s.order = append(s.order, rec.QuestionID)
		}
		s.records[rec.QuestionID] = &rec
	}
	return nil
}

// Freeze blocks all further writes. Called once submission begins.
func (s *AnswerStore) Freeze() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen = true
}

// MergeScores copies IsCorrect flags from a score report back into the
// matching records for display. Works on a frozen store.
func (s *AnswerStore) MergeScores(perQuestion []models.QuestionScore) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, qs := range perQuestion {
		if rec, ok := s.records[qs.QuestionID]; ok {
			isCorrect := qs.IsCorrect
			rec.IsCorrect = &isCorrect
		}
	}
}

// Reset clears every record and unfreezes the store, for attempt resets.
func (s *AnswerStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*models.AnswerRecord)
	s.order = nil
	s.frozen = false
}
