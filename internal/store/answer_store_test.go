package store

import (
	"testing"

	"github.com/quizforge/attempt-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutLastWriteWins(t *testing.T) {
	s := NewAnswerStore()

	require.NoError(t, s.Put("q1", models.ChoiceAnswer{Selected: 0}))
	require.NoError(t, s.Put("q1", models.ChoiceAnswer{Selected: 2}))

	rec, ok := s.Get("q1")
	require.True(t, ok)
	assert.Equal(t, models.ChoiceAnswer{Selected: 2}, rec.Value)
	assert.Equal(t, 1, s.AnsweredCount())
}

func TestPutClearsStaleCorrectness(t *testing.T) {
	s := NewAnswerStore()
	require.NoError(t, s.Put("q1", models.BooleanAnswer{Value: true}))

	s.MergeScores([]models.QuestionScore{{QuestionID: "q1", IsCorrect: true}})
	rec, _ := s.Get("q1")
	require.NotNil(t, rec.IsCorrect)

	require.NoError(t, s.Put("q1", models.BooleanAnswer{Value: false}))
	rec, _ = s.Get("q1")
	assert.Nil(t, rec.IsCorrect)
}

func TestSnapshotPreservesInsertionOrder(t *testing.T) {
	s := NewAnswerStore()
	require.NoError(t, s.Put("q2", models.BooleanAnswer{Value: true}))
	require.NoError(t, s.Put("q1", models.ChoiceAnswer{Selected: 1}))
	require.NoError(t, s.Put("q2", models.BooleanAnswer{Value: false}))

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "q2", snap[0].QuestionID)
	assert.Equal(t, "q1", snap[1].QuestionID)
}

func TestFreezeBlocksWrites(t *testing.T) {
	s := NewAnswerStore()
	require.NoError(t, s.Put("q1", models.BooleanAnswer{Value: true}))

	s.Freeze()
	err := s.Put("q2", models.BooleanAnswer{Value: false})
	assert.ErrorIs(t, err, ErrFrozen)
	assert.Equal(t, 1, s.AnsweredCount())

	// Merging score flags still works on a frozen store.
	s.MergeScores([]models.QuestionScore{{QuestionID: "q1", IsCorrect: true}})
	rec, _ := s.Get("q1")
	require.NotNil(t, rec.IsCorrect)
	assert.True(t, *rec.IsCorrect)
}

func TestRestoreAndReset(t *testing.T) {
	s := NewAnswerStore()
	require.NoError(t, s.Restore([]models.AnswerRecord{
		{QuestionID: "q1", Value: models.OrderingAnswer{Order: []int{1, 0}}},
		{QuestionID: "q2", Value: models.BooleanAnswer{Value: true}},
	}))
	assert.Equal(t, 2, s.AnsweredCount())

	rec, ok := s.Get("q1")
	require.True(t, ok)
	assert.Equal(t, models.OrderingAnswer{Order: []int{1, 0}}, rec.Value)

	s.Reset()
	assert.Equal(t, 0, s.AnsweredCount())
	_, ok = s.Get("q1")
	assert.False(t, ok)

	// Reset unfreezes.
	s.Freeze()
	s.Reset()
	assert.NoError(t, s.Put("q1", models.BooleanAnswer{Value: true}))
}
