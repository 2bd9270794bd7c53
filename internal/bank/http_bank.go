// Package bank provides clients for the question bank, the external system
// that owns quiz definitions and pre-shuffled question sets.
package bank

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/quizforge/attempt-engine/internal/engine"
	"github.com/quizforge/attempt-engine/internal/models"
)

// HTTPBank fetches quizzes from the question bank service. It implements
// engine.QuestionBankProvider. Questions arrive already shuffled, each
// carrying its shuffle map.
type HTTPBank struct {
	baseURL string
	client  *http.Client
}

func NewHTTPBank(baseURL string) *HTTPBank {
	return &HTTPBank{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (b *HTTPBank) GetMetadata(ctx context.Context, quizID string) (*models.QuizMetadata, error) {
	var meta models.QuizMetadata
	url := fmt.Sprintf("%s/quizzes/%s", b.baseURL, quizID)
	if err := b.getJSON(ctx, url, quizID, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (b *HTTPBank) GetQuestions(ctx context.Context, quizID string) ([]models.Question, error) {
	var questions []models.Question
	url := fmt.Sprintf("%s/quizzes/%s/questions", b.baseURL, quizID)
	if err := b.getJSON(ctx, url, quizID, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

func (b *HTTPBank) getJSON(ctx context.Context, url, quizID string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("question bank unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("quiz %s: %w", quizID, engine.ErrQuizNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("question bank returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode question bank response: %w", err)
	}
	return nil
}
