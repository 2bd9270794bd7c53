package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/quizforge/attempt-engine/internal/engine"
	"github.com/quizforge/attempt-engine/internal/models"
)

// HTTPScorer submits frozen answers to the authoritative remote scorer over
// HTTP. It implements engine.AuthoritativeScorer.
type HTTPScorer struct {
	baseURL string
	client  *http.Client
}

func NewHTTPScorer(baseURL string) *HTTPScorer {
	return &HTTPScorer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type submitRequest struct {
	QuizID      string                `json:"quiz_id"`
	Answers     []models.AnswerRecord `json:"answers"`
	ShuffleMaps map[string][]int      `json:"shuffle_maps"`
}

// Submit posts the answers plus shuffle maps and decodes the score report.
// Any transport or non-2xx failure is wrapped as ErrScorerUnavailable so the
// orchestrator can fall back to local scoring.
func (s *HTTPScorer) Submit(ctx context.Context, quizID string, answers []models.AnswerRecord, shuffleMaps map[string][]int) (*models.ScoreResult, error) {
	body, err := json.Marshal(submitRequest{
		QuizID:      quizID,
		Answers:     answers,
		ShuffleMaps: shuffleMaps,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal submission: %w", err)
	}

	url := fmt.Sprintf("%s/quizzes/%s/score", s.baseURL, quizID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrScorerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", engine.ErrScorerUnavailable, resp.StatusCode)
	}

	var result models.ScoreResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: invalid response body: %v", engine.ErrScorerUnavailable, err)
	}

	result.Authoritative = true
	return &result, nil
}
