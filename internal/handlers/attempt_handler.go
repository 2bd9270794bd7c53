package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizforge/attempt-engine/internal/engine"
	"github.com/quizforge/attempt-engine/internal/export"
	"github.com/quizforge/attempt-engine/internal/models"
	"github.com/quizforge/attempt-engine/internal/session"
	"github.com/quizforge/attempt-engine/internal/utils"
)

// AttemptRecords is the slice of the ledger the HTTP layer reads for score
// reports and export.
type AttemptRecords interface {
	GetRecord(ctx context.Context, attemptID string) (*models.AttemptRecord, error)
	ListByQuiz(ctx context.Context, quizID string) ([]models.AttemptRecord, error)
}

// AttemptHandler exposes the attempt engine over HTTP: opening and resuming
// sessions, answering, navigating, the countdown surface, submission and
// score reports.
type AttemptHandler struct {
	BaseHandler
	manager   *session.Manager
	records   AttemptRecords
	exporter  *export.ResultsExporter
	validator *utils.Validator
}

func NewAttemptHandler(manager *session.Manager, records AttemptRecords, exporter *export.ResultsExporter, validator *utils.Validator, logger utils.Logger) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler: NewBaseHandler(logger),
		manager:     manager,
		records:     records,
		exporter:    exporter,
		validator:   validator,
	}
}

// ===== REQUEST / RESPONSE STRUCTURES =====

type StartAttemptRequest struct {
	QuizID    string `json:"quiz_id" validate:"required"`
	LearnerID string `json:"learner_id" validate:"required"`
}

type AnswerRequest struct {
	LearnerID  string `json:"learner_id" validate:"required"`
	QuestionID string `json:"question_id" validate:"required"`
	Type       string `json:"type" validate:"required,question_type"`

	// Exactly one of these carries the answer, matching Type.
	Selected    *int               `json:"selected,omitempty"`
	Value       *bool              `json:"value,omitempty"`
	Pairs       []models.MatchPair `json:"pairs,omitempty"`
	Arrangement []int              `json:"arrangement,omitempty"`
}

type NavigateRequest struct {
	LearnerID string `json:"learner_id" validate:"required"`
	Action    string `json:"action" validate:"required,oneof=next previous goto"`
	Index     *int   `json:"index,omitempty"`
}

type SubmitRequest struct {
	LearnerID string `json:"learner_id" validate:"required"`
	Confirmed bool   `json:"confirmed"`
}

// SessionResponse is the client-observable attempt state: the state machine,
// the countdown surface and progress counters.
type SessionResponse struct {
	Session          models.AttemptSession `json:"session"`
	QuizTitle        string                `json:"quiz_title"`
	QuestionCount    int                   `json:"question_count"`
	CurrentIndex     int                   `json:"current_index"`
	AnsweredCount    int                   `json:"answered_count"`
	Progress         float64               `json:"progress"`
	RemainingDisplay string                `json:"remaining_display"`
	TimeWarning      bool                  `json:"time_warning"`
	Degraded         bool                  `json:"degraded"`
}

func sessionResponse(ctrl *session.Controller) SessionResponse {
	quiz := ctrl.Quiz()
	return SessionResponse{
		Session:          ctrl.Session(),
		QuizTitle:        quiz.Title,
		QuestionCount:    len(quiz.Questions),
		CurrentIndex:     ctrl.CurrentIndex(),
		AnsweredCount:    ctrl.AnsweredCount(),
		Progress:         ctrl.Progress(),
		RemainingDisplay: ctrl.RemainingSecondsFormatted(),
		TimeWarning:      ctrl.IsTimeWarning(),
		Degraded:         ctrl.Degraded(),
	}
}

// ===== SESSION LIFECYCLE =====

// StartAttempt opens or resumes the learner's attempt for a quiz.
// POST /api/v1/attempts
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	var req StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.RespondWithEngineError(c, err)
		return
	}

	ctrl, err := h.manager.Open(c.Request.Context(), req.QuizID, req.LearnerID)
	if err != nil {
		h.RespondWithEngineError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusCreated, "Attempt session opened", sessionResponse(ctrl))
}

// GetSession returns the live session state including the countdown.
// GET /api/v1/attempts/:quiz_id/session?learner_id=...
func (h *AttemptHandler) GetSession(c *gin.Context) {
	ctrl, ok := h.liveSession(c)
	if !ok {
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Session state", sessionResponse(ctrl))
}

// CloseSession tears the live session down without submitting. The ledger
// record stays, so the learner can resume later.
// DELETE /api/v1/attempts/:quiz_id/session?learner_id=...
func (h *AttemptHandler) CloseSession(c *gin.Context) {
	learnerID, ok := h.learnerID(c)
	if !ok {
		return
	}
	h.manager.Close(c.Param("quiz_id"), learnerID)
	h.RespondWithSuccess(c, http.StatusOK, "Session closed", nil)
}

// ===== INTERACTION =====

// GetCurrentQuestion returns the question at the navigation cursor.
// GET /api/v1/attempts/:quiz_id/questions/current?learner_id=...
func (h *AttemptHandler) GetCurrentQuestion(c *gin.Context) {
	ctrl, ok := h.liveSession(c)
	if !ok {
		return
	}

	q, err := ctrl.CurrentQuestion()
	if err != nil {
		h.RespondWithEngineError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Current question", gin.H{
		"index":    ctrl.CurrentIndex(),
		"question": q,
	})
}

// Answer records one answer, routed by question type.
// POST /api/v1/attempts/:quiz_id/answers
func (h *AttemptHandler) Answer(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.RespondWithEngineError(c, err)
		return
	}

	ctrl, err := h.manager.Get(c.Param("quiz_id"), req.LearnerID)
	if err != nil {
		h.RespondWithEngineError(c, err)
		return
	}

	ctx := c.Request.Context()
	switch models.QuestionType(req.Type) {
	case models.SingleChoice:
		if req.Selected == nil {
			err = fmt.Errorf("selected is required: %w", engine.ErrAnswerTypeMismatch)
		} else {
			err = ctrl.AnswerChoice(ctx, req.QuestionID, *req.Selected)
		}
	case models.Boolean:
		if req.Value == nil {
			err = fmt.Errorf("value is required: %w", engine.ErrAnswerTypeMismatch)
		} else {
			err = ctrl.AnswerBoolean(ctx, req.QuestionID, *req.Value)
		}
	case models.Matching:
		err = ctrl.AnswerMatching(ctx, req.QuestionID, req.Pairs)
	case models.Ordering:
		err = ctrl.AnswerOrdering(ctx, req.QuestionID, req.Arrangement)
	default:
		err = fmt.Errorf("unknown question type %q: %w", req.Type, engine.ErrAnswerTypeMismatch)
	}
	if err != nil {
		h.RespondWithEngineError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Answer recorded", gin.H{
		"answered_count": ctrl.AnsweredCount(),
	})
}

// Navigate moves the question cursor.
// POST /api/v1/attempts/:quiz_id/navigate
func (h *AttemptHandler) Navigate(c *gin.Context) {
	var req NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.RespondWithEngineError(c, err)
		return
	}

	ctrl, err := h.manager.Get(c.Param("quiz_id"), req.LearnerID)
	if err != nil {
		h.RespondWithEngineError(c, err)
		return
	}

	switch req.Action {
	case "next":
		err = ctrl.Next()
	case "previous":
		err = ctrl.Previous()
	case "goto":
		if req.Index == nil {
			h.RespondWithError(c, http.StatusBadRequest, "index is required for goto", nil)
			return
		}
		err = ctrl.GoTo(*req.Index)
	}
	if err != nil {
		h.RespondWithEngineError(c, err)
		return
	}

	q, err := ctrl.CurrentQuestion()
	if err != nil {
		h.RespondWithEngineError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Moved", gin.H{
		"index":    ctrl.CurrentIndex(),
		"question": q,
	})
}

// ===== SUBMISSION AND REPORTS =====

// Submit finalizes the attempt and returns the score report. Incomplete
// attempts need confirmed=true, otherwise 428 is returned with the count of
// unanswered questions.
// POST /api/v1/attempts/:quiz_id/submit
func (h *AttemptHandler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.RespondWithEngineError(c, err)
		return
	}

	ctrl, err := h.manager.Get(c.Param("quiz_id"), req.LearnerID)
	if err != nil {
		h.RespondWithEngineError(c, err)
		return
	}

	result, err := ctrl.Submit(c.Request.Context(), req.Confirmed)
	if err != nil {
		h.RespondWithEngineError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Attempt submitted", gin.H{
		"score":         result.Score,
		"rounded_score": result.RoundedScore(),
		"total_score":   result.TotalScore,
		"correct_count": result.CorrectCount(),
		"per_question":  result.PerQuestion,
		"authoritative": result.Authoritative,
	})
}

// GetReport returns the stored terminal attempt record.
// GET /api/v1/records/:attempt_id
func (h *AttemptHandler) GetReport(c *gin.Context) {
	record, err := h.records.GetRecord(c.Request.Context(), c.Param("attempt_id"))
	if err != nil {
		h.RespondWithEngineError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Attempt record", record)
}

// ExportReport downloads one attempt's score report as a workbook.
// GET /api/v1/records/:attempt_id/export
func (h *AttemptHandler) ExportReport(c *gin.Context) {
	attemptID := c.Param("attempt_id")
	record, err := h.records.GetRecord(c.Request.Context(), attemptID)
	if err != nil {
		h.RespondWithEngineError(c, err)
		return
	}

	data, err := h.exporter.ExportAttemptReport(record, record.QuizID)
	if err != nil {
		h.RespondWithError(c, http.StatusInternalServerError, "Failed to export report", err)
		return
	}

	filename := fmt.Sprintf("attempt-%s.xlsx", attemptID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// ExportQuizResults downloads every attempt of a quiz as a workbook.
// GET /api/v1/quizzes/:quiz_id/results/export
func (h *AttemptHandler) ExportQuizResults(c *gin.Context) {
	quizID := c.Param("quiz_id")
	records, err := h.records.ListByQuiz(c.Request.Context(), quizID)
	if err != nil {
		h.RespondWithEngineError(c, err)
		return
	}

	data, err := h.exporter.ExportQuizResults(quizID, records)
	if err != nil {
		h.RespondWithError(c, http.StatusInternalServerError, "Failed to export results", err)
		return
	}

	filename := fmt.Sprintf("quiz-%s-results.xlsx", quizID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// ===== HELPERS =====

func (h *AttemptHandler) learnerID(c *gin.Context) (string, bool) {
	learnerID := c.Query("learner_id")
	if learnerID == "" {
		h.RespondWithError(c, http.StatusBadRequest, "learner_id is required", nil)
		return "", false
	}
	return learnerID, true
}

func (h *AttemptHandler) liveSession(c *gin.Context) (*session.Controller, bool) {
	learnerID, ok := h.learnerID(c)
	if !ok {
		return nil, false
	}
	ctrl, err := h.manager.Get(c.Param("quiz_id"), learnerID)
	if err != nil {
		h.RespondWithEngineError(c, err)
		return nil, false
	}
	return ctrl, true
}
