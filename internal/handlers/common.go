package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizforge/attempt-engine/internal/engine"
	apperrors "github.com/quizforge/attempt-engine/internal/errors"
	"github.com/quizforge/attempt-engine/internal/utils"
)

// ===== COMMON RESPONSE STRUCTURES =====

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides common logging and response functionality
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// LogError logs error details with request context
func (h *BaseHandler) LogError(c *gin.Context, err error, message string, additionalFields ...interface{}) {
	fields := []interface{}{
		"request_id", c.GetHeader("X-Request-ID"),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	}
	fields = append(fields, additionalFields...)
	h.logger.LogError(err, message, fields...)
}

// RespondWithError sends a consistent error response and logs it
func (h *BaseHandler) RespondWithError(c *gin.Context, statusCode int, message string, err error, details ...interface{}) {
	errorResp := ErrorResponse{Message: message}
	if len(details) > 0 {
		errorResp.Details = details[0]
	}
	if err != nil {
		h.LogError(c, err, message, "status_code", statusCode)
	}
	c.JSON(statusCode, errorResp)
}

// RespondWithSuccess sends a consistent success response
func (h *BaseHandler) RespondWithSuccess(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, SuccessResponse{Message: message, Data: data})
}

// RespondWithEngineError maps an engine error onto the matching HTTP status.
func (h *BaseHandler) RespondWithEngineError(c *gin.Context, err error) {
	var validationErrs apperrors.ValidationErrors
	if errors.As(err, &validationErrs) {
		h.RespondWithError(c, http.StatusBadRequest, "Validation failed", err, validationErrs)
		return
	}

	h.RespondWithError(c, statusForError(err), err.Error(), err)
}

// statusForError translates the engine error taxonomy into HTTP statuses.
// Fatal entry errors and state conflicts map to 409, missing resources to
// 404, upstream outages to 502.
func statusForError(err error) int {
	switch {
	case engine.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrSubmitConfirmationRequired):
		return http.StatusPreconditionRequired
	case engine.IsConflict(err) || errors.Is(err, engine.ErrSubmitInProgress):
		return http.StatusConflict
	case errors.Is(err, engine.ErrSessionNotActive):
		return http.StatusConflict
	case errors.Is(err, engine.ErrLedgerUnavailable) || errors.Is(err, engine.ErrScorerUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, engine.ErrAnswerTypeMismatch),
		errors.Is(err, engine.ErrQuestionIndexOutOfRange),
		errors.Is(err, engine.ErrShuffleMapMissing):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
