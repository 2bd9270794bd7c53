package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizforge/attempt-engine/internal/export"
	"github.com/quizforge/attempt-engine/internal/session"
	"github.com/quizforge/attempt-engine/internal/utils"
)

type HandlerManager struct {
	attemptHandler *AttemptHandler
}

func NewHandlerManager(
	manager *session.Manager,
	records AttemptRecords,
	exporter *export.ResultsExporter,
	validator *utils.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		attemptHandler: NewAttemptHandler(manager, records, exporter, validator, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// Health check endpoint
	router.GET("/health", HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		attempts := v1.Group("/attempts")
		{
			attempts.POST("", hm.attemptHandler.StartAttempt)
			attempts.GET("/:quiz_id/session", hm.attemptHandler.GetSession)
			attempts.DELETE("/:quiz_id/session", hm.attemptHandler.CloseSession)
			attempts.GET("/:quiz_id/questions/current", hm.attemptHandler.GetCurrentQuestion)
			attempts.POST("/:quiz_id/answers", hm.attemptHandler.Answer)
			attempts.POST("/:quiz_id/navigate", hm.attemptHandler.Navigate)
			attempts.POST("/:quiz_id/submit", hm.attemptHandler.Submit)
		}

		records := v1.Group("/records")
		{
			records.GET("/:attempt_id", hm.attemptHandler.GetReport)
			records.GET("/:attempt_id/export", hm.attemptHandler.ExportReport)
		}

		quizzes := v1.Group("/quizzes")
		{
			quizzes.GET("/:quiz_id/results/export", hm.attemptHandler.ExportQuizResults)
		}
	}
}

// HealthCheck returns service health status
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "attempt-engine",
	})
}
