package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quizforge/attempt-engine/internal/bank"
	"github.com/quizforge/attempt-engine/internal/cache"
	"github.com/quizforge/attempt-engine/internal/config"
	"github.com/quizforge/attempt-engine/internal/export"
	"github.com/quizforge/attempt-engine/internal/handlers"
	"github.com/quizforge/attempt-engine/internal/ledger"
	"github.com/quizforge/attempt-engine/internal/scoring"
	"github.com/quizforge/attempt-engine/internal/session"
	"github.com/quizforge/attempt-engine/internal/utils"
	"github.com/quizforge/attempt-engine/pkg"
)

const reapInterval = 5 * time.Minute

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var logger utils.Logger
	if cfg.Environment == "production" {
		logger = utils.NewDefaultLogger()
	} else {
		logger = utils.NewDevelopmentLogger()
	}
	logger.Info("Starting attempt engine", "port", cfg.Port, "environment", cfg.Environment)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.LogError(err, "Failed to connect to database")
		os.Exit(1)
	}

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.LogError(err, "Failed to connect to Redis")
		os.Exit(1)
	}
	defer redisClient.Close()

	publisher, err := cfg.Events.CreateEventPublisher(utils.ToSlogLogger(logger))
	if err != nil {
		logger.LogError(err, "Failed to create event publisher")
		os.Exit(1)
	}
	defer publisher.Close()

	// Collaborators: question bank and scorer are remote services, the
	// ledger and snapshot cache are owned here.
	questionBank := bank.NewHTTPBank(cfg.QuestionBankURL)
	scorer := scoring.NewHTTPScorer(cfg.ScorerURL)
	attemptLedger := ledger.NewGormLedger(db, questionBank, logger)
	snapshots := cache.NewRedisSnapshotStore(redisClient, cfg.SnapshotTTL, logger)

	manager := session.NewManager(session.Config{
		Bank:      questionBank,
		Ledger:    attemptLedger,
		Scorer:    scorer,
		Snapshots: snapshots,
		Publisher: publisher,
		Logger:    logger,
	})

	// Background sweeps: drop finished sessions and close timed-out ledger
	// rows whose learners never came back.
	sweepCtx, stopSweeps := context.WithCancel(context.Background())
	go runSweeps(sweepCtx, manager, attemptLedger, logger)

	validator := utils.NewValidator()
	exporter := export.NewResultsExporter(logger)
	handlerManager := handlers.NewHandlerManager(manager, attemptLedger, exporter, validator, logger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(logger))
	handlerManager.SetupRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.LogError(err, "Server error")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("Shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.LogError(err, "HTTP server shutdown error")
	}

	stopSweeps()
	logger.Info("Shutdown complete")
}

func runSweeps(ctx context.Context, manager *session.Manager, attemptLedger *ledger.GormLedger, logger utils.Logger) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if reaped := manager.Reap(); reaped > 0 {
				logger.Debug("Reaped finished sessions", "count", reaped)
			}
			if _, err := attemptLedger.CloseExpiredAttempts(ctx); err != nil {
				logger.Warn("Expired attempt sweep failed", "error", err)
			}
		}
	}
}
