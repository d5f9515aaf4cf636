package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/queryproctor/backend/internal/clock"
	"github.com/queryproctor/backend/internal/config"
	"github.com/queryproctor/backend/internal/database"
	"github.com/queryproctor/backend/internal/grading"
	"github.com/queryproctor/backend/internal/handler"
	"github.com/queryproctor/backend/internal/logger"
	"github.com/queryproctor/backend/internal/mailer"
	"github.com/queryproctor/backend/internal/metrics"
	"github.com/queryproctor/backend/internal/repository"
	"github.com/queryproctor/backend/internal/router"
	"github.com/queryproctor/backend/internal/service"
	"github.com/queryproctor/backend/internal/validator"
	"github.com/queryproctor/backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("timezone", cfg.AppLocation.String()).
		Msg("Starting QueryProctor Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()
	metrics.Register(prometheus.DefaultRegisterer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Time Authority ────────────────────────────────────────────────
	var clk clock.Clock = clock.System{}
	if len(cfg.NTSServers) > 0 {
		ntsClock, err := clock.NewNTS(cfg.NTSServers, log)
		if err != nil {
			log.Warn().Err(err).Msg("NTS unavailable, using system clock")
		} else {
			go ntsClock.Poll(ctx)
			clk = ntsClock
		}
	}

	// ─── Initialize Repositories ───────────────────────────────────────
	adminRepo := repository.NewAdminRepository(pool)
	candidateRepo := repository.NewCandidateRepository(pool)
	problemRepo := repository.NewProblemRepository(pool)
	assessmentRepo := repository.NewAssessmentRepository(pool)
	invitationRepo := repository.NewInvitationRepository(pool)
	enrollmentRepo := repository.NewEnrollmentRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	adminService := service.NewAdminService(adminRepo)
	gateService := service.NewGateService(enrollmentRepo, assessmentRepo, clk, log)
	problemService := service.NewProblemService(problemRepo)
	assessmentService := service.NewAssessmentService(assessmentRepo, rdb, clk, log)
	invitationService := service.NewInvitationService(
		invitationRepo, assessmentService, assessmentRepo, authService, rdb, clk, cfg, log,
	)
	candidateService := service.NewCandidateService(candidateRepo, enrollmentRepo, assessmentRepo, clk)
	submissionService := service.NewSubmissionService(submissionRepo, assessmentService, gateService, rdb, cfg, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:       handler.NewAuthHandler(authService, candidateService, adminService),
		Candidate:  handler.NewCandidateHandler(candidateService, submissionService),
		Problem:    handler.NewProblemHandler(problemService),
		Assessment: handler.NewAssessmentHandler(assessmentService),
		Invitation: handler.NewInvitationHandler(invitationService),
		Submission: handler.NewSubmissionHandler(submissionService),
		WS:         handler.NewWSHandler(gateService, cfg.ClockStreamInterval, log, cfg.AllowedOrigins),
		System:     handler.NewSystemHandler(pool, rdb, clk, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	mailWorker := worker.NewMailWorker(mailer.New(cfg, log), rdb, cfg.AppLocation, log)
	gradingWorker := worker.NewGradingWorker(
		submissionRepo, problemRepo,
		grading.NewExecutor(pool, cfg.GradingStatementTimeout),
		rdb, log,
	)

	for _, start := range []func(context.Context){mailWorker.Start, gradingWorker.Start} {
		workers.Add(1)
		go func(start func(context.Context)) {
			defer workers.Done()
			start(workerCtx)
		}(start)
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, gateService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = logger.TimeFormat
}
