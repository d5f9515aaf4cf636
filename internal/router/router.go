package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/queryproctor/backend/internal/config"
	"github.com/queryproctor/backend/internal/handler"
	"github.com/queryproctor/backend/internal/middleware"
	"github.com/queryproctor/backend/internal/response"
	"github.com/queryproctor/backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	Candidate  *handler.CandidateHandler
	Problem    *handler.ProblemHandler
	Assessment *handler.AssessmentHandler
	Invitation *handler.InvitationHandler
	Submission *handler.SubmissionHandler
	WS         *handler.WSHandler
	System     *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds the background cleanup of the rate limiter.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	gateService *service.GateService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", handlers.System.Metrics)

	// Login and invitation links are the only unauthenticated entry points.
	authLimiter := middleware.NewRateLimiter(ctx, cfg.AuthRateLimitPerMinute, time.Minute)

	// ─── 0. Public Group (No Auth) ─────────────────────────────────────
	publicAPI := router.Group("/api/v1/public")
	{
		publicAPI.GET("/time", middleware.NoStore(), handlers.System.ServerTime)

		invitations := publicAPI.Group("/invitations/:token")
		invitations.Use(authLimiter.Middleware(), middleware.NoStore())
		{
			invitations.GET("", handlers.Invitation.GetInvitation)
			invitations.POST("/accept", handlers.Invitation.AcceptInvitation)
		}
	}

	// ─── 1. Auth Group ─────────────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/admin/login", authLimiter.Middleware(), handlers.Auth.AdminLogin)
		auth.GET("/admin/me", middleware.RequireAdminJWT(authService), handlers.Auth.GetAdminProfile)

		candidateAuth := []gin.HandlerFunc{
			middleware.RequireCandidateJWT(authService),
			middleware.CheckCandidateSession(authService),
		}
		auth.GET("/candidate/me", append(candidateAuth, handlers.Auth.GetCandidateProfile)...)
		auth.POST("/candidate/logout", append(candidateAuth, handlers.Auth.CandidateLogout)...)
	}

	// ─── 2. Candidate Group (JWT + Single Session) ─────────────────────
	candidateAPI := router.Group("/api/v1/candidate")
	candidateAPI.Use(
		middleware.RequireCandidateJWT(authService),
		middleware.CheckCandidateSession(authService),
		middleware.NoStore(),
	)
	{
		candidateAPI.GET("/assessments", handlers.Candidate.ListAssessments)

		gated := candidateAPI.Group("/assessments/:id")
		gated.Use(middleware.AssessmentGate(gateService))
		{
			gated.GET("", handlers.Candidate.GetAssessment)
			gated.POST("/submissions", handlers.Candidate.Submit)
		}
	}

	// ─── 3. WebSocket Group (Candidate WS Auth) ────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireCandidateWSAuth(authService),
		middleware.CheckCandidateSession(authService),
	)
	{
		ws.GET("/candidate/assessments/:id/clock",
			middleware.AssessmentGate(gateService),
			handlers.WS.ClockStream,
		)
	}

	// ─── 4. Admin Group (JWT) ──────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		// Problem bank
		adminAPI.GET("/problems", handlers.Problem.ListProblems)
		adminAPI.POST("/problems", handlers.Problem.CreateProblem)
		adminAPI.GET("/problems/:id", handlers.Problem.GetProblem)
		adminAPI.PUT("/problems/:id", handlers.Problem.UpdateProblem)
		adminAPI.DELETE("/problems/:id", handlers.Problem.DeleteProblem)

		// Assessments
		adminAPI.GET("/assessments", handlers.Assessment.ListAssessments)
		adminAPI.POST("/assessments", handlers.Assessment.CreateAssessment)
		adminAPI.DELETE("/assessments", handlers.Assessment.DeleteAssessments)
		adminAPI.GET("/assessments/:id", handlers.Assessment.GetAssessment)
		adminAPI.PUT("/assessments/:id", handlers.Assessment.UpdateAssessment)
		adminAPI.POST("/assessments/:id/cancel", handlers.Assessment.CancelAssessment)
		adminAPI.PUT("/assessments/:id/problems", handlers.Assessment.SetAssessmentProblems)

		// Invitations
		adminAPI.GET("/assessments/:id/invitations", handlers.Invitation.ListInvitations)
		adminAPI.POST("/assessments/:id/invitations", handlers.Invitation.AddInvitations)
		adminAPI.POST("/assessments/:id/invitations/send", handlers.Invitation.SendInvitations)
		adminAPI.DELETE("/assessments/:id/invitations/:invitation_id", handlers.Invitation.RemoveInvitation)

		// Submissions
		adminAPI.GET("/assessments/:id/submissions", handlers.Submission.ListSubmissions)
		adminAPI.GET("/assessments/:id/submissions/export", handlers.Submission.ExportSubmissions)
	}

	return router
}
