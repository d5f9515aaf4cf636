// Command seed-demo creates a demo admin, a small problem schema, one problem
// and an assessment with pending invitations, for trying the candidate flow
// locally.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/queryproctor/backend/internal/clock"
	"github.com/queryproctor/backend/internal/config"
	"github.com/queryproctor/backend/internal/database"
	"github.com/queryproctor/backend/internal/grading"
	"github.com/queryproctor/backend/internal/logger"
	"github.com/queryproctor/backend/internal/model"
	"github.com/queryproctor/backend/internal/repository"
	"github.com/queryproctor/backend/internal/service"
	"github.com/queryproctor/backend/internal/timing"
)

const (
	demoSchema = "demo_shop"
	demoQuery  = `SELECT c.name, COUNT(o.id) AS orders
FROM customers c LEFT JOIN orders o ON o.customer_id = c.id
GROUP BY c.name ORDER BY c.name`
)

var demoSchemaDDL = []string{
	`CREATE SCHEMA IF NOT EXISTS ` + demoSchema,
	`CREATE TABLE IF NOT EXISTS ` + demoSchema + `.customers (id INT PRIMARY KEY, name TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS ` + demoSchema + `.orders (
		id INT PRIMARY KEY,
		customer_id INT NOT NULL REFERENCES ` + demoSchema + `.customers(id),
		total NUMERIC(10,2) NOT NULL)`,
	`INSERT INTO ` + demoSchema + `.customers VALUES (1, 'Ada'), (2, 'Brian'), (3, 'Chen') ON CONFLICT DO NOTHING`,
	`INSERT INTO ` + demoSchema + `.orders VALUES (1, 1, 20.00), (2, 1, 35.50), (3, 3, 12.25) ON CONFLICT DO NOTHING`,
}

func main() {
	email := flag.String("admin-email", "demo@queryproctor.test", "Demo admin email")
	password := flag.String("admin-password", "demo-password", "Demo admin password")
	startIn := flag.Duration("start-in", 5*time.Minute, "Delay until the assessment starts")
	duration := flag.Int("duration", 45, "Assessment duration in minutes")
	candidates := flag.Int("candidates", 3, "Number of demo invitations")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	clk := clock.System{}
	// Sending is left to the API, so these services run without Redis.
	authService := service.NewAuthService(cfg, nil)
	adminService := service.NewAdminService(repository.NewAdminRepository(pool))
	problemService := service.NewProblemService(repository.NewProblemRepository(pool))
	assessmentRepo := repository.NewAssessmentRepository(pool)
	assessmentService := service.NewAssessmentService(assessmentRepo, nil, clk, log)
	invitationService := service.NewInvitationService(
		repository.NewInvitationRepository(pool), assessmentService, assessmentRepo,
		authService, nil, clk, cfg, log,
	)

	// ─── Admin ─────────────────────────────────────────────────────────
	admin, err := adminService.GetByEmail(ctx, *email)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		hash, err := authService.HashPassword(*password)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to hash password")
		}
		admin = &model.Admin{Email: *email, Name: "Demo Admin", PasswordHash: hash}
		if err := adminService.Create(ctx, admin); err != nil {
			log.Fatal().Err(err).Msg("Failed to create admin")
		}
		fmt.Printf("Created admin %s\n", admin.Email)
	case err != nil:
		log.Fatal().Err(err).Msg("Failed to look up admin")
	default:
		fmt.Printf("Using existing admin %s\n", admin.Email)
	}

	// ─── Problem schema ────────────────────────────────────────────────
	err = database.WithTx(ctx, pool, func(tx pgx.Tx) error {
		for _, stmt := range demoSchemaDDL {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create demo schema")
	}

	// The expected result is whatever the reference query returns.
	expected, err := grading.NewExecutor(pool, cfg.GradingStatementTimeout).Run(ctx, demoSchema, demoQuery)
	if err != nil {
		log.Fatal().Err(err).Msg("Reference query failed")
	}

	problem, err := problemService.Create(ctx, admin.ID, &model.ProblemRequest{
		Name:           "Orders per customer",
		Description:    "List every customer with their number of orders, sorted by name. Columns: name, orders.",
		SchemaName:     demoSchema,
		ExpectedResult: expected,
		Ordered:        true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create problem")
	}

	// ─── Assessment ────────────────────────────────────────────────────
	start := clk.Now().Add(*startIn).Truncate(time.Minute)
	assessment, err := assessmentService.Create(ctx, admin.ID, &model.AssessmentRequest{
		Name:            "Demo assessment " + start.In(cfg.AppLocation).Format("2006-01-02 15:04"),
		ScheduledStart:  &start,
		DurationMinutes: timing.Minutes(*duration),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create assessment")
	}
	if _, err := assessmentService.SetProblems(ctx, admin.ID, assessment.ID, []uuid.UUID{problem.ID}); err != nil {
		log.Fatal().Err(err).Msg("Failed to attach problem")
	}

	invitees := make([]model.InviteeRequest, *candidates)
	for i := range invitees {
		invitees[i] = model.InviteeRequest{
			Email:               fmt.Sprintf("candidate%d@queryproctor.test", i+1),
			FullName:            fmt.Sprintf("Demo Candidate %d", i+1),
			MatriculationNumber: fmt.Sprintf("D%05d", i+1),
		}
	}
	added, err := invitationService.Add(ctx, admin.ID, assessment.ID, invitees)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to add invitations")
	}

	fmt.Printf("\nSeed completed!\n")
	fmt.Printf("  Assessment: %s (%s)\n", assessment.Name, assessment.ID)
	fmt.Printf("  Starts:     %s\n", timing.FormatInstant(start))
	fmt.Printf("  Invitees:   %d pending, send them from the admin API\n", len(added.Added))
}
