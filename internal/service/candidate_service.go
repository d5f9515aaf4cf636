package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/queryproctor/backend/internal/clock"
	"github.com/queryproctor/backend/internal/model"
	"github.com/queryproctor/backend/internal/repository"
	"github.com/queryproctor/backend/internal/timing"
)

// AssessmentContent is what a candidate receives once the gate lets them in.
type AssessmentContent struct {
	GatePayload
	AssessmentID    uuid.UUID                   `json:"assessment_id"`
	DurationMinutes int                         `json:"duration_minutes"`
	Problems        []model.ProblemForCandidate `json:"problems"`
}

// CandidateService serves the candidate portal.
type CandidateService struct {
	candidateRepo  *repository.CandidateRepository
	enrollmentRepo *repository.EnrollmentRepository
	assessmentRepo *repository.AssessmentRepository
	clock          clock.Clock
}

// NewCandidateService creates a new CandidateService.
func NewCandidateService(
	candidateRepo *repository.CandidateRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	assessmentRepo *repository.AssessmentRepository,
	clk clock.Clock,
) *CandidateService {
	return &CandidateService{
		candidateRepo:  candidateRepo,
		enrollmentRepo: enrollmentRepo,
		assessmentRepo: assessmentRepo,
		clock:          clk,
	}
}

// GetByID retrieves a candidate profile.
func (s *CandidateService) GetByID(ctx context.Context, id uuid.UUID) (*model.Candidate, error) {
	c, err := s.candidateRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// Lobby lists the candidate's assessments with their status at the current
// server time.
func (s *CandidateService) Lobby(ctx context.Context, candidateID uuid.UUID) ([]model.CandidateAssessment, error) {
	assessments, rows, err := s.enrollmentRepo.ListByCandidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}

	now := s.clock.Now()
	lobby := make([]model.CandidateAssessment, len(rows))
	for i, a := range assessments {
		st := timing.Evaluate(now, a.Schedule())
		lobby[i] = rows[i]
		lobby[i].AssessmentID = a.ID
		lobby[i].Name = a.Name
		lobby[i].ScheduledStart = st.ScheduledStart
		lobby[i].EndTime = st.EndTime
		lobby[i].DurationMinutes = a.DurationMinutes
		lobby[i].Status = st.Status
		lobby[i].Cancelled = a.Cancelled()
	}
	return lobby, nil
}

// Content returns the problems of an assessment the gate has admitted the
// candidate to.
func (s *CandidateService) Content(ctx context.Context, d *GateDecision) (*AssessmentContent, error) {
	problems, err := s.assessmentRepo.ListProblems(ctx, d.Assessment.ID)
	if err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}
	return &AssessmentContent{
		GatePayload:     d.Payload(),
		AssessmentID:    d.Assessment.ID,
		DurationMinutes: d.Assessment.DurationMinutes,
		Problems:        problems,
	}, nil
}
