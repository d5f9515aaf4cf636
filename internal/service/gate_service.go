package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/queryproctor/backend/internal/clock"
	"github.com/queryproctor/backend/internal/metrics"
	"github.com/queryproctor/backend/internal/model"
	"github.com/queryproctor/backend/internal/timing"
)

// Gate errors.
var (
	ErrNotEnrolled = errors.New("candidate is not enrolled in this assessment")
	ErrNotFound    = errors.New("not found")
)

// GateOutcome is the result of an access decision.
type GateOutcome string

const (
	GateAllowed    GateOutcome = "allowed"
	GateNotStarted GateOutcome = "not_started"
	GateEnded      GateOutcome = "ended"
	GateCancelled  GateOutcome = "cancelled"
)

// GateStage labels where a decision was taken. The middleware decides once
// per request, and the submit and stream stages re-check an admitted request.
type GateStage string

const (
	GateStageRequest GateStage = "request"
	GateStageSubmit  GateStage = "submit"
	GateStageStream  GateStage = "stream"
)

// EnrollmentReader point-reads a candidate's enrollment.
type EnrollmentReader interface {
	Get(ctx context.Context, assessmentID, candidateID uuid.UUID) (*model.Enrollment, error)
}

// AssessmentReader point-reads an assessment with its schedule.
type AssessmentReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error)
}

// GateDecision is the outcome of one access check. ServerTime is the single
// clock sample the decision was made with.
type GateDecision struct {
	Outcome    GateOutcome
	State      timing.State
	ServerTime time.Time
	Assessment *model.Assessment
	Enrollment *model.Enrollment
}

// Allowed reports whether the candidate may proceed.
func (d *GateDecision) Allowed() bool {
	return d.Outcome == GateAllowed
}

// GatePayload is the timing block returned with gated responses and rejections.
type GatePayload struct {
	Status         string     `json:"status"`
	AssessmentName string     `json:"assessment_name"`
	ScheduledStart *time.Time `json:"scheduled_start"`
	EndTime        *time.Time `json:"end_time"`
	ServerTime     string     `json:"server_time"`
}

// Payload renders the decision for clients.
func (d *GateDecision) Payload() GatePayload {
	status := string(d.State.Status)
	if d.Outcome == GateCancelled {
		status = string(GateCancelled)
	}
	return GatePayload{
		Status:         status,
		AssessmentName: d.Assessment.Name,
		ScheduledStart: d.State.ScheduledStart,
		EndTime:        d.State.EndTime,
		ServerTime:     timing.FormatInstant(d.ServerTime),
	}
}

// GateService decides whether a candidate may access an assessment right now.
// Nothing is cached: every call reads the schedule and samples the server clock.
type GateService struct {
	enrollments EnrollmentReader
	assessments AssessmentReader
	clock       clock.Clock
	log         zerolog.Logger
}

// NewGateService creates a new GateService.
func NewGateService(enrollments EnrollmentReader, assessments AssessmentReader, clk clock.Clock, log zerolog.Logger) *GateService {
	return &GateService{
		enrollments: enrollments,
		assessments: assessments,
		clock:       clk,
		log:         log.With().Str("component", "gate_service").Logger(),
	}
}

// Evaluate returns the access decision for a candidate and an assessment.
// A cancelled assessment is reported as cancelled even though cancellation
// also archives the enrollment.
func (s *GateService) Evaluate(ctx context.Context, assessmentID, candidateID uuid.UUID) (*GateDecision, error) {
	return s.EvaluateStage(ctx, GateStageRequest, assessmentID, candidateID)
}

// EvaluateStage is Evaluate with the decision counted under stage.
func (s *GateService) EvaluateStage(ctx context.Context, stage GateStage, assessmentID, candidateID uuid.UUID) (*GateDecision, error) {
	enrollment, err := s.enrollments.Get(ctx, assessmentID, candidateID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotEnrolled
		}
		return nil, fmt.Errorf("get enrollment: %w", err)
	}

	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get assessment: %w", err)
	}

	now := s.clock.Now()
	d := &GateDecision{
		State:      timing.Evaluate(now, assessment.Schedule()),
		ServerTime: now,
		Assessment: assessment,
		Enrollment: enrollment,
	}

	switch {
	case assessment.Cancelled():
		d.Outcome = GateCancelled
	case enrollment.ArchivedAt != nil:
		return nil, ErrNotEnrolled
	case d.State.Status == timing.StatusNotStarted:
		d.Outcome = GateNotStarted
	case d.State.Status == timing.StatusEnded:
		d.Outcome = GateEnded
	default:
		d.Outcome = GateAllowed
	}

	metrics.GateDecisions.WithLabelValues(string(d.Outcome), string(stage)).Inc()
	s.log.Debug().
		Str("assessment_id", assessmentID.String()).
		Str("candidate_id", candidateID.String()).
		Str("outcome", string(d.Outcome)).
		Str("stage", string(stage)).
		Time("server_time", now).
		Msg("Gate decision")

	return d, nil
}

// Now returns the server clock reading.
func (s *GateService) Now() time.Time {
	return s.clock.Now()
}
