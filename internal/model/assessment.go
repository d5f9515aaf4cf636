package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/queryproctor/backend/internal/timing"
)

// Assessment is a scheduled, timed SQL test.
type Assessment struct {
	ID              uuid.UUID  `json:"id"`
	OwnerID         uuid.UUID  `json:"owner_id"`
	Name            string     `json:"name"`
	ScheduledStart  *time.Time `json:"scheduled_start"`
	DurationMinutes int        `json:"duration_minutes"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	// ArchivedAt set means the assessment was cancelled.
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
}

// Schedule returns the timing inputs of the assessment.
func (a *Assessment) Schedule() timing.Schedule {
	return timing.Schedule{
		ScheduledStart:  a.ScheduledStart,
		DurationMinutes: a.DurationMinutes,
	}
}

// Cancelled reports whether the assessment has been archived.
func (a *Assessment) Cancelled() bool {
	return a.ArchivedAt != nil
}

// AssessmentSummary is an assessment with list counters.
type AssessmentSummary struct {
	Assessment
	Status          timing.Status `json:"status"`
	ProblemCount    int           `json:"problem_count"`
	InvitationCount int           `json:"invitation_count"`
	CandidateCount  int           `json:"candidate_count"`
}

// AssessmentRequest is the settings form for an assessment.
type AssessmentRequest struct {
	Name            string         `json:"name" binding:"required,min=1,max=255"`
	ScheduledStart  *time.Time     `json:"scheduled_start"`
	DurationMinutes timing.Minutes `json:"duration_minutes" binding:"required,min=1,max=480"`
}

// DeleteAssessmentsRequest selects assessments for bulk deletion.
type DeleteAssessmentsRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required,min=1,max=100"`
}

// SetAssessmentProblemsRequest replaces the ordered problem list.
type SetAssessmentProblemsRequest struct {
	ProblemIDs []uuid.UUID `json:"problem_ids" binding:"max=100"`
}

// AssessmentProblem links a problem to an assessment at a position.
type AssessmentProblem struct {
	ID           uuid.UUID  `json:"id"`
	AssessmentID uuid.UUID  `json:"assessment_id"`
	ProblemID    uuid.UUID  `json:"problem_id"`
	Position     int        `json:"position"`
	ArchivedAt   *time.Time `json:"archived_at,omitempty"`
}
