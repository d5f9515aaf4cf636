package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/queryproctor/backend/internal/timing"
)

// Enrollment records that a candidate may take an assessment.
type Enrollment struct {
	ID           uuid.UUID  `json:"id"`
	AssessmentID uuid.UUID  `json:"assessment_id"`
	CandidateID  uuid.UUID  `json:"candidate_id"`
	CreatedAt    time.Time  `json:"created_at"`
	ArchivedAt   *time.Time `json:"archived_at,omitempty"`
}

// CandidateAssessment is one row of a candidate's assessment list.
type CandidateAssessment struct {
	EnrollmentID    uuid.UUID     `json:"enrollment_id"`
	AssessmentID    uuid.UUID     `json:"assessment_id"`
	Name            string        `json:"name"`
	ScheduledStart  *time.Time    `json:"scheduled_start"`
	EndTime         *time.Time    `json:"end_time"`
	DurationMinutes int           `json:"duration_minutes"`
	Status          timing.Status `json:"status"`
	Cancelled       bool          `json:"cancelled"`
	Submitted       bool          `json:"submitted"`
}
