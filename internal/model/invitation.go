package model

import (
	"time"

	"github.com/google/uuid"
)

// Invitation is a pending or sent invitation of a candidate to an assessment.
// Active means the invitation email was sent. ArchivedAt is set when the
// assessment is cancelled.
type Invitation struct {
	ID                  uuid.UUID  `json:"id"`
	AssessmentID        uuid.UUID  `json:"assessment_id"`
	Email               string     `json:"email"`
	FullName            string     `json:"full_name"`
	MatriculationNumber string     `json:"matriculation_number"`
	Token               *string    `json:"-"`
	Active              bool       `json:"active"`
	SentAt              *time.Time `json:"sent_at,omitempty"`
	AcceptedAt          *time.Time `json:"accepted_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	ArchivedAt          *time.Time `json:"archived_at,omitempty"`
}

// InviteeRequest is one candidate to invite.
type InviteeRequest struct {
	Email               string `json:"email" binding:"required,email,max=255"`
	FullName            string `json:"full_name" binding:"required,min=1,max=255"`
	MatriculationNumber string `json:"matriculation_number" binding:"required,min=1,max=64"`
}

// AddInvitationsRequest adds candidates to an assessment's invitation list.
type AddInvitationsRequest struct {
	Invitees []InviteeRequest `json:"invitees" binding:"required,min=1,max=500,dive"`
}

// InvitationDetails is what a candidate sees when opening an invitation link.
type InvitationDetails struct {
	InvitationID        uuid.UUID  `json:"invitation_id"`
	AssessmentID        uuid.UUID  `json:"assessment_id"`
	AssessmentName      string     `json:"assessment_name"`
	ScheduledStart      *time.Time `json:"scheduled_start"`
	DurationMinutes     int        `json:"duration_minutes"`
	Email               string     `json:"email"`
	FullName            string     `json:"full_name"`
	MatriculationNumber string     `json:"matriculation_number"`
	ExpiresAt           time.Time  `json:"expires_at"`
}
