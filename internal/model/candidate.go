package model

import (
	"time"

	"github.com/google/uuid"
)

// Candidate is a person who takes assessments. Candidates have no password;
// they authenticate by accepting an invitation link.
type Candidate struct {
	ID                  uuid.UUID `json:"id"`
	Email               string    `json:"email"`
	FullName            string    `json:"full_name"`
	MatriculationNumber string    `json:"matriculation_number"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
