package model

import (
	"time"

	"github.com/google/uuid"
)

// Grade is the outcome of grading one answer.
type Grade string

const (
	GradePending Grade = "pending"
	GradePassed  Grade = "passed"
	GradeFailed  Grade = "failed"
	GradeError   Grade = "error"
	// GradeManual marks answers in dialects the grader cannot execute.
	GradeManual Grade = "manual"
)

// Submission is one submit action of a candidate. SubmittedAt is the server
// clock sample the access decision was made with.
type Submission struct {
	ID           uuid.UUID          `json:"id"`
	EnrollmentID uuid.UUID          `json:"enrollment_id"`
	SubmittedAt  time.Time          `json:"submitted_at"`
	Details      []SubmissionDetail `json:"details"`
}

// SubmissionDetail is the answer to one problem within a submission.
type SubmissionDetail struct {
	ID                  uuid.UUID `json:"id"`
	SubmissionID        uuid.UUID `json:"submission_id"`
	AssessmentProblemID uuid.UUID `json:"assessment_problem_id"`
	CandidateAnswer     string    `json:"candidate_answer"`
	Dialect             Dialect   `json:"dialect"`
	Grade               Grade     `json:"grade"`
	GradeMessage        string    `json:"grade_message,omitempty"`
}

// AnswerRequest is one answer in a submission.
type AnswerRequest struct {
	AssessmentProblemID uuid.UUID `json:"assessment_problem_id" binding:"required"`
	CandidateAnswer     string    `json:"candidate_answer" binding:"required,max=20000"`
	Dialect             Dialect   `json:"dialect" binding:"required,dialect"`
}

// SubmitRequest is the payload of a candidate submission.
type SubmitRequest struct {
	Answers []AnswerRequest `json:"answers" binding:"required,min=1,max=100,dive"`
}

// SubmissionReport is one submission as listed for administrators.
type SubmissionReport struct {
	SubmissionID        uuid.UUID              `json:"submission_id"`
	SubmittedAt         time.Time              `json:"submitted_at"`
	CandidateID         uuid.UUID              `json:"candidate_id"`
	CandidateName       string                 `json:"candidate_name"`
	CandidateEmail      string                 `json:"candidate_email"`
	MatriculationNumber string                 `json:"matriculation_number"`
	Details             []SubmissionReportItem `json:"details"`
}

// SubmissionReportItem is one graded answer in a report.
type SubmissionReportItem struct {
	DetailID        uuid.UUID `json:"detail_id"`
	ProblemID       uuid.UUID `json:"problem_id"`
	ProblemName     string    `json:"problem_name"`
	CandidateAnswer string    `json:"candidate_answer"`
	Dialect         Dialect   `json:"dialect"`
	Grade           Grade     `json:"grade"`
}
