package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/queryproctor/backend/internal/model"
)

// EnrollmentRepository handles candidate_assessments data access.
type EnrollmentRepository struct {
	pool *pgxpool.Pool
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(pool *pgxpool.Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// Get returns the candidate's enrollment in an assessment. Enrollments archived
// by a cancellation are returned too; callers check ArchivedAt.
func (r *EnrollmentRepository) Get(ctx context.Context, assessmentID, candidateID uuid.UUID) (*model.Enrollment, error) {
	e := &model.Enrollment{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, assessment_id, candidate_id, created_at, archived_at
		 FROM candidate_assessments
		 WHERE assessment_id = $1 AND candidate_id = $2`,
		assessmentID, candidateID,
	).Scan(&e.ID, &e.AssessmentID, &e.CandidateID, &e.CreatedAt, &e.ArchivedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListByCandidate lists every assessment the candidate was enrolled in,
// cancelled ones included, newest schedule first.
func (r *EnrollmentRepository) ListByCandidate(ctx context.Context, candidateID uuid.UUID) ([]model.Assessment, []model.CandidateAssessment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ca.id, a.id, a.owner_id, a.name, a.scheduled_start, a.duration_minutes,
		        a.created_at, a.updated_at, a.archived_at,
		        EXISTS (SELECT 1 FROM submissions s WHERE s.candidate_assessment_id = ca.id)
		 FROM candidate_assessments ca
		 JOIN assessments a ON a.id = ca.assessment_id
		 WHERE ca.candidate_id = $1
		 ORDER BY a.scheduled_start DESC NULLS LAST, a.created_at DESC`, candidateID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var assessments []model.Assessment
	var rowsOut []model.CandidateAssessment
	for rows.Next() {
		var a model.Assessment
		var ca model.CandidateAssessment
		if err := rows.Scan(&ca.EnrollmentID, &a.ID, &a.OwnerID, &a.Name, &a.ScheduledStart,
			&a.DurationMinutes, &a.CreatedAt, &a.UpdatedAt, &a.ArchivedAt, &ca.Submitted); err != nil {
			return nil, nil, err
		}
		assessments = append(assessments, a)
		rowsOut = append(rowsOut, ca)
	}
	return assessments, rowsOut, rows.Err()
}
