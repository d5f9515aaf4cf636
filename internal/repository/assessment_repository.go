package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/queryproctor/backend/internal/database"
	"github.com/queryproctor/backend/internal/model"
)

// ErrAssessmentInUse is returned when deleting an assessment that has sent
// invitations or enrolled candidates.
var ErrAssessmentInUse = errors.New("assessment has sent invitations or enrolled candidates")

// AssessmentRepository handles assessment data access.
type AssessmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(pool *pgxpool.Pool) *AssessmentRepository {
	return &AssessmentRepository{pool: pool}
}

// GetByID retrieves an assessment, including cancelled ones. The schedule and
// archived_at are read together so the access gate sees a consistent row.
func (r *AssessmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error) {
	a := &model.Assessment{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, name, scheduled_start, duration_minutes,
		        created_at, updated_at, archived_at
		 FROM assessments WHERE id = $1`, id,
	).Scan(&a.ID, &a.OwnerID, &a.Name, &a.ScheduledStart, &a.DurationMinutes,
		&a.CreatedAt, &a.UpdatedAt, &a.ArchivedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListByOwnerPaginated lists an owner's assessments with problem, invitation
// and candidate counters. Cancelled assessments are included only when
// includeArchived is set.
func (r *AssessmentRepository) ListByOwnerPaginated(ctx context.Context, ownerID uuid.UUID, search string, includeArchived bool, limit, offset int) ([]model.AssessmentSummary, int, error) {
	where := ` WHERE a.owner_id = $1`
	args := []interface{}{ownerID}
	if !includeArchived {
		where += ` AND a.archived_at IS NULL`
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		where += ` AND a.name ILIKE $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM assessments a`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := `SELECT a.id, a.owner_id, a.name, a.scheduled_start, a.duration_minutes,
	                 a.created_at, a.updated_at, a.archived_at,
	                 (SELECT COUNT(*) FROM assessment_problems ap
	                   WHERE ap.assessment_id = a.id AND ap.archived_at IS NULL),
	                 (SELECT COUNT(*) FROM assessment_invitations ai
	                   WHERE ai.assessment_id = a.id),
	                 (SELECT COUNT(*) FROM candidate_assessments ca
	                   WHERE ca.assessment_id = a.id)
	          FROM assessments a` + where +
		` ORDER BY a.created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := []model.AssessmentSummary{}
	for rows.Next() {
		var s model.AssessmentSummary
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Name, &s.ScheduledStart, &s.DurationMinutes,
			&s.CreatedAt, &s.UpdatedAt, &s.ArchivedAt,
			&s.ProblemCount, &s.InvitationCount, &s.CandidateCount); err != nil {
			return nil, 0, err
		}
		list = append(list, s)
	}
	return list, total, rows.Err()
}

// Create inserts a new assessment.
func (r *AssessmentRepository) Create(ctx context.Context, a *model.Assessment) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO assessments (owner_id, name, scheduled_start, duration_minutes)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		a.OwnerID, a.Name, a.ScheduledStart, a.DurationMinutes,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// UpdateSettings overwrites name and schedule of an active assessment.
func (r *AssessmentRepository) UpdateSettings(ctx context.Context, a *model.Assessment) error {
	return r.pool.QueryRow(ctx,
		`UPDATE assessments
		 SET name = $1, scheduled_start = $2, duration_minutes = $3, updated_at = NOW()
		 WHERE id = $4 AND archived_at IS NULL
		 RETURNING updated_at`,
		a.Name, a.ScheduledStart, a.DurationMinutes, a.ID,
	).Scan(&a.UpdatedAt)
}

// Cancel archives the assessment with everything hanging off it and returns
// the invitations that had been sent, so their recipients can be notified.
func (r *AssessmentRepository) Cancel(ctx context.Context, id uuid.UUID, at time.Time) ([]model.Invitation, error) {
	var notified []model.Invitation

	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE assessments SET archived_at = $1, updated_at = NOW()
			 WHERE id = $2 AND archived_at IS NULL`, at, id)
		if err != nil {
			return fmt.Errorf("archive assessment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}

		rows, err := tx.Query(ctx,
			`UPDATE assessment_invitations SET archived_at = $1, updated_at = NOW()
			 WHERE assessment_id = $2 AND archived_at IS NULL
			 RETURNING id, assessment_id, email, full_name, matriculation_number, active`, at, id)
		if err != nil {
			return fmt.Errorf("archive invitations: %w", err)
		}
		for rows.Next() {
			var inv model.Invitation
			if err := rows.Scan(&inv.ID, &inv.AssessmentID, &inv.Email, &inv.FullName,
				&inv.MatriculationNumber, &inv.Active); err != nil {
				rows.Close()
				return err
			}
			if inv.Active {
				notified = append(notified, inv)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE assessment_problems SET archived_at = $1
			 WHERE assessment_id = $2 AND archived_at IS NULL`, at, id); err != nil {
			return fmt.Errorf("archive assessment problems: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE candidate_assessments SET archived_at = $1
			 WHERE assessment_id = $2 AND archived_at IS NULL`, at, id); err != nil {
			return fmt.Errorf("archive enrollments: %w", err)
		}
		return nil
	})
	return notified, err
}

// DeleteUnused hard-deletes the owner's assessments. It fails with
// ErrAssessmentInUse, deleting nothing, if any of them has a sent invitation
// or an enrolled candidate.
func (r *AssessmentRepository) DeleteUnused(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error) {
	var deleted int64

	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var inUse bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (
			     SELECT 1 FROM assessment_invitations
			     WHERE assessment_id = ANY($1::uuid[]) AND active AND archived_at IS NULL
			 ) OR EXISTS (
			     SELECT 1 FROM candidate_assessments WHERE assessment_id = ANY($1::uuid[])
			 )`, ids).Scan(&inUse); err != nil {
			return err
		}
		if inUse {
			return ErrAssessmentInUse
		}

		tag, err := tx.Exec(ctx,
			`DELETE FROM assessments WHERE id = ANY($1::uuid[]) AND owner_id = $2`, ids, ownerID)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected()
		return nil
	})
	return deleted, err
}

// SetProblems replaces the ordered problem list of an assessment. Links to
// problems that stay keep their IDs so existing submission details remain
// valid; dropped links are archived.
func (r *AssessmentRepository) SetProblems(ctx context.Context, assessmentID uuid.UUID, problemIDs []uuid.UUID) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE assessment_problems SET archived_at = NOW()
			 WHERE assessment_id = $1 AND archived_at IS NULL AND NOT (problem_id = ANY($2::uuid[]))`,
			assessmentID, problemIDs); err != nil {
			return fmt.Errorf("archive dropped problems: %w", err)
		}

		for pos, pid := range problemIDs {
			tag, err := tx.Exec(ctx,
				`UPDATE assessment_problems SET position = $1
				 WHERE assessment_id = $2 AND problem_id = $3 AND archived_at IS NULL`,
				pos, assessmentID, pid)
			if err != nil {
				return fmt.Errorf("reorder problem: %w", err)
			}
			if tag.RowsAffected() > 0 {
				continue
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO assessment_problems (assessment_id, problem_id, position)
				 VALUES ($1, $2, $3)`, assessmentID, pid, pos); err != nil {
				return fmt.Errorf("link problem: %w", err)
			}
		}
		return nil
	})
}

// ListProblems returns the active problems of an assessment in display order,
// without expected results.
func (r *AssessmentRepository) ListProblems(ctx context.Context, assessmentID uuid.UUID) ([]model.ProblemForCandidate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ap.id, p.id, p.name, p.description, ap.position
		 FROM assessment_problems ap
		 JOIN problems p ON p.id = ap.problem_id
		 WHERE ap.assessment_id = $1 AND ap.archived_at IS NULL
		 ORDER BY ap.position, ap.created_at`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	problems := []model.ProblemForCandidate{}
	for rows.Next() {
		var p model.ProblemForCandidate
		if err := rows.Scan(&p.AssessmentProblemID, &p.ProblemID, &p.Name, &p.Description, &p.Position); err != nil {
			return nil, err
		}
		problems = append(problems, p)
	}
	return problems, rows.Err()
}

// CountOwnedProblems returns how many of ids are active problems of owner.
func (r *AssessmentRepository) CountOwnedProblems(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM problems
		 WHERE id = ANY($1::uuid[]) AND owner_id = $2 AND archived_at IS NULL`, ids, ownerID).Scan(&n)
	return n, err
}
