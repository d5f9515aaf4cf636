package repository

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/queryproctor/backend/internal/model"
)

// ProblemRepository handles problem bank data access.
type ProblemRepository struct {
	pool *pgxpool.Pool
}

// NewProblemRepository creates a new ProblemRepository.
func NewProblemRepository(pool *pgxpool.Pool) *ProblemRepository {
	return &ProblemRepository{pool: pool}
}

const problemColumns = `id, owner_id, name, description, schema_name, expected_result,
	ordered, created_at, updated_at, archived_at`

func scanProblem(row pgx.Row, p *model.Problem) error {
	return row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.SchemaName,
		&p.ExpectedResult, &p.Ordered, &p.CreatedAt, &p.UpdatedAt, &p.ArchivedAt)
}

// GetByID retrieves a problem, archived or not.
func (r *ProblemRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Problem, error) {
	p := &model.Problem{}
	if err := scanProblem(r.pool.QueryRow(ctx,
		`SELECT `+problemColumns+` FROM problems WHERE id = $1`, id), p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetByAssessmentProblemID retrieves the problem behind an assessment problem link.
func (r *ProblemRepository) GetByAssessmentProblemID(ctx context.Context, assessmentProblemID uuid.UUID) (*model.Problem, error) {
	p := &model.Problem{}
	if err := scanProblem(r.pool.QueryRow(ctx,
		`SELECT p.id, p.owner_id, p.name, p.description, p.schema_name, p.expected_result,
		        p.ordered, p.created_at, p.updated_at, p.archived_at
		 FROM assessment_problems ap
		 JOIN problems p ON p.id = ap.problem_id
		 WHERE ap.id = $1`, assessmentProblemID), p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListByOwnerPaginated lists an owner's active problems, optionally filtered by name.
func (r *ProblemRepository) ListByOwnerPaginated(ctx context.Context, ownerID uuid.UUID, search string, limit, offset int) ([]model.Problem, int, error) {
	where := ` WHERE owner_id = $1 AND archived_at IS NULL`
	args := []interface{}{ownerID}
	if search != "" {
		args = append(args, "%"+search+"%")
		where += ` AND name ILIKE $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM problems`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := `SELECT ` + problemColumns + ` FROM problems` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	problems := []model.Problem{}
	for rows.Next() {
		var p model.Problem
		if err := scanProblem(rows, &p); err != nil {
			return nil, 0, err
		}
		problems = append(problems, p)
	}
	return problems, total, rows.Err()
}

// Create inserts a new problem.
func (r *ProblemRepository) Create(ctx context.Context, p *model.Problem) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO problems (owner_id, name, description, schema_name, expected_result, ordered)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		p.OwnerID, p.Name, p.Description, p.SchemaName, p.ExpectedResult, p.Ordered,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// Update overwrites the editable fields of an active problem.
func (r *ProblemRepository) Update(ctx context.Context, p *model.Problem) error {
	return r.pool.QueryRow(ctx,
		`UPDATE problems
		 SET name = $1, description = $2, schema_name = $3, expected_result = $4,
		     ordered = $5, updated_at = NOW()
		 WHERE id = $6 AND archived_at IS NULL
		 RETURNING updated_at`,
		p.Name, p.Description, p.SchemaName, p.ExpectedResult, p.Ordered, p.ID,
	).Scan(&p.UpdatedAt)
}

// Archive soft-deletes a problem. Assessments already using it keep their link.
func (r *ProblemRepository) Archive(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE problems SET archived_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND archived_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
