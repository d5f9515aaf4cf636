package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/queryproctor/backend/internal/database"
	"github.com/queryproctor/backend/internal/model"
)

// ErrUnknownProblem is returned when an answer references a problem that is
// not part of the assessment.
var ErrUnknownProblem = errors.New("answer references a problem outside the assessment")

// GradeUpdate is the grading outcome of one submission detail.
type GradeUpdate struct {
	DetailID uuid.UUID
	Grade    model.Grade
	Message  string
}

// SubmissionRepository handles submission data access.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// Create stores a submission with its answers. Answers in dialects the grader
// cannot run are stored with the manual grade; the rest start as pending.
func (r *SubmissionRepository) Create(ctx context.Context, enrollment *model.Enrollment, submittedAt time.Time, answers []model.AnswerRequest) (*model.Submission, error) {
	sub := &model.Submission{EnrollmentID: enrollment.ID, SubmittedAt: submittedAt}

	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		ids := make([]uuid.UUID, len(answers))
		for i, a := range answers {
			ids[i] = a.AssessmentProblemID
		}

		var known int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(DISTINCT id) FROM assessment_problems
			 WHERE id = ANY($1::uuid[]) AND assessment_id = $2 AND archived_at IS NULL`,
			ids, enrollment.AssessmentID).Scan(&known); err != nil {
			return fmt.Errorf("check problems: %w", err)
		}
		if known != len(distinct(ids)) {
			return ErrUnknownProblem
		}

		if err := tx.QueryRow(ctx,
			`INSERT INTO submissions (candidate_assessment_id, submitted_at)
			 VALUES ($1, $2) RETURNING id`,
			enrollment.ID, submittedAt).Scan(&sub.ID); err != nil {
			return fmt.Errorf("insert submission: %w", err)
		}

		for _, a := range answers {
			d := model.SubmissionDetail{
				SubmissionID:        sub.ID,
				AssessmentProblemID: a.AssessmentProblemID,
				CandidateAnswer:     a.CandidateAnswer,
				Dialect:             a.Dialect,
				Grade:               model.GradePending,
			}
			if d.Dialect != model.DialectPostgres {
				d.Grade = model.GradeManual
			}
			if err := tx.QueryRow(ctx,
				`INSERT INTO submission_details
				     (submission_id, assessment_problem_id, candidate_answer, dialect, grade)
				 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
				d.SubmissionID, d.AssessmentProblemID, d.CandidateAnswer, d.Dialect, d.Grade,
			).Scan(&d.ID); err != nil {
				return fmt.Errorf("insert submission detail: %w", err)
			}
			sub.Details = append(sub.Details, d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// GetDetail retrieves one submission detail.
func (r *SubmissionRepository) GetDetail(ctx context.Context, id uuid.UUID) (*model.SubmissionDetail, error) {
	d := &model.SubmissionDetail{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, submission_id, assessment_problem_id, candidate_answer, dialect, grade, grade_message
		 FROM submission_details WHERE id = $1`, id,
	).Scan(&d.ID, &d.SubmissionID, &d.AssessmentProblemID, &d.CandidateAnswer, &d.Dialect, &d.Grade, &d.GradeMessage)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// UpdateGrades writes a batch of grades in one statement.
func (r *SubmissionRepository) UpdateGrades(ctx context.Context, updates []GradeUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(updates))
	grades := make([]string, len(updates))
	messages := make([]string, len(updates))
	for i, u := range updates {
		ids[i] = u.DetailID
		grades[i] = string(u.Grade)
		messages[i] = u.Message
	}

	_, err := r.pool.Exec(ctx,
		`UPDATE submission_details AS d
		 SET grade = t.grade, grade_message = t.message, graded_at = NOW()
		 FROM UNNEST($1::uuid[], $2::text[], $3::text[]) AS t (id, grade, message)
		 WHERE d.id = t.id`, ids, grades, messages)
	return err
}

// UpdateGrade writes a single grade.
func (r *SubmissionRepository) UpdateGrade(ctx context.Context, u GradeUpdate) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE submission_details SET grade = $1, grade_message = $2, graded_at = NOW()
		 WHERE id = $3`, u.Grade, u.Message, u.DetailID)
	return err
}

// ListReportsByAssessment returns every submission of an assessment grouped
// with its answers, newest first.
func (r *SubmissionRepository) ListReportsByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]model.SubmissionReport, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.submitted_at, c.id, c.full_name, c.email, c.matriculation_number,
		        d.id, p.id, p.name, d.candidate_answer, d.dialect, d.grade
		 FROM submissions s
		 JOIN candidate_assessments ca ON ca.id = s.candidate_assessment_id
		 JOIN candidates c ON c.id = ca.candidate_id
		 JOIN submission_details d ON d.submission_id = s.id
		 JOIN assessment_problems ap ON ap.id = d.assessment_problem_id
		 JOIN problems p ON p.id = ap.problem_id
		 WHERE ca.assessment_id = $1
		 ORDER BY s.submitted_at DESC, s.id, ap.position`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []model.SubmissionReport{}
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var rep model.SubmissionReport
		var item model.SubmissionReportItem
		if err := rows.Scan(&rep.SubmissionID, &rep.SubmittedAt, &rep.CandidateID, &rep.CandidateName,
			&rep.CandidateEmail, &rep.MatriculationNumber,
			&item.DetailID, &item.ProblemID, &item.ProblemName, &item.CandidateAnswer,
			&item.Dialect, &item.Grade); err != nil {
			return nil, err
		}

		i, ok := index[rep.SubmissionID]
		if !ok {
			i = len(reports)
			index[rep.SubmissionID] = i
			reports = append(reports, rep)
		}
		reports[i].Details = append(reports[i].Details, item)
	}
	return reports, rows.Err()
}

func distinct(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ListPendingDetailIDs returns the details still waiting for a grade.
func (r *SubmissionRepository) ListPendingDetailIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT d.id FROM submission_details d
		 JOIN submissions s ON s.id = d.submission_id
		 WHERE d.grade = $1 ORDER BY s.submitted_at`, model.GradePending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
