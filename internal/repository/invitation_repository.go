package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/queryproctor/backend/internal/database"
	"github.com/queryproctor/backend/internal/model"
)

// ErrInvitationSent is returned when removing an invitation that was already emailed.
var ErrInvitationSent = errors.New("invitation already sent")

// InvitationRepository handles invitation data access.
type InvitationRepository struct {
	pool *pgxpool.Pool
}

// NewInvitationRepository creates a new InvitationRepository.
func NewInvitationRepository(pool *pgxpool.Pool) *InvitationRepository {
	return &InvitationRepository{pool: pool}
}

const invitationColumns = `id, assessment_id, email, full_name, matriculation_number,
	invitation_token, active, sent_at, accepted_at, created_at, updated_at, archived_at`

func scanInvitation(row pgx.Row, inv *model.Invitation) error {
	return row.Scan(&inv.ID, &inv.AssessmentID, &inv.Email, &inv.FullName, &inv.MatriculationNumber,
		&inv.Token, &inv.Active, &inv.SentAt, &inv.AcceptedAt, &inv.CreatedAt, &inv.UpdatedAt, &inv.ArchivedAt)
}

// ListByAssessment lists the non-archived invitations of an assessment.
func (r *InvitationRepository) ListByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]model.Invitation, error) {
	return r.list(ctx,
		`SELECT `+invitationColumns+` FROM assessment_invitations
		 WHERE assessment_id = $1 AND archived_at IS NULL
		 ORDER BY full_name`, assessmentID)
}

// ListPending lists invitations that have not been emailed yet.
func (r *InvitationRepository) ListPending(ctx context.Context, assessmentID uuid.UUID) ([]model.Invitation, error) {
	return r.list(ctx,
		`SELECT `+invitationColumns+` FROM assessment_invitations
		 WHERE assessment_id = $1 AND archived_at IS NULL AND NOT active
		 ORDER BY created_at`, assessmentID)
}

func (r *InvitationRepository) list(ctx context.Context, query string, args ...interface{}) ([]model.Invitation, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []model.Invitation{}
	for rows.Next() {
		var inv model.Invitation
		if err := scanInvitation(rows, &inv); err != nil {
			return nil, err
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

// GetByID retrieves an invitation.
func (r *InvitationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Invitation, error) {
	inv := &model.Invitation{}
	if err := scanInvitation(r.pool.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM assessment_invitations WHERE id = $1`, id), inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// AddMany inserts invitations, skipping emails already invited to the
// assessment. Returns the rows actually inserted.
func (r *InvitationRepository) AddMany(ctx context.Context, assessmentID uuid.UUID, invitees []model.InviteeRequest) ([]model.Invitation, error) {
	emails := make([]string, len(invitees))
	names := make([]string, len(invitees))
	numbers := make([]string, len(invitees))
	for i, in := range invitees {
		emails[i] = strings.ToLower(strings.TrimSpace(in.Email))
		names[i] = strings.TrimSpace(in.FullName)
		numbers[i] = strings.TrimSpace(in.MatriculationNumber)
	}

	return r.list(ctx,
		`INSERT INTO assessment_invitations (assessment_id, email, full_name, matriculation_number)
		 SELECT $1, u.email, u.full_name, u.matriculation_number
		 FROM UNNEST($2::text[], $3::text[], $4::text[]) AS u (email, full_name, matriculation_number)
		 ON CONFLICT (assessment_id, LOWER(email)) WHERE archived_at IS NULL DO NOTHING
		 RETURNING `+invitationColumns,
		assessmentID, emails, names, numbers)
}

// DeletePending removes an invitation that has not been sent yet.
func (r *InvitationRepository) DeletePending(ctx context.Context, assessmentID, id uuid.UUID) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var active bool
		err := tx.QueryRow(ctx,
			`SELECT active FROM assessment_invitations
			 WHERE id = $1 AND assessment_id = $2 AND archived_at IS NULL
			 FOR UPDATE`, id, assessmentID).Scan(&active)
		if err != nil {
			return err
		}
		if active {
			return ErrInvitationSent
		}
		_, err = tx.Exec(ctx, `DELETE FROM assessment_invitations WHERE id = $1`, id)
		return err
	})
}

// MarkSent activates invitations and stores their tokens in one statement.
// Invitations that were sent or archived concurrently are left untouched and
// omitted from the result.
func (r *InvitationRepository) MarkSent(ctx context.Context, ids []uuid.UUID, tokens []string, at time.Time) ([]uuid.UUID, error) {
	if len(ids) != len(tokens) {
		return nil, fmt.Errorf("mark sent: %d ids for %d tokens", len(ids), len(tokens))
	}

	rows, err := r.pool.Query(ctx,
		`UPDATE assessment_invitations AS i
		 SET active = TRUE, invitation_token = t.token, sent_at = $3, updated_at = NOW()
		 FROM UNNEST($1::uuid[], $2::text[]) AS t (id, token)
		 WHERE i.id = t.id AND NOT i.active AND i.archived_at IS NULL
		 RETURNING i.id`, ids, tokens, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sent []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		sent = append(sent, id)
	}
	return sent, rows.Err()
}

// GetByToken retrieves a sent invitation by its stored token.
func (r *InvitationRepository) GetByToken(ctx context.Context, token string) (*model.Invitation, error) {
	inv := &model.Invitation{}
	if err := scanInvitation(r.pool.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM assessment_invitations
		 WHERE invitation_token = $1`, token), inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Accept records the candidate behind an invitation and enrols them in the
// assessment. Accepting again returns the existing candidate and enrollment.
func (r *InvitationRepository) Accept(ctx context.Context, inv *model.Invitation, at time.Time) (*model.Candidate, *model.Enrollment, error) {
	cand := &model.Candidate{}
	enr := &model.Enrollment{}

	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`INSERT INTO candidates (email, full_name, matriculation_number)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (email) DO UPDATE
			 SET full_name = EXCLUDED.full_name,
			     matriculation_number = EXCLUDED.matriculation_number,
			     updated_at = NOW()
			 RETURNING id, email, full_name, matriculation_number, created_at, updated_at`,
			strings.ToLower(inv.Email), inv.FullName, inv.MatriculationNumber,
		).Scan(&cand.ID, &cand.Email, &cand.FullName, &cand.MatriculationNumber,
			&cand.CreatedAt, &cand.UpdatedAt); err != nil {
			return fmt.Errorf("upsert candidate: %w", err)
		}

		if err := tx.QueryRow(ctx,
			`INSERT INTO candidate_assessments (assessment_id, candidate_id)
			 VALUES ($1, $2)
			 ON CONFLICT (candidate_id, assessment_id) DO UPDATE SET candidate_id = EXCLUDED.candidate_id
			 RETURNING id, assessment_id, candidate_id, created_at, archived_at`,
			inv.AssessmentID, cand.ID,
		).Scan(&enr.ID, &enr.AssessmentID, &enr.CandidateID, &enr.CreatedAt, &enr.ArchivedAt); err != nil {
			return fmt.Errorf("enrol candidate: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE assessment_invitations SET accepted_at = COALESCE(accepted_at, $1), updated_at = NOW()
			 WHERE id = $2`, at, inv.ID); err != nil {
			return fmt.Errorf("mark accepted: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return cand, enr, nil
}
