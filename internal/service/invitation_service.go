package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/queryproctor/backend/internal/clock"
	"github.com/queryproctor/backend/internal/config"
	"github.com/queryproctor/backend/internal/mailer"
	"github.com/queryproctor/backend/internal/model"
	"github.com/queryproctor/backend/internal/repository"
)

// Invitation errors.
var (
	ErrScheduleRequired     = errors.New("assessment must have a scheduled start before sending invitations")
	ErrNoPendingInvitations = errors.New("no pending invitations")
	ErrSendInProgress       = errors.New("invitations are already being sent")
	ErrInvitationInactive   = errors.New("invitation is not active")
	ErrInvitationSent       = repository.ErrInvitationSent
)

const sendLockTTL = time.Minute

// AddInvitationsResult reports which invitees were added.
type AddInvitationsResult struct {
	Added   []model.Invitation `json:"added"`
	Skipped int                `json:"skipped"`
}

// SendResult reports a send run.
type SendResult struct {
	Sent      int       `json:"sent"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AcceptResult is returned to a candidate accepting an invitation.
type AcceptResult struct {
	Token        string           `json:"token"`
	Candidate    *model.Candidate `json:"candidate"`
	AssessmentID uuid.UUID        `json:"assessment_id"`
}

// InvitationService manages invitation lists, delivery and acceptance.
type InvitationService struct {
	invitationRepo *repository.InvitationRepository
	assessmentSvc  *AssessmentService
	assessmentRepo *repository.AssessmentRepository
	authSvc        *AuthService
	rdb            *redis.Client
	clock          clock.Clock
	cfg            *config.Config
	log            zerolog.Logger
}

// NewInvitationService creates a new InvitationService.
func NewInvitationService(
	invitationRepo *repository.InvitationRepository,
	assessmentSvc *AssessmentService,
	assessmentRepo *repository.AssessmentRepository,
	authSvc *AuthService,
	rdb *redis.Client,
	clk clock.Clock,
	cfg *config.Config,
	log zerolog.Logger,
) *InvitationService {
	return &InvitationService{
		invitationRepo: invitationRepo,
		assessmentSvc:  assessmentSvc,
		assessmentRepo: assessmentRepo,
		authSvc:        authSvc,
		rdb:            rdb,
		clock:          clk,
		cfg:            cfg,
		log:            log.With().Str("component", "invitation_service").Logger(),
	}
}

// List returns the invitation list of an assessment.
func (s *InvitationService) List(ctx context.Context, ownerID, assessmentID uuid.UUID) ([]model.Invitation, error) {
	if _, err := s.assessmentSvc.GetOwned(ctx, ownerID, assessmentID); err != nil {
		return nil, err
	}
	return s.invitationRepo.ListByAssessment(ctx, assessmentID)
}

// Add appends invitees to an assessment. Emails already on the list are skipped.
func (s *InvitationService) Add(ctx context.Context, ownerID, assessmentID uuid.UUID, invitees []model.InviteeRequest) (*AddInvitationsResult, error) {
	a, err := s.assessmentSvc.GetOwned(ctx, ownerID, assessmentID)
	if err != nil {
		return nil, err
	}
	if a.Cancelled() {
		return nil, ErrAssessmentArchived
	}

	added, err := s.invitationRepo.AddMany(ctx, assessmentID, invitees)
	if err != nil {
		return nil, fmt.Errorf("add invitations: %w", err)
	}
	return &AddInvitationsResult{Added: added, Skipped: len(invitees) - len(added)}, nil
}

// Remove deletes an invitation that has not been sent.
func (s *InvitationService) Remove(ctx context.Context, ownerID, assessmentID, invitationID uuid.UUID) error {
	if _, err := s.assessmentSvc.GetOwned(ctx, ownerID, assessmentID); err != nil {
		return err
	}
	if err := s.invitationRepo.DeletePending(ctx, assessmentID, invitationID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Send signs a token for every pending invitation of a scheduled assessment,
// marks the invitations as sent and queues the emails. Tokens expire at the
// end of the scheduled day.
func (s *InvitationService) Send(ctx context.Context, ownerID, assessmentID uuid.UUID) (*SendResult, error) {
	a, err := s.assessmentSvc.GetOwned(ctx, ownerID, assessmentID)
	if err != nil {
		return nil, err
	}
	if a.Cancelled() {
		return nil, ErrAssessmentArchived
	}
	if a.ScheduledStart == nil {
		return nil, ErrScheduleRequired
	}

	lockKey := config.CacheKey.InvitationSendLockKey(assessmentID)
	locked, err := s.rdb.SetNX(ctx, lockKey, "1", sendLockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire send lock: %w", err)
	}
	if !locked {
		return nil, ErrSendInProgress
	}
	defer s.rdb.Del(context.Background(), lockKey)

	pending, err := s.invitationRepo.ListPending(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	if len(pending) == 0 {
		return nil, ErrNoPendingInvitations
	}

	now := s.clock.Now()
	expiresAt := InvitationExpiry(a.ScheduledStart, now, s.cfg.AppLocation)

	ids := make([]uuid.UUID, len(pending))
	tokens := make([]string, len(pending))
	for i := range pending {
		token, err := s.authSvc.SignInvitation(&pending[i], expiresAt, now)
		if err != nil {
			return nil, err
		}
		ids[i] = pending[i].ID
		tokens[i] = token
	}

	sent, err := s.invitationRepo.MarkSent(ctx, ids, tokens, now)
	if err != nil {
		return nil, fmt.Errorf("mark sent: %w", err)
	}

	marked := make(map[uuid.UUID]struct{}, len(sent))
	for _, id := range sent {
		marked[id] = struct{}{}
	}

	jobs := make([]mailer.Job, 0, len(sent))
	for i, inv := range pending {
		if _, ok := marked[inv.ID]; !ok {
			continue
		}
		jobs = append(jobs, mailer.Job{
			Kind:           mailer.KindInvitation,
			To:             inv.Email,
			Name:           inv.FullName,
			AssessmentName: a.Name,
			ScheduledStart: a.ScheduledStart,
			Link:           s.authSvc.InvitationLink(tokens[i]),
		})
	}
	if err := enqueue(ctx, s.rdb, config.WorkerKey.MailQueue, jobs...); err != nil {
		return nil, fmt.Errorf("queue invitation emails: %w", err)
	}

	s.log.Info().
		Str("assessment_id", assessmentID.String()).
		Int("sent", len(jobs)).
		Time("expires_at", expiresAt).
		Msg("Invitations sent")

	return &SendResult{Sent: len(jobs), ExpiresAt: expiresAt}, nil
}

// resolve verifies an invitation token against the stored invitation.
func (s *InvitationService) resolve(ctx context.Context, token string) (*InvitationClaims, *model.Invitation, *model.Assessment, error) {
	claims, err := s.authSvc.ParseInvitation(token)
	if err != nil {
		return nil, nil, nil, err
	}

	inv, err := s.invitationRepo.GetByID(ctx, claims.InvitationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil, ErrInvitationInvalid
		}
		return nil, nil, nil, err
	}
	if inv.Token == nil || *inv.Token != token || inv.AssessmentID != claims.AssessmentID {
		return nil, nil, nil, ErrInvitationInvalid
	}

	a, err := s.assessmentRepo.GetByID(ctx, inv.AssessmentID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("get assessment: %w", err)
	}
	if a.Cancelled() {
		return nil, nil, nil, ErrAssessmentArchived
	}
	if !inv.Active || inv.ArchivedAt != nil {
		return nil, nil, nil, ErrInvitationInactive
	}
	return claims, inv, a, nil
}

// Details returns what a candidate sees when opening an invitation link.
func (s *InvitationService) Details(ctx context.Context, token string) (*model.InvitationDetails, error) {
	claims, inv, a, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return &model.InvitationDetails{
		InvitationID:        inv.ID,
		AssessmentID:        a.ID,
		AssessmentName:      a.Name,
		ScheduledStart:      a.ScheduledStart,
		DurationMinutes:     a.DurationMinutes,
		Email:               inv.Email,
		FullName:            inv.FullName,
		MatriculationNumber: inv.MatriculationNumber,
		ExpiresAt:           claims.ExpiresAt.Time,
	}, nil
}

// Accept enrols the invited candidate and signs them in. The link can be
// used again until it expires; each use starts a new session.
func (s *InvitationService) Accept(ctx context.Context, token string) (*AcceptResult, error) {
	_, inv, a, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	cand, _, err := s.invitationRepo.Accept(ctx, inv, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("accept invitation: %w", err)
	}

	sessionToken, err := s.authSvc.GenerateCandidateToken(ctx, cand.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("assessment_id", a.ID.String()).
		Str("candidate_id", cand.ID.String()).
		Msg("Invitation accepted")

	return &AcceptResult{Token: sessionToken, Candidate: cand, AssessmentID: a.ID}, nil
}
