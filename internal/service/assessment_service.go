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
	"github.com/queryproctor/backend/internal/response"
	"github.com/queryproctor/backend/internal/timing"
)

// Assessment errors.
var (
	ErrAssessmentArchived = errors.New("assessment is cancelled")
	ErrAssessmentInUse    = repository.ErrAssessmentInUse
	ErrUnknownProblems    = errors.New("one or more problems do not exist in your bank")
)

// AssessmentDetail is an assessment with its computed timing and problems.
type AssessmentDetail struct {
	model.Assessment
	Status   timing.Status               `json:"status"`
	EndTime  *time.Time                  `json:"end_time"`
	Problems []model.ProblemForCandidate `json:"problems"`
}

// AssessmentService handles assessment authoring and lifecycle.
type AssessmentService struct {
	assessmentRepo *repository.AssessmentRepository
	rdb            *redis.Client
	clock          clock.Clock
	log            zerolog.Logger
}

// NewAssessmentService creates a new AssessmentService.
func NewAssessmentService(
	assessmentRepo *repository.AssessmentRepository,
	rdb *redis.Client,
	clk clock.Clock,
	log zerolog.Logger,
) *AssessmentService {
	return &AssessmentService{
		assessmentRepo: assessmentRepo,
		rdb:            rdb,
		clock:          clk,
		log:            log.With().Str("component", "assessment_service").Logger(),
	}
}

// GetOwned retrieves an assessment and checks it belongs to ownerID.
// Cancelled assessments are returned too.
func (s *AssessmentService) GetOwned(ctx context.Context, ownerID, id uuid.UUID) (*model.Assessment, error) {
	a, err := s.assessmentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if a.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return a, nil
}

// List retrieves the owner's assessments with their current status.
func (s *AssessmentService) List(ctx context.Context, ownerID uuid.UUID, page, perPage int, search string, includeArchived bool) ([]model.AssessmentSummary, *response.Pagination, error) {
	page, perPage, limit, offset := pageBounds(page, perPage)

	list, total, err := s.assessmentRepo.ListByOwnerPaginated(ctx, ownerID, search, includeArchived, limit, offset)
	if err != nil {
		return nil, nil, err
	}

	now := s.clock.Now()
	for i := range list {
		list[i].Status = timing.Evaluate(now, list[i].Schedule()).Status
	}
	return list, response.NewPagination(page, perPage, total), nil
}

// Get returns an assessment with its timing and ordered problems.
func (s *AssessmentService) Get(ctx context.Context, ownerID, id uuid.UUID) (*AssessmentDetail, error) {
	a, err := s.GetOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	problems, err := s.assessmentRepo.ListProblems(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}

	st := timing.Evaluate(s.clock.Now(), a.Schedule())
	return &AssessmentDetail{Assessment: *a, Status: st.Status, EndTime: st.EndTime, Problems: problems}, nil
}

// Create schedules a new assessment.
func (s *AssessmentService) Create(ctx context.Context, ownerID uuid.UUID, req *model.AssessmentRequest) (*model.Assessment, error) {
	a := &model.Assessment{
		OwnerID:         ownerID,
		Name:            req.Name,
		ScheduledStart:  req.ScheduledStart,
		DurationMinutes: req.DurationMinutes.Int(),
	}
	if err := s.assessmentRepo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create assessment: %w", err)
	}
	s.log.Info().Str("assessment_id", a.ID.String()).Msg("Assessment created")
	return a, nil
}

// UpdateSettings changes the name and schedule of an active assessment.
func (s *AssessmentService) UpdateSettings(ctx context.Context, ownerID, id uuid.UUID, req *model.AssessmentRequest) (*model.Assessment, error) {
	a, err := s.GetOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if a.Cancelled() {
		return nil, ErrAssessmentArchived
	}

	a.Name = req.Name
	a.ScheduledStart = req.ScheduledStart
	a.DurationMinutes = req.DurationMinutes.Int()
	if err := s.assessmentRepo.UpdateSettings(ctx, a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssessmentArchived
		}
		return nil, fmt.Errorf("update assessment: %w", err)
	}
	return a, nil
}

// Cancel archives an assessment and queues a cancellation email for every
// candidate whose invitation had been sent.
func (s *AssessmentService) Cancel(ctx context.Context, ownerID, id uuid.UUID) (int, error) {
	a, err := s.GetOwned(ctx, ownerID, id)
	if err != nil {
		return 0, err
	}
	if a.Cancelled() {
		return 0, ErrAssessmentArchived
	}

	notified, err := s.assessmentRepo.Cancel(ctx, id, s.clock.Now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAssessmentArchived
		}
		return 0, fmt.Errorf("cancel assessment: %w", err)
	}

	jobs := make([]mailer.Job, len(notified))
	for i, inv := range notified {
		jobs[i] = mailer.Job{
			Kind:           mailer.KindCancellation,
			To:             inv.Email,
			Name:           inv.FullName,
			AssessmentName: a.Name,
			ScheduledStart: a.ScheduledStart,
		}
	}
	if err := enqueue(ctx, s.rdb, config.WorkerKey.MailQueue, jobs...); err != nil {
		// The cancellation itself is committed; only the notices are lost.
		s.log.Error().Err(err).Str("assessment_id", id.String()).Msg("Failed to queue cancellation emails")
	}

	s.log.Info().Str("assessment_id", id.String()).Int("notified", len(jobs)).Msg("Assessment cancelled")
	return len(jobs), nil
}

// Delete hard-deletes assessments nobody was invited to or enrolled in.
func (s *AssessmentService) Delete(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error) {
	n, err := s.assessmentRepo.DeleteUnused(ctx, ownerID, ids)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

// SetProblems replaces the ordered problem list of an active assessment.
func (s *AssessmentService) SetProblems(ctx context.Context, ownerID, id uuid.UUID, problemIDs []uuid.UUID) ([]model.ProblemForCandidate, error) {
	a, err := s.GetOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if a.Cancelled() {
		return nil, ErrAssessmentArchived
	}

	seen := make(map[uuid.UUID]struct{}, len(problemIDs))
	ordered := make([]uuid.UUID, 0, len(problemIDs))
	for _, pid := range problemIDs {
		if _, dup := seen[pid]; dup {
			continue
		}
		seen[pid] = struct{}{}
		ordered = append(ordered, pid)
	}

	if len(ordered) > 0 {
		n, err := s.assessmentRepo.CountOwnedProblems(ctx, ownerID, ordered)
		if err != nil {
			return nil, err
		}
		if n != len(ordered) {
			return nil, ErrUnknownProblems
		}
	}

	if err := s.assessmentRepo.SetProblems(ctx, id, ordered); err != nil {
		return nil, fmt.Errorf("set problems: %w", err)
	}
	return s.assessmentRepo.ListProblems(ctx, id)
}
