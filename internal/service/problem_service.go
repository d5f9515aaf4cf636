package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/queryproctor/backend/internal/model"
	"github.com/queryproctor/backend/internal/repository"
	"github.com/queryproctor/backend/internal/response"
)

// ErrNotOwner is returned when an admin touches another admin's resource.
var ErrNotOwner = errors.New("resource belongs to another admin")

// ProblemService handles problem bank business logic.
type ProblemService struct {
	problemRepo *repository.ProblemRepository
}

// NewProblemService creates a new ProblemService.
func NewProblemService(problemRepo *repository.ProblemRepository) *ProblemService {
	return &ProblemService{problemRepo: problemRepo}
}

// pageBounds clamps paging input and returns limit and offset.
func pageBounds(page, perPage int) (int, int, int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage, perPage, (page - 1) * perPage
}

// List retrieves the owner's problems with pagination.
func (s *ProblemService) List(ctx context.Context, ownerID uuid.UUID, page, perPage int, search string) ([]model.Problem, *response.Pagination, error) {
	page, perPage, limit, offset := pageBounds(page, perPage)

	problems, total, err := s.problemRepo.ListByOwnerPaginated(ctx, ownerID, search, limit, offset)
	if err != nil {
		return nil, nil, err
	}
	return problems, response.NewPagination(page, perPage, total), nil
}

// Get retrieves one of the owner's problems.
func (s *ProblemService) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Problem, error) {
	p, err := s.problemRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if p.ArchivedAt != nil {
		return nil, ErrNotFound
	}
	if p.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return p, nil
}

// Create adds a problem to the owner's bank.
func (s *ProblemService) Create(ctx context.Context, ownerID uuid.UUID, req *model.ProblemRequest) (*model.Problem, error) {
	p := &model.Problem{OwnerID: ownerID}
	applyProblemRequest(p, req)
	if err := s.problemRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create problem: %w", err)
	}
	return p, nil
}

// Update overwrites one of the owner's problems.
func (s *ProblemService) Update(ctx context.Context, ownerID, id uuid.UUID, req *model.ProblemRequest) (*model.Problem, error) {
	p, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	applyProblemRequest(p, req)
	if err := s.problemRepo.Update(ctx, p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update problem: %w", err)
	}
	return p, nil
}

// Archive removes a problem from the owner's bank.
func (s *ProblemService) Archive(ctx context.Context, ownerID, id uuid.UUID) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.problemRepo.Archive(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func applyProblemRequest(p *model.Problem, req *model.ProblemRequest) {
	p.Name = req.Name
	p.Description = req.Description
	p.SchemaName = req.SchemaName
	p.ExpectedResult = req.ExpectedResult
	if p.ExpectedResult.Columns == nil {
		p.ExpectedResult.Columns = []string{}
	}
	if p.ExpectedResult.Rows == nil {
		p.ExpectedResult.Rows = [][]*string{}
	}
	p.Ordered = req.Ordered
}
