package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/queryproctor/backend/internal/config"
	"github.com/queryproctor/backend/internal/grading"
	"github.com/queryproctor/backend/internal/model"
	"github.com/queryproctor/backend/internal/repository"
	"github.com/queryproctor/backend/internal/timing"
)

// ErrUnknownProblem is returned when an answer targets a problem outside the assessment.
var ErrUnknownProblem = repository.ErrUnknownProblem

// GateRejectedError is returned when the gate refuses a submission at the
// moment it is stored.
type GateRejectedError struct {
	Decision *GateDecision
}

func (e *GateRejectedError) Error() string {
	return "submission rejected: " + string(e.Decision.Outcome)
}

// SubmitResult is returned to a candidate after submitting.
type SubmitResult struct {
	*model.Submission
	ServerTime string `json:"server_time"`
}

// SubmissionStore persists submissions and reads them back for reports.
type SubmissionStore interface {
	Create(ctx context.Context, enrollment *model.Enrollment, submittedAt time.Time, answers []model.AnswerRequest) (*model.Submission, error)
	ListReportsByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]model.SubmissionReport, error)
}

// SubmissionService stores, grades and reports submissions.
type SubmissionService struct {
	submissionRepo SubmissionStore
	assessmentSvc  *AssessmentService
	gate           *GateService
	rdb            *redis.Client
	cfg            *config.Config
	log            zerolog.Logger
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(
	submissionRepo SubmissionStore,
	assessmentSvc *AssessmentService,
	gate *GateService,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo: submissionRepo,
		assessmentSvc:  assessmentSvc,
		gate:           gate,
		rdb:            rdb,
		cfg:            cfg,
		log:            log.With().Str("component", "submission_service").Logger(),
	}
}

// Submit evaluates the gate once more and stores the answers with the
// decision's server time. Postgres answers are queued for grading.
func (s *SubmissionService) Submit(ctx context.Context, assessmentID, candidateID uuid.UUID, req *model.SubmitRequest) (*SubmitResult, error) {
	d, err := s.gate.EvaluateStage(ctx, GateStageSubmit, assessmentID, candidateID)
	if err != nil {
		return nil, err
	}
	if !d.Allowed() {
		return nil, &GateRejectedError{Decision: d}
	}

	sub, err := s.submissionRepo.Create(ctx, d.Enrollment, d.ServerTime, req.Answers)
	if err != nil {
		if errors.Is(err, repository.ErrUnknownProblem) {
			return nil, ErrUnknownProblem
		}
		return nil, fmt.Errorf("store submission: %w", err)
	}

	var jobs []grading.Job
	for _, detail := range sub.Details {
		if detail.Grade == model.GradePending {
			jobs = append(jobs, grading.Job{DetailID: detail.ID})
		}
	}
	if err := enqueue(ctx, s.rdb, config.WorkerKey.GradingQueue, jobs...); err != nil {
		// Pending details are picked up again when the grading worker restarts.
		s.log.Error().Err(err).Str("submission_id", sub.ID.String()).Msg("Failed to queue grading")
	}

	s.log.Info().
		Str("submission_id", sub.ID.String()).
		Str("candidate_id", candidateID.String()).
		Time("submitted_at", sub.SubmittedAt).
		Msg("Submission stored")

	return &SubmitResult{Submission: sub, ServerTime: timing.FormatInstant(d.ServerTime)}, nil
}

// Reports lists an assessment's submissions grouped with their answers.
func (s *SubmissionService) Reports(ctx context.Context, ownerID, assessmentID uuid.UUID) ([]model.SubmissionReport, error) {
	if _, err := s.assessmentSvc.GetOwned(ctx, ownerID, assessmentID); err != nil {
		return nil, err
	}
	return s.submissionRepo.ListReportsByAssessment(ctx, assessmentID)
}

var exportHeader = []interface{}{
	"Submission ID", "Submitted At", "Candidate", "Email", "Matriculation Number",
	"Problem", "Dialect", "Grade", "Answer",
}

// Export renders an assessment's submissions as an xlsx workbook, one row per
// answer. It returns the workbook bytes and the assessment name.
func (s *SubmissionService) Export(ctx context.Context, ownerID, assessmentID uuid.UUID) ([]byte, string, error) {
	a, err := s.assessmentSvc.GetOwned(ctx, ownerID, assessmentID)
	if err != nil {
		return nil, "", err
	}
	reports, err := s.submissionRepo.ListReportsByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, "", err
	}

	buf, err := buildWorkbook(reports, s.cfg.AppLocation)
	if err != nil {
		return nil, "", fmt.Errorf("build workbook: %w", err)
	}
	return buf.Bytes(), a.Name, nil
}

const exportTimeLayout = "2006-01-02 15:04:05 MST"

func buildWorkbook(reports []model.SubmissionReport, loc *time.Location) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Submissions"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", "I1", bold); err != nil {
		return nil, err
	}

	row := 2
	for _, r := range reports {
		for _, d := range r.Details {
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return nil, err
			}
			values := []interface{}{
				r.SubmissionID.String(),
				r.SubmittedAt.In(loc).Format(exportTimeLayout),
				r.CandidateName,
				r.CandidateEmail,
				r.MatriculationNumber,
				d.ProblemName,
				string(d.Dialect),
				string(d.Grade),
				d.CandidateAnswer,
			}
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return nil, err
			}
			row++
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 38); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "B", "H", 22); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "I", "I", 80); err != nil {
		return nil, err
	}

	return f.WriteToBuffer()
}
