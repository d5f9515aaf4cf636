package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/queryproctor/backend/internal/middleware"
	"github.com/queryproctor/backend/internal/model"
	"github.com/queryproctor/backend/internal/response"
	"github.com/queryproctor/backend/internal/service"
	"github.com/queryproctor/backend/internal/validator"
)

// CandidateHandler serves the candidate portal. Assessment routes sit behind
// middleware.AssessmentGate.
type CandidateHandler struct {
	candidateService  *service.CandidateService
	submissionService *service.SubmissionService
}

// NewCandidateHandler creates a new CandidateHandler.
func NewCandidateHandler(candidateService *service.CandidateService, submissionService *service.SubmissionService) *CandidateHandler {
	return &CandidateHandler{
		candidateService:  candidateService,
		submissionService: submissionService,
	}
}

// ListAssessments godoc
// GET /api/v1/candidate/assessments
// Lists the candidate's enrolments with their status at the server time.
func (h *CandidateHandler) ListAssessments(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	lobby, err := h.candidateService.Lobby(c.Request.Context(), claims.UserID)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"assessments": lobby})
}

// GetAssessment godoc
// GET /api/v1/candidate/assessments/:id
// Returns the problems with the server time and end time of the window.
func (h *CandidateHandler) GetAssessment(c *gin.Context) {
	d := middleware.GetGateDecision(c)
	if d == nil {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	content, err := h.candidateService.Content(c.Request.Context(), d)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"assessment": content})
}

// Submit godoc
// POST /api/v1/candidate/assessments/:id/submissions
// Stores the answers. The gate is evaluated again while storing, so a
// submission racing the end of the window is rejected with its timing.
func (h *CandidateHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	d := middleware.GetGateDecision(c)
	if claims == nil || d == nil {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.submissionService.Submit(c.Request.Context(), d.Assessment.ID, claims.UserID, &req)
	if err != nil {
		var rejected *service.GateRejectedError
		switch {
		case errors.As(err, &rejected):
			response.AbortFailWithData(c, http.StatusForbidden, middleware.GateRejectionCode(rejected.Decision.Outcome), rejected.Decision.Payload())
		case errors.Is(err, service.ErrUnknownProblem):
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
				"answers": "must answer each problem of the assessment exactly once",
			})
		default:
			failService(c, err)
		}
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"submission": result})
}
