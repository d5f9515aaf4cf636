package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/queryproctor/backend/internal/middleware"
	"github.com/queryproctor/backend/internal/model"
	"github.com/queryproctor/backend/internal/response"
	"github.com/queryproctor/backend/internal/service"
	"github.com/queryproctor/backend/internal/validator"
)

// AssessmentHandler handles assessment authoring endpoints.
type AssessmentHandler struct {
	assessmentService *service.AssessmentService
}

// NewAssessmentHandler creates a new AssessmentHandler.
func NewAssessmentHandler(assessmentService *service.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{assessmentService: assessmentService}
}

// ListAssessments godoc
// GET /api/v1/admin/assessments
// Lists the admin's assessments with their timing status. Cancelled
// assessments are included with ?archived=true.
func (h *AssessmentHandler) ListAssessments(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))
	archived, _ := strconv.ParseBool(c.DefaultQuery("archived", "false"))

	list, pagination, err := h.assessmentService.List(c.Request.Context(), claims.UserID, page, perPage, c.Query("search"), archived)
	if err != nil {
		failService(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"assessments": list}, pagination)
}

// GetAssessment godoc
// GET /api/v1/admin/assessments/:id
func (h *AssessmentHandler) GetAssessment(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	detail, err := h.assessmentService.Get(c.Request.Context(), claims.UserID, id)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"assessment": detail})
}

// CreateAssessment godoc
// POST /api/v1/admin/assessments
func (h *AssessmentHandler) CreateAssessment(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.AssessmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	a, err := h.assessmentService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"assessment": a})
}

// UpdateAssessment godoc
// PUT /api/v1/admin/assessments/:id
// Saves the settings form: name, scheduled start and duration.
func (h *AssessmentHandler) UpdateAssessment(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var req model.AssessmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	a, err := h.assessmentService.UpdateSettings(c.Request.Context(), claims.UserID, id, &req)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"assessment": a})
}

// CancelAssessment godoc
// POST /api/v1/admin/assessments/:id/cancel
// Archives the assessment and emails every candidate who was sent an invitation.
func (h *AssessmentHandler) CancelAssessment(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	notified, err := h.assessmentService.Cancel(c.Request.Context(), claims.UserID, id)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"notified": notified})
}

// DeleteAssessments godoc
// DELETE /api/v1/admin/assessments
// Bulk-deletes assessments that have no sent invitations and no enrolments.
func (h *AssessmentHandler) DeleteAssessments(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.DeleteAssessmentsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	deleted, err := h.assessmentService.Delete(c.Request.Context(), claims.UserID, req.IDs)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": deleted})
}

// SetAssessmentProblems godoc
// PUT /api/v1/admin/assessments/:id/problems
// Replaces the ordered problem list.
func (h *AssessmentHandler) SetAssessmentProblems(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var req model.SetAssessmentProblemsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	problems, err := h.assessmentService.SetProblems(c.Request.Context(), claims.UserID, id, req.ProblemIDs)
	if err != nil {
		if errors.Is(err, service.ErrUnknownProblems) {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
				"problem_ids": "contains a problem that is not in your bank",
			})
			return
		}
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"problems": problems})
}
