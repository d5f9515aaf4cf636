package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/queryproctor/backend/internal/middleware"
	"github.com/queryproctor/backend/internal/model"
	"github.com/queryproctor/backend/internal/response"
	"github.com/queryproctor/backend/internal/service"
	"github.com/queryproctor/backend/internal/validator"
)

// ProblemHandler handles the admin problem bank.
type ProblemHandler struct {
	problemService *service.ProblemService
}

// NewProblemHandler creates a new ProblemHandler.
func NewProblemHandler(problemService *service.ProblemService) *ProblemHandler {
	return &ProblemHandler{problemService: problemService}
}

// ListProblems godoc
// GET /api/v1/admin/problems
// Lists the admin's problems with pagination and an optional name search.
func (h *ProblemHandler) ListProblems(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	problems, pagination, err := h.problemService.List(c.Request.Context(), claims.UserID, page, perPage, c.Query("search"))
	if err != nil {
		failService(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"problems": problems}, pagination)
}

// GetProblem godoc
// GET /api/v1/admin/problems/:id
func (h *ProblemHandler) GetProblem(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	problem, err := h.problemService.Get(c.Request.Context(), claims.UserID, id)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"problem": problem})
}

// CreateProblem godoc
// POST /api/v1/admin/problems
func (h *ProblemHandler) CreateProblem(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.ProblemRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	problem, err := h.problemService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"problem": problem})
}

// UpdateProblem godoc
// PUT /api/v1/admin/problems/:id
func (h *ProblemHandler) UpdateProblem(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var req model.ProblemRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	problem, err := h.problemService.Update(c.Request.Context(), claims.UserID, id, &req)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"problem": problem})
}

// DeleteProblem godoc
// DELETE /api/v1/admin/problems/:id
// Archives the problem. Assessments keep their copy of the link.
func (h *ProblemHandler) DeleteProblem(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	if err := h.problemService.Archive(c.Request.Context(), claims.UserID, id); err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "problem deleted"})
}
