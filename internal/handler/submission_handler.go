package handler

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/queryproctor/backend/internal/middleware"
	"github.com/queryproctor/backend/internal/response"
	"github.com/queryproctor/backend/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SubmissionHandler serves submission reports to admins.
type SubmissionHandler struct {
	submissionService *service.SubmissionService
}

// NewSubmissionHandler creates a new SubmissionHandler.
func NewSubmissionHandler(submissionService *service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissionService: submissionService}
}

// ListSubmissions godoc
// GET /api/v1/admin/assessments/:id/submissions
// Lists submissions newest first, each with its graded answers.
func (h *SubmissionHandler) ListSubmissions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	reports, err := h.submissionService.Reports(c.Request.Context(), claims.UserID, id)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"submissions": reports})
}

// ExportSubmissions godoc
// GET /api/v1/admin/assessments/:id/submissions/export
// Downloads all answers as an xlsx workbook.
func (h *SubmissionHandler) ExportSubmissions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	data, name, err := h.submissionService.Export(c.Request.Context(), claims.UserID, id)
	if err != nil {
		failService(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exportFilename(name)))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func exportFilename(assessmentName string) string {
	base := strings.Trim(unsafeFilename.ReplaceAllString(assessmentName, "_"), "_")
	if base == "" {
		base = "assessment"
	}
	return base + "-submissions.xlsx"
}
