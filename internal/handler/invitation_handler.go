package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/queryproctor/backend/internal/middleware"
	"github.com/queryproctor/backend/internal/model"
	"github.com/queryproctor/backend/internal/response"
	"github.com/queryproctor/backend/internal/service"
	"github.com/queryproctor/backend/internal/validator"
)

// InvitationHandler handles invitation lists and the public invitation link.
type InvitationHandler struct {
	invitationService *service.InvitationService
}

// NewInvitationHandler creates a new InvitationHandler.
func NewInvitationHandler(invitationService *service.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitationService: invitationService}
}

// ListInvitations godoc
// GET /api/v1/admin/assessments/:id/invitations
func (h *InvitationHandler) ListInvitations(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	invitations, err := h.invitationService.List(c.Request.Context(), claims.UserID, id)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"invitations": invitations})
}

// AddInvitations godoc
// POST /api/v1/admin/assessments/:id/invitations
// Adds invitees. Emails already on the list are skipped.
func (h *InvitationHandler) AddInvitations(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var req model.AddInvitationsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.invitationService.Add(c.Request.Context(), claims.UserID, id, req.Invitees)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// RemoveInvitation godoc
// DELETE /api/v1/admin/assessments/:id/invitations/:invitation_id
// Only invitations that have not been sent can be removed.
func (h *InvitationHandler) RemoveInvitation(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	invitationID, ok := paramUUID(c, "invitation_id")
	if !ok {
		return
	}

	if err := h.invitationService.Remove(c.Request.Context(), claims.UserID, id, invitationID); err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "invitation removed"})
}

// SendInvitations godoc
// POST /api/v1/admin/assessments/:id/invitations/send
// Emails every pending invitee a link valid until the end of the scheduled day.
func (h *InvitationHandler) SendInvitations(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	result, err := h.invitationService.Send(c.Request.Context(), claims.UserID, id)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GetInvitation godoc
// GET /api/v1/public/invitations/:token
// Shows who an invitation is for and when the assessment takes place.
func (h *InvitationHandler) GetInvitation(c *gin.Context) {
	details, err := h.invitationService.Details(c.Request.Context(), c.Param("token"))
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"invitation": details})
}

// AcceptInvitation godoc
// POST /api/v1/public/invitations/:token/accept
// Enrols the invitee and returns a candidate session token.
func (h *InvitationHandler) AcceptInvitation(c *gin.Context) {
	result, err := h.invitationService.Accept(c.Request.Context(), c.Param("token"))
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}
