package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/queryproctor/backend/internal/response"
	"github.com/queryproctor/backend/internal/service"
)

type errMapping struct {
	target error
	status int
	code   response.ErrCode
}

var serviceErrors = []errMapping{
	{service.ErrNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrNotOwner, http.StatusForbidden, response.ErrNotOwner},
	{service.ErrNotEnrolled, http.StatusNotFound, response.ErrNotEnrolled},
	{service.ErrAssessmentArchived, http.StatusConflict, response.ErrAssessmentArchived},
	{service.ErrAssessmentInUse, http.StatusConflict, response.ErrDependencyExists},
	{service.ErrScheduleRequired, http.StatusBadRequest, response.ErrScheduleRequired},
	{service.ErrNoPendingInvitations, http.StatusConflict, response.ErrNoPendingInvitees},
	{service.ErrSendInProgress, http.StatusConflict, response.ErrConflict},
	{service.ErrInvitationSent, http.StatusConflict, response.ErrInvitationSent},
	{service.ErrInvitationInvalid, http.StatusBadRequest, response.ErrInvitationInvalid},
	{service.ErrInvitationExpired, http.StatusGone, response.ErrInvitationExpired},
	{service.ErrInvitationInactive, http.StatusGone, response.ErrInvitationInactive},
}

// failService maps a service error to its HTTP response. Unknown errors are
// attached to the context for the request log and reported as internal.
func failService(c *gin.Context, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.target) {
			response.Fail(c, m.status, m.code)
			return
		}
	}
	_ = c.Error(err)
	response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
}

// paramUUID parses a UUID path parameter, writing a 400 on failure.
func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
