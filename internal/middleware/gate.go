package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/queryproctor/backend/internal/response"
	"github.com/queryproctor/backend/internal/service"
)

// ContextKeyGate is the Gin context key for the access decision.
const ContextKeyGate = "gate_decision"

var gateCodes = map[service.GateOutcome]response.ErrCode{
	service.GateNotStarted: response.ErrAssessmentNotStarted,
	service.GateEnded:      response.ErrAssessmentEnded,
	service.GateCancelled:  response.ErrAssessmentCancelled,
}

// GateRejectionCode maps a rejecting outcome to its API error code.
func GateRejectionCode(o service.GateOutcome) response.ErrCode {
	if code, ok := gateCodes[o]; ok {
		return code
	}
	return response.ErrForbidden
}

// AssessmentGate admits a candidate to the assessment in the :id path
// parameter only while it is active by the server clock. Rejections carry
// the timing payload so the client can render the matching screen.
// Must run after a candidate JWT middleware.
func AssessmentGate(gate *service.GateService) gin.HandlerFunc {
	return func(c *gin.Context) {
		assessmentID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.AbortFail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}

		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		d, err := gate.Evaluate(c.Request.Context(), assessmentID, claims.UserID)
		if err != nil {
			if errors.Is(err, service.ErrNotEnrolled) || errors.Is(err, service.ErrNotFound) {
				response.AbortFail(c, http.StatusNotFound, response.ErrNotEnrolled)
				return
			}
			_ = c.Error(err)
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}

		if !d.Allowed() {
			response.AbortFailWithData(c, http.StatusForbidden, GateRejectionCode(d.Outcome), d.Payload())
			return
		}

		c.Set(ContextKeyGate, d)
		c.Next()
	}
}

// GetGateDecision retrieves the decision stored by AssessmentGate.
func GetGateDecision(c *gin.Context) *service.GateDecision {
	val, exists := c.Get(ContextKeyGate)
	if !exists {
		return nil
	}
	d, _ := val.(*service.GateDecision)
	return d
}
