package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/queryproctor/backend/internal/response"
	"github.com/queryproctor/backend/internal/service"
)

// CheckCandidateSession validates the JWT's JTI against the candidate's
// active session in Redis. Opening the invitation link again, or logging
// out, invalidates older tokens.
func CheckCandidateSession(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if claims.TokenType != service.TokenTypeCandidate {
			c.Next()
			return
		}

		err := authService.ValidateCandidateSession(c.Request.Context(), claims.UserID, claims.ID)
		if errors.Is(err, service.ErrSessionInvalidated) {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			return
		}
		if err != nil {
			_ = c.Error(err)
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}

		c.Next()
	}
}
