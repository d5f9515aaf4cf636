package middleware

import (
	"github.com/gin-gonic/gin"
)

// NoStore forbids caching of responses that embed the server time or a
// timing decision.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
