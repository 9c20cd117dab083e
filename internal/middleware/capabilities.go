package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/merchline/backend/internal/permissions"
	"github.com/merchline/backend/pkg/response"
)

// RequireRole returns a middleware that allows only the given roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		roleVal, ok := c.Get(ContextUserRole)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		role, _ := roleVal.(string)
		if _, ok := allowed[role]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireCapabilities returns a middleware that allows only actors holding
// every listed capability. Run after JWT so the user context is set.
func RequireCapabilities(checker permissions.Checker, capabilities ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		idVal, ok := c.Get(ContextUserID)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		actorID, _ := idVal.(uuid.UUID)
		allowed, err := checker.Verify(c.Request.Context(), actorID, capabilities...)
		if err != nil || !allowed {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
