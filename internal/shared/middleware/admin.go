package middleware

import (
	"github.com/gin-gonic/gin"

	"returns-backend/internal/shared/response"
)

// AdminMiddleware gates the operator console routes: review, pickup
// scheduling, completion and archival all move customer-visible state, so
// only the admin role may reach them. Runs after AuthMiddleware, which put
// the role into the context.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := c.Get("role")
		if !ok || role != "admin" {
			response.Forbidden(c, "admin role required")
			c.Abort()
			return
		}

		c.Next()
	}
}
