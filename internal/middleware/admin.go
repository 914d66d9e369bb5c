package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SuperuserRequired rejects non-superusers. Use after AuthRequired.
func SuperuserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsSuperuser(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "superuser access required"})
			return
		}
		c.Next()
	}
}
