package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const identityKey = "userID"

// RequireIdentity extracts the session-established identity. Authentication
// itself is a separate collaborator; by the time a request reaches these
// handlers the session layer has resolved it to a user ID, forwarded here in
// the X-User-ID header. Requests without one are rejected before any state
// mutation.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		c.Set(identityKey, userID)
		c.Next()
	}
}

func identity(c *gin.Context) int64 {
	return c.GetInt64(identityKey)
}
