package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// userIDKey is the gin context key set by bearerAuth.
const userIDKey = "userID"

// bearerAuth resolves the Authorization bearer token to a user id. Requests
// without a valid token are rejected before any handler logic runs.
func bearerAuth(tokens map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		userID, ok := tokens[token]
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid bearer token"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// currentUser returns the authenticated user id set by bearerAuth.
func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// securityHeaders sets the standard response hardening headers.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		c.Next()
	}
}
