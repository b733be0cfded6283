package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chatwire/models"
	"chatwire/services"
)

const userKey = "user"

// Auth validates the bearer credential on REST requests and stores the
// resolved user in the request context
func Auth(verifier services.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Missing authorization token",
			})
			return
		}

		user, err := verifier.VerifyToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Invalid or expired token",
			})
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// CurrentUser returns the authenticated user stored by Auth, or nil
func CurrentUser(c *gin.Context) *models.User {
	if val, ok := c.Get(userKey); ok {
		if user, ok := val.(*models.User); ok {
			return user
		}
	}
	return nil
}

// ExtractToken pulls the bearer credential from the Authorization header,
// falling back to the `token` query parameter for websocket handshakes
func ExtractToken(r *http.Request) string {
	bearerToken := r.Header.Get("Authorization")
	if strings.HasPrefix(bearerToken, "Bearer ") {
		return strings.TrimPrefix(bearerToken, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
