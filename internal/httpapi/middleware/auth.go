package middleware

import (
	"net/http"
	"strings"

	"github.com/dhirajc963/timebrew.news/internal/auth"
	"github.com/dhirajc963/timebrew.news/internal/common"
	"github.com/gin-gonic/gin"
)

const (
	UserIDKey = "userID"
	EmailKey  = "email"
)

// AuthRequired accepts "Authorization: Bearer <jwt>" signed with secret and
// puts the caller's id and email on the gin context.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		parts := strings.Fields(c.GetHeader("Authorization"))
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
			c.Abort()
			return
		}

		claims, err := auth.ParseJWT(parts[1], secret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40102, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(EmailKey, claims.Email)
		c.Next()
	}
}
