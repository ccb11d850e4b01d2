package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/hotel-concierge/internal/auth"
	"github.com/suPer8Hu/hotel-concierge/internal/common"
)

const SubjectKey = "subject"

// AuthRequired accepts "Authorization: Bearer <jwt>" signed with secret.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(h, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			common.Fail(c, http.StatusUnauthorized, 40100, "missing bearer token")
			return
		}
		claims, err := auth.ParseJWT(secret, strings.TrimSpace(token))
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40100, "invalid token")
			return
		}
		c.Set(SubjectKey, claims.Subject)
		c.Next()
	}
}
