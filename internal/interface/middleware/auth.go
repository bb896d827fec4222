package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stackbound/identity-api/pkg/helpers"
	"github.com/stackbound/identity-api/pkg/response"
)

const (
	CtxIdentityIDKey = "identityID"
	CtxEmailKey      = "identityEmail"
)

// BearerAuth validates the Authorization header and injects the verified
// claims into the Gin context. A missing credential and an invalid token are
// reported as distinct failures; verification is a pure signature/expiry
// check with no store round-trip.
func BearerAuth(jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			response.Abort(c, http.StatusUnauthorized, "access token required", nil)
			return
		}
		claims, err := jwt.Parse(token)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, "invalid or expired token", nil)
			return
		}
		c.Set(CtxIdentityIDKey, claims.IdentityID)
		c.Set(CtxEmailKey, claims.Email)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
