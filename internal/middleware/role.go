package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hotelpms/internal/pkg/jwt"
	"hotelpms/internal/pkg/response"
)

// RequireRole lets the request through when the token carries one of roles.
// Admin is always allowed.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles)+1)
	for _, r := range roles {
		allowed[r] = true
	}
	allowed[jwt.RoleAdmin] = true

	return func(c *gin.Context) {
		role := Role(c)
		if role == "" {
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Role not found in token")
			return
		}
		if !allowed[role] {
			response.Abort(c, http.StatusForbidden, "FORBIDDEN", "Access denied: insufficient permissions")
			return
		}
		c.Next()
	}
}

func AdminOnly() gin.HandlerFunc {
	return RequireRole(jwt.RoleAdmin)
}
