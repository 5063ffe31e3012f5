package middleware

import (
	"net/http"

	"streamvault/config"
	"streamvault/internal/auth"
	"streamvault/internal/domain"

	"github.com/gin-gonic/gin"
)

// AdminRequired lets through only the configured console operator. A token
// minted for a previous admin username stops working once it is renamed.
func AdminRequired(admin *config.AdminConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := c.Get("claims")
		cl, _ := claims.(*auth.Claims)
		if !ok || cl == nil || cl.Role != domain.RoleAdmin || cl.Username != admin.Username {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "payment settings are restricted to the operator", "code": "forbidden"})
			return
		}
		c.Next()
	}
}
