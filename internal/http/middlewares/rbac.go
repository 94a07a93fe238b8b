package middlewares

import (
	"net/http"

	"github.com/OussamaRhimi/tender-mvp/internal/actorctx"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// RequireRole must run after RequireAuth.
func RequireRole(required user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actorctx.From(c.Request.Context())
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Missing identity context")
			return
		}
		if a.Role != required {
			abortWithError(c, http.StatusForbidden, "forbidden", string(required)+" role required")
			return
		}
		c.Next()
	}
}
