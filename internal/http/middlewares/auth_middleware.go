package middlewares

import (
	"net/http"
	"strings"

	"github.com/OussamaRhimi/tender-mvp/internal/actorctx"
	"github.com/OussamaRhimi/tender-mvp/internal/auth"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// RequireAuth rejects requests without a valid session cookie.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(auth.CookieName)
		if err != nil || strings.TrimSpace(raw) == "" {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}

		claims, err := m.jwt.Verify(raw)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Invalid or expired session")
			return
		}

		attachActor(c, claims)
		c.Next()
	}
}

// OptionalAuth attaches the actor when a valid session is present and otherwise lets
// the request through anonymously.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(auth.CookieName)
		if err == nil && raw != "" {
			if claims, err := m.jwt.Verify(raw); err == nil {
				attachActor(c, claims)
			}
		}
		c.Next()
	}
}

func attachActor(c *gin.Context, claims *auth.Claims) {
	a := actorctx.Actor{
		ID:        claims.UserID,
		Email:     claims.Email,
		Role:      user.Role(claims.Role),
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
	}

	c.Request = c.Request.WithContext(actorctx.With(c.Request.Context(), a))

	// Stash useful bits of identity on the context
	c.Set(CtxUserID, a.ID)
	c.Set(CtxRole, string(a.Role))
}
