package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AuthMiddleware is the control server's optional bearer-token gate,
// backed by a single shared-secret JWT: this daemon has exactly one
// resource (the singleton workflow) and no multi-tenant key management.
// An empty Secret makes every handler a no-op pass-through, so the
// zero-config local case still works.
type AuthMiddleware struct {
	Secret string
}

// NewAuthMiddleware returns an AuthMiddleware. An empty secret disables
// auth entirely.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{Secret: secret}
}

// RequireBearerToken validates the Authorization header's bearer token
// against Secret using HS256.
func (m *AuthMiddleware) RequireBearerToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.Secret == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			respondError(c, http.StatusUnauthorized, "bearer token required")
			c.Abort()
			return
		}

		token, err := jwt.Parse(parts[1], func(t *jwt.Token) (any, error) {
			return []byte(m.Secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
		if err != nil || !token.Valid {
			respondError(c, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Next()
	}
}
