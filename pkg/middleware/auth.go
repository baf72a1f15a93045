package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-live/livestream-service/pkg/jwt"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/response"
)

const (
	UserIDKey     = "user_id"
	UsernameKey   = "username"
	RolesKey      = "roles"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
	TokenQueryKey = "token"
)

// TokenVerifier validates an access token.
type TokenVerifier interface {
	Verify(token string) (*jwt.Claims, error)
}

// AuthMiddleware resolves the caller identity from a bearer token.
type AuthMiddleware struct {
	verifier TokenVerifier
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// RequireAuth rejects requests without a valid token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing authorization token")
			return
		}

		claims, err := m.verifier.Verify(token)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrExpiredToken) {
				msg = "token has expired"
			}
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, msg)
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth sets the caller identity when a valid token is present and
// lets anonymous requests through. An invalid token is still rejected.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := m.verifier.Verify(token)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token")
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// GetUserID extracts the caller's user id from the Gin context.
func GetUserID(c *gin.Context) (int64, bool) {
	if id, exists := c.Get(UserIDKey); exists {
		v, ok := id.(int64)
		return v, ok
	}
	return 0, false
}

// GetUsername extracts username from Gin context.
func GetUsername(c *gin.Context) string {
	if username, exists := c.Get(UsernameKey); exists {
		return username.(string)
	}
	return ""
}

func setClaims(c *gin.Context, claims *jwt.Claims) {
	c.Set(UserIDKey, claims.UserID)
	c.Set(UsernameKey, claims.Username)
	c.Set(RolesKey, claims.Roles)
}

// extractToken reads the bearer header, falling back to the token query
// parameter used by browser WebSocket clients.
func extractToken(c *gin.Context) string {
	if header := c.GetHeader(AuthHeaderKey); header != "" {
		if !strings.HasPrefix(header, BearerPrefix) {
			return ""
		}
		return strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
	}
	return c.Query(TokenQueryKey)
}
