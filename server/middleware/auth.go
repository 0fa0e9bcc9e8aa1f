package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClaimRole is the context key holding the caller's role.
const ClaimRole = "role"

// AuthConfig configures bearer token authentication.
type AuthConfig struct {
	// TokenValidator checks a token and returns its claims.
	TokenValidator func(token string) (map[string]interface{}, error)
	// SkipPaths are path prefixes that need no token.
	SkipPaths []string
	// QueryParam, when set, is read if the Authorization header is absent.
	// WebSocket and EventSource clients cannot send headers.
	QueryParam string
}

// Auth validates the bearer token and copies its claims into the gin
// context.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if strings.HasPrefix(path, skip) {
				c.Next()
				return
			}
		}

		token, ok := bearer(c.GetHeader("Authorization"))
		if !ok && cfg.QueryParam != "" {
			token = c.Query(cfg.QueryParam)
			ok = token != ""
		}
		if !ok {
			abort(c, http.StatusUnauthorized, "authorization required")
			return
		}
		claims, err := cfg.TokenValidator(token)
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}
		for k, v := range claims {
			c.Set(k, v)
		}
		c.Next()
	}
}

// RequireRole rejects callers whose role claim is not one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(roles, c.GetString(ClaimRole)) {
			abort(c, http.StatusForbidden, "insufficient role")
			return
		}
		c.Next()
	}
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"code": status, "message": msg})
}
