package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"hotelbooking/internal/infra/security"
)

const principalContextKey = "hotelbooking.principal"

type TokenVerifier interface {
	Verify(raw string) (security.Principal, error)
}

// AuthMiddleware resolves an optional bearer token. Requests without a
// valid token continue anonymously; handlers decide whether that is enough.
type AuthMiddleware struct {
	Tokens TokenVerifier
	Logger *slog.Logger
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" || m.Tokens == nil {
		c.Next()
		return
	}
	p, err := m.Tokens.Verify(token)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Debug("token validation failed", "error", err)
		}
		c.Next()
		return
	}
	setPrincipal(c, p)
	c.Next()
}

func setPrincipal(c *gin.Context, p security.Principal) {
	c.Set(principalContextKey, p)
	c.Request = c.Request.WithContext(security.ContextWithPrincipal(c.Request.Context(), p))
}

func currentPrincipal(c *gin.Context) (security.Principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return security.Principal{}, false
	}
	p, ok := val.(security.Principal)
	return p, ok
}

func requirePrincipal(c *gin.Context) (security.Principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok || p.Subject == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return security.Principal{}, false
	}
	return p, true
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
