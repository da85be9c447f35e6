// Package middleware provides HTTP middleware for the presentation layer.
package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/makhaen-survey/makhaen-go/internal/application/services"
	"github.com/makhaen-survey/makhaen-go/internal/domain/survey"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
)

const identityKey = "identity"

// IdentityMiddleware resolves the session cookie into an Identity and binds
// it to both the gin context and the request context. A missing or invalid
// cookie yields a guest; the request always continues.
func IdentityMiddleware(auth *services.AuthService, cookieName string, logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		identity := survey.Guest()
		if token, err := c.Cookie(cookieName); err == nil && token != "" {
			resolved, ok := auth.ResolveSession(token)
			if ok {
				identity = resolved
			} else {
				logger.Auth().Debug("Ignoring invalid session cookie", "path", c.Request.URL.Path)
			}
		}

		c.Set(identityKey, identity)
		c.Request = c.Request.WithContext(survey.WithIdentity(c.Request.Context(), identity))

		logger.Auth().Debug("Identity resolved",
			"user", identity.Username,
			"role", identity.Role,
			"duration", time.Since(start),
		)
		c.Next()
	}
}

// GetIdentity returns the identity bound by IdentityMiddleware, or a guest.
func GetIdentity(c *gin.Context) survey.Identity {
	if v, exists := c.Get(identityKey); exists {
		if id, ok := v.(survey.Identity); ok {
			return id
		}
	}
	return survey.IdentityFromContext(c.Request.Context())
}

// SetSessionCookie writes session as an HttpOnly cookie.
func SetSessionCookie(c *gin.Context, cookieName string, session *services.Session, secure bool) {
	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookieName, session.Token, maxAge, "/", "", secure, true)
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(c *gin.Context, cookieName string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookieName, "", -1, "/", "", secure, true)
}
