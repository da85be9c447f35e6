package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/makhaen-survey/makhaen-go/internal/application/services"
	"github.com/makhaen-survey/makhaen-go/internal/domain/survey"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
	"github.com/makhaen-survey/makhaen-go/internal/presentation/http/middleware"
	"github.com/makhaen-survey/makhaen-go/pkg/config"
)

// AuthHandlers contains all authentication-related HTTP handlers
type AuthHandlers struct {
	authService *services.AuthService
	settings    *config.Settings
	logger      *logging.ChanneledLogger
}

// NewAuthHandlers creates auth handlers with injected dependencies
func NewAuthHandlers(authService *services.AuthService, settings *config.Settings, logger *logging.ChanneledLogger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		settings:    settings,
		logger:      logger,
	}
}

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// GetLogin handles GET /login
func (h *AuthHandlers) GetLogin(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"error": false})
}

// PostLogin handles POST /login with a form or JSON body.
func (h *AuthHandlers) PostLogin(c *gin.Context) {
	start := time.Now()
	h.logger.Auth().Debug("Received login request", "method", c.Request.Method, "path", c.Request.URL.Path)

	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": true})
		return
	}

	current := middleware.GetIdentity(c)
	session, err := h.authService.Login(c.Request.Context(), c.ClientIP(), req.Username, req.Password, current.VisitorToken)
	if err != nil {
		if errors.Is(err, survey.ErrAuthFailure) {
			h.logger.Auth().Info("Login rejected", "duration", time.Since(start), "throttled", errors.Is(err, services.ErrThrottled))
			c.JSON(http.StatusUnauthorized, gin.H{"error": true})
			return
		}
		h.logger.Auth().Error("Login failed", "error", err.Error(), "duration", time.Since(start))
		c.JSON(http.StatusInternalServerError, gin.H{"error": true})
		return
	}

	middleware.SetSessionCookie(c, h.settings.SessionCookie, session, h.settings.SecureCookies)
	h.logger.Auth().Info("Login completed", "user", session.Identity.Username, "duration", time.Since(start))
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

// Logout handles GET /logout
func (h *AuthHandlers) Logout(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	middleware.ClearSessionCookie(c, h.settings.SessionCookie, h.settings.SecureCookies)
	if identity.Authenticated() {
		h.logger.LogAuthOperation("logout", identity.Username, true, nil)
	}
	c.Redirect(http.StatusFound, "/")
}
