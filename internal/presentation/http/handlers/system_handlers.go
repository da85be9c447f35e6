package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/makhaen-survey/makhaen-go/internal/domain/survey"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/persistence/database"
	"github.com/makhaen-survey/makhaen-go/internal/presentation/http/middleware"
)

// SystemHandlers serve the health probe and the admin log level controls.
type SystemHandlers struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSystemHandlers creates system handlers with injected dependencies
func NewSystemHandlers(db *database.DB, logger *logging.ChanneledLogger) *SystemHandlers {
	return &SystemHandlers{db: db, logger: logger}
}

// Healthz handles GET /healthz
func (h *SystemHandlers) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Database().Error("Health check failed", "error", err.Error())
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": h.db.Driver, "pingMs": time.Since(start).Milliseconds()})
}

// GetLogLevels handles GET /admin/logs/levels
func (h *SystemHandlers) GetLogLevels(c *gin.Context) {
	if !survey.IsAdmin(middleware.GetIdentity(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin only"})
		return
	}
	c.JSON(http.StatusOK, h.logger.GetChannelLevels())
}

// SetLogLevel handles POST /admin/logs/levels - sets the level of one channel.
func (h *SystemHandlers) SetLogLevel(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	if !survey.IsAdmin(identity) {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin only"})
		return
	}

	var req struct {
		Channel string `json:"channel" binding:"required"`
		Level   string `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	switch strings.ToUpper(req.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid log level specified"})
		return
	}
	level := logging.ParseLevel(req.Level)

	if err := h.logger.SetChannelLevel(logging.Channel(req.Channel), level); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to set log level", "details": err.Error()})
		return
	}
	h.logger.System().Info("Log level changed", "channel", req.Channel, "level", level.String(), "by", identity.Username)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": fmt.Sprintf("Log level for channel '%s' set to '%s'", req.Channel, level.String())})
}
