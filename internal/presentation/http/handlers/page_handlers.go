package handlers

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/makhaen-survey/makhaen-go/internal/application/services"
	"github.com/makhaen-survey/makhaen-go/internal/domain/survey"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
	"github.com/makhaen-survey/makhaen-go/internal/presentation/http/middleware"
	"github.com/makhaen-survey/makhaen-go/pkg/config"
)

// PageHandlers serve the landing, dashboard, archive and admin views as JSON.
type PageHandlers struct {
	authService     *services.AuthService
	presenceService *services.PresenceService
	statsService    *services.StatsService
	surveyService   *services.SurveyService
	accounts        survey.AccountRepository
	settings        *config.Settings
	logger          *logging.ChanneledLogger
}

// NewPageHandlers creates page handlers with injected dependencies
func NewPageHandlers(
	authService *services.AuthService,
	presenceService *services.PresenceService,
	statsService *services.StatsService,
	surveyService *services.SurveyService,
	accounts survey.AccountRepository,
	settings *config.Settings,
	logger *logging.ChanneledLogger,
) *PageHandlers {
	return &PageHandlers{
		authService:     authService,
		presenceService: presenceService,
		statsService:    statsService,
		surveyService:   surveyService,
		accounts:        accounts,
		settings:        settings,
		logger:          logger,
	}
}

// Landing handles GET / - records the visitor heartbeat and returns the counters.
func (h *PageHandlers) Landing(c *gin.Context) {
	start := time.Now()
	ctx := c.Request.Context()
	identity := middleware.GetIdentity(c)

	token, _ := h.presenceService.Touch(ctx, identity.VisitorToken)
	if token != identity.VisitorToken {
		identity.VisitorToken = token
		if session, err := h.authService.IssueSession(identity); err == nil {
			middleware.SetSessionCookie(c, h.settings.SessionCookie, session, h.settings.SecureCookies)
		}
	}

	stats, err := h.statsService.Landing(ctx)
	if err != nil {
		h.logger.Survey().Error("Failed to load landing stats", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load statistics"})
		return
	}

	online, err := h.presenceService.CountOnline(ctx)
	if err != nil {
		online = 0
	}
	if h.settings.PresenceFloorOne && online < 1 {
		online = 1
	}

	h.logger.Presence().Debug("Landing served", "online", online, "duration", time.Since(start))
	c.JSON(http.StatusOK, gin.H{
		"totalImages":  stats.TotalRecords,
		"totalMarkers": stats.TotalRecords,
		"totalUsers":   stats.TotalUsers,
		"onlineUsers":  online,
	})
}

// Dashboard handles GET /dashboard. Guests need ?view_only=true; otherwise
// they are sent to /login. With a valid lat/lng pair the records are ordered
// by distance from that point.
func (h *PageHandlers) Dashboard(c *gin.Context) {
	start := time.Now()
	identity := middleware.GetIdentity(c)
	isGuest := c.Query("view_only") == "true"

	if !identity.Authenticated() && !isGuest {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	var targetLat, targetLng *string
	if v, ok := c.GetQuery("lat"); ok {
		targetLat = &v
	}
	if v, ok := c.GetQuery("lng"); ok {
		targetLng = &v
	}

	var data any
	lat, lng, focused := parseTarget(targetLat, targetLng)
	if focused {
		placed, err := h.surveyService.Nearest(c.Request.Context(), lat, lng, 0)
		if err != nil {
			h.pageError(c, "dashboard", err)
			return
		}
		data = placed
	} else {
		records, err := h.surveyService.ListAll(c.Request.Context(), identity)
		if err != nil {
			h.pageError(c, "dashboard", err)
			return
		}
		data = records
	}

	user := identity.Username
	if user == "" {
		user = "Guest"
	}
	h.logger.Survey().Debug("Dashboard served", "user", identity.Username, "focused", focused, "duration", time.Since(start))
	c.JSON(http.StatusOK, gin.H{
		"role":      identity.Role,
		"user":      user,
		"isGuest":   isGuest,
		"data":      data,
		"targetLat": targetLat,
		"targetLng": targetLng,
	})
}

// Archive handles GET /archive
func (h *PageHandlers) Archive(c *gin.Context) {
	records, err := h.surveyService.ListAll(c.Request.Context(), middleware.GetIdentity(c))
	if err != nil {
		h.pageError(c, "archive", err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// AdminReports handles GET /admin/reports
func (h *PageHandlers) AdminReports(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	if !survey.IsAdmin(identity) {
		c.Redirect(http.StatusFound, "/login")
		return
	}
	records, err := h.surveyService.ListAll(c.Request.Context(), identity)
	if err != nil {
		h.pageError(c, "admin reports", err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// AdminUsers handles GET /admin/users
func (h *PageHandlers) AdminUsers(c *gin.Context) {
	if !survey.IsAdmin(middleware.GetIdentity(c)) {
		c.Redirect(http.StatusFound, "/login")
		return
	}
	accounts, err := h.accounts.List(c.Request.Context())
	if err != nil {
		h.pageError(c, "admin users", err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

func (h *PageHandlers) pageError(c *gin.Context, view string, err error) {
	status, message := classify(err)
	h.logger.Survey().Error("View failed", "view", view, "status", status, "error", err.Error())
	c.JSON(status, gin.H{"error": message})
}

func parseTarget(latRaw, lngRaw *string) (float64, float64, bool) {
	if latRaw == nil || lngRaw == nil {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(*latRaw, 64)
	if err != nil || math.IsNaN(lat) || lat < -90 || lat > 90 {
		return 0, 0, false
	}
	lng, err := strconv.ParseFloat(*lngRaw, 64)
	if err != nil || math.IsNaN(lng) || lng < -180 || lng > 180 {
		return 0, 0, false
	}
	return lat, lng, true
}
