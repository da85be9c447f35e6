// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/makhaen-survey/makhaen-go/internal/application/container"
	"github.com/makhaen-survey/makhaen-go/internal/presentation/http/handlers"
	"github.com/makhaen-survey/makhaen-go/internal/presentation/http/middleware"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestMiddleware(container.Logger, container.Metrics))
	r.Use(middleware.CORSMiddleware(container.Settings.CORSOrigins))
	r.Use(middleware.IdentityMiddleware(container.AuthService, container.Settings.SessionCookie, container.Logger))

	if container.Settings.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = container.Settings.MaxUploadBytes
	}

	r.Static("/uploads", container.Files.Dir())

	// Initialize handlers
	pageHandlers := handlers.NewPageHandlers(
		container.AuthService,
		container.PresenceService,
		container.StatsService,
		container.SurveyService,
		container.Accounts,
		container.Settings,
		container.Logger,
	)
	authHandlers := handlers.NewAuthHandlers(container.AuthService, container.Settings, container.Logger)
	surveyHandlers := handlers.NewSurveyHandlers(container.IngestionService, container.SurveyService, container.Settings, container.Logger)
	liveHandlers := handlers.NewLiveHandlers(container.LiveHub, container.Settings.CORSOrigins, container.Logger)
	systemHandlers := handlers.NewSystemHandlers(container.DB, container.Logger)

	// Views
	r.GET("/", pageHandlers.Landing)
	r.GET("/login", authHandlers.GetLogin)
	r.POST("/login", authHandlers.PostLogin)
	r.GET("/logout", authHandlers.Logout)
	r.GET("/dashboard", pageHandlers.Dashboard)
	r.GET("/archive", pageHandlers.Archive)

	admin := r.Group("/admin")
	{
		admin.GET("/reports", pageHandlers.AdminReports)
		admin.GET("/users", pageHandlers.AdminUsers)
		admin.GET("/logs/levels", systemHandlers.GetLogLevels)
		admin.POST("/logs/levels", systemHandlers.SetLogLevel)
	}

	api := r.Group("/api")
	{
		api.POST("/upload", surveyHandlers.PostUpload)
		api.POST("/delete/:id", surveyHandlers.PostDelete)
		api.GET("/surveys/:id", surveyHandlers.GetSurvey)
	}

	r.GET("/ws/live", liveHandlers.ServeLive)
	r.GET("/healthz", systemHandlers.Healthz)
	r.GET("/metrics", gin.WrapH(container.Metrics.Handler()))

	return r
}
