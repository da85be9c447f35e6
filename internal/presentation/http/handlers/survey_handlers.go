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

// SurveyHandlers contains the upload, delete and single-record API handlers
type SurveyHandlers struct {
	ingestionService *services.IngestionService
	surveyService    *services.SurveyService
	settings         *config.Settings
	logger           *logging.ChanneledLogger
}

// NewSurveyHandlers creates survey handlers with injected dependencies
func NewSurveyHandlers(ingestionService *services.IngestionService, surveyService *services.SurveyService, settings *config.Settings, logger *logging.ChanneledLogger) *SurveyHandlers {
	return &SurveyHandlers{
		ingestionService: ingestionService,
		surveyService:    surveyService,
		settings:         settings,
		logger:           logger,
	}
}

// PostUpload handles POST /api/upload - multipart image plus coordinates.
func (h *SurveyHandlers) PostUpload(c *gin.Context) {
	start := time.Now()
	identity := middleware.GetIdentity(c)
	h.logger.Survey().Debug("Received upload request", "user", identity.Username, "contentLength", c.Request.ContentLength)

	if h.settings.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.settings.MaxUploadBytes)
	}

	var req services.UploadRequest
	var maxErr *http.MaxBytesError
	fileHeader, err := c.FormFile("image")
	switch {
	case err == nil:
		file, openErr := fileHeader.Open()
		if openErr != nil {
			apiError(c, survey.StorageError("read upload", openErr))
			return
		}
		defer file.Close()
		req.Fields.FileName = fileHeader.Filename
		req.Image = file
	case errors.As(err, &maxErr):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"status": "error", "message": "upload too large"})
		return
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		// ParseSubmission reports the missing image.
	default:
		apiError(c, survey.NewValidationError("image", "malformed multipart body"))
		return
	}

	req.Fields.Lat = c.PostForm("lat")
	req.Fields.Lng = c.PostForm("lng")
	req.Fields.Accuracy = c.PostForm("accuracy")
	req.Fields.Prediction = c.PostForm("prediction")
	req.Fields.Confidence = c.PostForm("confidence")

	result, err := h.ingestionService.Ingest(c.Request.Context(), identity, req)
	if err != nil {
		status := apiError(c, err)
		h.logger.Survey().Info("Upload rejected", "status", status, "error", err.Error(), "duration", time.Since(start))
		return
	}

	h.logger.Survey().Info("Upload stored", "file", result.FileName, "id", result.Record.ID, "duration", time.Since(start))
	c.JSON(http.StatusOK, gin.H{"status": "success", "filename": result.FileName})
}

// PostDelete handles POST /api/delete/:id
func (h *SurveyHandlers) PostDelete(c *gin.Context) {
	start := time.Now()
	id, ok := parseID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid record id"})
		return
	}

	identity := middleware.GetIdentity(c)
	if err := h.surveyService.Delete(c.Request.Context(), identity, id); err != nil {
		status := apiError(c, err)
		h.logger.Survey().Info("Delete rejected", "id", id, "status", status, "error", err.Error(), "duration", time.Since(start))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// GetSurvey handles GET /api/surveys/:id
func (h *SurveyHandlers) GetSurvey(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid record id"})
		return
	}
	rec, err := h.surveyService.Get(c.Request.Context(), id)
	if err != nil {
		if status := apiError(c, err); status >= http.StatusInternalServerError {
			h.logger.Survey().Error("Survey lookup failed", "id", id, "error", err.Error())
		}
		return
	}
	c.JSON(http.StatusOK, rec)
}
