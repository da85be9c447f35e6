// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/makhaen-survey/makhaen-go/internal/domain/survey"
)

// apiError writes the {status:"error"} envelope used by the /api routes and
// returns the status it chose.
func apiError(c *gin.Context, err error) int {
	status, message := classify(err)
	c.JSON(status, gin.H{"status": "error", "message": message})
	return status
}

// classify maps a domain error to an HTTP status and a client-safe message.
func classify(err error) (int, string) {
	var verr *survey.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, survey.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, survey.ErrAuthFailure):
		return http.StatusForbidden, "login required"
	case errors.Is(err, survey.ErrUnauthorized):
		return http.StatusForbidden, "not permitted to modify this record"
	case errors.Is(err, survey.ErrNotFound):
		return http.StatusNotFound, "record not found"
	case errors.Is(err, survey.ErrStorage):
		return http.StatusInternalServerError, survey.PublicMessage(err)
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
