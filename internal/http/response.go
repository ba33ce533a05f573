package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"course-auth/internal/backup"
	"course-auth/internal/service"
)

const internalErrorMessage = "internal server error"

// envelope is the body shape of every response.
type envelope struct {
	Success bool                 `json:"success"`
	Data    any                  `json:"data,omitempty"`
	Message string               `json:"message,omitempty"`
	Errors  []service.FieldError `json:"errors,omitempty"`
}

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Success: true, Data: data})
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, envelope{Success: true, Message: message})
}

func respondFailure(c *gin.Context, status int, message string, fields ...service.FieldError) {
	c.AbortWithStatusJSON(status, envelope{Success: false, Message: message, Errors: fields})
}

// statusFromError maps domain errors to HTTP status codes.
func statusFromError(err error) int {
	var verr *service.ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrDuplicateIdentity):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, backup.ErrDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a failure envelope. Causes of 5xx responses
// are logged and replaced by a generic message.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFromError(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		h.logger.WithFields(logrus.Fields{
			"request_id": c.GetString(requestIDKey),
			"path":       c.FullPath(),
		}).WithError(err).Error("request failed")
		respondFailure(c, status, internalErrorMessage)
		return
	}

	var verr *service.ValidationError
	if errors.As(err, &verr) {
		message := "validation failed"
		if verr.Kind != nil {
			message = verr.Kind.Error()
		}
		respondFailure(c, status, message, verr.Fields...)
		return
	}
	respondFailure(c, status, err.Error())
}
