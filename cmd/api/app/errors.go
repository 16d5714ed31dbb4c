package app

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/top-ti/inventory-go/internal/errs"
)

// Error represents a structured error response.
type Error struct {
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
}

// Envelope wraps successful data or an error.
type Envelope struct {
	Data  interface{} `json:"data,omitempty"`
	Error *Error      `json:"error,omitempty"`
}

// AbortError records an error and aborts the handler. The response will be
// rendered by the Errors middleware.
func AbortError(c *gin.Context, status int, code, message string, fields map[string]string) {
	c.Set("app_error", &Error{Code: code, Message: message, FieldErrors: fields})
	c.AbortWithStatus(status)
}

// Fail maps a service error from the shared taxonomy to an HTTP response.
func Fail(c *gin.Context, err error) {
	var vErr *errs.ValidationError
	var nfErr *errs.NotFoundError
	var dupErr *errs.DuplicateAssetNumberError
	var bigErr *errs.FileTooLargeError
	var convErr *errs.ConversionError
	var pErr *errs.PersistenceError
	switch {
	case errors.As(err, &vErr):
		AbortError(c, http.StatusBadRequest, "validation_failed", "validation failed", vErr.Fields)
	case errors.As(err, &nfErr):
		AbortError(c, http.StatusNotFound, "not_found", nfErr.Error(), nil)
	case errors.As(err, &dupErr):
		AbortError(c, http.StatusConflict, "duplicate_asset_number", dupErr.Error(), nil)
	case errors.As(err, &bigErr):
		AbortError(c, http.StatusRequestEntityTooLarge, "file_too_large", bigErr.Error(), nil)
	case errors.As(err, &convErr):
		AbortError(c, http.StatusConflict, "conversion_failed", convErr.Error(), nil)
	case errors.As(err, &pErr):
		AbortError(c, http.StatusServiceUnavailable, "persistence_unavailable", "storage backend unavailable", nil)
	default:
		AbortError(c, http.StatusInternalServerError, "internal", err.Error(), nil)
	}
}

// Errors emits a JSON error envelope and structured log entry when an error
// was recorded via AbortError.
func Errors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		v, ok := c.Get("app_error")
		if !ok {
			return
		}
		err, ok := v.(*Error)
		if !ok {
			return
		}
		status := c.Writer.Status()
		logger := log.Ctx(c.Request.Context()).Error().Str("code", err.Code)
		if err.FieldErrors != nil {
			for k, v := range err.FieldErrors {
				logger = logger.Str("field_"+k, v)
			}
		}
		logger.Msg(err.Message)
		c.JSON(status, Envelope{Error: err})
	}
}
