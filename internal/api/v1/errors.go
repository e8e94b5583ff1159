package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/evmtrack/evmtrack/internal/errors"
	"github.com/evmtrack/evmtrack/internal/logger"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error         string   `json:"error"`
	Message       string   `json:"message"`
	Code          int      `json:"code"`
	CorrelationID string   `json:"correlation_id"` // Unique identifier for tracking this error
	Errors        []string `json:"errors,omitempty"`
}

// statusFor maps an error category to its HTTP status.
func statusFor(category errors.ErrorCategory) int {
	switch category {
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryWrongType, errors.CategoryValidationBatch:
		return http.StatusUnprocessableEntity
	case errors.CategoryNotOwner:
		return http.StatusForbidden
	case errors.CategoryNotAvailable, errors.CategoryAlreadyInState, errors.CategoryInvalidState:
		return http.StatusConflict
	case errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes err as an ErrorResponse. Internal failures are logged
// with their detail and reported to the client without it.
func (c *Controller) HandleError(ctx echo.Context, err error, message string) error {
	category := errors.KindOf(err)
	code := statusFor(category)
	corr := logger.CorrelationID(ctx.Request().Context())

	resp := &ErrorResponse{
		Error:         string(category),
		Message:       err.Error(),
		Code:          code,
		CorrelationID: corr,
		Errors:        errors.BatchMessages(err),
	}

	log := c.logger.WithContext(ctx.Request().Context())
	fields := []logger.Field{
		logger.String("message", message),
		logger.String("category", string(category)),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()),
		logger.Error(err),
	}
	if code >= http.StatusInternalServerError {
		resp.Message = message
		log.Error("API Error", fields...)
	} else {
		log.Info("API request rejected", fields...)
	}

	return ctx.JSON(code, resp)
}

// badRequest reports a malformed request body or parameter.
func (c *Controller) badRequest(ctx echo.Context, message string) error {
	return c.HandleError(ctx, errors.ValidationError(message), message)
}
