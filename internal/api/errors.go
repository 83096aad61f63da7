package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/raphaelgruber/helix/internal/placement"
	"github.com/raphaelgruber/helix/internal/service"
	"github.com/raphaelgruber/helix/internal/status"
)

// AppError carries the HTTP status a failure should be answered with.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func badRequest(message string, err error) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: message, Err: err}
}

// mapError turns domain errors into an AppError.
func mapError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, status.ErrBatchNotFound):
		return &AppError{Code: http.StatusNotFound, Message: "process not found", Err: err}
	case errors.Is(err, placement.ErrNotFound):
		return &AppError{Code: http.StatusNotFound, Message: "file not found", Err: err}
	case errors.Is(err, service.ErrInvalidOwner):
		return badRequest("invalid user id", err)
	case errors.Is(err, service.ErrNoItems):
		return badRequest("nothing to process", err)
	case errors.Is(err, placement.ErrReservedExtension):
		return badRequest(".meta files cannot be uploaded", err)
	}
	return &AppError{Code: http.StatusInternalServerError, Message: "internal server error", Err: err}
}

func (s *Server) handleError(c *gin.Context, err error) {
	appErr := mapError(err)
	if appErr.Code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(appErr.Code, gin.H{"error": appErr.Message})
}
