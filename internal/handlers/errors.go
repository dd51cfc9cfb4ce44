package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"taskdesk/backend/internal/logger"
	"taskdesk/backend/internal/repositories"
	"taskdesk/backend/internal/services"
)

type ErrorResponse struct {
	Error   string `json:"error" example:"not_found"`
	Message string `json:"message" example:"task not found"`
}

// handleStoreError maps repository and service errors onto HTTP responses.
// Anything unrecognised is a 500 with a generic message; the cause is logged.
func handleStoreError(c *gin.Context, log logger.Logger, resource string, err error) {
	switch {
	case errors.Is(err, repositories.ErrValidation):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_failed", Message: validationMessage(err)})
	case errors.Is(err, repositories.ErrNotFoundOrForbidden), errors.Is(err, repositories.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: resource + " not found"})
	case errors.Is(err, repositories.ErrDuplicate):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "already_exists", Message: resource + " with that username or email already exists"})
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "conflict", Message: resource + " refers to an account that no longer exists"})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid_credentials", Message: "Invalid email or password"})
	default:
		_ = c.Error(err)
		log.Error("request failed", map[string]interface{}{
			"resource": resource,
			"path":     c.FullPath(),
			"error":    err.Error(),
		})
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "failed to process " + resource + " request"})
	}
}

func validationMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), repositories.ErrValidation.Error()+": ")
	if msg == "" {
		return repositories.ErrValidation.Error()
	}
	return msg
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: message})
}

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func currentUserID(c *gin.Context) (int64, bool) {
	value, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated", Message: "User not authenticated"})
		return 0, false
	}
	id, ok := value.(int64)
	if !ok || id <= 0 {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Invalid user ID format"})
		return 0, false
	}
	return id, true
}
