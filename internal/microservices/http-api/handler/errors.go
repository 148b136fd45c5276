package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"cinecircle/internal/microservices/http-api/middleware"
	"cinecircle/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
)

// respondError maps service sentinels to status codes. Anything unrecognised
// is logged and reported as a bare 500.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMessageNotFound),
		errors.Is(err, service.ErrNotificationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrMissingParticipant),
		errors.Is(err, service.ErrInvalidReply),
		errors.Is(err, service.ErrEmptyReaction):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		slog.Error("request_failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// requireUser reads the id AuthMiddleware stored on the context.
func requireUser(c *gin.Context) (string, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return "", false
	}
	return userID, true
}

// queryInt parses an integer query parameter, falling back to def when it is
// absent or malformed.
func queryInt(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}
