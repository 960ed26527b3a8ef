package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "ckuserver/server/errors"
	"ckuserver/server/middleware"
)

// SendJSONResponse sends a JSON reply through the gin context.
func SendJSONResponse(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// SendJSONError sends a JSON error reply and logs it.
func SendJSONError(c *gin.Context, statusCode int, message string) {
	slog.Error("Gin HTTP error",
		"error", message,
		"status_code", statusCode,
		"request_id", middleware.GetRequestIDFromGin(c),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	)
	respondError(c, statusCode, message)
}

// respondError writes the error body shared by every failure mode.
func respondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"ok":        false,
		"error":     message,
		"requestId": middleware.GetRequestIDFromGin(c),
	})
}

// SendAppError maps an error onto its HTTP status. AppError carries its
// own status code and user facing message, anything else becomes a 500.
func SendAppError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		logHTTPError(c, appErr.StatusCode(), err)
		respondError(c, appErr.StatusCode(), appErr.UserMessage())
		return
	}
	logHTTPError(c, http.StatusInternalServerError, err)
	respondError(c, http.StatusInternalServerError, "internal server error")
}

// logHTTPError logs a failed request, unwrapping AppError for its
// internal cause and context when present.
func logHTTPError(c *gin.Context, statusCode int, err error) {
	reqID := middleware.GetRequestIDFromGin(c)

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		slog.Error("Gin HTTP error",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status_code", statusCode,
			"error", appErr.Err,
			"user_message", appErr.Message,
			"context", appErr.Context,
			"request_id", reqID,
		)
		return
	}
	slog.Error("Gin HTTP error",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status_code", statusCode,
		"error", err,
		"request_id", reqID,
	)
}

// queryInt reads an integer query parameter with a default.
func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
