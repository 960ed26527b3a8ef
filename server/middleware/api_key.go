package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// GinAPIKeyMiddleware guards an endpoint with a shared secret carried
// in the x-api-key header. With an empty configured key the guard is
// disabled. Rejection happens before any persistence.
func GinAPIKeyMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		provided := c.GetHeader("x-api-key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			slog.Warn("Rejected request with bad api key",
				"request_id", GetRequestIDFromGin(c),
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP(),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"ok":        false,
				"error":     "unauthorized",
				"requestId": GetRequestIDFromGin(c),
			})
			return
		}

		c.Next()
	}
}
