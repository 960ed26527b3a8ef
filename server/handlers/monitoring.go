package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ckuserver/database"
)

// MonitoringHandler exposes the liveness endpoint.
type MonitoringHandler struct {
	db        *database.DB
	startedAt time.Time
	version   string
}

// NewMonitoringHandler creates the handler. db may be nil for tests
// without a store.
func NewMonitoringHandler(db *database.DB, version string) *MonitoringHandler {
	return &MonitoringHandler{
		db:        db,
		startedAt: time.Now(),
		version:   version,
	}
}

// HandleHealthGin handles GET /health. The database is pinged so a
// wedged store turns the probe red.
func (h *MonitoringHandler) HandleHealthGin(c *gin.Context) {
	status := "ok"
	dbStatus := "ok"
	code := http.StatusOK

	if h.db != nil {
		if err := h.db.Ping(c.Request.Context()); err != nil {
			status = "degraded"
			dbStatus = err.Error()
			code = http.StatusServiceUnavailable
		}
	} else {
		dbStatus = "not configured"
	}

	c.JSON(code, gin.H{
		"status":         status,
		"database":       dbStatus,
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}
