package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/mapscout/jobs"
	"github.com/use-agent/mapscout/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// SessionCounter reports the number of browser pages currently open.
type SessionCounter interface {
	ActiveSessions() int
}

// Health returns a handler for GET /api/health. sessions may be nil.
//
// Reports "degraded" while jobs are waiting for a free pipeline slot or the
// job store cannot be read.
func Health(mgr *jobs.Manager, sessions SessionCounter, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := mgr.Stats()

		status := "healthy"
		if stats.Queued > 0 {
			status = "degraded"
		}
		total, err := mgr.Count(c.Request.Context())
		if err != nil {
			slog.Warn("health: counting jobs failed", "error", err)
			status = "degraded"
			total = stats.Submitted
		}

		active := 0
		if sessions != nil {
			active = sessions.ActiveSessions()
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:         status,
			Uptime:         time.Since(startTime).Round(time.Second).String(),
			RunningJobs:    stats.Running,
			TotalJobs:      total,
			ActiveSessions: active,
			Version:        Version,
		})
	}
}
