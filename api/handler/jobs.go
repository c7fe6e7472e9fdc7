package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/mapscout/jobs"
	"github.com/use-agent/mapscout/models"
)

// GetJob returns a handler for GET /api/jobs/:id.
func GetJob(mgr *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := mgr.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

// GetJobBusinesses returns a handler for GET /api/jobs/:id/businesses.
//
// A pending job answers 200 with a progress message, a completed job its
// businesses, and a failed job a 500 carrying the stored failure.
func GetJobBusinesses(mgr *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := mgr.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}

		switch job.Status {
		case models.JobCompleted:
			businesses := job.Businesses
			if businesses == nil {
				businesses = []models.Business{}
			}
			c.JSON(http.StatusOK, models.BusinessesResponse{
				Status:     job.Status,
				Businesses: businesses,
				Total:      job.ResultsCount,
			})
		case models.JobFailed:
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:  "Job failed: " + job.Error,
				Status: http.StatusInternalServerError,
				Code:   models.ErrCodeJobFailed,
			})
		default:
			c.JSON(http.StatusOK, models.PendingResponse{
				Status:  job.Status,
				Message: "Scraping is still in progress",
			})
		}
	}
}
