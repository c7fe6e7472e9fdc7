package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/mapscout/jobs"
	"github.com/use-agent/mapscout/models"
)

// Scrape returns a handler for POST /api/scrape.
//
// The job is validated and stored synchronously; scraping continues in the
// background and the caller polls GET /api/jobs/:id.
func Scrape(mgr *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err))
			return
		}

		job, err := mgr.Submit(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, models.ScrapeResponse{
			Message: "Scraping job started",
			JobID:   job.ID,
		})
	}
}

// respondError maps a ScrapeError to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error) {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, "Internal server error", err)
	}

	status := mapErrorToStatus(scrapeErr)
	c.JSON(status, models.ErrorResponse{
		Error:  scrapeErr.Message,
		Status: status,
		Code:   scrapeErr.Code,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeJobNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}
