package models

// ScrapeResponse is the immediate response for POST /api/scrape.
type ScrapeResponse struct {
	Message string `json:"message"`
	JobID   string `json:"jobId"`
}

// PendingResponse is returned by GET /api/jobs/:id/businesses while the
// job is still running.
type PendingResponse struct {
	Status  JobStatus `json:"status"`
	Message string    `json:"message"`
}

// BusinessesResponse is returned by GET /api/jobs/:id/businesses once the
// job has completed.
type BusinessesResponse struct {
	Status     JobStatus  `json:"status"`
	Businesses []Business `json:"businesses"`
	Total      int        `json:"total"`
}

// HealthResponse is the response for GET /api/health.
type HealthResponse struct {
	Status         string `json:"status"` // "healthy" or "degraded"
	Uptime         string `json:"uptime"`
	RunningJobs    int    `json:"runningJobs"`
	TotalJobs      int    `json:"totalJobs"`
	ActiveSessions int    `json:"activeSessions"`
	Version        string `json:"version"`
}
