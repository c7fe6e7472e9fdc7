package models

// ScrapeRequest is the payload for POST /api/scrape.
type ScrapeRequest struct {
	// Query is the search term, e.g. "bakeries". Required, non-blank.
	Query string `json:"query"`

	// Location narrows the search, e.g. "Boston". Required, non-blank.
	Location string `json:"location"`

	// Limit is the desired number of businesses.
	// Values <= 0 use the default of 10.
	Limit int `json:"limit,omitempty"`

	// MaxAge lets the job reuse a completed result for the same
	// query/location/limit that is younger than MaxAge milliseconds.
	// Default: 0 (always scrape).
	MaxAge int `json:"maxAge,omitempty" binding:"omitempty,min=0"`

	// WebhookURL receives a job.completed or job.failed event.
	WebhookURL string `json:"webhookUrl,omitempty" binding:"omitempty,url"`

	// WebhookSecret signs the webhook body with HMAC-SHA256.
	WebhookSecret string `json:"webhookSecret,omitempty"`
}
