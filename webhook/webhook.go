package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/mapscout/models"
)

// Event types.
const (
	EventJobCompleted = "job.completed"
	EventJobFailed    = "job.failed"
)

// SignatureHeader carries "sha256=<hex>" when a secret is configured.
const SignatureHeader = "X-Mapscout-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string      `json:"type"`
	JobID     string      `json:"jobId"`
	Timestamp int64       `json:"timestamp"`
	Data      *JobPayload `json:"data"`
}

// JobPayload is the terminal state of a job as seen by a webhook receiver.
// Businesses are only sent for completed jobs, Error only for failed ones.
type JobPayload struct {
	Status       models.JobStatus  `json:"status"`
	Query        string            `json:"query"`
	Location     string            `json:"location"`
	Limit        int               `json:"limit"`
	ResultsCount int               `json:"resultsCount"`
	Businesses   []models.Business `json:"businesses,omitempty"`
	Error        string            `json:"error,omitempty"`
	StartedAt    time.Time         `json:"startedAt"`
	CompletedAt  *time.Time        `json:"completedAt,omitempty"`
}

// NewJobEvent builds the job.completed or job.failed event for a terminal
// job. The timestamp is the job's completion time.
func NewJobEvent(job *models.Job) *Event {
	eventType := EventJobCompleted
	if job.Status == models.JobFailed {
		eventType = EventJobFailed
	}
	ts := time.Now()
	if job.CompletedAt != nil {
		ts = *job.CompletedAt
	}
	return &Event{
		Type:      eventType,
		JobID:     job.ID,
		Timestamp: ts.Unix(),
		Data: &JobPayload{
			Status:       job.Status,
			Query:        job.Query,
			Location:     job.Location,
			Limit:        job.Limit,
			ResultsCount: job.ResultsCount,
			Businesses:   job.Businesses,
			Error:        job.Error,
			StartedAt:    job.StartedAt,
			CompletedAt:  job.CompletedAt,
		},
	}
}

// retryDelays are the waits before each delivery attempt.
var retryDelays = []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether header carries the signature of body under secret.
// Receivers use it to authenticate deliveries.
func Verify(secret string, body []byte, header string) bool {
	want := "sha256=" + Sign(secret, body)
	return hmac.Equal([]byte(header), []byte(want))
}

// Deliver sends a webhook event synchronously.
// The request body is signed with HMAC-SHA256 if secret is non-empty.
func Deliver(ctx context.Context, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mapscout-Webhook/1.0")

	if secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(secret, body))
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverAsync sends a webhook event asynchronously with up to 3 retries.
// Retry intervals: 1s, 5s, 30s.
func DeliverAsync(url, secret string, event *Event) {
	go func() {
		for attempt, delay := range retryDelays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := Deliver(ctx, url, secret, event)
			cancel()
			if err == nil {
				slog.Info("webhook delivered",
					"url", url,
					"event", event.Type,
					"job_id", event.JobID,
					"attempt", attempt+1,
				)
				return
			}
			slog.Warn("webhook delivery failed",
				"url", url,
				"event", event.Type,
				"job_id", event.JobID,
				"attempt", attempt+1,
				"error", err,
			)
		}
		slog.Error("webhook delivery exhausted all retries",
			"url", url,
			"event", event.Type,
			"job_id", event.JobID,
		)
	}()
}
