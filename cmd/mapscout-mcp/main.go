package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/mapscout/models"
)

// pollInterval is how often a submitted job is checked.
var pollInterval = 2 * time.Second

func main() {
	apiURL := os.Getenv("MAPSCOUT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiURL = strings.TrimRight(apiURL, "/")

	s := server.NewMCPServer(
		"mapscout",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	findTool := mcp.NewTool("find_businesses",
		mcp.WithDescription("Search Google Maps for businesses matching a query in a location and return their name, address, website, phone, rating and opening hours. Scraping runs in a headless browser and can take a few minutes."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What to search for, e.g. 'bakeries' or 'dentists'"),
		),
		mcp.WithString("location",
			mcp.Required(),
			mcp.Description("Where to search, e.g. 'Boston, MA'"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of businesses to return (default: 10, max: 100)"),
		),
	)
	s.AddTool(findTool, handleFindBusinesses(apiURL))

	getJobTool := mcp.NewTool("get_job",
		mcp.WithDescription("Fetch the current state of a scraping job by id, including its businesses once completed."),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job id returned when the search was started"),
		),
	)
	s.AddTool(getJobTool, handleGetJob(apiURL))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the mapscout API and returns the status
// code and response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, path string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	return resp.StatusCode, b, err
}

// getJob fetches a job.
func getJob(ctx context.Context, client *http.Client, apiURL, id string) (*models.Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"/api/jobs/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, body)
	}

	var job models.Job
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("parse job: %w", err)
	}
	return &job, nil
}

// pollJob polls a job until its status is terminal or ctx is cancelled.
func pollJob(ctx context.Context, client *http.Client, apiURL, id string) (*models.Job, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			job, err := getJob(ctx, client, apiURL, id)
			if err != nil {
				return nil, err
			}
			if job.Status.Terminal() {
				return job, nil
			}
		}
	}
}

func apiError(status int, body []byte) error {
	var e models.ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil || e.Code == "" {
		return fmt.Errorf("API returned status %d", status)
	}
	return fmt.Errorf("[%s] %s", e.Code, e.Error)
}

func handleFindBusinesses(apiURL string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}
		location, err := request.RequireString("location")
		if err != nil {
			return mcp.NewToolResultError("location is required"), nil
		}

		payload := models.ScrapeRequest{
			Query:    query,
			Location: location,
			Limit:    request.GetInt("limit", 0),
		}

		status, respBody, err := apiPost(ctx, client, apiURL, "/api/scrape", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("scrape request failed: %v", err)), nil
		}
		if status != http.StatusCreated {
			return mcp.NewToolResultError(apiError(status, respBody).Error()), nil
		}

		var created models.ScrapeResponse
		if err := json.Unmarshal(respBody, &created); err != nil || created.JobID == "" {
			return mcp.NewToolResultError("scraping job creation failed"), nil
		}

		job, err := pollJob(ctx, client, apiURL, created.JobID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling job %s failed: %v", created.JobID, err)), nil
		}
		if job.Status == models.JobFailed {
			return mcp.NewToolResultError(fmt.Sprintf("job %s failed: %s", job.ID, job.Error)), nil
		}

		return mcp.NewToolResultText(formatJob(job)), nil
	}
}

func handleGetJob(apiURL string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("job_id")
		if err != nil {
			return mcp.NewToolResultError("job_id is required"), nil
		}

		job, err := getJob(ctx, client, apiURL, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatJob(job)), nil
	}
}

// formatJob renders a job as plain text for the model.
func formatJob(job *models.Job) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Job %s: %s (%q in %q, limit %d)\n", job.ID, job.Status, job.Query, job.Location, job.Limit)

	switch job.Status {
	case models.JobFailed:
		fmt.Fprintf(&sb, "Error: %s\n", job.Error)
		return sb.String()
	case models.JobPending:
		sb.WriteString("Scraping is still in progress.\n")
		return sb.String()
	}

	fmt.Fprintf(&sb, "%d businesses found\n", job.ResultsCount)
	for i, b := range job.Businesses {
		fmt.Fprintf(&sb, "\n--- [%d] %s ---\n", i+1, b.Name)
		writeLine(&sb, "Category", b.StoreType)
		writeLine(&sb, "Address", b.Address)
		writeLine(&sb, "Phone", b.Phone)
		writeLine(&sb, "Website", b.Website)
		if b.AverageRating != nil {
			reviews := 0.0
			if b.ReviewCount != nil {
				reviews = *b.ReviewCount
			}
			fmt.Fprintf(&sb, "Rating: %.1f (%.0f reviews)\n", *b.AverageRating, reviews)
		}
		writeLine(&sb, "Hours", b.OpeningHours)
		writeLine(&sb, "About", b.Introduction)
	}
	return sb.String()
}

func writeLine(sb *strings.Builder, label, value string) {
	if value != "" {
		fmt.Fprintf(sb, "%s: %s\n", label, value)
	}
}
