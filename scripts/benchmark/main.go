package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/use-agent/mapscout/models"
)

// CLI flags
var (
	apiURL   = flag.String("api-url", "http://localhost:8080", "mapscout API base URL")
	runs     = flag.Int("runs", 3, "Number of runs per query for averaging")
	limit    = flag.Int("limit", 10, "Businesses requested per job")
	poll     = flag.Duration("poll", 2*time.Second, "Job polling interval")
	deadline = flag.Duration("deadline", 15*time.Minute, "Give up on a job after this long")
	output   = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Test queries covering dense and sparse result sets.
var testQueries = []struct {
	Label    string
	Query    string
	Location string
}{
	{"Dense", "coffee shops", "Manhattan, NY"},
	{"Medium", "bakeries", "Boston, MA"},
	{"Niche", "violin repair", "Portland, OR"},
	{"Sparse", "bike shops", "Truckee, CA"},
}

// --- Benchmark result types ---

type runResult struct {
	Run          int    `json:"run"`
	JobID        string `json:"job_id"`
	TimeToDoneMs int64  `json:"time_to_done_ms"`
	Polls        int    `json:"polls"`
	Results      int    `json:"results"`
	WithWebsite  int    `json:"with_website"`
	WithPhone    int    `json:"with_phone"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
}

type queryAverages struct {
	TimeToDoneMs float64 `json:"time_to_done_ms"`
	Results      float64 `json:"results"`
	FillRate     float64 `json:"fill_rate_percent"`
}

type queryResult struct {
	Label    string         `json:"label"`
	Query    string         `json:"query"`
	Location string         `json:"location"`
	Runs     []runResult    `json:"runs"`
	Averages *queryAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp    string        `json:"timestamp"`
	APIURL       string        `json:"api_url"`
	RunsPerQuery int           `json:"runs_per_query"`
	Limit        int           `json:"limit"`
	Results      []queryResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== mapscout Benchmark Suite ===")
	fmt.Printf("API URL:    %s\n", *apiURL)
	fmt.Printf("Runs/query: %d\n", *runs)
	fmt.Printf("Limit:      %d\n", *limit)
	fmt.Printf("Output:     %s\n", *output)
	fmt.Println()

	// Quick connectivity check.
	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure mapscout is running (e.g. go run ./cmd/mapscout)\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		APIURL:       *apiURL,
		RunsPerQuery: *runs,
		Limit:        *limit,
	}

	for _, q := range testQueries {
		fmt.Printf("Benchmarking [%s] %q in %q ...\n", q.Label, q.Query, q.Location)
		qr := queryResult{Label: q.Label, Query: q.Query, Location: q.Location}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkQuery(q.Query, q.Location, i)
			if rr.Success {
				fmt.Printf("OK  %dms  %d results\n", rr.TimeToDoneMs, rr.Results)
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			qr.Runs = append(qr.Runs, rr)
		}

		qr.Averages = computeAverages(qr.Runs, *limit)
		report.Results = append(report.Results, qr)
		fmt.Println()
	}

	// Print summary table.
	printTable(report.Results)

	// Write JSON report.
	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// benchmarkQuery submits one job and polls it until it is terminal.
func benchmarkQuery(query, location string, run int) runResult {
	rr := runResult{Run: run}
	client := &http.Client{Timeout: 30 * time.Second}

	bodyBytes, err := json.Marshal(models.ScrapeRequest{Query: query, Location: location, Limit: *limit})
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	start := time.Now()
	resp, err := client.Post(*apiURL+"/api/scrape", "application/json", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	var created models.ScrapeResponse
	err = json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	if err != nil || resp.StatusCode != http.StatusCreated {
		rr.Error = fmt.Sprintf("submit failed: status %d", resp.StatusCode)
		return rr
	}
	rr.JobID = created.JobID

	for time.Since(start) < *deadline {
		time.Sleep(*poll)
		rr.Polls++

		job, err := fetchJob(client, created.JobID)
		if err != nil {
			rr.Error = err.Error()
			return rr
		}
		if !job.Status.Terminal() {
			continue
		}

		rr.TimeToDoneMs = time.Since(start).Milliseconds()
		if job.Status == models.JobFailed {
			rr.Error = job.Error
			return rr
		}
		rr.Success = true
		rr.Results = job.ResultsCount
		for _, b := range job.Businesses {
			if b.Website != "" {
				rr.WithWebsite++
			}
			if b.Phone != "" {
				rr.WithPhone++
			}
		}
		return rr
	}

	rr.Error = fmt.Sprintf("job still pending after %s", *deadline)
	return rr
}

func fetchJob(client *http.Client, id string) (*models.Job, error) {
	resp, err := client.Get(*apiURL + "/api/jobs/" + id)
	if err != nil {
		return nil, fmt.Errorf("poll failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll failed: status %d", resp.StatusCode)
	}
	var job models.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("decode error: %w", err)
	}
	return &job, nil
}

func computeAverages(runs []runResult, limit int) *queryAverages {
	var successCount int
	var avg queryAverages

	for _, r := range runs {
		if !r.Success {
			continue
		}
		successCount++
		avg.TimeToDoneMs += float64(r.TimeToDoneMs)
		avg.Results += float64(r.Results)
	}

	if successCount == 0 {
		return nil
	}

	n := float64(successCount)
	avg.TimeToDoneMs /= n
	avg.Results /= n
	if limit > 0 {
		avg.FillRate = avg.Results / float64(limit) * 100
	}
	return &avg
}

func printTable(results []queryResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Query\tAvg Time\tAvg Results\tFill Rate\tSucceeded\n")
	fmt.Fprintf(w, "─────\t────────\t───────────\t─────────\t─────────\n")

	for _, r := range results {
		label := truncate(r.Query+" in "+r.Location, 40)
		if r.Averages == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t0/%d\n", label, len(r.Runs))
			continue
		}

		fmt.Fprintf(w, "%s\t%s\t%.1f\t%.0f%%\t%d/%d\n",
			label,
			time.Duration(r.Averages.TimeToDoneMs*float64(time.Millisecond)).Round(time.Second),
			r.Averages.Results,
			r.Averages.FillRate,
			succeeded(r.Runs),
			len(r.Runs),
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

func succeeded(runs []runResult) int {
	n := 0
	for _, r := range runs {
		if r.Success {
			n++
		}
	}
	return n
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
