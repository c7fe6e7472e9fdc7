package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/mapscout/config"
	"github.com/use-agent/mapscout/jobs"
	"github.com/use-agent/mapscout/models"
	"github.com/use-agent/mapscout/scraper"
)

type runnerFunc func(ctx context.Context, q scraper.Query) ([]models.Business, error)

func (f runnerFunc) Run(ctx context.Context, q scraper.Query) ([]models.Business, error) {
	return f(ctx, q)
}

type fixedSessions int

func (n fixedSessions) ActiveSessions() int { return int(n) }

func newTestEngine(run runnerFunc) (*gin.Engine, *jobs.Manager) {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr := jobs.NewManager(jobs.NewMemoryStore(), run, nil,
		config.JobsConfig{DefaultLimit: 10, MaxLimit: 100, Timeout: time.Minute}, logger)

	r := gin.New()
	r.GET("/api/health", Health(mgr, fixedSessions(2), time.Now()))
	r.POST("/api/scrape", Scrape(mgr))
	r.GET("/api/jobs/:id", GetJob(mgr))
	r.GET("/api/jobs/:id/businesses", GetJobBusinesses(mgr))
	return r, mgr
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func waitTerminal(t *testing.T, mgr *jobs.Manager, id string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := mgr.Get(context.Background(), id)
		if err == nil && job.Status.Terminal() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never finished", id)
}

func TestScrape_Validation(t *testing.T) {
	r, mgr := newTestEngine(func(context.Context, scraper.Query) ([]models.Business, error) {
		return nil, nil
	})

	tests := []struct {
		name string
		body string
	}{
		{"missing query", `{"location":"Boston"}`},
		{"blank location", `{"query":"bakeries","location":"  "}`},
		{"malformed json", `{"query":`},
		{"limit too large", `{"query":"bakeries","location":"Boston","limit":500}`},
		{"bad webhook url", `{"query":"bakeries","location":"Boston","webhookUrl":"not a url"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/scrape", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
			}
			body := decode[models.ErrorResponse](t, w)
			if body.Code != models.ErrCodeInvalidInput || body.Status != 400 || body.Error == "" {
				t.Errorf("body = %+v", body)
			}
		})
	}

	if n, _ := mgr.Count(context.Background()); n != 0 {
		t.Errorf("rejected requests created %d jobs", n)
	}
}

func TestScrape_LifecycleCompleted(t *testing.T) {
	r, mgr := newTestEngine(func(_ context.Context, q scraper.Query) ([]models.Business, error) {
		if q.Query != "bakeries" || q.Location != "Boston" || q.Limit != 2 {
			return nil, errors.New("unexpected query")
		}
		return []models.Business{{Name: "A", Status: models.BusinessStatusNew}, {Name: "B", Status: models.BusinessStatusNew}}, nil
	})

	w := do(r, http.MethodPost, "/api/scrape", `{"query":"bakeries","location":"Boston","limit":2}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	created := decode[models.ScrapeResponse](t, w)
	if created.Message != "Scraping job started" || created.JobID == "" {
		t.Fatalf("response = %+v", created)
	}

	waitTerminal(t, mgr, created.JobID)

	w = do(r, http.MethodGet, "/api/jobs/"+created.JobID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET job status = %d", w.Code)
	}
	job := decode[models.Job](t, w)
	if job.Status != models.JobCompleted || job.ResultsCount != 2 {
		t.Errorf("job = %+v", job)
	}
	if !strings.Contains(w.Body.String(), `"resultsCount":2`) {
		t.Errorf("expected camelCase fields, got %s", w.Body.String())
	}

	w = do(r, http.MethodGet, "/api/jobs/"+created.JobID+"/businesses", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET businesses status = %d", w.Code)
	}
	res := decode[models.BusinessesResponse](t, w)
	if res.Status != models.JobCompleted || res.Total != 2 || len(res.Businesses) != 2 {
		t.Errorf("businesses = %+v", res)
	}
}

func TestGetJobBusinesses_PendingAndFailed(t *testing.T) {
	release := make(chan struct{})
	r, mgr := newTestEngine(func(context.Context, scraper.Query) ([]models.Business, error) {
		<-release
		return nil, models.NewScrapeError(models.ErrCodeTimeout, "search results did not load", context.DeadlineExceeded)
	})

	w := do(r, http.MethodPost, "/api/scrape", `{"query":"q","location":"l"}`)
	id := decode[models.ScrapeResponse](t, w).JobID

	w = do(r, http.MethodGet, "/api/jobs/"+id+"/businesses", "")
	pending := decode[models.PendingResponse](t, w)
	if w.Code != http.StatusOK || pending.Status != models.JobPending || pending.Message != "Scraping is still in progress" {
		t.Errorf("pending response = %d %+v", w.Code, pending)
	}

	close(release)
	waitTerminal(t, mgr, id)

	w = do(r, http.MethodGet, "/api/jobs/"+id+"/businesses", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	failed := decode[models.ErrorResponse](t, w)
	if failed.Code != models.ErrCodeJobFailed || !strings.HasPrefix(failed.Error, "Job failed: ") || failed.Status != 500 {
		t.Errorf("failed response = %+v", failed)
	}
	if !strings.Contains(failed.Error, "search results did not load") {
		t.Errorf("failure message lost: %q", failed.Error)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	r, _ := newTestEngine(nil)

	for _, path := range []string{"/api/jobs/nope", "/api/jobs/nope/businesses"} {
		w := do(r, http.MethodGet, path, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, w.Code)
			continue
		}
		body := decode[models.ErrorResponse](t, w)
		if body.Code != models.ErrCodeJobNotFound || body.Error != "Job not found" {
			t.Errorf("%s: body = %+v", path, body)
		}
	}
}

func TestHealth(t *testing.T) {
	r, mgr := newTestEngine(func(context.Context, scraper.Query) ([]models.Business, error) {
		return nil, nil
	})
	w := do(r, http.MethodPost, "/api/scrape", `{"query":"q","location":"l"}`)
	waitTerminal(t, mgr, decode[models.ScrapeResponse](t, w).JobID)

	w = do(r, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	h := decode[models.HealthResponse](t, w)
	if h.Status != "healthy" || h.TotalJobs != 1 || h.RunningJobs != 0 || h.Version != Version {
		t.Errorf("health = %+v", h)
	}
	if h.ActiveSessions != 2 {
		t.Errorf("activeSessions = %d, want 2", h.ActiveSessions)
	}
}

func TestMapErrorToStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{models.ErrCodeInvalidInput, http.StatusBadRequest},
		{models.ErrCodeJobNotFound, http.StatusNotFound},
		{models.ErrCodeTimeout, http.StatusGatewayTimeout},
		{models.ErrCodeNavigation, http.StatusBadGateway},
		{models.ErrCodeJobExecution, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := mapErrorToStatus(models.NewScrapeError(tt.code, "x", nil)); got != tt.want {
			t.Errorf("%s → %d, want %d", tt.code, got, tt.want)
		}
	}
}
