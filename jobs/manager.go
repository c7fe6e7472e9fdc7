package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/mapscout/cache"
	"github.com/use-agent/mapscout/config"
	"github.com/use-agent/mapscout/models"
	"github.com/use-agent/mapscout/scraper"
	"github.com/use-agent/mapscout/webhook"
)

// Runner executes one scraping run. *scraper.Scraper implements it.
type Runner interface {
	Run(ctx context.Context, q scraper.Query) ([]models.Business, error)
}

// recordAttempts bounds the terminal write; recordBackoff grows linearly
// between attempts.
const recordAttempts = 3

var recordBackoff = 100 * time.Millisecond

// Stats is a point-in-time view of the manager.
type Stats struct {
	Running   int `json:"running"`
	Queued    int `json:"queued"`
	Submitted int `json:"submitted"`
}

// Manager accepts scrape requests, records them as pending jobs and runs
// them in the background. Submit never waits on the pipeline.
type Manager struct {
	store  Store
	runner Runner
	cache  *cache.Cache // optional
	cfg    config.JobsConfig
	logger *slog.Logger
	now    func() time.Time

	sem       chan struct{} // nil when unbounded
	wg        sync.WaitGroup
	running   atomic.Int64
	queued    atomic.Int64
	submitted atomic.Int64
}

// NewManager wires a manager. cc may be nil to disable result reuse.
func NewManager(store Store, runner Runner, cc *cache.Cache, cfg config.JobsConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	m := &Manager{
		store:  store,
		runner: runner,
		cache:  cc,
		cfg:    cfg,
		logger: logger.With("component", "jobs"),
		now:    time.Now,
	}
	if cfg.MaxConcurrent > 0 {
		m.sem = make(chan struct{}, cfg.MaxConcurrent)
	}
	return m
}

// Submit validates req, stores a pending job and starts its pipeline.
// Validation errors are returned before anything is stored.
func (m *Manager) Submit(ctx context.Context, req models.ScrapeRequest) (*models.Job, error) {
	query := strings.TrimSpace(req.Query)
	location := strings.TrimSpace(req.Location)
	if query == "" || location == "" {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "Query and location are required", nil)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = m.cfg.DefaultLimit
	}
	if m.cfg.MaxLimit > 0 && limit > m.cfg.MaxLimit {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("Limit must be between 1 and %d", m.cfg.MaxLimit), nil)
	}

	job := models.NewJob(uuid.NewString(), query, location, limit, m.now())
	if err := m.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("jobs: create: %w", err)
	}
	m.submitted.Add(1)

	m.wg.Add(1)
	go m.run(job, req)

	m.logger.Info("scraping job submitted",
		"job_id", job.ID,
		"query", query,
		"location", location,
		"limit", limit,
	)
	return job.Clone(), nil
}

// Get returns the stored job.
func (m *Manager) Get(ctx context.Context, id string) (*models.Job, error) {
	return m.store.Get(ctx, id)
}

// Stats reports how many pipelines are running or waiting for a slot and
// how many jobs were submitted since start.
func (m *Manager) Stats() Stats {
	return Stats{
		Running:   int(m.running.Load()),
		Queued:    int(m.queued.Load()),
		Submitted: int(m.submitted.Load()),
	}
}

// Count returns the number of jobs in the store.
func (m *Manager) Count(ctx context.Context) (int, error) {
	return m.store.Count(ctx)
}

// Shutdown waits for in-flight pipelines until ctx is done.
func (m *Manager) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("jobs: shutdown: %w", ctx.Err())
	}
}

// run is the background half of Submit. It always leaves the job terminal.
func (m *Manager) run(job *models.Job, req models.ScrapeRequest) {
	defer m.wg.Done()
	logger := m.logger.With("job_id", job.ID)

	if m.sem != nil {
		m.queued.Add(1)
		m.sem <- struct{}{}
		m.queued.Add(-1)
		defer func() { <-m.sem }()
	}
	m.running.Add(1)
	defer m.running.Add(-1)

	ctx, cancel := m.jobContext()
	defer cancel()

	businesses, err := m.execute(ctx, job, req.MaxAge, logger)
	m.finish(job, businesses, err, req, logger)
}

func (m *Manager) jobContext() (context.Context, context.CancelFunc) {
	if m.cfg.Timeout > 0 {
		return context.WithTimeout(context.Background(), m.cfg.Timeout)
	}
	return context.WithCancel(context.Background())
}

// execute produces the job's businesses from the cache or the runner.
// A panic in the runner becomes a JOB_EXECUTION_FAILED error.
func (m *Manager) execute(ctx context.Context, job *models.Job, maxAge int, logger *slog.Logger) (businesses []models.Business, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("scraping job panicked", "panic", r, "stack", string(debug.Stack()))
			businesses = nil
			err = models.NewScrapeError(models.ErrCodeJobExecution, fmt.Sprintf("unexpected error: %v", r), nil)
		}
	}()

	key := cache.Key(job.Query, job.Location, job.Limit)
	if m.cache != nil {
		if cached, ok := m.cache.Get(key, maxAge); ok {
			logger.Info("serving job from cache", "total_results", len(cached))
			return cached, nil
		}
	}

	businesses, err = m.runner.Run(ctx, scraper.Query{
		JobID:    job.ID,
		Query:    job.Query,
		Location: job.Location,
		Limit:    job.Limit,
	})
	if err != nil {
		return nil, err
	}
	if len(businesses) > job.Limit {
		businesses = businesses[:job.Limit]
	}
	if m.cache != nil {
		m.cache.Set(key, businesses)
	}
	return businesses, nil
}

// finish writes the terminal transition and fires the webhook. A completed
// result that cannot be recorded is replaced by a failure, so the job never
// stays pending.
func (m *Manager) finish(job *models.Job, businesses []models.Business, runErr error, req models.ScrapeRequest, logger *slog.Logger) {
	var (
		next *models.Job
		err  error
	)
	if runErr != nil {
		next, err = job.Fail(runErr.Error(), m.now())
	} else {
		next, err = job.Complete(businesses, m.now())
	}
	if err != nil {
		logger.Error("invalid job transition", "error", err)
		return
	}

	if err := m.record(next); err != nil {
		if next.Status != models.JobCompleted || errors.Is(err, ErrTerminal) || errors.Is(err, models.ErrJobNotFound) {
			logger.Error("failed to record job result", "error", err)
			return
		}
		logger.Warn("failed to record job result, marking job failed", "error", err)
		runErr = fmt.Errorf("failed to record job result: %w", err)
		next, _ = job.Fail(runErr.Error(), m.now())
		if err := m.record(next); err != nil {
			logger.Error("failed to record job failure", "error", err)
			return
		}
	}

	if runErr != nil {
		logger.Error("scraping job failed", "code", models.CodeOf(runErr), "error", runErr)
	} else {
		logger.Info("scraping job completed", "total_results", next.ResultsCount)
	}

	if req.WebhookURL != "" {
		webhook.DeliverAsync(req.WebhookURL, req.WebhookSecret, webhook.NewJobEvent(next))
	}
}

// record writes a terminal job, retrying transient store errors. The job
// context may be expired; the write uses its own.
func (m *Manager) record(job *models.Job) error {
	var err error
	for attempt := 1; attempt <= recordAttempts; attempt++ {
		err = m.store.Update(context.Background(), job)
		if err == nil || errors.Is(err, ErrTerminal) || errors.Is(err, models.ErrJobNotFound) {
			return err
		}
		if attempt < recordAttempts {
			time.Sleep(recordBackoff * time.Duration(attempt))
		}
	}
	return err
}
