package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/mapscout/browser"
	"github.com/use-agent/mapscout/config"
	"github.com/use-agent/mapscout/models"
	"golang.org/x/time/rate"
)

// Query describes one scraping run.
type Query struct {
	JobID    string
	Query    string
	Location string
	Limit    int
}

// Scraper runs the per-job pipeline: open a session, search, collect
// listing handles, then extract, normalize and de-duplicate each listing.
// It is safe for concurrent use; every Run owns its own session.
type Scraper struct {
	launcher browser.Launcher
	cfg      config.ScraperConfig
	sel      config.SelectorConfig
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Scraper. A nil logger uses slog.Default().
func New(l browser.Launcher, cfg config.ScraperConfig, sel config.SelectorConfig, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		launcher: l,
		cfg:      cfg,
		sel:      sel,
		logger:   logger.With("component", "scraper"),
		now:      time.Now,
	}
}

// Run scrapes up to q.Limit businesses.
//
// Session-level failures (launch, navigation, timeout) and context expiry
// are returned. Failures on a single listing are logged and that listing is
// skipped. The session is closed on every path.
func (s *Scraper) Run(ctx context.Context, q Query) ([]models.Business, error) {
	logger := s.logger.With("job_id", q.JobID)
	logger.Info("starting scraping job", "query", q.Query, "location", q.Location, "limit", q.Limit)

	sess, err := openSession(ctx, s.launcher, logger)
	if err != nil {
		return nil, err
	}
	defer sess.close()

	if err := sess.navigateAndSearch(ctx, s.cfg.SearchURL, s.sel.Listing, s.cfg.SessionTimeout, q.Query, q.Location); err != nil {
		logger.Error("scraping job failed", "error", err)
		return nil, err
	}

	col := newCollector(s.sel.Feed, s.sel.Listing, s.cfg.MaxScrollAttempts, s.cfg.SettleDelay, logger)
	listings, err := col.collect(ctx, sess.page, q.Limit)
	if err != nil {
		logger.Error("collecting listings failed", "error", err)
		return nil, categorizeError(err, "collecting listings failed")
	}
	logger.Info("found listings", "total", len(listings))

	ext := &extractor{
		sel:           s.sel,
		detailTimeout: s.cfg.DetailTimeout,
		fieldTimeout:  s.cfg.FieldTimeout,
		logger:        logger,
	}
	pace := rate.NewLimiter(rate.Inf, 1)
	if s.cfg.ItemDelay > 0 {
		pace = rate.NewLimiter(rate.Every(s.cfg.ItemDelay), 1)
	}
	seen := newDeduper()

	businesses := make([]models.Business, 0, len(listings))
	for i, el := range listings {
		if err := pace.Wait(ctx); err != nil {
			return nil, fmt.Errorf("scraper: waiting for listing %d: %w", i+1, err)
		}
		logger.Info("processing listing", "index", i+1, "total", len(listings))

		if err := ext.open(ctx, sess.page, el); err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("scraper: listing %d: %w", i+1, ctx.Err())
			}
			logger.Warn("error processing listing, skipping", "index", i+1, "error", err)
			continue
		}

		b, ok := Normalize(ext.extract(ctx, sess.page), s.now())
		if !ok {
			logger.Warn("skipping listing, no business name found", "index", i+1)
			continue
		}
		if !seen.admit(b) {
			logger.Info("skipping duplicate listing", "index", i+1, "name", b.Name)
			continue
		}
		businesses = append(businesses, b)
		logger.Info("successfully extracted business",
			"name", b.Name,
			"has_website", b.Website != "",
			"has_phone", b.Phone != "",
		)
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("scraper: %w", ctx.Err())
	}

	successRate := 0.0
	if len(listings) > 0 {
		successRate = float64(len(businesses)) / float64(len(listings)) * 100
	}
	logger.Info("scraping completed successfully",
		"total_results", len(businesses),
		"success_rate", fmt.Sprintf("%.1f%%", successRate),
	)
	return businesses, nil
}
