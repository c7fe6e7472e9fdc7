package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/use-agent/mapscout/browser"
	"github.com/use-agent/mapscout/models"
)

// session owns one isolated page for the lifetime of a job.
type session struct {
	page   browser.Page
	logger *slog.Logger
}

// openSession asks the launcher for a fresh page. The caller must defer
// close on success.
func openSession(ctx context.Context, l browser.Launcher, logger *slog.Logger) (*session, error) {
	page, err := l.NewPage(ctx)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open browser session", err)
	}
	return &session{page: page, logger: logger}, nil
}

// navigateAndSearch loads the listing surface for "<query> in <location>"
// and waits for the first listing, all within timeout.
func (s *session) navigateAndSearch(ctx context.Context, searchURL, listingSel string, timeout time.Duration, query, location string) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := SearchURL(searchURL, query, location)
	s.logger.Info("navigating to listing surface", "url", target)
	if err := s.page.Navigate(ctx, target); err != nil {
		return categorizeError(err, "navigation to listing surface failed")
	}

	s.logger.Info("waiting for search results to load")
	if err := s.page.WaitElement(ctx, listingSel); err != nil {
		return categorizeError(err, "search results did not load")
	}
	return nil
}

// close releases the page. It runs on every exit path.
func (s *session) close() {
	s.logger.Info("cleaning up browser resources")
	if err := s.page.Close(); err != nil {
		s.logger.Warn("cleanup: failed to close browser session", "error", err)
	}
}

// SearchURL builds the search address for "<query> in <location>".
func SearchURL(base, query, location string) string {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + url.QueryEscape(strings.TrimSpace(query)+" in "+strings.TrimSpace(location))
}

// categorizeError wraps raw errors into typed ScrapeErrors so the job
// records a meaningful failure code.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
