package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/mapscout/browser"
)

const (
	minScrollAttempts = 5
	maxScrollAttempts = 10
)

// collector discovers listing handles on a lazily loading feed.
type collector struct {
	feedSel    string
	listingSel string
	attempts   int
	settle     time.Duration
	logger     *slog.Logger
}

func newCollector(feedSel, listingSel string, attempts int, settle time.Duration, logger *slog.Logger) *collector {
	attempts = max(minScrollAttempts, min(attempts, maxScrollAttempts))
	return &collector{
		feedSel:    feedSel,
		listingSel: listingSel,
		attempts:   attempts,
		settle:     settle,
		logger:     logger,
	}
}

// collect returns at most limit listing handles.
//
// Each attempt scrolls the feed, waits the settle delay and re-counts.
// It stops as soon as limit is reached (truncating to exactly limit), when
// the count plateaus, or when attempts run out. Finding fewer than limit is
// a valid outcome. An error is returned only if nothing was found.
func (c *collector) collect(ctx context.Context, page browser.Page, limit int) ([]browser.Element, error) {
	listings, err := page.Elements(ctx, c.listingSel)
	if err != nil {
		return nil, err
	}
	if len(listings) >= limit {
		c.logger.Info("reached desired number of listings", "found", len(listings), "desired", limit)
		return listings[:limit], nil
	}

	previous := len(listings)
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err := page.Scroll(ctx, c.feedSel); err != nil {
			if ctx.Err() != nil {
				return finish(listings, ctx.Err())
			}
			c.logger.Warn("scroll failed, keeping listings found so far", "error", err)
			return listings, nil
		}

		select {
		case <-ctx.Done():
			return finish(listings, ctx.Err())
		case <-time.After(c.settle):
		}

		current, err := page.Elements(ctx, c.listingSel)
		if err != nil {
			return finish(listings, err)
		}
		c.logger.Info("scroll attempt",
			"attempt", attempt,
			"max_attempts", c.attempts,
			"current_listings", len(current),
			"desired_listings", limit,
		)

		if len(current) >= limit {
			c.logger.Info("reached desired number of listings", "found", len(current), "desired", limit)
			return current[:limit], nil
		}
		if len(current) <= previous {
			c.logger.Info("no new listings after scrolling, reached end of results", "total_found", len(current))
			if len(current) < len(listings) {
				return listings, nil
			}
			return current, nil
		}
		listings = current
		previous = len(current)
	}

	c.logger.Info("finished loading results", "found", len(listings), "desired", limit)
	return listings, nil
}

// finish keeps whatever was found; err surfaces only when nothing was.
func finish(found []browser.Element, err error) ([]browser.Element, error) {
	if len(found) == 0 {
		return nil, err
	}
	return found, nil
}
