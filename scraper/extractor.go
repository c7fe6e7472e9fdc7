package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/mapscout/browser"
	"github.com/use-agent/mapscout/config"
	"github.com/use-agent/mapscout/models"
)

// extractor opens one listing and reads its detail panel field by field.
type extractor struct {
	sel           config.SelectorConfig
	detailTimeout time.Duration
	fieldTimeout  time.Duration
	logger        *slog.Logger
}

// open clicks the listing and waits for its detail panel.
func (x *extractor) open(ctx context.Context, page browser.Page, el browser.Element) error {
	ctx, cancel := context.WithTimeout(ctx, x.detailTimeout)
	defer cancel()

	if err := page.Click(ctx, el); err != nil {
		return models.NewScrapeError(models.ErrCodeItem, fmt.Sprintf("click on %s failed", el.Label()), err)
	}
	if err := page.WaitElement(ctx, x.sel.Name); err != nil {
		return models.NewScrapeError(models.ErrCodeItem, fmt.Sprintf("detail panel for %s never appeared", el.Label()), err)
	}
	return nil
}

// extract reads every field of the open detail panel. A field that cannot
// be read is recorded as failed; it never aborts the record.
func (x *extractor) extract(ctx context.Context, page browser.Page) RawRecord {
	raw := RawRecord{
		Name:         x.text(ctx, page, x.sel.Name),
		ReviewCount:  x.text(ctx, page, x.sel.ReviewCount),
		Rating:       x.text(ctx, page, x.sel.Rating),
		Website:      x.attr(ctx, page, x.sel.Website, "href"),
		Address:      x.text(ctx, page, x.sel.Address),
		Phone:        x.text(ctx, page, x.sel.Phone),
		Introduction: x.text(ctx, page, x.sel.Introduction),
		Category:     x.text(ctx, page, x.sel.Category),
		Hours:        x.text(ctx, page, x.sel.Hours),
	}

	if missing := raw.missing(); len(missing) > 0 {
		x.logger.Debug("fields not found on detail panel", "fields", missing)
	}
	return raw
}

// text waits up to fieldTimeout for selector and reads its text.
func (x *extractor) text(ctx context.Context, page browser.Page, selector string) Field[string] {
	ctx, cancel := context.WithTimeout(ctx, x.fieldTimeout)
	defer cancel()

	if err := page.WaitElement(ctx, selector); err != nil {
		return Failed[string](fieldError(selector, err))
	}
	v, err := page.Text(ctx, selector)
	if err != nil {
		return Failed[string](fieldError(selector, err))
	}
	return Ok(v)
}

// attr waits up to fieldTimeout for selector and reads attribute name.
func (x *extractor) attr(ctx context.Context, page browser.Page, selector, name string) Field[string] {
	ctx, cancel := context.WithTimeout(ctx, x.fieldTimeout)
	defer cancel()

	if err := page.WaitElement(ctx, selector); err != nil {
		return Failed[string](fieldError(selector, err))
	}
	v, err := page.Attribute(ctx, selector, name)
	if err != nil {
		return Failed[string](fieldError(selector, err))
	}
	return Ok(v)
}

func fieldError(selector string, err error) error {
	return models.NewScrapeError(models.ErrCodeField, fmt.Sprintf("failed to extract %q", selector), err)
}
