package scraper

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/use-agent/mapscout/browser/browsertest"
	"github.com/use-agent/mapscout/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func navigatedSurface(t *testing.T, s *browsertest.Surface) *browsertest.Surface {
	t.Helper()
	if err := s.Navigate(context.Background(), "https://maps.test/search/x"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	return s
}

func testCollector(attempts int) *collector {
	sel := config.DefaultSelectors()
	return newCollector(sel.Feed, sel.Listing, attempts, time.Millisecond, discardLogger())
}

func TestCollect(t *testing.T) {
	tests := []struct {
		name        string
		available   int
		initial     int
		pageSize    int
		limit       int
		want        int
		wantScrolls int
	}{
		{"truncates to limit", 8, 3, 3, 5, 5, 1},
		{"plateau below limit", 3, 3, 3, 10, 3, 1},
		{"already enough before scrolling", 6, 6, 3, 4, 4, 0},
		{"attempts exhausted", 20, 1, 1, 15, 6, 5},
		{"exact limit", 9, 3, 3, 9, 9, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := browsertest.NewSurface(browsertest.Listings("Place", tt.available)...)
			s.Initial, s.PageSize = tt.initial, tt.pageSize
			navigatedSurface(t, s)

			got, err := testCollector(5).collect(context.Background(), s, tt.limit)
			if err != nil {
				t.Fatalf("collect: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("collected %d, want %d", len(got), tt.want)
			}
			if len(got) > tt.limit {
				t.Errorf("collected %d, more than limit %d", len(got), tt.limit)
			}
			if s.Scrolls() != tt.wantScrolls {
				t.Errorf("scrolls = %d, want %d", s.Scrolls(), tt.wantScrolls)
			}
		})
	}
}

func TestCollect_AttemptsClamped(t *testing.T) {
	if c := testCollector(1); c.attempts != 5 {
		t.Errorf("attempts = %d, want 5", c.attempts)
	}
	if c := testCollector(50); c.attempts != 10 {
		t.Errorf("attempts = %d, want 10", c.attempts)
	}
	if c := testCollector(7); c.attempts != 7 {
		t.Errorf("attempts = %d, want 7", c.attempts)
	}
}

func TestCollect_ScrollFailureKeepsFound(t *testing.T) {
	s := navigatedSurface(t, browsertest.NewSurface(browsertest.Listings("Place", 8)...))
	c := newCollector(`div.missing-feed`, config.DefaultSelectors().Listing, 5, time.Millisecond, discardLogger())

	got, err := c.collect(context.Background(), s, 5)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("collected %d, want the 3 initially visible", len(got))
	}
}

func TestCollect_CanceledContextWithNothingFound(t *testing.T) {
	s := browsertest.NewSurface(browsertest.Listings("Place", 8)...)
	s.Initial = 0
	navigatedSurface(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newCollector(config.DefaultSelectors().Feed, config.DefaultSelectors().Listing, 5, time.Hour, discardLogger())
	if _, err := c.collect(ctx, s, 5); err == nil {
		t.Error("expected context error when nothing was found")
	}
}
