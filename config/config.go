package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Selectors SelectorConfig
	Jobs      JobsConfig
	Cache     CacheConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL applied to the whole browser process.
	Proxy string

	// UserAgent is set on every session page.
	UserAgent string

	// ViewportWidth and ViewportHeight size every session page.
	ViewportWidth  int // default: 1920
	ViewportHeight int // default: 1080

	// Stealth injects go-rod/stealth into every session page.
	Stealth bool // default: true

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string
}

// ScraperConfig controls the scraping pipeline of a single job.
type ScraperConfig struct {
	// SearchURL is the listing surface; the escaped "<query> in <location>"
	// is appended to it.
	SearchURL string // default: "https://www.google.com/maps/search/"

	// SessionTimeout bounds navigation plus the wait for the first listing.
	SessionTimeout time.Duration // default: 60s

	// MaxScrollAttempts bounds the result-loading loop. Clamped to 5..10.
	MaxScrollAttempts int // default: 5

	// SettleDelay is the pause after each scroll before re-counting.
	SettleDelay time.Duration // default: 2s

	// DetailTimeout bounds the wait for a listing's detail panel.
	DetailTimeout time.Duration // default: 5s

	// FieldTimeout bounds the lookup of a single detail field.
	FieldTimeout time.Duration // default: 2s

	// ItemDelay is the minimum spacing between two detail-panel opens.
	ItemDelay time.Duration // default: 2s
}

// SelectorConfig holds the CSS selectors for the listing surface.
type SelectorConfig struct {
	Feed         string
	Listing      string
	Name         string
	Address      string
	Website      string
	Phone        string
	ReviewCount  string
	Rating       string
	Introduction string
	Category     string
	Hours        string
}

// JobsConfig controls the job store and orchestration.
type JobsConfig struct {
	// Store selects the JobStore backend: "memory" or "sqlite".
	Store string // default: "memory"

	// SQLiteDSN is the DSN for the sqlite backend.
	SQLiteDSN string // default: in-memory shared cache

	// DefaultLimit applies when a request omits limit.
	DefaultLimit int // default: 10

	// MaxLimit is the largest accepted limit.
	MaxLimit int // default: 100

	// MaxConcurrent caps running pipelines; 0 means unbounded.
	MaxConcurrent int // default: 0

	// Timeout is the deadline for one job's whole pipeline.
	Timeout time.Duration // default: 15m
}

// CacheConfig controls the completed-result cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached result sets.
	MaxEntries int // default: 1000
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// DefaultSelectors returns the Google Maps selectors.
func DefaultSelectors() SelectorConfig {
	return SelectorConfig{
		Feed:         `div[role="feed"]`,
		Listing:      `a[href^="https://www.google.com/maps/place"]`,
		Name:         "h1.DUwDvf",
		Address:      `button[data-item-id="address"] div.fontBodyMedium`,
		Website:      `a[data-item-id="authority"]`,
		Phone:        `button[data-item-id^="phone:tel:"] div.fontBodyMedium`,
		ReviewCount:  "div.F7nice span[aria-label]",
		Rating:       `div.F7nice span[aria-hidden="true"]`,
		Introduction: "div.WeS02d div.PYvSYb",
		Category:     "div.LBgpqf button.DkEaL",
		Hours:        `button[data-item-id="oh"] div.fontBodyMedium`,
	}
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	sel := DefaultSelectors()
	return &Config{
		Server: ServerConfig{
			Host: envOr("MAPSCOUT_HOST", "0.0.0.0"),
			Port: envIntOr("MAPSCOUT_PORT", 8080),
			Mode: envOr("MAPSCOUT_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("MAPSCOUT_HEADLESS", true),
			NoSandbox:      envBoolOr("MAPSCOUT_NO_SANDBOX", true),
			BrowserBin:     os.Getenv("MAPSCOUT_BROWSER_BIN"),
			Proxy:          os.Getenv("MAPSCOUT_PROXY"),
			UserAgent:      envOr("MAPSCOUT_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36"),
			ViewportWidth:  envIntOr("MAPSCOUT_VIEWPORT_WIDTH", 1920),
			ViewportHeight: envIntOr("MAPSCOUT_VIEWPORT_HEIGHT", 1080),
			Stealth:        envBoolOr("MAPSCOUT_STEALTH", true),
			BlockedResourceTypes: envSliceOr("MAPSCOUT_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Scraper: ScraperConfig{
			SearchURL:         envOr("MAPSCOUT_SEARCH_URL", "https://www.google.com/maps/search/"),
			SessionTimeout:    envDurationOr("MAPSCOUT_SESSION_TIMEOUT", 60*time.Second),
			MaxScrollAttempts: envIntOr("MAPSCOUT_MAX_SCROLL_ATTEMPTS", 5),
			SettleDelay:       envDurationOr("MAPSCOUT_SETTLE_DELAY", 2*time.Second),
			DetailTimeout:     envDurationOr("MAPSCOUT_DETAIL_TIMEOUT", 5*time.Second),
			FieldTimeout:      envDurationOr("MAPSCOUT_FIELD_TIMEOUT", 2*time.Second),
			ItemDelay:         envDurationOr("MAPSCOUT_ITEM_DELAY", 2*time.Second),
		},
		Selectors: SelectorConfig{
			Feed:         envOr("MAPSCOUT_SEL_FEED", sel.Feed),
			Listing:      envOr("MAPSCOUT_SEL_LISTING", sel.Listing),
			Name:         envOr("MAPSCOUT_SEL_NAME", sel.Name),
			Address:      envOr("MAPSCOUT_SEL_ADDRESS", sel.Address),
			Website:      envOr("MAPSCOUT_SEL_WEBSITE", sel.Website),
			Phone:        envOr("MAPSCOUT_SEL_PHONE", sel.Phone),
			ReviewCount:  envOr("MAPSCOUT_SEL_REVIEW_COUNT", sel.ReviewCount),
			Rating:       envOr("MAPSCOUT_SEL_RATING", sel.Rating),
			Introduction: envOr("MAPSCOUT_SEL_INTRODUCTION", sel.Introduction),
			Category:     envOr("MAPSCOUT_SEL_CATEGORY", sel.Category),
			Hours:        envOr("MAPSCOUT_SEL_HOURS", sel.Hours),
		},
		Jobs: JobsConfig{
			Store:         envOr("MAPSCOUT_STORE", "memory"),
			SQLiteDSN:     envOr("MAPSCOUT_SQLITE_DSN", "file:mapscout?mode=memory&cache=shared"),
			DefaultLimit:  envIntOr("MAPSCOUT_DEFAULT_LIMIT", 10),
			MaxLimit:      envIntOr("MAPSCOUT_MAX_LIMIT", 100),
			MaxConcurrent: envIntOr("MAPSCOUT_MAX_CONCURRENT_JOBS", 0),
			Timeout:       envDurationOr("MAPSCOUT_JOB_TIMEOUT", 15*time.Minute),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("MAPSCOUT_CACHE_MAX_ENTRIES", 1000),
		},
		Log: LogConfig{
			Level:  envOr("MAPSCOUT_LOG_LEVEL", "info"),
			Format: envOr("MAPSCOUT_LOG_FORMAT", "json"),
		},
	}
}

// Validate compiles every selector so a typo in an override fails at
// startup rather than on every listing.
func (s SelectorConfig) Validate() error {
	named := []struct {
		name, sel string
	}{
		{"feed", s.Feed},
		{"listing", s.Listing},
		{"name", s.Name},
		{"address", s.Address},
		{"website", s.Website},
		{"phone", s.Phone},
		{"review_count", s.ReviewCount},
		{"rating", s.Rating},
		{"introduction", s.Introduction},
		{"category", s.Category},
		{"hours", s.Hours},
	}
	for _, n := range named {
		if strings.TrimSpace(n.sel) == "" {
			return fmt.Errorf("config: selector %s is empty", n.name)
		}
		if _, err := cascadia.Parse(n.sel); err != nil {
			return fmt.Errorf("config: selector %s %q: %w", n.name, n.sel, err)
		}
	}
	return nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
