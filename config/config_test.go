package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Scraper.SessionTimeout != 60*time.Second {
		t.Errorf("session timeout = %v, want 60s", cfg.Scraper.SessionTimeout)
	}
	if cfg.Scraper.MaxScrollAttempts != 5 {
		t.Errorf("max scroll attempts = %d, want 5", cfg.Scraper.MaxScrollAttempts)
	}
	if cfg.Jobs.DefaultLimit != 10 {
		t.Errorf("default limit = %d, want 10", cfg.Jobs.DefaultLimit)
	}
	if cfg.Jobs.Store != "memory" {
		t.Errorf("store = %q, want memory", cfg.Jobs.Store)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MAPSCOUT_PORT", "9090")
	t.Setenv("MAPSCOUT_SETTLE_DELAY", "500ms")
	t.Setenv("MAPSCOUT_BLOCKED_RESOURCES", "Image, Media ,")
	t.Setenv("MAPSCOUT_MAX_CONCURRENT_JOBS", "not-a-number")

	cfg := Load()

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Scraper.SettleDelay != 500*time.Millisecond {
		t.Errorf("settle delay = %v, want 500ms", cfg.Scraper.SettleDelay)
	}
	if got := cfg.Browser.BlockedResourceTypes; len(got) != 2 || got[0] != "Image" || got[1] != "Media" {
		t.Errorf("blocked resources = %v, want [Image Media]", got)
	}
	if cfg.Jobs.MaxConcurrent != 0 {
		t.Errorf("invalid int should fall back to 0, got %d", cfg.Jobs.MaxConcurrent)
	}
}

func TestSelectorConfig_Validate(t *testing.T) {
	if err := DefaultSelectors().Validate(); err != nil {
		t.Fatalf("default selectors should be valid: %v", err)
	}

	bad := DefaultSelectors()
	bad.Phone = "button[data-item-id^="
	if err := bad.Validate(); err == nil {
		t.Error("expected error for malformed selector")
	}

	empty := DefaultSelectors()
	empty.Name = "  "
	if err := empty.Validate(); err == nil {
		t.Error("expected error for empty selector")
	}
}
