package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "SHEETS_SALES_URL", "SHEETS_TIMEOUT_SECONDS", "SYNC_INTERVAL_MINUTES", "SYNC_TIMEZONE", "REPORT_DAYS", "REDIS_DB"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Address() != ":8080" {
		t.Fatalf("expected :8080, got %q", cfg.Address())
	}
	if cfg.SheetsSalesURL != "" {
		t.Fatalf("expected no sales endpoint by default, got %q", cfg.SheetsSalesURL)
	}
	if cfg.SheetsTimeout() != 15*time.Second {
		t.Fatalf("expected 15s timeout, got %s", cfg.SheetsTimeout())
	}
	if cfg.SyncInterval() != 0 {
		t.Fatalf("expected periodic sync disabled, got %s", cfg.SyncInterval())
	}
	if cfg.SyncTimezone != "UTC" || cfg.ReportDays != 7 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SHEETS_SALES_URL", "  https://script.example/exec  ")
	t.Setenv("SHEETS_TIMEOUT_SECONDS", "30")
	t.Setenv("SYNC_INTERVAL_MINUTES", "10")
	t.Setenv("REPORT_DAYS", "0")
	t.Setenv("REDIS_DB", "nope")

	cfg := Load()
	if cfg.SheetsSalesURL != "https://script.example/exec" {
		t.Fatalf("expected trimmed url, got %q", cfg.SheetsSalesURL)
	}
	if cfg.SheetsTimeout() != 30*time.Second || cfg.SyncInterval() != 10*time.Minute {
		t.Fatalf("unexpected durations %s / %s", cfg.SheetsTimeout(), cfg.SyncInterval())
	}
	if cfg.ReportDays != 7 {
		t.Fatalf("expected invalid REPORT_DAYS to fall back, got %d", cfg.ReportDays)
	}
	if cfg.RedisDB != 0 {
		t.Fatalf("expected malformed REDIS_DB to fall back, got %d", cfg.RedisDB)
	}
}
