package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalConfig = `
database:
  host: "localhost"
  dbname: "botz"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Port != 5432 {
		t.Errorf("database port default = %d, want 5432", cfg.Database.Port)
	}
	if got := cfg.Poller.GetTickInterval(); got != 10*time.Second {
		t.Errorf("tick interval default = %v, want 10s", got)
	}
	if got := cfg.Poller.GetScrapeTimeout(); got != 20*time.Second {
		t.Errorf("scrape timeout default = %v, want 20s", got)
	}
	if got := cfg.Defaults.GetPollInterval(); got != 10*time.Minute {
		t.Errorf("default poll interval = %v, want 10m", got)
	}
	if cfg.Defaults.AlertThresholdPct != 50 {
		t.Errorf("default alert threshold = %v, want 50", cfg.Defaults.AlertThresholdPct)
	}
	if got := cfg.Poller.GetSelfReportInterval(); got != 15*time.Minute {
		t.Errorf("self-report interval default = %v, want 15m", got)
	}
	if cfg.Poller.DownThreshold != 3 {
		t.Errorf("down threshold default = %d, want 3", cfg.Poller.DownThreshold)
	}
}

func TestLoadExplicitValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
database:
  host: "db.example.com"
  port: 5433
  dbname: "botz"
poller:
  tick_interval_ms: 5000
  backoff_base_ms: 1000
  backoff_max_ms: 60000
defaults:
  poll_interval_seconds: 300
  alert_threshold_pct: 25
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.GetDSN() != "host=db.example.com port=5433 user= password= dbname=botz sslmode=disable" {
		t.Errorf("unexpected DSN: %q", cfg.Database.GetDSN())
	}
	if got := cfg.Poller.GetBackoffBase(); got != time.Second {
		t.Errorf("backoff base = %v, want 1s", got)
	}
	if got := cfg.Defaults.GetPollInterval(); got != 5*time.Minute {
		t.Errorf("poll interval = %v, want 5m", got)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BOTZ_DATABASE_HOST", "override.example.com")
	t.Setenv("BOTZ_DATABASE_PORT", "5544")
	t.Setenv("BOTZ_LOGGING_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Host != "override.example.com" {
		t.Errorf("database host = %q, want env override", cfg.Database.Host)
	}
	if cfg.Database.Port != 5544 {
		t.Errorf("database port = %d, want 5544", cfg.Database.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing database host", `
database:
  dbname: "botz"
`},
		{"missing dbname", `
database:
  host: "localhost"
`},
		{"backoff max below base", `
database:
  host: "localhost"
  dbname: "botz"
poller:
  backoff_base_ms: 60000
  backoff_max_ms: 10000
`},
		{"bad logging level", `
database:
  host: "localhost"
  dbname: "botz"
logging:
  level: "verbose"
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
