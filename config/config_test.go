package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "telegram_token: token\n")
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.SweepIntervalSec != 7200 {
		t.Fatalf("expected default sweep interval 7200, got %d", cfg.SweepIntervalSec)
	}
	if cfg.InitialDelaySec != 5 {
		t.Fatalf("expected default initial delay 5, got %d", cfg.InitialDelaySec)
	}
	if cfg.PyPIBaseURL != "https://pypi.org" {
		t.Fatalf("unexpected base url: %s", cfg.PyPIBaseURL)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("unexpected log level: %s", cfg.LogLevel)
	}
}

func TestLoadFromOverrides(t *testing.T) {
	path := writeConfig(t, `
telegram_token: token
db_path: /tmp/bot.db
sweep_interval_secs: 60
sweep_initial_delay_secs: 0
log_level: debug
`)
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.DBPath != "/tmp/bot.db" {
		t.Fatalf("unexpected db path: %s", cfg.DBPath)
	}
	if cfg.SweepIntervalSec != 60 || cfg.InitialDelaySec != 0 {
		t.Fatalf("unexpected sweep settings: %d/%d", cfg.SweepIntervalSec, cfg.InitialDelaySec)
	}
}

func TestLoadFromMissingToken(t *testing.T) {
	path := writeConfig(t, "db_path: /tmp/bot.db\n")
	if _, err := LoadFrom(path); err == nil {
		t.Fatalf("expected error for missing token")
	}
}

func TestLoadFromDBEnvOverride(t *testing.T) {
	path := writeConfig(t, "telegram_token: token\n")
	t.Setenv("PYPI_BOT_DB", "/tmp/override.db")
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.DBPath != "/tmp/override.db" {
		t.Fatalf("expected env override, got %s", cfg.DBPath)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad base url", func(c *Config) { c.PyPIBaseURL = "pypi.org" }},
		{"zero interval", func(c *Config) { c.SweepIntervalSec = 0 }},
		{"negative delay", func(c *Config) { c.InitialDelaySec = -1 }},
		{"zero timeout", func(c *Config) { c.FetchTimeoutSec = 0 }},
		{"zero reply timeout", func(c *Config) { c.ReplyTimeoutSec = 0 }},
	}
	for _, tc := range cases {
		cfg := Default()
		cfg.TelegramToken = "token"
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}
