package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath       = "./config.yaml"
	defaultDBPath           = "./pypi-bot.db"
	defaultPyPIBaseURL      = "https://pypi.org"
	defaultSweepIntervalSec = 7200
	defaultInitialDelaySec  = 5
	defaultTimeoutSecs      = 10
	defaultReplyTimeoutSec  = 300
	defaultLogLevel         = "info"
)

// Config defines all runtime configuration.
type Config struct {
	TelegramToken    string `yaml:"telegram_token"`
	DBPath           string `yaml:"db_path"`
	PyPIBaseURL      string `yaml:"pypi_base_url"`
	SweepIntervalSec int    `yaml:"sweep_interval_secs"`
	InitialDelaySec  int    `yaml:"sweep_initial_delay_secs"`
	FetchTimeoutSec  int    `yaml:"fetch_timeout_secs"`
	ReplyTimeoutSec  int    `yaml:"reply_timeout_secs"`
	LogLevel         string `yaml:"log_level"`
}

// Default returns a Config populated with default values.
func Default() Config {
	return Config{
		DBPath:           defaultDBPath,
		PyPIBaseURL:      defaultPyPIBaseURL,
		SweepIntervalSec: defaultSweepIntervalSec,
		InitialDelaySec:  defaultInitialDelaySec,
		FetchTimeoutSec:  defaultTimeoutSecs,
		ReplyTimeoutSec:  defaultReplyTimeoutSec,
		LogLevel:         defaultLogLevel,
	}
}

// Load reads configuration from the path in PYPI_BOT_CONFIG or the default path.
func Load() (Config, error) {
	path := os.Getenv("PYPI_BOT_CONFIG")
	if path == "" {
		path = defaultConfigPath
	}
	return LoadFrom(path)
}

// LoadFrom reads configuration from a specific file path.
func LoadFrom(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config yaml: %w", err)
	}

	if override := os.Getenv("PYPI_BOT_DB"); override != "" {
		cfg.DBPath = override
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate ensures configuration is complete and valid.
func (c Config) Validate() error {
	if c.TelegramToken == "" {
		return errors.New("telegram_token is required")
	}
	if c.DBPath == "" {
		return errors.New("db_path must not be empty")
	}
	u, err := url.Parse(c.PyPIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("pypi_base_url must be an absolute URL: %s", c.PyPIBaseURL)
	}
	if c.SweepIntervalSec <= 0 {
		return errors.New("sweep_interval_secs must be positive")
	}
	if c.InitialDelaySec < 0 {
		return errors.New("sweep_initial_delay_secs must be non-negative")
	}
	if c.FetchTimeoutSec <= 0 {
		return errors.New("fetch_timeout_secs must be positive")
	}
	if c.ReplyTimeoutSec <= 0 {
		return errors.New("reply_timeout_secs must be positive")
	}
	return nil
}
