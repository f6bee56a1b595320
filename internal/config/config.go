// Package config loads the daemon configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Poller   PollerConfig   `yaml:"poller"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Recorder RecorderConfig `yaml:"recorder"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port" validate:"gte=0,lte=65535"`
	ReadTimeoutMS  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMS int    `yaml:"write_timeout_ms"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" validate:"required"`
	Port     int    `yaml:"port" validate:"gt=0,lte=65535"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname" validate:"required"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int32  `yaml:"max_conns"`
}

type PollerConfig struct {
	TickIntervalMS         int `yaml:"tick_interval_ms" validate:"gt=0"`
	ScrapeTimeoutMS        int `yaml:"scrape_timeout_ms" validate:"gt=0"`
	BackoffBaseMS          int `yaml:"backoff_base_ms" validate:"gt=0"`
	BackoffMaxMS           int `yaml:"backoff_max_ms" validate:"gt=0"`
	DownThreshold          int `yaml:"down_threshold" validate:"gt=0"`
	ShutdownGraceMS        int `yaml:"shutdown_grace_ms"`
	SelfReportIntervalSecs int `yaml:"self_report_interval_seconds"`
}

// DefaultsConfig supplies recording policy values for sensors whose
// database row leaves poll_interval or alert_threshold NULL.
type DefaultsConfig struct {
	PollIntervalSeconds int     `yaml:"poll_interval_seconds"`
	AlertThresholdPct   float64 `yaml:"alert_threshold_pct"`
}

type RecorderConfig struct {
	BatchSize       int `yaml:"batch_size"`
	FlushIntervalMS int `yaml:"flush_interval_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// Load reads configuration from file, applies environment variable
// overrides and defaults, and validates the result.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate ensures all required configuration values are set and sane.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.Poller.BackoffMaxMS < c.Poller.BackoffBaseMS {
		return fmt.Errorf("poller.backoff_max_ms (%d) must be >= poller.backoff_base_ms (%d)",
			c.Poller.BackoffMaxMS, c.Poller.BackoffBaseMS)
	}

	if c.Defaults.AlertThresholdPct < 0 {
		return fmt.Errorf("defaults.alert_threshold_pct must not be negative")
	}

	return nil
}

// applyEnvOverrides checks for environment variables with BOTZ_ prefix
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BOTZ_DATABASE_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("BOTZ_DATABASE_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Database.Port)
	}
	if v := os.Getenv("BOTZ_DATABASE_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("BOTZ_DATABASE_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("BOTZ_SERVER_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Server.Port)
	}
	if v := os.Getenv("BOTZ_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// applyDefaults fills in zero-valued fields. The recording policy
// defaults match the original deployment: poll every 10 minutes, alert
// on a 50% variance, self-report every 15 minutes.
func applyDefaults(cfg *Config) {
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 4
	}
	if cfg.Poller.TickIntervalMS == 0 {
		cfg.Poller.TickIntervalMS = 10000
	}
	if cfg.Poller.ScrapeTimeoutMS == 0 {
		cfg.Poller.ScrapeTimeoutMS = 20000
	}
	if cfg.Poller.BackoffBaseMS == 0 {
		cfg.Poller.BackoffBaseMS = 10000
	}
	if cfg.Poller.BackoffMaxMS == 0 {
		cfg.Poller.BackoffMaxMS = 600000
	}
	if cfg.Poller.DownThreshold == 0 {
		cfg.Poller.DownThreshold = 3
	}
	if cfg.Poller.ShutdownGraceMS == 0 {
		cfg.Poller.ShutdownGraceMS = 25000
	}
	if cfg.Poller.SelfReportIntervalSecs == 0 {
		cfg.Poller.SelfReportIntervalSecs = 15 * 60
	}
	if cfg.Defaults.PollIntervalSeconds == 0 {
		cfg.Defaults.PollIntervalSeconds = 10 * 60
	}
	if cfg.Defaults.AlertThresholdPct == 0 {
		cfg.Defaults.AlertThresholdPct = 50
	}
	if cfg.Recorder.BatchSize == 0 {
		cfg.Recorder.BatchSize = 500
	}
	if cfg.Recorder.FlushIntervalMS == 0 {
		cfg.Recorder.FlushIntervalMS = 5000
	}
	if cfg.Server.ReadTimeoutMS == 0 {
		cfg.Server.ReadTimeoutMS = 5000
	}
	if cfg.Server.WriteTimeoutMS == 0 {
		cfg.Server.WriteTimeoutMS = 10000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// GetReadTimeout returns the HTTP read timeout as a duration
func (s *ServerConfig) GetReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMS) * time.Millisecond
}

// GetWriteTimeout returns the HTTP write timeout as a duration
func (s *ServerConfig) GetWriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutMS) * time.Millisecond
}

// GetDSN returns the PostgreSQL connection string
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// GetTickInterval returns the pool tick interval as a duration
func (p *PollerConfig) GetTickInterval() time.Duration {
	return time.Duration(p.TickIntervalMS) * time.Millisecond
}

// GetScrapeTimeout returns the per-scrape timeout as a duration
func (p *PollerConfig) GetScrapeTimeout() time.Duration {
	return time.Duration(p.ScrapeTimeoutMS) * time.Millisecond
}

// GetBackoffBase returns the initial failure backoff as a duration
func (p *PollerConfig) GetBackoffBase() time.Duration {
	return time.Duration(p.BackoffBaseMS) * time.Millisecond
}

// GetBackoffMax returns the backoff ceiling as a duration
func (p *PollerConfig) GetBackoffMax() time.Duration {
	return time.Duration(p.BackoffMaxMS) * time.Millisecond
}

// GetShutdownGrace returns how long in-flight checks may run after
// cancellation before the pool gives up waiting on them.
func (p *PollerConfig) GetShutdownGrace() time.Duration {
	return time.Duration(p.ShutdownGraceMS) * time.Millisecond
}

// GetSelfReportInterval returns the module self-report interval
func (p *PollerConfig) GetSelfReportInterval() time.Duration {
	return time.Duration(p.SelfReportIntervalSecs) * time.Second
}

// GetPollInterval returns the default sensor poll interval
func (d *DefaultsConfig) GetPollInterval() time.Duration {
	return time.Duration(d.PollIntervalSeconds) * time.Second
}

// GetFlushInterval returns the recorder flush interval
func (r *RecorderConfig) GetFlushInterval() time.Duration {
	return time.Duration(r.FlushIntervalMS) * time.Millisecond
}
