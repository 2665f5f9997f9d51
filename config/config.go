// Package config loads the collector configuration from YAML and applies
// defaults and validation before the pipeline starts. The loaded values are
// treated as immutable for the process lifetime.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete collector configuration.
type Config struct {
	Event    EventConfig    `yaml:"event"`
	Network  NetworkConfig  `yaml:"network"`
	Database DatabaseConfig `yaml:"database"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Dedup    DedupConfig    `yaml:"dedup"`
	Journal  JournalConfig  `yaml:"journal"`
	Diag     DiagConfig     `yaml:"diag"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// EventConfig names the contest being logged.
type EventConfig struct {
	Name string `yaml:"name"`
}

// NetworkConfig contains UDP broadcast reception settings.
type NetworkConfig struct {
	Port               int `yaml:"port"`
	ReadTimeoutSeconds int `yaml:"read_timeout_seconds"`
	MaxDatagramBytes   int `yaml:"max_datagram_bytes"`
}

// DatabaseConfig contains SQLite settings for the QSO log.
type DatabaseConfig struct {
	Path               string `yaml:"path"`
	BusyTimeoutMS      int    `yaml:"busy_timeout_ms"`
	PreflightTimeoutMS int    `yaml:"preflight_timeout_ms"`
}

// PipelineConfig contains queue and shutdown settings.
type PipelineConfig struct {
	QueueSize            int `yaml:"queue_size"`
	GracePeriodSeconds   int `yaml:"grace_period_seconds"`
	StatsIntervalSeconds int `yaml:"stats_interval_seconds"`
}

// DedupConfig contains seen-set settings. A window of zero keeps applied keys
// for the process lifetime.
type DedupConfig struct {
	WindowSeconds int `yaml:"window_seconds"`
}

// JournalConfig contains the optional raw datagram journal settings.
type JournalConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Path           string `yaml:"path"`
	RetentionHours int    `yaml:"retention_hours"`
}

// DiagConfig contains the optional diagnostics HTTP server settings.
type DiagConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig contains file logging settings. Console logging is always on.
type LoggingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// Load loads configuration from a YAML file, then applies defaults and
// validates. A missing file is an error; the collector must not silently run
// with a guessed port.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with all defaults applied, used when no
// config file is supplied on the command line.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Event.Name == "" {
		c.Event.Name = "Field Day"
	}
	if c.Network.Port == 0 {
		c.Network.Port = 12060 // N1MM+ UDP broadcast default
	}
	if c.Network.ReadTimeoutSeconds == 0 {
		c.Network.ReadTimeoutSeconds = 1
	}
	if c.Network.MaxDatagramBytes == 0 {
		c.Network.MaxDatagramBytes = 2048
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/qso_log.db"
	}
	if c.Database.BusyTimeoutMS == 0 {
		c.Database.BusyTimeoutMS = 5000
	}
	if c.Database.PreflightTimeoutMS == 0 {
		c.Database.PreflightTimeoutMS = 2000
	}
	if c.Pipeline.QueueSize == 0 {
		c.Pipeline.QueueSize = 4096
	}
	if c.Pipeline.GracePeriodSeconds == 0 {
		c.Pipeline.GracePeriodSeconds = 30
	}
	if c.Pipeline.StatsIntervalSeconds == 0 {
		c.Pipeline.StatsIntervalSeconds = 60
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "data/journal"
	}
	if c.Journal.RetentionHours == 0 {
		c.Journal.RetentionHours = 72
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
	if c.Logging.RetentionDays == 0 {
		c.Logging.RetentionDays = 7
	}
}

func (c *Config) validate() error {
	if c.Network.Port < 1 || c.Network.Port > 65535 {
		return fmt.Errorf("network.port %d out of range", c.Network.Port)
	}
	if c.Network.ReadTimeoutSeconds < 1 {
		return fmt.Errorf("network.read_timeout_seconds must be >= 1")
	}
	if c.Pipeline.QueueSize < 1 {
		return fmt.Errorf("pipeline.queue_size must be >= 1")
	}
	if c.Pipeline.GracePeriodSeconds < 1 {
		return fmt.Errorf("pipeline.grace_period_seconds must be >= 1")
	}
	if c.Dedup.WindowSeconds < 0 {
		return fmt.Errorf("dedup.window_seconds must not be negative")
	}
	if c.Journal.RetentionHours < 0 {
		return fmt.Errorf("journal.retention_hours must not be negative")
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path is empty")
	}
	return nil
}

// Print displays the effective configuration on stdout.
func (c *Config) Print() {
	fmt.Printf("Event: %s\n", c.Event.Name)
	fmt.Printf("UDP broadcast port: %d (read timeout %ds)\n", c.Network.Port, c.Network.ReadTimeoutSeconds)
	fmt.Printf("Database: %s\n", c.Database.Path)
	fmt.Printf("Queue: %d payloads, shutdown grace %ds\n", c.Pipeline.QueueSize, c.Pipeline.GracePeriodSeconds)
	if c.Dedup.WindowSeconds > 0 {
		fmt.Printf("Dedup window: %ds\n", c.Dedup.WindowSeconds)
	} else {
		fmt.Println("Dedup window: unbounded (keys kept for process lifetime)")
	}
	if c.Journal.Enabled {
		fmt.Printf("Journal: %s (retention %dh)\n", c.Journal.Path, c.Journal.RetentionHours)
	}
	if c.Diag.Addr != "" {
		fmt.Printf("Diagnostics server: %s\n", c.Diag.Addr)
	}
}
