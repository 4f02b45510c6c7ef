package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Engine holds all configuration for the simulation engine.
type Engine struct {
	LogLevel string `yaml:"log_level"` // debug, info, warn, error

	// Tick loop
	TickInterval     time.Duration `yaml:"tick_interval"`      // default: 50ms
	MaxChainLifetime time.Duration `yaml:"max_chain_lifetime"` // 0 disables the watchdog
	CommandQueueSize int           `yaml:"command_queue_size"`

	// Content
	CatalogPath  string `yaml:"catalog_path"`
	ScenarioPath string `yaml:"scenario_path"`

	Journal  JournalConfig  `yaml:"journal"`
	Database DatabaseConfig `yaml:"database"`
}

// JournalConfig controls the combat journal.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	QueueSize     int           `yaml:"queue_size"` // ticks of rows waiting for the writer
	FlushInterval time.Duration `yaml:"flush_interval"`
	// Persist writes rows to the database; otherwise they go to the log.
	Persist bool `yaml:"persist"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// DefaultEngine returns Engine config with sensible defaults.
func DefaultEngine() Engine {
	return Engine{
		LogLevel:         "info",
		TickInterval:     50 * time.Millisecond,
		MaxChainLifetime: 60 * time.Second,
		CommandQueueSize: 256,
		CatalogPath:      "config/catalog.yaml",
		ScenarioPath:     "config/scenario.yaml",
		Journal: JournalConfig{
			Enabled:       true,
			BatchSize:     128,
			QueueSize:     256,
			FlushInterval: time.Second,
		},
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "spellcore",
			Password: "spellcore",
			DBName:   "spellcore",
			SSLMode:  "disable",
		},
	}
}

// Validate rejects values the engine cannot run with.
func (c Engine) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval)
	}
	if c.MaxChainLifetime < 0 {
		return fmt.Errorf("max_chain_lifetime must not be negative, got %s", c.MaxChainLifetime)
	}
	if c.CommandQueueSize <= 0 {
		return fmt.Errorf("command_queue_size must be positive, got %d", c.CommandQueueSize)
	}
	if c.CatalogPath == "" {
		return fmt.Errorf("catalog_path is required")
	}
	if c.Journal.Enabled {
		if c.Journal.BatchSize <= 0 || c.Journal.QueueSize <= 0 {
			return fmt.Errorf("journal batch_size and queue_size must be positive")
		}
		if c.Journal.FlushInterval <= 0 {
			return fmt.Errorf("journal flush_interval must be positive, got %s", c.Journal.FlushInterval)
		}
	}
	return nil
}

// LoadEngine loads engine config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadEngine(path string) (Engine, error) {
	cfg := DefaultEngine()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}
