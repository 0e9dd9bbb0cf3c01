package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full simdoc service configuration.
type Config struct {
	Listen              string  `yaml:"listen"`
	DataDir             string  `yaml:"data_dir"`
	DBPath              string  `yaml:"db_path"`
	Standard            string  `yaml:"standard"`
	Edition             string  `yaml:"edition"`
	TransportUnit       string  `yaml:"transport_unit"` // bit | byte
	Workers             int     `yaml:"workers"`
	PageTimeoutMs       int     `yaml:"page_timeout_ms"`
	MinScore            float64 `yaml:"min_score"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	MaxFileMB           int     `yaml:"max_file_mb"`
	LogLevel            string  `yaml:"log_level"`
	MCPTransport        string  `yaml:"mcp_transport"` // "" | "stdio"
}

// DefaultConfig returns sane defaults. Zero-valued tuning knobs
// (min_score, confidence_threshold, workers) defer to the pipeline
// defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:        ":8086",
		DataDir:       "data",
		DBPath:        "db/simdoc.db",
		Standard:      "MIL-STD-6016",
		TransportUnit: "bit",
		PageTimeoutMs: 10_000,
		MaxFileMB:     200,
		LogLevel:      "info",
	}
}

// LoadConfig reads and parses a YAML config file. Returns DefaultConfig merged with the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	switch c.TransportUnit {
	case "bit", "byte":
	default:
		return fmt.Errorf("unsupported transport_unit %q (use bit or byte)", c.TransportUnit)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0")
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return fmt.Errorf("min_score must be in [0,1]")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in [0,1]")
	}
	if c.MaxFileMB <= 0 {
		return fmt.Errorf("max_file_mb must be > 0")
	}
	switch c.MCPTransport {
	case "", "stdio":
	default:
		return fmt.Errorf("unsupported mcp_transport %q (use stdio or leave empty)", c.MCPTransport)
	}
	return nil
}

// MaxFileBytes returns the upload size cap in bytes.
func (c *Config) MaxFileBytes() int64 { return int64(c.MaxFileMB) * 1024 * 1024 }

// PageTimeout returns the per-page extraction deadline.
func (c *Config) PageTimeout() time.Duration {
	return time.Duration(c.PageTimeoutMs) * time.Millisecond
}
