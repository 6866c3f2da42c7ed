package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Project   ProjectConfig   `mapstructure:"project"`
	MCP       MCPConfig       `mapstructure:"mcp"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration. A Port of 0 means "scan the
// port range for a free port at startup".
type ServerConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	PortStart int    `mapstructure:"port_start"`
	PortEnd   int    `mapstructure:"port_end"`
}

// ExecutionConfig holds sandbox execution configuration
type ExecutionConfig struct {
	ScratchDir        string `mapstructure:"scratch_dir"`
	Interpreter       string `mapstructure:"interpreter"`
	DefaultTimeoutSec int    `mapstructure:"default_timeout_sec"`
	MinTimeoutSec     int    `mapstructure:"min_timeout_sec"`
	MaxTimeoutSec     int    `mapstructure:"max_timeout_sec"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// ProjectConfig holds the analyzed project settings
type ProjectConfig struct {
	Root string `mapstructure:"root"`
}

// MCPConfig holds the optional MCP transport configuration
type MCPConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// New loads and validates the application configuration
func New() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set default values
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 0)
	viper.SetDefault("server.port_start", 8500)
	viper.SetDefault("server.port_end", 9500)
	viper.SetDefault("execution.scratch_dir", "")
	viper.SetDefault("execution.interpreter", "python3")
	viper.SetDefault("execution.default_timeout_sec", 30)
	viper.SetDefault("execution.min_timeout_sec", 1)
	viper.SetDefault("execution.max_timeout_sec", 60)
	viper.SetDefault("storage.db_path", "data/docsport.db")
	viper.SetDefault("project.root", ".")
	viper.SetDefault("mcp.enabled", false)
	viper.SetDefault("mcp.transport", "stdio")
	viper.SetDefault("mcp.http_port", 8081)
	viper.SetDefault("logging.mode", "production")
	viper.SetDefault("logging.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}

	if c.Server.Port == 0 {
		if c.Server.PortStart <= 0 || c.Server.PortEnd < c.Server.PortStart {
			return fmt.Errorf("invalid server port range: [%d, %d]", c.Server.PortStart, c.Server.PortEnd)
		}
	}

	if c.Execution.Interpreter == "" {
		return fmt.Errorf("execution.interpreter must not be empty")
	}

	if c.Execution.MinTimeoutSec <= 0 {
		return fmt.Errorf("execution.min_timeout_sec must be positive, got: %d", c.Execution.MinTimeoutSec)
	}

	if c.Execution.MaxTimeoutSec < c.Execution.MinTimeoutSec {
		return fmt.Errorf("execution.max_timeout_sec must be >= min_timeout_sec, got: %d < %d",
			c.Execution.MaxTimeoutSec, c.Execution.MinTimeoutSec)
	}

	if c.Execution.DefaultTimeoutSec < c.Execution.MinTimeoutSec ||
		c.Execution.DefaultTimeoutSec > c.Execution.MaxTimeoutSec {
		return fmt.Errorf("execution.default_timeout_sec %d outside [%d, %d]",
			c.Execution.DefaultTimeoutSec, c.Execution.MinTimeoutSec, c.Execution.MaxTimeoutSec)
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path must not be empty")
	}

	if c.MCP.Enabled && c.MCP.Transport != "stdio" && c.MCP.Transport != "http" {
		return fmt.Errorf("invalid mcp.transport: %s, must be 'stdio' or 'http'", c.MCP.Transport)
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	return nil
}

// ScratchDir returns the configured scratch directory, defaulting to a
// docsport-owned directory under the system temp dir.
func (c *Config) ScratchDir() string {
	if c.Execution.ScratchDir != "" {
		return c.Execution.ScratchDir
	}
	return filepath.Join(os.TempDir(), "docsport_execution")
}

// DefaultTimeout returns the default execution timeout as a duration
func (c *Config) DefaultTimeout() time.Duration {
	return time.Duration(c.Execution.DefaultTimeoutSec) * time.Second
}

// TimeoutInRange reports whether a requested timeout in seconds is within
// the configured bounds. Out-of-range requests must be rejected before they
// reach the Runner.
func (c *Config) TimeoutInRange(seconds int) bool {
	return seconds >= c.Execution.MinTimeoutSec && seconds <= c.Execution.MaxTimeoutSec
}
