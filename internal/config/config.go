package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix is stripped from environment variables before mapping them
// onto config keys (IMAPGW_IMAP_PASSWORD -> imap.password).
const envPrefix = "IMAPGW_"

// Config holds all configuration for the IMAP gateway
type Config struct {
	IMAP      IMAPConfig      `koanf:"imap"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Audit     AuditConfig     `koanf:"audit"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
}

// IMAPConfig holds upstream IMAP server configuration
type IMAPConfig struct {
	Host           string `koanf:"host"`            // Upstream IMAP hostname
	Port           int    `koanf:"port"`            // 993 for implicit TLS, 143 otherwise
	UseTLS         bool   `koanf:"use_tls"`         // Dial with implicit TLS
	Username       string `koanf:"username"`        // Mailbox login (required)
	Password       string `koanf:"password"`        // Mailbox password (required)
	ConnectTimeout string `koanf:"connect_timeout"` // TCP/TLS dial timeout
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Listen          string `koanf:"listen"`           // Listen address
	Port            int    `koanf:"port"`             // HTTP port
	ReadTimeout     string `koanf:"read_timeout"`     // Request read timeout
	WriteTimeout    string `koanf:"write_timeout"`    // Response write timeout
	ShutdownTimeout string `koanf:"shutdown_timeout"` // Graceful shutdown timeout
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
	Output string `koanf:"output"` // stdout, stderr, or file path
}

// AuditConfig holds request audit log configuration
type AuditConfig struct {
	Enabled      bool   `koanf:"enabled"`       // Enable the SQLite audit log
	DatabasePath string `koanf:"database_path"` // SQLite database path
}

// RateLimitConfig holds per-client rate limiting configuration
type RateLimitConfig struct {
	Enabled  bool   `koanf:"enabled"`  // Enable per-IP rate limiting
	Requests int    `koanf:"requests"` // Allowed requests per window
	Window   string `koanf:"window"`   // Window duration (e.g. "1m")
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		IMAP: IMAPConfig{
			Host:           "imap.gmail.com",
			Port:           993,
			UseTLS:         true,
			ConnectTimeout: "30s",
		},
		Server: ServerConfig{
			Listen:          "0.0.0.0",
			Port:            8080,
			ReadTimeout:     "30s",
			WriteTimeout:    "60s",
			ShutdownTimeout: "30s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Audit: AuditConfig{
			Enabled: false,
		},
		RateLimit: RateLimitConfig{
			Enabled:  false,
			Requests: 60,
			Window:   "1m",
		},
	}
}

// Load reads configuration from a YAML file, then applies IMAPGW_*
// environment variable overrides on top.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load defaults first
	cfg := DefaultConfig()

	// Load YAML config file if present
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Environment variables win over the file. Only the first underscore
	// separates the section from the key, so IMAPGW_IMAP_CONNECT_TIMEOUT
	// maps to imap.connect_timeout.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.Replace(s, "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// IMAP validation
	if c.IMAP.Host == "" {
		return fmt.Errorf("imap.host is required")
	}
	if c.IMAP.Port < 1 || c.IMAP.Port > 65535 {
		return fmt.Errorf("imap.port must be between 1 and 65535 (got: %d)", c.IMAP.Port)
	}
	if c.IMAP.Username == "" {
		return fmt.Errorf("imap.username is required")
	}
	if c.IMAP.Password == "" {
		return fmt.Errorf("imap.password is required")
	}

	// Server validation
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535 (got: %d)", c.Server.Port)
	}

	// Timeout validation
	if err := c.validateTimeouts(); err != nil {
		return err
	}

	// Logging validation
	if c.Logging.Level != "" {
		validLevels := map[string]bool{
			"debug": true, "info": true, "warn": true, "error": true,
		}
		if !validLevels[c.Logging.Level] {
			return fmt.Errorf("logging.level must be one of: debug, info, warn, error (got: %s)", c.Logging.Level)
		}
	}

	if c.Logging.Format != "" {
		validFormats := map[string]bool{"json": true, "text": true}
		if !validFormats[c.Logging.Format] {
			return fmt.Errorf("logging.format must be one of: json, text (got: %s)", c.Logging.Format)
		}
	}

	// Audit validation
	if c.Audit.Enabled {
		if c.Audit.DatabasePath == "" {
			return fmt.Errorf("audit.database_path is required when audit is enabled")
		}
		if !filepath.IsAbs(c.Audit.DatabasePath) {
			return fmt.Errorf("audit.database_path must be an absolute path (got: %s)", c.Audit.DatabasePath)
		}
	}

	// Rate limit validation
	if c.RateLimit.Enabled {
		if c.RateLimit.Requests < 1 {
			return fmt.Errorf("ratelimit.requests must be at least 1 (got: %d)", c.RateLimit.Requests)
		}
	}

	return nil
}

// validateTimeouts ensures all timeout configurations are valid
func (c *Config) validateTimeouts() error {
	timeouts := map[string]string{
		"imap.connect_timeout":    c.IMAP.ConnectTimeout,
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"ratelimit.window":        c.RateLimit.Window,
	}

	for name, timeout := range timeouts {
		if timeout == "" {
			continue // Optional
		}
		duration, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("%s is invalid: %w", name, err)
		}
		if duration <= 0 {
			return fmt.Errorf("%s must be positive (got: %s)", name, timeout)
		}

		switch name {
		case "server.shutdown_timeout":
			if duration > 5*time.Minute {
				return fmt.Errorf("%s is too long, maximum is 5m (got: %s)", name, timeout)
			}
		case "imap.connect_timeout":
			if duration > 2*time.Minute {
				return fmt.Errorf("%s is too long, maximum is 2m (got: %s)", name, timeout)
			}
		}
	}

	return nil
}

// EnsureDirectories creates directories required by the configuration
func (c *Config) EnsureDirectories() error {
	if !c.Audit.Enabled {
		return nil
	}
	dir := filepath.Dir(c.Audit.DatabasePath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
