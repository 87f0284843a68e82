package entities

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Beacon   BeaconConfig   `toml:"beacon"`
	Watcher  WatcherConfig  `toml:"watcher"`
	Projects ProjectsConfig `toml:"projects"`
	Logging  LoggingConfig  `toml:"logging"`
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Beacon.Validate(); err != nil {
		return fmt.Errorf("beacon config: %w", err)
	}

	if err := c.Watcher.Validate(); err != nil {
		return fmt.Errorf("watcher config: %w", err)
	}

	if err := c.Projects.Validate(); err != nil {
		return fmt.Errorf("projects config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// ServerConfig contains API gateway configuration
type ServerConfig struct {
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	Name            string   `toml:"name"`
	ReadTimeout     int      `toml:"read_timeout"`
	ShutdownTimeout int      `toml:"shutdown_timeout"`
	CORSOrigins     []string `toml:"cors_origins"`
}

// Validate validates server configuration
func (s ServerConfig) Validate() error {
	if s.Port < 0 || s.Port > 65535 {
		return errors.New("port must be between 0 and 65535")
	}

	if s.Host != "" {
		if ip := net.ParseIP(s.Host); ip == nil {
			if _, err := net.LookupHost(s.Host); err != nil {
				return fmt.Errorf("invalid host: %w", err)
			}
		}
	}

	if s.ReadTimeout < 0 {
		return errors.New("read timeout must be non-negative")
	}

	if s.ShutdownTimeout < 0 {
		return errors.New("shutdown timeout must be non-negative")
	}

	return nil
}

// GetReadTimeout returns the read timeout as a duration
func (s ServerConfig) GetReadTimeout() time.Duration {
	if s.ReadTimeout <= 0 {
		return 15 * time.Second
	}
	return time.Duration(s.ReadTimeout) * time.Second
}

// GetShutdownTimeout returns the shutdown timeout as a duration
func (s ServerConfig) GetShutdownTimeout() time.Duration {
	if s.ShutdownTimeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.ShutdownTimeout) * time.Second
}

// BeaconConfig contains UDP discovery beacon configuration
type BeaconConfig struct {
	Enabled    bool `toml:"enabled"`
	Port       int  `toml:"port"`
	IntervalMs int  `toml:"interval_ms"`
}

// Validate validates beacon configuration
func (b BeaconConfig) Validate() error {
	if b.Port < 0 || b.Port > 65535 {
		return errors.New("beacon port must be between 0 and 65535")
	}

	if b.IntervalMs < 0 {
		return errors.New("beacon interval must be non-negative")
	}

	return nil
}

// GetPort returns the beacon destination port
func (b BeaconConfig) GetPort() int {
	if b.Port == 0 {
		return 8001
	}
	return b.Port
}

// GetInterval returns the broadcast interval as a duration
func (b BeaconConfig) GetInterval() time.Duration {
	if b.IntervalMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(b.IntervalMs) * time.Millisecond
}

// WatcherConfig contains file watcher and push channel configuration
type WatcherConfig struct {
	DebounceMs  int `toml:"debounce_ms"`
	KeepaliveMs int `toml:"keepalive_ms"`
}

// Validate validates watcher configuration
func (w WatcherConfig) Validate() error {
	if w.DebounceMs < 0 {
		return errors.New("debounce must be non-negative")
	}

	if w.KeepaliveMs < 0 {
		return errors.New("keepalive interval must be non-negative")
	}

	return nil
}

// GetDebounce returns the watcher debounce as a duration
func (w WatcherConfig) GetDebounce() time.Duration {
	if w.DebounceMs <= 0 {
		return 200 * time.Millisecond
	}
	return time.Duration(w.DebounceMs) * time.Millisecond
}

// GetKeepalive returns the push-channel keep-alive interval
func (w WatcherConfig) GetKeepalive() time.Duration {
	if w.KeepaliveMs <= 0 {
		return 20 * time.Second
	}
	return time.Duration(w.KeepaliveMs) * time.Millisecond
}

// ProjectsConfig contains project registry configuration
type ProjectsConfig struct {
	// Marker is the subdirectory whose presence identifies a trackable
	// project; it is also the content root the watcher observes.
	Marker string   `toml:"marker"`
	Ignore []string `toml:"ignore"`
}

// Validate validates projects configuration
func (p ProjectsConfig) Validate() error {
	for _, pattern := range p.Ignore {
		if pattern == "" {
			return errors.New("ignore pattern cannot be empty")
		}
	}
	return nil
}

// GetMarker returns the project marker subdirectory name
func (p ProjectsConfig) GetMarker() string {
	if p.Marker == "" {
		return "www"
	}
	return p.Marker
}

// GetIgnore returns the ignore list, defaulting to common junk directories
func (p ProjectsConfig) GetIgnore() []string {
	if len(p.Ignore) == 0 {
		return []string{".git", "node_modules", ".localkit", ".DS_Store"}
	}
	return p.Ignore
}

// LogLevel represents a logging threshold
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level   string `toml:"level"`
	Verbose bool   `toml:"verbose"`
}

// Validate validates logging configuration
func (l LoggingConfig) Validate() error {
	switch LogLevel(l.Level) {
	case "", LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	default:
		return fmt.Errorf("invalid log level: %s", l.Level)
	}
}

// GetLevel returns the configured level, defaulting to info
func (l LoggingConfig) GetLevel() LogLevel {
	if l.Level == "" {
		return LogLevelInfo
	}
	return LogLevel(l.Level)
}
