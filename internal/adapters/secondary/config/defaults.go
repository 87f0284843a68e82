package config

import (
	"os"
	"strconv"

	"github.com/monaca/localkit/internal/domain/entities"
)

// GetDefaultConfig returns the default configuration with environment overrides
func GetDefaultConfig() *entities.Config {
	return &entities.Config{
		Server: entities.ServerConfig{
			Host:            getEnvOrDefault("LOCALKIT_HOST", ""),
			Port:            getEnvIntOrDefault("LOCALKIT_PORT", 8080),
			Name:            getEnvOrDefault("LOCALKIT_NAME", defaultServerName()),
			ReadTimeout:     getEnvIntOrDefault("LOCALKIT_READ_TIMEOUT", 15),
			ShutdownTimeout: getEnvIntOrDefault("LOCALKIT_SHUTDOWN_TIMEOUT", 5),
			CORSOrigins:     []string{"*"},
		},
		Beacon: entities.BeaconConfig{
			Enabled:    getEnvBoolOrDefault("LOCALKIT_BEACON", true),
			Port:       getEnvIntOrDefault("LOCALKIT_BEACON_PORT", 8001),
			IntervalMs: getEnvIntOrDefault("LOCALKIT_BEACON_INTERVAL_MS", 5000),
		},
		Watcher: entities.WatcherConfig{
			DebounceMs:  200,
			KeepaliveMs: 20000,
		},
		Projects: entities.ProjectsConfig{
			Marker: "www",
			Ignore: []string{".git", "node_modules", ".localkit", ".DS_Store"},
		},
		Logging: entities.LoggingConfig{
			Level:   getEnvOrDefault("LOCALKIT_LOG_LEVEL", "info"),
			Verbose: getEnvBoolOrDefault("LOCALKIT_LOG_VERBOSE", false),
		},
	}
}

func defaultServerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "localkit"
	}
	return host
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault returns the environment variable as an int or a default
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBoolOrDefault returns the environment variable as a bool or a default
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
