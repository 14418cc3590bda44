package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig holds the daemon configuration. Values come from environment
// variables with defaults, optionally overlaid by a YAML file.
type AppConfig struct {
	// Service metadata, reported on spans and the health endpoint.
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Environment    string `yaml:"environment"`
	LogLevel       string `yaml:"log_level"`

	// Hub settings.
	HubName          string        `yaml:"hub_name"`
	DefaultTimeout   time.Duration `yaml:"default_timeout"`
	ConsensusTimeout time.Duration `yaml:"consensus_timeout"`
	SupervisorRoles  []string      `yaml:"supervisor_roles"`
	ShutdownGrace    time.Duration `yaml:"shutdown_grace"`

	// Observability stack endpoints.
	CollectorEndpoint string `yaml:"collector_endpoint"`
	HealthPort        string `yaml:"health_port"`
	PrometheusPort    string `yaml:"prometheus_port"`
}

// Load reads configuration from the environment with defaults. If
// COMMHUB_CONFIG names a YAML file, its values overlay the environment.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ServiceName:    getEnv("SERVICE_NAME", "commhub"),
		ServiceVersion: getEnv("SERVICE_VERSION", "1.0.0"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "INFO"),

		HubName:          getEnv("COMMHUB_NAME", "commhub"),
		DefaultTimeout:   getEnvAsDuration("COMMHUB_DEFAULT_TIMEOUT", 5*time.Minute),
		ConsensusTimeout: getEnvAsDuration("COMMHUB_CONSENSUS_TIMEOUT", 60*time.Second),
		SupervisorRoles:  getEnvAsList("COMMHUB_SUPERVISOR_ROLES", []string{"ceo", "supervisor"}),
		ShutdownGrace:    getEnvAsDuration("COMMHUB_SHUTDOWN_GRACE", 10*time.Second),

		CollectorEndpoint: getEnv("OTEL_COLLECTOR_ENDPOINT", "127.0.0.1:4317"),
		HealthPort:        getEnv("COMMHUB_HEALTH_PORT", "8080"),
		PrometheusPort:    getEnv("PROMETHEUS_PORT", "9090"),
	}

	if path := os.Getenv("COMMHUB_CONFIG"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// overlayFile merges a YAML file on top of the current values. Unset keys
// in the file leave the existing values untouched.
func (c *AppConfig) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// SlogLevel maps the configured log level string to its slog value.
// Unknown values fall back to INFO.
func (c *AppConfig) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// HealthAddress returns the listen address for the health endpoint.
func (c *AppConfig) HealthAddress() string {
	return ":" + c.HealthPort
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
