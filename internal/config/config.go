package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Postman   PostmanConfig    `yaml:"postman"`
	Runner    RunnerConfig     `yaml:"runner"`
	Database  DatabaseConfig   `yaml:"database"`
	Server    ServerConfig     `yaml:"server"`
	Log       LogConfig        `yaml:"log"`
	Schedules []ScheduleConfig `yaml:"schedules,omitempty"`
}

type PostmanConfig struct {
	APIKey  string        `yaml:"apiKey"`
	BaseURL string        `yaml:"baseURL"`
	Timeout time.Duration `yaml:"timeout"`
}

type RunnerConfig struct {
	NewmanScript   string `yaml:"newmanScript"`
	NodeExecutable string `yaml:"nodeExecutable"`
	Branch         string `yaml:"branch"`
	Telemetry      bool   `yaml:"telemetry"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type ServerConfig struct {
	Transport string `yaml:"transport"`
	Port      int    `yaml:"port"`
	BaseURL   string `yaml:"baseURL"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ScheduleConfig describes a collection run repeated on an interval
type ScheduleConfig struct {
	Name          string        `yaml:"name"`
	CollectionID  string        `yaml:"collectionId"`
	EnvironmentID string        `yaml:"environmentId,omitempty"`
	FolderID      string        `yaml:"folderId,omitempty"`
	Interval      time.Duration `yaml:"interval"`
}

const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Postman: PostmanConfig{
			BaseURL: "https://api.getpostman.com",
			Timeout: 30 * time.Second,
		},
		Runner: RunnerConfig{
			NewmanScript:   "newman/runner.js",
			NodeExecutable: "node",
			Branch:         "main",
			Telemetry:      true,
		},
		Server: ServerConfig{
			Transport: TransportStdio,
			Port:      8080,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads an optional YAML file on top of the defaults, then applies
// environment variable overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnv(&config)
	return config, nil
}

func applyEnv(c *Config) {
	c.Postman.APIKey = getEnv("POSTMAN_API_KEY", c.Postman.APIKey)
	c.Postman.BaseURL = getEnv("POSTMAN_API_BASE_URL", c.Postman.BaseURL)
	c.Postman.Timeout = getDurationEnv("POSTMAN_API_TIMEOUT", c.Postman.Timeout)
	c.Runner.NewmanScript = getEnv("NEWMAN_SCRIPT_PATH", c.Runner.NewmanScript)
	c.Runner.NodeExecutable = getEnv("NODE_EXECUTABLE", c.Runner.NodeExecutable)
	c.Runner.Branch = getEnv("GIT_BRANCH", c.Runner.Branch)
	c.Runner.Telemetry = getBoolEnv("RUNNER_TELEMETRY", c.Runner.Telemetry)
	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Server.Transport = getEnv("MCP_TRANSPORT", c.Server.Transport)
	c.Server.Port = getIntEnv("PORT", c.Server.Port)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

// Validate checks the settings every command needs
func (c Config) Validate() error {
	var errs []error

	if c.Postman.APIKey == "" {
		errs = append(errs, errors.New("postman api key is required (POSTMAN_API_KEY)"))
	}
	if c.Postman.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("postman timeout must be positive, got %s", c.Postman.Timeout))
	}
	switch c.Server.Transport {
	case TransportStdio, TransportSSE:
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q", c.Server.Transport))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Server.Port))
	}
	for i, s := range c.Schedules {
		if s.CollectionID == "" {
			errs = append(errs, fmt.Errorf("schedule %d (%s): collectionId is required", i, s.Name))
		}
		if s.Interval < time.Second {
			errs = append(errs, fmt.Errorf("schedule %d (%s): interval must be at least 1s", i, s.Name))
		}
	}

	return errors.Join(errs...)
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable with a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable with a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// MaskConnectionString masks sensitive parts of connection string for logging
func MaskConnectionString(connStr string) string {
	if connStr != "" {
		return "[CONFIGURED]"
	}
	return "[NOT SET]"
}
