// Package config provides configuration management for fbxmetrics.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Dlizzz/fbxmetrics/internal/types"
)

// Config holds all configuration settings for fbxmetrics.
type Config struct {
	FreeboxHost      string
	DiscoveryTimeout time.Duration
	HTTPTimeout      time.Duration
	APIRateLimit     float64

	SinkURL      string
	PushJob      string
	PushInstance string

	PollInterval    time.Duration
	RegisterTimeout time.Duration

	TokenFile     string
	MetricsPrefix string
	DeviceName    string

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config
// struct with defaults applied.
func Load() Config {
	cfg := Config{}

	cfg.loadDeviceSettings()
	cfg.loadSinkSettings()
	cfg.loadScheduleSettings()
	cfg.loadStorageSettings()
	cfg.loadLoggingSettings()

	return cfg
}

func (cfg *Config) loadDeviceSettings() {
	cfg.FreeboxHost = "mafreebox.freebox.fr"
	if v := os.Getenv("FREEBOX_HOST"); v != "" {
		cfg.FreeboxHost = v
	}

	cfg.DiscoveryTimeout = durationEnv("DISCOVERY_TIMEOUT", 5*time.Second)
	cfg.HTTPTimeout = durationEnv("HTTP_TIMEOUT", 10*time.Second)

	cfg.APIRateLimit = 5
	if v := os.Getenv("API_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.APIRateLimit = f
		}
	}

	cfg.DeviceName, _ = os.Hostname()
	if v := os.Getenv("DEVICE_NAME"); v != "" {
		cfg.DeviceName = v
	}
	if cfg.DeviceName == "" {
		cfg.DeviceName = "fbxmetrics"
	}
}

func (cfg *Config) loadSinkSettings() {
	cfg.SinkURL = "http://localhost:9091"
	if v := os.Getenv("PUSHGATEWAY_URL"); v != "" {
		cfg.SinkURL = v
	}

	cfg.PushJob = "fbxmetrics"
	if v := os.Getenv("PUSH_JOB"); v != "" {
		cfg.PushJob = v
	}

	// Empty means "use the device UID resolved at discovery time".
	cfg.PushInstance = os.Getenv("PUSH_INSTANCE")
}

func (cfg *Config) loadScheduleSettings() {
	cfg.PollInterval = durationEnv("POLL_INTERVAL", 30*time.Second)
	cfg.RegisterTimeout = durationEnv("REGISTER_TIMEOUT", 2*time.Minute)
}

func (cfg *Config) loadStorageSettings() {
	cfg.TokenFile = os.Getenv("TOKEN_FILE")
	if cfg.TokenFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.TokenFile = filepath.Join(home, ".config", "fbxmetrics", "token.json")
		} else {
			cfg.TokenFile = "fbxmetrics-token.json"
		}
	}

	cfg.MetricsPrefix = "fbx_"
	if v := os.Getenv("METRICS_PREFIX"); v != "" {
		cfg.MetricsPrefix = v
	}
}

func (cfg *Config) loadLoggingSettings() {
	cfg.LogLevel = "info"
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.LogFormat = "text"
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
		return time.Duration(sec) * time.Second
	}
	return fallback
}

// Validate checks the configuration for consistency and required values.
func (cfg Config) Validate() error {
	if err := cfg.validateSinkSettings(); err != nil {
		return err
	}

	if err := cfg.validateScheduleSettings(); err != nil {
		return err
	}

	if err := cfg.validateMetricsSettings(); err != nil {
		return err
	}

	return cfg.validateLogSettings()
}

func (cfg Config) validateSinkSettings() error {
	u, err := url.Parse(cfg.SinkURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid PUSHGATEWAY_URL: %s", cfg.SinkURL)
	}

	if cfg.PushJob == "" {
		return fmt.Errorf("PUSH_JOB cannot be empty")
	}
	return nil
}

func (cfg Config) validateScheduleSettings() error {
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}

	if cfg.RegisterTimeout <= 0 {
		return fmt.Errorf("REGISTER_TIMEOUT must be positive")
	}

	if cfg.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}

	if cfg.DiscoveryTimeout <= 0 {
		return fmt.Errorf("DISCOVERY_TIMEOUT must be positive")
	}

	if cfg.APIRateLimit <= 0 {
		return fmt.Errorf("API_RATE_LIMIT must be positive")
	}
	return nil
}

func (cfg Config) validateMetricsSettings() error {
	if cfg.MetricsPrefix != "" {
		probe := types.MetricName(cfg.MetricsPrefix + "probe")
		if !probe.IsValid() {
			return fmt.Errorf("invalid METRICS_PREFIX: %s", cfg.MetricsPrefix)
		}
	}

	if cfg.TokenFile == "" {
		return fmt.Errorf("TOKEN_FILE cannot be empty")
	}
	return nil
}

func (cfg Config) validateLogSettings() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if cfg.LogLevel != "" && !contains(validLogLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s, valid options: %v", cfg.LogLevel, validLogLevels)
	}

	validLogFormats := []string{"json", "text"}
	if cfg.LogFormat != "" && !contains(validLogFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s, valid options: %v", cfg.LogFormat, validLogFormats)
	}
	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
