package config

import (
	"os"
	"testing"
	"time"
)

func TestConfigLoad(t *testing.T) {
	os.Clearenv()

	os.Setenv("FREEBOX_HOST", "192.168.1.254")
	os.Setenv("DISCOVERY_TIMEOUT", "3s")
	os.Setenv("HTTP_TIMEOUT", "20s")
	os.Setenv("API_RATE_LIMIT", "2.5")
	os.Setenv("PUSHGATEWAY_URL", "http://gateway:9091")
	os.Setenv("PUSH_JOB", "freebox")
	os.Setenv("PUSH_INSTANCE", "fbx-home")
	os.Setenv("POLL_INTERVAL", "60s")
	os.Setenv("REGISTER_TIMEOUT", "90s")
	os.Setenv("TOKEN_FILE", "/var/lib/fbxmetrics/token.json")
	os.Setenv("METRICS_PREFIX", "freebox_")
	os.Setenv("DEVICE_NAME", "monitoring-host")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("LOG_FORMAT", "json")

	cfg := Load()

	if cfg.FreeboxHost != "192.168.1.254" {
		t.Errorf("Expected FreeboxHost '192.168.1.254', got %s", cfg.FreeboxHost)
	}

	if cfg.DiscoveryTimeout != 3*time.Second {
		t.Errorf("Expected DiscoveryTimeout 3s, got %v", cfg.DiscoveryTimeout)
	}

	if cfg.HTTPTimeout != 20*time.Second {
		t.Errorf("Expected HTTPTimeout 20s, got %v", cfg.HTTPTimeout)
	}

	if cfg.APIRateLimit != 2.5 {
		t.Errorf("Expected APIRateLimit 2.5, got %v", cfg.APIRateLimit)
	}

	if cfg.SinkURL != "http://gateway:9091" {
		t.Errorf("Expected SinkURL 'http://gateway:9091', got %s", cfg.SinkURL)
	}

	if cfg.PushJob != "freebox" {
		t.Errorf("Expected PushJob 'freebox', got %s", cfg.PushJob)
	}

	if cfg.PushInstance != "fbx-home" {
		t.Errorf("Expected PushInstance 'fbx-home', got %s", cfg.PushInstance)
	}

	if cfg.PollInterval != 60*time.Second {
		t.Errorf("Expected PollInterval 60s, got %v", cfg.PollInterval)
	}

	if cfg.RegisterTimeout != 90*time.Second {
		t.Errorf("Expected RegisterTimeout 90s, got %v", cfg.RegisterTimeout)
	}

	if cfg.TokenFile != "/var/lib/fbxmetrics/token.json" {
		t.Errorf("Expected TokenFile '/var/lib/fbxmetrics/token.json', got %s", cfg.TokenFile)
	}

	if cfg.MetricsPrefix != "freebox_" {
		t.Errorf("Expected MetricsPrefix 'freebox_', got %s", cfg.MetricsPrefix)
	}

	if cfg.DeviceName != "monitoring-host" {
		t.Errorf("Expected DeviceName 'monitoring-host', got %s", cfg.DeviceName)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("Expected LogLevel 'debug', got %s", cfg.LogLevel)
	}

	if cfg.LogFormat != "json" {
		t.Errorf("Expected LogFormat 'json', got %s", cfg.LogFormat)
	}
}

func TestConfigLoadDefaults(t *testing.T) {
	os.Clearenv()

	cfg := Load()

	if cfg.FreeboxHost != "mafreebox.freebox.fr" {
		t.Errorf("Expected default FreeboxHost 'mafreebox.freebox.fr', got %s", cfg.FreeboxHost)
	}

	if cfg.DiscoveryTimeout != 5*time.Second {
		t.Errorf("Expected default DiscoveryTimeout 5s, got %v", cfg.DiscoveryTimeout)
	}

	if cfg.SinkURL != "http://localhost:9091" {
		t.Errorf("Expected default SinkURL 'http://localhost:9091', got %s", cfg.SinkURL)
	}

	if cfg.PushJob != "fbxmetrics" {
		t.Errorf("Expected default PushJob 'fbxmetrics', got %s", cfg.PushJob)
	}

	if cfg.PollInterval != 30*time.Second {
		t.Errorf("Expected default PollInterval 30s, got %v", cfg.PollInterval)
	}

	if cfg.MetricsPrefix != "fbx_" {
		t.Errorf("Expected default MetricsPrefix 'fbx_', got %s", cfg.MetricsPrefix)
	}

	if cfg.TokenFile == "" {
		t.Error("Expected non-empty default TokenFile")
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got %s", cfg.LogLevel)
	}

	if cfg.LogFormat != "text" {
		t.Errorf("Expected default LogFormat 'text', got %s", cfg.LogFormat)
	}
}

func TestDurationEnvSeconds(t *testing.T) {
	os.Clearenv()
	os.Setenv("POLL_INTERVAL", "45")

	cfg := Load()

	if cfg.PollInterval != 45*time.Second {
		t.Errorf("Expected plain integer to parse as seconds, got %v", cfg.PollInterval)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		FreeboxHost:      "mafreebox.freebox.fr",
		DiscoveryTimeout: 5 * time.Second,
		HTTPTimeout:      10 * time.Second,
		APIRateLimit:     5,
		SinkURL:          "http://localhost:9091",
		PushJob:          "fbxmetrics",
		PollInterval:     30 * time.Second,
		RegisterTimeout:  2 * time.Minute,
		TokenFile:        "/tmp/token.json",
		MetricsPrefix:    "fbx_",
		LogLevel:         "info",
		LogFormat:        "text",
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"bad sink URL", func(c *Config) { c.SinkURL = "://nope" }, true},
		{"empty job", func(c *Config) { c.PushJob = "" }, true},
		{"zero interval", func(c *Config) { c.PollInterval = 0 }, true},
		{"zero http timeout", func(c *Config) { c.HTTPTimeout = 0 }, true},
		{"zero rate limit", func(c *Config) { c.APIRateLimit = 0 }, true},
		{"bad prefix", func(c *Config) { c.MetricsPrefix = "1bad-" }, true},
		{"empty token file", func(c *Config) { c.TokenFile = "" }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, true},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
