// Package config handles loading and parsing of elasto client configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for an elasto client.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Conn    ConnConfig    `yaml:"conn"`
	Azure   AzureConfig   `yaml:"azure"`
	S3      S3Config      `yaml:"s3"`
	Web     WebConfig     `yaml:"web"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `yaml:"level"`
	// Format is the log output format: "text" or "json".
	Format string `yaml:"format"`
}

// ConnConfig holds settings shared by every backend's Connection.
type ConnConfig struct {
	// InactivityTimeoutSeconds is parsed and defaulted (30s) by Load;
	// internal/conn does not read it and applies its own fixed 30s
	// per-request timeout.
	InactivityTimeoutSeconds int `yaml:"inactivity_timeout_seconds"`
	// InsecureHTTP disables TLS, for testing against local emulators.
	InsecureHTTP bool `yaml:"insecure_http"`
}

// InactivityTimeout returns the configured inactivity timeout as a
// time.Duration, applying the default when unset.
func (c ConnConfig) InactivityTimeout() time.Duration {
	if c.InactivityTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.InactivityTimeoutSeconds) * time.Second
}

// AzureConfig holds shared-key credentials for the Azure Block Blob, Page
// Blob, and File Service backends, plus the management-API client cert.
type AzureConfig struct {
	// Account is the storage account name.
	Account string `yaml:"account"`
	// AccountKey is the base64 shared key used by internal/sign.
	AccountKey string `yaml:"account_key"`
	// ManagementPEMFile is an optional client certificate for the
	// management-API mutual-TLS connection.
	ManagementPEMFile string `yaml:"management_pem_file"`
	// UseLiteSigning selects the shared-key-lite canonicalisation
	// (internal/sign.AzureSharedKeyLite) instead of the full scheme.
	UseLiteSigning bool `yaml:"use_lite_signing"`
}

// S3Config holds access key credentials for the Amazon S3 backend.
type S3Config struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
}

// WebConfig holds settings for the read-only HTTP fetch backend.
type WebConfig struct {
	// UserAgent is parsed and defaulted ("elasto/1") by Load; requests
	// do not carry it.
	UserAgent string `yaml:"user_agent"`
}

// Load reads a YAML configuration file from the given path and returns a
// parsed Config, falling back to elasto.example.yaml beside it when the
// primary path does not exist. It applies sensible defaults for unset
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		fallbackPaths := []string{
			filepath.Join(filepath.Dir(path), "elasto.example.yaml"),
			filepath.Join(filepath.Dir(path), "..", "elasto.example.yaml"),
		}
		var fallbackErr error
		for _, fp := range fallbackPaths {
			data, fallbackErr = os.ReadFile(fp)
			if fallbackErr == nil {
				break
			}
		}
		if fallbackErr != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Conn:    ConnConfig{InactivityTimeoutSeconds: 30},
		S3:      S3Config{Region: "us-east-1"},
		Web:     WebConfig{UserAgent: "elasto/1"},
	}
}

// applyDefaults fills in any fields still at their zero value after YAML
// unmarshaling.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Conn.InactivityTimeoutSeconds == 0 {
		cfg.Conn.InactivityTimeoutSeconds = 30
	}
	if cfg.S3.Region == "" {
		cfg.S3.Region = "us-east-1"
	}
	if cfg.Web.UserAgent == "" {
		cfg.Web.UserAgent = "elasto/1"
	}
}
