// Package config provides YAML-based configuration for the intake service.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/caremesh/intake/internal/intake"
	"github.com/caremesh/intake/internal/models"
)

// Config is the root configuration structure.
type Config struct {
	Server      ServerConfig   `yaml:"server"`
	PlatformAPI PlatformConfig `yaml:"platformApi"`
	Storage     StorageConfig  `yaml:"storage"`
	Intake      IntakeConfig   `yaml:"intake"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int    `yaml:"port"`
	BindAddress  string `yaml:"bindAddress"`
	EnableCORS   bool   `yaml:"enableCors"`
	AllowOrigins string `yaml:"allowOrigins"`
	ReadTimeout  int    `yaml:"readTimeoutSeconds"`
	WriteTimeout int    `yaml:"writeTimeoutSeconds"`
	IdleTimeout  int    `yaml:"idleTimeoutSeconds"`
	BodyLimit    string `yaml:"bodyLimit"`
}

// PlatformConfig locates the remote platform API and the ambient session
// credentials sent with every call.
type PlatformConfig struct {
	BaseURL            string `yaml:"baseUrl"`
	SessionCookieName  string `yaml:"sessionCookieName"`
	SessionCookieValue string `yaml:"sessionCookieValue"`
	TimeoutSeconds     int    `yaml:"timeoutSeconds"`
}

// StorageConfig contains local data directories.
type StorageConfig struct {
	DataDirectory     string `yaml:"dataDirectory"`
	PreviewsDirectory string `yaml:"previewsDirectory"`
	AuditDirectory    string `yaml:"auditDirectory"`
	AuditMaxAgeDays   int    `yaml:"auditMaxAgeDays"`
}

// IntakeConfig holds the externally-configured validation rules and the
// fixed slot set.
type IntakeConfig struct {
	MaxSizeBytes  int64         `yaml:"maxSizeBytes"`
	AcceptedTypes []string      `yaml:"acceptedTypes"`
	Slots         []models.Slot `yaml:"slots"`
}

// Default returns the configuration used when no config file exists: the
// standard provider credential set with a 10MB cap.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8085,
			BindAddress:  "127.0.0.1",
			EnableCORS:   true,
			AllowOrigins: "http://localhost:5173",
			ReadTimeout:  60,
			WriteTimeout: 60,
			IdleTimeout:  120,
			BodyLimit:    "12M",
		},
		PlatformAPI: PlatformConfig{
			BaseURL:           "https://api.caremesh.example.com",
			SessionCookieName: "cm_session",
			TimeoutSeconds:    30,
		},
		Storage: StorageConfig{
			DataDirectory:     "./data",
			PreviewsDirectory: "./data/previews",
			AuditDirectory:    "./data/audit",
			AuditMaxAgeDays:   30,
		},
		Intake: IntakeConfig{
			MaxSizeBytes: 10 * 1024 * 1024,
			AcceptedTypes: []string{
				".pdf", ".jpg", ".jpeg", ".png",
				"application/pdf", "image/*",
			},
			Slots: []models.Slot{
				{Kind: "license", Label: "Medical License", Required: true},
				{Kind: "degree", Label: "Medical Degree", Required: true},
				{Kind: "id_proof", Label: "Government ID", Required: true},
				{Kind: "specialization", Label: "Specialization Certificate", Required: false},
			},
		},
	}
}

// Load reads the YAML config at path. A missing file yields the defaults;
// a present but invalid file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Intake.MaxSizeBytes <= 0 {
		return fmt.Errorf("intake.maxSizeBytes must be positive")
	}
	if len(c.Intake.Slots) == 0 {
		return fmt.Errorf("intake.slots must not be empty")
	}
	seen := make(map[string]bool, len(c.Intake.Slots))
	for _, slot := range c.Intake.Slots {
		if slot.Kind == "" {
			return fmt.Errorf("intake slot with empty kind")
		}
		if seen[slot.Kind] {
			return fmt.Errorf("duplicate intake slot kind: %s", slot.Kind)
		}
		seen[slot.Kind] = true
	}
	if c.PlatformAPI.BaseURL == "" {
		return fmt.Errorf("platformApi.baseUrl is required")
	}
	return nil
}

// EnsureDirectories creates all configured data directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.PreviewsDirectory,
		c.Storage.AuditDirectory,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetServerAddr returns the listen address.
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// Rules builds the validator rules from the intake section.
func (c *Config) Rules() intake.Rules {
	return intake.Rules{
		MaxSizeBytes: c.Intake.MaxSizeBytes,
		Accepted:     c.Intake.AcceptedTypes,
	}
}

// PlatformTimeout returns the configured platform API timeout.
func (c *Config) PlatformTimeout() time.Duration {
	return time.Duration(c.PlatformAPI.TimeoutSeconds) * time.Second
}
