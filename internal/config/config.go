// Package config loads the service configuration from a YAML file with
// environment overrides for deployment-specific values and secrets.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type DirectoryConfig struct {
	BaseURL      string   `yaml:"base_url"`
	TokenURL     string   `yaml:"token_url"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scopes       []string `yaml:"scopes"`

	StudentGroup string `yaml:"student_group"`
	FacultyGroup string `yaml:"faculty_group"`

	CredentialLength       int    `yaml:"credential_length"`
	PropagationWaitSeconds int    `yaml:"propagation_wait_seconds"`
	SenderMailbox          string `yaml:"sender_mailbox"`
}

type WebConfig struct {
	LoginURL         string `yaml:"login_url"`
	FormURL          string `yaml:"form_url"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	SuccessURLPrefix string `yaml:"success_url_prefix"`
	DefaultPassword  string `yaml:"default_password"`
	DefaultBirthDate string `yaml:"default_birth_date"`
	ScreenshotDir    string `yaml:"screenshot_dir"`
	Headless         bool   `yaml:"headless"`
	SubmitWaitMillis int    `yaml:"submit_wait_millis"`
}

type MailConfig struct {
	Subject string `yaml:"subject"`
}

type BatchConfig struct {
	BaseDir              string `yaml:"base_dir"`
	InstitutionalDomain  string `yaml:"institutional_domain"`
	DirectoryConcurrency int    `yaml:"directory_concurrency"`
	TimeoutMinutes       int    `yaml:"timeout_minutes"`
	PollSeconds          int    `yaml:"poll_seconds"`
	LeaseSeconds         int    `yaml:"lease_seconds"`
}

type ExportConfig struct {
	Dir string `yaml:"dir"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Directory DirectoryConfig `yaml:"directory"`
	Web       WebConfig       `yaml:"web"`
	Mail      MailConfig      `yaml:"mail"`
	Batch     BatchConfig     `yaml:"batch"`
	Export    ExportConfig    `yaml:"export"`
}

// Load reads the YAML file at path, then applies environment overrides so
// secrets never need to live in the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database url is required (database.url or DATABASE_URL)")
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Directory.ClientID = getEnv("DIRECTORY_CLIENT_ID", c.Directory.ClientID)
	c.Directory.ClientSecret = getEnv("DIRECTORY_CLIENT_SECRET", c.Directory.ClientSecret)
	c.Web.Username = getEnv("WEB_USERNAME", c.Web.Username)
	c.Web.Password = getEnv("WEB_PASSWORD", c.Web.Password)
	c.Batch.BaseDir = getEnv("BATCH_BASE_DIR", c.Batch.BaseDir)
	c.Batch.LeaseSeconds = parseIntEnv("BATCH_LEASE_SECONDS", c.Batch.LeaseSeconds)
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Batch.BaseDir == "" {
		c.Batch.BaseDir = "."
	}
	if c.Batch.PollSeconds <= 0 {
		c.Batch.PollSeconds = 2
	}
	if c.Batch.LeaseSeconds <= 0 {
		c.Batch.LeaseSeconds = 300
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "exports"
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func parseIntEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
