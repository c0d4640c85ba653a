package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the retrieval pipeline and the
// similarity clusterer. Both binaries read the same file.
type Config struct {
	Limits   LimitsConfig   `yaml:"limits"`
	Logging  LoggingConfig  `yaml:"logging"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Browser  BrowserConfig  `yaml:"browser"`
	Server   ServerConfig   `yaml:"server"`
}

// LimitsConfig holds pipeline pacing and size limits.
type LimitsConfig struct {
	BatchSize            int   `yaml:"batch_size"`              // chunk size for commit cadence
	MaxVideoDownloadSize int64 `yaml:"max_video_download_size"` // hard cap on video byte length
}

// LoggingConfig holds operator notification settings.
type LoggingConfig struct {
	SlackURL             string `yaml:"slack_url"`
	SlackUserIDToInclude string `yaml:"slack_user_id_to_include"`
}

// DatabaseConfig holds Cassandra connection settings.
type DatabaseConfig struct {
	Hosts       []string `yaml:"hosts"`
	Keyspace    string   `yaml:"keyspace"`
	Consistency string   `yaml:"consistency"`
	LocalDC     string   `yaml:"local_dc"`
	Username    string   `yaml:"username"`
	Password    string   `yaml:"password"`
}

// StorageConfig holds object store settings. The three bucket names default
// to the historic layout and rarely change.
type StorageConfig struct {
	Endpoint          string      `yaml:"endpoint"` // custom endpoint for S3-compatible storage
	Region            string      `yaml:"region"`
	AccessKeyID       string      `yaml:"access_key_id"`
	SecretAccessKey   string      `yaml:"secret_access_key"`
	UsePathStyle      bool        `yaml:"use_path_style"`
	ImagesBucket      string      `yaml:"images_bucket"`
	VideosBucket      string      `yaml:"videos_bucket"`
	ScreenshotsBucket string      `yaml:"screenshots_bucket"`
	Retry             RetryConfig `yaml:"retry"`
}

// RetryConfig holds the upload retry schedule.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BackoffBase time.Duration `yaml:"backoff_base"`
	BackoffCap  time.Duration `yaml:"backoff_cap"`
}

// BrowserConfig is passed through opaquely to the browser-context and
// extractor factories.
type BrowserConfig struct {
	Options map[string]string `yaml:"options"`
}

// ServerConfig holds the optional stats/health listener.
type ServerConfig struct {
	StatsAddr string `yaml:"stats_addr"` // empty disables the listener
}

// Load reads configuration from the given file path and applies environment
// variable overrides. A missing file is an error: both binaries take the
// path as an explicit argument.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Limits: LimitsConfig{
			BatchSize:            20,
			MaxVideoDownloadSize: 512000000, // approx 512 MB
		},
		Database: DatabaseConfig{
			Hosts:       []string{"localhost:9042"},
			Keyspace:    "adharvest",
			Consistency: "LOCAL_QUORUM",
		},
		Storage: StorageConfig{
			Region:            "us-east-1",
			ImagesBucket:      "facebook_ad_images",
			VideosBucket:      "facebook_ad_videos",
			ScreenshotsBucket: "facebook_ad_archive_screenshots",
			Retry: RetryConfig{
				MaxAttempts: 4,
				BackoffBase: 1 * time.Second,
				BackoffCap:  30 * time.Second,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CASSANDRA_HOSTS"); v != "" {
		c.Database.Hosts = []string{v}
	}
	if v := os.Getenv("CASSANDRA_KEYSPACE"); v != "" {
		c.Database.Keyspace = v
	}
	if v := os.Getenv("CASSANDRA_USERNAME"); v != "" {
		c.Database.Username = v
	}
	if v := os.Getenv("CASSANDRA_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("CASSANDRA_LOCAL_DC"); v != "" {
		c.Database.LocalDC = v
	}

	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		c.Storage.Endpoint = v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		c.Storage.Region = v
	}
	if v := os.Getenv("S3_ACCESS_KEY_ID"); v != "" {
		c.Storage.AccessKeyID = v
	}
	if v := os.Getenv("S3_SECRET_ACCESS_KEY"); v != "" {
		c.Storage.SecretAccessKey = v
	}

	if v := os.Getenv("SLACK_URL"); v != "" {
		c.Logging.SlackURL = v
	}
	if v := os.Getenv("SLACK_USER_ID_TO_INCLUDE"); v != "" {
		c.Logging.SlackUserIDToInclude = v
	}

	if v := os.Getenv("BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Limits.BatchSize = n
		}
	}
	if v := os.Getenv("MAX_VIDEO_DOWNLOAD_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Limits.MaxVideoDownloadSize = n
		}
	}

	if v := os.Getenv("STATS_ADDR"); v != "" {
		c.Server.StatsAddr = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if len(c.Database.Hosts) == 0 {
		return fmt.Errorf("at least one database host is required")
	}
	if c.Database.Keyspace == "" {
		return fmt.Errorf("database keyspace is required")
	}
	if c.Limits.BatchSize <= 0 {
		return fmt.Errorf("limits.batch_size must be positive")
	}
	if c.Limits.MaxVideoDownloadSize <= 0 {
		return fmt.Errorf("limits.max_video_download_size must be positive")
	}
	if c.Storage.ImagesBucket == "" || c.Storage.VideosBucket == "" || c.Storage.ScreenshotsBucket == "" {
		return fmt.Errorf("all three storage buckets are required")
	}
	if c.Storage.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("storage.retry.max_attempts must be positive")
	}
	return nil
}
