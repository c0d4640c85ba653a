package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "logging:\n  slack_url: https://hooks.slack.example/T/B/x\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Limits.BatchSize != 20 {
		t.Errorf("BatchSize = %d, want 20", cfg.Limits.BatchSize)
	}
	if cfg.Limits.MaxVideoDownloadSize != 512000000 {
		t.Errorf("MaxVideoDownloadSize = %d, want 512000000", cfg.Limits.MaxVideoDownloadSize)
	}
	if cfg.Storage.ImagesBucket != "facebook_ad_images" {
		t.Errorf("ImagesBucket = %q", cfg.Storage.ImagesBucket)
	}
	if cfg.Storage.Retry.MaxAttempts != 4 {
		t.Errorf("Retry.MaxAttempts = %d, want 4", cfg.Storage.Retry.MaxAttempts)
	}
	if cfg.Logging.SlackURL != "https://hooks.slack.example/T/B/x" {
		t.Errorf("SlackURL = %q", cfg.Logging.SlackURL)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
limits:
  batch_size: 5
  max_video_download_size: 1024
database:
  hosts: ["db1:9042", "db2:9042"]
  keyspace: ads
server:
  stats_addr: ":9102"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Limits.BatchSize != 5 {
		t.Errorf("BatchSize = %d, want 5", cfg.Limits.BatchSize)
	}
	if len(cfg.Database.Hosts) != 2 {
		t.Errorf("Hosts = %v", cfg.Database.Hosts)
	}
	if cfg.Server.StatsAddr != ":9102" {
		t.Errorf("StatsAddr = %q", cfg.Server.StatsAddr)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CASSANDRA_KEYSPACE", "override_ks")
	t.Setenv("BATCH_SIZE", "7")

	path := writeConfig(t, "database:\n  keyspace: file_ks\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Keyspace != "override_ks" {
		t.Errorf("Keyspace = %q, want override_ks", cfg.Database.Keyspace)
	}
	if cfg.Limits.BatchSize != 7 {
		t.Errorf("BatchSize = %d, want 7", cfg.Limits.BatchSize)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidateRejectsBadLimits(t *testing.T) {
	path := writeConfig(t, "limits:\n  batch_size: -1\n")
	if _, err := Load(path); err == nil {
		t.Error("expected validation error for negative batch size")
	}
}
