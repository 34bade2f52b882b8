package cfg

import (
	"strings"
	"testing"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}

	version := GetVersion()
	if version != "dev" && version != "unknown" {
		// set at build time
		t.Logf("Version: %s", version)
	}
}

func TestLoadArgsDefaults(t *testing.T) {
	cfg, err := LoadArgs([]string{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.FeedConfig != "./podcast.yml" {
		t.Errorf("Expected feed config './podcast.yml', got '%s'", cfg.FeedConfig)
	}
	if cfg.WatermarkPath != "target/rss/latestLoadedPodcastDate.txt" {
		t.Errorf("Expected default watermark path, got '%s'", cfg.WatermarkPath)
	}
	if cfg.DBPath != "target/podcast.db" {
		t.Errorf("Expected db path 'target/podcast.db', got '%s'", cfg.DBPath)
	}
	if cfg.SchedulerInterval != 300 {
		t.Errorf("Expected scheduler interval 300, got %d", cfg.SchedulerInterval)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("Expected max retries 0, got %d", cfg.MaxRetries)
	}
	if cfg.RetentionDays != 0 {
		t.Errorf("Expected no retention override, got %d", cfg.RetentionDays)
	}
	if cfg.Once {
		t.Error("Expected once to default to false")
	}
	if cfg.Version == "" {
		t.Error("Expected version to be set")
	}
}

func TestLoadArgsOverrides(t *testing.T) {
	t.Setenv("FEED_URL", "https://env.example.com/rss")

	cfg, err := LoadArgs([]string{
		"--dest-dir", "/srv/podcasts",
		"--retention-days", "7",
		"--scheduler-interval", "60",
		"--max-retries", "2",
		"--api-key", "secret",
		"--once",
		"--debug",
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.FeedURL != "https://env.example.com/rss" {
		t.Errorf("Expected feed URL from environment, got '%s'", cfg.FeedURL)
	}
	if cfg.DestDir != "/srv/podcasts" {
		t.Errorf("Expected dest dir '/srv/podcasts', got '%s'", cfg.DestDir)
	}
	if cfg.RetentionDays != 7 {
		t.Errorf("Expected retention days 7, got %d", cfg.RetentionDays)
	}
	if cfg.SchedulerInterval != 60 {
		t.Errorf("Expected scheduler interval 60, got %d", cfg.SchedulerInterval)
	}
	if cfg.MaxRetries != 2 {
		t.Errorf("Expected max retries 2, got %d", cfg.MaxRetries)
	}
	if cfg.APIAccessKey != "secret" {
		t.Errorf("Expected API key 'secret', got '%s'", cfg.APIAccessKey)
	}
	if !cfg.Once || !cfg.Debug {
		t.Error("Expected once and debug to be enabled")
	}
}

func TestLoadArgsValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"zero interval", []string{"--scheduler-interval", "0"}, "scheduler interval"},
		{"negative retries", []string{"--max-retries=-1"}, "max retries"},
		{"negative retention", []string{"--retention-days=-3"}, "retention days"},
		{"unknown flag", []string{"--no-such-flag"}, "failed to parse configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadArgs(tt.args)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing '%s', got: %v", tt.want, err)
			}
		})
	}
}
