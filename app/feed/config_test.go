package feed

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "podcast.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
url: "https://example.com/podcast.xml"
title: "Example"

settings:
  retention_days: 7
  dest_dir: "/tmp/podcasts"
  timeout: 15
  file_extension: ".m4a"
`)

	feedConfig, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if feedConfig.URL != "https://example.com/podcast.xml" {
		t.Errorf("Expected URL 'https://example.com/podcast.xml', got '%s'", feedConfig.URL)
	}
	if feedConfig.Settings.Retention() != 7*24*time.Hour {
		t.Errorf("Expected retention 168h, got %v", feedConfig.Settings.Retention())
	}
	if feedConfig.Settings.GetTimeout() != 15*time.Second {
		t.Errorf("Expected timeout 15s, got %v", feedConfig.Settings.GetTimeout())
	}
	if feedConfig.Settings.DestDir != "/tmp/podcasts" {
		t.Errorf("Expected dest dir '/tmp/podcasts', got '%s'", feedConfig.Settings.DestDir)
	}
	if feedConfig.Settings.FileExtension != ".m4a" {
		t.Errorf("Expected extension '.m4a', got '%s'", feedConfig.Settings.FileExtension)
	}
}

func TestLoadConfigWithDefaults(t *testing.T) {
	path := writeConfig(t, `url: "https://example.com/podcast.xml"`)

	feedConfig, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if feedConfig.Settings.Retention() != DefaultRetentionDays*24*time.Hour {
		t.Errorf("Expected default retention, got %v", feedConfig.Settings.Retention())
	}
	if feedConfig.Settings.GetTimeout() != DefaultTimeout*time.Second {
		t.Errorf("Expected default timeout, got %v", feedConfig.Settings.GetTimeout())
	}
	if feedConfig.Settings.DestDir != DefaultDestDir {
		t.Errorf("Expected default dest dir, got '%s'", feedConfig.Settings.DestDir)
	}
	if feedConfig.Settings.FileExtension != DefaultFileExtension {
		t.Errorf("Expected default extension, got '%s'", feedConfig.Settings.FileExtension)
	}
}

func TestLoadConfigZeroRetentionIsKept(t *testing.T) {
	path := writeConfig(t, `
url: "https://example.com/podcast.xml"
settings:
  retention_days: 0
`)

	feedConfig, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if feedConfig.Settings.Retention() != 0 {
		t.Errorf("Expected explicit zero retention, got %v", feedConfig.Settings.Retention())
	}
}

func TestInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing url", `title: "No URL"`},
		{"relative url", `url: "/feed.xml"`},
		{"negative retention", "url: \"https://example.com/f.xml\"\nsettings:\n  retention_days: -1"},
		{"negative timeout", "url: \"https://example.com/f.xml\"\nsettings:\n  timeout: -5"},
		{"bad extension", "url: \"https://example.com/f.xml\"\nsettings:\n  file_extension: \"mp3\""},
		{"broken yaml", "url: [unclosed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.content)); err == nil {
				t.Error("Expected error for invalid configuration")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
