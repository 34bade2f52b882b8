package feed

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultRetentionDays = 4
	DefaultTimeout       = 30 // seconds
	DefaultDestDir       = "./podcasts"
	DefaultFileExtension = ".mp3"
)

// LoadConfig reads the podcast definition from a YAML file.
func LoadConfig(path string) (*Config, error) {
	feedConfig, err := ParseConfig(path)
	if err != nil {
		return nil, err
	}

	if err := feedConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	slog.Debug("Configuration loaded",
		"path", path,
		"url", feedConfig.URL,
		"retention", feedConfig.Settings.Retention().String(),
		"dest_dir", feedConfig.Settings.DestDir)

	return feedConfig, nil
}

// ParseConfig reads the definition and applies defaults without validating,
// so callers can apply overrides first.
func ParseConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var feedConfig Config
	if err := yaml.Unmarshal(data, &feedConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	feedConfig.ApplyDefaults()

	return &feedConfig, nil
}

func (c *Config) ApplyDefaults() {
	if c.Settings.RetentionDays == nil {
		days := DefaultRetentionDays
		c.Settings.RetentionDays = &days
	}
	if c.Settings.Timeout == 0 {
		c.Settings.Timeout = DefaultTimeout
	}
	if c.Settings.DestDir == "" {
		c.Settings.DestDir = DefaultDestDir
	}
	if c.Settings.FileExtension == "" {
		c.Settings.FileExtension = DefaultFileExtension
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("feed config is nil")
	}

	if c.URL == "" {
		return fmt.Errorf("feed URL is required")
	}
	parsed, err := url.Parse(c.URL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("feed URL must be an absolute http(s) URL: %q", c.URL)
	}

	nonNegativeFields := map[string]int{
		"timeout": c.Settings.Timeout,
	}
	if c.Settings.RetentionDays != nil {
		nonNegativeFields["retention days"] = *c.Settings.RetentionDays
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	if c.Settings.DestDir == "" {
		return fmt.Errorf("destination directory is required")
	}
	if !strings.HasPrefix(c.Settings.FileExtension, ".") || strings.ContainsAny(c.Settings.FileExtension, `/\`) {
		return fmt.Errorf("file extension must start with a dot: %q", c.Settings.FileExtension)
	}

	return nil
}
