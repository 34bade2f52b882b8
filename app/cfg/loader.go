package cfg

import (
	"cmp"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Podcast configuration
	FeedConfig    string `long:"feed-config" env:"FEED_CONFIG" default:"./podcast.yml" description:"Path to the podcast definition (YAML)"`
	FeedURL       string `long:"feed-url" env:"FEED_URL" description:"Override the feed URL from the podcast definition"`
	DestDir       string `long:"dest-dir" env:"DEST_DIR" description:"Override the episode download directory"`
	RetentionDays int    `long:"retention-days" env:"RETENTION_DAYS" description:"Override the retention window in days (0 keeps the definition value)"`

	// Storage configuration
	WatermarkPath string `long:"watermark-path" env:"WATERMARK_PATH" default:"target/rss/latestLoadedPodcastDate.txt" description:"File holding the newest observed publication date"`
	DBPath        string `long:"db-path" env:"DB_PATH" default:"target/podcast.db" description:"SQLite database for run history"`

	// Application configuration
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl           string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://podcast.example.com)"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"300" description:"Scheduler interval in seconds"`
	MaxRetries        int    `long:"max-retries" env:"MAX_RETRIES" default:"0" description:"Retries of a failed run before waiting for the next tick"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	Once              bool   `long:"once" env:"ONCE" description:"Run the pipeline once and exit"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Podcast Fetcher/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load parses the process arguments and environment. It returns nil, nil
// when help was requested.
func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		FeedConfig:        raw.FeedConfig,
		FeedURL:           raw.FeedURL,
		DestDir:           raw.DestDir,
		RetentionDays:     raw.RetentionDays,
		WatermarkPath:     raw.WatermarkPath,
		DBPath:            raw.DBPath,
		Port:              raw.Port,
		BaseUrl:           raw.BaseUrl,
		SchedulerInterval: raw.SchedulerInterval,
		MaxRetries:        raw.MaxRetries,
		APIAccessKey:      raw.APIAccessKey,
		Once:              raw.Once,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func (c *Cfg) validate() error {
	if c.SchedulerInterval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %d", c.SchedulerInterval)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative, got %d", c.MaxRetries)
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention days cannot be negative, got %d", c.RetentionDays)
	}
	if c.WatermarkPath == "" {
		return fmt.Errorf("watermark path is required")
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
