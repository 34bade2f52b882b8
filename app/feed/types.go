package feed

import (
	"time"
)

type Metadata struct {
	Title       string
	Link        string
	Description string
	ImageURL    string
	Language    string
}

// Item is one candidate episode as published in the feed.
type Item struct {
	GUID            string
	Title           string
	Link            string
	PublishedRaw    string // pubDate text exactly as published, parsed later
	EnclosureURL    string
	EnclosureType   string
	EnclosureLength int64
}

// HasEnclosure reports whether the item carries something to download.
// Items without one still count towards the watermark.
func (i Item) HasEnclosure() bool {
	return i.EnclosureURL != ""
}

// Configuration types

type Config struct {
	URL      string         `yaml:"url"`
	Title    string         `yaml:"title"`
	Settings ConfigSettings `yaml:"settings"`
}

type ConfigSettings struct {
	RetentionDays *int   `yaml:"retention_days"`
	DestDir       string `yaml:"dest_dir"`
	Timeout       int    `yaml:"timeout"` // seconds
	FileExtension string `yaml:"file_extension"`
}

func (s ConfigSettings) Retention() time.Duration {
	if s.RetentionDays == nil {
		return time.Duration(DefaultRetentionDays) * 24 * time.Hour
	}
	return time.Duration(*s.RetentionDays) * 24 * time.Hour
}

func (s ConfigSettings) GetTimeout() time.Duration {
	if s.Timeout <= 0 {
		return time.Duration(DefaultTimeout) * time.Second
	}
	return time.Duration(s.Timeout) * time.Second
}
