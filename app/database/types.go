package database

import (
	"time"
)

type Run struct {
	ID              string
	State           string
	StartedAt       time.Time
	FinishedAt      *time.Time
	WatermarkBefore string
	WatermarkAfter  string
	Candidates      int
	Selected        int
	Downloaded      int
	Unparseable     int
	Error           string
}

type Episode struct {
	GUID          string
	RunID         string
	Title         string
	FileName      string
	EnclosureURL  string
	EnclosureType string
	SizeBytes     int64
	PublishedRaw  string     // pubDate text as published
	PublishedAt   *time.Time // nil when PublishedRaw was unparseable
	DownloadedAt  time.Time
}
