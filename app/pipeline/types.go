package pipeline

import (
	"context"
	"time"

	"github.com/iluhasan/podcast/app/feed"
)

type WatermarkStore interface {
	Read(ctx context.Context) (string, bool, error)
	Write(ctx context.Context, text string) error
}

type FeedSource interface {
	Fetch(ctx context.Context) ([]feed.Item, error)
}

type Downloader interface {
	Fetch(ctx context.Context, url, filename string) (int64, error)
}

// Locker guards the read-then-write span of a run against other processes.
type Locker interface {
	Lock(ctx context.Context) (unlock func() error, err error)
}

// Recorder receives run history. Its errors are logged and never fail a run.
type Recorder interface {
	RunStarted(ctx context.Context, report Report) error
	EpisodeDownloaded(ctx context.Context, report Report, download Download) error
	RunFinished(ctx context.Context, report Report) error
}

type Config struct {
	RetentionWindow time.Duration
	FileExtension   string
}

type State string

const (
	StateIdle           State = "idle"
	StateFetchingFeed   State = "fetching_feed"
	StateFetchFailed    State = "fetch_failed"
	StateEvaluating     State = "evaluating"
	StateDownloading    State = "downloading"
	StateDownloadFailed State = "download_failed"
	StatePersistFailed  State = "persist_failed"
	StateAborted        State = "aborted" // lock or watermark read failed before fetching
	StateCompleted      State = "completed"
)

func (s State) Terminal() bool {
	switch s {
	case StateFetchFailed, StateDownloadFailed, StatePersistFailed, StateAborted, StateCompleted:
		return true
	}
	return false
}

// Download describes one stored episode.
type Download struct {
	Item      feed.Item
	FileName  string
	Size      int64
	Published time.Time // zero when the pubDate could not be parsed
	At        time.Time
}

// Report summarizes one run. FinalWatermark equals StartWatermark unless the
// run completed.
type Report struct {
	RunID          string
	State          State
	StartedAt      time.Time
	FinishedAt     time.Time
	StartWatermark time.Time
	FinalWatermark time.Time
	Candidates     int
	Selected       int
	Unparseable    int
	Downloads      []Download
	Err            error
}

func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
