package database

import (
	"context"
)

type RunRepository interface {
	StartRun(ctx context.Context, run Run) error
	FinishRun(ctx context.Context, run Run) error
	GetLastRun(ctx context.Context) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	GetRunCount(ctx context.Context) (int, error)
}

type EpisodeRepository interface {
	RecordEpisode(ctx context.Context, episode Episode) error
	ListEpisodes(ctx context.Context, limit int) ([]Episode, error)
	GetEpisodeCount(ctx context.Context) (int, error)
}
