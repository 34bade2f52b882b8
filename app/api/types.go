package api

import (
	"context"
	"time"

	"github.com/iluhasan/podcast/app/database"
	"github.com/iluhasan/podcast/app/feed"
	"github.com/iluhasan/podcast/app/watermark"
)

type GeneratorInterface interface {
	Run(info feed.LibraryInfo, episodes []database.Episode) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

// WatermarkReader exposes the persisted watermark for status reporting.
type WatermarkReader interface {
	Read(ctx context.Context) (string, bool, error)
}

var _ WatermarkReader = (*watermark.FileStore)(nil)

// RunTrigger enqueues pipeline runs on behalf of API clients.
type RunTrigger interface {
	TriggerRun() (string, error)
}

type Handler struct {
	feedConfig  *feed.Config
	runRepo     database.RunRepository
	episodeRepo database.EpisodeRepository
	store       WatermarkReader
	generator   GeneratorInterface
	scheduler   RunTrigger
	baseURL     string
	version     string
}

type runResponse struct {
	ID              string     `json:"id"`
	State           string     `json:"state"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	WatermarkBefore string     `json:"watermark_before"`
	WatermarkAfter  string     `json:"watermark_after,omitempty"`
	Candidates      int        `json:"candidates"`
	Selected        int        `json:"selected"`
	Downloaded      int        `json:"downloaded"`
	Unparseable     int        `json:"unparseable"`
	Error           string     `json:"error,omitempty"`
}

func newRunResponse(run database.Run) runResponse {
	return runResponse{
		ID:              run.ID,
		State:           run.State,
		StartedAt:       run.StartedAt,
		FinishedAt:      run.FinishedAt,
		WatermarkBefore: run.WatermarkBefore,
		WatermarkAfter:  run.WatermarkAfter,
		Candidates:      run.Candidates,
		Selected:        run.Selected,
		Downloaded:      run.Downloaded,
		Unparseable:     run.Unparseable,
		Error:           run.Error,
	}
}
