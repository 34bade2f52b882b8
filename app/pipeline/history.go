package pipeline

import (
	"context"

	"github.com/iluhasan/podcast/app/database"
	"github.com/iluhasan/podcast/app/watermark"
)

var _ Recorder = (*HistoryRecorder)(nil)

// HistoryRecorder writes run reports and downloaded episodes to the history
// database.
type HistoryRecorder struct {
	runRepo     database.RunRepository
	episodeRepo database.EpisodeRepository
}

func NewHistoryRecorder(runRepo database.RunRepository, episodeRepo database.EpisodeRepository) *HistoryRecorder {
	return &HistoryRecorder{runRepo: runRepo, episodeRepo: episodeRepo}
}

func (h *HistoryRecorder) RunStarted(ctx context.Context, report Report) error {
	return h.runRepo.StartRun(ctx, database.Run{
		ID:              report.RunID,
		State:           string(report.State),
		StartedAt:       report.StartedAt,
		WatermarkBefore: watermark.Format(report.StartWatermark),
	})
}

func (h *HistoryRecorder) EpisodeDownloaded(ctx context.Context, report Report, dl Download) error {
	episode := database.Episode{
		GUID:          dl.Item.GUID,
		RunID:         report.RunID,
		Title:         dl.Item.Title,
		FileName:      dl.FileName,
		EnclosureURL:  dl.Item.EnclosureURL,
		EnclosureType: dl.Item.EnclosureType,
		SizeBytes:     dl.Size,
		PublishedRaw:  dl.Item.PublishedRaw,
		DownloadedAt:  dl.At,
	}
	if !dl.Published.IsZero() {
		published := dl.Published
		episode.PublishedAt = &published
	}
	return h.episodeRepo.RecordEpisode(ctx, episode)
}

func (h *HistoryRecorder) RunFinished(ctx context.Context, report Report) error {
	run := database.Run{
		ID:             report.RunID,
		State:          string(report.State),
		WatermarkAfter: watermark.Format(report.FinalWatermark),
		Candidates:     report.Candidates,
		Selected:       report.Selected,
		Downloaded:     len(report.Downloads),
		Unparseable:    report.Unparseable,
	}
	if !report.FinishedAt.IsZero() {
		finished := report.FinishedAt
		run.FinishedAt = &finished
	}
	if report.Err != nil {
		run.Error = report.Err.Error()
	}
	return h.runRepo.FinishRun(ctx, run)
}
