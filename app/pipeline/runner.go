// Package pipeline runs one incremental download pass: read the watermark,
// fetch the feed, select new episodes, download them in feed order and
// persist the advanced watermark only when everything succeeded.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iluhasan/podcast/app/download"
	"github.com/iluhasan/podcast/app/feed"
	"github.com/iluhasan/podcast/app/selection"
	"github.com/iluhasan/podcast/app/watermark"
)

type Runner struct {
	config     Config
	store      WatermarkStore
	source     FeedSource
	downloader Downloader
	locker     Locker
	recorder   Recorder
	now        func() time.Time
}

type Option func(*Runner)

func WithLocker(locker Locker) Option {
	return func(r *Runner) { r.locker = locker }
}

func WithRecorder(recorder Recorder) Option {
	return func(r *Runner) { r.recorder = recorder }
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

func NewRunner(config Config, store WatermarkStore, source FeedSource, downloader Downloader, opts ...Option) *Runner {
	r := &Runner{
		config:     config,
		store:      store,
		source:     source,
		downloader: downloader,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.config.FileExtension == "" {
		r.config.FileExtension = feed.DefaultFileExtension
	}
	return r
}

// RunOnce executes a single run. The returned report is never nil; on
// failure it carries the terminal state reached and the same error.
func (r *Runner) RunOnce(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		State:     StateIdle,
		StartedAt: r.now(),
	}

	if r.locker != nil {
		unlock, err := r.locker.Lock(ctx)
		if err != nil {
			return r.fail(ctx, report, StateAborted, fmt.Errorf("%w: %w", ErrRunLocked, err))
		}
		defer func() {
			if err := unlock(); err != nil {
				slog.Warn("Failed to release run lock", "run_id", report.RunID, "error", err)
			}
		}()
	}

	text, ok, err := r.store.Read(ctx)
	if err != nil {
		return r.fail(ctx, report, StateAborted, fmt.Errorf("%w: %w", ErrWatermarkUnavailable, err))
	}

	start, parseErr := watermark.ParseOrEpoch(text, ok)
	if parseErr != nil {
		slog.Warn("Stored watermark unreadable, starting from epoch", "run_id", report.RunID, "value", text, "error", parseErr)
	}
	report.StartWatermark = start
	report.FinalWatermark = start

	slog.Info("Run started", "run_id", report.RunID, "since", watermark.Format(start))
	r.recordStart(ctx, report)

	report.State = StateFetchingFeed
	items, err := r.source.Fetch(ctx)
	if err != nil {
		kind := ErrFeedUnavailable
		if errors.Is(err, feed.ErrMalformed) {
			kind = ErrFeedMalformed
		}
		return r.fail(ctx, report, StateFetchFailed, fmt.Errorf("%w: %w", kind, err))
	}

	report.State = StateEvaluating
	engine := selection.NewEngine(r.config.RetentionWindow)
	engine.Now = r.now
	sel := engine.Select(start, items)

	report.Candidates = len(items)
	for _, item := range sel.Selected {
		if item.HasEnclosure() {
			report.Selected++
		}
	}
	report.Unparseable = sel.Unparseable

	for _, decision := range sel.Decisions {
		if decision.ParseErr != nil {
			slog.Warn("Publication date unparseable, downloading anyway",
				"run_id", report.RunID, "guid", decision.Item.GUID, "pub_date", decision.Item.PublishedRaw, "error", decision.ParseErr)
			continue
		}
		slog.Debug("Item evaluated",
			"run_id", report.RunID, "guid", decision.Item.GUID, "published", decision.Published, "suitable", decision.Suitable)
	}

	report.State = StateDownloading
	for _, decision := range sel.Decisions {
		if !decision.Suitable {
			continue
		}
		if !decision.Item.HasEnclosure() {
			slog.Debug("Item has no enclosure, nothing to download", "run_id", report.RunID, "guid", decision.Item.GUID)
			continue
		}

		if err := ctx.Err(); err != nil {
			return r.fail(ctx, report, StateDownloadFailed, fmt.Errorf("%w: %w", ErrItemDownloadFailed, err))
		}

		item := decision.Item
		fileName := download.FileName(item.GUID, r.config.FileExtension)

		size, err := r.downloader.Fetch(ctx, item.EnclosureURL, fileName)
		if err != nil {
			return r.fail(ctx, report, StateDownloadFailed,
				fmt.Errorf("%w: %s (%s): %w", ErrItemDownloadFailed, item.GUID, item.EnclosureURL, err))
		}

		dl := Download{
			Item:      item,
			FileName:  fileName,
			Size:      size,
			Published: decision.Published,
			At:        r.now(),
		}
		report.Downloads = append(report.Downloads, dl)

		slog.Info("Episode saved", "run_id", report.RunID, "file", fileName, "pub_date", item.PublishedRaw, "bytes", size)
		r.recordEpisode(ctx, report, dl)
	}

	if err := r.store.Write(ctx, watermark.Format(sel.Watermark)); err != nil {
		return r.fail(ctx, report, StatePersistFailed, fmt.Errorf("%w: %w", ErrWatermarkPersistFailed, err))
	}

	report.FinalWatermark = sel.Watermark
	report.State = StateCompleted
	report.FinishedAt = r.now()

	slog.Info("Run completed",
		"run_id", report.RunID,
		"duration", report.Duration(),
		"candidates", report.Candidates,
		"selected", report.Selected,
		"downloaded", len(report.Downloads),
		"unparseable", report.Unparseable,
		"watermark", watermark.Format(report.FinalWatermark))

	r.recordFinish(ctx, report)
	return report, nil
}

func (r *Runner) fail(ctx context.Context, report *Report, state State, err error) (*Report, error) {
	report.State = state
	report.Err = err
	report.FinishedAt = r.now()

	slog.Error("Run failed",
		"run_id", report.RunID,
		"state", string(state),
		"downloaded", len(report.Downloads),
		"duration", report.Duration(),
		"error", err)

	// nothing was recorded for runs that never read the watermark
	if state != StateAborted {
		r.recordFinish(ctx, report)
	}
	return report, err
}

func (r *Runner) recordStart(ctx context.Context, report *Report) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.RunStarted(context.WithoutCancel(ctx), *report); err != nil {
		slog.Warn("Failed to record run start", "run_id", report.RunID, "error", err)
	}
}

func (r *Runner) recordEpisode(ctx context.Context, report *Report, dl Download) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.EpisodeDownloaded(context.WithoutCancel(ctx), *report, dl); err != nil {
		slog.Warn("Failed to record episode", "run_id", report.RunID, "file", dl.FileName, "error", err)
	}
}

func (r *Runner) recordFinish(ctx context.Context, report *Report) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.RunFinished(context.WithoutCancel(ctx), *report); err != nil {
		slog.Warn("Failed to record run result", "run_id", report.RunID, "error", err)
	}
}
