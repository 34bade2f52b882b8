package api

import (
	"cmp"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iluhasan/podcast/app/database"
	"github.com/iluhasan/podcast/app/feed"
	"github.com/iluhasan/podcast/app/pipeline"
	"github.com/iluhasan/podcast/app/tasks"
	"github.com/iluhasan/podcast/app/watermark"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	feedEpisodeLimit = 100
)

func NewHandler(feedConfig *feed.Config, runRepo database.RunRepository, episodeRepo database.EpisodeRepository,
	store WatermarkReader, scheduler RunTrigger, baseURL, version string) *Handler {
	return &Handler{
		feedConfig:  feedConfig,
		runRepo:     runRepo,
		episodeRepo: episodeRepo,
		store:       store,
		generator:   feed.NewGenerator(),
		scheduler:   scheduler,
		baseURL:     strings.TrimRight(baseURL, "/"),
		version:     version,
	}
}

func (h *Handler) GetFeed(c *gin.Context) {
	episodes, err := h.episodeRepo.ListEpisodes(c.Request.Context(), feedEpisodeLimit)
	if err != nil {
		slog.Error("Database error", "operation", "list_episodes", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	base := h.publicBaseURL(c)
	rss, err := h.generator.Run(feed.LibraryInfo{
		Title:        cmp.Or(h.feedConfig.Title, "Podcast library"),
		Link:         h.feedConfig.URL,
		SelfLink:     base + "/feed",
		MediaBaseURL: base + "/episodes",
		Version:      h.version,
	}, episodes)
	if err != nil {
		slog.Error("RSS generation error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(episodes)))

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if last, err := h.runRepo.GetLastRun(c.Request.Context()); err == nil && last != nil {
		health["last_run_state"] = last.State
		health["run_in_progress"] = !pipeline.State(last.State).Terminal()
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	stats := map[string]interface{}{
		"feed": map[string]interface{}{
			"url":       h.feedConfig.URL,
			"retention": h.feedConfig.Settings.Retention().String(),
			"dest_dir":  h.feedConfig.Settings.DestDir,
		},
	}

	text, ok, err := h.store.Read(ctx)
	switch {
	case err != nil:
		slog.Warn("Failed to read watermark", "error", err)
		stats["watermark"] = nil
	case !ok:
		stats["watermark"] = nil
	default:
		stats["watermark"] = text
		if _, parseErr := watermark.Parse(text); parseErr != nil {
			stats["watermark_valid"] = false
		} else {
			stats["watermark_valid"] = true
		}
	}

	if runCount, err := h.runRepo.GetRunCount(ctx); err == nil {
		stats["runs"] = runCount
	}
	if episodeCount, err := h.episodeRepo.GetEpisodeCount(ctx); err == nil {
		stats["episodes"] = episodeCount
	}

	last, err := h.runRepo.GetLastRun(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "get_last_run", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if last != nil {
		stats["last_run"] = newRunResponse(*last)
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListRuns(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(parsed, maxListLimit)
	}

	runs, err := h.runRepo.ListRuns(c.Request.Context(), limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		response = append(response, newRunResponse(run))
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"runs":  response,
		"total": len(response),
	})
}

func (h *Handler) APITriggerRun(c *gin.Context) {
	taskID, err := h.scheduler.TriggerRun()
	if err != nil {
		if errors.Is(err, tasks.ErrTaskInProgress) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "Run already in progress",
			})
			return
		}

		slog.Error("Error enqueueing pipeline run", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue run",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Run enqueued",
		"task": gin.H{
			"id":   taskID,
			"type": tasks.TaskTypeRunPipeline,
		},
	})
}

// publicBaseURL prefers the configured base URL and falls back to the
// request's own scheme and host.
func (h *Handler) publicBaseURL(c *gin.Context) string {
	if h.baseURL != "" {
		return h.baseURL
	}

	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if forwarded := c.GetHeader("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	return scheme + "://" + c.Request.Host
}
