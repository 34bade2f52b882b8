package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iluhasan/podcast/app/api"
	"github.com/iluhasan/podcast/app/cfg"
	"github.com/iluhasan/podcast/app/database"
	"github.com/iluhasan/podcast/app/download"
	"github.com/iluhasan/podcast/app/feed"
	"github.com/iluhasan/podcast/app/pipeline"
	"github.com/iluhasan/podcast/app/tasks"
	"github.com/iluhasan/podcast/app/watermark"
)

const episodeTimeout = 30 * time.Minute

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if appCfg == nil {
		// help was shown
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetLogLoggerLevel(logLevel)

	slog.Info("Starting Podcast Fetcher", "version", appCfg.Version)

	feedConfig, err := loadFeedConfig(appCfg)
	if err != nil {
		slog.Error("Failed to load podcast definition", "path", appCfg.FeedConfig, "error", err)
		os.Exit(1)
	}

	db, err := database.Open(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	runRepo := database.NewRunRepository(db)
	episodeRepo := database.NewEpisodeRepository(db)

	store := watermark.NewFileStore(appCfg.WatermarkPath)
	httpClient := download.NewHTTPClient()
	source := feed.NewSource(feedConfig, httpClient, feed.NewParser(), appCfg.UserAgent)
	downloader := download.NewDownloader(feedConfig.Settings.DestDir, httpClient, appCfg.UserAgent, episodeTimeout)

	runner := pipeline.NewRunner(pipeline.Config{
		RetentionWindow: feedConfig.Settings.Retention(),
		FileExtension:   feedConfig.Settings.FileExtension,
	}, store, source, downloader,
		pipeline.WithLocker(store),
		pipeline.WithRecorder(pipeline.NewHistoryRecorder(runRepo, episodeRepo)))

	slog.Info("Pipeline configured",
		"feed", feedConfig.URL,
		"dest_dir", feedConfig.Settings.DestDir,
		"retention", feedConfig.Settings.Retention().String(),
		"watermark", store.Path())

	if appCfg.Once {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		_, err := runner.RunOnce(ctx)
		stop()
		if err != nil {
			db.Close()
			os.Exit(1)
		}
		return
	}

	if err := serve(appCfg, feedConfig, runner, runRepo, episodeRepo, store, downloader.DestDir()); err != nil {
		slog.Error("Server error", "error", err)
		db.Close()
		os.Exit(1)
	}
}

func loadFeedConfig(appCfg *cfg.Cfg) (*feed.Config, error) {
	feedConfig, err := feed.ParseConfig(appCfg.FeedConfig)
	if err != nil {
		// flags alone are enough when the definition file is absent
		if !errors.Is(err, os.ErrNotExist) || appCfg.FeedURL == "" {
			return nil, err
		}
		feedConfig = &feed.Config{}
		feedConfig.ApplyDefaults()
	}

	if appCfg.FeedURL != "" {
		feedConfig.URL = appCfg.FeedURL
	}
	if appCfg.DestDir != "" {
		feedConfig.Settings.DestDir = appCfg.DestDir
	}
	if appCfg.RetentionDays != 0 {
		days := appCfg.RetentionDays
		feedConfig.Settings.RetentionDays = &days
	}

	if err := feedConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", appCfg.FeedConfig, err)
	}
	return feedConfig, nil
}

func serve(appCfg *cfg.Cfg, feedConfig *feed.Config, runner *pipeline.Runner,
	runRepo database.RunRepository, episodeRepo database.EpisodeRepository, store *watermark.FileStore, mediaDir string) error {
	interval := time.Duration(appCfg.SchedulerInterval) * time.Second

	slog.Info("Starting background scheduler", "interval", interval.String(), "max_retries", appCfg.MaxRetries)
	scheduler := tasks.NewScheduler(feedConfig.Title, runner, interval, appCfg.MaxRetries)
	scheduler.Start()
	defer func() {
		scheduler.Stop()
		slog.Info("Background scheduler stopped")
	}()

	handler := api.NewHandler(feedConfig, runRepo, episodeRepo, store, scheduler, appCfg.BaseUrl, appCfg.Version)
	router := api.NewServer(handler, appCfg.APIAccessKey, mediaDir)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // episode files can take a while to stream
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case serveErr = <-serverErrChan:
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return serveErr
}
