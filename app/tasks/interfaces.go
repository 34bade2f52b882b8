package tasks

import (
	"context"

	"github.com/iluhasan/podcast/app/pipeline"
)

// TaskSchedulerInterface defines the task scheduling operations used by main
// and the API server.
// Example usage:
//
//	scheduler := NewScheduler("My Podcast", runner, interval, maxRetries)
//	scheduler.Start()
//	defer scheduler.Stop()
//	taskID, err := scheduler.TriggerRun()
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	TriggerRun() (string, error)
}

// PipelineRunner executes one incremental download run.
type PipelineRunner interface {
	RunOnce(ctx context.Context) (*pipeline.Report, error)
}
