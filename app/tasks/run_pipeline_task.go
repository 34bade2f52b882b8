package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

type RunPipelineTask struct {
	Task
	runner PipelineRunner
}

func NewRunPipelineTask(name string, runner PipelineRunner, maxRetries int) *RunPipelineTask {
	return &RunPipelineTask{
		Task:   NewTask(TaskTypeRunPipeline, name, maxRetries),
		runner: runner,
	}
}

func (t *RunPipelineTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	report, err := t.runner.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("pipeline run failed: %w", err)
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"name", t.Name,
		"run_id", report.RunID,
		"duration", t.GetDuration(),
		"selected", report.Selected,
		"downloaded", len(report.Downloads))

	return nil
}
