package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// ErrTaskInProgress is returned when a task of the same type is already
// queued, running or waiting for a retry.
var ErrTaskInProgress = errors.New("task already in progress")

const (
	DefaultTaskTimeout = 30 * time.Minute
	maxRetryDelay      = 30 * time.Second
)

// Scheduler runs tasks on a single worker so that two pipeline runs never
// overlap within one process.
type Scheduler struct {
	name           string
	runner         PipelineRunner
	interval       time.Duration
	maxRetries     int
	taskTimeout    time.Duration
	retryBaseDelay time.Duration
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	taskQueue      chan TaskInterface

	mu       sync.Mutex
	inflight map[TaskType]string
}

func NewScheduler(name string, runner PipelineRunner, interval time.Duration, maxRetries int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		name:           name,
		runner:         runner,
		interval:       interval,
		maxRetries:     maxRetries,
		taskTimeout:    DefaultTaskTimeout,
		retryBaseDelay: time.Second,
		ctx:            ctx,
		cancel:         cancel,
		taskQueue:      make(chan TaskInterface, 8),
		inflight:       make(map[TaskType]string),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.worker()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueRun("startup")

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueRun("tick")
			}
		}
	}()
}

// Stop cancels the running task and waits for the worker to exit.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// EnqueueTask queues a task unless one of the same type is already in
// progress. A retry of the in-progress task itself is always accepted.
func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if id, ok := s.inflight[task.GetType()]; ok && id != task.GetID() {
		s.mu.Unlock()
		return ErrTaskInProgress
	}
	s.inflight[task.GetType()] = task.GetID()
	s.mu.Unlock()

	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		s.release(task)
		return s.ctx.Err()
	default:
		s.release(task)
		return fmt.Errorf("task queue is full")
	}
}

// TriggerRun enqueues a pipeline run and returns its task id.
func (s *Scheduler) TriggerRun() (string, error) {
	task := NewRunPipelineTask(s.name, s.runner, s.maxRetries)
	if err := s.EnqueueTask(task); err != nil {
		return "", err
	}
	return task.GetID(), nil
}

func (s *Scheduler) enqueueRun(reason string) {
	id, err := s.TriggerRun()
	switch {
	case errors.Is(err, ErrTaskInProgress):
		slog.Debug("Pipeline run already in progress, skipping", "reason", reason)
	case err != nil:
		slog.Warn("Failed to enqueue RunPipelineTask", "reason", reason, "error", err)
	default:
		slog.Debug("RunPipelineTask enqueued", "reason", reason, "id", id)
	}
}

func (s *Scheduler) release(task TaskInterface) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight[task.GetType()] == task.GetID() {
		delete(s.inflight, task.GetType())
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		s.release(task)
		return
	}

	slog.Error("Worker task execution failed", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() || s.ctx.Err() != nil {
		if task.GetMaxRetries() > 0 {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
		s.release(task)
		return
	}

	task.IncrementRetryCount()
	retryDelay := s.retryBaseDelay * time.Duration(1<<uint(task.GetRetryCount()-1))
	if retryDelay > maxRetryDelay {
		retryDelay = maxRetryDelay
	}

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "name", task.GetName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			s.release(task)
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
				s.release(task)
			}
		}
	}()
}
