package watermark

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// Store persists the single "latest processed" timestamp.
type Store interface {
	// Read returns ok=false when nothing was written yet.
	Read(ctx context.Context) (string, bool, error)
	Write(ctx context.Context, text string) error
}

const lockRetryDelay = 250 * time.Millisecond

var _ Store = (*FileStore)(nil)

type FileStore struct {
	path string
	lock *flock.Flock
}

func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Read(ctx context.Context) (string, bool, error) {
	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	default:
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read watermark file: %w", err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", false, nil
	}
	return text, true, nil
}

// Write replaces the stored value atomically: the new content is synced to
// a temp file next to the target and renamed over it.
func (s *FileStore) Write(ctx context.Context, text string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create watermark directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".watermark-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write watermark: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync watermark: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close watermark temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace watermark file: %w", err)
	}

	slog.Debug("Watermark written", "path", s.path, "watermark", text)
	return nil
}

// Lock takes the advisory lock guarding the read-then-write span of a run.
// It blocks until the lock is free or ctx is done.
func (s *FileStore) Lock(ctx context.Context) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create watermark directory: %w", err)
	}

	ok, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire watermark lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("watermark lock %s is held by another process", s.lock.Path())
	}

	return s.lock.Unlock, nil
}
