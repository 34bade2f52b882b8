package watermark

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStoreReadMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "state", "latest.txt"))

	text, ok, err := store.Read(context.Background())
	if err != nil {
		t.Fatalf("Expected no error for missing file, got: %v", err)
	}
	if ok || text != "" {
		t.Errorf("Expected no value, got %q (ok=%t)", text, ok)
	}
}

func TestFileStoreWriteRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "latest.txt")
	store := NewFileStore(path)
	ctx := context.Background()

	if err := store.Write(ctx, "Tue, 3 Jun 2008 11:05:30 GMT"); err != nil {
		t.Fatal(err)
	}
	if err := store.Write(ctx, "Wed, 4 Jun 2008 11:05:30 GMT"); err != nil {
		t.Fatal(err)
	}

	text, ok, err := store.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || text != "Wed, 4 Jun 2008 11:05:30 GMT" {
		t.Errorf("Expected latest value, got %q (ok=%t)", text, ok)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if entry.Name() != "latest.txt" {
			t.Errorf("Expected no leftover files, found %s", entry.Name())
		}
	}
}

func TestFileStoreEmptyFileIsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.txt")
	if err := os.WriteFile(path, []byte("  \n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, ok, err := NewFileStore(path).Read(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("Expected blank file to read as absent")
	}
}

func TestFileStoreLockExcludesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.txt")
	first := NewFileStore(path)
	second := NewFileStore(path)

	unlock, err := first.Lock(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 600*time.Millisecond)
	defer cancel()
	if _, err := second.Lock(ctx); err == nil {
		t.Fatal("Expected second lock to fail while the first is held")
	}

	if err := unlock(); err != nil {
		t.Fatal(err)
	}

	unlockSecond, err := second.Lock(context.Background())
	if err != nil {
		t.Fatalf("Expected lock after release, got: %v", err)
	}
	_ = unlockSecond()
}
