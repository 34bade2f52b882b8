package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
	path string
}

// Open connects to the SQLite history database at path and migrates it.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// pragmas go in the DSN so every pooled connection gets them
	pragmas := []string{
		"journal_mode(WAL)",
		"foreign_keys(1)",
		"busy_timeout(5000)",
	}
	query := url.Values{}
	for _, pragma := range pragmas {
		query.Add("_pragma", pragma)
	}

	sqlDB, err := sql.Open("sqlite", "file:"+path+"?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to sqlite db: %w", err)
	}

	db := &DB{DB: sqlDB, path: path}

	version, dirty, err := RunMigrations(db)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if dirty {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("database schema is dirty at version %d", version)
	}

	slog.Debug("Database ready", "path", path, "schema_version", version)
	return db, nil
}

func (db *DB) Path() string {
	return db.path
}
