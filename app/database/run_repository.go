package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var _ RunRepository = (*runRepository)(nil)

type runRepository struct {
	db *DB
}

func NewRunRepository(db *DB) RunRepository {
	return &runRepository{db: db}
}

func (r *runRepository) StartRun(ctx context.Context, run Run) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, state, started_at, watermark_before)
		VALUES (?, ?, ?, ?)
	`, run.ID, run.State, formatTime(run.StartedAt), run.WatermarkBefore)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (r *runRepository) FinishRun(ctx context.Context, run Run) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE runs
		SET state = ?, finished_at = ?, watermark_after = ?,
		    candidates = ?, selected = ?, downloaded = ?, unparseable = ?, error = ?
		WHERE id = ?
	`, run.State, nullableTime(run.FinishedAt), run.WatermarkAfter,
		run.Candidates, run.Selected, run.Downloaded, run.Unparseable, run.Error,
		run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

func (r *runRepository) GetLastRun(ctx context.Context) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, state, started_at, finished_at, watermark_before, watermark_after,
		       candidates, selected, downloaded, unparseable, error
		FROM runs
		ORDER BY started_at DESC
		LIMIT 1
	`)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last run: %w", err)
	}
	return run, nil
}

func (r *runRepository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, state, started_at, finished_at, watermark_before, watermark_after,
		       candidates, selected, downloaded, unparseable, error
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

func (r *runRepository) GetRunCount(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run        Run
		startedAt  string
		finishedAt sql.NullString
	)

	err := row.Scan(&run.ID, &run.State, &startedAt, &finishedAt,
		&run.WatermarkBefore, &run.WatermarkAfter,
		&run.Candidates, &run.Selected, &run.Downloaded, &run.Unparseable, &run.Error)
	if err != nil {
		return nil, err
	}

	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if run.FinishedAt, err = parseNullTime(finishedAt); err != nil {
		return nil, err
	}

	return &run, nil
}
