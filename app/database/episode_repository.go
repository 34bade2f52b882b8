package database

import (
	"context"
	"database/sql"
	"fmt"
)

var _ EpisodeRepository = (*episodeRepository)(nil)

type episodeRepository struct {
	db *DB
}

func NewEpisodeRepository(db *DB) EpisodeRepository {
	return &episodeRepository{db: db}
}

// RecordEpisode upserts by GUID; a re-downloaded episode keeps one row.
func (r *episodeRepository) RecordEpisode(ctx context.Context, episode Episode) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO episodes (
			guid, run_id, title, file_name, enclosure_url, enclosure_type,
			size_bytes, published_raw, published_at, downloaded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (guid) DO UPDATE SET
			run_id = excluded.run_id,
			title = excluded.title,
			file_name = excluded.file_name,
			enclosure_url = excluded.enclosure_url,
			enclosure_type = excluded.enclosure_type,
			size_bytes = excluded.size_bytes,
			published_raw = excluded.published_raw,
			published_at = excluded.published_at,
			downloaded_at = excluded.downloaded_at
	`, episode.GUID, episode.RunID, episode.Title, episode.FileName, episode.EnclosureURL,
		episode.EnclosureType, episode.SizeBytes, episode.PublishedRaw,
		nullableTime(episode.PublishedAt), formatTime(episode.DownloadedAt))
	if err != nil {
		return fmt.Errorf("failed to record episode: %w", err)
	}
	return nil
}

func (r *episodeRepository) ListEpisodes(ctx context.Context, limit int) ([]Episode, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT guid, run_id, title, file_name, enclosure_url, enclosure_type,
		       size_bytes, published_raw, published_at, downloaded_at
		FROM episodes
		ORDER BY downloaded_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []Episode
	for rows.Next() {
		var (
			episode      Episode
			publishedAt  sql.NullString
			downloadedAt string
		)
		err := rows.Scan(&episode.GUID, &episode.RunID, &episode.Title, &episode.FileName,
			&episode.EnclosureURL, &episode.EnclosureType, &episode.SizeBytes,
			&episode.PublishedRaw, &publishedAt, &downloadedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}

		if episode.PublishedAt, err = parseNullTime(publishedAt); err != nil {
			return nil, err
		}
		if episode.DownloadedAt, err = parseTime(downloadedAt); err != nil {
			return nil, err
		}

		episodes = append(episodes, episode)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate episodes: %w", err)
	}

	return episodes, nil
}

func (r *episodeRepository) GetEpisodeCount(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM episodes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count episodes: %w", err)
	}
	return count, nil
}
