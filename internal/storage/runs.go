package storage

import (
	"context"
	"database/sql"
	"fmt"

	"evalsum/internal/models"
)

// RunStore persists upload audit records.
type RunStore struct {
	db *sql.DB
}

func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Ping checks the database connection.
func (s *RunStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RecordRun inserts run.
func (s *RunStore) RecordRun(ctx context.Context, run *models.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO summary_runs (
			id, file_name, file_size, content_type, pages, text_chars, truncated,
			provider, model, status, error_kind, http_status, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.FileName, run.FileSize, run.ContentType, run.Pages, run.TextChars, run.Truncated,
		run.Provider, run.Model, run.Status, run.ErrorKind, run.HTTPStatus, run.DurationMS, run.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *RunStore) RecentRuns(ctx context.Context, limit int) ([]models.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_name, file_size, content_type, pages, text_chars, truncated,
			provider, model, status, error_kind, http_status, duration_ms, created_at
		FROM summary_runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]models.Run, 0, limit)
	for rows.Next() {
		var r models.Run
		if err := rows.Scan(
			&r.ID, &r.FileName, &r.FileSize, &r.ContentType, &r.Pages, &r.TextChars, &r.Truncated,
			&r.Provider, &r.Model, &r.Status, &r.ErrorKind, &r.HTTPStatus, &r.DurationMS, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
