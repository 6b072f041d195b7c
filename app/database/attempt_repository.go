package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AttemptRepositoryImpl stores poll attempts in sqlite
type AttemptRepositoryImpl struct {
	db *DB
}

var _ AttemptRepository = (*AttemptRepositoryImpl)(nil)

// NewAttemptRepository creates a new attempt repository
func NewAttemptRepository(db *DB) *AttemptRepositoryImpl {
	return &AttemptRepositoryImpl{db: db}
}

func (r *AttemptRepositoryImpl) InsertAttempt(ctx context.Context, a Attempt) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO poll_attempts (
			id, source_id, source_url, manual, started_at, finished_at, outcome,
			status_code, articles, skipped, filtered, error_kind, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.SourceID, a.SourceURL, boolToInt(a.Manual), a.StartedAt.UnixMilli(), a.FinishedAt.UnixMilli(),
		a.Outcome, a.StatusCode, a.Articles, a.Skipped, a.Filtered, a.ErrorKind, a.Error)
	if err != nil {
		return fmt.Errorf("failed to insert attempt: %w", err)
	}
	return nil
}

// GetRecentAttempts returns the newest attempts for a source, newest first
func (r *AttemptRepositoryImpl) GetRecentAttempts(ctx context.Context, sourceID string, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source_id, source_url, manual, started_at, finished_at, outcome,
			status_code, articles, skipped, filtered, error_kind, error
		FROM poll_attempts
		WHERE source_id = ?
		ORDER BY started_at DESC, id
		LIMIT ?
	`, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempts: %w", err)
	}

	return attempts, nil
}

func (r *AttemptRepositoryImpl) GetOutcomeCounts(ctx context.Context) ([]OutcomeCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT source_id,
			SUM(CASE WHEN outcome = 'updated' THEN 1 ELSE 0 END),
			SUM(CASE WHEN outcome = 'unchanged' THEN 1 ELSE 0 END),
			SUM(CASE WHEN outcome = 'failed' THEN 1 ELSE 0 END)
		FROM poll_attempts
		GROUP BY source_id
		ORDER BY source_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcome counts: %w", err)
	}
	defer rows.Close()

	var counts []OutcomeCount
	for rows.Next() {
		var c OutcomeCount
		if err := rows.Scan(&c.SourceID, &c.Updated, &c.Unchanged, &c.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcome counts: %w", err)
	}

	return counts, nil
}

// PruneAttempts keeps only the newest keepPerSource attempts of every source
func (r *AttemptRepositoryImpl) PruneAttempts(ctx context.Context, keepPerSource int) (int64, error) {
	if keepPerSource <= 0 {
		return 0, nil
	}

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM poll_attempts
		WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY source_id ORDER BY started_at DESC, id) AS rn
				FROM poll_attempts
			) WHERE rn > ?
		)
	`, keepPerSource)
	if err != nil {
		return 0, fmt.Errorf("failed to prune attempts: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

func scanAttempt(rows *sql.Rows) (Attempt, error) {
	var a Attempt
	var manual int
	var startedAt, finishedAt int64

	err := rows.Scan(&a.ID, &a.SourceID, &a.SourceURL, &manual, &startedAt, &finishedAt, &a.Outcome,
		&a.StatusCode, &a.Articles, &a.Skipped, &a.Filtered, &a.ErrorKind, &a.Error)
	if err != nil {
		return Attempt{}, fmt.Errorf("failed to scan attempt: %w", err)
	}

	a.Manual = manual != 0
	a.StartedAt = time.UnixMilli(startedAt).UTC()
	a.FinishedAt = time.UnixMilli(finishedAt).UTC()
	return a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
